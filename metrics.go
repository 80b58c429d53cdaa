package geostat

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func checkPair(name string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, newValidation(name, "empty vector", 0)
	}
	if yPred.Len() != n {
		return 0, newValidation(name, "observed and predicted lengths differ", yPred.Len())
	}
	return n, nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE is the root mean squared error. It is symmetric, but callers pass the
// observed values first, as for R2Score where the order matters.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score is 1 - SSE/SST around the mean of yTrue. It is negative when the
// predictions do worse than that mean and NaN when yTrue is constant.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var mean float64
	for i := 0; i < n; i++ {
		mean += yTrue.AtVec(i)
	}
	mean /= float64(n)

	var sst, sse float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		sst += (t - mean) * (t - mean)
		sse += (t - yPred.AtVec(i)) * (t - yPred.AtVec(i))
	}
	if sst == 0 {
		return math.NaN(), nil
	}
	return 1 - sse/sst, nil
}
