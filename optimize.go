package geostat

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/flywave/go-geostat/internal/log"
)

// OptimizerOptions configures Minimize.
type OptimizerOptions struct {
	// MaxIterations caps the Nelder–Mead iterations. Zero means 500.
	MaxIterations int
	// MaxEvaluations caps the objective evaluations. Zero means no cap.
	MaxEvaluations int
	// SimplexSize is the edge of the initial simplex around x0. Zero means
	// 0.05.
	SimplexSize float64
	// Tolerance is the objective change below which the search stops.
	// Zero means 1e-8.
	Tolerance float64
}

// OptimizeResult is the best point found.
type OptimizeResult struct {
	X           []float64
	F           float64
	Iterations  int
	Evaluations int
	Status      string
}

// Minimize runs a derivative-free Nelder–Mead search from x0. The objective
// may return +Inf to mark an infeasible point; NaN is treated the same way.
func Minimize(objective func(x []float64) float64, x0 []float64, opts OptimizerOptions) (OptimizeResult, error) {
	if len(x0) == 0 {
		return OptimizeResult{}, newValidation("x0", "empty starting point", x0)
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = 500
	}
	if opts.SimplexSize == 0 {
		opts.SimplexSize = 0.05
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = 1e-8
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f := objective(x)
			if math.IsNaN(f) {
				return math.Inf(1)
			}
			return f
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 50,
		},
	}
	method := &optimize.NelderMead{SimplexSize: opts.SimplexSize}

	result, err := optimize.Minimize(problem, append([]float64(nil), x0...), settings, method)
	if result == nil {
		return OptimizeResult{}, errors.Wrap(err, "nelder-mead")
	}
	out := OptimizeResult{
		X:           result.X,
		F:           result.F,
		Iterations:  result.Stats.MajorIterations,
		Evaluations: result.Stats.FuncEvaluations,
		Status:      result.Status.String(),
	}
	if err != nil {
		logger := log.Component("optimize")
		logger.Debug().Err(err).Str("status", out.Status).Msg("search stopped early")
	}
	if math.IsInf(out.F, 1) {
		return out, newValidation("x0", "no feasible point found", x0)
	}
	return out, nil
}

// TuneIDW searches (nmax, power) for the IDW parameters minimising the RMSE
// on test when interpolating from train. x0 is the starting (nmax, power);
// points with nmax < 1 or power < 0.001 are infeasible.
func TuneIDW(train, test *Dataset, attribute string, x0 [2]float64, opts OptimizerOptions) (IDWOptions, OptimizeResult, error) {
	observed, err := test.Values(attribute)
	if err != nil {
		return IDWOptions{}, OptimizeResult{}, err
	}
	yTrue := mat.NewVecDense(len(observed), observed)
	grid := SampleGrid(test)

	toOptions := func(x []float64) IDWOptions {
		return IDWOptions{Attribute: attribute, NMax: int(math.Round(x[0])), Power: x[1]}
	}
	objective := func(x []float64) float64 {
		o := toOptions(x)
		if o.NMax < 1 || x[1] < 0.001 {
			return math.Inf(1)
		}
		w, err := NewIDW(train, o)
		if err != nil {
			return math.Inf(1)
		}
		preds, err := w.Predict(grid)
		if err != nil {
			return math.Inf(1)
		}
		yPred := mat.NewVecDense(len(preds), nil)
		for i, p := range preds {
			if p.Missing() {
				return math.Inf(1)
			}
			yPred.SetVec(i, p.Value)
		}
		rmse, err := RMSE(yTrue, yPred)
		if err != nil {
			return math.Inf(1)
		}
		return rmse
	}

	if opts.SimplexSize == 0 {
		opts.SimplexSize = 1
	}
	res, err := Minimize(objective, x0[:], opts)
	if err != nil {
		return IDWOptions{}, res, err
	}
	return toOptions(res.X), res, nil
}
