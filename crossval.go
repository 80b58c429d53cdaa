package geostat

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/flywave/go-geostat/internal/log"
	"github.com/flywave/go-geostat/internal/parallel"
)

// CVFold holds the sample indices of one fold, both ascending.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits samples into NSplits folds of nearly equal size.
type KFold struct {
	NSplits int
}

func NewKFold(nSplits int) (*KFold, error) {
	if nSplits < 2 {
		return nil, newValidation("folds", "must be >= 2", nSplits)
	}
	return &KFold{NSplits: nSplits}, nil
}

// Assign draws a fold in [0, NSplits) for each of n samples: the samples are
// shuffled with rng and cut into consecutive runs, the first n%NSplits folds
// one sample larger.
func (kf *KFold) Assign(n int, rng *rand.Rand) ([]int, error) {
	if n < kf.NSplits {
		return nil, newValidation("folds", "more folds than samples", kf.NSplits)
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	assign := make([]int, n)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	current := 0
	for fold := 0; fold < kf.NSplits; fold++ {
		size := foldSize
		if fold < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assign[idx] = fold
		}
		current += size
	}
	return assign, nil
}

// Split turns a fold assignment into train/test index sets.
func (kf *KFold) Split(n int, rng *rand.Rand) ([]CVFold, error) {
	assign, err := kf.Assign(n, rng)
	if err != nil {
		return nil, err
	}
	folds := make([]CVFold, kf.NSplits)
	for i, f := range assign {
		for k := range folds {
			if k == f {
				folds[k].TestIndices = append(folds[k].TestIndices, i)
			} else {
				folds[k].TrainIndices = append(folds[k].TrainIndices, i)
			}
		}
	}
	return folds, nil
}

// PredictorBuilder builds a predictor from the training part of a fold.
type PredictorBuilder func(train *Dataset) (SpatialPredictor, error)

// KrigingBuilder krigs every fold with the same model.
func KrigingBuilder(model VariogramModel, opts PredictorOptions) PredictorBuilder {
	return func(train *Dataset) (SpatialPredictor, error) {
		return NewPredictor(model, train, opts)
	}
}

// RefitKrigingBuilder estimates and fits the variogram again on every
// training set, starting from initial. A fit that runs out of iterations
// still krigs with its best model.
func RefitKrigingBuilder(initial VariogramModel, vopts VariogramOptions, fopts FitOptions, popts PredictorOptions) PredictorBuilder {
	return func(train *Dataset) (SpatialPredictor, error) {
		vo := vopts
		if vo.Attribute == "" {
			vo.Attribute = popts.Attribute
		}
		bins, err := EstimateVariogram(train, vo)
		if err != nil {
			return nil, err
		}
		res, err := FitVariogram(bins, initial, fopts)
		if err != nil && !errors.Is(err, ErrFitDidNotConverge) {
			return nil, err
		}
		return NewPredictor(res.Model, train, popts)
	}
}

// IDWBuilder interpolates every fold by inverse distance weighting.
func IDWBuilder(opts IDWOptions) PredictorBuilder {
	return func(train *Dataset) (SpatialPredictor, error) {
		return NewIDW(train, opts)
	}
}

// CVOptions configures CrossValidate.
type CVOptions struct {
	Attribute string
	// Folds defaults to 5.
	Folds int
	// Workers caps the folds run at once. Zero means NumCPU.
	Workers int
}

// CVPrediction is one out-of-fold prediction.
type CVPrediction struct {
	Sample    int
	Fold      int
	Observed  float64
	Predicted float64
	Variance  float64
	Residual  float64
	Err       error
}

// FoldResult holds the metrics of one fold over its non-missing predictions.
type FoldResult struct {
	Fold    int
	N       int
	Missing int
	RMSE    float64
	R2      float64
}

// CVResult gathers the folds. MeanRMSE and MeanR2 average the finite fold
// values; RMSE and R2 are computed over all out-of-fold predictions.
type CVResult struct {
	Folds       []FoldResult
	MeanRMSE    float64
	MeanR2      float64
	RMSE        float64
	R2          float64
	Missing     int
	Predictions []CVPrediction
}

// CrossValidate runs k-fold cross-validation. Folds are drawn from rng and
// run concurrently; a builder failure aborts the run, while missing
// predictions are only excluded from the metrics and counted.
func CrossValidate(ds *Dataset, build PredictorBuilder, opts CVOptions, rng *rand.Rand) (*CVResult, error) {
	if rng == nil {
		return nil, newValidation("rng", "a random source is required", nil)
	}
	if opts.Folds == 0 {
		opts.Folds = 5
	}
	kf, err := NewKFold(opts.Folds)
	if err != nil {
		return nil, err
	}
	z, err := ds.Values(opts.Attribute)
	if err != nil {
		return nil, err
	}
	folds, err := kf.Split(ds.Len(), rng)
	if err != nil {
		return nil, err
	}

	preds := make([][]CVPrediction, len(folds))
	errs := make([]error, len(folds))
	parallel.Parallelize(len(folds), opts.Workers, func(start, end int) {
		for k := start; k < end; k++ {
			preds[k], errs[k] = validateFold(ds, z, folds[k], k, build)
		}
	})
	for k, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", k)
		}
	}

	res := &CVResult{Folds: make([]FoldResult, len(folds))}
	for k, fp := range preds {
		res.Folds[k] = foldMetrics(k, fp)
		res.Missing += res.Folds[k].Missing
		res.Predictions = append(res.Predictions, fp...)
	}
	sort.Slice(res.Predictions, func(i, j int) bool { return res.Predictions[i].Sample < res.Predictions[j].Sample })

	var rmse, r2 []float64
	for _, f := range res.Folds {
		if isFinite(f.RMSE) {
			rmse = append(rmse, f.RMSE)
		}
		if isFinite(f.R2) {
			r2 = append(r2, f.R2)
		}
	}
	res.MeanRMSE, res.MeanR2 = mean(rmse), mean(r2)
	pooled := foldMetrics(-1, res.Predictions)
	res.RMSE, res.R2 = pooled.RMSE, pooled.R2

	logger := log.Component("crossval")
	logger.Debug().
		Int("folds", len(folds)).
		Int(log.SamplesKey, ds.Len()).
		Int("missing", res.Missing).
		Float64("rmse", res.RMSE).
		Float64("r2", res.R2).
		Msg("cross-validation finished")
	return res, nil
}

func validateFold(ds *Dataset, z []float64, fold CVFold, k int, build PredictorBuilder) ([]CVPrediction, error) {
	p, err := build(ds.Subset(fold.TrainIndices))
	if err != nil {
		return nil, err
	}
	grid := PredictionGrid{Frame: ds.Frame(), Locations: make([]Location, len(fold.TestIndices))}
	for i, idx := range fold.TestIndices {
		grid.Locations[i] = Location{ID: idx, Point: ds.samples[idx].Coord}
	}
	got, err := p.Predict(grid)
	if err != nil {
		return nil, err
	}
	out := make([]CVPrediction, len(got))
	for i, pr := range got {
		idx := fold.TestIndices[i]
		out[i] = CVPrediction{
			Sample:    idx,
			Fold:      k,
			Observed:  z[idx],
			Predicted: pr.Value,
			Variance:  pr.Variance,
			Residual:  z[idx] - pr.Value,
			Err:       pr.Err,
		}
	}
	return out, nil
}

func foldMetrics(k int, preds []CVPrediction) FoldResult {
	r := FoldResult{Fold: k, RMSE: math.NaN(), R2: math.NaN()}
	var obs, pred []float64
	for _, p := range preds {
		if math.IsNaN(p.Predicted) {
			r.Missing++
			continue
		}
		obs = append(obs, p.Observed)
		pred = append(pred, p.Predicted)
	}
	r.N = len(obs)
	if r.N == 0 {
		return r
	}
	yTrue := mat.NewVecDense(r.N, obs)
	yPred := mat.NewVecDense(r.N, pred)
	r.RMSE, _ = RMSE(yTrue, yPred)
	r.R2, _ = R2Score(yTrue, yPred)
	return r
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// TrainTestSplit holds out round(testFraction·n) samples drawn with rng,
// at least one on each side.
func TrainTestSplit(ds *Dataset, testFraction float64, rng *rand.Rand) (train, test *Dataset, err error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, newValidation("test_fraction", "must be in (0, 1)", testFraction)
	}
	n := ds.Len()
	if n < 2 {
		return nil, nil, newMalformed(-1, "a split needs at least 2 samples, got %d", n)
	}
	nTest := int(math.Round(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	perm := rng.Perm(n)
	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)
	sort.Ints(testIdx)
	sort.Ints(trainIdx)
	return ds.Subset(trainIdx), ds.Subset(testIdx), nil
}
