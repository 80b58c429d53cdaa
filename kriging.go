package geostat

import (
	"math"

	"github.com/cockroachdb/errors"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/flywave/go-geostat/internal/log"
	"github.com/flywave/go-geostat/internal/parallel"
)

// Mode selects how the kriging system treats the mean of the field.
type Mode string

const (
	// Simple kriging assumes a known constant mean.
	Simple Mode = "simple"
	// Ordinary kriging filters an unknown constant mean.
	Ordinary Mode = "ordinary"
	// Universal kriging filters a polynomial trend in the coordinates.
	Universal Mode = "universal"
)

// ParseMode accepts the mode names and their gstat abbreviations.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "simple", "sk", "SK":
		return Simple, nil
	case "", "ordinary", "ok", "OK":
		return Ordinary, nil
	case "universal", "uk", "UK":
		return Universal, nil
	}
	return "", newValidation("mode", "unknown kriging mode", s)
}

const defaultParallelThreshold = 64

// PredictorOptions configures NewPredictor.
type PredictorOptions struct {
	Attribute string
	Mode      Mode
	// Mean is the known mean of simple kriging. Nil uses the sample mean.
	Mean *float64
	// TrendDegree is the polynomial degree of the universal kriging trend,
	// 1 or 2. Zero means 1.
	TrendDegree  int
	Neighborhood Neighborhood
	// Parallel is the number of locations up to which Predict stays on the
	// calling goroutine. Zero means 64.
	Parallel int
	// Workers caps the goroutines of Predict. Zero means NumCPU.
	Workers int
}

// SpatialPredictor is anything that predicts at a batch of locations.
type SpatialPredictor interface {
	Predict(grid PredictionGrid) ([]Prediction, error)
}

// KrigingWeights exposes the solved system at one location.
type KrigingWeights struct {
	// Neighbors are dataset indices, nearest first.
	Neighbors   []int
	Weights     []float64
	Multipliers []float64
	Value       float64
	Variance    float64
}

// Sum is the total weight; 1 for ordinary and universal kriging.
func (w KrigingWeights) Sum() float64 {
	return floats.Sum(w.Weights)
}

// Predictor is a kriging predictor bound to one model and one dataset.
// It is safe for concurrent use.
type Predictor struct {
	opts   PredictorOptions
	frame  Frame
	coords []vec3d.T
	values []float64
	index  *neighborIndex
	sys    *krigingSystem
	logger zerolog.Logger
}

// NewPredictor validates the model and the options and indexes the samples.
func NewPredictor(model VariogramModel, ds *Dataset, opts PredictorOptions) (*Predictor, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = Ordinary
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if err := opts.Neighborhood.validate(); err != nil {
		return nil, err
	}
	if opts.TrendDegree == 0 {
		opts.TrendDegree = 1
	}
	if opts.Mode == Universal && opts.TrendDegree != 1 && opts.TrendDegree != 2 {
		return nil, newValidation("trend_degree", "must be 1 or 2", opts.TrendDegree)
	}
	if opts.Parallel == 0 {
		opts.Parallel = defaultParallelThreshold
	}
	z, err := ds.Values(opts.Attribute)
	if err != nil {
		return nil, err
	}

	coords := ds.Coords()
	sys := &krigingSystem{model: model, mode: opts.Mode, degree: opts.TrendDegree, dims: ds.Dims()}
	sys.normalize(ds.Bounds())
	if opts.Mode == Simple {
		if opts.Mean != nil {
			sys.mean = *opts.Mean
		} else {
			sys.mean, _, _ = ds.Stats(opts.Attribute)
		}
	}

	return &Predictor{
		opts:   opts,
		frame:  ds.Frame(),
		coords: coords,
		values: z,
		index:  newNeighborIndex(coords, opts.Neighborhood),
		sys:    sys,
		logger: log.Component("kriging").With().Str("mode", string(opts.Mode)).Logger(),
	}, nil
}

// Model returns the variogram model the predictor was built with.
func (p *Predictor) Model() VariogramModel { return p.sys.model }

// Weights solves the system at loc and returns it for inspection. A
// NegativeVarianceError is returned alongside the filled weights.
func (p *Predictor) Weights(loc Location) (KrigingWeights, error) {
	nb := p.index.search(loc.Point)
	if err := p.checkNeighbors(loc, len(nb)); err != nil {
		return KrigingWeights{Neighbors: nb}, err
	}
	pts := make([]vec3d.T, len(nb))
	z := make([]float64, len(nb))
	for i, j := range nb {
		pts[i] = p.coords[j]
		z[i] = p.values[j]
	}
	w, err := p.sys.solve(pts, z, loc)
	w.Neighbors = nb
	return w, err
}

func (p *Predictor) checkNeighbors(loc Location, found int) error {
	required := p.opts.Neighborhood.NMin
	if p.opts.Mode != Simple && required < 1 {
		required = 1
	}
	if found < required {
		return newInsufficientNeighbors(loc.ID, found, required)
	}
	return nil
}

// Krige predicts at a single location. Failures are reported in the
// prediction, never returned.
func (p *Predictor) Krige(loc Location) Prediction {
	w, err := p.Weights(loc)
	if err != nil && !errors.Is(err, ErrNegativeVariance) {
		p.logger.Debug().Int("location", loc.ID).Err(err).Msg("location left missing")
		return missing(loc, len(w.Neighbors), err)
	}
	return Prediction{
		ID:        loc.ID,
		Point:     loc.Point,
		Value:     w.Value,
		Variance:  w.Variance,
		Neighbors: len(w.Neighbors),
		Err:       err,
	}
}

// Predict krigs every location of grid. Per-location failures do not abort
// the batch; results keep the order of grid.Locations.
func (p *Predictor) Predict(grid PredictionGrid) ([]Prediction, error) {
	if err := checkFrame(p.frame, grid.Frame); err != nil {
		return nil, err
	}
	out := make([]Prediction, len(grid.Locations))
	parallel.ParallelizeWithThreshold(len(out), p.opts.Parallel, p.opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = p.Krige(grid.Locations[i])
		}
	})
	logFailures(p.logger, out)
	return out, nil
}

func checkFrame(data, grid Frame) error {
	if grid == (Frame{}) || data == (Frame{}) || grid == data {
		return nil
	}
	return newValidation("frame", "prediction grid frame differs from the dataset frame "+data.Name, grid.Name)
}

func logFailures(logger zerolog.Logger, preds []Prediction) {
	var missingCount, negative int
	for _, pr := range preds {
		switch {
		case pr.Missing():
			missingCount++
		case pr.Err != nil:
			negative++
		}
	}
	if missingCount > 0 || negative > 0 {
		logger.Warn().
			Int(log.LocationsKey, len(preds)).
			Int("missing", missingCount).
			Int("negative_variance", negative).
			Msg("prediction finished with failed locations")
	}
}

// krigingSystem builds and solves the kriging equations for one model and
// mode. Trend coordinates are shifted and scaled to keep the system
// well-conditioned.
type krigingSystem struct {
	model  VariogramModel
	mode   Mode
	mean   float64
	degree int
	dims   int
	origin vec3d.T
	scale  float64
}

func (s *krigingSystem) normalize(box vec3d.Box) {
	s.origin = box.Min
	s.scale = math.Max(math.Max(box.Max[0]-box.Min[0], box.Max[1]-box.Min[1]), box.Max[2]-box.Min[2])
	if !(s.scale > 0) {
		s.scale = 1
	}
}

func (s *krigingSystem) trendTerms() int {
	switch s.mode {
	case Simple:
		return 0
	case Ordinary:
		return 1
	}
	return len(s.basis(vec3d.T{}))
}

// basis evaluates the trend functions at p.
func (s *krigingSystem) basis(p vec3d.T) []float64 {
	switch s.mode {
	case Simple:
		return nil
	case Ordinary:
		return []float64{1}
	}
	x := (p[0] - s.origin[0]) / s.scale
	y := (p[1] - s.origin[1]) / s.scale
	z := (p[2] - s.origin[2]) / s.scale
	f := []float64{1, x, y}
	if s.dims == 3 {
		f = append(f, z)
	}
	if s.degree == 2 {
		f = append(f, x*x, y*y, x*y)
		if s.dims == 3 {
			f = append(f, z*z, x*z, y*z)
		}
	}
	return f
}

// targets returns the support of loc: its block discretisation, or the
// point itself.
func targets(loc Location) []vec3d.T {
	if len(loc.Block) > 0 {
		return loc.Block
	}
	return []vec3d.T{loc.Point}
}

// solve krigs loc from the conditioning points pts with values z.
func (s *krigingSystem) solve(pts []vec3d.T, z []float64, loc Location) (KrigingWeights, error) {
	tg := targets(loc)
	nt := float64(len(tg))

	var c00 float64
	for a := range tg {
		for b := range tg {
			c00 += s.model.cov(&tg[a], &tg[b])
		}
	}
	c00 /= nt * nt

	n := len(pts)
	if n == 0 && s.mode == Simple {
		return KrigingWeights{Value: s.mean, Variance: c00}, nil
	}

	np := s.trendTerms()
	f0 := make([]float64, np)
	for k := range tg {
		for j, v := range s.basis(tg[k]) {
			f0[j] += v / nt
		}
	}

	m := n + np
	a := mat.NewDense(m, m, nil)
	b := mat.NewVecDense(m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			c := s.model.cov(&pts[i], &pts[j])
			a.Set(i, j, c)
			a.Set(j, i, c)
		}
		var c0 float64
		for k := range tg {
			c0 += s.model.cov(&pts[i], &tg[k])
		}
		b.SetVec(i, c0/nt)
		for j, v := range s.basis(pts[i]) {
			a.Set(i, n+j, v)
			a.Set(n+j, i, v)
		}
	}
	for j := 0; j < np; j++ {
		b.SetVec(n+j, f0[j])
	}

	x, cond, ok := solveSystem(a, b)
	if !ok {
		return KrigingWeights{}, newSingularSystem(loc.ID, n, cond)
	}

	w := KrigingWeights{
		Weights:     make([]float64, n),
		Multipliers: make([]float64, np),
	}
	variance := c00
	for i := 0; i < n; i++ {
		wi := x.AtVec(i)
		w.Weights[i] = wi
		variance -= wi * b.AtVec(i)
		if s.mode == Simple {
			w.Value += wi * (z[i] - s.mean)
		} else {
			w.Value += wi * z[i]
		}
	}
	if s.mode == Simple {
		w.Value += s.mean
	}
	for j := 0; j < np; j++ {
		mu := x.AtVec(n + j)
		w.Multipliers[j] = mu
		variance -= mu * f0[j]
	}
	var err error
	w.Variance, err = checkVariance(loc.ID, variance, c00)
	return w, err
}

// checkVariance rejects a kriging variance below -1e-6·c00 and clamps the
// round-off left at sampled locations to zero.
func checkVariance(loc int, variance, c00 float64) (float64, error) {
	if variance < -1e-6*c00 {
		return variance, errors.WithStack(&NegativeVarianceError{Location: loc, Variance: variance})
	}
	if variance < 0 {
		logger := log.Component("kriging")
		logger.Debug().
			Int("location", loc).
			Float64("variance", variance).
			Msg("clamped negative variance to zero")
		return 0, nil
	}
	return variance, nil
}
