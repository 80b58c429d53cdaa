package geostat

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/flywave/go-geostat/internal/log"
)

// FitWeighting selects the per-bin weight of the least squares fit.
type FitWeighting string

const (
	// WeightPairs weights a bin by its pair count.
	WeightPairs FitWeighting = "pairs"
	// WeightPairsOverDistSq weights a bin by pairs/h², gstat's default.
	WeightPairsOverDistSq FitWeighting = "pairs-h2"
	// WeightNone gives every bin the same weight.
	WeightNone FitWeighting = "none"
)

// FitOptions configures FitVariogram.
type FitOptions struct {
	Weighting FitWeighting
	// MaxIterations caps the Levenberg–Marquardt loop. Zero means 200.
	MaxIterations int
	// Tolerance is the relative SSE decrease below which the fit is
	// considered converged. Zero means 1e-10.
	Tolerance float64

	FixNugget     bool
	FixSill       bool
	FixRange      bool
	FixAnisotropy bool
}

// FitResult carries the fitted model and how the optimiser got there.
type FitResult struct {
	Model      VariogramModel
	Converged  bool
	Iterations int
	SSE        float64
	InitialSSE float64
}

const (
	pNugget = iota
	pSill
	pRange
	pAngle
	pRatio
	numParams
)

type fitProblem struct {
	shape     ModelType
	bins      []LagBin
	weights   []float64
	aniso     bool
	free      []int
	rangeMin  float64
	residuals []float64
}

func (f *fitProblem) model(p []float64) VariogramModel {
	m := VariogramModel{Shape: f.shape, Nugget: p[pNugget], Sill: p[pSill], Range: p[pRange]}
	if f.aniso {
		m.Anisotropy = &Anisotropy{Angle: p[pAngle], Ratio: p[pRatio]}
	}
	return m
}

// residual fills f.residuals and returns the weighted SSE.
func (f *fitProblem) residual(p []float64, dst []float64) float64 {
	m := f.model(p)
	var sse float64
	for k, b := range f.bins {
		r := math.Sqrt(f.weights[k]) * (m.directional(b.Distance, b.Direction) - b.Gamma)
		dst[k] = r
		sse += r * r
	}
	return sse
}

// project pulls a proposal back onto the feasible set.
func (f *fitProblem) project(p []float64) {
	p[pNugget] = math.Max(p[pNugget], 0)
	p[pSill] = math.Max(p[pSill], 0)
	p[pRange] = math.Max(p[pRange], f.rangeMin)
	if f.aniso {
		p[pRatio] = math.Min(math.Max(p[pRatio], 1e-3), 1)
		a := math.Mod(p[pAngle], 180)
		if a < 0 {
			a += 180
		}
		p[pAngle] = a
	}
}

func binWeights(bins []LagBin, w FitWeighting) ([]float64, error) {
	out := make([]float64, len(bins))
	for k, b := range bins {
		switch w {
		case "", WeightPairs:
			out[k] = float64(b.Pairs)
		case WeightPairsOverDistSq:
			h := math.Max(b.Distance, 1e-12)
			out[k] = float64(b.Pairs) / (h * h)
		case WeightNone:
			out[k] = 1
		default:
			return nil, newValidation("weighting", "unknown weighting", w)
		}
	}
	return out, nil
}

// FitVariogram fits initial's shape to the empirical bins by weighted
// nonlinear least squares (Levenberg–Marquardt). An infeasible initial guess
// is rejected before the optimiser starts. When the iteration budget runs
// out the best model found is returned with Converged false and a
// FitDidNotConvergeError.
func FitVariogram(bins []LagBin, initial VariogramModel, opts FitOptions) (FitResult, error) {
	logger := log.Component("fit")

	if err := initial.Validate(); err != nil {
		return FitResult{Model: initial}, err
	}
	if len(bins) == 0 {
		return FitResult{Model: initial}, newValidation("bins", "no lag bins to fit", 0)
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = 200
	}
	if opts.MaxIterations < 0 {
		return FitResult{Model: initial}, newValidation("max_iterations", "must be > 0", opts.MaxIterations)
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = 1e-10
	}
	weights, err := binWeights(bins, opts.Weighting)
	if err != nil {
		return FitResult{Model: initial}, err
	}

	maxDist := 0.0
	directions := map[float64]bool{}
	for _, b := range bins {
		maxDist = math.Max(maxDist, b.Distance)
		directions[b.Direction] = true
	}

	prob := &fitProblem{
		shape:     initial.Shape,
		bins:      bins,
		weights:   weights,
		aniso:     initial.Anisotropy != nil,
		rangeMin:  1e-9 * math.Max(maxDist, 1),
		residuals: make([]float64, len(bins)),
	}
	p := make([]float64, numParams)
	p[pNugget], p[pSill], p[pRange] = initial.Nugget, initial.Sill, initial.Range
	if prob.aniso {
		p[pAngle], p[pRatio] = initial.Anisotropy.Angle, initial.Anisotropy.Ratio
	}

	if !opts.FixNugget {
		prob.free = append(prob.free, pNugget)
	}
	if initial.Shape != Nugget {
		if !opts.FixSill {
			prob.free = append(prob.free, pSill)
		}
		if !opts.FixRange {
			prob.free = append(prob.free, pRange)
		}
		// Angle and ratio are only identifiable from more than one direction.
		if prob.aniso && !opts.FixAnisotropy && len(directions) > 1 {
			prob.free = append(prob.free, pAngle, pRatio)
		}
	}

	scale := 0.0
	for k, b := range bins {
		scale += weights[k] * b.Gamma * b.Gamma
	}
	exact := 1e-12 * math.Max(scale, math.SmallestNonzeroFloat64)

	sse0 := prob.residual(p, prob.residuals)
	res := FitResult{Model: initial, SSE: sse0, InitialSSE: sse0}
	if len(prob.free) == 0 || sse0 <= exact {
		res.Converged = true
		return res, nil
	}

	var (
		nb       = len(bins)
		nf       = len(prob.free)
		sse      = sse0
		lambda   = 1e-3
		improved = false
		jac      = mat.NewDense(nb, nf, nil)
		trial    = make([]float64, numParams)
		rTrial   = make([]float64, nb)
		grad     = mat.NewVecDense(nf, nil)
		delta    = mat.NewVecDense(nf, nil)
		jtj      mat.Dense
	)

	for res.Iterations = 0; res.Iterations < opts.MaxIterations; res.Iterations++ {
		prob.jacobian(p, jac, rTrial)
		jtj.Mul(jac.T(), jac)
		grad.MulVec(jac.T(), mat.NewVecDense(nb, prob.residuals))

		maxDiag := 0.0
		for i := 0; i < nf; i++ {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		floor := 1e-12 * math.Max(maxDiag, 1)

		accepted := false
		var sseNew float64
		for try := 0; try < 16 && !accepted; try++ {
			a := mat.NewSymDense(nf, nil)
			for i := 0; i < nf; i++ {
				for j := i; j < nf; j++ {
					a.SetSym(i, j, jtj.At(i, j))
				}
				a.SetSym(i, i, jtj.At(i, i)+lambda*math.Max(jtj.At(i, i), floor))
			}
			var chol mat.Cholesky
			if ok := chol.Factorize(a); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(delta, grad); err != nil {
				lambda *= 10
				continue
			}
			copy(trial, p)
			for i, k := range prob.free {
				trial[k] -= delta.AtVec(i)
			}
			prob.project(trial)
			sseNew = prob.residual(trial, rTrial)
			if sseNew < sse {
				accepted = true
				lambda = math.Max(lambda/10, 1e-12)
			} else {
				lambda *= 10
			}
		}
		if !accepted {
			// No feasible descent step: p is a local minimum.
			res.Converged = true
			break
		}

		improved = true
		copy(p, trial)
		copy(prob.residuals, rTrial)
		drop := sse - sseNew
		sse = sseNew
		if drop <= opts.Tolerance*sse || sse <= exact {
			res.Iterations++
			res.Converged = true
			break
		}
	}

	res.Model = prob.model(p)
	res.SSE = sse
	if !improved {
		return res, errors.WithStack(&FitError{Reason: "no feasible parameter set improves on the initial guess"})
	}
	if !res.Converged {
		err := errors.WithStack(&FitDidNotConvergeError{Iterations: res.Iterations, SSE: sse, Best: res.Model})
		log.Err(logger.Warn(), err).Msg("variogram fit stopped at the iteration limit")
		return res, err
	}
	logger.Debug().
		Str("shape", string(res.Model.Shape)).
		Float64("nugget", res.Model.Nugget).
		Float64("sill", res.Model.Sill).
		Float64("range", res.Model.Range).
		Int(log.IterationsKey, res.Iterations).
		Float64("sse", sse).
		Msg("variogram fitted")
	return res, nil
}

// jacobian fills jac with forward differences of the residuals in the free
// parameters; scratch holds one residual vector.
func (f *fitProblem) jacobian(p []float64, jac *mat.Dense, scratch []float64) {
	q := make([]float64, len(p))
	for c, k := range f.free {
		copy(q, p)
		step := 1e-7 * math.Max(math.Abs(p[k]), 1e-3*f.scaleOf(k))
		q[k] += step
		f.residual(q, scratch)
		for r := range scratch {
			jac.Set(r, c, (scratch[r]-f.residuals[r])/step)
		}
	}
}

func (f *fitProblem) scaleOf(k int) float64 {
	switch k {
	case pRange:
		return math.Max(f.rangeMin*1e9, 1)
	case pAngle:
		return 180
	case pRatio:
		return 1
	}
	g := make([]float64, len(f.bins))
	for i, b := range f.bins {
		g[i] = b.Gamma
	}
	return math.Max(floats.Max(g), 1e-12)
}

// InitialGuess derives a starting model from the empirical bins: the nugget
// from the first lag, the total sill from the mean of the last three lags and
// a third of the largest lag distance as range.
func InitialGuess(bins []LagBin, shape ModelType) (VariogramModel, error) {
	if len(bins) == 0 {
		return VariogramModel{}, newValidation("bins", "no lag bins", 0)
	}
	first := bins[0]
	var maxDist float64
	for _, b := range bins {
		if b.Distance < first.Distance {
			first = b
		}
		maxDist = math.Max(maxDist, b.Distance)
	}

	sorted := append([]LagBin(nil), bins...)
	sortByDistance(sorted)
	tail := sorted
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	var total float64
	for _, b := range tail {
		total += b.Gamma
	}
	total /= float64(len(tail))

	m := VariogramModel{Shape: shape, Range: math.Max(maxDist/3, 1e-9)}
	if shape == Nugget {
		var mean float64
		for _, b := range bins {
			mean += b.Gamma
		}
		m.Nugget = mean / float64(len(bins))
		return m, nil
	}
	m.Nugget = math.Max(math.Min(first.Gamma, total), 0)
	m.Sill = math.Max(total-m.Nugget, 1e-6*math.Max(total, 1e-12))
	return m, nil
}

func sortByDistance(bins []LagBin) {
	sort.SliceStable(bins, func(i, j int) bool { return bins[i].Distance < bins[j].Distance })
}
