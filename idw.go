package geostat

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/rs/zerolog"

	"github.com/flywave/go-geostat/internal/log"
	"github.com/flywave/go-geostat/internal/parallel"
)

// IDWOptions configures inverse distance weighting.
type IDWOptions struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	// Power is the distance exponent. Zero means 2.
	Power float64 `json:"power" yaml:"power"`
	// NMax limits the weighted samples to the nearest ones. Zero uses all.
	NMax    int     `json:"nmax" yaml:"nmax"`
	MaxDist float64 `json:"maxdist" yaml:"maxdist"`
	// Parallel and Workers as in PredictorOptions.
	Parallel int `json:"-" yaml:"-"`
	Workers  int `json:"-" yaml:"-"`
}

// IDW predicts Σ z_i d_i^-p / Σ d_i^-p over the neighbourhood. It reports no
// variance.
type IDW struct {
	opts   IDWOptions
	frame  Frame
	coords []vec3d.T
	values []float64
	index  *neighborIndex
	logger zerolog.Logger
}

func NewIDW(ds *Dataset, opts IDWOptions) (*IDW, error) {
	if opts.Power == 0 {
		opts.Power = 2
	}
	if !(opts.Power > 0) || math.IsInf(opts.Power, 1) {
		return nil, newValidation("power", "must be finite and > 0", opts.Power)
	}
	hood := Neighborhood{NMax: opts.NMax, MaxDist: opts.MaxDist}
	if err := hood.validate(); err != nil {
		return nil, err
	}
	if opts.Parallel == 0 {
		opts.Parallel = defaultParallelThreshold
	}
	z, err := ds.Values(opts.Attribute)
	if err != nil {
		return nil, err
	}
	coords := ds.Coords()
	return &IDW{
		opts:   opts,
		frame:  ds.Frame(),
		coords: coords,
		values: z,
		index:  newNeighborIndex(coords, hood),
		logger: log.Component("idw"),
	}, nil
}

// At interpolates at one location. A location on top of samples returns
// their mean value.
func (w *IDW) At(loc Location) Prediction {
	nb := w.index.search(loc.Point)
	if len(nb) == 0 {
		return missing(loc, 0, newInsufficientNeighbors(loc.ID, 0, 1))
	}

	var num, den, exact float64
	var coincident int
	for _, i := range nb {
		d := distance(&loc.Point, &w.coords[i])
		if d == 0 {
			exact += w.values[i]
			coincident++
			continue
		}
		wt := math.Pow(d, -w.opts.Power)
		num += wt * w.values[i]
		den += wt
	}

	p := Prediction{ID: loc.ID, Point: loc.Point, Variance: math.NaN(), Neighbors: len(nb)}
	switch {
	case coincident > 0:
		p.Value = exact / float64(coincident)
	case den > 0 && isFinite(num/den):
		p.Value = num / den
	default:
		// Weights underflowed: fall back to the nearest sample.
		p.Value = w.values[nb[0]]
	}
	return p
}

// Predict interpolates every location of grid.
func (w *IDW) Predict(grid PredictionGrid) ([]Prediction, error) {
	if err := checkFrame(w.frame, grid.Frame); err != nil {
		return nil, err
	}
	out := make([]Prediction, len(grid.Locations))
	parallel.ParallelizeWithThreshold(len(out), w.opts.Parallel, w.opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = w.At(grid.Locations[i])
		}
	})
	logFailures(w.logger, out)
	return out, nil
}
