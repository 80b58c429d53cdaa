package geostat

import (
	"math"
	"sort"
)

// Estimator selects the semivariance estimator.
type Estimator string

const (
	// Matheron is the classical method-of-moments estimator.
	Matheron Estimator = "matheron"
	// CressieHawkins is the robust estimator built on square-rooted
	// absolute differences.
	CressieHawkins Estimator = "cressie"
)

// VariogramOptions configures EstimateVariogram and VariogramCloud.
type VariogramOptions struct {
	Attribute string
	// Indicator, when set, replaces the attribute by its 0/1 exceedance
	// transform against the threshold.
	Indicator *float64
	// Width of the lag classes. Zero picks Cutoff/15.
	Width float64
	// Cutoff is the largest pair distance kept. Zero means the dataset
	// diameter.
	Cutoff float64
	// Directions are sector azimuths in degrees clockwise from north. Empty
	// means omnidirectional.
	Directions []float64
	// Tolerance is the sector half-width in degrees. Zero means 22.5.
	Tolerance float64
	Estimator Estimator
}

// LagBin is one lag class of an empirical variogram. Distance is the mean
// separation of the pairs in the class.
type LagBin struct {
	Index     int
	Direction float64
	Lower     float64
	Upper     float64
	Distance  float64
	Gamma     float64
	Pairs     int

	sector int
}

// PairRecord is one entry of a variogram cloud.
type PairRecord struct {
	I, J     int
	Distance float64
	Bearing  float64
	Gamma    float64
}

type variogramInput struct {
	opts   VariogramOptions
	values []float64
	dirs   []float64
}

func prepareVariogram(ds *Dataset, opts VariogramOptions) (*variogramInput, error) {
	z, err := ds.Values(opts.Attribute)
	if err != nil {
		return nil, err
	}
	if ds.Len() < 2 {
		return nil, newMalformed(-1, "variogram needs at least 2 samples, got %d", ds.Len())
	}
	if opts.Indicator != nil {
		thr := *opts.Indicator
		for i, v := range z {
			if v > thr {
				z[i] = 1
			} else {
				z[i] = 0
			}
		}
	}
	if opts.Cutoff < 0 || !isFinite(opts.Cutoff) {
		return nil, newValidation("cutoff", "must be >= 0", opts.Cutoff)
	}
	if opts.Cutoff == 0 {
		opts.Cutoff = ds.Diameter()
	}
	if opts.Width < 0 || !isFinite(opts.Width) {
		return nil, newValidation("width", "must be >= 0", opts.Width)
	}
	if opts.Width == 0 {
		opts.Width = opts.Cutoff / 15
	}
	if opts.Width == 0 {
		return nil, newMalformed(-1, "all samples share one location")
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = 22.5
	}
	if opts.Tolerance < 0 || opts.Tolerance > 90 {
		return nil, newValidation("tolerance", "must be in [0, 90]", opts.Tolerance)
	}
	switch opts.Estimator {
	case "":
		opts.Estimator = Matheron
	case Matheron, CressieHawkins:
	default:
		return nil, newValidation("estimator", "unknown estimator", opts.Estimator)
	}

	dirs := make([]float64, len(opts.Directions))
	for i, d := range opts.Directions {
		d = math.Mod(d, 180)
		if d < 0 {
			d += 180
		}
		dirs[i] = d
	}
	return &variogramInput{opts: opts, values: z, dirs: dirs}, nil
}

// sector returns the index of the nearest direction sector, -1 when the
// bearing falls outside every sector, or 0 when no sectors are requested.
func (in *variogramInput) sector(b float64) int {
	if len(in.dirs) == 0 {
		return 0
	}
	best, gap := -1, math.Inf(1)
	for k, d := range in.dirs {
		if g := angleGap(b, d); g <= in.opts.Tolerance && g < gap {
			best, gap = k, g
		}
	}
	return best
}

type binKey struct {
	sector int
	lag    int
}

type binAcc struct {
	sumDist float64
	sum     float64
	pairs   int
}

// EstimateVariogram computes the binned empirical variogram of one
// attribute. All n(n-1)/2 pairs are visited, so the cost grows with the
// square of the sample count; it is meant for datasets of a few thousand
// samples at most. Bins without pairs are left out.
func EstimateVariogram(ds *Dataset, opts VariogramOptions) ([]LagBin, error) {
	in, err := prepareVariogram(ds, opts)
	if err != nil {
		return nil, err
	}
	opts = in.opts

	acc := make(map[binKey]*binAcc)
	n := ds.Len()
	for i := 0; i < n; i++ {
		pi := ds.samples[i].Coord
		for j := 0; j < i; j++ {
			pj := ds.samples[j].Coord
			h := distance(&pi, &pj)
			if h > opts.Cutoff {
				continue
			}
			s := in.sector(bearing(&pj, &pi))
			if s < 0 {
				continue
			}
			k := binKey{sector: s, lag: int(math.Floor(h / opts.Width))}
			a := acc[k]
			if a == nil {
				a = &binAcc{}
				acc[k] = a
			}
			d := in.values[i] - in.values[j]
			switch opts.Estimator {
			case CressieHawkins:
				a.sum += math.Sqrt(math.Abs(d))
			default:
				a.sum += 0.5 * d * d
			}
			a.sumDist += h
			a.pairs++
		}
	}

	bins := make([]LagBin, 0, len(acc))
	for k, a := range acc {
		var gamma float64
		np := float64(a.pairs)
		switch opts.Estimator {
		case CressieHawkins:
			gamma = 0.5 * math.Pow(a.sum/np, 4) / (0.457 + 0.494/np)
		default:
			gamma = a.sum / np
		}
		var dir float64
		if len(in.dirs) > 0 {
			dir = in.dirs[k.sector]
		}
		bins = append(bins, LagBin{
			Index:     k.lag,
			Direction: dir,
			Lower:     float64(k.lag) * opts.Width,
			Upper:     float64(k.lag+1) * opts.Width,
			Distance:  a.sumDist / np,
			Gamma:     gamma,
			Pairs:     a.pairs,
			sector:    k.sector,
		})
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].sector != bins[j].sector {
			return bins[i].sector < bins[j].sector
		}
		return bins[i].Index < bins[j].Index
	})
	return bins, nil
}

// VariogramCloud returns one record per pair kept by the cutoff and the
// direction sectors. It is meant for diagnostic plots, not for fitting.
func VariogramCloud(ds *Dataset, opts VariogramOptions) ([]PairRecord, error) {
	in, err := prepareVariogram(ds, opts)
	if err != nil {
		return nil, err
	}

	var out []PairRecord
	n := ds.Len()
	for i := 0; i < n; i++ {
		pi := ds.samples[i].Coord
		for j := 0; j < i; j++ {
			pj := ds.samples[j].Coord
			h := distance(&pi, &pj)
			if h > in.opts.Cutoff {
				continue
			}
			b := bearing(&pj, &pi)
			if in.sector(b) < 0 {
				continue
			}
			d := in.values[i] - in.values[j]
			out = append(out, PairRecord{I: i, J: j, Distance: h, Bearing: b, Gamma: 0.5 * d * d})
		}
	}
	return out, nil
}
