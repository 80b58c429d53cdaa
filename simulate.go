package geostat

import (
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/flywave/go-geostat/internal/log"
	"github.com/flywave/go-geostat/internal/parallel"
)

// SimulationMethod selects the draw made at each node.
type SimulationMethod string

const (
	// SequentialGaussian draws from a normal with the kriged mean and
	// variance.
	SequentialGaussian SimulationMethod = "sgs"
	// SequentialIndicator draws 0 or 1 with the kriged exceedance
	// probability.
	SequentialIndicator SimulationMethod = "sis"
)

// SimulationOptions configures Simulate.
type SimulationOptions struct {
	Attribute string
	Method    SimulationMethod
	// Threshold turns the attribute into its 0/1 exceedance indicator before
	// sequential indicator simulation. Nil uses the values as given.
	Threshold *float64
	// NSim is the number of realisations. Zero means 1.
	NSim         int
	Mode         Mode
	Mean         *float64
	TrendDegree  int
	Neighborhood Neighborhood
	// Workers caps the realisations run at once. Zero means NumCPU.
	Workers int
}

// Realization is one simulated field, in grid order. Nodes that could not
// be kriged are NaN and counted in Missing.
type Realization struct {
	Index   int
	Values  []float64
	Missing int
}

// Simulate produces conditional realisations on grid. Each realisation
// visits the nodes along its own random path, kriging from the samples plus
// the nodes simulated before it. Realisations run concurrently from
// generators seeded by rng, so a given rng state reproduces the output.
func Simulate(model VariogramModel, ds *Dataset, grid PredictionGrid, opts SimulationOptions, rng *rand.Rand) ([]Realization, error) {
	if rng == nil {
		return nil, newValidation("rng", "a random source is required", nil)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if err := checkFrame(ds.Frame(), grid.Frame); err != nil {
		return nil, err
	}
	switch opts.Method {
	case "":
		opts.Method = SequentialGaussian
	case SequentialGaussian, SequentialIndicator:
	default:
		return nil, newValidation("method", "unknown simulation method", opts.Method)
	}
	if opts.NSim == 0 {
		opts.NSim = 1
	}
	if opts.NSim < 0 {
		return nil, newValidation("nsim", "must be > 0", opts.NSim)
	}
	if opts.Mode == "" {
		opts.Mode = Ordinary
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.TrendDegree == 0 {
		opts.TrendDegree = 1
	}
	if err := opts.Neighborhood.validate(); err != nil {
		return nil, err
	}
	for _, loc := range grid.Locations {
		if len(loc.Block) > 0 {
			return nil, newValidation("grid", "block support cannot be simulated", loc.ID)
		}
	}

	z, err := ds.Values(opts.Attribute)
	if err != nil {
		return nil, err
	}
	if opts.Threshold != nil {
		for i, v := range z {
			if v > *opts.Threshold {
				z[i] = 1
			} else {
				z[i] = 0
			}
		}
	}

	sys := &krigingSystem{model: model, mode: opts.Mode, degree: opts.TrendDegree, dims: ds.Dims()}
	sys.normalize(ds.Bounds())
	if opts.Mode == Simple {
		if opts.Mean != nil {
			sys.mean = *opts.Mean
		} else {
			sys.mean = stat.Mean(z, nil)
		}
	}

	seeds := make([][2]uint64, opts.NSim)
	for i := range seeds {
		seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
	}

	sim := &simulation{sys: sys, opts: opts, coords: ds.Coords(), values: z, grid: grid}
	out := make([]Realization, opts.NSim)
	parallel.Parallelize(opts.NSim, opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = sim.run(i, rand.New(rand.NewPCG(seeds[i][0], seeds[i][1])))
		}
	})

	logger := log.Component("simulate")
	for _, r := range out {
		if r.Missing > 0 {
			logger.Warn().Int("realization", r.Index).Int("missing", r.Missing).
				Int(log.LocationsKey, len(grid.Locations)).Msg("realization has unsimulated nodes")
		}
	}
	return out, nil
}

type simulation struct {
	sys    *krigingSystem
	opts   SimulationOptions
	coords []vec3d.T
	values []float64
	grid   PredictionGrid
}

func (s *simulation) run(index int, r *rand.Rand) Realization {
	n := len(s.grid.Locations)
	coords := make([]vec3d.T, len(s.coords), len(s.coords)+n)
	copy(coords, s.coords)
	values := make([]float64, len(s.values), len(s.values)+n)
	copy(values, s.values)

	res := Realization{Index: index, Values: make([]float64, n)}
	for _, k := range r.Perm(n) {
		loc := s.grid.Locations[k]
		v, conditioned, err := s.node(coords, values, loc, r)
		if err != nil {
			res.Values[k] = math.NaN()
			res.Missing++
			continue
		}
		res.Values[k] = v
		if !conditioned {
			coords = append(coords, loc.Point)
			values = append(values, v)
		}
	}
	return res
}

// node simulates one location. conditioned reports a node that coincides
// with a conditioning point and takes its value; adding it again would make
// later systems singular.
func (s *simulation) node(coords []vec3d.T, values []float64, loc Location, r *rand.Rand) (v float64, conditioned bool, err error) {
	nb := bruteNeighbors(coords, loc.Point, s.opts.Neighborhood)
	if len(nb) > 0 && coords[nb[0]] == loc.Point {
		return values[nb[0]], true, nil
	}
	required := s.opts.Neighborhood.NMin
	if s.opts.Mode != Simple && required < 1 {
		required = 1
	}
	if len(nb) < required {
		return 0, false, newInsufficientNeighbors(loc.ID, len(nb), required)
	}
	pts := make([]vec3d.T, len(nb))
	z := make([]float64, len(nb))
	for i, j := range nb {
		pts[i] = coords[j]
		z[i] = values[j]
	}
	w, err := s.sys.solve(pts, z, loc)
	if err != nil && !errors.Is(err, ErrNegativeVariance) {
		return 0, false, err
	}

	switch s.opts.Method {
	case SequentialIndicator:
		p := math.Min(math.Max(w.Value, 0), 1)
		return distuv.Bernoulli{P: p, Src: r}.Rand(), false, nil
	default:
		sigma := math.Sqrt(math.Max(w.Variance, 0))
		if sigma == 0 {
			return w.Value, false, nil
		}
		return distuv.Normal{Mu: w.Value, Sigma: sigma, Src: r}.Rand(), false, nil
	}
}
