package geostat

import (
	"math"
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expModel = VariogramModel{Shape: Exponential, Nugget: 0.1, Sill: 1, Range: 30}

func TestOrdinaryWeightsSumToOne(t *testing.T) {
	ds := randomField(t, 50, 100, 1)
	for _, mode := range []Mode{Ordinary, Universal} {
		k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Mode: mode, Neighborhood: Neighborhood{NMax: 12}})
		require.NoError(t, err)
		for _, p := range []vec3d.T{{10, 10, 0}, {50, 50, 0}, {99, 1, 0}} {
			w, err := k.Weights(Location{Point: p})
			require.NoError(t, err)
			assert.Len(t, w.Neighbors, 12)
			assert.InDelta(t, 1, w.Sum(), 1e-9, "%s at %v", mode, p)
			assert.GreaterOrEqual(t, w.Variance, 0.0)
		}
	}
}

func TestSymmetricWeights(t *testing.T) {
	a := assert.New(t)

	ds := newTestDataset(t, [][2]float64{{-1, 0}, {1, 0}}, []float64{2, 4})
	k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z"})
	require.NoError(t, err)
	w, err := k.Weights(Location{})
	require.NoError(t, err)
	a.InDelta(0.5, w.Weights[0], 1e-12)
	a.InDelta(0.5, w.Weights[1], 1e-12)
	a.InDelta(3, w.Value, 1e-12)
	a.Len(w.Multipliers, 1)
}

func TestExactInterpolation(t *testing.T) {
	ds := randomField(t, 30, 100, 2)
	z, _ := ds.Values("z")
	for _, m := range []VariogramModel{
		{Shape: Spherical, Sill: 2, Range: 40},
		{Shape: Exponential, Nugget: 0.5, Sill: 2, Range: 40},
	} {
		for _, mode := range []Mode{Simple, Ordinary, Universal} {
			k, err := NewPredictor(m, ds, PredictorOptions{Attribute: "z", Mode: mode})
			require.NoError(t, err)
			preds, err := k.Predict(SampleGrid(ds))
			require.NoError(t, err)
			for i, p := range preds {
				require.NoError(t, p.Err)
				assert.InDelta(t, z[i], p.Value, 1e-6, "%s %s sample %d", m.Shape, mode, i)
				assert.InDelta(t, 0, p.Variance, 1e-6)
			}
		}
	}
}

func TestInsufficientNeighbors(t *testing.T) {
	a := assert.New(t)

	ds := newTestDataset(t, [][2]float64{{0, 0}, {1, 0}, {0, 1}, {50, 50}}, []float64{1, 2, 3, 4})
	k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Neighborhood: Neighborhood{MaxDist: 5, NMin: 2}})
	require.NoError(t, err)

	near := k.Krige(Location{ID: 7, Point: vec3d.T{0.5, 0.5, 0}})
	a.NoError(near.Err)
	a.Equal(3, near.Neighbors)

	far := k.Krige(Location{ID: 8, Point: vec3d.T{50, 48, 0}})
	a.True(far.Missing())
	a.True(math.IsNaN(far.Variance))
	a.ErrorIs(far.Err, ErrInsufficientNeighbors)
	var ie *InsufficientNeighborsError
	require.ErrorAs(t, far.Err, &ie)
	a.Equal(8, ie.Location)
	a.Equal(1, ie.Found)

	empty := k.Krige(Location{ID: 9, Point: vec3d.T{200, 200, 0}})
	a.ErrorIs(empty.Err, ErrInsufficientNeighbors)
}

func TestDuplicateSamplesAreSingular(t *testing.T) {
	a := assert.New(t)

	ds := newTestDataset(t, [][2]float64{{0, 0}, {0, 0}, {10, 0}}, []float64{1, 2, 3})
	k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z"})
	require.NoError(t, err)
	p := k.Krige(Location{Point: vec3d.T{5, 0, 0}})
	a.ErrorIs(p.Err, ErrSingularSystem)
	a.True(p.Missing())

	// Two neighbours keep one copy of the duplicated location.
	k, err = NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Neighborhood: Neighborhood{NMax: 2}})
	require.NoError(t, err)
	p = k.Krige(Location{Point: vec3d.T{9, 0, 0}})
	a.NoError(p.Err)
	a.False(p.Missing())

	p = k.Krige(Location{Point: vec3d.T{1, 0, 0}})
	a.ErrorIs(p.Err, ErrSingularSystem)
}

// linearTrendDataset is ten samples of 3 + 2x - y without noise.
func linearTrendDataset(t testing.TB) (*Dataset, func(x, y float64) float64) {
	t.Helper()
	trend := func(x, y float64) float64 { return 3 + 2*x - y }
	xy := [][2]float64{{0, 0}, {10, 1}, {3, 8}, {7, 7}, {2, 4}, {9, 9}, {5, 2}, {1, 9}, {8, 3}, {4, 6}}
	z := make([]float64, len(xy))
	for i, p := range xy {
		z[i] = trend(p[0], p[1])
	}
	return newTestDataset(t, xy, z), trend
}

func TestUniversalRecoversLinearTrend(t *testing.T) {
	ds, trend := linearTrendDataset(t)

	for _, degree := range []int{1, 2} {
		k, err := NewPredictor(VariogramModel{Shape: Spherical, Nugget: 0.1, Sill: 1, Range: 5}, ds,
			PredictorOptions{Attribute: "z", Mode: Universal, TrendDegree: degree})
		require.NoError(t, err)
		for _, q := range [][2]float64{{5, 5}, {0.5, 9}, {9.5, 0.5}, {6, 4}} {
			p := k.Krige(Location{Point: vec3d.T{q[0], q[1], 0}})
			require.NoError(t, p.Err)
			assert.InDelta(t, trend(q[0], q[1]), p.Value, 1e-6, "degree %d at %v", degree, q)
		}
	}
}

func TestLinearTrendCrossValidation(t *testing.T) {
	a := assert.New(t)

	ds, trend := linearTrendDataset(t)
	m := VariogramModel{Shape: Exponential, Sill: 1, Range: 5}

	res, err := CrossValidate(ds, KrigingBuilder(m, PredictorOptions{Attribute: "z", Mode: Universal}),
		CVOptions{Attribute: "z", Folds: 5}, testRand(1))
	require.NoError(t, err)
	a.Zero(res.Missing)
	a.Len(res.Predictions, 10)
	a.InDelta(0, res.RMSE, 1e-6)

	// Ordinary kriging reverts towards the local mean but stays close to
	// the plane inside the data.
	k, err := NewPredictor(m, ds, PredictorOptions{Attribute: "z"})
	require.NoError(t, err)
	p := k.Krige(Location{Point: vec3d.T{5, 5, 0}})
	require.NoError(t, p.Err)
	a.InDelta(trend(5, 5), p.Value, 0.05)
}

func TestNegativeVariance(t *testing.T) {
	a := assert.New(t)

	// A negative partial sill pushes the semivariance above the total sill,
	// so the covariance is not positive definite.
	m := VariogramModel{Shape: Exponential, Nugget: 2, Sill: -1, Range: 10}
	s := &krigingSystem{model: m, mode: Simple}
	pts := []vec3d.T{{0, 0, 0}, {1, 0, 0}}
	w, err := s.solve(pts, []float64{1, 3}, Location{ID: 4, Point: vec3d.T{0.5, 0, 0}})
	require.Error(t, err)
	a.ErrorIs(err, ErrNegativeVariance)
	var ne *NegativeVarianceError
	require.ErrorAs(t, err, &ne)
	a.Equal(4, ne.Location)
	a.Less(ne.Variance, -1.0)
	a.Equal(ne.Variance, w.Variance)
	a.Len(w.Weights, 2)
	a.InDelta(w.Weights[0], w.Weights[1], 1e-9)
}

func TestCheckVarianceClampsRoundOff(t *testing.T) {
	a := assert.New(t)
	buf := captureLog(t)

	v, err := checkVariance(3, -1e-9, 1)
	a.NoError(err)
	a.Zero(v)
	a.Contains(buf.String(), "clamped negative variance to zero")

	v, err = checkVariance(3, 0.25, 1)
	a.NoError(err)
	a.Equal(0.25, v)

	v, err = checkVariance(3, -1e-3, 1)
	a.ErrorIs(err, ErrNegativeVariance)
	a.Equal(-1e-3, v)
}

func TestSimpleKrigingFarFromData(t *testing.T) {
	a := assert.New(t)

	ds := newTestDataset(t, [][2]float64{{0, 0}, {1, 1}, {2, 0}}, []float64{5, 6, 7})
	m := VariogramModel{Shape: Spherical, Nugget: 0.5, Sill: 2, Range: 5}
	mean := 10.0
	k, err := NewPredictor(m, ds, PredictorOptions{Attribute: "z", Mode: Simple, Mean: &mean})
	require.NoError(t, err)

	p := k.Krige(Location{Point: vec3d.T{100, 100, 0}})
	require.NoError(t, p.Err)
	a.InDelta(10, p.Value, 1e-12)
	a.InDelta(m.TotalSill(), p.Variance, 1e-12)

	// Without a given mean the sample mean is used.
	k, err = NewPredictor(m, ds, PredictorOptions{Attribute: "z", Mode: Simple})
	require.NoError(t, err)
	a.InDelta(6, k.Krige(Location{Point: vec3d.T{100, 100, 0}}).Value, 1e-12)
}

func TestBlockKriging(t *testing.T) {
	a := assert.New(t)

	ds := randomField(t, 40, 100, 4)
	k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z"})
	require.NoError(t, err)

	points := NewPointGrid(testFrame, []vec3d.T{{25, 25, 0}, {60, 40, 0}})
	blocks, err := BlockGrid(points, vec2d.T{10, 10}, 4)
	require.NoError(t, err)
	a.Len(blocks.Locations[0].Block, 16)

	pp, err := k.Predict(points)
	require.NoError(t, err)
	bp, err := k.Predict(blocks)
	require.NoError(t, err)
	for i := range pp {
		require.NoError(t, bp[i].Err)
		a.Less(bp[i].Variance, pp[i].Variance, "a block average is smoother than a point")
		a.Equal(pp[i].ID, bp[i].ID)
	}

	// A one-point block is the point itself.
	single, err := BlockGrid(points, vec2d.T{10, 10}, 1)
	require.NoError(t, err)
	sp, err := k.Predict(single)
	require.NoError(t, err)
	for i := range pp {
		a.InDelta(pp[i].Value, sp[i].Value, 1e-9)
		a.InDelta(pp[i].Variance, sp[i].Variance, 1e-9)
	}
}

func TestPredictParallelMatchesSequential(t *testing.T) {
	ds := randomField(t, 80, 100, 5)
	grid, err := CalculateGrid(testFrame, vec2d.Rect{Min: vec2d.T{0, 0}, Max: vec2d.T{100, 100}}, [2]float64{5, 5})
	require.NoError(t, err)
	locs := grid.Locations()

	seq, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Neighborhood: Neighborhood{NMax: 16}, Parallel: len(locs.Locations) + 1})
	require.NoError(t, err)
	par, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Neighborhood: Neighborhood{NMax: 16}, Parallel: 1, Workers: 4})
	require.NoError(t, err)

	a, err := seq.Predict(locs)
	require.NoError(t, err)
	b, err := par.Predict(locs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictorOptionErrors(t *testing.T) {
	a := assert.New(t)
	ds := randomField(t, 10, 10, 6)

	_, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Mode: "cokriging"})
	a.ErrorIs(err, ErrInvalidOption)

	_, err = NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Mode: Universal, TrendDegree: 3})
	a.ErrorIs(err, ErrInvalidOption)

	_, err = NewPredictor(expModel, ds, PredictorOptions{Attribute: "z", Neighborhood: Neighborhood{NMax: 2, NMin: 3}})
	a.ErrorIs(err, ErrInvalidOption)

	_, err = NewPredictor(VariogramModel{Shape: Spherical, Sill: 1}, ds, PredictorOptions{Attribute: "z"})
	a.ErrorIs(err, ErrInfeasibleParameters)

	_, err = NewPredictor(expModel, ds, PredictorOptions{Attribute: "pm10"})
	a.ErrorIs(err, ErrInvalidOption)

	k, err := NewPredictor(expModel, ds, PredictorOptions{Attribute: "z"})
	require.NoError(t, err)
	_, err = k.Predict(PredictionGrid{Frame: Frame{Name: "UTM 18N", Unit: "km"}})
	a.ErrorIs(err, ErrInvalidOption)
}

func TestParseMode(t *testing.T) {
	a := assert.New(t)
	for in, want := range map[string]Mode{"": Ordinary, "ok": Ordinary, "SK": Simple, "universal": Universal} {
		got, err := ParseMode(in)
		a.NoError(err)
		a.Equal(want, got)
	}
}
