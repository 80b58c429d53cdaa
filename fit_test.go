package geostat

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelBins samples m at lags 1..n as if estimated from 50 pairs each.
func modelBins(m VariogramModel, n int) []LagBin {
	bins := make([]LagBin, n)
	for i := range bins {
		h := float64(i + 1)
		bins[i] = LagBin{Index: i + 1, Lower: h - 0.5, Upper: h + 0.5, Distance: h, Gamma: m.Semivariance(h), Pairs: 50}
	}
	return bins
}

func TestFitVariogramRecoversModel(t *testing.T) {
	truth := VariogramModel{Shape: Exponential, Nugget: 0.2, Sill: 1, Range: 10}
	bins := modelBins(truth, 40)

	for _, w := range []FitWeighting{WeightPairs, WeightPairsOverDistSq, WeightNone} {
		t.Run(string(w), func(t *testing.T) {
			a := assert.New(t)

			initial, err := InitialGuess(bins, Exponential)
			require.NoError(t, err)
			res, err := FitVariogram(bins, initial, FitOptions{Weighting: w})
			require.NoError(t, err)

			a.True(res.Converged)
			a.Less(res.SSE, res.InitialSSE)
			a.InDelta(truth.Nugget, res.Model.Nugget, 1e-3)
			a.InDelta(truth.Sill, res.Model.Sill, 1e-3)
			a.InDelta(truth.Range, res.Model.Range, 1e-2)
		})
	}
}

func TestFitVariogramExactInitialGuess(t *testing.T) {
	a := assert.New(t)

	truth := VariogramModel{Shape: Spherical, Nugget: 0.1, Sill: 2, Range: 15}
	res, err := FitVariogram(modelBins(truth, 30), truth, FitOptions{})
	require.NoError(t, err)
	a.True(res.Converged)
	a.Equal(0, res.Iterations)
	a.Equal(truth, res.Model)
}

func TestFitVariogramFixedParameters(t *testing.T) {
	a := assert.New(t)

	truth := VariogramModel{Shape: Gaussian, Nugget: 0.3, Sill: 1.5, Range: 8}
	bins := modelBins(truth, 25)
	initial := VariogramModel{Shape: Gaussian, Nugget: 0.3, Sill: 1, Range: 4}

	res, err := FitVariogram(bins, initial, FitOptions{FixNugget: true})
	require.NoError(t, err)
	a.Equal(0.3, res.Model.Nugget)
	a.InDelta(truth.Sill, res.Model.Sill, 1e-3)

	res, err = FitVariogram(bins, initial, FitOptions{FixNugget: true, FixSill: true, FixRange: true})
	require.NoError(t, err)
	a.Equal(initial, res.Model, "nothing free to fit")
}

func TestFitVariogramKeepsAnisotropyWithOneDirection(t *testing.T) {
	truth := VariogramModel{Shape: Exponential, Nugget: 0, Sill: 1, Range: 10}
	initial := VariogramModel{Shape: Exponential, Sill: 0.5, Range: 5, Anisotropy: &Anisotropy{Angle: 30, Ratio: 0.5}}

	res, err := FitVariogram(modelBins(truth, 30), initial, FitOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Model.Anisotropy)
	assert.Equal(t, Anisotropy{Angle: 30, Ratio: 0.5}, *res.Model.Anisotropy)
}

func TestFitVariogramAnisotropy(t *testing.T) {
	a := assert.New(t)

	truth := VariogramModel{Shape: Exponential, Nugget: 0.1, Sill: 1, Range: 20, Anisotropy: &Anisotropy{Angle: 30, Ratio: 0.5}}
	var bins []LagBin
	for _, az := range []float64{0, 45, 90, 135} {
		for i := 0; i < 20; i++ {
			h := float64(i + 1)
			bins = append(bins, LagBin{Index: i + 1, Direction: az, Lower: h - 0.5, Upper: h + 0.5, Distance: h, Gamma: truth.directional(h, az), Pairs: 50})
		}
	}
	initial := VariogramModel{Shape: Exponential, Nugget: 0.2, Sill: 0.8, Range: 15, Anisotropy: &Anisotropy{Angle: 50, Ratio: 0.8}}

	res, err := FitVariogram(bins, initial, FitOptions{})
	require.NoError(t, err)
	a.True(res.Converged)
	a.Less(res.Iterations, 20)
	require.NotNil(t, res.Model.Anisotropy)
	a.InDelta(30, res.Model.Anisotropy.Angle, 1e-2)
	a.InDelta(0.5, res.Model.Anisotropy.Ratio, 1e-4)
	a.InDelta(truth.Nugget, res.Model.Nugget, 1e-3)
	a.InDelta(truth.Sill, res.Model.Sill, 1e-3)
	a.InDelta(truth.Range, res.Model.Range, 1e-2)

	res, err = FitVariogram(bins, initial, FitOptions{FixAnisotropy: true})
	require.NoError(t, err)
	a.Equal(*initial.Anisotropy, *res.Model.Anisotropy)
}

func TestFitVariogramNoImprovement(t *testing.T) {
	a := assert.New(t)

	// Every bin lies below the model and the nugget is already at its
	// lower bound, so no step can reduce the error.
	bins := modelBins(VariogramModel{Shape: Spherical, Sill: 0.5, Range: 10}, 20)
	initial := VariogramModel{Shape: Spherical, Sill: 1, Range: 10}

	res, err := FitVariogram(bins, initial, FitOptions{FixSill: true, FixRange: true})
	a.ErrorIs(err, ErrFit)
	var fe *FitError
	require.ErrorAs(t, err, &fe)
	a.NotEmpty(fe.Reason)
	a.Equal(initial, res.Model)
	a.Equal(res.InitialSSE, res.SSE)
	a.False(errors.Is(err, ErrFitDidNotConverge))
}

func TestFitVariogramNuggetOnly(t *testing.T) {
	bins := modelBins(VariogramModel{Shape: Nugget, Nugget: 2}, 10)
	initial, err := InitialGuess(bins, Nugget)
	require.NoError(t, err)
	assert.InDelta(t, 2, initial.Nugget, 1e-12)

	res, err := FitVariogram(bins, VariogramModel{Shape: Nugget, Nugget: 1}, FitOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 2, res.Model.Nugget, 1e-6)
}

func TestFitVariogramErrors(t *testing.T) {
	a := assert.New(t)
	bins := modelBins(VariogramModel{Shape: Spherical, Sill: 1, Range: 10}, 20)

	_, err := FitVariogram(bins, VariogramModel{Shape: Spherical, Sill: -1, Range: 10}, FitOptions{})
	a.ErrorIs(err, ErrInfeasibleParameters)

	_, err = FitVariogram(bins, VariogramModel{Shape: Spherical, Sill: 1, Range: 0}, FitOptions{})
	a.ErrorIs(err, ErrInfeasibleParameters)

	_, err = FitVariogram(nil, VariogramModel{Shape: Spherical, Sill: 1, Range: 10}, FitOptions{})
	a.ErrorIs(err, ErrInvalidOption)

	_, err = FitVariogram(bins, VariogramModel{Shape: Spherical, Sill: 1, Range: 5}, FitOptions{Weighting: "cubic"})
	a.ErrorIs(err, ErrInvalidOption)
}

func TestFitVariogramIterationLimit(t *testing.T) {
	a := assert.New(t)

	truth := VariogramModel{Shape: Exponential, Nugget: 0.5, Sill: 3, Range: 12}
	far := VariogramModel{Shape: Exponential, Nugget: 0, Sill: 0.1, Range: 1}
	res, err := FitVariogram(modelBins(truth, 40), far, FitOptions{MaxIterations: 1})
	a.ErrorIs(err, ErrFitDidNotConverge)
	a.False(res.Converged)
	a.Equal(1, res.Iterations)
	a.Less(res.SSE, res.InitialSSE, "the best model found is returned")

	var nc *FitDidNotConvergeError
	require.ErrorAs(t, err, &nc)
	a.Equal(res.Model, nc.Best)
}

func TestInitialGuess(t *testing.T) {
	a := assert.New(t)

	bins := []LagBin{
		{Distance: 3, Gamma: 0.9, Pairs: 10},
		{Distance: 1, Gamma: 0.2, Pairs: 10},
		{Distance: 2, Gamma: 0.6, Pairs: 10},
		{Distance: 6, Gamma: 1.1, Pairs: 10},
		{Distance: 4, Gamma: 1.0, Pairs: 10},
	}
	m, err := InitialGuess(bins, Spherical)
	require.NoError(t, err)
	a.InDelta(0.2, m.Nugget, 1e-12)
	a.InDelta(1.0-0.2, m.Sill, 1e-12)
	a.InDelta(2, m.Range, 1e-12)
	a.NoError(m.Validate())

	_, err = InitialGuess(nil, Spherical)
	a.ErrorIs(err, ErrInvalidOption)
}
