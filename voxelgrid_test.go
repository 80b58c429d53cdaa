package geostat

import (
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecluster(t *testing.T) {
	a := assert.New(t)

	ds := newTestDataset(t,
		[][2]float64{{0.2, 0.2}, {0.6, 0.4}, {5.3, 0.1}, {0.1, 5.5}},
		[]float64{1, 3, 10, 20})

	out, err := ds.Decluster(vec3d.T{1, 1, 0})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	merged := out.Sample(0)
	a.InDelta(0.4, merged.Coord[0], 1e-12)
	a.InDelta(0.3, merged.Coord[1], 1e-12)
	a.Equal([]float64{2}, merged.Values)

	a.Equal(vec3d.T{5.3, 0.1, 0}, out.Sample(1).Coord, "singletons keep their coordinate")
	a.Equal([]float64{10}, out.Sample(1).Values)
	a.Equal(vec3d.T{0.1, 5.5, 0}, out.Sample(2).Coord)
	a.Equal(testFrame, out.Frame())
}

func TestDeclusterDuplicates(t *testing.T) {
	ds := newTestDataset(t, [][2]float64{{2, 2}, {2, 2}, {8, 8}}, []float64{4, 6, 1})
	out, err := ds.Decluster(vec3d.T{0.5, 0.5, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []float64{5}, out.Sample(0).Values)
}

func TestDeclusterErrors(t *testing.T) {
	ds := newTestDataset(t, [][2]float64{{0, 0}}, []float64{1})
	_, err := ds.Decluster(vec3d.T{-1, 1, 0})
	assert.ErrorIs(t, err, ErrInvalidOption)
}
