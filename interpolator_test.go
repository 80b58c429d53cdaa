package geostat

import (
	"bytes"
	"math"
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellInterpolators(t *testing.T) {
	a := assert.New(t)

	for _, name := range []string{"", BILINEAR, HYPERBOLIC} {
		in, err := NewCellInterpolator(name)
		require.NoError(t, err)
		a.Equal(2.0, in.Interpolate(0, 1, 2, 3, 0, 0), "%s: northwest corner", name)
		a.Equal(1.0, in.Interpolate(0, 1, 2, 3, 1, 1), "%s: southeast corner", name)
		a.InDelta(1.5, in.Interpolate(0, 1, 2, 3, 0.5, 0.5), 1e-12, name)
	}
	_, err := NewCellInterpolator("cubic")
	a.ErrorIs(err, ErrInvalidOption)
}

// testRaster is a 2×2 raster with the south-eastern cell missing.
func testRaster(t *testing.T) *Raster {
	t.Helper()
	g, err := CalculateGrid(testFrame, vec2d.Rect{Max: vec2d.T{2, 2}}, [2]float64{1, 1})
	require.NoError(t, err)
	r, err := NewRaster(g, []Prediction{
		{ID: 0, Value: 1, Variance: 0.1},
		{ID: 1, Value: 2, Variance: 0.2},
		{ID: 2, Value: 3, Variance: 0.3},
	})
	require.NoError(t, err)
	return r
}

func TestNewRaster(t *testing.T) {
	a := assert.New(t)

	r := testRaster(t)
	a.Equal(2.0, r.Value(0, 1))
	a.Equal(3.0, r.Value(1, 0))
	a.True(math.IsNaN(r.Value(1, 1)))
	a.True(math.IsNaN(r.Variances[3]))

	min, max := r.MinMax()
	a.Equal(1.0, min)
	a.Equal(3.0, max)

	_, err := NewRaster(r.Grid, []Prediction{{ID: 4}})
	a.ErrorIs(err, ErrInvalidOption)

	empty, err := NewRaster(r.Grid, nil)
	require.NoError(t, err)
	min, _ = empty.MinMax()
	a.True(math.IsNaN(min))
}

func TestRasterAt(t *testing.T) {
	a := assert.New(t)

	r := testRaster(t)
	bilinear := &BilinearInterpolator{}

	a.Equal(1.0, r.At(0.5, 1.5, bilinear), "cell centre")
	a.InDelta(2, r.At(1, 1, bilinear), 1e-12, "the missing corner takes the mean")
	a.InDelta(1.5, r.At(1, 1.5, bilinear), 1e-12)
	a.Equal(1.0, r.At(-10, 10, bilinear), "border cells extend outward")

	empty, err := NewRaster(r.Grid, nil)
	require.NoError(t, err)
	a.True(math.IsNaN(empty.At(1, 1, bilinear)))
}

func TestWriteASCIIGrid(t *testing.T) {
	a := assert.New(t)

	r := testRaster(t)
	var buf bytes.Buffer
	require.NoError(t, WriteASCIIGrid(&buf, r, false))
	a.Equal("ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n1 2\n3 -9999\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteASCIIGrid(&buf, r, true))
	a.Contains(buf.String(), "\n0.1 0.2\n0.3 -9999\n")

	r.Grid.PixelSize = [2]float64{1, 2}
	buf.Reset()
	require.NoError(t, WriteASCIIGrid(&buf, r, false))
	a.Contains(buf.String(), "dx 1\ndy 2\n")
}

func TestKrigingInterpolator(t *testing.T) {
	a := assert.New(t)

	ds := randomField(t, 60, 100, 31)
	z, _ := ds.Values("z")
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range z {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	m := Exponential
	k := NewKrigingInterpolator(ds, Options{
		Attribute: "z",
		Model:     &m,
		PixelSize: &[2]float64{10, 10},
		Variogram: VariogramOptions{Cutoff: 60},
	})
	raster, fit, err := k.Process()
	require.NoError(t, err)
	require.NotNil(t, fit)
	a.Equal(Exponential, fit.Model.Shape)
	a.NoError(fit.Model.Validate())
	a.NotEmpty(k.Bins())
	a.Len(k.Hull().Hull(), len(NewConvex(ds.Coords()).Hull()))
	a.Same(k.Grid(), raster.Grid)

	var inside int
	for row := 0; row < raster.Grid.Height; row++ {
		for column := 0; column < raster.Grid.Width; column++ {
			v := raster.Value(row, column)
			c := raster.Grid.Center(row, column)
			if !k.Hull().Contains(vec2d.T{c[0], c[1]}) {
				a.True(math.IsNaN(v), "cell %d,%d is outside the hull", row, column)
				continue
			}
			inside++
			a.True(v > lo-5 && v < hi+5, "cell %d,%d = %v", row, column, v)
		}
	}
	a.Greater(inside, 0)
}

func TestKrigingInterpolatorBlocks(t *testing.T) {
	ds := randomField(t, 40, 100, 32)
	size := vec2d.T{10, 10}
	k := NewKrigingInterpolator(ds, Options{
		Attribute:   "z",
		PixelSize:   &[2]float64{10, 10},
		BlockSize:   &size,
		BlockPoints: 2,
		NoMask:      true,
		Variogram:   VariogramOptions{Cutoff: 60},
	})
	raster, _, err := k.Process()
	require.NoError(t, err)
	for i, v := range raster.Values {
		assert.False(t, math.IsNaN(v), "cell %d", i)
		assert.False(t, math.IsNaN(raster.Variances[i]), "cell %d", i)
	}
}
