package geostat

import (
	"bytes"
	"math/rand/v2"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flywave/go-geostat/internal/log"
)

var testFrame = Frame{Name: "UTM 17N", Unit: "km"}

// newTestDataset builds a 2D dataset with one attribute named "z".
func newTestDataset(t testing.TB, xy [][2]float64, z []float64) *Dataset {
	t.Helper()
	samples := make([]Sample, len(xy))
	for i, p := range xy {
		samples[i] = Sample{Coord: vec3d.T{p[0], p[1], 0}, Values: []float64{z[i]}}
	}
	ds, err := NewDataset(testFrame, []string{"z"}, samples)
	require.NoError(t, err)
	return ds
}

// randomField scatters n samples over a side×side square with a smooth
// trend plus noise.
func randomField(t testing.TB, n int, side float64, seed uint64) *Dataset {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed))
	xy := make([][2]float64, n)
	z := make([]float64, n)
	for i := range xy {
		x, y := r.Float64()*side, r.Float64()*side
		xy[i] = [2]float64{x, y}
		z[i] = 40 + 0.2*x - 0.1*y + r.NormFloat64()
	}
	return newTestDataset(t, xy, z)
}

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// captureLog routes debug logging into the returned buffer until the test
// ends.
func captureLog(t testing.TB) *bytes.Buffer {
	t.Helper()
	prev := log.Logger()
	t.Cleanup(func() { log.SetLogger(prev) })
	var buf bytes.Buffer
	log.SetLogger(zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.DebugLevel))
	return &buf
}
