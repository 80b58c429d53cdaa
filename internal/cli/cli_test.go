package cli

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/config"
	"github.com/flywave/go-geostat/internal/log"
)

// debugLog sends debug logging to the returned buffer until the test ends.
func debugLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger()
	t.Cleanup(func() { log.SetLogger(prev) })
	var buf bytes.Buffer
	require.NoError(t, log.SetupLogger("debug", &buf, false))
	return &buf
}

func TestReadPoints(t *testing.T) {
	a := assert.New(t)

	pts, err := ReadPoints(strings.NewReader("id,X,y\n# first\n1,0.5,2\n2,3,4.25\n"))
	require.NoError(t, err)
	a.Equal([]vec3d.T{{0.5, 2, 0}, {3, 4.25, 0}}, pts)

	pts, err = ReadPoints(strings.NewReader("x\ty\tz\n1\t2\t3\n"))
	require.NoError(t, err)
	a.Equal([]vec3d.T{{1, 2, 3}}, pts)
}

func TestReadPointsErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":     "",
		"no y":      "x,z\n1,2\n",
		"no points": "x,y\n",
		"bad value": "x,y\n1,2\n3,four\n",
	} {
		_, err := ReadPoints(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestReadData(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	name := filepath.Join(dir, "samples.tab")
	require.NoError(t, os.WriteFile(name, []byte("x\ty\tlead\tzinc\n0\t0\t1\t2\n1\t1\t3\t4\n"), 0o644))

	buf := debugLog(t)
	cfg := config.Default()
	ds, err := ReadData(name, cfg)
	require.NoError(t, err)
	a.Equal(2, ds.Len())
	a.Equal("lead", cfg.Attribute, "the first attribute is recorded")
	a.Contains(buf.String(), "dataset read")

	cfg.Attribute = "zinc"
	ds, err = ReadData(name, cfg)
	require.NoError(t, err)
	a.Equal([]string{"zinc"}, ds.Attributes())

	_, err = ReadData(filepath.Join(dir, "missing.tab"), config.Default())
	a.Error(err)
}

func TestLocations(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	name := filepath.Join(dir, "samples.csv")
	require.NoError(t, os.WriteFile(name, []byte("x,y,v\n0,0,1\n10,0,2\n0,10,3\n10,10,4\n"), 0o644))
	ds, err := ReadData(name, config.Default())
	require.NoError(t, err)

	locs, grid, err := Locations(ds, "", 0)
	require.NoError(t, err)
	require.NotNil(t, grid)
	a.Equal(100, grid.Width)
	a.Equal(100, grid.Height)
	a.Len(locs.Locations, grid.Count(), "a square hull masks nothing")

	points := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(points, []byte("x,y\n5,5\n"), 0o644))
	locs, grid, err = Locations(ds, points, 0)
	require.NoError(t, err)
	a.Nil(grid)
	a.Equal([]vec3d.T{{5, 5, 0}}, []vec3d.T{locs.Locations[0].Point})
}

func TestModelKeepsUnconvergedFit(t *testing.T) {
	a := assert.New(t)

	var sb strings.Builder
	sb.WriteString("x,y,v\n")
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			x, y := float64(i)*5, float64(j)*5
			fmt.Fprintf(&sb, "%g,%g,%g\n", x, y, 10+0.3*x+math.Sin(y/7))
		}
	}
	name := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(name, []byte(sb.String()), 0o644))

	cfg := config.Default()
	ds, err := ReadData(name, cfg)
	require.NoError(t, err)

	buf := debugLog(t)
	cfg.Fit.MaxIterations = 1
	m, err := Model(ds, cfg, "")
	require.NoError(t, err)
	a.NoError(m.Validate())
	a.Equal(geostat.Spherical, m.Shape)
	a.Contains(buf.String(), "using the last fitted model")
}

func TestRand(t *testing.T) {
	assert.Equal(t, Rand(7).Uint64(), Rand(7).Uint64())
	assert.NotEqual(t, Rand(7).Uint64(), Rand(8).Uint64())
}
