package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geostat "github.com/flywave/go-geostat"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
attribute: o3
fit:
  model: Exp
kriging:
  mode: universal
  nmax: 8
  mean: 40
simulation:
  threshold: 60
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "o3", cfg.Attribute)
	assert.Equal(t, 8, cfg.Kriging.NMax)
	assert.Equal(t, 1, cfg.Kriging.NMin, "unset keys keep their default")
	require.NotNil(t, cfg.Kriging.Mean)
	assert.Equal(t, 40.0, *cfg.Kriging.Mean)

	p, err := cfg.PredictorOptions()
	require.NoError(t, err)
	assert.Equal(t, geostat.Universal, p.Mode)
	assert.Equal(t, "o3", p.Attribute)
	assert.Equal(t, 8, p.Neighborhood.NMax)

	s, err := cfg.SimulationOptions()
	require.NoError(t, err)
	require.NotNil(t, s.Threshold)
	assert.Equal(t, 60.0, *s.Threshold)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kriging: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")
	cfg := Default()
	cfg.Attribute = "pm10"
	cfg.Variogram.Directions = []float64{0, 45, 90, 135}

	require.NoError(t, Save(cfg, path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestInitialModel(t *testing.T) {
	cfg := Default()
	cfg.Fit.Model = "gau"
	bins := []geostat.LagBin{
		{Distance: 1, Gamma: 0.2, Pairs: 10},
		{Distance: 2, Gamma: 0.6, Pairs: 10},
		{Distance: 3, Gamma: 0.9, Pairs: 10},
		{Distance: 4, Gamma: 1.0, Pairs: 10},
	}
	m, err := cfg.InitialModel(bins)
	require.NoError(t, err)
	assert.Equal(t, geostat.Gaussian, m.Shape)
	assert.NoError(t, m.Validate())

	cfg.Fit.Model = "cubic"
	_, err = cfg.InitialModel(bins)
	assert.ErrorIs(t, err, geostat.ErrInvalidOption)
}

func TestFitOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.yaml")
	data := []byte(`
fit:
  model: exp
  maxIterations: 50
  fixSill: true
  fixAnisotropy: true
  anisotropy:
    angle: 30
    ratio: 0.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	o := cfg.FitOptions()
	assert.Equal(t, 50, o.MaxIterations)
	assert.True(t, o.FixSill)
	assert.True(t, o.FixAnisotropy)
	assert.False(t, o.FixRange)
	assert.False(t, Default().FitOptions().FixAnisotropy)
}
