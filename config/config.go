// Package config holds the run configuration of the geostat command. It is
// read from YAML and falls back to defaults for everything not set.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	geostat "github.com/flywave/go-geostat"
)

// Config is the YAML run configuration.
type Config struct {
	// Attribute is the dataset column every step works on.
	Attribute string `yaml:"attribute"`

	Variogram struct {
		Width      float64   `yaml:"width"`
		Cutoff     float64   `yaml:"cutoff"`
		Directions []float64 `yaml:"directions"`
		Tolerance  float64   `yaml:"tolerance"`
		Estimator  string    `yaml:"estimator"`
	} `yaml:"variogram"`

	Fit struct {
		Model         string `yaml:"model"`
		Weighting     string `yaml:"weighting"`
		MaxIterations int    `yaml:"maxIterations"`
		FixNugget     bool   `yaml:"fixNugget"`
		FixSill       bool   `yaml:"fixSill"`
		FixRange      bool   `yaml:"fixRange"`
		// FixAnisotropy keeps the configured angle and ratio out of the fit.
		FixAnisotropy bool `yaml:"fixAnisotropy"`
		Anisotropy    *struct {
			Angle float64 `yaml:"angle"`
			Ratio float64 `yaml:"ratio"`
		} `yaml:"anisotropy"`
	} `yaml:"fit"`

	Kriging struct {
		Mode        string   `yaml:"mode"`
		Mean        *float64 `yaml:"mean"`
		TrendDegree int      `yaml:"trendDegree"`
		NMax        int      `yaml:"nmax"`
		NMin        int      `yaml:"nmin"`
		MaxDist     float64  `yaml:"maxdist"`
		// CellSize of the prediction raster; zero lets the command pick one.
		CellSize    float64 `yaml:"cellSize"`
		BlockSize   float64 `yaml:"blockSize"`
		BlockPoints int     `yaml:"blockPoints"`
	} `yaml:"kriging"`

	CrossValidation struct {
		Folds int    `yaml:"folds"`
		Seed  uint64 `yaml:"seed"`
	} `yaml:"crossValidation"`

	IDW struct {
		Power        float64 `yaml:"power"`
		NMax         int     `yaml:"nmax"`
		Tune         bool    `yaml:"tune"`
		TestFraction float64 `yaml:"testFraction"`
		Seed         uint64  `yaml:"seed"`
	} `yaml:"idw"`

	Simulation struct {
		Method    string   `yaml:"method"`
		NSim      int      `yaml:"nsim"`
		Threshold *float64 `yaml:"threshold"`
		Seed      uint64   `yaml:"seed"`
	} `yaml:"simulation"`

	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}

	cfg.Variogram.Tolerance = 22.5
	cfg.Variogram.Estimator = string(geostat.Matheron)

	cfg.Fit.Model = string(geostat.Spherical)
	cfg.Fit.Weighting = string(geostat.WeightPairs)
	cfg.Fit.MaxIterations = 200

	cfg.Kriging.Mode = string(geostat.Ordinary)
	cfg.Kriging.TrendDegree = 1
	cfg.Kriging.NMax = 20
	cfg.Kriging.NMin = 1
	cfg.Kriging.BlockPoints = 4

	cfg.CrossValidation.Folds = 5
	cfg.CrossValidation.Seed = 1

	cfg.IDW.Power = 2
	cfg.IDW.NMax = 10
	cfg.IDW.TestFraction = 0.2
	cfg.IDW.Seed = 1

	cfg.Simulation.Method = string(geostat.SequentialGaussian)
	cfg.Simulation.NSim = 10
	cfg.Simulation.Seed = 1

	cfg.Log.Level = "warn"
	cfg.Log.Console = true

	return cfg
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory when needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating config directory for %q", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %q", path)
}

func (c *Config) VariogramOptions() geostat.VariogramOptions {
	return geostat.VariogramOptions{
		Attribute:  c.Attribute,
		Width:      c.Variogram.Width,
		Cutoff:     c.Variogram.Cutoff,
		Directions: c.Variogram.Directions,
		Tolerance:  c.Variogram.Tolerance,
		Estimator:  geostat.Estimator(c.Variogram.Estimator),
	}
}

func (c *Config) FitOptions() geostat.FitOptions {
	return geostat.FitOptions{
		Weighting:     geostat.FitWeighting(c.Fit.Weighting),
		MaxIterations: c.Fit.MaxIterations,
		FixNugget:     c.Fit.FixNugget,
		FixSill:       c.Fit.FixSill,
		FixRange:      c.Fit.FixRange,
		FixAnisotropy: c.Fit.FixAnisotropy,
	}
}

// InitialModel derives the starting model of a fit from the empirical
// bins, with the configured shape and anisotropy.
func (c *Config) InitialModel(bins []geostat.LagBin) (geostat.VariogramModel, error) {
	shape, err := geostat.ParseModelType(c.Fit.Model)
	if err != nil {
		return geostat.VariogramModel{}, err
	}
	m, err := geostat.InitialGuess(bins, shape)
	if err != nil {
		return m, err
	}
	if a := c.Fit.Anisotropy; a != nil {
		m.Anisotropy = &geostat.Anisotropy{Angle: a.Angle, Ratio: a.Ratio}
	}
	return m, nil
}

func (c *Config) PredictorOptions() (geostat.PredictorOptions, error) {
	mode, err := geostat.ParseMode(c.Kriging.Mode)
	if err != nil {
		return geostat.PredictorOptions{}, err
	}
	return geostat.PredictorOptions{
		Attribute:   c.Attribute,
		Mode:        mode,
		Mean:        c.Kriging.Mean,
		TrendDegree: c.Kriging.TrendDegree,
		Neighborhood: geostat.Neighborhood{
			NMax:    c.Kriging.NMax,
			NMin:    c.Kriging.NMin,
			MaxDist: c.Kriging.MaxDist,
		},
	}, nil
}

func (c *Config) IDWOptions() geostat.IDWOptions {
	return geostat.IDWOptions{
		Attribute: c.Attribute,
		Power:     c.IDW.Power,
		NMax:      c.IDW.NMax,
	}
}

func (c *Config) SimulationOptions() (geostat.SimulationOptions, error) {
	p, err := c.PredictorOptions()
	if err != nil {
		return geostat.SimulationOptions{}, err
	}
	return geostat.SimulationOptions{
		Attribute:    c.Attribute,
		Method:       geostat.SimulationMethod(c.Simulation.Method),
		Threshold:    c.Simulation.Threshold,
		NSim:         c.Simulation.NSim,
		Mode:         p.Mode,
		Mean:         p.Mean,
		TrendDegree:  p.TrendDegree,
		Neighborhood: p.Neighborhood,
	}, nil
}
