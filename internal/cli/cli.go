// Package cli holds the input and setup steps shared by the geostat
// subcommands.
package cli

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	vec3d "github.com/flywave/go3d/float64/vec3"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/config"
	"github.com/flywave/go-geostat/internal/log"
)

// Setup reads the configuration file, when given, and installs the logger
// it asks for.
func Setup(configFile string, stderr io.Writer) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if err := log.SetupLogger(cfg.Log.Level, stderr, cfg.Log.Console); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadData reads a dataset, choosing the reader by file extension. When the
// configuration names no attribute the first one of the file is used and
// recorded in cfg.
func ReadData(name string, cfg *config.Config) (*geostat.Dataset, error) {
	var ds *geostat.Dataset
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		attr := cfg.Attribute
		if attr == "" {
			attr = "value"
		}
		ds, err = geostat.ReadGeoJSON(data, attr, geostat.Frame{})
		if err != nil {
			return nil, errors.Wrapf(err, "when reading %q", name)
		}
	default:
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var opts geostat.TableOptions
		if cfg.Attribute != "" {
			opts.Attributes = []string{cfg.Attribute}
		}
		ds, err = geostat.ReadTable(f, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "when reading %q", name)
		}
	}
	if cfg.Attribute == "" {
		cfg.Attribute = ds.Attributes()[0]
	}
	logger := log.Component("cli")
	logger.Debug().
		Str("file", name).
		Int(log.SamplesKey, ds.Len()).
		Str("attribute", cfg.Attribute).
		Msg("dataset read")
	return ds, nil
}

// Model reads a JSON model file or, without one, estimates and fits the
// variogram of ds. A fit that runs out of iterations keeps its best model.
func Model(ds *geostat.Dataset, cfg *config.Config, modelFile string) (geostat.VariogramModel, error) {
	if modelFile != "" {
		f, err := os.Open(modelFile)
		if err != nil {
			return geostat.VariogramModel{}, err
		}
		defer f.Close()
		m, err := geostat.ReadModel(f)
		if err != nil {
			return m, errors.Wrapf(err, "when reading %q", modelFile)
		}
		return m, nil
	}

	bins, err := geostat.EstimateVariogram(ds, cfg.VariogramOptions())
	if err != nil {
		return geostat.VariogramModel{}, err
	}
	initial, err := cfg.InitialModel(bins)
	if err != nil {
		return initial, err
	}
	res, err := geostat.FitVariogram(bins, initial, cfg.FitOptions())
	if errors.Is(err, geostat.ErrFitDidNotConverge) {
		logger := log.Component("cli")
		log.Err(logger.Warn(), err).Msg("using the last fitted model")
		err = nil
	}
	return res.Model, err
}

// Locations reads the prediction points from pointsFile or, without one,
// covers the sample hull with cells of side cell. A zero cell takes a
// hundredth of the longer hull side. The regular grid is returned as well,
// nil for point files.
func Locations(ds *geostat.Dataset, pointsFile string, cell float64) (geostat.PredictionGrid, *geostat.RegularGrid, error) {
	if pointsFile != "" {
		f, err := os.Open(pointsFile)
		if err != nil {
			return geostat.PredictionGrid{}, nil, err
		}
		defer f.Close()
		pts, err := ReadPoints(f)
		if err != nil {
			return geostat.PredictionGrid{}, nil, errors.Wrapf(err, "when reading %q", pointsFile)
		}
		return geostat.NewPointGrid(ds.Frame(), pts), nil, nil
	}

	hull := geostat.NewConvex(ds.Coords())
	bounds := hull.Rect()
	if cell == 0 {
		cell = math.Max(bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]) / 100
	}
	grid, err := geostat.CalculateGrid(ds.Frame(), bounds, [2]float64{cell, cell})
	if err != nil {
		return geostat.PredictionGrid{}, nil, err
	}
	return geostat.MaskHull(grid.Locations(), hull), grid, nil
}

// ReadPoints reads prediction points from a delimited table with x, y and
// an optional z column.
func ReadPoints(r io.Reader) ([]vec3d.T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	tab := csv.NewReader(bytes.NewReader(data))
	tab.Comma = ','
	if first, _, _ := bytes.Cut(data, []byte("\n")); bytes.ContainsRune(first, '\t') {
		tab.Comma = '\t'
	}
	tab.Comment = '#'
	tab.TrimLeadingSpace = true

	head, err := tab.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	cols := map[string]int{"x": -1, "y": -1, "z": -1}
	for i, h := range head {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[h]; ok {
			cols[h] = i
		}
	}
	if cols["x"] < 0 || cols["y"] < 0 {
		return nil, errors.New("expecting x and y columns")
	}

	var pts []vec3d.T
	for {
		row, err := tab.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ln, _ := tab.FieldPos(0)
		var p vec3d.T
		for k, name := range []string{"x", "y", "z"} {
			i := cols[name]
			if i < 0 {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, errors.Newf("on row %d: field %q: %v", ln, name, err)
			}
			p[k] = v
		}
		pts = append(pts, p)
	}
	if len(pts) == 0 {
		return nil, errors.New("no points")
	}
	return pts, nil
}

// Rand returns the generator of a run. Equal seeds give equal streams.
func Rand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
