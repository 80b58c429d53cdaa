// Package krige implements a command to predict
// values by kriging.
package krige

import (
	"os"

	"github.com/cockroachdb/errors"
	vec2d "github.com/flywave/go3d/float64/vec2"
	"github.com/js-arias/command"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/internal/cli"
	"github.com/flywave/go-geostat/internal/log"
)

var Command = &command.Command{
	Usage: `krige [--config <file>] [--model <model-file>]
	[--points <file>] [--cell <size>] [--ascii <file>] [--variance]
	<data-file>`,
	Short: "predict values by kriging",
	Long: `
Command krige predicts the value of an attribute at unsampled locations by
simple, ordinary or universal kriging, as set in the configuration file.

The argument of the command is the name of the data file.

By default the variogram is estimated and fitted from the data. Use the flag
--model to krige with a model read from a JSON file, as written by the
command "geostat fit".

The prediction locations are read from the file given with --points, a table
with x and y columns. Without it, the convex hull of the samples is covered
by square cells of the size given with --cell (by default a hundredth of the
longer side of the hull), and the cell centres inside the hull are kriged.
If the configuration sets a block size, cells are kriged as block averages.

The output is a tab-delimited table with the columns location_id, x, y,
predicted_value and variance. Locations that could not be kriged are written
as NaN, and the reason is logged.

With --ascii, a gridded run also writes an ESRI ASCII grid of the
predictions, or of the variances if --variance is set, to the indicated file.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var modelFile string
var pointsFile string
var asciiFile string
var cellSize float64
var varianceFlag bool

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&modelFile, "model", "", "")
	c.Flags().StringVar(&pointsFile, "points", "", "")
	c.Flags().StringVar(&asciiFile, "ascii", "", "")
	c.Flags().Float64Var(&cellSize, "cell", 0, "")
	c.Flags().BoolVar(&varianceFlag, "variance", false, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}
	if asciiFile != "" && pointsFile != "" {
		return c.UsageError("flag --ascii requires a gridded run")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}
	model, err := cli.Model(ds, cfg, modelFile)
	if err != nil {
		return err
	}
	popts, err := cfg.PredictorOptions()
	if err != nil {
		return err
	}
	k, err := geostat.NewPredictor(model, ds, popts)
	if err != nil {
		return err
	}

	if cellSize == 0 {
		cellSize = cfg.Kriging.CellSize
	}
	locs, grid, err := cli.Locations(ds, pointsFile, cellSize)
	if err != nil {
		return err
	}
	if grid != nil && cfg.Kriging.BlockSize > 0 {
		locs, err = geostat.BlockGrid(locs, vec2d.T{cfg.Kriging.BlockSize, cfg.Kriging.BlockSize}, cfg.Kriging.BlockPoints)
		if err != nil {
			return err
		}
	}

	preds, err := k.Predict(locs)
	if err != nil {
		return err
	}
	if err := geostat.WritePredictions(c.Stdout(), preds); err != nil {
		return err
	}

	if asciiFile == "" {
		return nil
	}
	raster, err := geostat.NewRaster(grid, preds)
	if err != nil {
		return err
	}
	return writeASCII(asciiFile, raster)
}

func writeASCII(name string, r *geostat.Raster) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = e
		}
	}()

	if err := geostat.WriteASCIIGrid(f, r, varianceFlag); err != nil {
		return errors.Wrapf(err, "when writing %q", name)
	}
	lo, hi := r.MinMax()
	logger := log.Component("krige")
	logger.Info().
		Str("file", name).
		Int("width", r.Grid.Width).
		Int("height", r.Grid.Height).
		Float64("min", lo).
		Float64("max", hi).
		Msg("raster written")
	return nil
}
