// Package idw implements a command to predict
// values by inverse distance weighting.
package idw

import (
	"fmt"

	"github.com/js-arias/command"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/internal/cli"
)

var Command = &command.Command{
	Usage: `idw [--config <file>] [--power <value>] [--nmax <number>]
	[--tune] [--points <file>] [--cell <size>] <data-file>`,
	Short: "predict values by inverse distance weighting",
	Long: `
Command idw predicts the value of an attribute at unsampled locations as the
inverse distance weighted mean of the nearest samples.

The argument of the command is the name of the data file.

The flags --power and --nmax set the distance exponent and the number of
neighbours, overriding the configuration file. A zero --nmax uses every
sample.

If --tune is set, the samples are split into a training and a test set (the
test fraction and seed come from the configuration file), and the number of
neighbours and the power are searched with the Nelder-Mead method to
minimise the RMSE on the test set. The tuned values are printed on the
standard error, and the prediction uses them with every sample.

Prediction locations are chosen as in the command "geostat krige". The
output is a tab-delimited table with the columns location_id, x, y,
predicted_value and variance; inverse distance weighting gives no variance,
so that column is NaN.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var pointsFile string
var cellSize float64
var power float64
var nmax int
var tuneFlag bool

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&pointsFile, "points", "", "")
	c.Flags().Float64Var(&cellSize, "cell", 0, "")
	c.Flags().Float64Var(&power, "power", 0, "")
	c.Flags().IntVar(&nmax, "nmax", -1, "")
	c.Flags().BoolVar(&tuneFlag, "tune", false, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	if power > 0 {
		cfg.IDW.Power = power
	}
	if nmax >= 0 {
		cfg.IDW.NMax = nmax
	}
	if tuneFlag {
		cfg.IDW.Tune = true
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}

	opts := cfg.IDWOptions()
	if cfg.IDW.Tune {
		if opts, err = tune(c, ds, opts, cfg.IDW.TestFraction, cfg.IDW.Seed); err != nil {
			return err
		}
	}

	w, err := geostat.NewIDW(ds, opts)
	if err != nil {
		return err
	}
	if cellSize == 0 {
		cellSize = cfg.Kriging.CellSize
	}
	locs, _, err := cli.Locations(ds, pointsFile, cellSize)
	if err != nil {
		return err
	}
	preds, err := w.Predict(locs)
	if err != nil {
		return err
	}
	return geostat.WritePredictions(c.Stdout(), preds)
}

func tune(c *command.Command, ds *geostat.Dataset, opts geostat.IDWOptions, frac float64, seed uint64) (geostat.IDWOptions, error) {
	train, test, err := geostat.TrainTestSplit(ds, frac, cli.Rand(seed))
	if err != nil {
		return opts, err
	}
	start := opts.NMax
	if start < 1 || start > train.Len() {
		start = min(10, train.Len())
	}
	tuned, res, err := geostat.TuneIDW(train, test, opts.Attribute, [2]float64{float64(start), opts.Power}, geostat.OptimizerOptions{})
	if err != nil {
		return opts, err
	}
	fmt.Fprintf(c.Stderr(), "# tuned: nmax %d, power %.4g, test rmse %.6g (%d evaluations)\n", tuned.NMax, tuned.Power, res.F, res.Evaluations)
	return tuned, nil
}
