// Package cv implements a command to cross-validate
// a spatial predictor.
package cv

import (
	"fmt"

	"github.com/js-arias/command"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/config"
	"github.com/flywave/go-geostat/internal/cli"
)

var Command = &command.Command{
	Usage: `cv [--config <file>] [--model <model-file>] [--refit] [--idw]
	[--folds <number>] [--seed <number>] <data-file>`,
	Short: "cross-validate a predictor",
	Long: `
Command cv runs a k-fold cross-validation of kriging, or of inverse distance
weighting, on a dataset. The samples are shuffled and split into folds; each
fold is predicted from the samples of the other folds.

The argument of the command is the name of the data file.

By default every fold is kriged with the variogram model fitted to the whole
dataset, or with the model read with --model. With --refit the variogram is
estimated and fitted again on the training samples of every fold. With --idw
the folds are predicted by inverse distance weighting, with the power and
number of neighbours of the configuration file.

The flags --folds and --seed override the number of folds and the seed of
the configuration file. Equal seeds give equal folds.

The output is a tab-delimited table with the columns sample, fold, observed,
predicted, variance and residual, followed by comment lines with the RMSE
and R² of every fold, their means, and the values pooled over all
out-of-fold predictions. R² is NaN when a fold has no variance.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var modelFile string
var refitFlag bool
var idwFlag bool
var folds int
var seed int64

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&modelFile, "model", "", "")
	c.Flags().BoolVar(&refitFlag, "refit", false, "")
	c.Flags().BoolVar(&idwFlag, "idw", false, "")
	c.Flags().IntVar(&folds, "folds", 0, "")
	c.Flags().Int64Var(&seed, "seed", -1, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}
	if refitFlag && idwFlag {
		return c.UsageError("flags --refit and --idw are exclusive")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	if folds > 0 {
		cfg.CrossValidation.Folds = folds
	}
	if seed >= 0 {
		cfg.CrossValidation.Seed = uint64(seed)
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}

	build, err := builder(ds, cfg)
	if err != nil {
		return err
	}
	res, err := geostat.CrossValidate(ds, build, geostat.CVOptions{
		Attribute: cfg.Attribute,
		Folds:     cfg.CrossValidation.Folds,
	}, cli.Rand(cfg.CrossValidation.Seed))
	if err != nil {
		return err
	}

	w := c.Stdout()
	fmt.Fprintf(w, "sample\tfold\tobserved\tpredicted\tvariance\tresidual\n")
	for _, p := range res.Predictions {
		fmt.Fprintf(w, "%d\t%d\t%.6g\t%.6g\t%.6g\t%.6g\n", p.Sample, p.Fold, p.Observed, p.Predicted, p.Variance, p.Residual)
	}
	for _, f := range res.Folds {
		fmt.Fprintf(w, "# fold %d: n %d, missing %d, rmse %.6g, r2 %.6g\n", f.Fold, f.N, f.Missing, f.RMSE, f.R2)
	}
	fmt.Fprintf(w, "# mean: rmse %.6g, r2 %.6g\n", res.MeanRMSE, res.MeanR2)
	fmt.Fprintf(w, "# pooled: rmse %.6g, r2 %.6g, missing %d\n", res.RMSE, res.R2, res.Missing)
	return nil
}

func builder(ds *geostat.Dataset, cfg *config.Config) (geostat.PredictorBuilder, error) {
	if idwFlag {
		return geostat.IDWBuilder(cfg.IDWOptions()), nil
	}
	popts, err := cfg.PredictorOptions()
	if err != nil {
		return nil, err
	}
	if refitFlag {
		bins, err := geostat.EstimateVariogram(ds, cfg.VariogramOptions())
		if err != nil {
			return nil, err
		}
		initial, err := cfg.InitialModel(bins)
		if err != nil {
			return nil, err
		}
		return geostat.RefitKrigingBuilder(initial, cfg.VariogramOptions(), cfg.FitOptions(), popts), nil
	}
	model, err := cli.Model(ds, cfg, modelFile)
	if err != nil {
		return nil, err
	}
	return geostat.KrigingBuilder(model, popts), nil
}
