// Package fit implements a command to fit
// a variogram model to a dataset.
package fit

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/js-arias/command"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/internal/cli"
)

var Command = &command.Command{
	Usage: `fit [--config <file>] [--shape <model>]
	[-o|--output <file>] <data-file>`,
	Short: "fit a variogram model",
	Long: `
Command fit estimates the empirical variogram of a dataset and fits a
theoretical model to it by weighted least squares. The fitted model is
printed as JSON, in the format read by the --model flag of the other
commands.

The argument of the command is the name of the data file.

The flag --shape sets the model shape, overriding the configuration file. It
can be "nugget", "exponential", "spherical", "gaussian" or "linear", or the
gstat abbreviations "Nug", "Exp", "Sph", "Gau" and "Lin".

By default the model is printed on the standard output. Use the flag --output,
or -o, to write it to a file.

A summary of the fit, with the sum of squared errors before and after the
fit, is printed on the standard error. A fit that reaches the iteration limit
still prints its best model, flagged as not converged.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var shapeFlag string
var output string

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&shapeFlag, "shape", "", "")
	c.Flags().StringVar(&output, "output", "", "")
	c.Flags().StringVar(&output, "o", "", "")
}

func run(c *command.Command, args []string) (err error) {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	if shapeFlag != "" {
		cfg.Fit.Model = shapeFlag
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}

	bins, err := geostat.EstimateVariogram(ds, cfg.VariogramOptions())
	if err != nil {
		return err
	}
	initial, err := cfg.InitialModel(bins)
	if err != nil {
		return err
	}
	res, err := geostat.FitVariogram(bins, initial, cfg.FitOptions())
	if err != nil && !errors.Is(err, geostat.ErrFitDidNotConverge) {
		return err
	}
	fmt.Fprintf(c.Stderr(), "# %s: sse %.6g -> %.6g, %d iterations, converged: %v\n",
		res.Model.Shape, res.InitialSSE, res.SSE, res.Iterations, res.Converged)

	w := c.Stdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			e := f.Close()
			if err == nil && e != nil {
				err = e
			}
		}()
		w = f
	}
	return geostat.WriteModel(w, res.Model)
}
