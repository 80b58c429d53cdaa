// Package simulate implements a command to draw
// conditional realisations of a dataset.
package simulate

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/js-arias/command"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/internal/cli"
)

var Command = &command.Command{
	Usage: `simulate [--config <file>] [--model <model-file>]
	[--method <method>] [--nsim <number>] [--threshold <value>]
	[--seed <number>] [--points <file>] [--cell <size>] <data-file>`,
	Short: "draw conditional simulations",
	Long: `
Command simulate draws conditional realisations of an attribute at a set of
locations. Every realisation visits the locations along its own random path
and kriges each one from the samples plus the locations simulated before it.

The argument of the command is the name of the data file.

The flag --method selects the simulation: "sgs" (the default) draws from a
normal distribution with the kriged mean and variance; "sis" draws an
indicator with the kriged probability. With --threshold, the attribute is
first turned into the indicator of values above the threshold; the variogram
is then estimated on the indicator, unless a model is given with --model.

The flags --nsim and --seed set the number of realisations and the random
seed, overriding the configuration file. Equal seeds give equal
realisations.

Prediction locations are chosen as in the command "geostat krige". The
output is a tab-delimited table with the columns location_id, x and y, plus
one column per realisation (sim0, sim1, ...). Locations that could not be
kriged are NaN.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var modelFile string
var pointsFile string
var method string
var cellSize float64
var threshold string
var nsim int
var seed int64

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&modelFile, "model", "", "")
	c.Flags().StringVar(&pointsFile, "points", "", "")
	c.Flags().StringVar(&method, "method", "", "")
	c.Flags().Float64Var(&cellSize, "cell", 0, "")
	c.Flags().StringVar(&threshold, "threshold", "", "")
	c.Flags().IntVar(&nsim, "nsim", 0, "")
	c.Flags().Int64Var(&seed, "seed", -1, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	if method != "" {
		cfg.Simulation.Method = method
	}
	if nsim > 0 {
		cfg.Simulation.NSim = nsim
	}
	if seed >= 0 {
		cfg.Simulation.Seed = uint64(seed)
	}
	if threshold != "" {
		t, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return c.UsageError(fmt.Sprintf("flag --threshold: %v", err))
		}
		cfg.Simulation.Threshold = &t
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}

	// An indicator run is modelled on the indicator variogram.
	vds, vcfg := ds, *cfg
	if t := cfg.Simulation.Threshold; t != nil && modelFile == "" {
		if vds, vcfg.Attribute, err = ds.Indicator(cfg.Attribute, *t); err != nil {
			return err
		}
	}
	model, err := cli.Model(vds, &vcfg, modelFile)
	if err != nil {
		return err
	}

	opts, err := cfg.SimulationOptions()
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
	reals, err := geostat.Simulate(model, ds, locs, opts, cli.Rand(cfg.Simulation.Seed))
	if err != nil {
		return err
	}
	return writeRealizations(c, locs, reals)
}

func writeRealizations(c *command.Command, locs geostat.PredictionGrid, reals []geostat.Realization) error {
	bw := bufio.NewWriter(c.Stdout())
	fmt.Fprintf(bw, "location_id\tx\ty")
	for _, r := range reals {
		fmt.Fprintf(bw, "\tsim%d", r.Index)
	}
	fmt.Fprintf(bw, "\n")
	for i, loc := range locs.Locations {
		fmt.Fprintf(bw, "%d\t%s\t%s", loc.ID,
			strconv.FormatFloat(loc.Point[0], 'f', -1, 64),
			strconv.FormatFloat(loc.Point[1], 'f', -1, 64))
		for _, r := range reals {
			fmt.Fprintf(bw, "\t%.6g", r.Values[i])
		}
		fmt.Fprintf(bw, "\n")
	}
	return bw.Flush()
}
