// Package variogram implements a command to compute
// the empirical variogram of a dataset.
package variogram

import (
	"fmt"
	"math"

	"github.com/js-arias/command"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	geostat "github.com/flywave/go-geostat"
	"github.com/flywave/go-geostat/internal/cli"
)

var Command = &command.Command{
	Usage: `variogram [--config <file>] [--cloud]
	[--plot <image-file>] [--fit] [--model <model-file>] <data-file>`,
	Short: "compute an empirical variogram",
	Long: `
Command variogram reads a sample file and prints the binned empirical
variogram of an attribute as a tab-delimited table with the columns
direction, lower, upper, distance, gamma and pairs. Lag classes without pairs
are omitted.

The argument of the command is the name of the data file. Type
"geostat help data-files" to learn about the formats.

The lag width, cutoff, directions and estimator are taken from the
configuration file set with --config. Type "geostat help config-files" for
the file format.

If the flag --cloud is set, the command prints the variogram cloud instead:
one row per sample pair with the columns i, j, distance, bearing and gamma.

If the flag --plot is given, a plot of the variogram is written to the
indicated file; the extension sets the image format (for example ".png" or
".svg"). With --fit, a model is fitted to the bins and drawn over them; with
--model, the model in the indicated JSON file is drawn instead.
	`,
	SetFlags: setFlags,
	Run:      run,
}

var configFile string
var plotFile string
var modelFile string
var cloudFlag bool
var fitFlag bool

func setFlags(c *command.Command) {
	c.Flags().StringVar(&configFile, "config", "", "")
	c.Flags().StringVar(&plotFile, "plot", "", "")
	c.Flags().StringVar(&modelFile, "model", "", "")
	c.Flags().BoolVar(&cloudFlag, "cloud", false, "")
	c.Flags().BoolVar(&fitFlag, "fit", false, "")
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting data file")
	}

	cfg, err := cli.Setup(configFile, c.Stderr())
	if err != nil {
		return err
	}
	ds, err := cli.ReadData(args[0], cfg)
	if err != nil {
		return err
	}

	if cloudFlag {
		cloud, err := geostat.VariogramCloud(ds, cfg.VariogramOptions())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout(), "i\tj\tdistance\tbearing\tgamma\n")
		for _, p := range cloud {
			fmt.Fprintf(c.Stdout(), "%d\t%d\t%.6f\t%.3f\t%.6g\n", p.I, p.J, p.Distance, p.Bearing, p.Gamma)
		}
		return nil
	}

	bins, err := geostat.EstimateVariogram(ds, cfg.VariogramOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout(), "direction\tlower\tupper\tdistance\tgamma\tpairs\n")
	for _, b := range bins {
		fmt.Fprintf(c.Stdout(), "%.1f\t%.6f\t%.6f\t%.6f\t%.6g\t%d\n", b.Direction, b.Lower, b.Upper, b.Distance, b.Gamma, b.Pairs)
	}

	if plotFile == "" {
		return nil
	}
	var model *geostat.VariogramModel
	if fitFlag || modelFile != "" {
		m, err := cli.Model(ds, cfg, modelFile)
		if err != nil {
			return err
		}
		model = &m
	}
	return writePlot(plotFile, cfg.Attribute, bins, model)
}

func writePlot(name, attr string, bins []geostat.LagBin, model *geostat.VariogramModel) error {
	p := plot.New()
	p.Title.Text = attr
	p.X.Label.Text = "distance"
	p.Y.Label.Text = "semivariance"
	p.X.Min = 0
	p.Y.Min = 0

	var dirs []float64
	series := make(map[float64]plotter.XYs)
	var maxDist float64
	for _, b := range bins {
		if _, ok := series[b.Direction]; !ok {
			dirs = append(dirs, b.Direction)
		}
		series[b.Direction] = append(series[b.Direction], plotter.XY{X: b.Distance, Y: b.Gamma})
		maxDist = math.Max(maxDist, b.Upper)
	}

	for i, d := range dirs {
		sc, err := plotter.NewScatter(series[d])
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = plotutil.Shape(i)
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		if len(dirs) > 1 {
			p.Legend.Add(fmt.Sprintf("%.0f°", d), sc)
		}

		if model == nil {
			continue
		}
		line, err := plotter.NewLine(modelCurve(*model, d, maxDist))
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		if i == 0 {
			p.Legend.Add(string(model.Shape), line)
		}
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
		return err
	}
	return nil
}

const curvePoints = 200

// modelCurve samples the model along azimuth az from 0 to maxDist.
func modelCurve(m geostat.VariogramModel, az, maxDist float64) plotter.XYs {
	xys := make(plotter.XYs, 0, curvePoints+1)
	rad := az * math.Pi / 180
	for i := 0; i <= curvePoints; i++ {
		h := maxDist * float64(i) / curvePoints
		eff := h
		if m.Anisotropy != nil {
			eff = m.Anisotropy.EffectiveDistance(h*math.Sin(rad), h*math.Cos(rad))
		}
		g := m.Nugget
		if h > 0 {
			g = m.Semivariance(eff)
		}
		xys = append(xys, plotter.XY{X: h, Y: g})
	}
	return xys
}
