package geostat

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go-geostat/internal/log"
)

const (
	defaultNoData    = float64(-9999)
	defaultNoDataStr = "-9999"
)

const (
	BILINEAR   = "bilinear"
	HYPERBOLIC = "hyperbolic"
)

// Interpolator blends the four cell values around a point. x runs east from
// the western cells and y south from the northern cells, both in [0, 1].
type Interpolator interface {
	Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64
}

// NewCellInterpolator returns the interpolator called name, bilinear when
// the name is empty.
func NewCellInterpolator(name string) (Interpolator, error) {
	switch name {
	case "", BILINEAR:
		return &BilinearInterpolator{}, nil
	case HYPERBOLIC:
		return &HyperbolicInterpolator{}, nil
	}
	return nil, newValidation("interpolator", "unknown cell interpolator", name)
}

type BilinearInterpolator struct{}

func Lerp(value1, value2, amount float64) float64 { return value1 + (value2-value1)*amount }

func (i *BilinearInterpolator) Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64 {
	return Lerp(Lerp(northWest, southWest, y), Lerp(northEast, southEast, y), x)
}

// HyperbolicInterpolator evaluates the hyperbolic paraboloid through the
// four corners.
type HyperbolicInterpolator struct{}

func (i *HyperbolicInterpolator) Interpolate(southWest, southEast, northWest, northEast, x, y float64) float64 {
	a00 := northWest
	a10 := northEast - northWest
	a01 := southWest - northWest
	a11 := northWest - northEast - southWest + southEast
	return a00 + a10*x + a01*y + a11*x*y
}

// Raster holds gridded predictions row by row, northern row first. Cells
// without a prediction are NaN.
type Raster struct {
	Grid      *RegularGrid
	Values    []float64
	Variances []float64
}

// NewRaster places predictions in the cells named by their IDs.
func NewRaster(grid *RegularGrid, preds []Prediction) (*Raster, error) {
	r := &Raster{
		Grid:      grid,
		Values:    make([]float64, grid.Count()),
		Variances: make([]float64, grid.Count()),
	}
	for i := range r.Values {
		r.Values[i] = math.NaN()
		r.Variances[i] = math.NaN()
	}
	for _, p := range preds {
		if p.ID < 0 || p.ID >= grid.Count() {
			return nil, newValidation("prediction", "ID outside the grid", p.ID)
		}
		r.Values[p.ID] = p.Value
		r.Variances[p.ID] = p.Variance
	}
	return r, nil
}

func (r *Raster) Value(row, column int) float64 {
	return r.Values[row*r.Grid.Width+column]
}

// MinMax returns the range of the non-missing values, NaN when there is
// none.
func (r *Raster) MinMax() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range r.Values {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if math.IsInf(min, 1) {
		return math.NaN(), math.NaN()
	}
	return min, max
}

func (r *Raster) clampedValue(row, column int) float64 {
	row = clampIndex(row, r.Grid.Height)
	column = clampIndex(column, r.Grid.Width)
	return r.Value(row, column)
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func averageExceptMissing(valueIfAllBad float64, values ...float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return valueIfAllBad
	}
	return sum / float64(n)
}

// At samples the raster at (x, y) between cell centres. Missing corners
// take the mean of the others; outside the grid the border cells are
// extended.
func (r *Raster) At(x, y float64, interpolator Interpolator) float64 {
	g := r.Grid
	top := g.Origin[1] + float64(g.Height)*g.PixelSize[1]
	xPixel := (x-g.Origin[0])/g.PixelSize[0] - 0.5
	yPixel := (top-y)/g.PixelSize[1] - 0.5

	xFloor, yFloor := math.Floor(xPixel), math.Floor(yPixel)
	xAmount, yAmount := xPixel-xFloor, yPixel-yFloor

	const epsilon = 1e-9
	if xAmount < epsilon && yAmount < epsilon {
		return r.clampedValue(int(yFloor), int(xFloor))
	}

	xf, yf := int(xFloor), int(yFloor)
	northWest := r.clampedValue(yf, xf)
	northEast := r.clampedValue(yf, xf+1)
	southWest := r.clampedValue(yf+1, xf)
	southEast := r.clampedValue(yf+1, xf+1)

	avg := averageExceptMissing(math.NaN(), southWest, southEast, northWest, northEast)
	if math.IsNaN(avg) {
		return avg
	}
	fill := func(v float64) float64 {
		if math.IsNaN(v) {
			return avg
		}
		return v
	}
	return interpolator.Interpolate(fill(southWest), fill(southEast), fill(northWest), fill(northEast), xAmount, yAmount)
}

// WriteASCIIGrid writes the values, or the variances, in the ESRI ASCII
// grid format with -9999 as no-data.
func WriteASCIIGrid(w io.Writer, r *Raster, variance bool) error {
	g := r.Grid
	data := r.Values
	if variance {
		data = r.Variances
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Width, g.Height)
	fmt.Fprintf(bw, "xllcorner %g\nyllcorner %g\n", g.Origin[0], g.Origin[1])
	if g.PixelSize[0] == g.PixelSize[1] {
		fmt.Fprintf(bw, "cellsize %g\n", g.PixelSize[0])
	} else {
		fmt.Fprintf(bw, "dx %g\ndy %g\n", g.PixelSize[0], g.PixelSize[1])
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", defaultNoDataStr)
	for row := 0; row < g.Height; row++ {
		for column := 0; column < g.Width; column++ {
			if column > 0 {
				bw.WriteByte(' ')
			}
			v := data[row*g.Width+column]
			if math.IsNaN(v) {
				v = defaultNoData
			}
			fmt.Fprintf(bw, "%g", v)
		}
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "writing ascii grid")
}

// Options configures a KrigingInterpolator. Nil pointers take defaults.
type Options struct {
	Attribute string
	// Model is the variogram shape fitted to the data. Default spherical.
	Model     *ModelType
	Variogram VariogramOptions
	Fit       FitOptions
	Predictor PredictorOptions
	// PixelSize defaults to a hundredth of the longer hull side.
	PixelSize *[2]float64
	// FilterSize is the number of declustering voxels along each axis.
	// Default 1024×1024×512.
	FilterSize *[3]uint32
	// BlockSize turns cells into blocks discretised by BlockPoints².
	BlockSize   *vec2d.T
	BlockPoints int
	// NoMask predicts every cell instead of the cells inside the sample hull.
	NoMask bool
}

// KrigingInterpolator runs the gridding pipeline: decluster, estimate and
// fit the variogram, lay a grid over the sample hull and krige it.
type KrigingInterpolator struct {
	input      *Dataset
	inputPos   []vec3d.T
	model      ModelType
	pixelSize  *[2]float64
	filterSize [3]uint32
	opts       Options

	filtered   *Dataset
	convexHull *Convex
	bins       []LagBin
	fit        FitResult
	kriging    *Predictor
	grid       *RegularGrid
}

func NewKrigingInterpolator(input *Dataset, opts Options) *KrigingInterpolator {
	inter := &KrigingInterpolator{
		input:     input,
		pixelSize: opts.PixelSize,
		opts:      opts,
	}
	if opts.Model != nil {
		inter.model = *opts.Model
	} else {
		inter.model = Spherical
	}
	if opts.FilterSize != nil {
		inter.filterSize = *opts.FilterSize
	} else {
		inter.filterSize = [3]uint32{1024, 1024, 512}
	}
	if inter.opts.Variogram.Attribute == "" {
		inter.opts.Variogram.Attribute = opts.Attribute
	}
	if inter.opts.Predictor.Attribute == "" {
		inter.opts.Predictor.Attribute = opts.Attribute
	}
	return inter
}

func (p *KrigingInterpolator) filter() error {
	box := p.input.Bounds()
	var leaf vec3d.T
	for k := 0; k < 3; k++ {
		if p.filterSize[k] > 0 {
			leaf[k] = (box.Max[k] - box.Min[k]) / float64(p.filterSize[k])
		}
	}
	ds, err := p.input.Decluster(leaf)
	if err != nil {
		return err
	}
	p.filtered = ds
	p.inputPos = ds.Coords()
	return nil
}

// Process runs the pipeline and returns the kriged raster together with the
// variogram fit it used.
func (p *KrigingInterpolator) Process() (*Raster, *FitResult, error) {
	logger := log.Component("interpolator")

	if err := p.filter(); err != nil {
		return nil, nil, err
	}
	p.computeConvexHull()
	if err := p.computeVariogram(); err != nil {
		return nil, nil, err
	}
	if err := p.computeKriging(); err != nil {
		return nil, nil, err
	}
	if err := p.cacleGrid(); err != nil {
		return nil, nil, err
	}
	raster, err := p.resample()
	if err != nil {
		return nil, nil, err
	}

	logger.Info().
		Int(log.SamplesKey, p.input.Len()).
		Int("declustered", p.filtered.Len()).
		Int("width", p.grid.Width).
		Int("height", p.grid.Height).
		Str("shape", string(p.fit.Model.Shape)).
		Msg("interpolation finished")
	return raster, &p.fit, nil
}

func (p *KrigingInterpolator) computeConvexHull() []vec2d.T {
	p.convexHull = NewConvex(p.inputPos)
	return p.convexHull.Hull()
}

func (p *KrigingInterpolator) computeVariogram() error {
	bins, err := EstimateVariogram(p.filtered, p.opts.Variogram)
	if err != nil {
		return err
	}
	p.bins = bins
	initial, err := InitialGuess(bins, p.model)
	if err != nil {
		return err
	}
	fit, err := FitVariogram(bins, initial, p.opts.Fit)
	if err != nil && !errors.Is(err, ErrFitDidNotConverge) {
		return err
	}
	p.fit = fit
	return nil
}

func (p *KrigingInterpolator) computeKriging() error {
	k, err := NewPredictor(p.fit.Model, p.filtered, p.opts.Predictor)
	if err != nil {
		return err
	}
	p.kriging = k
	return nil
}

func (p *KrigingInterpolator) cacleGrid() error {
	bounds := p.convexHull.Rect()
	if p.pixelSize == nil {
		side := math.Max(bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]) / 100
		if !(side > 0) {
			return newMalformed(-1, "samples span no area")
		}
		p.pixelSize = &[2]float64{side, side}
	}
	grid, err := CalculateGrid(p.filtered.Frame(), bounds, *p.pixelSize)
	if err != nil {
		return err
	}
	p.grid = grid
	return nil
}

func (p *KrigingInterpolator) resample() (*Raster, error) {
	locs := p.grid.Locations()
	if !p.opts.NoMask {
		locs = MaskHull(locs, p.convexHull)
	}
	if p.opts.BlockSize != nil {
		n := p.opts.BlockPoints
		if n == 0 {
			n = 4
		}
		var err error
		if locs, err = BlockGrid(locs, *p.opts.BlockSize, n); err != nil {
			return nil, err
		}
	}
	preds, err := p.kriging.Predict(locs)
	if err != nil {
		return nil, err
	}
	return NewRaster(p.grid, preds)
}

func (p *KrigingInterpolator) Hull() *Convex { return p.convexHull }

func (p *KrigingInterpolator) Bins() []LagBin { return p.bins }

func (p *KrigingInterpolator) Grid() *RegularGrid { return p.grid }
