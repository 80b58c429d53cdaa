package geostat

import (
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// PredictionGrid is an ordered set of query locations sharing the frame of
// the dataset they are predicted from.
type PredictionGrid struct {
	Frame     Frame
	Locations []Location
}

// NewPointGrid numbers the points 0..n-1 in order.
func NewPointGrid(frame Frame, points []vec3d.T) PredictionGrid {
	g := PredictionGrid{Frame: frame, Locations: make([]Location, len(points))}
	for i, p := range points {
		g.Locations[i] = Location{ID: i, Point: p}
	}
	return g
}

// SampleGrid places one location on every sample of ds, with the sample
// index as ID.
func SampleGrid(ds *Dataset) PredictionGrid {
	return NewPointGrid(ds.Frame(), ds.Coords())
}

// RegularGrid is a raster of Width×Height cells whose lower-left corner is
// Origin. Row 0 is the northern row.
type RegularGrid struct {
	Frame     Frame
	Width     int
	Height    int
	Origin    vec2d.T
	PixelSize [2]float64
	// Z is the elevation given to every cell centre.
	Z float64
}

// CalculateGrid covers bounds with cells of pixelSize. A side narrower than
// one cell still gets one cell.
func CalculateGrid(frame Frame, bounds vec2d.Rect, pixelSize [2]float64) (*RegularGrid, error) {
	for k := 0; k < 2; k++ {
		if !(pixelSize[k] > 0) || math.IsInf(pixelSize[k], 1) {
			return nil, newValidation("pixel_size", "must be finite and > 0", pixelSize)
		}
		if !(bounds.Max[k] >= bounds.Min[k]) {
			return nil, newValidation("bounds", "empty rectangle", bounds)
		}
	}
	cells := func(k int) int {
		n := int(math.Ceil((bounds.Max[k] - bounds.Min[k]) / pixelSize[k]))
		if n < 1 {
			n = 1
		}
		return n
	}
	return &RegularGrid{
		Frame:     frame,
		Width:     cells(0),
		Height:    cells(1),
		Origin:    bounds.Min,
		PixelSize: pixelSize,
	}, nil
}

func (g *RegularGrid) Count() int { return g.Width * g.Height }

// Center returns the centre of the cell at row, column.
func (g *RegularGrid) Center(row, column int) vec3d.T {
	return vec3d.T{
		g.Origin[0] + (float64(column)+0.5)*g.PixelSize[0],
		g.Origin[1] + (float64(g.Height-row)-0.5)*g.PixelSize[1],
		g.Z,
	}
}

func (g *RegularGrid) GetRect() vec2d.Rect {
	return vec2d.Rect{
		Min: g.Origin,
		Max: vec2d.T{
			g.Origin[0] + float64(g.Width)*g.PixelSize[0],
			g.Origin[1] + float64(g.Height)*g.PixelSize[1],
		},
	}
}

// Locations lists the cell centres row by row, with ID row*Width+column.
func (g *RegularGrid) Locations() PredictionGrid {
	out := PredictionGrid{Frame: g.Frame, Locations: make([]Location, 0, g.Count())}
	for row := 0; row < g.Height; row++ {
		for column := 0; column < g.Width; column++ {
			out.Locations = append(out.Locations, Location{ID: row*g.Width + column, Point: g.Center(row, column)})
		}
	}
	return out
}

// BlockGrid turns every location into a block of the given size centred on
// it, discretised by n×n points.
func BlockGrid(grid PredictionGrid, size vec2d.T, n int) (PredictionGrid, error) {
	if n < 1 {
		return PredictionGrid{}, newValidation("block_points", "must be >= 1", n)
	}
	if !(size[0] > 0 && size[1] > 0) {
		return PredictionGrid{}, newValidation("block_size", "must be > 0", size)
	}
	out := PredictionGrid{Frame: grid.Frame, Locations: make([]Location, len(grid.Locations))}
	for i, loc := range grid.Locations {
		block := make([]vec3d.T, 0, n*n)
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				block = append(block, vec3d.T{
					loc.Point[0] + ((float64(a)+0.5)/float64(n)-0.5)*size[0],
					loc.Point[1] + ((float64(b)+0.5)/float64(n)-0.5)*size[1],
					loc.Point[2],
				})
			}
		}
		out.Locations[i] = Location{ID: loc.ID, Point: loc.Point, Block: block}
	}
	return out, nil
}

// MaskHull keeps the locations inside hull, preserving their IDs.
func MaskHull(grid PredictionGrid, hull *Convex) PredictionGrid {
	out := PredictionGrid{Frame: grid.Frame}
	for _, loc := range grid.Locations {
		if hull.Contains(vec2d.T{loc.Point[0], loc.Point[1]}) {
			out.Locations = append(out.Locations, loc)
		}
	}
	return out
}
