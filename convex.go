package geostat

import (
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// Convex is the horizontal convex hull of a point set, built by quickhull.
// Hull vertices run counter-clockwise.
type Convex struct {
	vertices []vec3d.T
	hull     []vec2d.T
	edges    []Edge
}

// Edge is one hull side with its outward unit normal.
type Edge struct {
	Start  vec2d.T
	End    vec2d.T
	Normal vec2d.T
}

func NewConvex(vertices []vec3d.T) *Convex {
	c := Convex{vertices, nil, nil}
	return &c
}

func (c *Convex) Rect() vec2d.Rect {
	r := vec2d.Rect{Min: vec2d.MaxVal, Max: vec2d.MinVal}
	hull := c.Hull()
	for i := range hull {
		r.Extend(&hull[i])
	}
	return r
}

func (c *Convex) Hull() []vec2d.T {
	if c.hull == nil && len(c.vertices) > 0 {
		minX, maxX := c.getExtremePoints()
		c.hull = append(c.quickHull(c.vertices, maxX, minX), c.quickHull(c.vertices, minX, maxX)...)
	}
	return c.hull
}

func (c *Convex) Edges() []Edge {
	if c.edges == nil {
		hull := c.Hull()
		for i, start := range hull {
			nextIndex := i + 1
			if len(hull) <= nextIndex {
				nextIndex = 0
			}
			end := hull[nextIndex]
			normal := Rotator{90}.RotateVector(vec2d.Sub(&start, &end))
			normal.Normalize()
			c.edges = append(c.edges, Edge{start, end, normal})
		}
	}
	return c.edges
}

// Contains reports whether p lies inside the hull or on its boundary, up to
// a tolerance relative to the hull size. Hulls of fewer than three vertices
// contain nothing.
func (c *Convex) Contains(p vec2d.T) bool {
	edges := c.Edges()
	if len(edges) < 3 {
		return false
	}
	r := c.Rect()
	eps := 1e-9 * math.Max(r.Max[0]-r.Min[0], r.Max[1]-r.Min[1])
	for _, e := range edges {
		if OnTheRight(Subtract2(p, e.Start), Subtract2(e.End, e.Start), eps) {
			return false
		}
	}
	return true
}

func (c *Convex) quickHull(points []vec3d.T, start, end vec2d.T) []vec2d.T {
	left, farthest, ok := c.leftOf(points, start, end)
	if !ok {
		return []vec2d.T{end}
	}
	return append(
		c.quickHull(left, farthest, end),
		c.quickHull(left, start, farthest)...)
}

func Subtract2(lhs vec2d.T, rhs vec2d.T) vec2d.T {
	return vec2d.T{lhs[0] - rhs[0], lhs[1] - rhs[1]}
}

// OnTheRight reports whether v points to the right of the direction o by
// more than eps times |o|.
func OnTheRight(v vec2d.T, o vec2d.T, eps float64) bool {
	return Cross(o, v) < -eps*o.Length()
}

func Cross(lhs, rhs vec2d.T) float64 {
	return (lhs[0] * rhs[1]) - (lhs[1] * rhs[0])
}

func (c *Convex) getExtremePoints() (minX, maxX vec2d.T) {
	minX = vec2d.T{math.MaxFloat64, 0}
	maxX = vec2d.T{-math.MaxFloat64, 0}

	for _, p := range c.vertices {
		if p[0] < minX[0] {
			minX = vec2d.T{p[0], p[1]}
		}
		if maxX[0] < p[0] {
			maxX = vec2d.T{p[0], p[1]}
		}
	}
	return minX, maxX
}

// leftOf keeps the points strictly left of start→end and the first of them
// farthest from the line.
func (c *Convex) leftOf(points []vec3d.T, start, end vec2d.T) (left []vec3d.T, farthest vec2d.T, ok bool) {
	vLine := vec2d.Sub(&end, &start)
	best := 0.0
	for _, p := range points {
		p2 := vec2d.T{p[0], p[1]}
		vPoint := vec2d.Sub(&p2, &start)
		d := Cross(vLine, vPoint)
		if d <= 0 {
			continue
		}
		left = append(left, p)
		if d > best {
			best = d
			farthest = p2
			ok = true
		}
	}
	return left, farthest, ok
}
