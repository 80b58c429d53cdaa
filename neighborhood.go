package geostat

import (
	"math"
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Neighborhood restricts the samples used at each location. Zero NMax and
// MaxDist mean no limit; a location with fewer than NMin neighbours yields an
// InsufficientNeighborsError.
type Neighborhood struct {
	NMax    int     `json:"nmax" yaml:"nmax"`
	MaxDist float64 `json:"maxdist" yaml:"maxdist"`
	NMin    int     `json:"nmin" yaml:"nmin"`
}

func (n Neighborhood) validate() error {
	if n.NMax < 0 {
		return newValidation("nmax", "must be >= 0", n.NMax)
	}
	if n.NMin < 0 {
		return newValidation("nmin", "must be >= 0", n.NMin)
	}
	if n.NMax > 0 && n.NMin > n.NMax {
		return newValidation("nmin", "must not exceed nmax", n.NMin)
	}
	if !(n.MaxDist >= 0) || math.IsInf(n.MaxDist, 1) {
		return newValidation("maxdist", "must be finite and >= 0", n.MaxDist)
	}
	return nil
}

func (n Neighborhood) unlimited() bool {
	return n.NMax == 0 && n.MaxDist == 0
}

type neighborPoint struct {
	p     vec3d.T
	index int
}

func (p neighborPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(neighborPoint)
	return p.p[d] - q.p[d]
}

func (p neighborPoint) Dims() int { return 3 }

// Distance is squared, as kdtree expects.
func (p neighborPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(neighborPoint)
	return pow2(p.p[0]-q.p[0]) + pow2(p.p[1]-q.p[1]) + pow2(p.p[2]-q.p[2])
}

type neighborPoints []neighborPoint

func (p neighborPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p neighborPoints) Len() int                              { return len(p) }
func (p neighborPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p neighborPoints) Pivot(d kdtree.Dim) int {
	plane := neighborPlane{neighborPoints: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfMedians(plane))
}

type neighborPlane struct {
	neighborPoints
	kdtree.Dim
}

func (p neighborPlane) Less(i, j int) bool {
	return p.neighborPoints[i].p[p.Dim] < p.neighborPoints[j].p[p.Dim]
}

func (p neighborPlane) Slice(start, end int) kdtree.SortSlicer {
	return neighborPlane{neighborPoints: p.neighborPoints[start:end], Dim: p.Dim}
}

func (p neighborPlane) Swap(i, j int) {
	p.neighborPoints[i], p.neighborPoints[j] = p.neighborPoints[j], p.neighborPoints[i]
}

// neighborIndex answers neighbourhood queries over a fixed coordinate set.
// Hits are ordered by distance, ties by sample index.
type neighborIndex struct {
	coords []vec3d.T
	tree   *kdtree.Tree
	hood   Neighborhood
}

func newNeighborIndex(coords []vec3d.T, hood Neighborhood) *neighborIndex {
	idx := &neighborIndex{coords: coords, hood: hood}
	if hood.unlimited() {
		return idx
	}
	pts := make(neighborPoints, len(coords))
	for i, c := range coords {
		pts[i] = neighborPoint{p: c, index: i}
	}
	idx.tree = kdtree.New(pts, false)
	return idx
}

type neighbor struct {
	index int
	dist2 float64
}

func (n *neighborIndex) search(q vec3d.T) []int {
	var hits []neighbor
	switch {
	case n.tree == nil:
		hits = make([]neighbor, len(n.coords))
		for i := range n.coords {
			hits[i] = neighbor{index: i, dist2: pow2(distance(&q, &n.coords[i]))}
		}
	case n.hood.NMax > 0:
		keeper := kdtree.NewNKeeper(n.hood.NMax)
		n.tree.NearestSet(keeper, neighborPoint{p: q})
		hits = collect(keeper.Heap)
		// The keeper cuts ties at the farthest distance arbitrarily; take
		// them all so finish can break them by index.
		if len(hits) == n.hood.NMax {
			var far float64
			for _, h := range hits {
				far = math.Max(far, h.dist2)
			}
			all := kdtree.NewDistKeeper(far)
			n.tree.NearestSet(all, neighborPoint{p: q})
			hits = collect(all.Heap)
		}
	default:
		keeper := kdtree.NewDistKeeper(pow2(n.hood.MaxDist))
		n.tree.NearestSet(keeper, neighborPoint{p: q})
		hits = collect(keeper.Heap)
	}
	return n.finish(hits)
}

func collect(heap kdtree.Heap) []neighbor {
	out := make([]neighbor, 0, len(heap))
	for _, item := range heap {
		// The keeper heaps start with a nil sentinel.
		if item.Comparable == nil {
			continue
		}
		out = append(out, neighbor{index: item.Comparable.(neighborPoint).index, dist2: item.Dist})
	}
	return out
}

func (n *neighborIndex) finish(hits []neighbor) []int {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist2 != hits[j].dist2 {
			return hits[i].dist2 < hits[j].dist2
		}
		return hits[i].index < hits[j].index
	})
	out := make([]int, 0, len(hits))
	max2 := pow2(n.hood.MaxDist)
	for _, h := range hits {
		if n.hood.MaxDist > 0 && h.dist2 > max2 {
			break
		}
		if n.hood.NMax > 0 && len(out) == n.hood.NMax {
			break
		}
		out = append(out, h.index)
	}
	return out
}

// bruteNeighbors searches a coordinate set that grows between queries, as
// in sequential simulation.
func bruteNeighbors(coords []vec3d.T, q vec3d.T, hood Neighborhood) []int {
	n := &neighborIndex{coords: coords, hood: hood}
	return n.search(q)
}
