package geostat

import (
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

type voxelGrid struct {
	LeafSize vec3d.T
}

type voxel struct {
	first  vec3d.T
	sum    vec3d.T
	values []float64
	num    int
}

func newVoxelGrid(leafSize vec3d.T) *voxelGrid {
	return &voxelGrid{LeafSize: leafSize}
}

// cells is the voxel count along one axis; a non-positive leaf collapses
// the axis into a single voxel.
func (f *voxelGrid) cells(extent float64, k int) int {
	if !(f.LeafSize[k] > 0) {
		return 1
	}
	return int(extent/f.LeafSize[k]) + 1
}

func (f *voxelGrid) cell(offset float64, k int) int {
	if !(f.LeafSize[k] > 0) {
		return 0
	}
	return int(offset / f.LeafSize[k])
}

// Filter merges the samples falling into one voxel into their centroid,
// averaging every attribute. Output follows the voxel index, x varying
// fastest.
func (f *voxelGrid) Filter(samples []Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}
	box := vec3d.Box{Min: vec3d.MaxVal, Max: vec3d.MinVal}
	for i := range samples {
		box.Extend(&samples[i].Coord)
	}
	size := vec3d.Sub(&box.Max, &box.Min)
	xs, ys := f.cells(size[0], 0), f.cells(size[1], 1)

	voxels := make(map[int]*voxel)
	for i := range samples {
		p := vec3d.Sub(&samples[i].Coord, &box.Min)
		x, y, z := f.cell(p[0], 0), f.cell(p[1], 1), f.cell(p[2], 2)
		key := x + xs*(y+ys*z)
		v := voxels[key]
		if v == nil {
			v = &voxel{first: samples[i].Coord, values: make([]float64, len(samples[i].Values))}
			voxels[key] = v
		}
		v.num++
		v.sum.Add(&p)
		for k, val := range samples[i].Values {
			v.values[k] += val
		}
	}

	keys := make([]int, 0, len(voxels))
	for key := range voxels {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	out := make([]Sample, 0, len(voxels))
	for _, key := range keys {
		v := voxels[key]
		n := float64(v.num)
		c := v.first
		if v.num > 1 {
			c = v.sum.Scaled(1 / n)
			c.Add(&box.Min)
		}
		for k := range v.values {
			v.values[k] /= n
		}
		out = append(out, Sample{Coord: c, Values: v.values})
	}
	return out
}

// Decluster averages samples sharing a voxel of the given leaf size, which
// removes duplicated locations before kriging. A zero leaf component keeps
// that axis undivided.
func (d *Dataset) Decluster(leaf vec3d.T) (*Dataset, error) {
	for k := range leaf {
		if leaf[k] < 0 || !isFinite(leaf[k]) {
			return nil, newValidation("leaf_size", "must be finite and >= 0", leaf)
		}
	}
	return NewDataset(d.frame, d.attrs, newVoxelGrid(leaf).Filter(d.samples))
}
