package geostat

import (
	"fmt"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"gonum.org/v1/gonum/stat"
)

// Dataset is an immutable set of samples sharing one coordinate frame.
// Methods that change the content return a new Dataset.
type Dataset struct {
	frame   Frame
	attrs   []string
	samples []Sample
	dims    int
}

// NewDataset validates and copies the samples. Every sample needs finite
// coordinates and one finite value per attribute; otherwise a
// MalformedDatasetError is returned and nothing is built.
func NewDataset(frame Frame, attrs []string, samples []Sample) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, newMalformed(-1, "no samples")
	}
	if len(attrs) == 0 {
		return nil, newMalformed(-1, "no attributes")
	}
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a == "" {
			return nil, newMalformed(-1, "empty attribute name")
		}
		if seen[a] {
			return nil, newMalformed(-1, "duplicated attribute %q", a)
		}
		seen[a] = true
	}

	ds := &Dataset{
		frame:   frame,
		attrs:   append([]string(nil), attrs...),
		samples: make([]Sample, len(samples)),
		dims:    2,
	}
	for i, s := range samples {
		for k := range s.Coord {
			if !isFinite(s.Coord[k]) {
				return nil, newMalformed(i, "coordinate %d is %v", k, s.Coord[k])
			}
		}
		if len(s.Values) != len(attrs) {
			return nil, newMalformed(i, "%d values for %d attributes", len(s.Values), len(attrs))
		}
		for k, v := range s.Values {
			if !isFinite(v) {
				return nil, newMalformed(i, "attribute %q is %v", attrs[k], v)
			}
		}
		if s.Coord[2] != 0 {
			ds.dims = 3
		}
		ds.samples[i] = Sample{Coord: s.Coord, Values: append([]float64(nil), s.Values...)}
	}
	return ds, nil
}

func (d *Dataset) Len() int { return len(d.samples) }

func (d *Dataset) Frame() Frame { return d.frame }

// Dims is 3 when any sample has a non-zero z coordinate, 2 otherwise.
func (d *Dataset) Dims() int { return d.dims }

func (d *Dataset) Attributes() []string { return append([]string(nil), d.attrs...) }

// Sample returns the i-th sample. Its Values slice must not be modified.
func (d *Dataset) Sample(i int) Sample { return d.samples[i] }

// Coords returns a copy of the sample coordinates.
func (d *Dataset) Coords() []vec3d.T {
	out := make([]vec3d.T, len(d.samples))
	for i := range d.samples {
		out[i] = d.samples[i].Coord
	}
	return out
}

func (d *Dataset) attrIndex(name string) (int, error) {
	for i, a := range d.attrs {
		if a == name {
			return i, nil
		}
	}
	return -1, newValidation("attribute", fmt.Sprintf("not in dataset %v", d.attrs), name)
}

// Values returns a copy of one attribute column.
func (d *Dataset) Values(attr string) ([]float64, error) {
	k, err := d.attrIndex(attr)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(d.samples))
	for i := range d.samples {
		out[i] = d.samples[i].Values[k]
	}
	return out, nil
}

// Stats returns the mean and the sample variance of an attribute.
func (d *Dataset) Stats(attr string) (mean, variance float64, err error) {
	z, err := d.Values(attr)
	if err != nil {
		return 0, 0, err
	}
	mean, std := stat.MeanStdDev(z, nil)
	return mean, std * std, nil
}

// Subset returns the samples at the given indices, in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{frame: d.frame, attrs: d.attrs, samples: make([]Sample, len(idx)), dims: d.dims}
	for i, j := range idx {
		out.samples[i] = d.samples[j]
	}
	return out
}

// WithAttribute returns a dataset with one more attribute column.
func (d *Dataset) WithAttribute(name string, values []float64) (*Dataset, error) {
	if len(values) != len(d.samples) {
		return nil, newMalformed(-1, "attribute %q has %d values for %d samples", name, len(values), len(d.samples))
	}
	attrs := append(append([]string(nil), d.attrs...), name)
	samples := make([]Sample, len(d.samples))
	for i, s := range d.samples {
		v := make([]float64, 0, len(s.Values)+1)
		v = append(append(v, s.Values...), values[i])
		samples[i] = Sample{Coord: s.Coord, Values: v}
	}
	return NewDataset(d.frame, attrs, samples)
}

// IndicatorName is the attribute name Indicator gives to its 0/1 column.
func IndicatorName(attr string, threshold float64) string {
	return fmt.Sprintf("I(%s>%g)", attr, threshold)
}

// Indicator adds the binary transform of attr: 1 where the value exceeds
// threshold, 0 elsewhere. Kriging the result estimates the exceedance
// probability.
func (d *Dataset) Indicator(attr string, threshold float64) (*Dataset, string, error) {
	z, err := d.Values(attr)
	if err != nil {
		return nil, "", err
	}
	ind := make([]float64, len(z))
	for i, v := range z {
		if v > threshold {
			ind[i] = 1
		}
	}
	name := IndicatorName(attr, threshold)
	out, err := d.WithAttribute(name, ind)
	return out, name, err
}

// Merge concatenates two datasets with the same frame and attributes.
func (d *Dataset) Merge(other *Dataset) (*Dataset, error) {
	if d.frame != other.frame {
		return nil, newMalformed(-1, "frame %v does not match %v", other.frame, d.frame)
	}
	if len(d.attrs) != len(other.attrs) {
		return nil, newMalformed(-1, "attributes %v do not match %v", other.attrs, d.attrs)
	}
	for i := range d.attrs {
		if d.attrs[i] != other.attrs[i] {
			return nil, newMalformed(-1, "attributes %v do not match %v", other.attrs, d.attrs)
		}
	}
	samples := make([]Sample, 0, d.Len()+other.Len())
	samples = append(append(samples, d.samples...), other.samples...)
	return NewDataset(d.frame, d.attrs, samples)
}

// Bounds returns the bounding box of the sample coordinates.
func (d *Dataset) Bounds() vec3d.Box {
	r := vec3d.Box{Min: vec3d.MaxVal, Max: vec3d.MinVal}
	for i := range d.samples {
		r.Extend(&d.samples[i].Coord)
	}
	return r
}

// Diameter is the largest distance between two samples. O(n²).
func (d *Dataset) Diameter() float64 {
	var max float64
	for i := range d.samples {
		for j := 0; j < i; j++ {
			if h := distance(&d.samples[i].Coord, &d.samples[j].Coord); h > max {
				max = h
			}
		}
	}
	return max
}
