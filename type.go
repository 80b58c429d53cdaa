package geostat

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// ModelType names a theoretical variogram shape.
type ModelType string

const (
	Nugget      ModelType = "nugget"
	Exponential ModelType = "exponential"
	Spherical   ModelType = "spherical"
	Gaussian    ModelType = "gaussian"
	Linear      ModelType = "linear"
)

// ParseModelType accepts the full shape names and gstat's abbreviations.
func ParseModelType(s string) (ModelType, error) {
	switch s {
	case "nugget", "Nug", "nug":
		return Nugget, nil
	case "exponential", "Exp", "exp":
		return Exponential, nil
	case "spherical", "Sph", "sph":
		return Spherical, nil
	case "gaussian", "Gau", "gau":
		return Gaussian, nil
	case "linear", "Lin", "lin":
		return Linear, nil
	}
	return "", newValidation("shape", "unknown variogram model", s)
}

// Frame is the linear coordinate reference frame every sample and query of
// a computation shares.
type Frame struct {
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}

// Sample is one observation: a coordinate plus one value per dataset
// attribute. 2D samples keep z at zero.
type Sample struct {
	Coord  vec3d.T
	Values []float64
}

// Location is a query point. A non-empty Block holds the discretisation of
// a block footprint and turns the query into a block average.
type Location struct {
	ID    int
	Point vec3d.T
	Block []vec3d.T
}

// Prediction is the result at one location. Missing results carry NaN and a
// non-nil Err; a NegativeVarianceError keeps the computed numbers.
type Prediction struct {
	ID        int
	Point     vec3d.T
	Value     float64
	Variance  float64
	Neighbors int
	Err       error
}

// Missing reports whether the prediction carries no value.
func (p Prediction) Missing() bool {
	return math.IsNaN(p.Value)
}

func missing(loc Location, neighbors int, err error) Prediction {
	return Prediction{
		ID:        loc.ID,
		Point:     loc.Point,
		Value:     math.NaN(),
		Variance:  math.NaN(),
		Neighbors: neighbors,
		Err:       err,
	}
}
