package geostat

import (
	"encoding/json"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// VariogramModel is a fitted theoretical variogram. Sill is the partial
// sill, so the total sill is Nugget+Sill. Models are read-only once fitted.
type VariogramModel struct {
	Shape      ModelType   `json:"shape" yaml:"shape"`
	Nugget     float64     `json:"nugget" yaml:"nugget"`
	Sill       float64     `json:"sill" yaml:"sill"`
	Range      float64     `json:"range" yaml:"range"`
	Anisotropy *Anisotropy `json:"anisotropy,omitempty" yaml:"anisotropy,omitempty"`
}

// Validate checks the parameter constraints shared by fitting and
// prediction.
func (m VariogramModel) Validate() error {
	switch m.Shape {
	case Nugget, Exponential, Spherical, Gaussian, Linear:
	default:
		return newValidation("shape", "unknown variogram model", m.Shape)
	}
	if !(m.Nugget >= 0) {
		return newInfeasible("nugget", m.Nugget, ">= 0")
	}
	if !(m.Sill >= 0) {
		return newInfeasible("sill", m.Sill, ">= 0 (total sill >= nugget)")
	}
	if m.Shape != Nugget && !(m.Range > 0) {
		return newInfeasible("range", m.Range, "> 0")
	}
	if a := m.Anisotropy; a != nil {
		if !(a.Ratio > 0 && a.Ratio <= 1) {
			return newInfeasible("anisotropy.ratio", a.Ratio, "in (0, 1]")
		}
		if !isFinite(a.Angle) {
			return newInfeasible("anisotropy.angle", a.Angle, "finite")
		}
	}
	return nil
}

// TotalSill is the plateau Nugget+Sill, equal to the covariance at lag 0.
func (m VariogramModel) TotalSill() float64 {
	return m.Nugget + m.Sill
}

// structure is the normalised shape function in [0,1] at distance h.
func (m VariogramModel) structure(h float64) float64 {
	switch m.Shape {
	case Nugget:
		return 0
	case Exponential:
		return 1 - exp(-h/m.Range)
	case Gaussian:
		return 1 - exp(-pow2(h/m.Range))
	case Spherical:
		if h >= m.Range {
			return 1
		}
		x := h / m.Range
		return 1.5*x - 0.5*pow3(x)
	case Linear:
		if h >= m.Range {
			return 1
		}
		return h / m.Range
	}
	return math.NaN()
}

// Semivariance evaluates the model at isotropic distance h. At h == 0 it
// returns the nugget.
func (m VariogramModel) Semivariance(h float64) float64 {
	if m.Shape == Nugget {
		return m.Nugget
	}
	return m.Nugget + m.Sill*m.structure(h)
}

// Covariance is TotalSill - Semivariance(h) for h > 0 and TotalSill at
// h == 0: the nugget acts as a discontinuity at the origin.
func (m VariogramModel) Covariance(h float64) float64 {
	if h == 0 {
		return m.TotalSill()
	}
	return m.TotalSill() - m.Semivariance(h)
}

// Distance is the model distance between two points; anisotropic models
// stretch the horizontal separation along the minor axis.
func (m VariogramModel) Distance(a, b *vec3d.T) float64 {
	if m.Anisotropy == nil {
		return distance(a, b)
	}
	h := m.Anisotropy.EffectiveDistance(b[0]-a[0], b[1]-a[1])
	if dz := b[2] - a[2]; dz != 0 {
		h = math.Sqrt(h*h + dz*dz)
	}
	return h
}

// directional evaluates the model for a lag of length h along azimuth
// az, the way a directional LagBin presents it.
func (m VariogramModel) directional(h, az float64) float64 {
	if m.Anisotropy == nil {
		return m.Semivariance(h)
	}
	rad := degToRad(az)
	return m.Semivariance(m.Anisotropy.EffectiveDistance(h*math.Sin(rad), h*math.Cos(rad)))
}

func (m VariogramModel) cov(a, b *vec3d.T) float64 {
	return m.Covariance(m.Distance(a, b))
}

// WriteModel encodes a model as JSON.
func WriteModel(w io.Writer, m VariogramModel) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(m), "encoding variogram model")
}

// ReadModel decodes and validates a JSON model.
func ReadModel(r io.Reader) (VariogramModel, error) {
	var m VariogramModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return m, errors.Wrap(err, "decoding variogram model")
	}
	shape, err := ParseModelType(string(m.Shape))
	if err != nil {
		return m, err
	}
	m.Shape = shape
	return m, m.Validate()
}
