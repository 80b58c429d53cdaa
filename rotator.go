package geostat

import (
	"math"

	mat2d "github.com/flywave/go3d/float64/mat2"
	vec2d "github.com/flywave/go3d/float64/vec2"
)

// Rotator turns a separation vector into the frame of an anisotropy
// ellipse. Degrees is an azimuth, clockwise from north.
type Rotator struct {
	Degrees float64
}

// RotationMatrix returns the rotation taking the azimuth direction onto
// the second axis. Entries are indexed [row][column].
func (r Rotator) RotationMatrix() (m mat2d.T) {
	rad := degToRad(r.Degrees)

	c := math.Cos(rad)
	s := math.Sin(rad)

	m[0][0] = c
	m[0][1] = -s
	m[1][0] = s
	m[1][1] = c

	return m
}

// RotateVector returns v expressed as (minor, major) components relative to
// the rotator's azimuth.
func (r Rotator) RotateVector(v vec2d.T) vec2d.T {
	m := r.RotationMatrix()
	return vec2d.T{
		m[0][0]*v[0] + m[0][1]*v[1],
		m[1][0]*v[0] + m[1][1]*v[1],
	}
}

// Anisotropy describes geometric anisotropy: Angle is the azimuth of the
// major axis in degrees clockwise from north, Ratio the minor to major range
// ratio in (0, 1].
type Anisotropy struct {
	Angle float64 `json:"angle" yaml:"angle"`
	Ratio float64 `json:"ratio" yaml:"ratio"`
}

// EffectiveDistance maps a separation vector to the isotropic distance seen
// by the model: the minor-axis component is stretched by 1/Ratio.
func (a Anisotropy) EffectiveDistance(dx, dy float64) float64 {
	v := Rotator{a.Angle}.RotateVector(vec2d.T{dx, dy})
	return math.Sqrt(pow2(v[0]/a.Ratio) + pow2(v[1]))
}
