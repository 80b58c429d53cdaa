package geostat

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

func degToRad(angle float64) float64 {
	return angle * math.Pi / 180
}

func radToDeg(angle float64) float64 {
	return angle * 180 / math.Pi
}

func exp(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Exp(x)
}

func pow2(x float64) float64 {
	return x * x
}

func pow3(x float64) float64 {
	return x * x * x
}

func distance(a, b *vec3d.T) float64 {
	return math.Sqrt(pow2(a[0]-b[0]) + pow2(a[1]-b[1]) + pow2(a[2]-b[2]))
}

// bearing is the azimuth of b seen from a, in degrees clockwise from north,
// folded into [0, 180) since variogram pairs are unordered.
func bearing(a, b *vec3d.T) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	az := radToDeg(math.Atan2(dx, dy))
	az = math.Mod(az, 180)
	if az < 0 {
		az += 180
	}
	return az
}

// angleGap is the smallest difference between two axial directions.
func angleGap(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 180)
	if d > 90 {
		d = 180 - d
	}
	return d
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
