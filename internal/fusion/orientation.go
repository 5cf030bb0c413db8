// Package fusion turns accelerometer and magnetometer vectors into a compass
// heading.
package fusion

import (
	"math"

	"github.com/i474232898/sensor-multitool/internal/classify"
)

// StandardGravity is earth gravity in m/s².
const StandardGravity = 9.80665

const (
	// Gravity magnitude below 10% of g means free fall or a bogus reading.
	freeFallSq = StandardGravity * StandardGravity * 0.01
	// Minimum |E × A| before the horizontal axis is too ill-defined to use,
	// e.g. when the field points straight along gravity.
	minHorizontalNorm = 0.1
)

// Vec3 is a 3-axis reading in device coordinates.
type Vec3 [3]float64

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Cross returns v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

// RotationMatrix maps device coordinates to world coordinates (east, north,
// up), stored row-major.
type RotationMatrix [9]float64

// NewRotationMatrix builds the device-to-world rotation from a gravity
// estimate and a geomagnetic reading. It returns false when the inputs cannot
// give a stable orientation: the device is in free fall, or the magnetic field
// is (nearly) parallel to gravity.
func NewRotationMatrix(gravity, geomagnetic Vec3) (RotationMatrix, bool) {
	normSqA := gravity[0]*gravity[0] + gravity[1]*gravity[1] + gravity[2]*gravity[2]
	if normSqA < freeFallSq || math.IsNaN(normSqA) || math.IsInf(normSqA, 0) {
		return RotationMatrix{}, false
	}

	h := geomagnetic.Cross(gravity)
	normH := h.Norm()
	if normH < minHorizontalNorm || math.IsNaN(normH) || math.IsInf(normH, 0) {
		return RotationMatrix{}, false
	}

	h = h.Scale(1 / normH)
	a := gravity.Scale(1 / math.Sqrt(normSqA))
	m := a.Cross(h)

	return RotationMatrix{
		h[0], h[1], h[2],
		m[0], m[1], m[2],
		a[0], a[1], a[2],
	}, true
}

// Orientation holds the three Euler angles of a rotation, in radians.
type Orientation struct {
	Azimuth float64 // around -Z, (-π, π], 0 at magnetic north
	Pitch   float64 // around X
	Roll    float64 // around Y
}

// Orientation decomposes the matrix into azimuth, pitch and roll.
func (r RotationMatrix) Orientation() Orientation {
	return Orientation{
		Azimuth: math.Atan2(r[1], r[4]),
		Pitch:   math.Asin(-r[7]),
		Roll:    math.Atan2(-r[6], r[8]),
	}
}

// Estimate is one fused orientation reading.
type Estimate struct {
	Heading float64 // degrees clockwise from magnetic north, [0,360)
	Pitch   float64 // degrees
	Roll    float64 // degrees
}

// Rotation is how far a north-up dial has to turn to point north.
func (e Estimate) Rotation() float64 {
	return -e.Heading
}

// Fuse computes the orientation for one (gravity, geomagnetic) pair. ok is
// false when the pair is unstable; callers keep their previous estimate.
func Fuse(gravity, geomagnetic Vec3) (Estimate, bool) {
	r, ok := NewRotationMatrix(gravity, geomagnetic)
	if !ok {
		return Estimate{}, false
	}
	o := r.Orientation()
	return Estimate{
		Heading: classify.NormalizeHeading(degrees(o.Azimuth)),
		Pitch:   degrees(o.Pitch),
		Roll:    degrees(o.Roll),
	}, true
}

// Heading is Fuse without the tilt angles.
func Heading(gravity, geomagnetic Vec3) (float64, bool) {
	e, ok := Fuse(gravity, geomagnetic)
	return e.Heading, ok
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
