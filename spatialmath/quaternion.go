// Package spatialmath defines the vector, quaternion, and rigid pose
// operations used by the kinematics engine.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Below this magnitude an axis is treated as zero and the rotation collapses
// to the identity.
const zeroAxisEpsilon = 1e-12

const defaultEpsilon = 1e-8

// NewZeroQuaternion returns the identity rotation.
func NewZeroQuaternion() quat.Number {
	return quat.Number{Real: 1}
}

// QuatFromAxisAngle converts a rotation axis and an angle in radians to a
// unit quaternion. A zero-length axis yields the identity rotation.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	norm := axis.Norm()
	if norm < zeroAxisEpsilon {
		return quat.Number{Real: 1}
	}
	axis = axis.Mul(1 / norm)
	sinA := math.Sin(theta / 2)
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * sinA,
		Jmag: axis.Y * sinA,
		Kmag: axis.Z * sinA,
	}
}

// RotateVector rotates v by q, computing q * v * q̄. The conjugate stands in
// for the inverse, so q must be a unit quaternion.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// QuaternionAlmostEqual returns whether two quaternions are within epsilon of
// each other componentwise.
func QuaternionAlmostEqual(a, b quat.Number, epsilon float64) bool {
	return math.Abs(a.Real-b.Real) < epsilon &&
		math.Abs(a.Imag-b.Imag) < epsilon &&
		math.Abs(a.Jmag-b.Jmag) < epsilon &&
		math.Abs(a.Kmag-b.Kmag) < epsilon
}
