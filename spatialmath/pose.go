package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform, a position paired with an orientation,
// relative to some reference frame. The zero value is not valid; use
// NewZeroPose for the identity transform.
type Pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns a pose with no translation or rotation.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given position and orientation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{point: point, orientation: orientation}
}

// NewPoseFromPoint returns a pose with the given position and an identity
// orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromOrientation returns a pose with the given orientation and no
// translation.
func NewPoseFromOrientation(orientation quat.Number) Pose {
	return Pose{orientation: orientation}
}

// NewPoseFromAxisAngle returns a pose at the given point, rotated about the
// given axis by theta radians.
func NewPoseFromAxisAngle(point, axis r3.Vector, theta float64) Pose {
	return Pose{point: point, orientation: QuatFromAxisAngle(axis, theta)}
}

// Point returns the position of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the orientation of the pose.
func (p Pose) Orientation() quat.Number {
	return p.orientation
}

// Compose treats a and b as rigid transforms and returns the transform
// equivalent to applying a, then b in a's frame:
//
//	position = a.position + rotate(a.orientation, b.position)
//	orientation = a.orientation * b.orientation
//
// Composition is not commutative.
func Compose(a, b Pose) Pose {
	return Pose{
		point:       a.point.Add(RotateVector(a.orientation, b.point)),
		orientation: quat.Mul(a.orientation, b.orientation),
	}
}

// AlmostCoincident returns whether two poses are within a default floating
// point tolerance of each other.
func AlmostCoincident(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, defaultEpsilon)
}

// PoseAlmostEqualEps returns whether two poses are within epsilon of each
// other in both position and orientation.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return vectorAlmostEqual(a.point, b.point, epsilon) &&
		QuaternionAlmostEqual(a.orientation, b.orientation, epsilon)
}

func vectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon &&
		math.Abs(a.Y-b.Y) < epsilon &&
		math.Abs(a.Z-b.Z) < epsilon
}
