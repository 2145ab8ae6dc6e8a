package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/localnav/utils"
)

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		o = NewZeroOrientation()
	}
	return &pose{point: p, orientation: o.Quaternion()}
}

// NewZeroPose returns a pose at (0,0,0) with no rotation.
func NewZeroPose() Pose {
	return NewPose(r3.Vector{}, nil)
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(point r3.Vector) Pose {
	return NewPose(point, nil)
}

// NewPose2D returns a pose on the ground plane at (x, y) facing yaw.
func NewPose2D(x, y, yaw float64) Pose {
	return NewPose(r3.Vector{X: x, Y: y}, NewYawOrientation(yaw))
}

func (p *pose) Point() r3.Vector {
	return p.point
}

func (p *pose) Orientation() Orientation {
	q := Quaternion(p.orientation)
	return &q
}

func (p *pose) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Yaw:%.3f}", p.point.X, p.point.Y, p.point.Z, Yaw(p))
}

// Yaw returns the heading of the pose about the vertical axis, in (-pi, pi].
func Yaw(p Pose) float64 {
	return p.Orientation().EulerAngles().Yaw
}

// Compose treats a as the frame b is expressed in and returns b expressed in a's parent frame.
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	rotated := rotateVector(qa, b.Point())
	return &pose{
		point:       a.Point().Add(rotated),
		orientation: quat.Mul(qa, b.Orientation().Quaternion()),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.Orientation().Quaternion())
	return &pose{
		point:       rotateVector(inv, p.Point()).Mul(-1),
		orientation: inv,
	}
}

// PoseBetween returns the pose of b relative to a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostCoincident(a, b) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincident will return a bool describing whether 2 poses approximately are at the same 3D coordinate location.
// This uses the same epsilon as the default value for the Viam IK solver.
func PoseAlmostCoincident(a, b Pose) bool {
	const epsilon = 1e-8
	return a.Point().Sub(b.Point()).Norm2() < epsilon
}

// PlanarDistance returns the distance between a and b ignoring z.
func PlanarDistance(a, b Pose) float64 {
	d := b.Point().Sub(a.Point())
	return math.Hypot(d.X, d.Y)
}

// BearingTo returns the heading of target as seen from p, relative to p's yaw, in (-pi, pi].
func BearingTo(p Pose, target r3.Vector) float64 {
	d := target.Sub(p.Point())
	return utils.WrapAngle(math.Atan2(d.Y, d.X) - Yaw(p))
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
