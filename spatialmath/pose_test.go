package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestComposeAndInverse(t *testing.T) {
	odomInMap := NewPose2D(1, 2, math.Pi/2)
	robotInOdom := NewPose2D(1, 0, 0)

	robotInMap := Compose(odomInMap, robotInOdom)
	test.That(t, robotInMap.Point().X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, robotInMap.Point().Y, test.ShouldAlmostEqual, 3, 1e-9)
	test.That(t, Yaw(robotInMap), test.ShouldAlmostEqual, math.Pi/2, 1e-9)

	back := Compose(PoseInverse(odomInMap), robotInMap)
	test.That(t, PoseAlmostEqual(back, robotInOdom), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(PoseBetween(odomInMap, robotInMap), robotInOdom), test.ShouldBeTrue)
}

func TestYaw(t *testing.T) {
	test.That(t, Yaw(NewPose2D(0, 0, -3.0)), test.ShouldAlmostEqual, -3.0, 1e-9)
	test.That(t, Yaw(NewZeroPose()), test.ShouldEqual, 0.)
}

func TestBearingTo(t *testing.T) {
	p := NewPose2D(1, 1, math.Pi/2)
	test.That(t, BearingTo(p, r3.Vector{X: 1, Y: 3}), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, BearingTo(p, r3.Vector{X: 0, Y: 1}), test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, BearingTo(p, r3.Vector{X: 2, Y: 1}), test.ShouldAlmostEqual, -math.Pi/2, 1e-9)
	test.That(t, PlanarDistance(p, NewPose2D(4, 5, 0)), test.ShouldAlmostEqual, 5, 1e-9)
}
