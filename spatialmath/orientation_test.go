package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestEulerQuaternionRoundTrip(t *testing.T) {
	for _, ea := range []*EulerAngles{
		{Yaw: 0.3},
		{Yaw: -2.9},
		{Roll: 0.1, Pitch: -0.2, Yaw: 1.2},
		{Yaw: math.Pi},
	} {
		q := Quaternion(ea.Quaternion())
		back := q.EulerAngles()
		test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll, 1e-9)
		test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch, 1e-9)
		test.That(t, math.Abs(math.Sin(back.Yaw-ea.Yaw)), test.ShouldBeLessThan, 1e-9)
	}
}

func TestQuaternionDoubleCover(t *testing.T) {
	q := NewYawOrientation(0.7).Quaternion()
	neg := quat.Scale(-1, q)
	test.That(t, QuaternionAlmostEqual(q, neg, 1e-9), test.ShouldBeTrue)
	test.That(t, OrientationAlmostEqual(NewYawOrientation(0.7), NewYawOrientation(0.7+2*math.Pi)), test.ShouldBeTrue)
	test.That(t, OrientationAlmostEqual(NewYawOrientation(0.7), NewYawOrientation(0.8)), test.ShouldBeFalse)
}

func TestOrientationBetween(t *testing.T) {
	between := OrientationBetween(NewYawOrientation(0.5), NewYawOrientation(1.25))
	test.That(t, between.EulerAngles().Yaw, test.ShouldAlmostEqual, 0.75, 1e-9)
}

func TestOrientationFromDirection(t *testing.T) {
	test.That(t, OrientationFromDirection(0, 1).EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, OrientationFromDirection(-1, 0).EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi, 1e-9)
	test.That(t, OrientationAlmostEqual(OrientationFromDirection(0, 0), NewZeroOrientation()), test.ShouldBeTrue)
}
