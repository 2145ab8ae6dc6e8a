package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90)
}

func TestWrapAngle(t *testing.T) {
	for _, tc := range []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{0.25, 0.25},
	} {
		test.That(t, WrapAngle(tc.in), test.ShouldAlmostEqual, tc.out, 1e-9)
	}
}

func TestAngleDiff(t *testing.T) {
	// Crossing the discontinuity takes the short way around.
	test.That(t, AngleDiff(-3.0, 3.0), test.ShouldAlmostEqual, 2*math.Pi-6, 1e-9)
	test.That(t, AngleDiff(3.0, -3.0), test.ShouldAlmostEqual, 6-2*math.Pi, 1e-9)
	test.That(t, AngleDiff(0.5, 0.2), test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, AngleDiff(0.2, 0.5), test.ShouldAlmostEqual, -0.3, 1e-9)
}

func TestSignOr(t *testing.T) {
	test.That(t, SignOr(0.1, -1), test.ShouldEqual, 1.)
	test.That(t, SignOr(-4, 1), test.ShouldEqual, -1.)
	test.That(t, SignOr(0, -1), test.ShouldEqual, -1.)
	test.That(t, SignOr(math.NaN(), 1), test.ShouldEqual, 1.)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(1.5), test.ShouldBeTrue)
	test.That(t, IsFinite(math.NaN()), test.ShouldBeFalse)
	test.That(t, IsFinite(math.Inf(-1)), test.ShouldBeFalse)
}
