package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapAngle returns the equivalent of rad in the half open interval (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	switch {
	case wrapped > math.Pi:
		wrapped -= 2 * math.Pi
	case wrapped <= -math.Pi:
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// AngleDiff returns the signed shortest rotation, in radians, that takes from onto to.
func AngleDiff(to, from float64) float64 {
	return WrapAngle(to - from)
}

// SignOr returns +1 or -1 according to the sign of x, or fallback when x is zero or NaN.
func SignOr(x, fallback float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return fallback
	}
}

// IsFinite reports whether x is neither NaN nor an infinity.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
