package avoidance

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/localnav/components/lidar"
)

var roadParams = RoadParams{CenterThreshold: 5, Threshold: 1.5}

// elevenSampleScan spans -1 to 1 radians in 0.2 radian steps.
func elevenSampleScan(r float64) *lidar.Scan {
	ranges := make([]float64, 11)
	for i := range ranges {
		ranges[i] = r
	}
	return lidar.NewScan(ranges, -1, 0.2)
}

func TestDetectRoadCenter(t *testing.T) {
	s := elevenSampleScan(1)
	for i := 8; i < 11; i++ {
		s.Ranges[i] = 4
	}
	bearing, ok := DetectRoadCenter(s, roadParams)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, bearing, test.ShouldAlmostEqual, 0.5, 1e-9)
}

func TestDetectRoadCenterNone(t *testing.T) {
	_, ok := DetectRoadCenter(elevenSampleScan(1), roadParams)
	test.That(t, ok, test.ShouldBeFalse)

	lonely := elevenSampleScan(math.NaN())
	lonely.Ranges[5] = 1
	_, ok = DetectRoadCenter(lonely, roadParams)
	test.That(t, ok, test.ShouldBeFalse)

	// far returns are filtered before pairing
	far := elevenSampleScan(1)
	for i := 8; i < 11; i++ {
		far.Ranges[i] = 40
	}
	_, ok = DetectRoadCenter(far, roadParams)
	test.That(t, ok, test.ShouldBeFalse)
}
