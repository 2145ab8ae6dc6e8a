package avoidance

import (
	"math"

	"go.viam.com/localnav/components/lidar"
)

// unusableInvalidRate is the fraction of missing samples above which a hemisphere mean is +Inf.
const unusableInvalidRate = 0.8

// EmergencyParams configures emergency avoidance.
type EmergencyParams struct {
	Threshold     float64
	DiffThreshold float64
}

// HemisphereMeans returns the mean valid range of [0, N/2) and [N/2, N). A hemisphere with more
// than 80% missing samples, or none at all, has mean +Inf.
func HemisphereMeans(scan *lidar.Scan) (minus, plus float64) {
	half := scan.Len() / 2
	return meanOrInf(scan, 0, half), meanOrInf(scan, half, scan.Len())
}

func meanOrInf(scan *lidar.Scan, lo, hi int) float64 {
	if hi <= lo {
		return math.Inf(1)
	}
	sum, count := 0.0, 0
	for i := lo; i < hi; i++ {
		if scan.IsValid(i) {
			sum += scan.Ranges[i]
			count++
		}
	}
	if count == 0 || float64(hi-lo-count)/float64(hi-lo) > unusableInvalidRate {
		return math.Inf(1)
	}
	return sum / float64(count)
}

// EmergencySign chooses the turn sign for an emergency maneuver. It fails when neither hemisphere
// clears p.Threshold. The sign only changes from prevSign when the hemisphere means differ by more
// than p.DiffThreshold; it then favors the hemisphere with more room.
func EmergencySign(scan *lidar.Scan, p EmergencyParams, prevSign float64) (float64, bool) {
	minus, plus := HemisphereMeans(scan)
	if !(minus > p.Threshold) && !(plus > p.Threshold) {
		return prevSign, false
	}
	if math.Abs(plus-minus) > p.DiffThreshold {
		if plus > minus {
			return 1, true
		}
		return -1, true
	}
	return prevSign, true
}
