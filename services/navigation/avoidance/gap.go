// Package avoidance contains the scan-based steering algorithms of the local planner. Every
// function is pure: it reads a scan and returns a bearing, leaving any state to the caller.
package avoidance

import (
	"math"

	"go.viam.com/localnav/components/lidar"
)

// occupancyShortCircuit is the forward cone return rate below which the center search is skipped.
const occupancyShortCircuit = 0.1

// tieTolerance is how close two candidate offsets must be to count as equally near.
const tieTolerance = 1e-9

// SafeNum returns how many consecutive samples subtend a robot of width safeSpace at distance
// safeDistance. It is at least 1.
func SafeNum(safeSpace, safeDistance, angleIncrement float64) int {
	n := int(math.Round(2 * math.Atan(safeSpace/(2*safeDistance)) / angleIncrement))
	return max(n, 1)
}

// CenterIndex returns the index used as "straight ahead". The alternation bit shifts it down by
// one so repeated queries do not always land on the same sample.
func CenterIndex(n, alternation int) int {
	return max(n/2-alternation, 0)
}

// ForwardOccupancy returns the fraction of samples holding a return in the cone of forwardAngle
// radians on either side of index center. An empty cone has no occupancy.
func ForwardOccupancy(scan *lidar.Scan, center int, forwardAngle float64) float64 {
	half := int(forwardAngle / scan.AngleIncrement)
	lo := max(center-half, 0)
	hi := min(center+half, scan.Len())
	if hi <= lo {
		return 0
	}
	return float64(scan.ValidCount(lo, hi)) / float64(hi-lo)
}

// GapSearch finds the nearest run of free space wide enough for the robot.
type GapSearch struct {
	SafeDistance float64
	SafeSpace    float64
	// Threshold is the clearance every sample of a gap must exceed.
	Threshold float64
	// ForwardAngle is the half width of the cone checked before a center search.
	ForwardAngle float64
}

// Toward searches for the gap nearest to bearing. The scan is repaired on a copy first.
func (g GapSearch) Toward(scan *lidar.Scan, bearing float64) (float64, bool) {
	repaired := scan.Clone()
	repaired.Repair()
	return g.search(repaired, repaired.NearestIndex(bearing), bearing)
}

// Center searches for the gap nearest to the middle of the scan. If the forward cone is almost
// free of returns the middle bearing is returned without searching.
func (g GapSearch) Center(scan *lidar.Scan, alternation int) (float64, bool) {
	idx := CenterIndex(scan.Len(), alternation)
	target := scan.Bearing(idx)
	if ForwardOccupancy(scan, idx, g.ForwardAngle) < occupancyShortCircuit {
		return target, true
	}
	repaired := scan.Clone()
	repaired.Repair()
	return g.search(repaired, idx, target)
}

func (g GapSearch) search(scan *lidar.Scan, idx int, target float64) (float64, bool) {
	safeNum := SafeNum(g.SafeSpace, g.SafeDistance, scan.AngleIncrement)
	var plus, minus int
	var plusOK, minusOK bool
	for i := idx; i < scan.Len(); i++ {
		if g.qualifies(scan.Ranges, i, safeNum) {
			plus, plusOK = i, true
			break
		}
	}
	for i := idx; i >= 0; i-- {
		if g.qualifies(scan.Ranges, i, safeNum) {
			minus, minusOK = i, true
			break
		}
	}
	switch {
	case plusOK && minusOK:
		pb, mb := scan.Bearing(plus), scan.Bearing(minus)
		if math.Abs(pb-target) <= math.Abs(mb-target)+tieTolerance {
			return pb, true
		}
		return mb, true
	case plusOK:
		return scan.Bearing(plus), true
	case minusOK:
		return scan.Bearing(minus), true
	default:
		return 0, false
	}
}

// qualifies reports whether the safeNum samples on each side of i, i included, all clear the
// threshold.
func (g GapSearch) qualifies(ranges []float64, i, safeNum int) bool {
	lo, hi := i-safeNum+1, i+safeNum-1
	if lo < 0 || hi >= len(ranges) {
		return false
	}
	for j := lo; j <= hi; j++ {
		if !(ranges[j] > g.Threshold) {
			return false
		}
	}
	return true
}
