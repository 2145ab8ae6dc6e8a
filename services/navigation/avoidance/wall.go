package avoidance

import (
	"math"

	"go.viam.com/localnav/components/lidar"
)

// WallParams configures wall detection.
type WallParams struct {
	ForwardAngle  float64
	RateThreshold float64
	Upper         float64
	Lower         float64
}

// Wall is the outcome of wall detection. MinusEdge and PlusEdge bound the forward cone as
// [MinusEdge, PlusEdge).
type Wall struct {
	Found     bool
	Rate      float64
	Mean      float64
	MinusEdge int
	PlusEdge  int
}

// DetectWall looks for a wall filling the cone of p.ForwardAngle radians around the middle of the
// scan. A wall needs a return rate above p.RateThreshold and a mean range strictly between
// p.Lower and p.Upper.
func DetectWall(scan *lidar.Scan, p WallParams) Wall {
	center := scan.Len() / 2
	half := int(p.ForwardAngle / scan.AngleIncrement)
	w := Wall{
		MinusEdge: max(center-half, 0),
		PlusEdge:  min(center+half, scan.Len()),
		Mean:      math.Inf(1),
	}
	width := w.PlusEdge - w.MinusEdge
	if width <= 0 {
		return w
	}
	sum, count := 0.0, 0
	for i := w.MinusEdge; i < w.PlusEdge; i++ {
		if scan.IsValid(i) {
			sum += scan.Ranges[i]
			count++
		}
	}
	if count == 0 {
		return w
	}
	w.Rate = float64(count) / float64(width)
	w.Mean = sum / float64(count)
	w.Found = w.Rate > p.RateThreshold && p.Lower < w.Mean && w.Mean < p.Upper
	return w
}

// Side is the half of the scan chosen for escaping a wall.
type Side int

// Sides. Minus holds the lower indices.
const (
	NoSide Side = iota
	MinusSide
	PlusSide
)

func (s Side) String() string {
	switch s {
	case MinusSide:
		return "minus"
	case PlusSide:
		return "plus"
	default:
		return "none"
	}
}

// SideSpace summarizes one side of the scan outside the wall cone.
type SideSpace struct {
	Mean   float64
	MaxGap float64
}

// MeasureSides measures the samples below minusEdge and at or above plusEdge.
func MeasureSides(scan *lidar.Scan, minusEdge, plusEdge int) (minus, plus SideSpace) {
	minusIdx := make([]int, 0, minusEdge)
	for i := minusEdge - 1; i >= 0; i-- {
		minusIdx = append(minusIdx, i)
	}
	plusIdx := make([]int, 0, max(scan.Len()-plusEdge, 0))
	for i := plusEdge; i < scan.Len(); i++ {
		plusIdx = append(plusIdx, i)
	}
	return measureSide(scan, minusIdx), measureSide(scan, plusIdx)
}

// measureSide walks indices ordered from the cone edge outward. Each valid sample is compared with
// the next valid sample further out by depth, r·cos(bearing).
func measureSide(scan *lidar.Scan, order []int) SideSpace {
	sum, count := 0.0, 0
	maxGap := 0.0
	prevDepth, havePrev := 0.0, false
	for _, i := range order {
		if !scan.IsValid(i) {
			continue
		}
		r := scan.Ranges[i]
		sum += r
		count++
		depth := r * math.Cos(scan.Bearing(i))
		if havePrev {
			maxGap = max(maxGap, math.Abs(depth-prevDepth))
		}
		prevDepth, havePrev = depth, true
	}
	mean := math.Inf(1)
	if count > 0 {
		mean = sum / float64(count)
	}
	return SideSpace{Mean: mean, MaxGap: maxGap}
}

// SelectSide picks the side with the wider opening whose mean range also exceeds
// emergencyThreshold, and returns a conservative bearing toward it: half of the bisector between
// the cone edge and the end of the scan. With no acceptable side it returns bearing 0.
func SelectSide(scan *lidar.Scan, wall Wall, emergencyThreshold float64) (float64, Side) {
	minus, plus := MeasureSides(scan, wall.MinusEdge, wall.PlusEdge)
	last := scan.Len() - 1
	switch {
	case minus.MaxGap > plus.MaxGap && minus.Mean > emergencyThreshold:
		return (scan.Bearing(wall.MinusEdge) + scan.Bearing(0)) / 2 / 2, MinusSide
	case plus.MaxGap > minus.MaxGap && plus.Mean > emergencyThreshold:
		return (scan.Bearing(min(wall.PlusEdge, last)) + scan.Bearing(last)) / 2 / 2, PlusSide
	default:
		return 0, NoSide
	}
}
