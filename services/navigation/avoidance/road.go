package avoidance

import (
	"math"

	"go.viam.com/localnav/components/lidar"
)

// RoadParams configures road center detection.
type RoadParams struct {
	// CenterThreshold is the largest forward projection considered.
	CenterThreshold float64
	// Threshold is the smallest lateral jump that marks a branch.
	Threshold float64
}

// DetectRoadCenter looks for a lateral depth discontinuity among nearby returns and returns the
// bearing halfway across the first one found.
func DetectRoadCenter(scan *lidar.Scan, p RoadParams) (float64, bool) {
	type sample struct {
		bearing float64
		lateral float64
	}
	near := make([]sample, 0, scan.Len())
	for i := range scan.Ranges {
		if !scan.IsValid(i) {
			continue
		}
		r, b := scan.Ranges[i], scan.Bearing(i)
		if r*math.Cos(b) <= p.CenterThreshold {
			near = append(near, sample{bearing: b, lateral: r * math.Sin(b)})
		}
	}
	if len(near) < 2 {
		return 0, false
	}
	for i := 1; i < len(near); i++ {
		if math.Abs(near[i].lateral-near[i-1].lateral) >= p.Threshold {
			return (near[i].bearing + near[i-1].bearing) / 2, true
		}
	}
	return 0, false
}
