// Package lidar defines a planar range sensor and the scans it produces.
package lidar

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/localnav/utils"
)

// A Lidar produces planar range scans.
type Lidar interface {
	// NextScan blocks until a scan is available or ctx is done.
	NextScan(ctx context.Context) (*Scan, error)
}

// Scan is one sweep of range samples. Sample i was taken at bearing AngleMin + i*AngleIncrement
// relative to the sensor's forward axis. A sample with no return is NaN or ±Inf.
type Scan struct {
	Ranges         []float64
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	RangeMin       float64
	RangeMax       float64
	Frame          string
	Time           time.Time
}

// NewScan returns a scan whose AngleMax is derived from the number of samples.
func NewScan(ranges []float64, angleMin, angleIncrement float64) *Scan {
	s := &Scan{
		Ranges:         ranges,
		AngleMin:       angleMin,
		AngleIncrement: angleIncrement,
		RangeMax:       math.Inf(1),
	}
	if len(ranges) > 0 {
		s.AngleMax = angleMin + float64(len(ranges)-1)*angleIncrement
	}
	return s
}

// NewUniformScan returns a scan of n samples evenly spread over [angleMin, angleMax], all set to r.
func NewUniformScan(n int, angleMin, angleMax, r float64) *Scan {
	ranges := make([]float64, n)
	for i := range ranges {
		ranges[i] = r
	}
	inc := 0.0
	if n > 1 {
		inc = (angleMax - angleMin) / float64(n-1)
	}
	s := NewScan(ranges, angleMin, inc)
	s.AngleMax = angleMax
	return s
}

// Validate checks that the scan can be searched.
func (s *Scan) Validate() error {
	if s == nil {
		return errors.New("nil scan")
	}
	if len(s.Ranges) == 0 {
		return errors.New("scan has no samples")
	}
	if !(s.AngleIncrement > 0) {
		return errors.Errorf("scan angle increment must be positive, got %v", s.AngleIncrement)
	}
	return nil
}

// Len returns the number of samples.
func (s *Scan) Len() int {
	return len(s.Ranges)
}

// Bearing returns the bearing of sample i.
func (s *Scan) Bearing(i int) float64 {
	return s.AngleMin + float64(i)*s.AngleIncrement
}

// IsValid reports whether sample i holds a real return.
func (s *Scan) IsValid(i int) bool {
	return Valid(s.Ranges[i])
}

// NearestIndex returns the index whose bearing is closest to bearing. Ties go to the lowest index.
func (s *Scan) NearestIndex(bearing float64) int {
	best := 0
	bestDiff := math.Inf(1)
	for i := range s.Ranges {
		d := math.Abs(bearing - s.Bearing(i))
		if d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return best
}

// ValidCount returns how many samples in [lo, hi) hold a real return.
func (s *Scan) ValidCount(lo, hi int) int {
	lo = max(lo, 0)
	hi = min(hi, len(s.Ranges))
	n := 0
	for i := lo; i < hi; i++ {
		if s.IsValid(i) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *Scan) Clone() *Scan {
	c := *s
	c.Ranges = append([]float64(nil), s.Ranges...)
	return &c
}

// Valid reports whether r is a real range reading.
func Valid(r float64) bool {
	return utils.IsFinite(r)
}
