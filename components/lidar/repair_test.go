package lidar

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestRepairInteriorRun(t *testing.T) {
	nan := math.NaN()
	ranges := []float64{1, 1, nan, nan, nan, 5, 5}
	RepairRanges(ranges)
	test.That(t, ranges[2], test.ShouldAlmostEqual, 2.0)
	test.That(t, ranges[3], test.ShouldAlmostEqual, 3.0)
	test.That(t, ranges[4], test.ShouldAlmostEqual, 4.0)
	for i := 1; i < 6; i++ {
		test.That(t, ranges[i+1], test.ShouldBeGreaterThan, ranges[i])
	}
}

func TestRepairDescendingRun(t *testing.T) {
	ranges := []float64{4, math.Inf(1), math.NaN(), 1}
	RepairRanges(ranges)
	test.That(t, ranges[1], test.ShouldAlmostEqual, 3.0)
	test.That(t, ranges[2], test.ShouldAlmostEqual, 2.0)
}

func TestRepairEdgeRuns(t *testing.T) {
	nan := math.NaN()
	ranges := []float64{nan, nan, 2, 3, nan}
	RepairRanges(ranges)
	test.That(t, ranges, test.ShouldResemble, []float64{FillValue, FillValue, 2, 3, FillValue})

	all := []float64{nan, nan, nan}
	RepairRanges(all)
	test.That(t, all, test.ShouldResemble, []float64{FillValue, FillValue, FillValue})
}

func TestRepairLeavesValidScanAlone(t *testing.T) {
	s := NewScan([]float64{1, 2, 3}, 0, 0.1)
	s.Repair()
	test.That(t, s.Ranges, test.ShouldResemble, []float64{1, 2, 3})

	var empty []float64
	RepairRanges(empty)
	test.That(t, empty, test.ShouldBeEmpty)
}
