package lidar

// FillValue replaces runs of missing samples that touch either end of a scan.
const FillValue = 0.01

// Repair fills the scan's missing samples in place. See RepairRanges.
func (s *Scan) Repair() {
	RepairRanges(s.Ranges)
}

// RepairRanges replaces every run of missing samples. A run bounded on both sides by valid
// samples d1 (left) and d2 (right) becomes a linear ramp from d1 to d2; a run touching either end
// is set to FillValue. If the first sample is still missing afterwards it is extrapolated from the
// next two, clamped at zero.
func RepairRanges(ranges []float64) {
	n := len(ranges)
	i := 0
	for i < n {
		if Valid(ranges[i]) {
			i++
			continue
		}
		start := i
		for i < n && !Valid(ranges[i]) {
			i++
		}
		end := i // exclusive
		if start == 0 || end == n {
			for j := start; j < end; j++ {
				ranges[j] = FillValue
			}
			continue
		}
		d1, d2 := ranges[start-1], ranges[end]
		count := end - start
		step := (d2 - d1) / float64(count+1)
		for k := 0; k < count; k++ {
			ranges[end-1-k] = d2 - step*float64(k+1)
		}
	}
	if n >= 3 && !Valid(ranges[0]) {
		ranges[0] = max(ranges[1]-(ranges[2]-ranges[1]), 0)
	}
}
