package aggregate

import "math"

// PercentChange computes the rounded period-over-period percent change.
// A zero previous window reports 100 when there is current activity and 0
// otherwise. Used for the per-file summary deltas.
func PercentChange(curr, prev float64) int {
	if prev == 0 {
		if curr > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round((curr - prev) / prev * 100))
}

// PercentChangeStrict is the headline-KPI variant: growth from a zero
// previous window has no meaningful percentage, so it reports nil instead
// of 100. The two conventions are intentionally separate; do not unify
// call sites onto one of them.
func PercentChangeStrict(curr, prev float64) *int {
	if prev == 0 && curr > 0 {
		return nil
	}
	v := PercentChange(curr, prev)
	return &v
}
