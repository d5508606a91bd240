// Package scoring computes engagement scores and lead classification from
// raw session telemetry. Every function here is pure and total: malformed
// or missing inputs resolve to documented defaults, outputs are clamped to
// [0,100], and nothing returns an error. Scores are always recomputed from
// raw fields; no stored score is ever trusted.
package scoring

import (
	"math"

	"github.com/pagepulse/pagepulse/internal/model"
)

// ResolveDuration returns the authoritative time-spent in seconds for a
// session. The explicit wall-clock duration wins; when it is absent or
// zero, the per-page (or per-segment, for video/audio) time map is summed
// as a fallback. Absent or malformed maps count as empty.
func ResolveDuration(rec *model.AccessLog) int {
	if rec == nil {
		return 0
	}
	if rec.TotalDurationSeconds > 0 {
		return rec.TotalDurationSeconds
	}
	if sum := sumTimeMap(rec.PagesTime); sum > 0 {
		return int(math.Round(sum))
	}
	if sum := sumTimeMap(rec.SegmentsTime); sum > 0 {
		return int(math.Round(sum))
	}
	return 0
}

func sumTimeMap(m map[int]float64) float64 {
	var sum float64
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		sum += v
	}
	return sum
}
