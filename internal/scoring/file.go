package scoring

import (
	"math"

	"github.com/pagepulse/pagepulse/internal/model"
)

// Sub-score weights for the file session formula. They sum to 1.
const (
	weightTime       = 0.25
	weightCompletion = 0.25
	weightDownload   = 0.20
	weightReturn     = 0.15
	weightDepth      = 0.15
)

// timeRamp defines the piecewise-linear ramp from dwell seconds to the
// time sub-score: each entry maps the interval [fromSec, toSec) onto
// [fromScore, toScore).
var timeRamp = []struct {
	fromSec, toSec     float64
	fromScore, toScore float64
}{
	{0, 30, 0, 25},
	{30, 60, 25, 40},
	{60, 120, 40, 60},
	{120, 300, 60, 80},
	{300, 600, 80, 100},
}

// TimeScore maps dwell seconds to a 0-100 sub-score along the piecewise
// ramp; 600s and beyond saturate at 100.
func TimeScore(seconds int) float64 {
	s := float64(seconds)
	if s <= 0 {
		return 0
	}
	for _, seg := range timeRamp {
		if s < seg.toSec {
			frac := (s - seg.fromSec) / (seg.toSec - seg.fromSec)
			return seg.fromScore + frac*(seg.toScore-seg.fromScore)
		}
	}
	return 100
}

// CompletionScore returns the completion sub-score for a record. The
// video-specific completion percentage overrides the generic one when
// present and positive.
func CompletionScore(rec *model.AccessLog) float64 {
	c := rec.CompletionPercentage
	if rec.VideoCompletionPercent > 0 {
		c = rec.VideoCompletionPercent
	}
	return clamp100(c)
}

// DownloadScore is all-or-nothing: any download signal scores 100.
func DownloadScore(rec *model.AccessLog) float64 {
	if rec.HasDownload() {
		return 100
	}
	return 0
}

// ReturnScore is the canonical return sub-score: 50 points per prior
// session, capped at 100.
func ReturnScore(returnVisitCount int) float64 {
	if returnVisitCount <= 0 {
		return 0
	}
	return math.Min(100, float64(returnVisitCount)*50)
}

// ReturnBinary is the legacy return sub-score used only by single-session
// contact displays: all-or-nothing on the return-visit flag.
func ReturnBinary(isReturnVisit bool) float64 {
	if isReturnVisit {
		return 100
	}
	return 0
}

// DepthScore measures how far into the content the viewer got. Paginated
// documents use the max-page ratio; video/audio uses segment coverage
// (fraction of the 10 fixed segments with at least 1s of dwell). Content
// with neither signal falls back to the completion sub-score, as does a
// document of 0 or 1 pages, where page depth is meaningless.
func DepthScore(rec *model.AccessLog, totalPages int) float64 {
	if totalPages > 1 && rec.MaxPageReached > 0 {
		ratio := float64(rec.MaxPageReached) / float64(totalPages)
		return clamp100(math.Round(ratio * 100))
	}
	if len(rec.SegmentsTime) > 0 {
		covered := 0
		for seg, secs := range rec.SegmentsTime {
			if seg >= 0 && seg < model.SegmentCount && secs >= 1 {
				covered++
			}
		}
		return float64(covered) / model.SegmentCount * 100
	}
	return CompletionScore(rec)
}

// FileSession computes the 0-100 engagement score for one viewer session
// against a file, using the five-variable weighted formula. meta may be
// nil; the record's own totalPages wins when set, otherwise the file
// metadata supplies it.
func FileSession(rec *model.AccessLog, meta *model.File) int {
	if rec == nil {
		return 0
	}

	totalPages := rec.TotalPages
	if totalPages <= 0 && meta != nil {
		totalPages = meta.TotalPages
	}

	score := TimeScore(ResolveDuration(rec))*weightTime +
		CompletionScore(rec)*weightCompletion +
		DownloadScore(rec)*weightDownload +
		ReturnScore(rec.ReturnVisitCount)*weightReturn +
		DepthScore(rec, totalPages)*weightDepth

	return clampScore(score)
}

// FileSessionBinaryReturn is FileSession with the legacy binary return
// convention. It exists only for per-contact single-session displays that
// must match historical numbers; everything else uses FileSession.
func FileSessionBinaryReturn(rec *model.AccessLog, meta *model.File) int {
	if rec == nil {
		return 0
	}

	totalPages := rec.TotalPages
	if totalPages <= 0 && meta != nil {
		totalPages = meta.TotalPages
	}

	score := TimeScore(ResolveDuration(rec))*weightTime +
		CompletionScore(rec)*weightCompletion +
		DownloadScore(rec)*weightDownload +
		ReturnBinary(rec.IsReturnVisit)*weightReturn +
		DepthScore(rec, totalPages)*weightDepth

	return clampScore(score)
}

// clamp100 bounds a raw percentage to [0,100], mapping NaN to 0.
func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampScore rounds and bounds a weighted score to an integer in [0,100].
func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
