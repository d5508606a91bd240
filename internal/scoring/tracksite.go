package scoring

import (
	"math"

	"github.com/pagepulse/pagepulse/internal/model"
)

// Track-site session weights. External redirect links carry no dwell-time
// signal (the visitor leaves immediately), so per-viewer scoring collapses
// to repeat-visit behavior.
const (
	weightTrackReturn    = 0.60
	weightTrackFrequency = 0.40
)

// TrackSiteSession computes the 0-100 engagement score for a single
// viewer session against an external-URL link. The current click counts
// as one visit in the frequency sub-score.
func TrackSiteSession(isReturnVisit bool, returnVisitCount int) int {
	ret := 0.0
	if isReturnVisit {
		ret = 100
	}

	if returnVisitCount < 0 {
		returnVisitCount = 0
	}
	freq := math.Min(100, float64(returnVisitCount+1)*33)

	return clampScore(ret*weightTrackReturn + freq*weightTrackFrequency)
}

// TrackSiteLink computes the 0-100 link-level performance score for a
// track site from aggregate click statistics. A link with zero clicks
// scores zero regardless of the other fields, and every ratio bonus is
// scaled by a volume multiplier so that thin traffic cannot buy a high
// score through ratios alone.
func TrackSiteLink(s model.LinkClickStats) int {
	if s.TotalClicks <= 0 {
		return 0
	}

	total := float64(s.TotalClicks)
	volume := math.Min(100, 20*math.Log10(total+1))
	mult := math.Min(1, total/500)

	var reach float64
	if s.UniqueClickers > 0 {
		reach = float64(s.UniqueClickers) / total * 100 * 0.20 * mult
	}

	var ret float64
	if s.UniqueClickers > 0 && s.ReturnClickers > 0 {
		ret = float64(s.ReturnClickers) / float64(s.UniqueClickers) * 100 * 0.20 * mult
	}

	recency := recencyScore(s.DaysSinceLastClick) * 0.10 * mult

	var velocity float64
	if s.ClicksLastWeek > 0 {
		ratio := float64(s.ClicksThisWeek) / float64(s.ClicksLastWeek)
		velocity = velocityScore(ratio) * 0.10 * mult
	}

	return clampScore(volume + reach + ret + recency + velocity)
}

// recencyScore steps down as the last click ages.
func recencyScore(daysSinceLastClick int) float64 {
	switch {
	case daysSinceLastClick <= 1:
		return 100
	case daysSinceLastClick <= 3:
		return 90
	case daysSinceLastClick <= 7:
		return 70
	case daysSinceLastClick <= 14:
		return 50
	case daysSinceLastClick <= 30:
		return 30
	case daysSinceLastClick <= 60:
		return 15
	default:
		return 5
	}
}

// velocityScore maps the week-over-week click ratio to a step score.
func velocityScore(ratio float64) float64 {
	switch {
	case ratio >= 2.0:
		return 100
	case ratio >= 1.5:
		return 80
	case ratio >= 1.0:
		return 50
	case ratio >= 0.5:
		return 20
	default:
		return 5
	}
}
