package scoring

// Intent is the buying-intent tier derived from an engagement score.
type Intent string

const (
	IntentHot  Intent = "hot"
	IntentWarm Intent = "warm"
	IntentCold Intent = "cold"
)

// IntentSignal thresholds a score into hot/warm/cold.
func IntentSignal(score int) Intent {
	switch {
	case score >= 70:
		return IntentHot
	case score >= 40:
		return IntentWarm
	default:
		return IntentCold
	}
}

// IsHotLead applies the file-session hot-lead heuristics: a very high
// score on its own, a high score plus a download, or a solid score plus
// repeat visits.
func IsHotLead(score int, downloaded bool, returnVisitCount int) bool {
	if score >= 80 {
		return true
	}
	if score >= 70 && downloaded {
		return true
	}
	return score >= 60 && returnVisitCount >= 2
}

// IsHotTrackSiteLead is the simpler track-site rule. Track sites carry no
// download signal, so repeat clicking alone can mark a lead hot.
func IsHotTrackSiteLead(score int, returnVisitCount int) bool {
	return score >= 70 || returnVisitCount >= 2
}

// IsHotContact is the contact-level rule applied to the all-time average
// engagement across files. It is deliberately distinct from the
// single-session rules above and must only be used on contact aggregates.
func IsHotContact(avgEngagement float64, hasDownloaded bool, totalViews int) bool {
	if avgEngagement >= 70 {
		return true
	}
	if avgEngagement >= 60 && hasDownloaded {
		return true
	}
	return avgEngagement >= 50 && totalViews >= 3
}
