// Package aggregate rebuilds engagement aggregates from raw access-log
// records. Aggregation is stateless per read: records are grouped by file,
// then by viewer identity within each file, scored via the scoring
// package, and folded upward into per-file, per-contact, and dashboard
// shapes. Nothing here trusts a stored score.
package aggregate

import (
	"sort"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/scoring"
)

// GroupByFile partitions records by file ID, preserving input order within
// each group.
func GroupByFile(records []*model.AccessLog) map[string][]*model.AccessLog {
	groups := make(map[string][]*model.AccessLog)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		groups[rec.FileID] = append(groups[rec.FileID], rec)
	}
	return groups
}

// RollupViewers groups one file's records by viewer identity and computes
// the per-(viewer,file) scored rollups. meta may be nil. Output is sorted
// by last-seen descending, then viewer key, so repeated calls over the
// same records yield identical slices.
func RollupViewers(records []*model.AccessLog, meta *model.File) []*model.ViewerSession {
	byViewer := make(map[string][]*model.AccessLog)
	order := make([]string, 0)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		key := scoring.ViewerKey(rec)
		if _, seen := byViewer[key]; !seen {
			order = append(order, key)
		}
		byViewer[key] = append(byViewer[key], rec)
	}

	rollups := make([]*model.ViewerSession, 0, len(order))
	for _, key := range order {
		rollups = append(rollups, rollupGroup(key, byViewer[key], meta))
	}

	sort.SliceStable(rollups, func(i, j int) bool {
		if !rollups[i].LastSeenAt.Equal(rollups[j].LastSeenAt) {
			return rollups[i].LastSeenAt.After(rollups[j].LastSeenAt)
		}
		return rollups[i].ViewerKey < rollups[j].ViewerKey
	})

	return rollups
}

// rollupGroup folds one viewer's sessions against one file into a single
// scored rollup.
func rollupGroup(key string, sessions []*model.AccessLog, meta *model.File) *model.ViewerSession {
	vs := &model.ViewerSession{ViewerKey: key}
	merged := &model.AccessLog{}

	var latest *model.AccessLog
	for _, rec := range sessions {
		if vs.FileID == "" {
			vs.FileID = rec.FileID
		}
		if latest == nil || !rec.AccessedAt.Before(latest.AccessedAt) {
			latest = rec
		}

		if rec.ViewerEmail != "" && vs.Email == "" {
			vs.Email = model.NormalizeEmail(rec.ViewerEmail)
		}
		if rec.ViewerName != "" && vs.Name == "" {
			vs.Name = rec.ViewerName
		}

		vs.Sessions++
		vs.TotalTimeSeconds += scoring.ResolveDuration(rec)
		if rec.CompletionPercentage > vs.MaxCompletion {
			vs.MaxCompletion = rec.CompletionPercentage
		}
		if rec.MaxPageReached > vs.MaxPageReached {
			vs.MaxPageReached = rec.MaxPageReached
		}
		if rec.TotalPages > 0 {
			vs.TotalPages = rec.TotalPages
		}
		if rec.HasDownload() {
			vs.Downloaded = true
		}
		if rec.ReturnVisitCount > vs.ReturnVisitCount {
			vs.ReturnVisitCount = rec.ReturnVisitCount
		}

		if vs.FirstSeenAt.IsZero() || rec.AccessedAt.Before(vs.FirstSeenAt) {
			vs.FirstSeenAt = rec.AccessedAt
		}
		if rec.AccessedAt.After(vs.LastSeenAt) {
			vs.LastSeenAt = rec.AccessedAt
		}

		mergeTelemetry(merged, rec)
	}

	vs.LinkType = latest.Type()
	vs.IsReturnVisitor = vs.Sessions > 1 || latest.IsReturnVisit

	if vs.TotalPages == 0 && meta != nil {
		vs.TotalPages = meta.TotalPages
	}

	switch vs.LinkType {
	case model.LinkTypeURL:
		vs.EngagementScore = scoring.TrackSiteSession(vs.IsReturnVisitor, vs.ReturnVisitCount)
		vs.IsHotLead = scoring.IsHotTrackSiteLead(vs.EngagementScore, vs.ReturnVisitCount)
	default:
		merged.TotalDurationSeconds = vs.TotalTimeSeconds
		merged.CompletionPercentage = vs.MaxCompletion
		merged.MaxPageReached = vs.MaxPageReached
		merged.TotalPages = vs.TotalPages
		merged.Downloaded = vs.Downloaded
		merged.ReturnVisitCount = vs.ReturnVisitCount
		vs.EngagementScore = scoring.FileSession(merged, meta)
		vs.IsHotLead = scoring.IsHotLead(vs.EngagementScore, vs.Downloaded, vs.ReturnVisitCount)
	}
	vs.Intent = string(scoring.IntentSignal(vs.EngagementScore))

	return vs
}

// mergeTelemetry accumulates the per-page/per-segment dwell maps across a
// viewer's sessions so depth scoring sees the union of their activity.
func mergeTelemetry(dst, src *model.AccessLog) {
	if len(src.PagesTime) > 0 {
		if dst.PagesTime == nil {
			dst.PagesTime = make(map[int]float64, len(src.PagesTime))
		}
		for page, secs := range src.PagesTime {
			dst.PagesTime[page] += secs
		}
	}
	if len(src.SegmentsTime) > 0 {
		if dst.SegmentsTime == nil {
			dst.SegmentsTime = make(map[int]float64, len(src.SegmentsTime))
		}
		for seg, secs := range src.SegmentsTime {
			dst.SegmentsTime[seg] += secs
		}
	}
	if src.VideoCompletionPercent > dst.VideoCompletionPercent {
		dst.VideoCompletionPercent = src.VideoCompletionPercent
	}
}

// FileSummary computes the aggregate engagement breakdown for one file's
// records. Per-session scores feed the average; lead tiers are counted per
// viewer rollup. An empty record set yields the zero summary, never nil.
func FileSummary(records []*model.AccessLog, meta *model.File) model.FileSummary {
	var sum model.FileSummary
	if len(records) == 0 {
		return sum
	}

	var scoreTotal, completionTotal, timeTotal float64
	for _, rec := range records {
		if rec == nil {
			continue
		}
		sum.Views++
		scoreTotal += float64(sessionScore(rec, meta))
		completionTotal += rec.CompletionPercentage
		timeTotal += float64(scoring.ResolveDuration(rec))
		if rec.HasDownload() {
			sum.Downloads++
		}
	}
	if sum.Views == 0 {
		return sum
	}

	rollups := RollupViewers(records, meta)
	sum.UniqueViewers = len(rollups)

	returning := 0
	for _, vs := range rollups {
		if vs.IsReturnVisitor {
			returning++
		}
		switch scoring.Intent(vs.Intent) {
		case scoring.IntentHot:
			sum.HotLeads++
		case scoring.IntentWarm:
			sum.WarmLeads++
		default:
			sum.ColdLeads++
		}
	}

	n := float64(sum.Views)
	sum.AvgEngagement = scoreTotal / n
	sum.AvgCompletion = completionTotal / n
	sum.AvgTimeSeconds = timeTotal / n
	if sum.UniqueViewers > 0 {
		sum.ReturnRate = float64(returning) / float64(sum.UniqueViewers) * 100
	}

	return sum
}

// sessionScore dispatches one record to the scorer family its link type
// selects.
func sessionScore(rec *model.AccessLog, meta *model.File) int {
	if rec.Type() == model.LinkTypeURL {
		return scoring.TrackSiteSession(rec.IsReturnVisit, rec.ReturnVisitCount)
	}
	return scoring.FileSession(rec, meta)
}

// WeightedAverage combines per-file average scores into one figure,
// weighting each file by its session count. Zero total weight yields 0.
func WeightedAverage(scores []float64, sessionCounts []int) float64 {
	var weighted float64
	var total int
	for i, score := range scores {
		if i >= len(sessionCounts) || sessionCounts[i] <= 0 {
			continue
		}
		weighted += score * float64(sessionCounts[i])
		total += sessionCounts[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}

// inWindow reports whether t falls in the half-open window [from, to).
func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
