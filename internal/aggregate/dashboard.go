package aggregate

import (
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/scoring"
)

// Dashboard builds the owner-wide rollup for the window [from, to),
// comparing against the equal-length window immediately before it.
// records must cover both windows; anything outside them is ignored.
// Headline KPI changes use the strict percent-change convention.
func Dashboard(records []*model.AccessLog, metas map[string]*model.File, from, to time.Time) *model.DashboardSummary {
	var curr, prev []*model.AccessLog
	prevFrom := from.Add(-to.Sub(from))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		switch {
		case inWindow(rec.AccessedAt, from, to):
			curr = append(curr, rec)
		case inWindow(rec.AccessedAt, prevFrom, from):
			prev = append(prev, rec)
		}
	}

	ds := &model.DashboardSummary{
		PerFile:     make(map[string]model.FileSummary),
		GeneratedAt: time.Now().UTC(),
	}

	currTotals := windowTotals(curr, metas)
	prevTotals := windowTotals(prev, metas)

	ds.TotalViews = currTotals.views
	ds.UniqueViewers = currTotals.uniqueViewers
	ds.AvgEngagement = currTotals.avgEngagement
	ds.HotLeads = currTotals.hotLeads
	ds.TotalTimeSeconds = currTotals.timeSeconds
	ds.Downloads = currTotals.downloads
	ds.PerFile = currTotals.perFile

	ds.ViewsChange = PercentChangeStrict(float64(currTotals.views), float64(prevTotals.views))
	ds.EngagementChange = PercentChangeStrict(currTotals.avgEngagement, prevTotals.avgEngagement)
	ds.HotLeadsChange = PercentChangeStrict(float64(currTotals.hotLeads), float64(prevTotals.hotLeads))

	return ds
}

type windowRollup struct {
	views         int
	uniqueViewers int
	avgEngagement float64
	hotLeads      int
	timeSeconds   int
	downloads     int
	perFile       map[string]model.FileSummary
}

// windowTotals aggregates one window's records: per-file summaries first,
// then a dashboard-wide average weighted by each file's view count.
func windowTotals(records []*model.AccessLog, metas map[string]*model.File) windowRollup {
	w := windowRollup{perFile: make(map[string]model.FileSummary)}
	if len(records) == 0 {
		return w
	}

	byFile := GroupByFile(records)
	scores := make([]float64, 0, len(byFile))
	counts := make([]int, 0, len(byFile))

	uniqueViewers := make(map[string]bool)
	for fileID, fileRecords := range byFile {
		sum := FileSummary(fileRecords, metas[fileID])
		w.perFile[fileID] = sum

		w.views += sum.Views
		w.hotLeads += sum.HotLeads
		w.downloads += sum.Downloads
		scores = append(scores, sum.AvgEngagement)
		counts = append(counts, sum.Views)

		for _, rec := range fileRecords {
			w.timeSeconds += scoring.ResolveDuration(rec)
			uniqueViewers[scoring.ViewerKey(rec)] = true
		}
	}

	w.uniqueViewers = len(uniqueViewers)
	w.avgEngagement = WeightedAverage(scores, counts)

	return w
}
