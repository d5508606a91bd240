package handler

import (
	"fmt"
	"net/http"

	"github.com/pagepulse/pagepulse/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "pagepulse_analytics_cache_hits_total %d\n", snap.AnalyticsCacheHits)
	writeMetric(w, "pagepulse_analytics_cache_misses_total %d\n", snap.AnalyticsCacheMisses)
	writeMetric(w, "pagepulse_analytics_query_duration_seconds_count %d\n", snap.AnalyticsQueryCount)
	writeMetric(w, "pagepulse_analytics_query_duration_seconds_sum %.6f\n", float64(snap.AnalyticsQueryTotalNs)/1e9)

	writeMetric(w, "pagepulse_files_created_total %d\n", snap.FilesCreated)
	writeMetric(w, "pagepulse_files_updated_total %d\n", snap.FilesUpdated)

	writeMetric(w, "pagepulse_contact_folds_total{status=\"success\"} %d\n", snap.ContactFoldsSuccess)
	writeMetric(w, "pagepulse_contact_folds_total{status=\"skipped\"} %d\n", snap.ContactFoldsSkipped)
	writeMetric(w, "pagepulse_contact_folds_total{status=\"failed\"} %d\n", snap.ContactFoldsFailed)

	writeMetric(w, "pagepulse_session_events_published_total{status=\"success\"} %d\n", snap.SessionEventsPublished)
	writeMetric(w, "pagepulse_session_events_published_total{status=\"dropped\"} %d\n", snap.SessionEventsDropped)

	writeMetric(w, "pagepulse_session_events_processed_total{status=\"success\"} %d\n", snap.SessionEventsProcessed)
	writeMetric(w, "pagepulse_session_events_processed_total{status=\"failed\"} %d\n", snap.SessionEventsFailed)
	writeMetric(w, "pagepulse_session_events_processed_total{status=\"dead_lettered\"} %d\n", snap.SessionEventsDeadLettered)

	writeMetric(w, "pagepulse_ingest_batches_total %d\n", snap.IngestBatchCount)
	writeMetric(w, "pagepulse_ingest_batch_duration_seconds_count %d\n", snap.IngestBatchCount)
	writeMetric(w, "pagepulse_ingest_batch_duration_seconds_sum %.6f\n", float64(snap.IngestBatchTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
