package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AnalyticsCacheHits        uint64
	AnalyticsCacheMisses      uint64
	AnalyticsQueryCount       uint64
	AnalyticsQueryTotalNs     int64
	FilesCreated              uint64
	FilesUpdated              uint64
	ContactFoldsSuccess       uint64
	ContactFoldsSkipped       uint64
	ContactFoldsFailed        uint64
	SessionEventsPublished    uint64
	SessionEventsDropped      uint64
	SessionEventsProcessed    uint64
	SessionEventsFailed       uint64
	SessionEventsDeadLettered uint64
	IngestBatchCount          uint64
	IngestBatchTotalNs        int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	analyticsCacheHits        uint64
	analyticsCacheMisses      uint64
	analyticsQueryCount       uint64
	analyticsQueryTotalNs     int64
	filesCreated              uint64
	filesUpdated              uint64
	contactFoldsSuccess       uint64
	contactFoldsSkipped       uint64
	contactFoldsFailed        uint64
	sessionEventsPublished    uint64
	sessionEventsDropped      uint64
	sessionEventsProcessed    uint64
	sessionEventsFailed       uint64
	sessionEventsDeadLettered uint64
	ingestBatchCount          uint64
	ingestBatchTotalNs        int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AnalyticsCacheHits:        atomic.LoadUint64(&m.analyticsCacheHits),
		AnalyticsCacheMisses:      atomic.LoadUint64(&m.analyticsCacheMisses),
		AnalyticsQueryCount:       atomic.LoadUint64(&m.analyticsQueryCount),
		AnalyticsQueryTotalNs:     atomic.LoadInt64(&m.analyticsQueryTotalNs),
		FilesCreated:              atomic.LoadUint64(&m.filesCreated),
		FilesUpdated:              atomic.LoadUint64(&m.filesUpdated),
		ContactFoldsSuccess:       atomic.LoadUint64(&m.contactFoldsSuccess),
		ContactFoldsSkipped:       atomic.LoadUint64(&m.contactFoldsSkipped),
		ContactFoldsFailed:        atomic.LoadUint64(&m.contactFoldsFailed),
		SessionEventsPublished:    atomic.LoadUint64(&m.sessionEventsPublished),
		SessionEventsDropped:      atomic.LoadUint64(&m.sessionEventsDropped),
		SessionEventsProcessed:    atomic.LoadUint64(&m.sessionEventsProcessed),
		SessionEventsFailed:       atomic.LoadUint64(&m.sessionEventsFailed),
		SessionEventsDeadLettered: atomic.LoadUint64(&m.sessionEventsDeadLettered),
		IngestBatchCount:          atomic.LoadUint64(&m.ingestBatchCount),
		IngestBatchTotalNs:        atomic.LoadInt64(&m.ingestBatchTotalNs),
	}
}

// IncAnalyticsCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncAnalyticsCacheHit() {
	atomic.AddUint64(&m.analyticsCacheHits, 1)
}

// IncAnalyticsCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncAnalyticsCacheMiss() {
	atomic.AddUint64(&m.analyticsCacheMisses, 1)
}

// ObserveAnalyticsQueryDuration records analytics query duration.
func (m *InMemoryRecorder) ObserveAnalyticsQueryDuration(duration time.Duration) {
	atomic.AddUint64(&m.analyticsQueryCount, 1)
	atomic.AddInt64(&m.analyticsQueryTotalNs, duration.Nanoseconds())
}

// IncFileCreated increments file created counter.
func (m *InMemoryRecorder) IncFileCreated() {
	atomic.AddUint64(&m.filesCreated, 1)
}

// IncFileUpdated increments file updated counter.
func (m *InMemoryRecorder) IncFileUpdated() {
	atomic.AddUint64(&m.filesUpdated, 1)
}

// IncContactFolded increments the fold counter for a status.
func (m *InMemoryRecorder) IncContactFolded(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.contactFoldsSuccess, 1)
	case "skipped":
		atomic.AddUint64(&m.contactFoldsSkipped, 1)
	default:
		atomic.AddUint64(&m.contactFoldsFailed, 1)
	}
}

// IncSessionEventPublished increments the publish counter for a status.
func (m *InMemoryRecorder) IncSessionEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.sessionEventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.sessionEventsDropped, 1)
}

// IncSessionEventProcessed increments the process counter for a status.
func (m *InMemoryRecorder) IncSessionEventProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.sessionEventsProcessed, 1)
	case "dead_lettered":
		atomic.AddUint64(&m.sessionEventsDeadLettered, 1)
	default:
		atomic.AddUint64(&m.sessionEventsFailed, 1)
	}
}

// ObserveIngestBatchSize is recorded via batch count only.
func (m *InMemoryRecorder) ObserveIngestBatchSize(size int) {}

// ObserveIngestBatchDuration records batch processing duration.
func (m *InMemoryRecorder) ObserveIngestBatchDuration(duration time.Duration) {
	atomic.AddUint64(&m.ingestBatchCount, 1)
	atomic.AddInt64(&m.ingestBatchTotalNs, duration.Nanoseconds())
}

// SetIngestQueueDepth is not tracked in memory.
func (m *InMemoryRecorder) SetIngestQueueDepth(depth int64) {}

// ObserveIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveIngestLag(lag time.Duration) {}
