// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Analytics read-path metrics
	IncAnalyticsCacheHit()
	IncAnalyticsCacheMiss()
	ObserveAnalyticsQueryDuration(duration time.Duration)

	// File management metrics
	IncFileCreated()
	IncFileUpdated()

	// Contact fold metrics
	IncContactFolded(status string) // status: "success", "skipped", "failed"

	// Session ingest pipeline metrics
	IncSessionEventPublished(status string) // status: "success" or "dropped"
	IncSessionEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveIngestBatchSize(size int)
	ObserveIngestBatchDuration(duration time.Duration)
	SetIngestQueueDepth(depth int64)
	ObserveIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
