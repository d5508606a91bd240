package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAnalyticsCacheHit is a no-op.
func (n *NoopRecorder) IncAnalyticsCacheHit() {}

// IncAnalyticsCacheMiss is a no-op.
func (n *NoopRecorder) IncAnalyticsCacheMiss() {}

// ObserveAnalyticsQueryDuration is a no-op.
func (n *NoopRecorder) ObserveAnalyticsQueryDuration(duration time.Duration) {}

// IncFileCreated is a no-op.
func (n *NoopRecorder) IncFileCreated() {}

// IncFileUpdated is a no-op.
func (n *NoopRecorder) IncFileUpdated() {}

// IncContactFolded is a no-op.
func (n *NoopRecorder) IncContactFolded(status string) {}

// IncSessionEventPublished is a no-op.
func (n *NoopRecorder) IncSessionEventPublished(status string) {}

// IncSessionEventProcessed is a no-op.
func (n *NoopRecorder) IncSessionEventProcessed(status string) {}

// ObserveIngestBatchSize is a no-op.
func (n *NoopRecorder) ObserveIngestBatchSize(size int) {}

// ObserveIngestBatchDuration is a no-op.
func (n *NoopRecorder) ObserveIngestBatchDuration(duration time.Duration) {}

// SetIngestQueueDepth is a no-op.
func (n *NoopRecorder) SetIngestQueueDepth(depth int64) {}

// ObserveIngestLag is a no-op.
func (n *NoopRecorder) ObserveIngestLag(lag time.Duration) {}
