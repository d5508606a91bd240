// Package ingest provides viewer session event capture and processing.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagepulse/pagepulse/internal/metrics"
)

const (
	// StreamKey is the Redis stream for viewer session events.
	StreamKey = "stream:viewer_sessions"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:viewer_sessions:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event type constants for session lifecycle events.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventClose    = "close"
)

// SessionEventPayload is the compressed event format for the Redis stream.
// Viewer instrumentation sends the full session state on every beat; the
// worker upserts it last-write-wins per session.
type SessionEventPayload struct {
	Event       string `json:"e"`            // start, progress, close
	SessionID   string `json:"sid"`          // viewer-side session identifier
	FileID      string `json:"fid"`          // file or track-site link
	OwnerEmail  string `json:"oe,omitempty"` // denormalized link owner
	ViewerEmail string `json:"ve,omitempty"`
	ViewerName  string `json:"vn,omitempty"`
	IPAddress   string `json:"ip,omitempty"`
	LinkType    string `json:"lt,omitempty"` // "file" (default) or "url"
	AccessedAt  int64  `json:"t"`            // session start, Unix milliseconds
	EndedAt     int64  `json:"et,omitempty"` // session end, Unix milliseconds

	DurationSeconds int             `json:"d,omitempty"`
	TotalPages      int             `json:"tp,omitempty"`
	MaxPageReached  int             `json:"mp,omitempty"`
	Completion      float64         `json:"c,omitempty"`  // 0-100
	PagesTime       map[int]float64 `json:"pg,omitempty"` // page -> seconds
	SegmentsTime    map[int]float64 `json:"sg,omitempty"` // segment 0-9 -> seconds

	VideoDurationSeconds int     `json:"vd,omitempty"`
	VideoCompletion      float64 `json:"vc,omitempty"`

	Downloaded    bool `json:"dl,omitempty"`
	DownloadCount int  `json:"dc,omitempty"`

	Country       string `json:"cn,omitempty"`
	DeviceType    string `json:"dt,omitempty"`
	Browser       string `json:"br,omitempty"`
	TrafficSource string `json:"ts,omitempty"`
	AccessMethod  string `json:"am,omitempty"`

	// Score is a client-computed engagement number some viewer builds still
	// send. It is accepted for wire compatibility and then discarded: every
	// score is recomputed server-side from the raw telemetry.
	Score float64 `json:"score,omitempty"`
}

// Publisher enqueues session events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new session event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "ingest.publisher"),
		metrics: recorder,
	}
}

// Publish adds a session event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event SessionEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event SessionEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish session event",
				"session_id", event.SessionID,
				"file_id", event.FileID,
				"error", err,
			)
			p.metrics.IncSessionEventPublished("dropped")
			return
		}

		p.logger.Debug("session event published",
			"session_id", event.SessionID,
			"stream_id", streamID,
		)
		p.metrics.IncSessionEventPublished("success")
	}()
}
