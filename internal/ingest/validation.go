// Package ingest provides viewer session event capture and processing.
package ingest

import "fmt"

const (
	maxIDLength    = 128
	maxEmailLength = 320
	maxNameLength  = 200
)

// ValidateSessionEventPayload validates session event payload fields.
// Out-of-range telemetry numbers are NOT rejected here: the scoring layer
// is total over garbage input and clamps everything itself. Validation only
// rejects events that cannot be attributed to a session at all.
func ValidateSessionEventPayload(payload SessionEventPayload) error {
	switch payload.Event {
	case EventStart, EventProgress, EventClose:
	default:
		return fmt.Errorf("unknown event type %q", payload.Event)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(payload.SessionID) > maxIDLength {
		return fmt.Errorf("session_id too long")
	}
	if payload.FileID == "" {
		return fmt.Errorf("file_id is required")
	}
	if len(payload.FileID) > maxIDLength {
		return fmt.Errorf("file_id too long")
	}
	if payload.AccessedAt <= 0 {
		return fmt.Errorf("accessed_at must be set")
	}
	if payload.LinkType != "" && payload.LinkType != "file" && payload.LinkType != "url" {
		return fmt.Errorf("link_type must be file or url")
	}
	if len(payload.ViewerEmail) > maxEmailLength {
		return fmt.Errorf("viewer_email too long")
	}
	if len(payload.ViewerName) > maxNameLength {
		return fmt.Errorf("viewer_name too long")
	}
	return nil
}
