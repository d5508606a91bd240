package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/ingest"
)

// SessionHandler accepts viewer session beats from tracking clients.
type SessionHandler struct {
	publisher *ingest.Publisher
	logger    *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(publisher *ingest.Publisher, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		publisher: publisher,
		logger:    logger.With("component", "handler.sessions"),
	}
}

// TrackSession handles POST /track/sessions.
//
// The endpoint is fire-and-forget from the client's perspective: the beat is
// validated, enqueued on the session stream, and acknowledged with 202. The
// ingest worker applies it to storage asynchronously.
func (h *SessionHandler) TrackSession(w http.ResponseWriter, r *http.Request) {
	var payload ingest.SessionEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := ingest.ValidateSessionEventPayload(payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	// Stamp the client IP server-side if the beacon did not carry one.
	if payload.IPAddress == "" {
		payload.IPAddress = getClientIP(r)
	}

	h.publisher.PublishAsync(payload)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"session_id": payload.SessionID,
	})
}

// TrackSessionUpdate handles POST /track/sessions/{sessionID}. The path
// session ID wins over whatever the body carries, so clients can PATCH-style
// beat an existing session without repeating the ID in the payload.
func (h *SessionHandler) TrackSessionUpdate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_SESSION_ID", "Session ID is required")
		return
	}

	var payload ingest.SessionEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	payload.SessionID = sessionID
	if payload.Event == "" {
		payload.Event = ingest.EventProgress
	}

	if err := ingest.ValidateSessionEventPayload(payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
		return
	}

	if payload.IPAddress == "" {
		payload.IPAddress = getClientIP(r)
	}

	h.publisher.PublishAsync(payload)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"session_id": payload.SessionID,
	})
}

// getClientIP extracts the client IP, honoring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := range xff {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
