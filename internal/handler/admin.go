package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
)

// AdminFileSearcher defines the interface for file lookup operations.
type AdminFileSearcher interface {
	GetFileByID(ctx context.Context, id string) (*model.File, error)
	ListFilesByOwner(ctx context.Context, ownerEmail string) ([]*model.File, error)
}

// AdminKeyLister defines the interface for listing API keys.
type AdminKeyLister interface {
	ListAPIKeysByOwner(ctx context.Context, ownerEmail string) ([]*model.APIKey, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	fileRepo AdminFileSearcher
	keyRepo  AdminKeyLister
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(fileRepo AdminFileSearcher, keyRepo AdminKeyLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		fileRepo: fileRepo,
		keyRepo:  keyRepo,
		logger:   logger,
	}
}

// FileLookupResponse represents the response for file lookup.
type FileLookupResponse struct {
	Files []*model.File `json:"files"`
	Total int           `json:"total"`
}

// LookupFiles handles GET /api/v1/admin/files?q={file_id|owner_email}
// Looks up by file ID (exact match) or owner email.
func (h *AdminHandler) LookupFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_QUERY", "query parameter 'q' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var files []*model.File

	// Try exact file ID lookup first
	if file, err := h.fileRepo.GetFileByID(ctx, query); err == nil {
		files = append(files, file)
	} else if !errors.Is(err, repository.ErrFileNotFound) {
		h.logger.Error("failed to look up file",
			"error", err,
			"query", truncateForLog(query, 100),
		)
	}

	// If no exact match and query looks like an email, search by owner
	if len(files) == 0 && containsAt(query) {
		ownerFiles, err := h.fileRepo.ListFilesByOwner(ctx, query)
		if err != nil {
			h.logger.Error("failed to list files by owner",
				"error", err,
				"query", truncateForLog(query, 100),
			)
		} else {
			files = ownerFiles
		}
	}

	writeJSON(w, http.StatusOK, FileLookupResponse{
		Files: files,
		Total: len(files),
	})
}

// AdminAPIKeyListResponse represents the response for API key listing.
type AdminAPIKeyListResponse struct {
	Keys  []model.APIKeyResponse `json:"keys"`
	Total int                    `json:"total"`
}

// ListAPIKeysByOwner handles GET /api/v1/admin/api-keys?owner_email={email}
// Lists all API keys for a specific account (admin only).
func (h *AdminHandler) ListAPIKeysByOwner(w http.ResponseWriter, r *http.Request) {
	ownerEmail := r.URL.Query().Get("owner_email")
	if ownerEmail == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_OWNER_EMAIL", "query parameter 'owner_email' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	keys, err := h.keyRepo.ListAPIKeysByOwner(ctx, ownerEmail)
	if err != nil {
		h.logger.Error("failed to list API keys",
			"error", err,
			"owner_email", ownerEmail,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list API keys")
		return
	}

	response := AdminAPIKeyListResponse{
		Keys:  make([]model.APIKeyResponse, 0, len(keys)),
		Total: len(keys),
	}

	for _, key := range keys {
		response.Keys = append(response.Keys, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, response)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime,omitempty"`
}

// Stats handles GET /api/v1/admin/stats
// Returns basic operational statistics.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "pagepulse",
		Version:   "1.0.0", // TODO: inject at build time
	}
	writeJSON(w, http.StatusOK, response)
}

// containsAt checks if a string looks like an email address.
func containsAt(s string) bool {
	for i := range s {
		if s[i] == '@' {
			return true
		}
	}
	return false
}

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
