package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/middleware"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
	"github.com/pagepulse/pagepulse/internal/scoring"
)

// PerformanceHandler handles track-site link performance requests.
type PerformanceHandler struct {
	repo    *repository.Repository
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewPerformanceHandler creates a new PerformanceHandler.
func NewPerformanceHandler(repo *repository.Repository, c *cache.Cache, recorder metrics.Recorder, logger *slog.Logger) *PerformanceHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PerformanceHandler{
		repo:    repo,
		cache:   c,
		metrics: recorder,
		logger:  logger.With("component", "handler.performance"),
	}
}

// GetLinkPerformance handles GET /api/v1/links/{id}/performance.
//
// Scores a track-site link from its lifetime click statistics. Only valid
// for url-type links; hosted files answer 409.
func (h *PerformanceHandler) GetLinkPerformance(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID(fileID); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid link ID")
		return
	}

	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	file, err := fetchOwnedFile(r.Context(), h.repo, fileID, authCtx.OwnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) || errors.Is(err, errFileForbidden) {
			h.writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "Link not found")
			return
		}
		h.logger.Error("failed to load file", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch link performance")
		return
	}

	if !file.IsTrackSite() {
		h.writeError(w, http.StatusConflict, "NOT_A_TRACK_SITE", "Link performance is only available for url-type links")
		return
	}

	if h.cache != nil {
		if cached, err := h.cache.GetLinkPerformance(r.Context(), fileID); err == nil {
			h.metrics.IncAnalyticsCacheHit()
			writeJSON(w, http.StatusOK, cached)
			return
		}
		h.metrics.IncAnalyticsCacheMiss()
	}

	start := time.Now()

	stats, err := h.repo.GetLinkClickStats(r.Context(), fileID, time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to load click stats", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch link performance")
		return
	}

	response := &model.LinkPerformance{
		FileID:      fileID,
		Score:       scoring.TrackSiteLink(*stats),
		Stats:       *stats,
		GeneratedAt: time.Now().UTC(),
	}

	h.metrics.ObserveAnalyticsQueryDuration(time.Since(start))

	if h.cache != nil {
		if err := h.cache.SetLinkPerformance(r.Context(), fileID, response); err != nil {
			h.logger.Warn("failed to cache link performance", "file_id", fileID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *PerformanceHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
