package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/pagepulse/internal/aggregate"
	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/middleware"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
)

// AnalyticsHandler handles per-file analytics API requests.
type AnalyticsHandler struct {
	repo    *repository.Repository
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(repo *repository.Repository, c *cache.Cache, recorder metrics.Recorder, logger *slog.Logger) *AnalyticsHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AnalyticsHandler{
		repo:    repo,
		cache:   c,
		metrics: recorder,
		logger:  logger.With("component", "handler.analytics"),
	}
}

// GetFileAnalytics handles GET /api/v1/files/{id}/analytics.
//
// Returns the engagement summary, period-over-period change, and scored
// viewer rollup for one file over a [from, to) window. The previous window
// used for the change numbers has the same length and ends where the
// current one starts.
func (h *AnalyticsHandler) GetFileAnalytics(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID(fileID); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid file ID")
		return
	}

	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	from, to := parseTimeRange(r)

	file, err := fetchOwnedFile(r.Context(), h.repo, fileID, authCtx.OwnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) || errors.Is(err, errFileForbidden) {
			h.writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
			return
		}
		h.logger.Error("failed to load file", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch analytics")
		return
	}

	// Cache lookup after the ownership check so a cached body is never
	// served to the wrong account.
	if h.cache != nil {
		if cached, err := h.cache.GetFileAnalytics(r.Context(), fileID, from, to); err == nil {
			h.metrics.IncAnalyticsCacheHit()
			writeJSON(w, http.StatusOK, cached)
			return
		}
		h.metrics.IncAnalyticsCacheMiss()
	}

	start := time.Now()

	records, err := h.repo.ListByFile(r.Context(), fileID, from, to)
	if err != nil {
		h.logger.Error("failed to list sessions", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch analytics")
		return
	}

	// Previous window of equal length, ending where this one starts.
	prevFrom := from.Add(-to.Sub(from))
	prevRecords, err := h.repo.ListByFile(r.Context(), fileID, prevFrom, from)
	if err != nil {
		h.logger.Error("failed to list previous window", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch analytics")
		return
	}

	summary := aggregate.FileSummary(records, file)
	prevSummary := aggregate.FileSummary(prevRecords, file)
	viewers := aggregate.RollupViewers(records, file)

	response := &model.FileAnalytics{
		FileID: fileID,
		Period: model.Period{
			From: from.Format("2006-01-02"),
			To:   to.Format("2006-01-02"),
		},
		Summary:     summary,
		Change:      summaryChange(summary, prevSummary),
		Viewers:     viewers,
		GeneratedAt: time.Now().UTC(),
	}

	h.metrics.ObserveAnalyticsQueryDuration(time.Since(start))

	if h.cache != nil {
		if err := h.cache.SetFileAnalytics(r.Context(), fileID, from, to, response); err != nil {
			h.logger.Warn("failed to cache analytics", "file_id", fileID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// errFileForbidden marks a file owned by a different account. Callers map it
// to 404 alongside ErrFileNotFound to prevent enumeration.
var errFileForbidden = errors.New("file not owned by caller")

// fetchOwnedFile loads file metadata and enforces ownership.
func fetchOwnedFile(ctx context.Context, repo *repository.Repository, fileID, ownerEmail string) (*model.File, error) {
	file, err := repo.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerEmail != ownerEmail {
		return nil, errFileForbidden
	}
	return file, nil
}

// summaryChange computes rounded percent deltas between two windows.
func summaryChange(curr, prev model.FileSummary) model.FileSummaryChange {
	return model.FileSummaryChange{
		ViewsChange:         aggregate.PercentChange(float64(curr.Views), float64(prev.Views)),
		UniqueViewersChange: aggregate.PercentChange(float64(curr.UniqueViewers), float64(prev.UniqueViewers)),
		AvgEngagementChange: aggregate.PercentChange(curr.AvgEngagement, prev.AvgEngagement),
		AvgTimeChange:       aggregate.PercentChange(curr.AvgTimeSeconds, prev.AvgTimeSeconds),
		DownloadsChange:     aggregate.PercentChange(float64(curr.Downloads), float64(prev.Downloads)),
	}
}

// parseTimeRange extracts from/to dates from query params.
// Defaults to the trailing 7 days. Malformed windows are repaired rather
// than rejected: an inverted range is swapped, an oversize one is clamped
// to middleware.MaxAnalyticsWindowDays, and to never extends into the
// future.
func parseTimeRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		if parsed, err := time.Parse("2006-01-02", fromStr); err == nil {
			from = parsed
		}
	}

	if toStr := r.URL.Query().Get("to"); toStr != "" {
		if parsed, err := time.Parse("2006-01-02", toStr); err == nil {
			to = parsed
		}
	}

	if to.After(now) {
		to = now
	}

	if err := middleware.ValidateTimeRange(from, to); errors.Is(err, middleware.ErrTimeRangeInverted) {
		from, to = to, from
	}
	if err := middleware.ValidateTimeRange(from, to); errors.Is(err, middleware.ErrTimeRangeTooLarge) {
		from = to.AddDate(0, 0, -middleware.MaxAnalyticsWindowDays)
	}

	return from, to
}

// writeError writes a JSON error response.
func (h *AnalyticsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
