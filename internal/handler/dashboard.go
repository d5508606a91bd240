package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pagepulse/pagepulse/internal/aggregate"
	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
)

// DashboardHandler handles the owner-wide dashboard rollup.
type DashboardHandler struct {
	repo    *repository.Repository
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(repo *repository.Repository, c *cache.Cache, recorder metrics.Recorder, logger *slog.Logger) *DashboardHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &DashboardHandler{
		repo:    repo,
		cache:   c,
		metrics: recorder,
		logger:  logger.With("component", "handler.dashboard"),
	}
}

// GetDashboard handles GET /api/v1/dashboard.
//
// Aggregates every session across the caller's files in the window, with
// KPI deltas against the equal-length preceding window.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	from, to := parseTimeRange(r)
	owner := authCtx.OwnerEmail

	if h.cache != nil {
		if cached, err := h.cache.GetDashboard(r.Context(), owner, from, to); err == nil {
			h.metrics.IncAnalyticsCacheHit()
			writeJSON(w, http.StatusOK, cached)
			return
		}
		h.metrics.IncAnalyticsCacheMiss()
	}

	start := time.Now()

	// The dashboard needs the previous window too; fetch both in one pass.
	prevFrom := from.Add(-to.Sub(from))
	records, err := h.repo.ListByOwner(r.Context(), owner, prevFrom, to)
	if err != nil {
		h.logger.Error("failed to list owner sessions", "owner_email", owner, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch dashboard")
		return
	}

	files, err := h.repo.ListFilesByOwner(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list owner files", "owner_email", owner, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch dashboard")
		return
	}

	metas := make(map[string]*model.File, len(files))
	for _, f := range files {
		metas[f.ID] = f
	}

	dashboard := aggregate.Dashboard(records, metas, from, to)

	h.metrics.ObserveAnalyticsQueryDuration(time.Since(start))

	if h.cache != nil {
		if err := h.cache.SetDashboard(r.Context(), owner, from, to, dashboard); err != nil {
			h.logger.Warn("failed to cache dashboard", "owner_email", owner, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, dashboard)
}

func (h *DashboardHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
