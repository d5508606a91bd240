package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pagepulse/pagepulse/internal/middleware"
)

func TestParseTimeRange(t *testing.T) {
	t.Parallel()

	t.Run("defaults to trailing 7 days", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/files/f1/analytics", nil)
		from, to := parseTimeRange(req)

		if got := to.Sub(from); got != 7*24*time.Hour {
			t.Errorf("window = %v, want 168h", got)
		}
		if to.After(time.Now().UTC()) {
			t.Errorf("to = %v extends into the future", to)
		}
	})

	t.Run("explicit window parsed as dates", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?from=2026-05-01&to=2026-05-08", nil)
		from, to := parseTimeRange(req)

		wantFrom := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		wantTo := time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC)
		if !from.Equal(wantFrom) || !to.Equal(wantTo) {
			t.Errorf("window = %v..%v, want %v..%v", from, to, wantFrom, wantTo)
		}
	})

	t.Run("inverted window swapped", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?from=2026-05-08&to=2026-05-01", nil)
		from, to := parseTimeRange(req)

		if to.Before(from) {
			t.Errorf("window still inverted: %v..%v", from, to)
		}
		if !from.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("from = %v, want 2026-05-01", from)
		}
	})

	t.Run("oversize window clamped to the shared cap", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?from=2025-01-01&to=2026-05-01", nil)
		from, to := parseTimeRange(req)

		wantFrom := to.AddDate(0, 0, -middleware.MaxAnalyticsWindowDays)
		if !from.Equal(wantFrom) {
			t.Errorf("from = %v, want %v", from, wantFrom)
		}
		if err := middleware.ValidateTimeRange(from, to); err != nil {
			t.Errorf("clamped window should validate, got %v", err)
		}
	})

	t.Run("future to clamped to now", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x?from=2026-05-01&to=2099-01-01", nil)
		_, to := parseTimeRange(req)

		if to.After(time.Now().UTC()) {
			t.Errorf("to = %v extends into the future", to)
		}
	})
}
