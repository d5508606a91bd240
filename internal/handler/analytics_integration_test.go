package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/ingest"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
	"github.com/pagepulse/pagepulse/internal/testutil"
)

func TestSessionIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetFilesSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset files schema: %v", err)
	}
	if err := testutil.ResetAccessLogsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset access_logs schema: %v", err)
	}
	if err := testutil.ResetContactsSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset contacts schema: %v", err)
	}

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})

	if err := testutil.FlushRedis(ctx, cacheClient.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	recorder := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	owner := "owner@acme.com"
	file := testutil.NewTestFile(t, owner)
	if err := repo.CreateFile(ctx, file); err != nil {
		t.Fatalf("create file: %v", err)
	}

	publisher := ingest.NewPublisher(cacheClient.Client(), logger, recorder)
	sessionHandler := NewSessionHandler(publisher, logger)
	analyticsHandler := NewAnalyticsHandler(repo, nil, recorder, logger)

	worker := ingest.NewWorker(cacheClient.Client(), repo, logger, "test-consumer", recorder)
	worker.SetBlockTimeout(200 * time.Millisecond)
	worker.SetClaimInterval(200 * time.Millisecond)
	worker.SetMetricsInterval(200 * time.Millisecond)
	worker.SetBatchSize(100)

	workerCtx, cancel := context.WithCancel(ctx)
	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run(workerCtx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-workerErr:
		case <-time.After(2 * time.Second):
		}
	})

	router := chi.NewRouter()
	router.Post("/track/sessions", sessionHandler.TrackSession)
	router.Get("/api/v1/files/{id}/analytics", analyticsHandler.GetFileAnalytics)

	now := time.Now().UTC()
	sendBeat(t, router, ingest.SessionEventPayload{
		Event:           ingest.EventClose,
		SessionID:       testutil.UniqueID("sess-a"),
		FileID:          file.ID,
		ViewerEmail:     "jane@example.com",
		IPAddress:       "203.0.113.10",
		AccessedAt:      now.Add(-time.Hour).UnixMilli(),
		EndedAt:         now.Add(-time.Hour).Add(3 * time.Minute).UnixMilli(),
		DurationSeconds: 180,
		TotalPages:      10,
		MaxPageReached:  9,
		Completion:      90,
	})
	sendBeat(t, router, ingest.SessionEventPayload{
		Event:           ingest.EventClose,
		SessionID:       testutil.UniqueID("sess-b"),
		FileID:          file.ID,
		IPAddress:       "203.0.113.11",
		AccessedAt:      now.Add(-30 * time.Minute).UnixMilli(),
		DurationSeconds: 20,
		TotalPages:      10,
		MaxPageReached:  1,
		Completion:      10,
	})

	from := now.AddDate(0, 0, -1).Format("2006-01-02")
	to := now.AddDate(0, 0, 1).Format("2006-01-02")
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		response, status := fetchFileAnalytics(t, router, owner, file.ID, from, to)
		if status != http.StatusOK {
			t.Fatalf("analytics status %d", status)
		}
		if response.Summary.Views == 2 && response.Summary.UniqueViewers == 2 {
			if len(response.Viewers) != 2 {
				t.Fatalf("expected 2 viewer rollups, got %d", len(response.Viewers))
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	response, _ := fetchFileAnalytics(t, router, owner, file.ID, from, to)
	t.Fatalf("expected 2 views / 2 unique viewers, got %d/%d",
		response.Summary.Views, response.Summary.UniqueViewers)
}

func sendBeat(t *testing.T, router *chi.Mux, payload ingest.SessionEventPayload) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal beat: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/track/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected track status %d: %s", rec.Code, rec.Body.String())
	}
}

func fetchFileAnalytics(t *testing.T, router *chi.Mux, owner, fileID, from, to string) (model.FileAnalytics, int) {
	t.Helper()

	path := fmt.Sprintf("/api/v1/files/%s/analytics?from=%s&to=%s", fileID, from, to)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{
		KeyID:      "test-key",
		OwnerEmail: owner,
		Scopes:     []string{model.ScopeRead},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload model.FileAnalytics
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("decode analytics response: %v", err)
		}
	}

	return payload, rec.Code
}
