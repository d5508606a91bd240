// Package testutil provides helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pagepulse/pagepulse/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema applies a migration's down then up file.
func resetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", name+".down.sql")
	upPath := filepath.Join(root, "migrations", name+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", name, err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", name, err)
	}

	return nil
}

// ResetFilesSchema drops and recreates the files schema for tests.
func ResetFilesSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_files")
}

// ResetAccessLogsSchema drops and recreates the access_logs schema for tests.
func ResetAccessLogsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_access_logs")
}

// ResetContactsSchema drops and recreates the contacts schema for tests.
func ResetContactsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_contacts")
}

// ResetAPIKeysSchema drops and recreates the api_keys schema for tests.
func ResetAPIKeysSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000004_api_keys")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestFile creates a test file with sensible defaults.
func NewTestFile(t testing.TB, ownerEmail string) *model.File {
	t.Helper()
	now := time.Now().UTC()
	return &model.File{
		ID:         fmt.Sprintf("file-%d", now.UnixNano()),
		OwnerEmail: ownerEmail,
		Name:       "Test Deck.pdf",
		Type:       model.LinkTypeFile,
		MimeType:   "application/pdf",
		TotalPages: 10,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestTrackSite creates a test url-type link.
func NewTestTrackSite(t testing.TB, ownerEmail string) *model.File {
	t.Helper()
	file := NewTestFile(t, ownerEmail)
	file.Name = "Test Site"
	file.Type = model.LinkTypeURL
	file.MimeType = ""
	file.TotalPages = 0
	file.DestinationURL = "https://example.com/landing"
	return file
}

// NewTestAccessLog creates a test session record with sensible defaults.
func NewTestAccessLog(t testing.TB, fileID string) *model.AccessLog {
	t.Helper()
	now := time.Now().UTC()
	return &model.AccessLog{
		ID:                   fmt.Sprintf("rec-%d", now.UnixNano()),
		FileID:               fileID,
		SessionID:            fmt.Sprintf("sess-%d", now.UnixNano()),
		ViewerEmail:          "viewer@example.com",
		IPAddress:            "203.0.113.10",
		LinkType:             model.LinkTypeFile,
		AccessedAt:           now,
		TotalDurationSeconds: 120,
		TotalPages:           10,
		MaxPageReached:       8,
		CompletionPercentage: 80,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, ownerEmail string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            fmt.Sprintf("key-%d", now.UnixNano()),
		OwnerEmail:    ownerEmail,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:     "pk_test_",
		Scopes:        []string{model.ScopeRead, model.ScopeTrack},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, ownerEmail string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, ownerEmail)
	key.RateLimitTier = tier
	return key
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
