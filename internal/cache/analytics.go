package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

// Cache key prefixes and TTLs.
const (
	fileAnalyticsKeyPrefix   = "analytics:file:"
	linkPerformanceKeyPrefix = "analytics:link:"
	dashboardKeyPrefix       = "analytics:dashboard:"
	fileNegCacheKeyPrefix    = "file:neg:"

	// AnalyticsTTL is the TTL for computed analytics snapshots. Short on
	// purpose: scores go stale as new session events land.
	AnalyticsTTL = 60 * time.Second

	// LinkPerformanceTTL is the TTL for track-site performance snapshots.
	LinkPerformanceTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetFileAnalytics retrieves a cached analytics snapshot for a file window.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetFileAnalytics(ctx context.Context, fileID string, from, to time.Time) (*model.FileAnalytics, error) {
	key := fileAnalyticsKey(fileID, from, to)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, ErrCacheMiss
	}

	var analytics model.FileAnalytics
	if err := json.Unmarshal(data, &analytics); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}

	return &analytics, nil
}

// SetFileAnalytics caches a computed analytics snapshot.
func (c *Cache) SetFileAnalytics(ctx context.Context, fileID string, from, to time.Time, analytics *model.FileAnalytics) error {
	key := fileAnalyticsKey(fileID, from, to)

	data, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("marshal file analytics: %w", err)
	}

	if err := c.client.Set(ctx, key, data, AnalyticsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache file analytics: %w", err)
	}

	return nil
}

// GetLinkPerformance retrieves a cached track-site performance snapshot.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLinkPerformance(ctx context.Context, fileID string) (*model.LinkPerformance, error) {
	key := linkPerformanceKeyPrefix + fileID

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, ErrCacheMiss
	}

	var perf model.LinkPerformance
	if err := json.Unmarshal(data, &perf); err != nil {
		return nil, ErrCacheMiss
	}

	return &perf, nil
}

// SetLinkPerformance caches a track-site performance snapshot.
func (c *Cache) SetLinkPerformance(ctx context.Context, fileID string, perf *model.LinkPerformance) error {
	key := linkPerformanceKeyPrefix + fileID

	data, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("marshal link performance: %w", err)
	}

	if err := c.client.Set(ctx, key, data, LinkPerformanceTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache link performance: %w", err)
	}

	return nil
}

// GetDashboard retrieves a cached dashboard snapshot for an owner window.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetDashboard(ctx context.Context, ownerEmail string, from, to time.Time) (*model.DashboardSummary, error) {
	key := dashboardKey(ownerEmail, from, to)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, ErrCacheMiss
	}

	var ds model.DashboardSummary
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, ErrCacheMiss
	}

	return &ds, nil
}

// SetDashboard caches a dashboard snapshot.
func (c *Cache) SetDashboard(ctx context.Context, ownerEmail string, from, to time.Time, ds *model.DashboardSummary) error {
	key := dashboardKey(ownerEmail, from, to)

	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}

	if err := c.client.Set(ctx, key, data, AnalyticsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache dashboard: %w", err)
	}

	return nil
}

// IsFileNegativelyCached checks if a file ID is in negative cache.
func (c *Cache) IsFileNegativelyCached(ctx context.Context, fileID string) (bool, error) {
	key := fileNegCacheKeyPrefix + fileID

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetFileNegativeCache marks a file ID as not found.
func (c *Cache) SetFileNegativeCache(ctx context.Context, fileID string) error {
	key := fileNegCacheKeyPrefix + fileID

	err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// DeleteFileNegativeCache clears a negative cache entry after the file is
// created.
func (c *Cache) DeleteFileNegativeCache(ctx context.Context, fileID string) error {
	return c.client.Del(ctx, fileNegCacheKeyPrefix+fileID).Err()
}

// fileAnalyticsKey builds the snapshot key for a file query window.
func fileAnalyticsKey(fileID string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", fileAnalyticsKeyPrefix, fileID, from.Unix(), to.Unix())
}

// dashboardKey builds the snapshot key for an owner dashboard window.
func dashboardKey(ownerEmail string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", dashboardKeyPrefix, ownerEmail, from.Unix(), to.Unix())
}
