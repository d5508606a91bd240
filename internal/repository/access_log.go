package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pagepulse/pagepulse/internal/model"
)

// Common errors for access log repository operations.
var (
	ErrAccessLogNotFound = errors.New("access log not found")
)

// accessLogColumns is the canonical select list; scanAccessLog must stay in
// the same order.
const accessLogColumns = `
	id, file_id, session_id, viewer_email, viewer_name, ip_address, link_type,
	accessed_at, session_end_at, total_duration_seconds,
	total_pages, max_page_reached, completion_percentage, pages_time, segments_time,
	video_duration_seconds, video_completion_percent,
	downloaded, is_downloaded, download_count,
	is_return_visit, return_visit_count,
	country, city, region, device_type, browser, os, language,
	traffic_source, referrer_source, access_method,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	owner_email, file_name, file_type,
	created_at, updated_at
`

// UpsertSession inserts a session row or, when the session_id already
// exists, replaces its mutable telemetry fields in place. Viewer
// instrumentation re-sends the whole session state on every progress beat,
// so last-write-wins per session is the intended semantics.
func (r *Repository) UpsertSession(ctx context.Context, rec *model.AccessLog) error {
	pagesJSON, segmentsJSON, err := marshalTimeMaps(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO access_logs (
			id, file_id, session_id, viewer_email, viewer_name, ip_address, link_type,
			accessed_at, session_end_at, total_duration_seconds,
			total_pages, max_page_reached, completion_percentage, pages_time, segments_time,
			video_duration_seconds, video_completion_percent,
			downloaded, is_downloaded, download_count,
			is_return_visit, return_visit_count,
			country, city, region, device_type, browser, os, language,
			traffic_source, referrer_source, access_method,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			owner_email, file_name, file_type,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
			NOW(), NOW()
		)
		ON CONFLICT (session_id) DO UPDATE SET
			viewer_email = EXCLUDED.viewer_email,
			viewer_name = EXCLUDED.viewer_name,
			session_end_at = EXCLUDED.session_end_at,
			total_duration_seconds = EXCLUDED.total_duration_seconds,
			total_pages = EXCLUDED.total_pages,
			max_page_reached = EXCLUDED.max_page_reached,
			completion_percentage = EXCLUDED.completion_percentage,
			pages_time = EXCLUDED.pages_time,
			segments_time = EXCLUDED.segments_time,
			video_duration_seconds = EXCLUDED.video_duration_seconds,
			video_completion_percent = EXCLUDED.video_completion_percent,
			downloaded = EXCLUDED.downloaded,
			is_downloaded = EXCLUDED.is_downloaded,
			download_count = EXCLUDED.download_count,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.FileID,
		rec.SessionID,
		nullableString(rec.ViewerEmail),
		nullableString(rec.ViewerName),
		nullableString(rec.IPAddress),
		string(rec.Type()),
		rec.AccessedAt,
		rec.SessionEndAt,
		rec.TotalDurationSeconds,
		rec.TotalPages,
		rec.MaxPageReached,
		rec.CompletionPercentage,
		pagesJSON,
		segmentsJSON,
		rec.VideoDurationSeconds,
		rec.VideoCompletionPercent,
		rec.Downloaded,
		rec.IsDownloaded,
		rec.DownloadCount,
		rec.IsReturnVisit,
		rec.ReturnVisitCount,
		nullableString(rec.Country),
		nullableString(rec.City),
		nullableString(rec.Region),
		nullableString(rec.DeviceType),
		nullableString(rec.Browser),
		nullableString(rec.OS),
		nullableString(rec.Language),
		nullableString(rec.TrafficSource),
		nullableString(rec.ReferrerSource),
		nullableString(string(rec.AccessMethod)),
		nullableString(rec.UTMSource),
		nullableString(rec.UTMMedium),
		nullableString(rec.UTMCampaign),
		nullableString(rec.UTMTerm),
		nullableString(rec.UTMContent),
		nullableString(rec.OwnerEmail),
		nullableString(rec.FileName),
		nullableString(rec.FileType),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

// BulkInsert inserts multiple session rows with idempotency via
// ON CONFLICT DO NOTHING. Used by backfill imports, not the live pipeline.
func (r *Repository) BulkInsert(ctx context.Context, records []*model.AccessLog) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO access_logs (
			id, file_id, session_id, viewer_email, ip_address, link_type,
			accessed_at, total_duration_seconds, total_pages, max_page_reached,
			completion_percentage, downloaded, is_return_visit, return_visit_count,
			owner_email, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		ON CONFLICT (session_id) DO NOTHING
	`

	for _, rec := range records {
		batch.Queue(query,
			rec.ID,
			rec.FileID,
			rec.SessionID,
			nullableString(rec.ViewerEmail),
			nullableString(rec.IPAddress),
			string(rec.Type()),
			rec.AccessedAt,
			rec.TotalDurationSeconds,
			rec.TotalPages,
			rec.MaxPageReached,
			rec.CompletionPercentage,
			rec.Downloaded,
			rec.IsReturnVisit,
			rec.ReturnVisitCount,
			nullableString(rec.OwnerEmail),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(records); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert record %d: %w", i, err)
		}
	}

	return nil
}

// GetSessionByID retrieves a single session row.
func (r *Repository) GetSessionByID(ctx context.Context, sessionID string) (*model.AccessLog, error) {
	query := `SELECT ` + accessLogColumns + ` FROM access_logs WHERE session_id = $1`

	rec, err := scanAccessLog(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccessLogNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return rec, nil
}

// ListByFile retrieves all sessions against one file within [from, to),
// ordered by access time.
func (r *Repository) ListByFile(ctx context.Context, fileID string, from, to time.Time) ([]*model.AccessLog, error) {
	query := `
		SELECT ` + accessLogColumns + `
		FROM access_logs
		WHERE file_id = $1 AND accessed_at >= $2 AND accessed_at < $3
		ORDER BY accessed_at ASC
	`

	return r.queryAccessLogs(ctx, query, fileID, from, to)
}

// ListByOwner retrieves all sessions across an owner's files within
// [from, to), ordered by access time. Feeds the dashboard and contact
// rebuilds.
func (r *Repository) ListByOwner(ctx context.Context, ownerEmail string, from, to time.Time) ([]*model.AccessLog, error) {
	query := `
		SELECT ` + accessLogColumns + `
		FROM access_logs
		WHERE owner_email = $1 AND accessed_at >= $2 AND accessed_at < $3
		ORDER BY accessed_at ASC
	`

	return r.queryAccessLogs(ctx, query, ownerEmail, from, to)
}

// CountPriorSessions counts how many earlier sessions the same viewer had
// against the same file. Identity follows the grouping chain: email when
// present, otherwise IP address. Anonymous viewers with neither always
// count zero. The result stamps the return fields at insert time so they
// stay stable under read-time date filters.
func (r *Repository) CountPriorSessions(ctx context.Context, rec *model.AccessLog) (int, error) {
	email := model.NormalizeEmail(rec.ViewerEmail)

	var query string
	var identity string
	switch {
	case email != "":
		query = `
			SELECT COUNT(*)
			FROM access_logs
			WHERE file_id = $1 AND LOWER(viewer_email) = $2
			  AND accessed_at < $3 AND session_id <> $4
		`
		identity = email
	case rec.IPAddress != "":
		query = `
			SELECT COUNT(*)
			FROM access_logs
			WHERE file_id = $1 AND viewer_email IS NULL AND ip_address = $2
			  AND accessed_at < $3 AND session_id <> $4
		`
		identity = rec.IPAddress
	default:
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, query, rec.FileID, identity, rec.AccessedAt, rec.SessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prior sessions: %w", err)
	}

	return count, nil
}

// GetLinkClickStats aggregates the click history of a track-site link into
// the inputs of its performance score. Clickers are keyed by the viewer
// identity chain (email, then IP, then session).
func (r *Repository) GetLinkClickStats(ctx context.Context, fileID string, now time.Time) (*model.LinkClickStats, error) {
	query := `
		WITH clicks AS (
			SELECT COALESCE(NULLIF(LOWER(viewer_email), ''), NULLIF(ip_address, ''), session_id) AS clicker,
			       accessed_at
			FROM access_logs
			WHERE file_id = $1
		),
		per_clicker AS (
			SELECT clicker, COUNT(*) AS n FROM clicks GROUP BY clicker
		)
		SELECT
			(SELECT COUNT(*) FROM clicks),
			(SELECT COUNT(*) FROM per_clicker),
			(SELECT COUNT(*) FROM per_clicker WHERE n > 1),
			(SELECT MAX(accessed_at) FROM clicks),
			(SELECT COUNT(*) FROM clicks WHERE accessed_at >= $2 AND accessed_at < $3),
			(SELECT COUNT(*) FROM clicks WHERE accessed_at >= $4 AND accessed_at < $2)
	`

	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)

	var stats model.LinkClickStats
	var lastClick *time.Time
	err := r.pool.QueryRow(ctx, query, fileID, weekAgo, now, twoWeeksAgo).Scan(
		&stats.TotalClicks,
		&stats.UniqueClickers,
		&stats.ReturnClickers,
		&lastClick,
		&stats.ClicksThisWeek,
		&stats.ClicksLastWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get link click stats: %w", err)
	}

	if lastClick != nil {
		stats.DaysSinceLastClick = int(now.Sub(*lastClick).Hours() / 24)
	}

	return &stats, nil
}

// TryMarkContactFolded flips the fold guard on a session row. Returns true
// exactly once per session: repeated close events for the same session must
// not fold the score into the contact average twice.
func (r *Repository) TryMarkContactFolded(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE access_logs
		SET contact_folded = TRUE
		WHERE session_id = $1 AND NOT contact_folded
	`

	result, err := r.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to mark contact folded: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *Repository) queryAccessLogs(ctx context.Context, query string, args ...any) ([]*model.AccessLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access logs: %w", err)
	}
	defer rows.Close()

	var records []*model.AccessLog
	for rows.Next() {
		rec, err := scanAccessLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access log: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access logs: %w", err)
	}

	return records, nil
}

// scanAccessLog scans one row in accessLogColumns order.
func scanAccessLog(row pgx.Row) (*model.AccessLog, error) {
	var rec model.AccessLog
	var viewerEmail, viewerName, ipAddress *string
	var linkType string
	var pagesJSON, segmentsJSON []byte
	var country, city, region, deviceType, browser, osName, language *string
	var trafficSource, referrerSource, accessMethod *string
	var utmSource, utmMedium, utmCampaign, utmTerm, utmContent *string
	var ownerEmail, fileName, fileType *string

	err := row.Scan(
		&rec.ID,
		&rec.FileID,
		&rec.SessionID,
		&viewerEmail,
		&viewerName,
		&ipAddress,
		&linkType,
		&rec.AccessedAt,
		&rec.SessionEndAt,
		&rec.TotalDurationSeconds,
		&rec.TotalPages,
		&rec.MaxPageReached,
		&rec.CompletionPercentage,
		&pagesJSON,
		&segmentsJSON,
		&rec.VideoDurationSeconds,
		&rec.VideoCompletionPercent,
		&rec.Downloaded,
		&rec.IsDownloaded,
		&rec.DownloadCount,
		&rec.IsReturnVisit,
		&rec.ReturnVisitCount,
		&country,
		&city,
		&region,
		&deviceType,
		&browser,
		&osName,
		&language,
		&trafficSource,
		&referrerSource,
		&accessMethod,
		&utmSource,
		&utmMedium,
		&utmCampaign,
		&utmTerm,
		&utmContent,
		&ownerEmail,
		&fileName,
		&fileType,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ViewerEmail = derefString(viewerEmail)
	rec.ViewerName = derefString(viewerName)
	rec.IPAddress = derefString(ipAddress)
	rec.LinkType = model.LinkType(linkType)
	rec.Country = derefString(country)
	rec.City = derefString(city)
	rec.Region = derefString(region)
	rec.DeviceType = derefString(deviceType)
	rec.Browser = derefString(browser)
	rec.OS = derefString(osName)
	rec.Language = derefString(language)
	rec.TrafficSource = derefString(trafficSource)
	rec.ReferrerSource = derefString(referrerSource)
	rec.AccessMethod = model.AccessMethod(derefString(accessMethod))
	rec.UTMSource = derefString(utmSource)
	rec.UTMMedium = derefString(utmMedium)
	rec.UTMCampaign = derefString(utmCampaign)
	rec.UTMTerm = derefString(utmTerm)
	rec.UTMContent = derefString(utmContent)
	rec.OwnerEmail = derefString(ownerEmail)
	rec.FileName = derefString(fileName)
	rec.FileType = derefString(fileType)

	// Parse JSONB telemetry maps
	if len(pagesJSON) > 0 {
		_ = json.Unmarshal(pagesJSON, &rec.PagesTime)
	}
	if len(segmentsJSON) > 0 {
		_ = json.Unmarshal(segmentsJSON, &rec.SegmentsTime)
	}

	return &rec, nil
}

func marshalTimeMaps(rec *model.AccessLog) ([]byte, []byte, error) {
	var pagesJSON, segmentsJSON []byte
	var err error

	if len(rec.PagesTime) > 0 {
		pagesJSON, err = json.Marshal(rec.PagesTime)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal pages time: %w", err)
		}
	}
	if len(rec.SegmentsTime) > 0 {
		segmentsJSON, err = json.Marshal(rec.SegmentsTime)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal segments time: %w", err)
		}
	}

	return pagesJSON, segmentsJSON, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
