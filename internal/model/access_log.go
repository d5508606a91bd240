// Package model defines domain entities for the application.
package model

import "time"

// LinkType classifies what a share link points at.
type LinkType string

const (
	// LinkTypeFile is a hosted document, image, video, or audio file.
	LinkTypeFile LinkType = "file"
	// LinkTypeURL is a "track site" link that redirects to an external URL.
	LinkTypeURL LinkType = "url"
)

// AccessMethod describes how the viewer reached the link.
type AccessMethod string

const (
	AccessMethodQRScan      AccessMethod = "qr_scan"
	AccessMethodDirectClick AccessMethod = "direct_click"
)

// SegmentCount is the number of fixed equal-duration buckets a video/audio
// timeline is divided into for depth tracking.
const SegmentCount = 10

// AccessLog represents a single viewer session against one link.
// One row is created at session start and updated in place as the viewer
// instrumentation reports progress; it is the raw input every engagement
// score is recomputed from.
type AccessLog struct {
	ID        string `json:"id"` // ULID (time-sortable)
	FileID    string `json:"file_id"`
	SessionID string `json:"session_id"` // Viewer-side session identifier

	// Viewer identity (all optional; grouping falls back to IP, then session)
	ViewerEmail string `json:"viewer_email,omitempty"`
	ViewerName  string `json:"viewer_name,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`

	// Link classification; empty is treated as LinkTypeFile.
	LinkType LinkType `json:"link_type,omitempty"`

	// Timing
	AccessedAt           time.Time  `json:"accessed_at"` // Session start (UTC)
	SessionEndAt         *time.Time `json:"session_end_at,omitempty"`
	TotalDurationSeconds int        `json:"total_duration_seconds"`

	// Depth / progress
	TotalPages           int             `json:"total_pages"` // 0 => not a paginated document
	MaxPageReached       int             `json:"max_page_reached"`
	CompletionPercentage float64         `json:"completion_percentage"` // 0-100
	PagesTime            map[int]float64 `json:"pages_time_data,omitempty"`    // page number -> seconds
	SegmentsTime         map[int]float64 `json:"segments_time_data,omitempty"` // segment 0-9 -> seconds

	// Video-specific
	VideoDurationSeconds   int     `json:"video_duration_seconds,omitempty"`
	VideoCompletionPercent float64 `json:"video_completion_percent,omitempty"`

	// Actions. Downloaded and IsDownloaded are both honored (logical OR);
	// older viewer builds report one, newer builds the other.
	Downloaded    bool `json:"downloaded"`
	IsDownloaded  bool `json:"is_downloaded"`
	DownloadCount int  `json:"download_count"`

	// Return tracking. ReturnVisitCount counts PRIOR sessions for this
	// viewer/file pair and is fixed at insert time, independent of any
	// read-time date filter.
	IsReturnVisit    bool `json:"is_return_visit"`
	ReturnVisitCount int  `json:"return_visit_count"`

	// Provenance
	Country        string       `json:"country,omitempty"`
	City           string       `json:"city,omitempty"`
	Region         string       `json:"region,omitempty"`
	DeviceType     string       `json:"device_type,omitempty"`
	Browser        string       `json:"browser,omitempty"`
	OS             string       `json:"os,omitempty"`
	Language       string       `json:"language,omitempty"`
	TrafficSource  string       `json:"traffic_source,omitempty"`
	ReferrerSource string       `json:"referrer_source,omitempty"`
	AccessMethod   AccessMethod `json:"access_method,omitempty"`
	UTMSource      string       `json:"utm_source,omitempty"`
	UTMMedium      string       `json:"utm_medium,omitempty"`
	UTMCampaign    string       `json:"utm_campaign,omitempty"`
	UTMTerm        string       `json:"utm_term,omitempty"`
	UTMContent     string       `json:"utm_content,omitempty"`

	// Denormalized owner/file context
	OwnerEmail string `json:"owner_email,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	FileType   string `json:"file_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Type returns the link classification, defaulting to LinkTypeFile when the
// record carries none.
func (a *AccessLog) Type() LinkType {
	if a.LinkType == LinkTypeURL {
		return LinkTypeURL
	}
	return LinkTypeFile
}

// HasDownload reports whether the viewer downloaded the content in this
// session, honoring all three download signals.
func (a *AccessLog) HasDownload() bool {
	return a.Downloaded || a.IsDownloaded || a.DownloadCount > 0
}

// Ended reports whether the session has been closed by the viewer.
func (a *AccessLog) Ended() bool {
	return a.SessionEndAt != nil
}
