// Package model defines domain entities for the application.
package model

import "time"

// FileSummary is the aggregate engagement breakdown for a single file over
// a query window.
type FileSummary struct {
	Views          int     `json:"views"`
	UniqueViewers  int     `json:"unique_viewers"`
	AvgEngagement  float64 `json:"avg_engagement"`
	HotLeads       int     `json:"hot_leads"`
	WarmLeads      int     `json:"warm_leads"`
	ColdLeads      int     `json:"cold_leads"`
	AvgCompletion  float64 `json:"avg_completion"`
	AvgTimeSeconds float64 `json:"avg_time_seconds"`
	ReturnRate     float64 `json:"return_rate"` // Returning viewers / unique viewers * 100
	Downloads      int     `json:"downloads"`
}

// FileSummaryChange carries period-over-period percent deltas for a
// FileSummary. Values are rounded integer percentages; a previous-window
// value of zero with current growth reports 100.
type FileSummaryChange struct {
	ViewsChange         int `json:"views_change"`
	UniqueViewersChange int `json:"unique_viewers_change"`
	AvgEngagementChange int `json:"avg_engagement_change"`
	AvgTimeChange       int `json:"avg_time_change"`
	DownloadsChange     int `json:"downloads_change"`
}

// ViewerSession is one scored (viewer, file) group exposed by the
// analytics endpoints.
type ViewerSession struct {
	ViewerKey        string    `json:"viewer_key"`
	Email            string    `json:"email,omitempty"`
	Name             string    `json:"name,omitempty"`
	FileID           string    `json:"file_id"`
	LinkType         LinkType  `json:"link_type"`
	Sessions         int       `json:"sessions"`
	TotalTimeSeconds int       `json:"total_time_seconds"`
	MaxCompletion    float64   `json:"max_completion"`
	MaxPageReached   int       `json:"max_page_reached"`
	TotalPages       int       `json:"total_pages,omitempty"`
	Downloaded       bool      `json:"downloaded"`
	IsReturnVisitor  bool      `json:"is_return_visitor"`
	ReturnVisitCount int       `json:"return_visit_count"`
	EngagementScore  int       `json:"engagement_score"`
	Intent           string    `json:"intent"`
	IsHotLead        bool      `json:"is_hot_lead"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}

// FileAnalytics is the full per-file analytics response body.
type FileAnalytics struct {
	FileID      string            `json:"file_id"`
	Period      Period            `json:"period"`
	Summary     FileSummary       `json:"summary"`
	Change      FileSummaryChange `json:"change"`
	Viewers     []*ViewerSession  `json:"viewers"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Period is a half-open [from, to) query window.
type Period struct {
	From string `json:"from"` // ISO date
	To   string `json:"to"`   // ISO date
}

// LinkClickStats are the aggregate click statistics a track-site link is
// scored from.
type LinkClickStats struct {
	TotalClicks        int `json:"total_clicks"`
	UniqueClickers     int `json:"unique_clickers"`
	ReturnClickers     int `json:"return_clickers"`
	DaysSinceLastClick int `json:"days_since_last_click"`
	ClicksThisWeek     int `json:"clicks_this_week"`
	ClicksLastWeek     int `json:"clicks_last_week"`
}

// LinkPerformance is the link-level performance response for a track site.
type LinkPerformance struct {
	FileID      string         `json:"file_id"`
	Score       int            `json:"score"`
	Stats       LinkClickStats `json:"stats"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// DashboardSummary is the owner-wide rollup across all files in a window.
// KPI change fields use the strict percent-change convention: nil means
// the previous window was zero and no meaningful percentage exists.
type DashboardSummary struct {
	TotalViews       int                    `json:"total_views"`
	UniqueViewers    int                    `json:"unique_viewers"`
	AvgEngagement    float64                `json:"avg_engagement"` // Weighted by views across files
	HotLeads         int                    `json:"hot_leads"`
	TotalTimeSeconds int                    `json:"total_time_seconds"`
	Downloads        int                    `json:"downloads"`
	ViewsChange      *int                   `json:"views_change"`
	EngagementChange *int                   `json:"engagement_change"`
	HotLeadsChange   *int                   `json:"hot_leads_change"`
	PerFile          map[string]FileSummary `json:"per_file,omitempty"`
	GeneratedAt      time.Time              `json:"generated_at"`
}
