// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Contact is the per-viewer aggregate maintained across all files and
// sessions. It is derived state: every field can be rebuilt from the
// AccessLog history, and the stored row is only a running cache kept
// current by the session-close fold.
type Contact struct {
	// OwnerEmail scopes the contact to the account whose files they viewed.
	OwnerEmail string `json:"owner_email,omitempty"`

	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"` // Parsed from the email domain

	TotalViews       int     `json:"total_views"`
	TotalTimeSeconds int     `json:"total_time_seconds"`
	AvgEngagement    float64 `json:"avg_engagement"`
	// EngagementCount is the number of session scores folded into
	// AvgEngagement; the denominator of the running mean.
	EngagementCount int `json:"engagement_count"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	FilesViewed   []string `json:"files_viewed"`
	HasDownloaded bool     `json:"has_downloaded"`
	IsHotLead     bool     `json:"is_hot_lead"`
}

// personalEmailProviders are consumer mail domains that never identify a
// company.
var personalEmailProviders = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"live.com":       true,
	"msn.com":        true,
	"protonmail.com": true,
	"proton.me":      true,
	"mail.com":       true,
	"zoho.com":       true,
	"gmx.com":        true,
	"yandex.com":     true,
}

// CompanyFromEmail derives a company name from an email address domain.
// Returns "" for personal-provider addresses and malformed input.
func CompanyFromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}

	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" || personalEmailProviders[domain] {
		return ""
	}

	// First label of the domain, title-cased: "acme.example.co" -> "Acme"
	label := domain
	if dot := strings.Index(domain, "."); dot > 0 {
		label = domain[:dot]
	}
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// NormalizeEmail lowercases and trims an email for use as a contact key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
