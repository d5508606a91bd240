// Package model defines domain entities for the application.
package model

import "time"

// File represents shared content metadata: either a hosted file or a
// track-site link wrapping an external URL. Read-only input to scoring.
type File struct {
	ID         string   `json:"id"`
	OwnerEmail string   `json:"owner_email"`
	Name       string   `json:"name"`
	Type       LinkType `json:"type"`
	MimeType   string   `json:"mime_type,omitempty"`

	// Documents
	TotalPages int `json:"total_pages,omitempty"`

	// Video/audio
	VideoDurationSeconds int `json:"video_duration_seconds,omitempty"`

	// Track sites
	DestinationURL string `json:"destination_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTrackSite reports whether the file is an external-URL link.
func (f *File) IsTrackSite() bool {
	return f.Type == LinkTypeURL
}
