package middleware

import (
	"strings"
	"testing"
	"time"
)

func TestValidateResourceID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{
			name:    "valid ulid-style id",
			id:      "01HQZX3V9W8J2K4M6N8P0R2T4V",
			wantErr: nil,
		},
		{
			name:    "valid with hyphen",
			id:      "file-123",
			wantErr: nil,
		},
		{
			name:    "valid with underscore",
			id:      "rec_abc",
			wantErr: nil,
		},
		{
			name:    "empty",
			id:      "",
			wantErr: ErrResourceIDEmpty,
		},
		{
			name:    "too long",
			id:      strings.Repeat("a", 200),
			wantErr: ErrResourceIDTooLong,
		},
		{
			name:    "invalid characters",
			id:      "abc!@#",
			wantErr: ErrResourceIDInvalid,
		},
		{
			name:    "path traversal",
			id:      "../etc/passwd",
			wantErr: ErrResourceIDInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceID(tt.id)
			if err != tt.wantErr {
				t.Errorf("ValidateResourceID(%q) = %v, want %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		wantErr  error
	}{
		{
			name:     "valid name",
			fileName: "Q3 Pitch Deck.pdf",
			wantErr:  nil,
		},
		{
			name:     "empty",
			fileName: "",
			wantErr:  ErrFileNameEmpty,
		},
		{
			name:     "whitespace only",
			fileName: "   ",
			wantErr:  ErrFileNameEmpty,
		},
		{
			name:     "too long",
			fileName: strings.Repeat("a", 300),
			wantErr:  ErrFileNameTooLong,
		},
		{
			name:     "control characters",
			fileName: "deck\x00.pdf",
			wantErr:  ErrFileNameInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.fileName)
			if err != tt.wantErr {
				t.Errorf("ValidateFileName(%q) = %v, want %v", tt.fileName, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{
			name:    "empty is valid (optional)",
			email:   "",
			wantErr: nil,
		},
		{
			name:    "valid email",
			email:   "jane@acme.com",
			wantErr: nil,
		},
		{
			name:    "valid subdomain",
			email:   "jane@mail.acme.co.uk",
			wantErr: nil,
		},
		{
			name:    "missing at sign",
			email:   "janeacme.com",
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "missing domain",
			email:   "jane@",
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "missing local part",
			email:   "@acme.com",
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "no dot in domain",
			email:   "jane@localhost",
			wantErr: ErrEmailInvalid,
		},
		{
			name:    "too long",
			email:   strings.Repeat("a", 320) + "@acme.com",
			wantErr: ErrEmailTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if err != tt.wantErr {
				t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimeRange(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    time.Time
		to      time.Time
		wantErr error
	}{
		{
			name:    "valid week window",
			from:    base,
			to:      base.Add(7 * 24 * time.Hour),
			wantErr: nil,
		},
		{
			name:    "zero-length window is valid",
			from:    base,
			to:      base,
			wantErr: nil,
		},
		{
			name:    "inverted",
			from:    base,
			to:      base.Add(-time.Hour),
			wantErr: ErrTimeRangeInverted,
		},
		{
			name:    "exactly at cap",
			from:    base,
			to:      base.Add(MaxAnalyticsWindowDays * 24 * time.Hour),
			wantErr: nil,
		},
		{
			name:    "too large",
			from:    base,
			to:      base.Add((MaxAnalyticsWindowDays + 1) * 24 * time.Hour),
			wantErr: ErrTimeRangeTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeRange(tt.from, tt.to)
			if err != tt.wantErr {
				t.Errorf("ValidateTimeRange(%v, %v) = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}
