// Package middleware provides HTTP middleware for the PagePulse API.
package middleware

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Validation limits.
const (
	// MaxResourceIDLength is the maximum length for file and record identifiers.
	MaxResourceIDLength = 128

	// MaxFileNameLength is the maximum length for a file display name.
	MaxFileNameLength = 255

	// MaxEmailLength is the maximum length for an email address (RFC 3696).
	MaxEmailLength = 320

	// MaxAnalyticsWindowDays caps the size of an analytics query window.
	// Analytics recompute scores from raw rows on every read, so the
	// window bounds how much a single request can scan.
	MaxAnalyticsWindowDays = 90
)

// Validation errors.
var (
	ErrResourceIDEmpty    = errors.New("resource id is empty")
	ErrResourceIDTooLong  = errors.New("resource id exceeds maximum length")
	ErrResourceIDInvalid  = errors.New("resource id contains invalid characters")
	ErrFileNameEmpty      = errors.New("file name is empty")
	ErrFileNameTooLong    = errors.New("file name exceeds maximum length")
	ErrFileNameInvalid    = errors.New("file name contains control characters")
	ErrEmailTooLong       = errors.New("email exceeds maximum length")
	ErrEmailInvalid       = errors.New("email is invalid")
	ErrTimeRangeInverted  = errors.New("time range end precedes start")
	ErrTimeRangeTooLarge  = errors.New("time range exceeds maximum window")
)

// validResourceIDPattern matches valid identifier characters.
// Allowed: a-z, A-Z, 0-9, hyphen, underscore
var validResourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateResourceID validates a file or record identifier from a URL path.
func ValidateResourceID(id string) error {
	if id == "" {
		return ErrResourceIDEmpty
	}

	if len(id) > MaxResourceIDLength {
		return ErrResourceIDTooLong
	}

	if !validResourceIDPattern.MatchString(id) {
		return ErrResourceIDInvalid
	}

	return nil
}

// ValidateFileName validates a file display name for create/update requests.
func ValidateFileName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrFileNameEmpty
	}

	if len(name) > MaxFileNameLength {
		return ErrFileNameTooLong
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrFileNameInvalid
		}
	}

	return nil
}

// ValidateEmail performs a cheap structural check on an email address.
// Full RFC validation is not attempted; the goal is rejecting obvious garbage
// before it reaches storage.
func ValidateEmail(email string) error {
	if email == "" {
		return nil // Optional in most requests
	}

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrEmailInvalid
	}

	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.Contains(domain, "@") {
		return ErrEmailInvalid
	}

	return nil
}

// ValidateTimeRange validates an analytics query window.
func ValidateTimeRange(from, to time.Time) error {
	if to.Before(from) {
		return ErrTimeRangeInverted
	}

	if to.Sub(from) > MaxAnalyticsWindowDays*24*time.Hour {
		return ErrTimeRangeTooLarge
	}

	return nil
}
