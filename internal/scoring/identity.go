package scoring

import "github.com/pagepulse/pagepulse/internal/model"

// ViewerKey derives the grouping identity for a session record. The
// precedence is fixed: viewer email, then IP address, then session ID,
// then the record's own ID. Every aggregation path must go through this
// function; ad-hoc identity derivation is how duplicate-viewer counts
// drift between endpoints.
func ViewerKey(rec *model.AccessLog) string {
	if rec == nil {
		return ""
	}
	if email := model.NormalizeEmail(rec.ViewerEmail); email != "" {
		return email
	}
	if rec.IPAddress != "" {
		return rec.IPAddress
	}
	if rec.SessionID != "" {
		return rec.SessionID
	}
	return rec.ID
}
