package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagepulse/pagepulse/internal/aggregate"
	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/middleware"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
)

const (
	defaultContactLimit = 50
	maxContactLimit     = 500

	// contactDriftTolerance is how far a stored average may sit from the
	// rebuilt one before the row is rewritten. Sub-point float noise from
	// the SQL running mean is not worth a write.
	contactDriftTolerance = 0.5
)

// ContactStore defines the persistence surface the contact endpoints need.
type ContactStore interface {
	ListByOwner(ctx context.Context, ownerEmail string, from, to time.Time) ([]*model.AccessLog, error)
	ListFilesByOwner(ctx context.Context, ownerEmail string) ([]*model.File, error)
	ListContactsByOwner(ctx context.Context, ownerEmail string, limit int) ([]*model.Contact, error)
	GetContactByEmail(ctx context.Context, ownerEmail, email string) (*model.Contact, error)
	ReplaceContact(ctx context.Context, contact *model.Contact) error
}

// ContactHandler handles the contact intelligence endpoints.
//
// Reads never trust the stored contact rows: aggregates are rebuilt from raw
// session records on every request. The incremental rows written on session
// close are a display cache; when a stored row has drifted from the rebuild
// it is overwritten in place.
type ContactHandler struct {
	store  ContactStore
	logger *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(store ContactStore, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		store:  store,
		logger: logger.With("component", "handler.contacts"),
	}
}

// ContactListResponse represents the contact list response.
type ContactListResponse struct {
	Contacts []*model.Contact `json:"contacts"`
	Total    int              `json:"total"`
}

// ListContacts handles GET /api/v1/contacts.
//
// Returns the caller's contacts ordered by most recent activity.
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	limit := defaultContactLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxContactLimit {
		limit = maxContactLimit
	}

	contacts, err := h.rebuildContacts(r.Context(), authCtx.OwnerEmail)
	if err != nil {
		h.logger.Error("failed to rebuild contacts", "owner_email", authCtx.OwnerEmail, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list contacts")
		return
	}

	h.reconcileStored(r.Context(), authCtx.OwnerEmail, contacts)

	// Optional hot-lead filter
	if r.URL.Query().Get("hot") == "true" {
		hot := contacts[:0]
		for _, c := range contacts {
			if c.IsHotLead {
				hot = append(hot, c)
			}
		}
		contacts = hot
	}

	if len(contacts) > limit {
		contacts = contacts[:limit]
	}

	writeJSON(w, http.StatusOK, ContactListResponse{
		Contacts: contacts,
		Total:    len(contacts),
	})
}

// GetContact handles GET /api/v1/contacts/{email}.
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	email := chi.URLParam(r, "email")
	if err := middleware.ValidateEmail(email); err != nil || email == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid contact email")
		return
	}

	contacts, err := h.rebuildContacts(r.Context(), authCtx.OwnerEmail)
	if err != nil {
		h.logger.Error("failed to rebuild contacts", "owner_email", authCtx.OwnerEmail, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch contact")
		return
	}

	target := model.NormalizeEmail(email)
	var contact *model.Contact
	for _, c := range contacts {
		if c.Email == target {
			contact = c
			break
		}
	}
	if contact == nil {
		h.writeError(w, http.StatusNotFound, "CONTACT_NOT_FOUND", "Contact not found")
		return
	}

	stored, err := h.store.GetContactByEmail(r.Context(), authCtx.OwnerEmail, target)
	if err != nil && !errors.Is(err, repository.ErrContactNotFound) {
		h.logger.Warn("failed to load stored contact", "owner_email", authCtx.OwnerEmail, "error", err)
	} else if contactDrifted(stored, contact) {
		h.replaceStored(r.Context(), contact)
	}

	writeJSON(w, http.StatusOK, contact)
}

// rebuildContacts recomputes the owner's contact aggregates from raw session
// records. Stored scores are never served.
func (h *ContactHandler) rebuildContacts(ctx context.Context, ownerEmail string) ([]*model.Contact, error) {
	records, err := h.store.ListByOwner(ctx, ownerEmail, time.Time{}, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	files, err := h.store.ListFilesByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	metas := make(map[string]*model.File, len(files))
	for _, f := range files {
		metas[f.ID] = f
	}

	contacts := aggregate.Contacts(records, metas)
	for _, c := range contacts {
		c.OwnerEmail = ownerEmail
	}
	return contacts, nil
}

// reconcileStored overwrites stored contact rows that no longer match the
// rebuilt aggregates. Best effort: a failed write only means the next read
// repeats it.
func (h *ContactHandler) reconcileStored(ctx context.Context, ownerEmail string, rebuilt []*model.Contact) {
	stored, err := h.store.ListContactsByOwner(ctx, ownerEmail, maxContactLimit)
	if err != nil {
		h.logger.Warn("failed to load stored contacts", "owner_email", ownerEmail, "error", err)
		return
	}

	byEmail := make(map[string]*model.Contact, len(stored))
	for _, c := range stored {
		byEmail[c.Email] = c
	}

	for _, c := range rebuilt {
		if contactDrifted(byEmail[c.Email], c) {
			h.replaceStored(ctx, c)
		}
	}
}

func (h *ContactHandler) replaceStored(ctx context.Context, contact *model.Contact) {
	if err := h.store.ReplaceContact(ctx, contact); err != nil {
		h.logger.Warn("failed to reconcile contact row",
			"owner_email", contact.OwnerEmail,
			"error", err,
		)
	}
}

// contactDrifted reports whether a stored row disagrees with the rebuilt
// aggregate. The incremental fold averages per-session scores; the rebuild
// scores merged per-file rollups. The two diverge once a viewer has several
// sessions against one file.
func contactDrifted(stored, rebuilt *model.Contact) bool {
	if stored == nil {
		return true
	}
	return stored.TotalViews != rebuilt.TotalViews ||
		stored.EngagementCount != rebuilt.EngagementCount ||
		stored.HasDownloaded != rebuilt.HasDownloaded ||
		stored.IsHotLead != rebuilt.IsHotLead ||
		math.Abs(stored.AvgEngagement-rebuilt.AvgEngagement) > contactDriftTolerance
}

func (h *ContactHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
