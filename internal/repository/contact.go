package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/pagepulse/pagepulse/internal/model"
)

// Common errors for contact repository operations.
var (
	ErrContactNotFound = errors.New("contact not found")
)

// ContactFold carries one closed session's contribution to a contact row.
type ContactFold struct {
	OwnerEmail  string
	Email       string
	Name        string
	Company     string
	FileID      string
	TimeSeconds int
	Score       float64
	Downloaded  bool
	SeenAt      time.Time
}

// FoldContactScore folds a session score into the contact's running
// aggregate in a single statement. The running-mean arithmetic and the hot
// flag both run inside the UPDATE so concurrent session closes for the same
// contact serialize on the row instead of racing a read-modify-write in Go.
// The hot thresholds mirror scoring.IsHotContact.
func (r *Repository) FoldContactScore(ctx context.Context, fold ContactFold) error {
	query := `
		INSERT INTO contacts (
			owner_email, email, name, company,
			total_views, total_time_seconds, avg_engagement, engagement_count,
			first_seen_at, last_seen_at, files_viewed, has_downloaded, is_hot_lead,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, 1, $5, $6, 1, $7, $7, ARRAY[$8]::text[], $9,
			($6 >= 70 OR ($6 >= 60 AND $9)), NOW(), NOW()
		)
		ON CONFLICT (owner_email, email) DO UPDATE SET
			name = COALESCE(NULLIF(contacts.name, ''), EXCLUDED.name),
			total_views = contacts.total_views + 1,
			total_time_seconds = contacts.total_time_seconds + EXCLUDED.total_time_seconds,
			avg_engagement = (contacts.avg_engagement * contacts.engagement_count + EXCLUDED.avg_engagement)
				/ (contacts.engagement_count + 1),
			engagement_count = contacts.engagement_count + 1,
			first_seen_at = LEAST(contacts.first_seen_at, EXCLUDED.first_seen_at),
			last_seen_at = GREATEST(contacts.last_seen_at, EXCLUDED.last_seen_at),
			files_viewed = CASE
				WHEN $8 = ANY(contacts.files_viewed) THEN contacts.files_viewed
				ELSE array_append(contacts.files_viewed, $8)
			END,
			has_downloaded = contacts.has_downloaded OR EXCLUDED.has_downloaded,
			is_hot_lead = (
				(contacts.avg_engagement * contacts.engagement_count + EXCLUDED.avg_engagement)
					/ (contacts.engagement_count + 1) >= 70
				OR ((contacts.avg_engagement * contacts.engagement_count + EXCLUDED.avg_engagement)
					/ (contacts.engagement_count + 1) >= 60
					AND (contacts.has_downloaded OR EXCLUDED.has_downloaded))
				OR ((contacts.avg_engagement * contacts.engagement_count + EXCLUDED.avg_engagement)
					/ (contacts.engagement_count + 1) >= 50
					AND contacts.total_views + 1 >= 3)
			),
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		fold.OwnerEmail,
		model.NormalizeEmail(fold.Email),
		fold.Name,
		fold.Company,
		fold.TimeSeconds,
		fold.Score,
		fold.SeenAt,
		fold.FileID,
		fold.Downloaded,
	)

	if err != nil {
		return fmt.Errorf("failed to fold contact score: %w", err)
	}

	return nil
}

// GetContactByEmail retrieves one contact for an owner.
func (r *Repository) GetContactByEmail(ctx context.Context, ownerEmail, email string) (*model.Contact, error) {
	query := `
		SELECT owner_email, email, name, company, total_views, total_time_seconds,
		       avg_engagement, engagement_count, first_seen_at, last_seen_at,
		       files_viewed, has_downloaded, is_hot_lead
		FROM contacts
		WHERE owner_email = $1 AND email = $2
	`

	contact, err := scanContact(r.pool.QueryRow(ctx, query, ownerEmail, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// ListContactsByOwner retrieves an owner's contacts, most recently seen
// first.
func (r *Repository) ListContactsByOwner(ctx context.Context, ownerEmail string, limit int) ([]*model.Contact, error) {
	query := `
		SELECT owner_email, email, name, company, total_views, total_time_seconds,
		       avg_engagement, engagement_count, first_seen_at, last_seen_at,
		       files_viewed, has_downloaded, is_hot_lead
		FROM contacts
		WHERE owner_email = $1
		ORDER BY last_seen_at DESC, email ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerEmail, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

// ReplaceContact overwrites a contact row with a freshly rebuilt aggregate.
// Used by the read-path rebuild when a stored row has drifted.
func (r *Repository) ReplaceContact(ctx context.Context, contact *model.Contact) error {
	query := `
		INSERT INTO contacts (
			owner_email, email, name, company,
			total_views, total_time_seconds, avg_engagement, engagement_count,
			first_seen_at, last_seen_at, files_viewed, has_downloaded, is_hot_lead,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (owner_email, email) DO UPDATE SET
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			total_views = EXCLUDED.total_views,
			total_time_seconds = EXCLUDED.total_time_seconds,
			avg_engagement = EXCLUDED.avg_engagement,
			engagement_count = EXCLUDED.engagement_count,
			first_seen_at = EXCLUDED.first_seen_at,
			last_seen_at = EXCLUDED.last_seen_at,
			files_viewed = EXCLUDED.files_viewed,
			has_downloaded = EXCLUDED.has_downloaded,
			is_hot_lead = EXCLUDED.is_hot_lead,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		contact.OwnerEmail,
		model.NormalizeEmail(contact.Email),
		contact.Name,
		contact.Company,
		contact.TotalViews,
		contact.TotalTimeSeconds,
		contact.AvgEngagement,
		contact.EngagementCount,
		contact.FirstSeenAt,
		contact.LastSeenAt,
		pq.Array(contact.FilesViewed),
		contact.HasDownloaded,
		contact.IsHotLead,
	)

	if err != nil {
		return fmt.Errorf("failed to replace contact: %w", err)
	}

	return nil
}

// scanContact scans a single row into a Contact model.
func scanContact(row pgx.Row) (*model.Contact, error) {
	var contact model.Contact
	var name, company *string
	var filesViewed []string

	err := row.Scan(
		&contact.OwnerEmail,
		&contact.Email,
		&name,
		&company,
		&contact.TotalViews,
		&contact.TotalTimeSeconds,
		&contact.AvgEngagement,
		&contact.EngagementCount,
		&contact.FirstSeenAt,
		&contact.LastSeenAt,
		pq.Array(&filesViewed),
		&contact.HasDownloaded,
		&contact.IsHotLead,
	)
	if err != nil {
		return nil, err
	}

	contact.Name = derefString(name)
	contact.Company = derefString(company)
	contact.FilesViewed = filesViewed

	return &contact, nil
}
