package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pagepulse/pagepulse/internal/model"
)

// Common errors for file repository operations.
var (
	ErrFileNotFound = errors.New("file not found")
)

// CreateFile inserts a new file record.
func (r *Repository) CreateFile(ctx context.Context, file *model.File) error {
	query := `
		INSERT INTO files (id, owner_email, name, type, mime_type, total_pages, video_duration_seconds, destination_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		file.ID,
		file.OwnerEmail,
		file.Name,
		string(file.Type),
		nullableString(file.MimeType),
		file.TotalPages,
		file.VideoDurationSeconds,
		nullableString(file.DestinationURL),
		file.CreatedAt,
		file.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

// GetFileByID retrieves a file by its ID.
func (r *Repository) GetFileByID(ctx context.Context, id string) (*model.File, error) {
	query := `
		SELECT id, owner_email, name, type, mime_type, total_pages, video_duration_seconds, destination_url, created_at, updated_at
		FROM files
		WHERE id = $1
	`

	file, err := scanFile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}

	return file, nil
}

// ListFilesByOwner retrieves all files for an owner, newest first.
func (r *Repository) ListFilesByOwner(ctx context.Context, ownerEmail string) ([]*model.File, error) {
	query := `
		SELECT id, owner_email, name, type, mime_type, total_pages, video_duration_seconds, destination_url, created_at, updated_at
		FROM files
		WHERE owner_email = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// GetFilesByIDs retrieves a batch of files keyed by ID. Missing IDs are
// simply absent from the result.
func (r *Repository) GetFilesByIDs(ctx context.Context, ids []string) (map[string]*model.File, error) {
	if len(ids) == 0 {
		return map[string]*model.File{}, nil
	}

	query := `
		SELECT id, owner_email, name, type, mime_type, total_pages, video_duration_seconds, destination_url, created_at, updated_at
		FROM files
		WHERE id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get files by IDs: %w", err)
	}
	defer rows.Close()

	files := make(map[string]*model.File, len(ids))
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files[file.ID] = file
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// UpdateFile updates a file's mutable metadata.
func (r *Repository) UpdateFile(ctx context.Context, file *model.File) error {
	query := `
		UPDATE files
		SET name = $2, total_pages = $3, video_duration_seconds = $4, destination_url = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		file.ID,
		file.Name,
		file.TotalPages,
		file.VideoDurationSeconds,
		nullableString(file.DestinationURL),
	)

	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrFileNotFound
	}

	return nil
}

// scanFile scans a single row into a File model.
func scanFile(row pgx.Row) (*model.File, error) {
	var file model.File
	var fileType string
	var mimeType, destinationURL *string

	err := row.Scan(
		&file.ID,
		&file.OwnerEmail,
		&file.Name,
		&fileType,
		&mimeType,
		&file.TotalPages,
		&file.VideoDurationSeconds,
		&destinationURL,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.Type = model.LinkType(fileType)
	file.MimeType = derefString(mimeType)
	file.DestinationURL = derefString(destinationURL)

	return &file, nil
}
