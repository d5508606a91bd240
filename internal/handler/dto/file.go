// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/pagepulse/pagepulse/internal/model"
)

// CreateFileRequest represents the request body for registering a file.
type CreateFileRequest struct {
	Name                 string `json:"name"`
	Type                 string `json:"type,omitempty"` // "file" or "url"
	MimeType             string `json:"mime_type,omitempty"`
	TotalPages           int    `json:"total_pages,omitempty"`
	VideoDurationSeconds int    `json:"video_duration_seconds,omitempty"`
	DestinationURL       string `json:"destination_url,omitempty"`
}

// UpdateFileRequest represents the request body for updating file metadata.
type UpdateFileRequest struct {
	Name                 *string `json:"name,omitempty"`
	MimeType             *string `json:"mime_type,omitempty"`
	TotalPages           *int    `json:"total_pages,omitempty"`
	VideoDurationSeconds *int    `json:"video_duration_seconds,omitempty"`
	DestinationURL       *string `json:"destination_url,omitempty"`
}

// FileResponse represents a file in API responses.
type FileResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	MimeType             string    `json:"mime_type,omitempty"`
	TotalPages           int       `json:"total_pages,omitempty"`
	VideoDurationSeconds int       `json:"video_duration_seconds,omitempty"`
	DestinationURL       string    `json:"destination_url,omitempty"`
	TrackURL             string    `json:"track_url"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FileListResponse represents a list of files.
type FileListResponse struct {
	Data  []FileResponse `json:"data"`
	Total int            `json:"total"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToFileResponse converts a File model to FileResponse DTO.
func ToFileResponse(file *model.File, baseURL string) *FileResponse {
	return &FileResponse{
		ID:                   file.ID,
		Name:                 file.Name,
		Type:                 string(file.Type),
		MimeType:             file.MimeType,
		TotalPages:           file.TotalPages,
		VideoDurationSeconds: file.VideoDurationSeconds,
		DestinationURL:       file.DestinationURL,
		TrackURL:             baseURL + "/v/" + file.ID,
		CreatedAt:            file.CreatedAt,
		UpdatedAt:            file.UpdatedAt,
	}
}

// ToFileListResponse converts a slice of File models to FileListResponse.
func ToFileListResponse(files []*model.File, baseURL string) *FileListResponse {
	responses := make([]FileResponse, len(files))
	for i, file := range files {
		responses[i] = *ToFileResponse(file, baseURL)
	}
	return &FileListResponse{
		Data:  responses,
		Total: len(files),
	}
}
