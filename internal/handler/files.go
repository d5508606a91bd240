package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/pagepulse/pagepulse/internal/auth"
	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/handler/dto"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/middleware"
	"github.com/pagepulse/pagepulse/internal/model"
	"github.com/pagepulse/pagepulse/internal/repository"
)

// FileHandler handles file registration and metadata endpoints.
type FileHandler struct {
	repo    *repository.Repository
	cache   *cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
	baseURL string
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(repo *repository.Repository, c *cache.Cache, recorder metrics.Recorder, logger *slog.Logger, baseURL string) *FileHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &FileHandler{
		repo:    repo,
		cache:   c,
		metrics: recorder,
		logger:  logger.With("component", "handler.files"),
		baseURL: baseURL,
	}
}

// CreateFile handles POST /api/v1/files.
func (h *FileHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := middleware.ValidateFileName(req.Name); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_NAME", err.Error())
		return
	}

	linkType := model.LinkTypeFile
	switch req.Type {
	case "", string(model.LinkTypeFile):
	case string(model.LinkTypeURL):
		linkType = model.LinkTypeURL
	default:
		h.writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Type must be \"file\" or \"url\"")
		return
	}

	if linkType == model.LinkTypeURL && req.DestinationURL == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Destination URL is required for url-type links")
		return
	}

	now := time.Now().UTC()
	file := &model.File{
		ID:                   ulid.Make().String(),
		OwnerEmail:           authCtx.OwnerEmail,
		Name:                 req.Name,
		Type:                 linkType,
		MimeType:             req.MimeType,
		TotalPages:           req.TotalPages,
		VideoDurationSeconds: req.VideoDurationSeconds,
		DestinationURL:       req.DestinationURL,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := h.repo.CreateFile(r.Context(), file); err != nil {
		h.logger.Error("failed to create file", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create file")
		return
	}

	h.metrics.IncFileCreated()
	h.logger.Info("file created",
		slog.String("file_id", file.ID),
		slog.String("owner_email", file.OwnerEmail),
		slog.String("type", string(file.Type)),
	)

	// Clear any stale negative cache entry so tracking resolves immediately.
	if h.cache != nil {
		if err := h.cache.DeleteFileNegativeCache(r.Context(), file.ID); err != nil {
			h.logger.Warn("failed to clear negative cache", "file_id", file.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, dto.ToFileResponse(file, h.baseURL))
}

// GetFile handles GET /api/v1/files/{id}.
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	fileID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID(fileID); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid file ID")
		return
	}

	file, err := fetchOwnedFile(r.Context(), h.repo, fileID, authCtx.OwnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) || errors.Is(err, errFileForbidden) {
			h.writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
			return
		}
		h.logger.Error("failed to get file", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch file")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToFileResponse(file, h.baseURL))
}

// ListFiles handles GET /api/v1/files.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	files, err := h.repo.ListFilesByOwner(r.Context(), authCtx.OwnerEmail)
	if err != nil {
		h.logger.Error("failed to list files", "owner_email", authCtx.OwnerEmail, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToFileListResponse(files, h.baseURL))
}

// UpdateFile handles PATCH /api/v1/files/{id}.
func (h *FileHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	fileID := chi.URLParam(r, "id")
	if err := middleware.ValidateResourceID(fileID); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid file ID")
		return
	}

	var req dto.UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	file, err := fetchOwnedFile(r.Context(), h.repo, fileID, authCtx.OwnerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) || errors.Is(err, errFileForbidden) {
			h.writeError(w, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
			return
		}
		h.logger.Error("failed to get file", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update file")
		return
	}

	if req.Name != nil {
		if err := middleware.ValidateFileName(*req.Name); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_NAME", err.Error())
			return
		}
		file.Name = *req.Name
	}
	if req.MimeType != nil {
		file.MimeType = *req.MimeType
	}
	if req.TotalPages != nil {
		file.TotalPages = *req.TotalPages
	}
	if req.VideoDurationSeconds != nil {
		file.VideoDurationSeconds = *req.VideoDurationSeconds
	}
	if req.DestinationURL != nil {
		file.DestinationURL = *req.DestinationURL
	}
	file.UpdatedAt = time.Now().UTC()

	if err := h.repo.UpdateFile(r.Context(), file); err != nil {
		h.logger.Error("failed to update file", "file_id", fileID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update file")
		return
	}

	h.metrics.IncFileUpdated()
	h.logger.Info("file updated", slog.String("file_id", file.ID))

	writeJSON(w, http.StatusOK, dto.ToFileResponse(file, h.baseURL))
}

func (h *FileHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
