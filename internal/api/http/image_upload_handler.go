package http

import (
	"errors"
	"io"
	"net/http"

	"estate-market-backend/internal/apperrors"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/storage"

	"github.com/gorilla/mux"
)

// ImageDownloadHandler serves stored listing images.
type ImageDownloadHandler struct {
	store storage.Storage
}

func NewImageDownloadHandler(store storage.Storage) *ImageDownloadHandler {
	return &ImageDownloadHandler{store: store}
}

// Download streams the file stored under the {key} path variable.
func (h *ImageDownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	file, contentType, err := h.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, r, apperrors.NotFound("file not found"))
			return
		}
		writeError(w, r, apperrors.Infrastructure("failed to open file", err))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Image download interrupted", "key", key, "error", err)
	}
}
