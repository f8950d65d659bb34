package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// BackgroundRemover produces a transparent PNG cut-out of an image.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image io.Reader, filename string) ([]byte, error)
}

// ImageHandler handles image processing endpoints.
type ImageHandler struct {
	images         BackgroundRemover
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(images BackgroundRemover, maxUploadBytes int64, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images:         images,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RemoveBackground handles POST /remove-bg with a multipart "image" field.
func (h *ImageHandler) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	png, err := h.images.RemoveBackground(r.Context(), file, header.Filename)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
