package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/service"
	"github.com/iconidentify/toolkit/internal/workspace"
)

// Downloader runs download jobs and video info lookups.
type Downloader interface {
	RunDownloadJob(ctx context.Context, req domain.DownloadRequest) (*workspace.Handle, error)
	Info(ctx context.Context, url string) (*service.VideoInfo, error)
}

// MediaHandler handles video info and download endpoints.
type MediaHandler struct {
	downloads Downloader
	logger    *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(downloads Downloader, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		downloads: downloads,
		logger:    logger,
	}
}

// Info handles GET /yt-info?url=
func (h *MediaHandler) Info(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "Missing URL parameter")
		return
	}

	info, err := h.downloads.Info(r.Context(), url)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Download handles GET /download?url=&format_id=
// The staged file is streamed with Range support and deleted afterwards.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.DownloadRequest{
		SourceURL:      q.Get("url"),
		FormatSelector: q.Get("format_id"),
	}
	if req.SourceURL == "" {
		writeError(w, http.StatusBadRequest, "Missing URL")
		return
	}

	handle, err := h.downloads.RunDownloadJob(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	defer handle.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", attachment(handle.Name()))
	http.ServeContent(w, r, handle.Name(), handle.ModTime(), handle)
}

// attachment builds a Content-Disposition value. mime.FormatMediaType quotes
// or RFC 2231 encodes the name as needed.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
