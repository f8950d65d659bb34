package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/readiness"
	"github.com/iconidentify/toolkit/pkg/rembg"
)

// ImageService removes image backgrounds through the rembg model server.
type ImageService struct {
	client rembg.Client
	deps   *readiness.Tracker
	logger *slog.Logger
}

// NewImageService creates a new image service.
func NewImageService(client rembg.Client, deps *readiness.Tracker, logger *slog.Logger) *ImageService {
	return &ImageService{
		client: client,
		deps:   deps,
		logger: logger,
	}
}

// RemoveBackground returns the PNG cut-out of the uploaded image.
func (s *ImageService) RemoveBackground(ctx context.Context, image io.Reader, filename string) ([]byte, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return nil, domain.NewJobError("", "remove background", domain.ErrInvalidRequest, fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return nil, domain.NewJobError("", "remove background", domain.ErrInvalidRequest, errors.New("no image file provided"))
	}

	if s.deps != nil && !s.deps.IsReady(readiness.Rembg) {
		return nil, domain.NewJobError("", "remove background", domain.ErrUpstreamUnavailable,
			errors.New("background removal model is still loading"))
	}

	out, err := s.client.Remove(ctx, bytes.NewReader(data), filename)
	if err != nil {
		if isUnavailable(err) && ctx.Err() == nil {
			if s.deps != nil {
				s.deps.Set(readiness.Rembg, err)
			}
			return nil, domain.NewJobError("", "remove background", domain.ErrUpstreamUnavailable, err)
		}
		s.logger.Error("background removal failed", "filename", filename, "size", len(data), "error", err)
		return nil, domain.NewJobError("", "remove background", domain.ErrProcessingFailed, err)
	}

	s.logger.Info("background removed", "filename", filename, "in_bytes", len(data), "out_bytes", len(out))
	return out, nil
}

// isUnavailable reports whether err means the model server is down or
// starting rather than rejecting the image.
func isUnavailable(err error) bool {
	var apiErr *rembg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Transport failures: connection refused, DNS, timeouts.
	return !errors.Is(err, rembg.ErrEmptyResult)
}
