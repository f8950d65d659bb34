package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/toolkit/internal/api/handler"
	mw "github.com/iconidentify/toolkit/internal/api/middleware"
)

// Handlers bundles the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health *handler.HealthHandler
	Media  *handler.MediaHandler
	Image  *handler.ImageHandler
	Jobs   *handler.JobHandler
}

// RouterConfig holds router-level settings.
type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
	// RequestTimeout bounds every route except /download, which streams for
	// as long as the video takes.
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Download jobs are bounded by the download timeout and the client.
	r.Get("/download", h.Media.Download)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		// Health endpoints (no auth)
		r.Get("/health", h.Health.Live)
		r.Get("/ready", h.Health.Ready)

		r.Get("/yt-info", h.Media.Info)
		r.Post("/remove-bg", h.Image.RemoveBackground)

		// API v1 (authenticated)
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(mw.APIKeyAuth(cfg.APIKey))

			r.Get("/stats", h.Health.Stats)
			r.Get("/jobs", h.Jobs.List)
			r.Get("/jobs/{jobID}", h.Jobs.Get)
		})
	})

	return r
}
