package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/repository"
)

const maxJobsLimit = 500

// JobHandler serves the download job history.
type JobHandler struct {
	jobRepo repository.JobRepository
	logger  *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobRepo repository.JobRepository, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobRepo: jobRepo,
		logger:  logger,
	}
}

// JobListResponse is the response for listing jobs.
type JobListResponse struct {
	Jobs  []*domain.Job `json:"jobs"`
	Count int           `json:"count"`
}

// List handles GET /api/v1/jobs?limit=
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := repository.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJobsLimit)
	}

	jobs, err := h.jobRepo.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}

	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// Get handles GET /api/v1/jobs/{jobID}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(chi.URLParam(r, "jobID"))

	job, err := h.jobRepo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
