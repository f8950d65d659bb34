package repository

import (
	"context"

	"github.com/iconidentify/toolkit/internal/domain"
)

// JobRepository records download jobs. Only bookkeeping lives here; staged
// media never outlives its request.
type JobRepository interface {
	// Create stores a new job.
	Create(ctx context.Context, job *domain.Job) error

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// Recent returns up to limit jobs, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Job, error)

	// Stats returns job statistics.
	Stats(ctx context.Context) (*JobStats, error)
}

// JobStats counts jobs per status.
type JobStats struct {
	Queued      int `json:"queued"`
	Resolving   int `json:"resolving"`
	Downloading int `json:"downloading"`
	Streaming   int `json:"streaming"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// Active returns the number of jobs not yet finished.
func (s *JobStats) Active() int {
	return s.Queued + s.Resolving + s.Downloading + s.Streaming
}

func (s *JobStats) add(status domain.JobStatus, n int) {
	switch status {
	case domain.JobStatusQueued:
		s.Queued += n
	case domain.JobStatusResolving:
		s.Resolving += n
	case domain.JobStatusDownloading:
		s.Downloading += n
	case domain.JobStatusStreaming:
		s.Streaming += n
	case domain.JobStatusCompleted:
		s.Completed += n
	case domain.JobStatusFailed:
		s.Failed += n
	}
}

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50
