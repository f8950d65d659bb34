package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/iconidentify/toolkit/internal/domain"
)

// InMemoryJobRepository implements JobRepository using in-memory storage.
// Finished jobs beyond maxFinished are evicted oldest first.
type InMemoryJobRepository struct {
	mu          sync.RWMutex
	jobs        map[domain.JobID]*domain.Job
	order       []domain.JobID // insertion order, oldest first
	maxFinished int
}

// NewInMemoryJobRepository creates a new in-memory job repository that keeps
// at most maxFinished completed or failed jobs. Zero keeps 1000.
func NewInMemoryJobRepository(maxFinished int) *InMemoryJobRepository {
	if maxFinished <= 0 {
		maxFinished = 1000
	}
	return &InMemoryJobRepository{
		jobs:        make(map[domain.JobID]*domain.Job),
		order:       make([]domain.JobID, 0),
		maxFinished: maxFinished,
	}
}

// Create stores a new job.
func (r *InMemoryJobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *job
	if _, ok := r.jobs[job.ID]; !ok {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = &cp

	return nil
}

// Update modifies job state.
func (r *InMemoryJobRepository) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}

	cp := *job
	r.jobs[job.ID] = &cp

	if job.Status.IsFinished() {
		r.evictLocked()
	}

	return nil
}

// evictLocked drops the oldest finished jobs past the retention cap.
func (r *InMemoryJobRepository) evictLocked() {
	finished := 0
	for _, id := range r.order {
		if r.jobs[id].Status.IsFinished() {
			finished++
		}
	}
	if finished <= r.maxFinished {
		return
	}

	excess := finished - r.maxFinished
	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && r.jobs[id].Status.IsFinished() {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	cp := *job
	return &cp, nil
}

// Recent returns up to limit jobs, newest first.
func (r *InMemoryJobRepository) Recent(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Job, 0, min(limit, len(r.order)))
	for i := len(r.order) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *r.jobs[r.order[i]]
		result = append(result, &cp)
	}

	// Jobs created in the same instant keep insertion order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Stats returns job statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &JobStats{}
	for _, job := range r.jobs {
		stats.add(job.Status, 1)
	}

	return stats, nil
}
