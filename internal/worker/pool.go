package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrShutdownTimeout is returned when in-flight tasks don't stop within timeout.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

	// ErrPoolStopped is returned by Do once Stop has been called.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is a unit of blocking work. It must return promptly once ctx is done.
type Task func(ctx context.Context) error

// Pool bounds how many download jobs run at once. Tasks run on the caller's
// goroutine once a slot is free, so results never outlive the request that
// asked for them.
type Pool struct {
	slots  chan struct{}
	logger *slog.Logger

	active  atomic.Int64
	waiting atomic.Int64

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers int
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Workers int   `json:"workers"`
	Active  int64 `json:"active"`
	Waiting int64 `json:"waiting"`
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("worker pool ready", "workers", cfg.Workers)

	return &Pool{
		slots:  make(chan struct{}, cfg.Workers),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Do waits for a free slot and runs task. The context passed to task is
// cancelled when either ctx is done or the pool stops.
func (p *Pool) Do(ctx context.Context, task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	p.waiting.Add(1)
	select {
	case p.slots <- struct{}{}:
		p.waiting.Add(-1)
	case <-ctx.Done():
		p.waiting.Add(-1)
		return ctx.Err()
	case <-p.ctx.Done():
		p.waiting.Add(-1)
		return ErrPoolStopped
	}
	defer func() { <-p.slots }()

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	p.active.Add(1)
	defer p.active.Add(-1)

	return task(taskCtx)
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: cap(p.slots),
		Active:  p.active.Load(),
		Waiting: p.waiting.Load(),
	}
}

// Stop rejects new tasks, cancels in-flight ones and waits for them to return.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
