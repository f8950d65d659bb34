// Package readiness tracks whether the external services each endpoint
// depends on can take requests yet.
package readiness

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State is the readiness of one dependency.
type State string

const (
	Uninitialized State = "uninitialized"
	Ready         State = "ready"
	Failed        State = "failed"
)

// Dependency names used across the service.
const (
	Rembg  = "rembg"
	YTDLP  = "ytdlp"
	FFmpeg = "ffmpeg"
)

// Probe checks a dependency once; nil means ready.
type Probe func(ctx context.Context) error

// Status is a point-in-time view of one dependency.
type Status struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// Tracker holds the state of every registered dependency.
type Tracker struct {
	mu     sync.RWMutex
	deps   map[string]*Status
	logger *slog.Logger
}

// NewTracker creates a tracker with the given dependencies uninitialized.
func NewTracker(logger *slog.Logger, names ...string) *Tracker {
	t := &Tracker{
		deps:   make(map[string]*Status, len(names)),
		logger: logger,
	}
	for _, n := range names {
		t.deps[n] = &Status{Name: n, State: Uninitialized}
	}
	return t
}

// State returns the current state of name. Unknown names are uninitialized.
func (t *Tracker) State(name string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.deps[name]; ok {
		return s.State
	}
	return Uninitialized
}

// IsReady reports whether name is ready.
func (t *Tracker) IsReady(name string) bool {
	return t.State(name) == Ready
}

// Set records the outcome of a probe. A nil err marks the dependency ready.
func (t *Tracker) Set(name string, err error) {
	t.mu.Lock()
	s, ok := t.deps[name]
	if !ok {
		s = &Status{Name: name}
		t.deps[name] = s
	}
	prev := s.State
	s.CheckedAt = time.Now()
	if err == nil {
		s.State = Ready
		s.Error = ""
	} else {
		s.State = Failed
		s.Error = err.Error()
	}
	next := s.State
	t.mu.Unlock()

	if prev != next {
		if err != nil {
			t.logger.Warn("dependency state changed", "dependency", name, "from", prev, "to", next, "error", err)
		} else {
			t.logger.Info("dependency state changed", "dependency", name, "from", prev, "to", next)
		}
	}
}

// Snapshot returns all dependencies sorted by name.
func (t *Tracker) Snapshot() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Status, 0, len(t.deps))
	for _, s := range t.deps {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Watch brings name up with exponential backoff, then re-probes every
// interval until ctx is done so a failed dependency can recover. It blocks;
// run it in its own goroutine.
func (t *Tracker) Watch(ctx context.Context, name string, probe Probe, retry RetryConfig, interval time.Duration) {
	check := func() (struct{}, error) {
		err := probe(ctx)
		if ctx.Err() == nil {
			t.Set(name, err)
		}
		return struct{}{}, err
	}

	if _, err := Retry(ctx, retry, check); err != nil && ctx.Err() == nil {
		t.logger.Error("dependency did not become ready", "dependency", name, "attempts", retry.MaxAttempts, "error", err)
	}

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
