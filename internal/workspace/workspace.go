// Package workspace owns the on-disk staging area for download jobs. Every
// job works inside its own sub-directory of the root, so concurrent jobs
// never see or delete each other's files.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/iconidentify/toolkit/internal/domain"
)

// ErrOutsideDir is returned when a staged path escapes its job directory.
var ErrOutsideDir = errors.New("path is outside the job directory")

// Manager hands out per-job directories under a single root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// New creates a manager rooted at root, creating the directory if needed.
func New(root string, logger *slog.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve work path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create work path: %w", err)
	}
	return &Manager{
		root:   abs,
		logger: logger,
	}, nil
}

// Root returns the absolute working root.
func (m *Manager) Root() string {
	return m.root
}

// PurgeStale removes job directories left under the root by a previous
// process. Only directories named like job ids are touched; anything else
// sharing the root (a history database, operator files) is kept. It must only
// run while no job is active, i.e. at startup. Returns the number of
// directories removed.
func (m *Manager) PurgeStale() int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.logger.Warn("list work path", "path", m.root, "error", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), domain.JobIDPrefix) {
			continue
		}
		p := filepath.Join(m.root, e.Name())
		if BestEffort(m.logger, "purge stale job dir", func() error { return os.RemoveAll(p) }) {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("purged stale job dirs", "count", removed, "path", m.root)
	}
	return removed
}

// Acquire creates a fresh, empty directory for the job.
func (m *Manager) Acquire(id domain.JobID) (*Dir, error) {
	if id == "" || strings.ContainsAny(id.String(), `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid job id %q", id)
	}

	// The root may have been removed underneath a long-running process.
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return nil, fmt.Errorf("create work path: %w", err)
	}

	p := filepath.Join(m.root, id.String())
	if err := os.Mkdir(p, 0755); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create job dir: %w", err)
		}
		// Never reuse a directory: its contents would break the empty-start invariant.
		if err := os.RemoveAll(p); err != nil {
			return nil, fmt.Errorf("reset job dir: %w", err)
		}
		if err := os.Mkdir(p, 0755); err != nil {
			return nil, fmt.Errorf("create job dir: %w", err)
		}
	}

	return &Dir{
		path:   p,
		logger: m.logger.With("job_id", id),
	}, nil
}

// FreeBytes returns the free space available to the working root, or -1 when
// the platform cannot report it.
func (m *Manager) FreeBytes() int64 {
	return freeBytes(m.root)
}

// Dir is one job's private directory. Release removes it recursively and is
// safe to call more than once.
type Dir struct {
	path   string
	logger *slog.Logger
	once   sync.Once
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Release removes the directory and everything in it.
func (d *Dir) Release() {
	d.once.Do(func() {
		BestEffort(d.logger, "release job dir", func() error { return os.RemoveAll(d.path) })
	})
}

// Contains reports whether path lies inside the directory.
func (d *Dir) Contains(path string) bool {
	rel, err := filepath.Rel(d.path, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Open opens a staged file inside the directory. Closing the returned handle
// deletes the file and releases the directory.
func (d *Dir) Open(path string) (*Handle, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.path, path)
	}
	if !d.Contains(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrOutsideDir)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: not a regular file", path)
	}

	return &Handle{
		file: f,
		staged: domain.StagedFile{
			Path:      path,
			SizeBytes: info.Size(),
		},
		modTime: info.ModTime(),
		dir:     d,
	}, nil
}
