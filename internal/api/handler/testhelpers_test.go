package handler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/repository"
	"github.com/iconidentify/toolkit/internal/service"
	"github.com/iconidentify/toolkit/internal/workspace"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	mu       sync.Mutex
	jobs     map[domain.JobID]*domain.Job
	stats    *repository.JobStats
	statsErr error
	listErr  error
	limit    int
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		jobs:  make(map[domain.JobID]*domain.Job),
		stats: &repository.JobStats{},
	}
}

func (m *mockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	return m.Create(ctx, job)
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Recent(ctx context.Context, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Job
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.JobStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	cp := *m.stats
	return &cp, nil
}

// mockDownloader implements Downloader.
type mockDownloader struct {
	info    *service.VideoInfo
	infoErr error
	runErr  error
	content string
	name    string

	ws      *workspace.Manager
	lastReq domain.DownloadRequest
	calls   int
	handle  *workspace.Handle
}

func newMockDownloader(t *testing.T) *mockDownloader {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	return &mockDownloader{ws: ws, name: "Test Clip.mp4", content: "fake mp4 bytes"}
}

func (m *mockDownloader) Info(ctx context.Context, url string) (*service.VideoInfo, error) {
	m.calls++
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	return m.info, nil
}

func (m *mockDownloader) RunDownloadJob(ctx context.Context, req domain.DownloadRequest) (*workspace.Handle, error) {
	m.calls++
	m.lastReq = req
	if m.runErr != nil {
		return nil, m.runErr
	}
	dir, err := m.ws.Acquire(domain.JobID("job_test"))
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir.Path(), m.name)
	if err := os.WriteFile(path, []byte(m.content), 0644); err != nil {
		dir.Release()
		return nil, err
	}
	h, err := dir.Open(path)
	if err != nil {
		dir.Release()
		return nil, err
	}
	m.handle = h
	return h, nil
}

// mockRemover implements BackgroundRemover.
type mockRemover struct {
	out      []byte
	err      error
	got      []byte
	filename string
}

func (m *mockRemover) RemoveBackground(ctx context.Context, image io.Reader, filename string) ([]byte, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return nil, err
	}
	m.got = data
	m.filename = filename
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}
