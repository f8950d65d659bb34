package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/downloader"
	"github.com/iconidentify/toolkit/internal/repository"
	"github.com/iconidentify/toolkit/internal/worker"
	"github.com/iconidentify/toolkit/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeResolver implements downloader.MetadataResolver.
type fakeResolver struct {
	mu    sync.Mutex
	meta  *domain.ResolvedMetadata
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (*domain.ResolvedMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.meta
	return &cp, nil
}

// fakeExtractor implements downloader.Extractor by delegating to fn.
type fakeExtractor struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req downloader.ExtractRequest) (*downloader.ExtractResult, error)
	calls int
	reqs  []downloader.ExtractRequest
}

func (f *fakeExtractor) Extract(ctx context.Context, req downloader.ExtractRequest) (*downloader.ExtractResult, error) {
	f.mu.Lock()
	f.calls++
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

// fakeNormalizer implements Normalizer by copying src to dst.
type fakeNormalizer struct {
	calls int
	err   error
}

func (f *fakeNormalizer) NormalizeMP4(ctx context.Context, src, dst string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// writesTemplate returns an extractor func that writes content at the
// template with ext and reports only the extension.
func writesTemplate(ext, content string) func(context.Context, downloader.ExtractRequest) (*downloader.ExtractResult, error) {
	return func(ctx context.Context, req downloader.ExtractRequest) (*downloader.ExtractResult, error) {
		path := strings.Replace(req.OutputTemplate, "%(ext)s", ext, 1)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, err
		}
		return &downloader.ExtractResult{Ext: ext}, nil
	}
}

type testEnv struct {
	svc       *DownloadService
	resolver  *fakeResolver
	extractor *fakeExtractor
	ws        *workspace.Manager
	repo      *repository.InMemoryJobRepository
	pool      *worker.Pool
}

func newTestEnv(t *testing.T, title string) *testEnv {
	t.Helper()

	ws, err := workspace.New(filepath.Join(t.TempDir(), "downloads"), testLogger())
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	pool := worker.NewPool(worker.Config{Workers: 2}, testLogger())
	t.Cleanup(func() { pool.Stop(time.Second) })

	env := &testEnv{
		resolver: &fakeResolver{meta: &domain.ResolvedMetadata{Title: title, Extension: "mp4"}},
		extractor: &fakeExtractor{
			fn: writesTemplate("mp4", "video-bytes"),
		},
		ws:   ws,
		repo: repository.NewInMemoryJobRepository(0),
		pool: pool,
	}
	env.svc = NewDownloadService(env.resolver, env.extractor, nil, ws, pool, env.repo, nil,
		DownloadConfig{Timeout: time.Minute}, testLogger())

	var seq int
	env.svc.newID = func() domain.JobID {
		seq++
		return domain.JobID(fmt.Sprintf("job_%d", seq))
	}
	return env
}

func (e *testEnv) jobDir(id string) string {
	return filepath.Join(e.ws.Root(), id)
}

func assertNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("%s should not exist, stat err=%v", path, err)
	}
}
