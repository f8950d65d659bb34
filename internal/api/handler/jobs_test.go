package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/repository"
)

func seedJobs(repo *mockJobRepository, n int) {
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		job := domain.NewJob(domain.JobID("job_"+string(rune('a'+i))), domain.DownloadRequest{SourceURL: "https://example.com/v"})
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		repo.Create(context.Background(), job)
	}
}

func TestJobHandler_List(t *testing.T) {
	repo := newMockJobRepository()
	seedJobs(repo, 3)
	h := NewJobHandler(repo, testLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp JobListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 || len(resp.Jobs) != 3 {
		t.Fatalf("count = %d, jobs = %d, want 3", resp.Count, len(resp.Jobs))
	}
	if resp.Jobs[0].ID != "job_c" {
		t.Errorf("first job = %s, want newest job_c", resp.Jobs[0].ID)
	}
	if repo.limit != repository.DefaultRecentLimit {
		t.Errorf("limit = %d, want %d", repo.limit, repository.DefaultRecentLimit)
	}
}

func TestJobHandler_List_Limit(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{"?limit=2", http.StatusOK, 2},
		{"?limit=100000", http.StatusOK, maxJobsLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=-3", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			repo := newMockJobRepository()
			seedJobs(repo, 3)
			h := NewJobHandler(repo, testLogger())

			w := httptest.NewRecorder()
			h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs"+tt.query, nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if repo.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", repo.limit, tt.wantLimit)
			}
		})
	}
}

func TestJobHandler_List_Empty(t *testing.T) {
	h := NewJobHandler(newMockJobRepository(), testLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	if body := w.Body.String(); body != "{\"jobs\":[],\"count\":0}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestJobHandler_List_RepoError(t *testing.T) {
	repo := newMockJobRepository()
	repo.listErr = errors.New("disk I/O error")
	h := NewJobHandler(repo, testLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestJobHandler_Get(t *testing.T) {
	repo := newMockJobRepository()
	seedJobs(repo, 2)
	h := NewJobHandler(repo, testLogger())

	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}", h.Get)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job_b", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var job domain.Job
		json.NewDecoder(w.Body).Decode(&job)
		if job.ID != "job_b" || job.Status != domain.JobStatusQueued {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job_zzz", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
