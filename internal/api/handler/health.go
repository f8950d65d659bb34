package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/toolkit/internal/readiness"
	"github.com/iconidentify/toolkit/internal/repository"
	"github.com/iconidentify/toolkit/internal/worker"
)

var startTime = time.Now()

// PoolStats reports worker pool occupancy.
type PoolStats interface {
	Stats() worker.Stats
}

// DiskStats reports free space on the working root.
type DiskStats interface {
	Root() string
	FreeBytes() int64
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	deps    *readiness.Tracker
	jobRepo repository.JobRepository
	pool    PoolStats
	disk    DiskStats
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps *readiness.Tracker, jobRepo repository.JobRepository, pool PoolStats, disk DiskStats) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		jobRepo: jobRepo,
		pool:    pool,
		disk:    disk,
	}
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// ReadyResponse is the JSON response for the readiness probe.
type ReadyResponse struct {
	Status       string               `json:"status"`
	Timestamp    string               `json:"timestamp"`
	Dependencies []readiness.Status   `json:"dependencies"`
	Jobs         *repository.JobStats `json:"jobs,omitempty"`
	Workers      *worker.Stats        `json:"workers,omitempty"`
}

// Ready handles GET /ready - readiness probe. Downloads need yt-dlp, so the
// service reports unavailable until it is found.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{
		Status:       "ok",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Dependencies: h.deps.Snapshot(),
	}
	status := http.StatusOK

	if !h.deps.IsReady(readiness.YTDLP) {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		for _, d := range resp.Dependencies {
			if d.State != readiness.Ready {
				resp.Status = "degraded"
			}
		}
	}

	stats, err := h.jobRepo.Stats(ctx)
	if err != nil {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	} else {
		resp.Jobs = stats
	}

	if h.pool != nil {
		ps := h.pool.Stats()
		resp.Workers = &ps
	}

	writeJSON(w, status, resp)
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime        int64  `json:"uptime_seconds"`
	UptimeHuman   string `json:"uptime_human"`
	MemAllocMB    int64  `json:"mem_alloc_mb"`
	MemSysMB      int64  `json:"mem_sys_mb"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	DiskFreeBytes int64  `json:"disk_free_bytes"`
	WorkPath      string `json:"work_path"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		DiskFreeBytes: -1,
	}
	if h.disk != nil {
		stats.DiskFreeBytes = h.disk.FreeBytes()
		stats.WorkPath = h.disk.Root()
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
