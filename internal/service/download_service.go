package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/toolkit/internal/domain"
	"github.com/iconidentify/toolkit/internal/downloader"
	"github.com/iconidentify/toolkit/internal/readiness"
	"github.com/iconidentify/toolkit/internal/repository"
	"github.com/iconidentify/toolkit/internal/worker"
	"github.com/iconidentify/toolkit/internal/workspace"
)

// extPlaceholder is substituted by the extractor with the real extension.
const extPlaceholder = "%(ext)s"

// Normalizer turns a merged download into an MP4 file at dst.
type Normalizer interface {
	NormalizeMP4(ctx context.Context, src, dst string) error
}

// DownloadConfig holds download job settings.
type DownloadConfig struct {
	// Timeout bounds metadata resolution plus extraction. Zero disables it.
	Timeout time.Duration
	// MinFreeBytes rejects jobs when the working root has less free space.
	// Zero disables the check.
	MinFreeBytes int64
}

// DownloadService runs request-scoped download jobs and video info lookups.
type DownloadService struct {
	resolver   downloader.MetadataResolver
	extractor  downloader.Extractor
	normalizer Normalizer
	workspace  *workspace.Manager
	pool       *worker.Pool
	jobRepo    repository.JobRepository
	deps       *readiness.Tracker
	cfg        DownloadConfig
	logger     *slog.Logger

	newID func() domain.JobID
}

// NewDownloadService creates a new download service. normalizer and deps
// may be nil: without a normalizer merged output is only renamed by path,
// without a tracker the extractor is assumed ready.
func NewDownloadService(
	resolver downloader.MetadataResolver,
	extractor downloader.Extractor,
	normalizer Normalizer,
	ws *workspace.Manager,
	pool *worker.Pool,
	jobRepo repository.JobRepository,
	deps *readiness.Tracker,
	cfg DownloadConfig,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		resolver:   resolver,
		extractor:  extractor,
		normalizer: normalizer,
		workspace:  ws,
		pool:       pool,
		jobRepo:    jobRepo,
		deps:       deps,
		cfg:        cfg,
		logger:     logger,
		newID: func() domain.JobID {
			return domain.JobID(domain.JobIDPrefix + uuid.New().String())
		},
	}
}

func (s *DownloadService) extractorReady() bool {
	return s.deps == nil || s.deps.IsReady(readiness.YTDLP)
}

// RunDownloadJob stages req's video in a fresh job directory and returns a
// handle to the produced file. Closing the handle deletes the file and the
// directory; on error nothing is left behind.
func (s *DownloadService) RunDownloadJob(ctx context.Context, req domain.DownloadRequest) (*workspace.Handle, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.NewJobError("", "download", domain.ErrInvalidRequest, errors.New("missing url"))
	}
	if !s.extractorReady() {
		return nil, domain.NewJobError("", "download", domain.ErrUpstreamUnavailable, errors.New("yt-dlp is not ready"))
	}

	job := domain.NewJob(s.newID(), req)
	logger := s.logger.With("job_id", job.ID, "url", req.SourceURL, "format", req.FormatSelector)

	if err := s.jobRepo.Create(ctx, job); err != nil {
		logger.Warn("failed to record job", "error", err)
	}

	fail := func(op string, kind, cause error) (*workspace.Handle, error) {
		jobErr := domain.NewJobError(job.ID, op, kind, cause)
		job.MarkFailed(domain.Detail(jobErr))
		s.saveJob(job, logger)
		logger.Error("download job failed", "op", op, "error", jobErr)
		return nil, jobErr
	}

	if s.cfg.MinFreeBytes > 0 {
		if free := s.workspace.FreeBytes(); free >= 0 && free < s.cfg.MinFreeBytes {
			return fail("check storage", domain.ErrInsufficientStorage,
				fmt.Errorf("%d bytes free, need %d", free, s.cfg.MinFreeBytes))
		}
	}

	dir, err := s.workspace.Acquire(job.ID)
	if err != nil {
		return fail("acquire workspace", domain.ErrProcessingFailed, err)
	}

	var (
		handle  *workspace.Handle
		failOp  string
		kind    error
		jobCtx  = ctx
		timeout context.CancelFunc
	)
	if s.cfg.Timeout > 0 {
		jobCtx, timeout = context.WithTimeout(ctx, s.cfg.Timeout)
		defer timeout()
	}

	err = s.pool.Do(jobCtx, func(ctx context.Context) error {
		job.MarkResolving()
		s.saveJob(job, logger)

		meta, err := s.resolver.Resolve(ctx, req.SourceURL)
		if err != nil {
			failOp, kind = "resolve metadata", domain.ErrUpstreamExtraction
			return err
		}

		safeTitle := domain.SanitizeFilename(meta.Title)
		template := filepath.Join(dir.Path(), safeTitle+"."+extPlaceholder)

		job.MarkDownloading(meta.Title)
		s.saveJob(job, logger)
		logger.Info("downloading", "title", meta.Title, "output", template)

		res, err := s.extractor.Extract(ctx, downloader.ExtractRequest{
			SourceURL:      req.SourceURL,
			FormatSelector: req.FormatSelector,
			OutputTemplate: template,
			MergeFormat:    domain.MergeContainer,
		})
		if err != nil {
			failOp, kind = "extract", domain.ErrUpstreamExtraction
			return err
		}

		path := producedPath(res, template, meta.Extension)
		if req.IsMerge() {
			path, err = s.ensureMP4(ctx, path, logger)
			if err != nil {
				failOp, kind = "normalize mp4", domain.ErrDownloadIncomplete
				return err
			}
		}

		handle, err = dir.Open(path)
		if err != nil {
			failOp, kind = "open output", domain.ErrDownloadIncomplete
			return err
		}
		return nil
	})
	if err != nil {
		dir.Release()
		if kind == nil {
			// Rejected before the task ran: caller gone, timeout or shutdown.
			failOp, kind = "wait for worker", domain.ErrUpstreamUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				kind = domain.ErrUpstreamExtraction
			}
		}
		return fail(failOp, kind, err)
	}

	job.MarkStreaming(handle.Staged())
	s.saveJob(job, logger)
	logger.Info("download staged", "file", handle.Name(), "size", handle.Staged().SizeBytes)

	handle.OnClose(func() {
		job.MarkCompleted()
		s.saveJob(job, logger)
	})
	return handle, nil
}

// producedPath decides which file the extractor produced: the reported final
// path, then the prepared filename, then the template with the extension.
func producedPath(res *downloader.ExtractResult, template, fallbackExt string) string {
	if len(res.RequestedDownloads) > 0 && res.RequestedDownloads[0].FilePath != "" {
		return res.RequestedDownloads[0].FilePath
	}
	if res.Filename != "" {
		return res.Filename
	}
	ext := res.Ext
	if ext == "" {
		ext = fallbackExt
	}
	return strings.Replace(template, extPlaceholder, ext, 1)
}

// ensureMP4 rewrites path to end in .mp4. When only the original file exists
// it is normalized into the .mp4 path first.
func (s *DownloadService) ensureMP4(ctx context.Context, path string, logger *slog.Logger) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		return path, nil
	}

	target := domain.WithExtension(path, ".mp4")
	if s.normalizer == nil || fileExists(target) || !fileExists(path) {
		return target, nil
	}

	logger.Info("merged output is not mp4", "file", filepath.Base(path))
	if err := s.normalizer.NormalizeMP4(ctx, path, target); err != nil {
		return "", fmt.Errorf("remux %s: %w", filepath.Base(path), err)
	}
	workspace.BestEffort(logger, "remove pre-remux file", func() error { return os.Remove(path) })
	return target, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// saveJob records job progress. History is bookkeeping only, so failures are
// logged and never fail the download.
func (s *DownloadService) saveJob(job *domain.Job, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobRepo.Update(ctx, job); err != nil {
		logger.Warn("failed to update job record", "status", job.Status, "error", err)
	}
}

// FormatOption is one download choice offered for a video.
type FormatOption struct {
	Label    string `json:"label"`
	Sub      string `json:"sub"`
	Color    string `json:"color"`
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
	IsAudio  bool   `json:"is_audio,omitempty"`
}

// VideoInfo is the summary returned by Info.
type VideoInfo struct {
	Title          string         `json:"title"`
	ThumbnailURL   string         `json:"thumbnail_url"`
	DurationString string         `json:"duration_string"`
	Formats        []FormatOption `json:"formats"`
}

// Info resolves url and offers the merged, single-file and audio-only
// download choices. It does not take a worker slot.
func (s *DownloadService) Info(ctx context.Context, url string) (*VideoInfo, error) {
	if url == "" {
		return nil, domain.NewJobError("", "info", domain.ErrInvalidRequest, errors.New("missing url"))
	}
	if !s.extractorReady() {
		return nil, domain.NewJobError("", "info", domain.ErrUpstreamUnavailable, errors.New("yt-dlp is not ready"))
	}

	meta, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		s.logger.Error("video info lookup failed", "url", url, "error", err)
		return nil, domain.NewJobError("", "info", domain.ErrUpstreamExtraction, err)
	}

	return buildVideoInfo(url, meta), nil
}

func buildVideoInfo(url string, meta *domain.ResolvedMetadata) *VideoInfo {
	info := &VideoInfo{
		Title:          meta.Title,
		ThumbnailURL:   meta.Thumbnail,
		DurationString: meta.DurationString,
	}

	info.Formats = append(info.Formats, FormatOption{
		Label:    "Download High Quality (MP4)",
		Sub:      "1080p+ (Merged)",
		Color:    "indigo",
		URL:      url,
		FormatID: domain.SelectorMerge,
	})

	if single, ok := meta.FirstSingleFileMP4(); ok {
		sub := single.Resolution
		if sub == "" {
			sub = "Unknown"
		}
		info.Formats = append(info.Formats, FormatOption{
			Label:    "Download Standard (MP4)",
			Sub:      sub,
			Color:    "blue",
			URL:      url,
			FormatID: single.FormatID,
		})
	}

	info.Formats = append(info.Formats, FormatOption{
		Label:    "Download Audio (MP3)",
		Sub:      "Best Quality",
		Color:    "purple",
		URL:      url,
		FormatID: domain.SelectorAudio,
		IsAudio:  true,
	})

	return info
}
