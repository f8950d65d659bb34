package domain

import (
	"time"
)

// JobID is a unique identifier for a download job.
type JobID string

// JobIDPrefix starts every generated job id, and so every job directory name.
const JobIDPrefix = "job_"

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusResolving   JobStatus = "resolving"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusStreaming   JobStatus = "streaming"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// IsFinished reports whether the job reached a terminal state.
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Format selectors understood by the extractor.
const (
	// SelectorDefault is used when the caller names no format.
	SelectorDefault = "best"
	// SelectorMerge fetches the best video and audio streams and muxes them into MP4.
	SelectorMerge = "bestvideo+bestaudio/best"
	// SelectorAudio fetches the best audio-only stream.
	SelectorAudio = "bestaudio/best"
)

// MergeContainer is the container requested when streams are muxed.
const MergeContainer = "mp4"

// DownloadRequest is an accepted request to stage a video for download.
type DownloadRequest struct {
	SourceURL      string
	FormatSelector string
}

// Normalize returns a copy with the default selector applied.
func (r DownloadRequest) Normalize() DownloadRequest {
	if r.FormatSelector == "" {
		r.FormatSelector = SelectorDefault
	}
	return r
}

// Validate checks the request before any collaborator is touched.
func (r DownloadRequest) Validate() error {
	if r.SourceURL == "" {
		return ErrInvalidRequest
	}
	return nil
}

// IsMerge reports whether the request asks for merged video+audio.
func (r DownloadRequest) IsMerge() bool {
	return r.FormatSelector == SelectorMerge
}

// Job is the bookkeeping record of one download request.
type Job struct {
	ID             JobID     `json:"id"`
	SourceURL      string    `json:"source_url"`
	FormatSelector string    `json:"format_selector"`
	Status         JobStatus `json:"status"`
	Title          string    `json:"title,omitempty"`
	Filename       string    `json:"filename,omitempty"`
	SizeBytes      int64     `json:"size_bytes,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewJob creates a new queued job for a request.
func NewJob(id JobID, req DownloadRequest) *Job {
	now := time.Now()
	return &Job{
		ID:             id,
		SourceURL:      req.SourceURL,
		FormatSelector: req.FormatSelector,
		Status:         JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkResolving records that metadata resolution started.
func (j *Job) MarkResolving() {
	j.Status = JobStatusResolving
	j.UpdatedAt = time.Now()
}

// MarkDownloading records the resolved title and the start of the transfer.
func (j *Job) MarkDownloading(title string) {
	j.Title = title
	j.Status = JobStatusDownloading
	j.UpdatedAt = time.Now()
}

// MarkStreaming records the staged file handed to the client.
func (j *Job) MarkStreaming(file StagedFile) {
	j.Filename = file.Name()
	j.SizeBytes = file.SizeBytes
	j.Status = JobStatusStreaming
	j.UpdatedAt = time.Now()
}

// MarkCompleted updates the job status to completed.
func (j *Job) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.UpdatedAt = time.Now()
}

// MarkFailed updates the job status to failed with an error message.
func (j *Job) MarkFailed(err string) {
	j.Status = JobStatusFailed
	j.Error = err
	j.UpdatedAt = time.Now()
}
