package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidRequest is returned when caller input is missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamUnavailable is returned when a dependent service or model is not ready yet.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrUpstreamExtraction is returned when the metadata or download call fails.
	ErrUpstreamExtraction = errors.New("upstream extraction failed")

	// ErrDownloadIncomplete is returned when a reported-successful download left no file behind.
	ErrDownloadIncomplete = errors.New("download incomplete")

	// ErrProcessingFailed is returned when an external processor rejects otherwise valid input.
	ErrProcessingFailed = errors.New("processing failed")

	// ErrInsufficientStorage is returned when the working directory lacks free space.
	ErrInsufficientStorage = errors.New("insufficient storage space")

	// ErrJobNotFound is returned when a job record cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// JobError wraps a failure with job context. Kind is one of the sentinel
// errors above; Err is the underlying cause and may be nil.
type JobError struct {
	JobID JobID
	Op    string
	Kind  error
	Err   error
}

func (e *JobError) Error() string {
	msg := e.Op
	if e.JobID != "" {
		msg += " [" + e.JobID.String() + "]"
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *JobError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewJobError creates a new JobError.
func NewJobError(jobID JobID, op string, kind, err error) *JobError {
	return &JobError{
		JobID: jobID,
		Op:    op,
		Kind:  kind,
		Err:   err,
	}
}

// Detail returns the message shown to HTTP callers: the cause when there is
// one, otherwise the kind.
func Detail(err error) string {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		if jobErr.Err != nil {
			return jobErr.Kind.Error() + ": " + jobErr.Err.Error()
		}
		return jobErr.Kind.Error()
	}
	return err.Error()
}
