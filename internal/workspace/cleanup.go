package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
)

// BestEffort runs a cleanup step whose failure must not affect the caller.
// A missing target counts as success. Failures are logged at WARN and
// reported only through the return value.
func BestEffort(logger *slog.Logger, op string, fn func() error) bool {
	err := fn()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("best-effort cleanup failed", "op", op, "error", err)
	return false
}
