package workspace

import (
	"os"
	"sync"
	"time"

	"github.com/iconidentify/toolkit/internal/domain"
)

// Handle streams a staged file. It implements io.ReadSeekCloser; Close runs
// the deletion exactly once no matter how often it is called.
type Handle struct {
	file    *os.File
	staged  domain.StagedFile
	modTime time.Time
	dir     *Dir

	once     sync.Once
	closeErr error
	onClose  []func()
}

// Read implements io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	return h.file.Read(p)
}

// Seek implements io.Seeker.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

// Staged describes the file behind the handle.
func (h *Handle) Staged() domain.StagedFile {
	return h.staged
}

// Name returns the file's base name.
func (h *Handle) Name() string {
	return h.staged.Name()
}

// ModTime returns the file's modification time.
func (h *Handle) ModTime() time.Time {
	return h.modTime
}

// OnClose registers fn to run after the file has been deleted.
func (h *Handle) OnClose(fn func()) {
	h.onClose = append(h.onClose, fn)
}

// Close closes the file, deletes it and releases the job directory.
// Deletion failures are logged, never returned.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.closeErr = h.file.Close()
		BestEffort(h.dir.logger, "delete staged file", func() error { return os.Remove(h.staged.Path) })
		h.dir.Release()
		for _, fn := range h.onClose {
			fn()
		}
	})
	return h.closeErr
}
