//go:build linux || darwin || freebsd

package workspace

import (
	"golang.org/x/sys/unix"
)

func freeBytes(path string) int64 {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return -1
	}
	return int64(fs.Bavail) * int64(fs.Bsize)
}
