//go:build linux

package tapesort

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for the output so a full disk fails the
// sort before the input is replaced. Filesystems without fallocate (NFS,
// tmpfs on old kernels) fall back to ftruncate.
func preallocate(file *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	if err := unix.Fallocate(int(file.Fd()), 0, 0, size); err != nil {
		return unix.Ftruncate(int(file.Fd()), size)
	}
	return nil
}
