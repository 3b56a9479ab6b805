//go:build linux

package tape

import "golang.org/x/sys/unix"

// fadviseSequential hints to the kernel that the tape will be read front to
// back. Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
