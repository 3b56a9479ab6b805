//go:build linux

package tapesort

import "golang.org/x/sys/unix"

// adviseSequential tells the kernel a mapping will be read front to back.
// Best-effort.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
