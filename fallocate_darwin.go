//go:build darwin

package tapesort

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for the output with F_PREALLOCATE.
func preallocate(file *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst); err != nil {
		return unix.Ftruncate(int(file.Fd()), size)
	}
	return nil
}
