//go:build !linux && !darwin

package tapesort

import "os"

// preallocate sets the output size. Disk blocks may not be reserved.
func preallocate(file *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return file.Truncate(size)
}
