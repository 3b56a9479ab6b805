package tape

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// RemoveFirstNLines strips the first n lines of the tape at path. The rest is
// rewritten to a sibling temp file that then replaces the original, so a
// failure leaves the tape untouched. Returns the number of bytes removed.
//
// Cost is O(file size) per call.
func RemoveFirstNLines(path string, n int64) (removed int64, err error) {
	if n <= 0 {
		return 0, nil
	}
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open tape for compaction: %w", err)
	}
	fadviseSequential(int(src.Fd()), 0, 0)

	br := bufio.NewReaderSize(src, readerBufferSize)
	for lines := int64(0); lines < n; {
		chunk, err := br.ReadSlice('\n')
		removed += int64(len(chunk))
		if err == nil {
			lines++
			continue
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			break
		}
		return 0, errors.Join(fmt.Errorf("skip %s: %w", path, err), src.Close())
	}

	// Whole tape consumed: truncating is enough.
	if _, err := br.Peek(1); err == io.EOF {
		if err := src.Close(); err != nil {
			return 0, err
		}
		return removed, os.Truncate(path, 0)
	}

	tmpPath := path + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return 0, errors.Join(fmt.Errorf("create compaction file: %w", err), src.Close())
	}
	if _, err := br.WriteTo(dst); err != nil {
		primaryErr := fmt.Errorf("copy %s: %w", path, err)
		return 0, errors.Join(primaryErr, src.Close(), dst.Close(), os.Remove(tmpPath))
	}
	// Both handles are released before the swap.
	if err := errors.Join(src.Close(), dst.Close()); err != nil {
		return 0, errors.Join(err, os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, errors.Join(fmt.Errorf("replace %s: %w", path, err), os.Remove(tmpPath))
	}
	return removed, nil
}

// IsEmpty reports whether the tape holds no lines at all. A tape holding only
// dummy markers is not empty.
func IsEmpty(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.Size() == 0, nil
}

// Truncate empties the tapes, creating any that do not exist yet.
func Truncate(paths ...string) error {
	for _, p := range paths {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("truncate tape: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
