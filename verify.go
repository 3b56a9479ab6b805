package tapesort

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	tserrors "github.com/tamirms/tapesort/errors"
	"github.com/tamirms/tapesort/internal/digest"
	"github.com/tamirms/tapesort/internal/tape"
)

// Digest is an order-independent fingerprint of the values in a file. Two
// files hold the same multiset of values exactly when (with overwhelming
// probability) their Digests are equal.
type Digest = digest.Multiset

// Stats describes a file of integers.
type Stats struct {
	Count    uint64 // values
	Runs     uint64 // ascending runs; 0 for an empty file
	Checksum uint64 // xxhash64 of the raw file bytes
	Digest   Digest

	// FirstDescentLine is the 1-based line of the first value smaller than
	// its predecessor, or 0 if the file is sorted.
	FirstDescentLine int64
}

// Sorted reports whether the values are in ascending order.
func (s Stats) Sorted() bool { return s.FirstDescentLine == 0 }

// Scan maps path read-only and computes its Stats. Every line must be an
// integer; blank lines are malformed.
func Scan(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Stats{}, fmt.Errorf("stat file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return Stats{}, fmt.Errorf("%w: %s", tserrors.ErrNotRegularFile, path)
	}
	if stat.Size() == 0 {
		// mmap of an empty file fails on most platforms.
		return Stats{Checksum: xxhash.Sum64(nil)}, nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("mmap file: %w", err)
	}
	adviseSequential(mm)

	st, scanErr := scanBytes(path, mm)
	if err := mm.Unmap(); err != nil {
		return Stats{}, errors.Join(scanErr, fmt.Errorf("unmap file: %w", err))
	}
	return st, scanErr
}

func scanBytes(path string, data []byte) (Stats, error) {
	st := Stats{Checksum: xxhash.Sum64(data)}
	var (
		prev int32
		line int64
	)
	for len(data) > 0 {
		var text []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			text, data = data[:i], data[i+1:]
		} else {
			text, data = data, nil
		}
		line++

		v, dummy, ok := tape.ParseLine(text)
		if !ok || dummy {
			return Stats{}, &tserrors.ParseError{Path: path, Line: line, Text: string(text)}
		}
		switch {
		case st.Count == 0:
			st.Runs = 1
		case v < prev:
			st.Runs++
			if st.FirstDescentLine == 0 {
				st.FirstDescentLine = line
			}
		}
		st.Digest.Add(v)
		st.Count++
		prev = v
	}
	return st, nil
}

// Verify scans path and fails with ErrUnsortedOutput unless its values are
// ascending.
func Verify(path string) (Stats, error) {
	st, err := Scan(path)
	if err != nil {
		return st, err
	}
	if !st.Sorted() {
		return st, fmt.Errorf("%w: %s:%d", tserrors.ErrUnsortedOutput, path, st.FirstDescentLine)
	}
	return st, nil
}
