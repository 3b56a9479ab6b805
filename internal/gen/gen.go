// Package gen produces deterministic pseudo-random integer files for tests
// and benchmarks.
package gen

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// Spec describes a generated sequence. Value i is murmur3(i, Seed) folded
// into [Min, Max], so any prefix of a sequence is stable across runs.
type Spec struct {
	Count int64
	Seed  uint32
	Min   int32
	Max   int32
}

// Validate reports a range that cannot produce values.
func (s Spec) Validate() error {
	if s.Count < 0 {
		return fmt.Errorf("gen: negative count %d", s.Count)
	}
	if s.Min > s.Max {
		return fmt.Errorf("gen: min %d > max %d", s.Min, s.Max)
	}
	return nil
}

// Values yields the sequence.
func (s Spec) Values() iter.Seq[int32] {
	span := uint64(int64(s.Max)-int64(s.Min)) + 1
	return func(yield func(int32) bool) {
		var buf [8]byte
		for i := range s.Count {
			binary.LittleEndian.PutUint64(buf[:], uint64(i))
			h := murmur3.Sum64WithSeed(buf[:], s.Seed)
			if !yield(int32(int64(s.Min) + int64(h%span))) {
				return
			}
		}
	}
}

// WriteFile writes the sequence to path, one value per line.
func WriteFile(path string, s Spec) (err error) {
	if err := s.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	bw := bufio.NewWriterSize(f, 64<<10)
	line := make([]byte, 0, 16)
	for v := range s.Values() {
		line = strconv.AppendInt(line[:0], int64(v), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
