// Package chunk bounds the memory of a sort by ordering fixed-size blocks of
// the raw input in RAM. Every block becomes one ascending run of the staging
// file, so the tape phase starts from few long runs instead of many short
// ones.
package chunk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	tserrors "github.com/tamirms/tapesort/errors"
	"github.com/tamirms/tapesort/internal/digest"
	"github.com/tamirms/tapesort/internal/tape"
)

const (
	// contextCheckInterval is how often (in lines) to poll for cancellation.
	contextCheckInterval = 10000

	maxLineLength = 1 << 20
)

// Sorter splits an input file into sorted blocks of at most ChunkSize values.
type Sorter struct {
	ChunkSize     int
	SkipMalformed bool
	Logger        *zap.Logger
}

// Result summarizes a chunking pass.
type Result struct {
	Values  int64
	Chunks  int64
	Skipped int64
	Digest  digest.Multiset
}

// SortFile reads inputPath, which must hold one integer per line, and writes
// outputPath as a concatenation of sorted blocks. Input is never modified.
// Blank input lines are malformed: only tapes carry dummy markers.
func (s *Sorter) SortFile(ctx context.Context, inputPath, outputPath string) (Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.ChunkSize <= 0 {
		return Result{}, tserrors.ErrInvalidChunkSize
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := tape.Create(outputPath)
	if err != nil {
		return Result{}, err
	}

	res, err := s.sortInto(ctx, logger, in, inputPath, out)
	if err != nil {
		return Result{}, errors.Join(err, out.Close())
	}
	if err := out.Close(); err != nil {
		return Result{}, err
	}
	logger.Debug("input chunked",
		zap.Int64("values", res.Values),
		zap.Int64("chunks", res.Chunks),
		zap.Int64("skipped", res.Skipped))
	return res, nil
}

func (s *Sorter) sortInto(ctx context.Context, logger *zap.Logger, in *os.File, inputPath string, out *tape.Writer) (Result, error) {
	var res Result
	// Grow on demand so small inputs never pay for a full chunk.
	buf := make([]int32, 0, min(s.ChunkSize, 1<<16))

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		slices.Sort(buf)
		for _, v := range buf {
			if err := out.WriteValue(v); err != nil {
				return err
			}
		}
		res.Chunks++
		buf = buf[:0]
		return nil
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineLength)
	var lineNo int64
	for sc.Scan() {
		lineNo++
		if lineNo%contextCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			default:
			}
		}

		v, dummy, ok := tape.ParseLine(sc.Bytes())
		if !ok || dummy {
			text := sc.Text()
			if !s.SkipMalformed {
				return Result{}, &tserrors.ParseError{Path: inputPath, Line: lineNo, Text: text}
			}
			logger.Warn("skipping malformed line",
				zap.String("path", inputPath),
				zap.Int64("line", lineNo),
				zap.String("text", text))
			res.Skipped++
			continue
		}

		buf = append(buf, v)
		res.Values++
		res.Digest.Add(v)
		if len(buf) == s.ChunkSize {
			if err := flush(); err != nil {
				return Result{}, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("read input: %w", err)
	}
	if err := flush(); err != nil {
		return Result{}, err
	}
	return res, nil
}
