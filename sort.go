package tapesort

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/armon/go-metrics"
	"go.uber.org/zap"

	tserrors "github.com/tamirms/tapesort/errors"
	"github.com/tamirms/tapesort/internal/chunk"
	"github.com/tamirms/tapesort/internal/digest"
	"github.com/tamirms/tapesort/internal/tape"
)

// Sorter sorts a file of newline-separated integers in place.
type Sorter interface {
	SortFile(ctx context.Context, path string) error
}

// FileSorter is an external sort of int32 text files over a fixed set of
// temporary tape files. It holds no per-sort state: one FileSorter may run
// any number of concurrent SortFile calls.
type FileSorter struct {
	strategy Strategy
	cfg      *config
	engine   mergeStrategy
}

var _ Sorter = (*FileSorter)(nil)

// New validates the options and returns a FileSorter for the strategy.
func New(strategy Strategy, opts ...Option) (*FileSorter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", tserrors.ErrInvalidChunkSize, cfg.chunkSize)
	}
	if cfg.compactWorkers < 1 {
		return nil, fmt.Errorf("%w: %d", tserrors.ErrInvalidWorkers, cfg.compactWorkers)
	}
	engine, err := newMergeStrategy(strategy, cfg)
	if err != nil {
		return nil, err
	}
	return &FileSorter{strategy: strategy, cfg: cfg, engine: engine}, nil
}

// Strategy returns the merge strategy the sorter runs.
func (s *FileSorter) Strategy() Strategy { return s.strategy }

// SortFile sorts the integers in path ascending and replaces the file with
// the result. The file is replaced by a rename only after the result is
// complete and synced; on any error it is left untouched.
func (s *FileSorter) SortFile(ctx context.Context, path string) (err error) {
	start := time.Now()
	logger := s.cfg.logger.With(
		zap.String("strategy", s.strategy.String()),
		zap.String("file", path))

	// The rename below replaces whatever path names, so sort the link target.
	path, err = filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", tserrors.ErrNotRegularFile, path)
	}

	ws, err := newWorkspace(s.cfg.tempDir, s.strategy)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, ws.cleanup())
	}()

	chunker := &chunk.Sorter{
		ChunkSize:     s.cfg.chunkSize,
		SkipMalformed: s.cfg.skipMalformed,
		Logger:        logger,
	}
	staged, err := chunker.SortFile(ctx, path, ws.staging())
	if err != nil {
		return err
	}

	result := ws.staging()
	var runs int64
	if staged.Values > 0 {
		rc, err := tape.CountRuns(ws.staging(), s.cfg.tapeOptions())
		if err != nil {
			return err
		}
		runs = rc.Real
		metrics.IncrCounter([]string{"tapesort", "sort", "runs"}, float32(runs))
		logger.Info("input staged",
			zap.Int64("values", staged.Values),
			zap.Int64("chunks", staged.Chunks),
			zap.Int64("skipped", staged.Skipped),
			zap.Int64("runs", runs))

		if runs > 1 {
			if result, err = s.engine.sortStaged(ctx, ws, runs); err != nil {
				return err
			}
		}
	}

	if err := s.replace(ctx, path, info.Mode().Perm(), result, staged); err != nil {
		return err
	}
	metrics.MeasureSince([]string{"tapesort", "sort", "duration"}, start)
	logger.Info("sort complete",
		zap.Int64("values", staged.Values),
		zap.Int64("runs", runs),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// replace copies the real values of the result tape to a temp file beside
// path and renames it over path.
func (s *FileSorter) replace(ctx context.Context, path string, perm os.FileMode, result string, staged chunk.Result) error {
	dir, name := filepath.Split(path)
	f, err := os.CreateTemp(dir, "."+name+".tapesort-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	w := tape.NewWriter(f)
	if err := s.copyOut(ctx, result, f, w, staged); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := w.Sync(); err != nil {
		return errors.Join(err, w.Close())
	}
	if err := f.Chmod(perm); err != nil {
		return errors.Join(fmt.Errorf("chmod output: %w", err), w.Close())
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace input: %w", err)
	}
	committed = true
	return nil
}

// copyOut writes the values of result to w, dropping dummy markers. With
// verification enabled it checks order and compares the multiset with the
// staged input.
func (s *FileSorter) copyOut(ctx context.Context, result string, f *os.File, w *tape.Writer, staged chunk.Result) error {
	if staged.Values == 0 {
		return nil
	}
	st, err := os.Stat(result)
	if err != nil {
		return fmt.Errorf("stat result tape: %w", err)
	}
	// The result tape is the output plus dummy markers, so its size bounds
	// the output.
	if err := preallocate(f, st.Size()); err != nil {
		return fmt.Errorf("preallocate output: %w", err)
	}

	c, err := tape.Open(result, s.cfg.tapeOptions())
	if err != nil {
		return err
	}
	defer c.Close()

	pl := &poller{ctx: ctx}
	var (
		d     digest.Multiset
		prev  int32
		count int64
	)
	for c.NextRun() {
		for v, ok := c.Next(); ok; v, ok = c.Next() {
			if s.cfg.verify {
				if count > 0 && v < prev {
					return fmt.Errorf("%w: value %d after %d at position %d",
						tserrors.ErrUnsortedOutput, v, prev, count+1)
				}
				d.Add(v)
			}
			prev = v
			count++
			if err := w.WriteValue(v); err != nil {
				return err
			}
			if err := pl.tick(); err != nil {
				return err
			}
		}
	}
	if err := c.Err(); err != nil {
		return err
	}
	if s.cfg.verify && d != staged.Digest {
		return fmt.Errorf("%w: staged %d values, result %d",
			tserrors.ErrDigestMismatch, staged.Digest.Count, d.Count)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Truncate(w.Bytes()); err != nil {
		return fmt.Errorf("truncate output: %w", err)
	}
	return nil
}
