package tapesort

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tamirms/tapesort/internal/tape"
)

// balanced is the balanced multiway merge over two groups of groupSize
// tapes. Runs are dealt round-robin to the first group; each pass merges one
// run from every tape of the source group into the next tape of the other
// group, round-robin, until a pass writes a single run.
type balanced struct {
	cfg       *config
	groupSize int
}

func (b *balanced) sortStaged(ctx context.Context, ws *workspace, runs int64) (string, error) {
	from := ws.tapes("fileB", b.groupSize)
	to := ws.tapes("fileC", b.groupSize)

	if err := b.scatter(ctx, ws.staging(), from); err != nil {
		return "", fmt.Errorf("distribute runs: %w", err)
	}
	for pass := 1; ; pass++ {
		written, err := b.mergeGroup(ctx, from, to)
		if err != nil {
			return "", fmt.Errorf("merge pass %d: %w", pass, err)
		}
		b.cfg.logger.Debug("balanced pass done",
			zap.Int("pass", pass),
			zap.Int64("runs", written))
		if written <= 1 {
			return to[0], nil
		}
		from, to = to, from
	}
}

// scatter deals the runs of source round-robin over tapes.
func (b *balanced) scatter(ctx context.Context, source string, tapes []string) error {
	src, err := tape.Open(source, b.cfg.tapeOptions())
	if err != nil {
		return err
	}
	writers := make([]*tape.Writer, len(tapes))
	for i, path := range tapes {
		if writers[i], err = tape.Create(path); err != nil {
			return errors.Join(err, tape.CloseAll(writers), src.Close())
		}
	}

	pl := &poller{ctx: ctx}
	next := 0
	for src.NextRun() {
		if src.Dummy() {
			continue
		}
		if _, err := copyRun(src, writers[next], pl); err != nil {
			return errors.Join(err, tape.CloseAll(writers), src.Close())
		}
		next = (next + 1) % len(writers)
	}
	return errors.Join(src.Err(), tape.CloseAll(writers), src.Close())
}

// mergeGroup merges from into to and returns the number of runs written.
func (b *balanced) mergeGroup(ctx context.Context, from, to []string) (int64, error) {
	cursors, err := openCursors(from, b.cfg.tapeOptions())
	if err != nil {
		return 0, err
	}
	defer closeCursors(cursors)

	writers := make([]*tape.Writer, len(to))
	for i, path := range to {
		if writers[i], err = tape.Create(path); err != nil {
			return 0, errors.Join(err, tape.CloseAll(writers))
		}
	}

	pl := &poller{ctx: ctx}
	h := newHeadHeap(len(cursors))
	active := make([]*tape.RunCursor, 0, len(cursors))
	var written int64
	for dest := 0; ; dest = (dest + 1) % len(writers) {
		active = active[:0]
		for _, c := range cursors {
			if c.NextRun() {
				active = append(active, c)
			} else if err := c.Err(); err != nil {
				return 0, errors.Join(err, tape.CloseAll(writers))
			}
		}
		if len(active) == 0 {
			break
		}
		if _, err := mergeRuns(active, h, writers[dest], pl); err != nil {
			return 0, errors.Join(err, tape.CloseAll(writers))
		}
		written++
	}
	return written, tape.CloseAll(writers)
}
