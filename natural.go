package tapesort

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tamirms/tapesort/internal/tape"
)

// natural is the natural two-way merge: split the natural runs of A
// alternately onto B and C, merge run pairs back into A, and stop once C
// receives nothing. Run boundaries come from the cursor lookahead, never
// from seeking back over a line.
type natural struct {
	cfg *config
}

func (n *natural) sortStaged(ctx context.Context, ws *workspace, runs int64) (string, error) {
	a := ws.staging()
	b, c := ws.path("fileB.txt"), ws.path("fileC.txt")

	for pass := 1; ; pass++ {
		toC, err := n.split(ctx, a, b, c)
		if err != nil {
			return "", fmt.Errorf("split pass %d: %w", pass, err)
		}
		if toC == 0 {
			return a, nil
		}
		merged, err := n.merge(ctx, b, c, a)
		if err != nil {
			return "", fmt.Errorf("merge pass %d: %w", pass, err)
		}
		n.cfg.logger.Debug("natural pass done",
			zap.Int("pass", pass),
			zap.Int64("runs", merged))
	}
}

// split alternates the runs of a between b and c and returns how many went
// to c.
func (n *natural) split(ctx context.Context, a, b, c string) (int64, error) {
	src, err := tape.Open(a, n.cfg.tapeOptions())
	if err != nil {
		return 0, err
	}
	wb, err := tape.Create(b)
	if err != nil {
		return 0, errors.Join(err, src.Close())
	}
	wc, err := tape.Create(c)
	if err != nil {
		return 0, errors.Join(err, wb.Close(), src.Close())
	}
	writers := []*tape.Writer{wb, wc}

	pl := &poller{ctx: ctx}
	var toC int64
	next := 0
	for src.NextRun() {
		if src.Dummy() {
			continue
		}
		if _, err := copyRun(src, writers[next], pl); err != nil {
			return 0, errors.Join(err, tape.CloseAll(writers), src.Close())
		}
		if next == 1 {
			toC++
		}
		next ^= 1
	}
	return toC, errors.Join(src.Err(), tape.CloseAll(writers), src.Close())
}

// merge merges run pairs of b and c into a and returns the runs written.
func (n *natural) merge(ctx context.Context, b, c, a string) (int64, error) {
	cursors, err := openCursors([]string{b, c}, n.cfg.tapeOptions())
	if err != nil {
		return 0, err
	}
	defer closeCursors(cursors)
	w, err := tape.Create(a)
	if err != nil {
		return 0, err
	}

	pl := &poller{ctx: ctx}
	h := newHeadHeap(2)
	active := make([]*tape.RunCursor, 0, 2)
	var merged int64
	for {
		active = active[:0]
		for _, cur := range cursors {
			if cur.NextRun() {
				active = append(active, cur)
			} else if err := cur.Err(); err != nil {
				return 0, errors.Join(err, w.Close())
			}
		}
		if len(active) == 0 {
			break
		}
		if _, err := mergeRuns(active, h, w, pl); err != nil {
			return 0, errors.Join(err, w.Close())
		}
		merged++
	}
	return merged, w.Close()
}
