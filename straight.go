package tapesort

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tamirms/tapesort/internal/tape"
)

// straight is the straight two-way merge: A is cut into groups of a fixed
// size dealt alternately to B and C, group pairs are merged back into A and
// the size doubles. The staging file is already sorted in blocks of the
// chunk size, so the first pass starts at that size instead of 1.
type straight struct {
	cfg          *config
	initialGroup int64
}

// valueStream reads a tape value by value, ignoring run boundaries.
type valueStream struct {
	c *tape.RunCursor
}

func (s *valueStream) next() (int32, bool) {
	for {
		if v, ok := s.c.Next(); ok {
			return v, true
		}
		if !s.c.NextRun() {
			return 0, false
		}
	}
}

// take reads one value of a group that still has *left values to give.
func (s *valueStream) take(left *int64) (int32, bool) {
	if *left == 0 {
		return 0, false
	}
	v, ok := s.next()
	if ok {
		*left--
	}
	return v, ok
}

func (s *straight) sortStaged(ctx context.Context, ws *workspace, runs int64) (string, error) {
	a := ws.staging()
	b, c := ws.path("fileB.txt"), ws.path("fileC.txt")

	size := max(s.initialGroup, 1)
	for pass := 1; ; pass++ {
		toC, err := s.split(ctx, a, b, c, size)
		if err != nil {
			return "", fmt.Errorf("split pass %d: %w", pass, err)
		}
		if toC == 0 {
			return a, nil
		}
		if err := s.merge(ctx, b, c, a, size); err != nil {
			return "", fmt.Errorf("merge pass %d: %w", pass, err)
		}
		s.cfg.logger.Debug("straight pass done",
			zap.Int("pass", pass),
			zap.Int64("group", size))
		if size > math.MaxInt64/2 {
			return "", fmt.Errorf("straight merge: group size overflow after pass %d", pass)
		}
		size *= 2
	}
}

// split deals consecutive groups of size values from a alternately to b and
// c. Returns the number of values written to c.
func (s *straight) split(ctx context.Context, a, b, c string, size int64) (int64, error) {
	src, err := tape.Open(a, s.cfg.tapeOptions())
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

	pl := &poller{ctx: ctx}
	in := &valueStream{c: src}
	var i int64
	for {
		v, ok := in.next()
		if !ok {
			break
		}
		w := wb
		if (i/size)%2 == 1 {
			w = wc
		}
		if err := w.WriteValue(v); err != nil {
			return 0, errors.Join(err, wb.Close(), wc.Close(), src.Close())
		}
		i++
		if err := pl.tick(); err != nil {
			return 0, errors.Join(err, wb.Close(), wc.Close(), src.Close())
		}
	}
	toC := wc.Values()
	return toC, errors.Join(src.Err(), wb.Close(), wc.Close(), src.Close())
}

// merge merges group pairs of b and c into a.
func (s *straight) merge(ctx context.Context, b, c, a string, size int64) error {
	cursors, err := openCursors([]string{b, c}, s.cfg.tapeOptions())
	if err != nil {
		return err
	}
	defer closeCursors(cursors)
	w, err := tape.Create(a)
	if err != nil {
		return err
	}

	pl := &poller{ctx: ctx}
	sb, sc := &valueStream{c: cursors[0]}, &valueStream{c: cursors[1]}
	for {
		leftB, leftC := size, size
		bv, bok := sb.take(&leftB)
		cv, cok := sc.take(&leftC)
		if !bok && !cok {
			break
		}
		for bok || cok {
			var v int32
			if bok && (!cok || bv <= cv) {
				v = bv
				bv, bok = sb.take(&leftB)
			} else {
				v = cv
				cv, cok = sc.take(&leftC)
			}
			if err := w.WriteValue(v); err != nil {
				return errors.Join(err, w.Close())
			}
			if err := pl.tick(); err != nil {
				return errors.Join(err, w.Close())
			}
		}
	}
	if err := errors.Join(cursors[0].Err(), cursors[1].Err()); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}
