package tapesort

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/armon/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/tapesort/internal/schedule"
	"github.com/tamirms/tapesort/internal/tape"
)

// polyphase is the multiphase merge. States:
//
//	DISTRIBUTING -> MERGING(round 1..n) -> DONE
//
// DISTRIBUTING fans the staging runs over tapes[0:m-1] per the Fibonacci
// schedule, padding with dummy runs; tapes[m-1] is left out and becomes the
// first sink. Every MERGING round merges one run from each non-empty source
// into the sink until some source runs dry, then strips the consumed
// prefixes from the sources. The sink of the next round is the tape that is
// now empty. Once a single tape holds content the engine is DONE if that
// tape holds at most one real run, and otherwise distributes it again.
type polyphase struct {
	cfg       *config
	tapeCount int
	order     int
}

// distribution records what DISTRIBUTING placed on each working tape.
type distribution struct {
	schedule []int64
	real     []int64
	dummy    []int64
	overflow int64 // real runs beyond the schedule, placed round-robin
}

func (p *polyphase) sortStaged(ctx context.Context, ws *workspace, runs int64) (string, error) {
	logger := p.cfg.logger
	tapes := ws.tapes("fileB", p.tapeCount)
	source := ws.staging()

	for pass := 1; ; pass++ {
		if err := tape.Truncate(tapes...); err != nil {
			return "", err
		}
		dist, err := p.distribute(ctx, source, tapes[:len(tapes)-1], runs)
		if err != nil {
			return "", fmt.Errorf("distribute runs: %w", err)
		}
		logger.Info("runs distributed",
			zap.Int("pass", pass),
			zap.Int64("runs", runs),
			zap.Int64s("schedule", dist.schedule),
			zap.Int64s("real", dist.real),
			zap.Int64s("dummy", dist.dummy),
			zap.Int64("overflow", dist.overflow))

		last, err := p.mergeAll(ctx, tapes, len(tapes)-1)
		if err != nil {
			return "", err
		}
		if last < 0 {
			// Only dummy runs existed; cannot happen with runs >= 2.
			panic("tapesort: polyphase merge lost every real run")
		}

		rc, err := tape.CountRuns(tapes[last], p.cfg.tapeOptions())
		if err != nil {
			return "", err
		}
		if rc.Real <= 1 {
			return tapes[last], nil
		}

		// The first merge step of a pass always combines the leading real
		// runs of tapes 0 and 1, so the real run count strictly shrinks.
		if rc.Real >= runs {
			panic(fmt.Sprintf("tapesort: polyphase pass %d made no progress (%d real runs)", pass, rc.Real))
		}
		logger.Info("redistributing result tape",
			zap.Int("pass", pass),
			zap.String("tape", tapes[last]),
			zap.Int64("runs", rc.Real))
		metrics.IncrCounter([]string{"tapesort", "polyphase", "redistributions"}, 1)

		source = ws.staging()
		if err := os.Rename(tapes[last], source); err != nil {
			return "", fmt.Errorf("stage result tape: %w", err)
		}
		runs = rc.Real
	}
}

// distribute writes exactly schedule[i] runs to working tape i, taking real
// runs from source while they last and dummy markers after that. Real runs
// the schedule has no room for are appended round-robin.
func (p *polyphase) distribute(ctx context.Context, source string, working []string, runs int64) (distribution, error) {
	d := distribution{
		schedule: schedule.FibonacciDistribution(runs, len(working), p.order),
		real:     make([]int64, len(working)),
		dummy:    make([]int64, len(working)),
	}

	src, err := tape.Open(source, p.cfg.tapeOptions())
	if err != nil {
		return d, err
	}
	writers := make([]*tape.Writer, len(working))
	for i, path := range working {
		if writers[i], err = tape.Create(path); err != nil {
			return d, errors.Join(err, tape.CloseAll(writers), src.Close())
		}
	}

	pl := &poller{ctx: ctx}
	// nextReal copies the next real run of source to w. Dummy runs in the
	// source (left over from a previous pass) are dropped.
	nextReal := func(w *tape.Writer) (bool, error) {
		for src.NextRun() {
			if src.Dummy() {
				continue
			}
			_, err := copyRun(src, w, pl)
			return err == nil, err
		}
		return false, src.Err()
	}

	err = func() error {
		for i, w := range writers {
			for range d.schedule[i] {
				ok, err := nextReal(w)
				if err != nil {
					return err
				}
				if ok {
					d.real[i]++
					continue
				}
				if err := w.WriteDummy(); err != nil {
					return err
				}
				d.dummy[i]++
			}
		}
		for i := 0; ; i = (i + 1) % len(writers) {
			ok, err := nextReal(writers[i])
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			d.real[i]++
			d.overflow++
		}
	}()
	if err != nil {
		return d, errors.Join(err, tape.CloseAll(writers), src.Close())
	}
	return d, errors.Join(tape.CloseAll(writers), src.Close())
}

// mergeAll runs merge rounds until at most one tape has content and returns
// its index, or -1 when every tape is empty.
func (p *polyphase) mergeAll(ctx context.Context, tapes []string, sink int) (int, error) {
	logger := p.cfg.logger
	for round := 1; ; round++ {
		var sources, empty []int
		for i, path := range tapes {
			isEmpty, err := tape.IsEmpty(path)
			if err != nil {
				return 0, err
			}
			if isEmpty {
				empty = append(empty, i)
			} else {
				sources = append(sources, i)
			}
		}
		switch len(sources) {
		case 0:
			return -1, nil
		case 1:
			return sources[0], nil
		}
		// A finished round always leaves some source empty, so empty is
		// never nil here. Keep the designated sink while it is still empty.
		if !slices.Contains(empty, sink) {
			sink = empty[0]
		}

		start := time.Now()
		steps, err := p.mergeRound(ctx, tapes, sources, sink)
		if err != nil {
			return 0, fmt.Errorf("merge round %d: %w", round, err)
		}
		metrics.IncrCounter([]string{"tapesort", "merge", "rounds"}, 1)
		metrics.IncrCounter([]string{"tapesort", "merge", "steps"}, float32(steps))
		logger.Debug("merge round done",
			zap.Int("round", round),
			zap.Int("sink", sink),
			zap.Ints("sources", sources),
			zap.Int64("merged_runs", steps),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// mergeRound performs one MERGING round into tapes[sink] and compacts the
// sources. Returns the number of runs written to the sink.
func (p *polyphase) mergeRound(ctx context.Context, tapes []string, sources []int, sink int) (int64, error) {
	paths := make([]string, len(sources))
	for i, s := range sources {
		paths[i] = tapes[s]
	}
	cursors, err := openCursors(paths, p.cfg.tapeOptions())
	if err != nil {
		return 0, err
	}
	w, err := tape.Create(tapes[sink])
	if err != nil {
		closeCursors(cursors)
		return 0, err
	}

	pl := &poller{ctx: ctx}
	h := newHeadHeap(len(cursors))
	var steps int64
	err = func() error {
		for {
			more, err := everyHasRun(cursors)
			if err != nil || !more {
				return err
			}
			written, err := mergeRuns(cursors, h, w, pl)
			if err != nil {
				return err
			}
			// Dummy runs merge into a dummy run, keeping the sink's run count
			// in step with the schedule.
			if written == 0 {
				if err := w.WriteDummy(); err != nil {
					return err
				}
			}
			steps++
		}
	}()
	if err != nil {
		closeCursors(cursors)
		return 0, errors.Join(err, w.Close())
	}
	// The sink is complete before any source shrinks.
	if err := w.Close(); err != nil {
		closeCursors(cursors)
		return 0, err
	}

	consumed := make([]int64, len(cursors))
	for i, c := range cursors {
		consumed[i] = c.Consumed()
	}
	closeCursors(cursors)

	return steps, p.compact(ctx, paths, consumed)
}

// compact strips the consumed prefixes. With more than one compaction
// worker the tapes are rewritten concurrently; they are distinct files with
// no open handles, so the rewrites are independent.
func (p *polyphase) compact(ctx context.Context, paths []string, consumed []int64) error {
	one := func(i int) error {
		removed, err := tape.RemoveFirstNLines(paths[i], consumed[i])
		if err != nil {
			return fmt.Errorf("compact %s: %w", paths[i], err)
		}
		metrics.IncrCounter([]string{"tapesort", "compact", "lines"}, float32(consumed[i]))
		metrics.IncrCounter([]string{"tapesort", "compact", "bytes"}, float32(removed))
		return nil
	}

	if p.cfg.compactWorkers <= 1 {
		for i := range paths {
			if err := one(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.compactWorkers)
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return one(i)
		})
	}
	return g.Wait()
}

// everyHasRun positions every cursor on its next run. It reports false as
// soon as one cursor is exhausted; runs already peeked on the others are
// not consumed.
func everyHasRun(cursors []*tape.RunCursor) (bool, error) {
	for _, c := range cursors {
		if !c.NextRun() {
			return false, c.Err()
		}
	}
	return true, nil
}
