package tapesort

import (
	"context"

	"github.com/tamirms/tapesort/internal/tape"
)

// contextCheckInterval is how often (in values) long loops poll for
// cancellation.
const contextCheckInterval = 10000

// poller checks a context every contextCheckInterval ticks.
type poller struct {
	ctx context.Context
	n   int
}

func (p *poller) tick() error {
	p.n++
	if p.n < contextCheckInterval {
		return nil
	}
	p.n = 0
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		return nil
	}
}

// headHeap is a min-heap of run heads: one (source, value) pair per cursor
// whose current run still has values. Uses index-based heap for O(log k)
// push/pop.
type headHeap struct {
	sources []int
	values  []int32
}

func newHeadHeap(capacity int) *headHeap {
	return &headHeap{
		sources: make([]int, 0, capacity),
		values:  make([]int32, 0, capacity),
	}
}

// clear resets the heap for reuse without allocation.
func (h *headHeap) clear() {
	h.sources = h.sources[:0]
	h.values = h.values[:0]
}

func (h *headHeap) len() int {
	return len(h.sources)
}

func (h *headHeap) push(src int, v int32) {
	h.sources = append(h.sources, src)
	h.values = append(h.values, v)
	h.up(len(h.sources) - 1)
}

// pop removes the smallest head. An empty heap here means the merge loop
// lost track of its active sources, which would silently truncate output.
func (h *headHeap) pop() (int, int32) {
	n := len(h.sources) - 1
	if n < 0 {
		panic("tapesort: merge selected from an empty set of active runs")
	}
	h.swap(0, n)
	h.down(0, n)
	src, v := h.sources[n], h.values[n]
	h.sources = h.sources[:n]
	h.values = h.values[:n]
	return src, v
}

func (h *headHeap) swap(i, j int) {
	h.sources[i], h.sources[j] = h.sources[j], h.sources[i]
	h.values[i], h.values[j] = h.values[j], h.values[i]
}

func (h *headHeap) less(i, j int) bool {
	if h.values[i] != h.values[j] {
		return h.values[i] < h.values[j]
	}
	// Equal heads: the lower source index wins.
	return h.sources[i] < h.sources[j]
}

func (h *headHeap) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *headHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2 // right child
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}

// mergeRuns merges the current run of every cursor into w as one ascending
// run. Each cursor must already be positioned with NextRun. Only the cursor
// that supplied the written value advances, so memory stays O(len(cursors))
// whatever the run lengths. Returns the number of values written; zero means
// every run was a dummy.
func mergeRuns(cursors []*tape.RunCursor, h *headHeap, w *tape.Writer, pl *poller) (int64, error) {
	h.clear()
	for i, c := range cursors {
		if v, ok := c.Next(); ok {
			h.push(i, v)
		} else if err := c.Err(); err != nil {
			return 0, err
		}
	}

	var written int64
	for h.len() > 0 {
		i, v := h.pop()
		if err := w.WriteValue(v); err != nil {
			return written, err
		}
		written++
		if err := pl.tick(); err != nil {
			return written, err
		}
		if next, ok := cursors[i].Next(); ok {
			h.push(i, next)
		} else if err := cursors[i].Err(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// openCursors opens a cursor per path. On failure the ones already open are
// closed.
func openCursors(paths []string, opts tape.Options) ([]*tape.RunCursor, error) {
	cursors := make([]*tape.RunCursor, 0, len(paths))
	for _, p := range paths {
		c, err := tape.Open(p, opts)
		if err != nil {
			closeCursors(cursors)
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

// closeCursors closes read-only cursors. Close errors on files opened for
// reading carry no data loss and are dropped.
func closeCursors(cursors []*tape.RunCursor) {
	for _, c := range cursors {
		_ = c.Close()
	}
}

// copyRun writes the rest of the cursor's current run to w.
func copyRun(c *tape.RunCursor, w *tape.Writer, pl *poller) (int64, error) {
	var n int64
	for v := range c.Values() {
		if err := w.WriteValue(v); err != nil {
			return n, err
		}
		n++
		if err := pl.tick(); err != nil {
			return n, err
		}
	}
	return n, c.Err()
}
