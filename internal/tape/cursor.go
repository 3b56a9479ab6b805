package tape

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"os"

	"go.uber.org/zap"

	tserrors "github.com/tamirms/tapesort/errors"
)

const (
	readerBufferSize = 64 << 10

	// maxLineLength bounds a single line. Anything longer cannot be an int32
	// and fails the scan instead of growing the buffer without limit.
	maxLineLength = 1 << 20
)

// Options controls how a RunCursor treats lines it cannot decode.
type Options struct {
	// SkipMalformed drops undecodable lines with a warning instead of
	// failing with *errors.ParseError.
	SkipMalformed bool
	Logger        *zap.Logger
}

type lookahead uint8

const (
	laNone lookahead = iota
	laValue
	laDummy
)

// RunCursor reads a tape one run at a time. A run ends at a strict descent,
// at a dummy marker or at end of file. The entry that ends a run is kept as
// lookahead and becomes the head of the next run, so runs are never split
// across calls and nothing is ever buffered beyond that single entry.
//
// A RunCursor owns its lookahead; two cursors over the same file never share
// state. Not safe for concurrent use.
type RunCursor struct {
	file *os.File
	sc   *bufio.Scanner
	path string
	opts Options

	linesRead int64
	la        lookahead
	laValue   int32

	open    bool // positioned on a run that is not drained yet
	dummy   bool
	started bool
	prev    int32

	eof bool
	err error
}

// Open opens the tape at path for sequential run reads.
func Open(path string, opts Options) (*RunCursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tape: %w", err)
	}
	fadviseSequential(int(f.Fd()), 0, 0)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, readerBufferSize), maxLineLength)
	return &RunCursor{
		file: f,
		sc:   sc,
		path: path,
		opts: opts,
	}, nil
}

// NextRun positions the cursor on the next run, draining whatever is left
// of the current one. It only peeks at the run's first entry: if the caller
// abandons the run without calling Next, the entry is not counted as
// consumed. Returns false once the tape is exhausted or an error occurred.
func (c *RunCursor) NextRun() bool {
	if c.open {
		for {
			if _, ok := c.Next(); !ok {
				break
			}
		}
	}
	if c.err != nil {
		return false
	}
	if c.la == laNone {
		v, dummy, ok := c.readEntry()
		if !ok {
			return false
		}
		c.stash(v, dummy)
	}
	c.open = true
	c.dummy = c.la == laDummy
	c.started = false
	return true
}

// Next returns the next value of the current run. The second result is false
// when the run is over, including for a dummy run on the first call.
func (c *RunCursor) Next() (int32, bool) {
	if !c.open {
		return 0, false
	}
	// A lookahead only survives while the run has not started: NextRun
	// leaves one behind, and a mid-run stash closes the run.
	switch c.la {
	case laValue:
		v := c.laValue
		c.la = laNone
		c.started = true
		c.prev = v
		return v, true
	case laDummy:
		c.la = laNone
		c.open = false
		return 0, false
	}
	v, dummy, ok := c.readEntry()
	if !ok {
		c.open = false
		return 0, false
	}
	if dummy || v < c.prev {
		c.stash(v, dummy)
		c.open = false
		return 0, false
	}
	c.prev = v
	return v, true
}

// Values returns the remaining values of the current run as a sequence.
// The sequence is single-use: it advances the cursor.
func (c *RunCursor) Values() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for {
			v, ok := c.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Dummy reports whether the current run is a dummy run.
func (c *RunCursor) Dummy() bool { return c.dummy }

// Consumed returns the number of lines read from the start of the tape,
// excluding the lookahead entry, which belongs to a run not yet taken.
func (c *RunCursor) Consumed() int64 {
	if c.la != laNone {
		return c.linesRead - 1
	}
	return c.linesRead
}

// Path returns the tape file name.
func (c *RunCursor) Path() string { return c.path }

// Err returns the first read or parse error.
func (c *RunCursor) Err() error { return c.err }

// Close releases the file. Idempotent.
func (c *RunCursor) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func (c *RunCursor) stash(v int32, dummy bool) {
	if dummy {
		c.la = laDummy
		return
	}
	c.la = laValue
	c.laValue = v
}

// readEntry returns the next decodable line. Malformed lines either stop
// the cursor with a ParseError or are skipped, depending on Options.
func (c *RunCursor) readEntry() (v int32, dummy bool, ok bool) {
	for {
		if c.eof || c.err != nil {
			return 0, false, false
		}
		if !c.sc.Scan() {
			c.eof = true
			if err := c.sc.Err(); err != nil {
				c.err = fmt.Errorf("read %s: %w", c.path, err)
			}
			return 0, false, false
		}
		c.linesRead++
		line := c.sc.Bytes()
		v, dummy, ok = ParseLine(line)
		if ok {
			return v, dummy, true
		}
		text := string(line)
		if !c.opts.SkipMalformed {
			c.err = &tserrors.ParseError{Path: c.path, Line: c.linesRead, Text: text}
			return 0, false, false
		}
		c.opts.Logger.Warn("skipping malformed line",
			zap.String("tape", c.path),
			zap.Int64("line", c.linesRead),
			zap.String("text", text))
	}
}

// RunCount holds the runs found on a tape.
type RunCount struct {
	Real  int64
	Dummy int64
}

// Total returns real plus dummy runs.
func (rc RunCount) Total() int64 { return rc.Real + rc.Dummy }

// CountRuns scans the tape at path with a fresh cursor. Repeated scans of an
// unchanged file always return the same partition.
func CountRuns(path string, opts Options) (RunCount, error) {
	c, err := Open(path, opts)
	if err != nil {
		return RunCount{}, err
	}
	var rc RunCount
	for c.NextRun() {
		if c.Dummy() {
			rc.Dummy++
		} else {
			rc.Real++
		}
	}
	return rc, errors.Join(c.Err(), c.Close())
}
