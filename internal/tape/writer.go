package tape

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

const writerBufferSize = 64 << 10

// Writer appends entries to a tape through a buffer. A tape has exactly one
// Writer at a time.
type Writer struct {
	file    *os.File
	bw      *bufio.Writer
	path    string
	scratch []byte
	lines   int64
	values  int64
	bytes   int64
	closed  bool
}

// Create truncates (or creates) the tape at path and returns a Writer for it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create tape: %w", err)
	}
	return NewWriter(f), nil
}

// NewWriter wraps an already open file. The Writer takes ownership of f.
func NewWriter(f *os.File) *Writer {
	return &Writer{
		file:    f,
		bw:      bufio.NewWriterSize(f, writerBufferSize),
		path:    f.Name(),
		scratch: make([]byte, 0, 16),
	}
}

// WriteValue appends one integer line.
func (w *Writer) WriteValue(v int32) error {
	w.scratch = AppendValue(w.scratch[:0], v)
	n, err := w.bw.Write(w.scratch)
	w.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.lines++
	w.values++
	return nil
}

// WriteDummy appends a dummy run marker.
func (w *Writer) WriteDummy() error {
	n, err := w.bw.WriteString(DummyMarker + "\n")
	w.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.lines++
	return nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int64 { return w.lines }

// Values returns the number of integer lines written so far.
func (w *Writer) Values() int64 { return w.values }

// Bytes returns the number of bytes written so far, buffered or not.
func (w *Writer) Bytes() int64 { return w.bytes }

// Path returns the file name the Writer was opened on.
func (w *Writer) Path() string { return w.path }

// Flush writes buffered lines through to the file.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return nil
}

// Sync flushes buffered lines and commits the file to stable storage.
func (w *Writer) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes and closes the file. Idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.bw.Flush()
	if flushErr != nil {
		flushErr = fmt.Errorf("flush %s: %w", w.path, flushErr)
	}
	return errors.Join(flushErr, w.file.Close())
}

// CloseAll closes every non-nil writer and joins the errors.
func CloseAll(ws []*Writer) error {
	var errs []error
	for _, w := range ws {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
