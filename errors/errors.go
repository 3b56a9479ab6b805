// Package errors defines all exported error sentinels for the tapesort library.
//
// This is the single source of truth for error values. Both the top-level
// tapesort package and internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrUnknownStrategy  = errors.New("tapesort: unknown sorting strategy")
	ErrInvalidTapeCount = errors.New("tapesort: tape count out of range")
	ErrInvalidOrder     = errors.New("tapesort: fibonacci order out of range")
	ErrInvalidChunkSize = errors.New("tapesort: chunk size must be positive")
	ErrInvalidWorkers   = errors.New("tapesort: compaction workers must be positive")
)

// Input and tape errors
var (
	ErrMalformedLine  = errors.New("tapesort: malformed line")
	ErrNotRegularFile = errors.New("tapesort: input is not a regular file")
)

// Verification errors
var (
	ErrUnsortedOutput = errors.New("tapesort: output is not sorted")
	ErrDigestMismatch = errors.New("tapesort: output digest does not match input")
)

// ParseError reports a line that is neither a 32-bit integer nor a dummy
// marker. Line is 1-based.
type ParseError struct {
	Path string
	Line int64
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s:%d: %q", ErrMalformedLine, e.Path, e.Line, e.Text)
}

// Unwrap makes errors.Is(err, ErrMalformedLine) hold for every ParseError.
func (e *ParseError) Unwrap() error {
	return ErrMalformedLine
}
