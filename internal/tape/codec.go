// Package tape implements the sequential files a tape sort works on: the line
// codec, buffered writers, the run cursor and in-place prefix compaction.
//
// A tape is a text file with one entry per line. An entry is either a signed
// 32-bit decimal integer or a dummy marker (a line holding only whitespace),
// which stands for an empty run.
package tape

import (
	"bytes"
	"math"
	"strconv"
)

// DummyMarker is the line written for a dummy run.
const DummyMarker = " "

// ParseLine decodes one line without its terminator. Exactly one of the
// following holds on return: ok && !dummy (v is valid), ok && dummy, or !ok.
func ParseLine(line []byte) (v int32, dummy bool, ok bool) {
	b := bytes.TrimSpace(line)
	if len(b) == 0 {
		return 0, true, true
	}
	v, ok = parseInt32(b)
	return v, false, ok
}

// parseInt32 parses an optionally signed decimal. It avoids the string
// conversion strconv.ParseInt would need on every line.
func parseInt32(b []byte) (int32, bool) {
	neg := false
	switch b[0] {
	case '-':
		neg = true
		b = b[1:]
	case '+':
		b = b[1:]
	}
	if len(b) == 0 {
		return 0, false
	}
	// Leading zeros are allowed, so overflow is caught per digit.
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
		if n > math.MaxInt32+1 {
			return 0, false
		}
	}
	if neg {
		n = -n
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// AppendValue appends the decimal form of v and a newline to dst.
func AppendValue(dst []byte, v int32) []byte {
	dst = strconv.AppendInt(dst, int64(v), 10)
	return append(dst, '\n')
}
