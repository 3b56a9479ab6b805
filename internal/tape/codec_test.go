package tape

import (
	"math"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		v     int32
		dummy bool
		ok    bool
	}{
		{"42", 42, false, true},
		{"-7", -7, false, true},
		{"+3", 3, false, true},
		{"  12\t", 12, false, true},
		{"12\r", 12, false, true},
		{"0", 0, false, true},
		{"2147483647", math.MaxInt32, false, true},
		{"-2147483648", math.MinInt32, false, true},
		{"2147483648", 0, false, false},
		{"-2147483649", 0, false, false},
		{"99999999999", 0, false, false},
		{"00000000042", 42, false, true},
		{"-0000000000000001", -1, false, true},
		{"+0002147483647", math.MaxInt32, false, true},
		{"-0002147483648", math.MinInt32, false, true},
		{"0002147483648", 0, false, false},
		{"99999999999999999999999", 0, false, false},
		{"x", 0, false, false},
		{"1.5", 0, false, false},
		{"1 2", 0, false, false},
		{"-", 0, false, false},
		{"+", 0, false, false},
		{"", 0, true, true},
		{" ", 0, true, true},
		{"\t  ", 0, true, true},
	}
	for _, tc := range tests {
		v, dummy, ok := ParseLine([]byte(tc.line))
		if v != tc.v || dummy != tc.dummy || ok != tc.ok {
			t.Errorf("ParseLine(%q) = (%d, %v, %v), want (%d, %v, %v)",
				tc.line, v, dummy, ok, tc.v, tc.dummy, tc.ok)
		}
	}
}

func TestAppendValueParsesBack(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 123456, math.MaxInt32, math.MinInt32} {
		line := AppendValue(nil, v)
		if line[len(line)-1] != '\n' {
			t.Fatalf("AppendValue(%d) = %q, missing newline", v, line)
		}
		got, dummy, ok := ParseLine(line[:len(line)-1])
		if !ok || dummy || got != v {
			t.Fatalf("ParseLine(AppendValue(%d)) = (%d, %v, %v)", v, got, dummy, ok)
		}
	}
}

func TestDummyMarkerIsDummy(t *testing.T) {
	if _, dummy, ok := ParseLine([]byte(DummyMarker)); !ok || !dummy {
		t.Fatalf("DummyMarker %q does not parse as a dummy", DummyMarker)
	}
}
