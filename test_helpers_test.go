package tapesort

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// allStrategies lists every strategy with options that make it merge even
// small inputs.
var allStrategies = []Strategy{
	StrategyPolyphase,
	StrategyBalanced,
	StrategyNatural,
	StrategyStraight,
}

// writeInput writes content to <dir>/input.txt.
func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// formatValues renders values one per line with a trailing newline.
func formatValues(vs []int32) string {
	var b strings.Builder
	for _, v := range vs {
		b.WriteString(strconv.Itoa(int(v)))
		b.WriteByte('\n')
	}
	return b.String()
}

// readFile returns the file content as a string.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// randomValues returns n values in [-spread, spread].
func randomValues(rng *rand.Rand, n int, spread int32) []int32 {
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = int32(rng.Int64N(2*int64(spread)+1) - int64(spread))
	}
	return vs
}

// sortContent sorts content with a fresh sorter in a private directory and
// returns the result. The workspace parent must be empty afterwards.
func sortContent(t *testing.T, s Strategy, content string, opts ...Option) (string, error) {
	t.Helper()
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	path := writeInput(t, dir, content)

	sorter, err := New(s, append([]Option{WithTempDir(tmp)}, opts...)...)
	if err != nil {
		t.Fatalf("New(%s): %v", s, err)
	}
	sortErr := sorter.SortFile(context.Background(), path)

	entries, err := os.ReadDir(tmp)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("%s: workspace not removed: %v", s, entries)
	}
	siblings, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range siblings {
		if e.Name() != "input.txt" && e.Name() != "tmp" {
			t.Fatalf("%s: stray file %s next to the input", s, e.Name())
		}
	}
	return readFile(t, path), sortErr
}
