package tapesort

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	tserrors "github.com/tamirms/tapesort/errors"
)

func TestSortFileScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unsorted", "5\n3\n8\n1\n9\n2", "1\n2\n3\n5\n8\n9\n"},
		{"already_sorted", "1\n2\n3\n4\n5", "1\n2\n3\n4\n5\n"},
		{"two_runs", "3\n7\n1\n2\n9", "1\n2\n3\n7\n9\n"},
		{"empty", "", ""},
		{"single_value", "42\n", "42\n"},
		{"descending", "9\n8\n7\n6\n5\n4\n3\n2\n1\n0\n", "0\n1\n2\n3\n4\n5\n6\n7\n8\n9\n"},
		{"negatives_and_duplicates", "-1\n4\n-1\n0\n-7\n4\n", "-7\n-1\n-1\n0\n4\n4\n"},
		{"extremes", "2147483647\n-2147483648\n0\n", "-2147483648\n0\n2147483647\n"},
		{"signs_and_spaces", " +3\n-2 \n1\r\n", "-2\n1\n3\n"},
		{"leading_zeros", "00000000042\n7\n-0000000000000001\n", "-1\n7\n42\n"},
	}
	for _, s := range allStrategies {
		for _, chunk := range []int{1, 2, 1 << 20} {
			for _, tc := range tests {
				t.Run(fmt.Sprintf("%s/chunk=%d/%s", s, chunk, tc.name), func(t *testing.T) {
					got, err := sortContent(t, s, tc.input, WithChunkSize(chunk))
					if err != nil {
						t.Fatal(err)
					}
					if got != tc.want {
						t.Fatalf("output = %q, want %q", got, tc.want)
					}
				})
			}
		}
	}
}

func TestSortFileMalformedStrict(t *testing.T) {
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			const input = "5\nX\n3"
			got, err := sortContent(t, s, input, WithChunkSize(1))
			if !errors.Is(err, tserrors.ErrMalformedLine) {
				t.Fatalf("err = %v, want ErrMalformedLine", err)
			}
			var pe *tserrors.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %T, want *ParseError", err)
			}
			if pe.Line != 2 || pe.Text != "X" {
				t.Fatalf("ParseError line %d text %q, want line 2 text \"X\"", pe.Line, pe.Text)
			}
			if got != input {
				t.Fatalf("input modified on error: %q", got)
			}
		})
	}
}

func TestSortFileMalformedSkip(t *testing.T) {
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			got, err := sortContent(t, s, "5\nX\n3",
				WithChunkSize(1), WithSkipMalformed(), WithLogger(zap.New(core)))
			if err != nil {
				t.Fatal(err)
			}
			if got != "3\n5\n" {
				t.Fatalf("output = %q, want %q", got, "3\n5\n")
			}
			skipped := logs.FilterMessage("skipping malformed line").All()
			if len(skipped) != 1 {
				t.Fatalf("logged %d skips, want 1", len(skipped))
			}
			if line := skipped[0].ContextMap()["line"]; line != int64(2) {
				t.Fatalf("skip logged line %v, want 2", line)
			}
		})
	}
}

func TestSortFileIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			input := formatValues(slices.Sorted(slices.Values(randomValues(rng, 200, 50))))
			first, err := sortContent(t, s, input, WithChunkSize(7))
			if err != nil {
				t.Fatal(err)
			}
			if first != input {
				t.Fatal("sorting a sorted file changed it")
			}
		})
	}
}

func TestSortFileSingleRunSkipsMerge(t *testing.T) {
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			got, err := sortContent(t, s, "1\n2\n3\n4\n5", WithChunkSize(2), WithLogger(zap.New(core)))
			if err != nil {
				t.Fatal(err)
			}
			if got != "1\n2\n3\n4\n5\n" {
				t.Fatalf("output = %q", got)
			}
			for _, e := range logs.All() {
				if strings.Contains(e.Message, "distributed") || strings.Contains(e.Message, "pass done") {
					t.Fatalf("single run input was merged: %q", e.Message)
				}
			}
		})
	}
}

// TestSortFileRandom checks order and permutation on random inputs across
// every strategy, tape count, order and chunk size.
func TestSortFileRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, s := range allStrategies {
		for trial := range 12 {
			n := rng.IntN(400)
			spread := int32(math.MaxInt32)
			if trial%2 == 0 {
				spread = 5
			}
			values := randomValues(rng, n, spread)
			opts := []Option{WithChunkSize(1 + rng.IntN(8))}
			switch s {
			case StrategyPolyphase:
				order := 0
				if rng.IntN(2) == 0 {
					order = 2 + rng.IntN(8)
				}
				opts = append(opts, WithTapes(3+rng.IntN(4)), WithOrder(order))
			case StrategyBalanced:
				opts = append(opts, WithTapes(2+rng.IntN(4)))
			}
			if rng.IntN(2) == 0 {
				opts = append(opts, WithVerify())
			}

			t.Run(fmt.Sprintf("%s/%d/n=%d", s, trial, n), func(t *testing.T) {
				got, err := sortContent(t, s, formatValues(values), opts...)
				if err != nil {
					t.Fatal(err)
				}
				want := formatValues(slices.Sorted(slices.Values(values)))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("output mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestSortFilePolyphaseShapes(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	values := randomValues(rng, 300, 1000)
	want := formatValues(slices.Sorted(slices.Values(values)))
	for _, tapes := range []int{3, 4, 5, 8} {
		for _, order := range []int{2, 3, tapes, tapes + 3} {
			t.Run(fmt.Sprintf("tapes=%d/order=%d", tapes, order), func(t *testing.T) {
				got, err := sortContent(t, StrategyPolyphase, formatValues(values),
					WithChunkSize(1), WithTapes(tapes), WithOrder(order), WithVerify())
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Fatal("output not sorted")
				}
			})
		}
	}
}

func TestSortFileCompactionWorkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	values := randomValues(rng, 500, 1<<20)
	want := formatValues(slices.Sorted(slices.Values(values)))
	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := sortContent(t, StrategyPolyphase, formatValues(values),
				WithChunkSize(3), WithTapes(6), WithCompactionWorkers(workers))
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Fatal("output not sorted")
			}
		})
	}
}

func TestSortFileConcurrentSharedTempDir(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	sorter, err := New(StrategyPolyphase, WithChunkSize(2), WithTempDir(tmp))
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(9, 9))
	const files = 4
	paths := make([]string, files)
	wants := make([]string, files)
	for i := range files {
		values := randomValues(rng, 150, 100)
		paths[i] = filepath.Join(dir, fmt.Sprintf("in%d.txt", i))
		if err := os.WriteFile(paths[i], []byte(formatValues(values)), 0o644); err != nil {
			t.Fatal(err)
		}
		wants[i] = formatValues(slices.Sorted(slices.Values(values)))
	}

	var wg sync.WaitGroup
	errs := make([]error, files)
	for i := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sorter.SortFile(context.Background(), paths[i])
		}()
	}
	wg.Wait()

	for i := range files {
		if errs[i] != nil {
			t.Fatalf("file %d: %v", i, errs[i])
		}
		if got := readFile(t, paths[i]); got != wants[i] {
			t.Fatalf("file %d not sorted", i)
		}
	}
}

func TestSortFileKeepsPermissions(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "3\n1\n2\n")
	if err := os.Chmod(path, 0o640); err != nil {
		t.Fatal(err)
	}
	sorter, err := New(StrategyNatural, WithChunkSize(1), WithTempDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if err := sorter.SortFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode = %v, want 0640", info.Mode().Perm())
	}
}

func TestSortFileRejectsNonRegular(t *testing.T) {
	sorter, err := New(StrategyPolyphase)
	if err != nil {
		t.Fatal(err)
	}
	err = sorter.SortFile(context.Background(), t.TempDir())
	if !errors.Is(err, tserrors.ErrNotRegularFile) {
		t.Fatalf("err = %v, want ErrNotRegularFile", err)
	}
	if err := sorter.SortFile(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestSortFileThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := writeInput(t, dir, "3\n1\n2\n")
	linkDir := t.TempDir()
	link := filepath.Join(linkDir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	sorter, err := New(StrategyPolyphase, WithChunkSize(1), WithTempDir(filepath.Join(dir, "tmp")))
	if err != nil {
		t.Fatal(err)
	}
	if err := sorter.SortFile(context.Background(), link); err != nil {
		t.Fatal(err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("link replaced by %v", info.Mode())
	}
	if got := readFile(t, target); got != "1\n2\n3\n" {
		t.Fatalf("target = %q, want sorted", got)
	}
	entries, err := os.ReadDir(linkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("stray files beside link: %v", entries)
	}
}

func TestSortFileCanceled(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	input := formatValues(randomValues(rng, 3*contextCheckInterval, 1000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	path := writeInput(t, dir, input)
	sorter, err := New(StrategyPolyphase, WithChunkSize(100), WithTempDir(filepath.Join(dir, "tmp")))
	if err != nil {
		t.Fatal(err)
	}
	if err := sorter.SortFile(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if readFile(t, path) != input {
		t.Fatal("input modified after cancellation")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		opts     []Option
		want     error
	}{
		{"polyphase_two_tapes", StrategyPolyphase, []Option{WithTapes(2)}, tserrors.ErrInvalidTapeCount},
		{"polyphase_too_many_tapes", StrategyPolyphase, []Option{WithTapes(maxTapes + 1)}, tserrors.ErrInvalidTapeCount},
		{"polyphase_order_one", StrategyPolyphase, []Option{WithOrder(1)}, tserrors.ErrInvalidOrder},
		{"polyphase_order_too_big", StrategyPolyphase, []Option{WithOrder(maxOrder + 1)}, tserrors.ErrInvalidOrder},
		{"balanced_one_tape", StrategyBalanced, []Option{WithTapes(1)}, tserrors.ErrInvalidTapeCount},
		{"zero_chunk", StrategyNatural, []Option{WithChunkSize(0)}, tserrors.ErrInvalidChunkSize},
		{"zero_workers", StrategyPolyphase, []Option{WithCompactionWorkers(0)}, tserrors.ErrInvalidWorkers},
		{"unknown_strategy", Strategy(99), nil, tserrors.ErrUnknownStrategy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.strategy, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("New() err = %v, want %v", err, tc.want)
			}
		})
	}

	// Straight and natural merges always use three tapes.
	for _, s := range []Strategy{StrategyNatural, StrategyStraight} {
		if _, err := New(s, WithTapes(1)); err != nil {
			t.Fatalf("New(%s, WithTapes(1)) = %v", s, err)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name string
		want Strategy
	}{
		{"polyphase", StrategyPolyphase},
		{"Multiphase", StrategyPolyphase},
		{" balanced ", StrategyBalanced},
		{"NATURAL", StrategyNatural},
		{"straight", StrategyStraight},
	}
	for _, tc := range tests {
		got, err := ParseStrategy(tc.name)
		if err != nil || got != tc.want {
			t.Errorf("ParseStrategy(%q) = (%v, %v), want %v", tc.name, got, err, tc.want)
		}
		if got.String() != strings.ToLower(strings.TrimSpace(tc.name)) && tc.name != "Multiphase" {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}
	if _, err := ParseStrategy("bubble"); !errors.Is(err, tserrors.ErrUnknownStrategy) {
		t.Fatalf("ParseStrategy(bubble) err = %v", err)
	}
	if Strategy(99).String() != "unknown" {
		t.Fatalf("Strategy(99).String() = %q", Strategy(99).String())
	}
}
