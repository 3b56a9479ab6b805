// Package tapesort sorts files of newline-separated 32-bit integers that are
// too large for memory, using a bounded amount of RAM and a fixed number of
// temporary tape files.
//
// # Basic Usage
//
//	sorter, err := tapesort.New(tapesort.StrategyPolyphase,
//	    tapesort.WithTapes(4),
//	    tapesort.WithChunkSize(1<<20),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sorter.SortFile(ctx, "numbers.txt"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Pipeline
//
// A sort first cuts the input into sorted chunks (the staging file), then
// hands the staging runs to a merge strategy, and finally copies the single
// resulting run over the input with an atomic rename. Every tape lives in a
// private workspace directory that is removed when SortFile returns.
//
// The polyphase strategy distributes runs over m-1 tapes by a generalized
// Fibonacci schedule, padding with dummy runs, and merges into the one empty
// tape until a single run is left. Balanced, natural and straight merges are
// provided for comparison.
//
// # Package Structure
//
//   - Public API: sort.go (New, SortFile), options.go (Option, With*), verify.go (Scan, Verify)
//   - Strategies: polyphase.go, balanced.go, natural.go, straight.go, behind strategy.go
//   - Shared merge machinery: merge.go (k-way heap, run copy), workspace.go
//   - Tapes: internal/tape (RunCursor, Writer, compaction)
//   - Schedule: internal/schedule (generalized Fibonacci windows)
//   - Chunking: internal/chunk
//   - Platform: fallocate_*.go, madvise_*.go
package tapesort
