// Bench measures sort time and peak memory of every tapesort strategy on the
// same generated input.
//
// Usage:
//
//	go run ./cmd/bench -values 10000000 -chunk 1000000 -tapes 4
//
// Flags:
//
//	-values      Number of integers to sort (default: 1,000,000)
//	-chunk       Values sorted in memory per chunk (default: 65,536)
//	-tapes       Tape count passed to every strategy (default: 3)
//	-strategies  Comma-separated strategies (default: all)
//	-seed        Generator seed (default: 1)
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/tapesort"
	"github.com/tamirms/tapesort/internal/gen"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// peakHeap samples the live heap every 10ms until stop is called.
func peakHeap() (stop func() uint64) {
	var peak atomic.Uint64
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peak.Load()
					if heapBytes <= old || peak.CompareAndSwap(old, heapBytes) {
						break
					}
				}
			}
		}
	}()
	return func() uint64 {
		close(done)
		<-finished
		return peak.Load()
	}
}

type result struct {
	strategy tapesort.Strategy
	elapsed  time.Duration
	heap     uint64
	err      error
}

func main() {
	valuesFlag := flag.Int64("values", 1_000_000, "number of integers")
	chunkFlag := flag.Int("chunk", 1<<16, "values sorted in memory per chunk")
	tapesFlag := flag.Int("tapes", 3, "tape count")
	strategiesFlag := flag.String("strategies", "polyphase,balanced,natural,straight", "strategies to run")
	seedFlag := flag.Uint("seed", 1, "generator seed")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sort phase only)")
	flag.Parse()

	tmpDir, err := os.MkdirTemp("", "tapesort-bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	source := filepath.Join(tmpDir, "input.txt")
	fmt.Println("Generating input...")
	spec := gen.Spec{Count: *valuesFlag, Seed: uint32(*seedFlag), Min: -1 << 31, Max: 1<<31 - 1}
	if err := gen.WriteFile(source, spec); err != nil {
		fmt.Printf("Generate failed: %v\n", err)
		return
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	var results []result
	for name := range strings.SplitSeq(*strategiesFlag, ",") {
		s, err := tapesort.ParseStrategy(name)
		if err != nil {
			fmt.Printf("%v\n", err)
			return
		}
		fmt.Printf("Sorting with %s...\n", s)
		results = append(results, run(s, source, tmpDir, *chunkFlag, *tapesFlag))
	}

	fmt.Printf("\n")
	fmt.Printf("╔═════════════╦══════════════╦══════════════╦═════════════╗\n")
	fmt.Printf("║ Strategy    ║ Time         ║ Throughput   ║ Peak heap   ║\n")
	fmt.Printf("╠═════════════╬══════════════╬══════════════╬═════════════╣\n")
	for _, r := range results {
		if r.err != nil {
			fmt.Printf("║ %-11s ║ failed: %v\n", r.strategy, r.err)
			continue
		}
		fmt.Printf("║ %-11s ║ %8.2f sec ║ %6.2f M/sec ║ %6.1f MB   ║\n",
			r.strategy, r.elapsed.Seconds(),
			float64(*valuesFlag)/r.elapsed.Seconds()/1_000_000,
			float64(r.heap)/1_000_000)
	}
	fmt.Printf("╚═════════════╩══════════════╩══════════════╩═════════════╝\n")
	fmt.Printf("Peak RSS: %.1f MB\n", float64(getMaxRSS())/1_000_000)
}

// run sorts a private copy of source and checks the output.
func run(s tapesort.Strategy, source, tmpDir string, chunk, tapes int) result {
	r := result{strategy: s}
	path := filepath.Join(tmpDir, s.String()+".txt")
	if r.err = copyFile(path, source); r.err != nil {
		return r
	}
	defer os.Remove(path)

	sorter, err := tapesort.New(s,
		tapesort.WithChunkSize(chunk),
		tapesort.WithTapes(tapes),
		tapesort.WithTempDir(tmpDir))
	if err != nil {
		r.err = err
		return r
	}

	runtime.GC()
	stop := peakHeap()
	start := time.Now()
	r.err = sorter.SortFile(context.Background(), path)
	r.elapsed = time.Since(start)
	r.heap = stop()
	if r.err == nil {
		_, r.err = tapesort.Verify(path)
	}
	return r
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
