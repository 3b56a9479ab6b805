// Package schedule computes polyphase run distributions.
package schedule

import "math"

// Horizon is the number of generalized Fibonacci terms generated before the
// search for a window gives up and falls back to the last window.
const Horizon = 1000

// Sequence returns the generalized Fibonacci sequence used for an order:
// order-2 zeros, a one, then every term is the sum of the previous order-1
// terms. Generation stops at Horizon terms or before a term would overflow
// int64, whichever comes first. order must be at least 2.
func Sequence(order int) []int64 {
	p := order - 1
	fib := make([]int64, 0, Horizon)
	for range order - 2 {
		fib = append(fib, 0)
	}
	fib = append(fib, 1)

	// sum holds the last p terms; it slides instead of being recomputed.
	sum := int64(0)
	for _, v := range fib[max(0, len(fib)-p):] {
		sum += v
	}
	for len(fib) < Horizon {
		next := sum
		fib = append(fib, next)
		drop := int64(0)
		if i := len(fib) - 1 - p; i >= 0 {
			drop = fib[i]
		}
		if next > math.MaxInt64-next {
			break
		}
		sum = sum + next - drop
	}
	return fib
}

// FibonacciDistribution returns how many runs, real and dummy, each of
// tapeCount working tapes must receive so a polyphase merge of totalRuns runs
// stays balanced. It slides a tapeCount-wide window over Sequence(order),
// starting at index order-1, and returns the first window whose sum reaches
// totalRuns.
//
// When no window within the horizon qualifies the last window is returned.
// Its sum is then smaller than totalRuns; callers place the surplus runs
// themselves and pay for it with extra merge rounds.
//
// tapeCount must be at least 1 and order at least 2.
func FibonacciDistribution(totalRuns int64, tapeCount, order int) []int64 {
	fib := Sequence(order)
	start := order - 1

	for s := start; s+tapeCount <= len(fib); s++ {
		window := fib[s : s+tapeCount]
		if sumSaturating(window) >= totalRuns {
			return append([]int64(nil), window...)
		}
	}

	dist := make([]int64, tapeCount)
	if len(fib) >= tapeCount {
		copy(dist, fib[len(fib)-tapeCount:])
	} else {
		copy(dist[tapeCount-len(fib):], fib)
	}
	return dist
}

// Sum adds the entries of a distribution, saturating at math.MaxInt64.
func Sum(dist []int64) int64 {
	return sumSaturating(dist)
}

func sumSaturating(vs []int64) int64 {
	var s int64
	for _, v := range vs {
		if v > math.MaxInt64-s {
			return math.MaxInt64
		}
		s += v
	}
	return s
}
