// Package parallel runs index-range work across a bounded set of goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunksPerWorker oversubscribes chunks so uneven ranges still balance.
const chunksPerWorker = 4

// Workers resolves a configured worker count; values <= 0 mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// For splits [0, n) into contiguous half-open ranges and calls fn once per range.
// Ranges never overlap, so fn may write to per-index slots without locking.
// With one worker fn runs inline on the whole range. The first error is returned.
func For(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers == 1 || n == 1 {
		return fn(0, n)
	}

	chunks := workers * chunksPerWorker
	if chunks > n {
		chunks = n
	}
	size := (n + chunks - 1) / chunks

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
