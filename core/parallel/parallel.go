// Package parallel splits index ranges across goroutines for estimators that
// support n_jobs.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Workers resolves an n_jobs setting to a worker count: values below zero
// mean all CPUs (-1) or all but |n_jobs|-1 CPUs, zero and one mean
// sequential execution.
func Workers(nJobs int) int {
	switch {
	case nJobs == 0 || nJobs == 1:
		return 1
	case nJobs < 0:
		n := runtime.NumCPU() + 1 + nJobs
		if n < 1 {
			return 1
		}
		return n
	default:
		return nJobs
	}
}

// Parallelize divides items into contiguous ranges, one per CPU core, and
// runs fn on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if workers > items {
		workers = items
	}
	if workers <= 1 {
		fn(0, items)
		return
	}

	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items does not exceed
// threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn for every index in [0, items) using at most workers
// goroutines and returns the first error. With a single worker indices are
// visited in order and iteration stops at the first error.
func ForEach(items, workers int, fn func(i int) error) error {
	if workers <= 1 {
		for i := 0; i < items; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < items; i++ {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
