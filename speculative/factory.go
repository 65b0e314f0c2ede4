package speculative

import (
	"github.com/exascience/amorph/worklists"
)

// A Factory constructs the worklist of a loop once the worker count is
// known. The constructors below cover the policies of the worklists
// package; applications with custom compositions pass their own Factory.
type Factory[T any] func(workers int) worklists.Worklist[T]

// ChunkedFIFO selects a chunked FIFO with the given chunk size and
// worker-local pushes.
func ChunkedFIFO[T any](chunkSize int) Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewChunkedFIFO[T](workers, chunkSize, true)
	}
}

// LIFO selects a single spinlocked stack.
func LIFO[T any]() Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewLIFO[T]()
	}
}

// FIFO selects a single spinlocked queue.
func FIFO[T any]() Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewFIFO[T]()
	}
}

// PriQueue selects a single spinlocked priority queue under less.
func PriQueue[T any](less func(x, y T) bool) Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewPriQueue(less)
	}
}

// OrderedByIntegerMetric selects a priority-bucketed worklist with rng+1
// FIFO buckets.
func OrderedByIntegerMetric[T any](rng int, indexer worklists.Indexer[T]) Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewOrderedByIntegerMetric(workers, rng, indexer)
	}
}

// CacheByIntegerMetric selects a per-worker cache of size slots in front
// of the worklist built by parent.
func CacheByIntegerMetric[T any](size int, indexer worklists.Indexer[T], parent Factory[T]) Factory[T] {
	return func(workers int) worklists.Worklist[T] {
		return worklists.NewCacheByIntegerMetric(workers, parent(workers), size, indexer)
	}
}
