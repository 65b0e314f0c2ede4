// Package worklists provides the thread-safe worklist family that feeds
// the loop drivers in the parallel and speculative packages.
//
// A worklist is an unordered multiset of work items with best-effort
// delivery policies layered on top: LIFO, FIFO, and PriQueue wrap a
// sequential container with a spin lock; ChunkedFIFO batches items into
// per-worker staging chunks that become globally visible only when full;
// OrderedByIntegerMetric dispatches items into an array of sub-worklists
// indexed by a user priority function; and CacheByIntegerMetric keeps a
// small per-worker cache of the best items in front of any parent
// worklist.
//
// All implementations take the identifier of the calling worker as an
// explicit argument. Implementations without per-worker state ignore it.
package worklists

// A Worklist is a thread-safe multiset of work items.
//
// Push, Pop, Empty, and Aborted may be called concurrently from any
// worker, each passing its own worker identifier. FillInitial is the
// single-threaded bulk seed and must complete before workers start.
//
// Empty is best effort: concurrent pushes may falsify the result before
// the caller observes it. Loop drivers therefore detect termination with
// an outstanding-item count rather than with Empty alone.
type Worklist[T any] interface {
	// Push enqueues one item.
	Push(worker int, v T)

	// Pop dequeues one item, reporting false if none was available.
	Pop(worker int) (T, bool)

	// Empty reports whether the worklist appeared empty.
	Empty(worker int) bool

	// Aborted re-enqueues an item whose execution was rolled back. An
	// implementation is free to treat this identically to Push or to
	// bias re-delivery towards the calling worker.
	Aborted(worker int, v T)

	// FillInitial seeds the worklist before any worker runs. Not safe
	// for concurrent use.
	FillInitial(items []T)
}

// A Stealer is a worklist that can additionally surrender work that is
// not yet biased towards any worker.
type Stealer[T any] interface {
	// Steal dequeues an item from globally visible work only, leaving
	// worker-local staging untouched.
	Steal(worker int) (T, bool)

	// CanSteal reports whether Steal can ever succeed for this
	// worklist.
	CanSteal() bool
}

// A Merger is a worklist holding per-worker state that wants a teardown
// step after all workers have quiesced. Loop drivers invoke Merge once at
// the end of a loop.
type Merger interface {
	Merge()
}
