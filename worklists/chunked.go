package worklists

import (
	"github.com/exascience/amorph/perworker"
)

// A ChunkedFIFO reduces lock pressure by batching items into per-worker
// chunks. Each worker owns two chunk slots: current, drained during pops,
// and next, filled during pushes. A chunk becomes visible to other workers
// only when it is full and published to the single global FIFO of chunks.
//
// Aborted items are parked in the calling worker's next chunk regardless
// of the push policy, which keeps rolled-back work local and out of reach
// of workers that would immediately re-conflict on it.
type ChunkedFIFO[T any] struct {
	chunkSize   int
	pushToLocal bool
	global      *Adaptor[*chunk[T]]
	procs       *perworker.Storage[procRec[T]]
}

// A chunk is an unshared single-threaded sequence of items, drained in
// LIFO order. size counts the items appended through pushNext, which
// publishes the chunk once size reaches chunkSize; pushLocal appends to
// the current chunk without a bound.
type chunk[T any] struct {
	items *Adaptor[T]
	size  int
}

// procRec holds one worker's chunk slots. The current and next slots are
// owned exclusively by that worker; no chunk is referenced from two slots
// at once.
type procRec[T any] struct {
	curr *chunk[T]
	next *chunk[T]
}

// NewChunkedFIFO returns a chunked FIFO for the given number of workers.
// Chunks hold chunkSize items; 64 is a reasonable default.
//
// When pushToLocal is true, pushes prefer the worker's current chunk and
// only spill into next when current is unavailable; this biases freshly
// produced work towards the producing worker. When false, every push goes
// to next and becomes visible to other workers in full-chunk batches.
func NewChunkedFIFO[T any](workers, chunkSize int, pushToLocal bool) *ChunkedFIFO[T] {
	c := &ChunkedFIFO[T]{
		chunkSize:   chunkSize,
		pushToLocal: pushToLocal,
		global:      NewFIFO[*chunk[T]](),
	}
	c.procs = perworker.New(workers, c.mergeRec)
	return c
}

// mergeRec publishes any chunks left in either record's slots so that
// no seeded or aborted item is lost at teardown. It runs only after all
// workers have quiesced.
func (c *ChunkedFIFO[T]) mergeRec(left, right *procRec[T]) {
	c.flush(left)
	c.flush(right)
}

func (c *ChunkedFIFO[T]) flush(rec *procRec[T]) {
	if rec.curr != nil && !rec.curr.items.Empty(0) {
		c.global.Push(0, rec.curr)
	}
	rec.curr = nil
	if rec.next != nil && !rec.next.items.Empty(0) {
		c.global.Push(0, rec.next)
	}
	rec.next = nil
}

func (c *ChunkedFIFO[T]) newChunk() *chunk[T] {
	return &chunk[T]{items: NewUnlockedLIFO[T]()}
}

// pushNext appends to the worker's next chunk, publishing it to the
// global FIFO when full.
func (c *ChunkedFIFO[T]) pushNext(worker int, rec *procRec[T], v T) {
	if rec.next == nil {
		rec.next = c.newChunk()
	}
	if rec.next.size == c.chunkSize {
		c.global.Push(worker, rec.next)
		rec.next = c.newChunk()
	}
	rec.next.items.Push(worker, v)
	rec.next.size++
}

// pushLocal appends to the worker's current chunk, filling it first if
// absent, and falls back to pushNext when no current chunk can be had.
func (c *ChunkedFIFO[T]) pushLocal(worker int, rec *procRec[T], v T) {
	if rec.curr == nil {
		c.fillCurr(worker, rec)
	}
	if rec.curr != nil {
		rec.curr.items.Push(worker, v)
	} else {
		c.pushNext(worker, rec, v)
	}
}

// fillCurr takes a chunk from the global FIFO, or adopts the worker's own
// next chunk when the global FIFO is empty. curr may still be nil
// afterwards.
func (c *ChunkedFIFO[T]) fillCurr(worker int, rec *procRec[T]) {
	if ch, ok := c.global.Pop(worker); ok {
		rec.curr = ch
		return
	}
	rec.curr = rec.next
	rec.next = nil
}

// Push enqueues one item according to the push policy.
func (c *ChunkedFIFO[T]) Push(worker int, v T) {
	rec := c.procs.Get(worker)
	if c.pushToLocal {
		c.pushLocal(worker, rec, v)
	} else {
		c.pushNext(worker, rec, v)
	}
}

// Pop dequeues one item from the worker's current chunk, refilling it
// from the global FIFO or from the worker's own next chunk as needed.
func (c *ChunkedFIFO[T]) Pop(worker int) (T, bool) {
	rec := c.procs.Get(worker)
	for {
		if rec.curr == nil {
			c.fillCurr(worker, rec)
		}
		if rec.curr == nil {
			var zero T
			return zero, false
		}
		if v, ok := rec.curr.items.Pop(worker); ok {
			return v, true
		}
		rec.curr = nil
	}
}

// Empty reports true only when the worker's own chunks and the global
// FIFO all appeared empty. Concurrent pushes by other workers may falsify
// the result before the caller reads it.
func (c *ChunkedFIFO[T]) Empty(worker int) bool {
	rec := c.procs.Get(worker)
	if rec.curr != nil && !rec.curr.items.Empty(worker) {
		return false
	}
	if rec.next != nil && !rec.next.items.Empty(worker) {
		return false
	}
	return c.global.Empty(worker)
}

// Aborted parks the item in the worker's next chunk regardless of the
// push policy.
func (c *ChunkedFIFO[T]) Aborted(worker int, v T) {
	rec := c.procs.Get(worker)
	c.pushNext(worker, rec, v)
}

// FillInitial seeds the worklist, publishing chunks as they fill and
// queueing the final partial chunk so that all items are immediately
// visible to all workers. Not safe for concurrent use.
func (c *ChunkedFIFO[T]) FillInitial(items []T) {
	rec := c.procs.Get(0)
	for _, v := range items {
		c.pushNext(0, rec, v)
	}
	if rec.next != nil {
		c.global.Push(0, rec.next)
		rec.next = nil
	}
}

// Steal hands out an item from globally published chunks only, leaving
// every worker's staging chunks untouched. The stolen chunk becomes the
// calling worker's current chunk when that worker has none; otherwise a
// non-empty remainder is published to the global FIFO again.
func (c *ChunkedFIFO[T]) Steal(worker int) (T, bool) {
	rec := c.procs.Get(worker)
	for {
		ch, ok := c.global.Pop(worker)
		if !ok {
			var zero T
			return zero, false
		}
		if v, ok := ch.items.Pop(worker); ok {
			if rec.curr == nil {
				rec.curr = ch
			} else if !ch.items.Empty(worker) {
				c.global.Push(worker, ch)
			}
			return v, true
		}
	}
}

// CanSteal reports that ChunkedFIFO supports stealing.
func (c *ChunkedFIFO[T]) CanSteal() bool { return true }

// Merge publishes chunks left in per-worker slots after the loop has
// quiesced, so that a subsequent drain observes every remaining item.
func (c *ChunkedFIFO[T]) Merge() {
	c.procs.Merge()
}

// queuedChunks reports the number of chunks in the global FIFO; test hook.
func (c *ChunkedFIFO[T]) queuedChunks() int {
	c.global.mu.Lock()
	n := c.global.c.len()
	c.global.mu.Unlock()
	return n
}
