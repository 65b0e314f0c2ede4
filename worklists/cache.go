package worklists

import (
	"github.com/exascience/amorph/perworker"
)

// A CacheByIntegerMetric keeps a small fixed number of low-metric items
// per worker in front of a parent worklist.
//
// Inserts bubble through the slots: an incoming item displaces cached
// items with a larger metric, and the worst item seen during the walk is
// the one forwarded to the parent when no slot is free. The cache is
// deliberately unordered within a worker; it trades strict ordering for
// branch-free inserts, exploiting that downstream consumers only care
// about approximate priority.
type CacheByIntegerMetric[T any] struct {
	parent  Worklist[T]
	size    int
	indexer Indexer[T]
	cache   *perworker.Storage[cacheRec[T]]
}

type cacheSlot[T any] struct {
	valid bool
	item  T
}

type cacheRec[T any] struct {
	slots []cacheSlot[T]
}

// NewCacheByIntegerMetric places a cache of size slots per worker in
// front of parent, ranking items by the indexer.
func NewCacheByIntegerMetric[T any](workers int, parent Worklist[T], size int, indexer Indexer[T]) *CacheByIntegerMetric[T] {
	c := &CacheByIntegerMetric[T]{
		parent:  parent,
		size:    size,
		indexer: indexer,
	}
	c.cache = perworker.New[cacheRec[T]](workers, nil)
	return c
}

func (c *CacheByIntegerMetric[T]) slots(worker int) []cacheSlot[T] {
	rec := c.cache.Get(worker)
	if rec.slots == nil {
		rec.slots = make([]cacheSlot[T], c.size)
	}
	return rec.slots
}

// Push inserts the item into the worker's cache, displacing cached items
// with a larger metric; if every slot is occupied, the worst item seen is
// forwarded to the parent.
func (c *CacheByIntegerMetric[T]) Push(worker int, v T) {
	slots := c.slots(worker)
	metric := c.indexer(v, c.size)
	for i := range slots {
		if !slots[i].valid {
			slots[i].valid = true
			slots[i].item = v
			return
		}
		if metric < c.indexer(slots[i].item, c.size) {
			v, slots[i].item = slots[i].item, v
			metric = c.indexer(v, c.size)
		}
	}
	// v is now either an old cached entry or the pushed item, whichever
	// ranks worst.
	c.parent.Push(worker, v)
}

// Pop returns the first valid cached item, delegating to the parent when
// the cache is empty.
func (c *CacheByIntegerMetric[T]) Pop(worker int) (T, bool) {
	slots := c.slots(worker)
	for i := range slots {
		if slots[i].valid {
			slots[i].valid = false
			var zero T
			v := slots[i].item
			slots[i].item = zero
			return v, true
		}
	}
	return c.parent.Pop(worker)
}

// Empty checks the worker's cache slots and then the parent.
func (c *CacheByIntegerMetric[T]) Empty(worker int) bool {
	slots := c.slots(worker)
	for i := range slots {
		if slots[i].valid {
			return false
		}
	}
	return c.parent.Empty(worker)
}

// Aborted re-pushes the item, subject to the same bubble policy.
func (c *CacheByIntegerMetric[T]) Aborted(worker int, v T) {
	c.Push(worker, v)
}

// FillInitial bypasses the cache and seeds the parent directly. Not safe
// for concurrent use.
func (c *CacheByIntegerMetric[T]) FillInitial(items []T) {
	c.parent.FillInitial(items)
}

// Merge flushes all cached items back to the parent after the workers
// have quiesced, then forwards the teardown to the parent if it wants
// one.
func (c *CacheByIntegerMetric[T]) Merge() {
	for w := 0; w < c.cache.Workers(); w++ {
		slots := c.cache.Get(w).slots
		for i := range slots {
			if slots[i].valid {
				slots[i].valid = false
				c.parent.Push(0, slots[i].item)
			}
		}
	}
	if m, ok := c.parent.(Merger); ok {
		m.Merge()
	}
}
