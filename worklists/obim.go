package worklists

import (
	"fmt"

	"github.com/exascience/amorph/perworker"
)

// An Indexer maps an item to a bucket in [0, n-1], where n is the number
// of buckets of the worklist it is attached to. Lower buckets are drained
// first, best effort.
type Indexer[T any] func(v T, n int) int

// An OrderedByIntegerMetric dispatches each pushed item to one of range+1
// sub-worklists selected by an indexer, and drains lower buckets before
// higher ones.
//
// Each worker holds a cursor, the lowest bucket index it believes may be
// non-empty. The cursor advances monotonically during pops and is rewound
// only by a push to a lower bucket, so advancement approximates a global
// priority traversal without any global heap. Priority inversions across
// workers are permitted and bounded by the rate of lower-bucket pushes.
type OrderedByIntegerMetric[T any] struct {
	buckets []Worklist[T]
	size    int
	indexer Indexer[T]
	cursor  *perworker.Storage[int]
}

// NewOrderedByIntegerMetric returns an ordered worklist with rng+1 FIFO
// buckets for the given number of workers. The indexer must return values
// in [0, rng]; the substrate does not enforce the bound.
func NewOrderedByIntegerMetric[T any](workers, rng int, indexer Indexer[T]) *OrderedByIntegerMetric[T] {
	return NewOrderedByIntegerMetricWith(workers, rng, indexer, func() Worklist[T] {
		return NewFIFO[T]()
	})
}

// NewOrderedByIntegerMetricWith is like NewOrderedByIntegerMetric with a
// caller-supplied bucket constructor.
func NewOrderedByIntegerMetricWith[T any](
	workers, rng int,
	indexer Indexer[T],
	newBucket func() Worklist[T],
) *OrderedByIntegerMetric[T] {
	if rng < 0 {
		panic(fmt.Sprintf("invalid range: %v", rng))
	}
	o := &OrderedByIntegerMetric[T]{
		buckets: make([]Worklist[T], rng+1),
		size:    rng + 1,
		indexer: indexer,
	}
	for i := range o.buckets {
		o.buckets[i] = newBucket()
	}
	// Cursors reset to 0 at teardown so a reused worklist rescans from
	// the lowest bucket.
	o.cursor = perworker.New(workers, func(left, right *int) {
		*left, *right = 0, 0
	})
	return o
}

// Push enqueues the item into the bucket selected by the indexer and
// rewinds the calling worker's cursor if the bucket lies below it.
func (o *OrderedByIntegerMetric[T]) Push(worker int, v T) {
	index := o.indexer(v, o.size)
	o.buckets[index].Push(worker, v)
	cur := o.cursor.Get(worker)
	if *cur > index {
		*cur = index
	}
}

// Pop advances the worker's cursor from its current position and returns
// the first item found. A fully failed scan leaves the cursor out of
// range, and the next Pop wraps it back to bucket 0.
func (o *OrderedByIntegerMetric[T]) Pop(worker int) (T, bool) {
	cur := o.cursor.Get(worker)
	if *cur >= o.size { // handle out of range
		*cur = 0
	}
	v, ok := o.buckets[*cur].Pop(worker)
	for !ok && *cur < o.size {
		*cur++
		if *cur == o.size {
			break
		}
		v, ok = o.buckets[*cur].Pop(worker)
	}
	return v, ok
}

// Empty scans all buckets; it is linear in the range.
func (o *OrderedByIntegerMetric[T]) Empty(worker int) bool {
	for _, b := range o.buckets {
		if !b.Empty(worker) {
			return false
		}
	}
	return true
}

// Aborted re-enqueues the item; for this worklist it is exactly Push.
func (o *OrderedByIntegerMetric[T]) Aborted(worker int, v T) {
	o.Push(worker, v)
}

// FillInitial seeds the buckets through Push. Not safe for concurrent
// use.
func (o *OrderedByIntegerMetric[T]) FillInitial(items []T) {
	for _, v := range items {
		o.Push(0, v)
	}
}

// Merge resets all worker cursors to bucket 0.
func (o *OrderedByIntegerMetric[T]) Merge() {
	o.cursor.Merge()
}
