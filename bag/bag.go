// Package bag provides an unordered concurrent insert bag.
//
// A Bag accepts items from many workers without locking by giving each
// worker its own segment; only the owning worker appends to a segment.
// The collected items become readable once all workers have quiesced.
// Applications use bags to gather output (such as spanning-forest edges)
// and to stage the initial items of a subsequent loop.
package bag

import (
	"github.com/exascience/amorph/perworker"
)

// A Bag is an insert-only multiset with per-worker segments.
type Bag[T any] struct {
	segments *perworker.Storage[[]T]
}

// New returns an empty bag for the given number of workers.
func New[T any](workers int) *Bag[T] {
	return &Bag[T]{
		segments: perworker.New[[]T](workers, nil),
	}
}

// Push appends an item to the calling worker's segment.
func (b *Bag[T]) Push(worker int, v T) {
	seg := b.segments.Get(worker)
	*seg = append(*seg, v)
}

// Len reports the total number of items. Only meaningful after the
// workers have quiesced.
func (b *Bag[T]) Len() int {
	n := 0
	for w := 0; w < b.segments.Workers(); w++ {
		n += len(*b.segments.Get(w))
	}
	return n
}

// Slice returns all items in one slice, in unspecified order. Only
// meaningful after the workers have quiesced.
func (b *Bag[T]) Slice() []T {
	items := make([]T, 0, b.Len())
	for w := 0; w < b.segments.Workers(); w++ {
		items = append(items, *b.segments.Get(w)...)
	}
	return items
}
