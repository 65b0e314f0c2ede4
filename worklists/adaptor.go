package worklists

import (
	"sync"

	"github.com/exascience/amorph/spinlock"
)

// A container is a sequential multiset with the minimal surface needed by
// the adaptor: push one item, inspect the item that pop would remove, pop
// it, and report emptiness.
type container[T any] interface {
	push(v T)
	top() T
	pop()
	empty() bool
	len() int
}

// An Adaptor turns a sequential container into a worklist by wrapping
// every operation in a lock. With a spin lock it is safe under concurrent
// use from any worker; with the no-op lock the same code is the
// zero-overhead single-threaded specialization used as the intra-chunk
// container of ChunkedFIFO.
//
// Adaptors scale poorly under contention; they are building blocks and
// reference policies rather than the scheduler of choice for large loops.
type Adaptor[T any] struct {
	mu sync.Locker
	c  container[T]
}

func newAdaptor[T any](c container[T], concurrent bool) *Adaptor[T] {
	var mu sync.Locker = spinlock.None{}
	if concurrent {
		mu = new(spinlock.Lock)
	}
	return &Adaptor[T]{mu: mu, c: c}
}

// NewLIFO returns a spinlocked stack: Pop returns the most recently
// pushed item.
func NewLIFO[T any]() *Adaptor[T] { return newAdaptor[T](&stack[T]{}, true) }

// NewUnlockedLIFO returns the single-threaded specialization of NewLIFO.
func NewUnlockedLIFO[T any]() *Adaptor[T] { return newAdaptor[T](&stack[T]{}, false) }

// NewFIFO returns a spinlocked queue: Pop returns the least recently
// pushed item.
func NewFIFO[T any]() *Adaptor[T] { return newAdaptor[T](&queue[T]{}, true) }

// NewUnlockedFIFO returns the single-threaded specialization of NewFIFO.
func NewUnlockedFIFO[T any]() *Adaptor[T] { return newAdaptor[T](&queue[T]{}, false) }

// NewPriQueue returns a spinlocked binary heap under the given comparator:
// Pop returns the greatest element, that is, the item x for which
// less(x, y) holds for no held y.
func NewPriQueue[T any](less func(x, y T) bool) *Adaptor[T] {
	return newAdaptor[T](&pqueue[T]{less: less}, true)
}

// NewUnlockedPriQueue returns the single-threaded specialization of
// NewPriQueue.
func NewUnlockedPriQueue[T any](less func(x, y T) bool) *Adaptor[T] {
	return newAdaptor[T](&pqueue[T]{less: less}, false)
}

// Push enqueues one item.
func (a *Adaptor[T]) Push(worker int, v T) {
	a.mu.Lock()
	a.c.push(v)
	a.mu.Unlock()
}

// Pop dequeues one item according to the container's policy.
func (a *Adaptor[T]) Pop(worker int) (T, bool) {
	a.mu.Lock()
	if a.c.empty() {
		a.mu.Unlock()
		var zero T
		return zero, false
	}
	v := a.c.top()
	a.c.pop()
	a.mu.Unlock()
	return v, true
}

// Empty reports whether the container held no items.
func (a *Adaptor[T]) Empty(worker int) bool {
	a.mu.Lock()
	e := a.c.empty()
	a.mu.Unlock()
	return e
}

// Aborted re-enqueues the item; for adaptors this is exactly Push.
func (a *Adaptor[T]) Aborted(worker int, v T) {
	a.Push(worker, v)
}

// FillInitial seeds the container. Not safe for concurrent use.
func (a *Adaptor[T]) FillInitial(items []T) {
	for _, v := range items {
		a.c.push(v)
	}
}

// stack pops the most recently pushed item.
type stack[T any] struct {
	items []T
}

func (s *stack[T]) push(v T)    { s.items = append(s.items, v) }
func (s *stack[T]) top() T      { return s.items[len(s.items)-1] }
func (s *stack[T]) pop()        { s.items = s.items[:len(s.items)-1] }
func (s *stack[T]) empty() bool { return len(s.items) == 0 }
func (s *stack[T]) len() int    { return len(s.items) }

// queue pops the least recently pushed item. The head index avoids
// shifting; fully drained queues reset their backing slice.
type queue[T any] struct {
	items []T
	head  int
}

func (q *queue[T]) push(v T) { q.items = append(q.items, v) }
func (q *queue[T]) top() T   { return q.items[q.head] }

func (q *queue[T]) pop() {
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
}

func (q *queue[T]) empty() bool { return q.head == len(q.items) }
func (q *queue[T]) len() int    { return len(q.items) - q.head }

// pqueue is a binary max-heap with respect to less: top is the element
// that compares greatest.
type pqueue[T any] struct {
	less  func(x, y T) bool
	items []T
}

func (p *pqueue[T]) push(v T) {
	p.items = append(p.items, v)
	i := len(p.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !p.less(p.items[parent], p.items[i]) {
			break
		}
		p.items[parent], p.items[i] = p.items[i], p.items[parent]
		i = parent
	}
}

func (p *pqueue[T]) top() T { return p.items[0] }

func (p *pqueue[T]) pop() {
	last := len(p.items) - 1
	p.items[0] = p.items[last]
	var zero T
	p.items[last] = zero
	p.items = p.items[:last]
	i := 0
	for {
		largest := i
		if l := 2*i + 1; l < last && p.less(p.items[largest], p.items[l]) {
			largest = l
		}
		if r := 2*i + 2; r < last && p.less(p.items[largest], p.items[r]) {
			largest = r
		}
		if largest == i {
			return
		}
		p.items[i], p.items[largest] = p.items[largest], p.items[i]
		i = largest
	}
}

func (p *pqueue[T]) empty() bool { return len(p.items) == 0 }
func (p *pqueue[T]) len() int    { return len(p.items) }
