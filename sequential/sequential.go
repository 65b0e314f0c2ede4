// Package sequential provides sequential implementations of the loop
// drivers from the parallel and speculative packages. This is useful for
// testing and debugging.
//
// It is not recommended to use the implementations of this package for
// any other purpose, because they are almost certainly too inefficient
// for regular parallel workloads.
package sequential

import (
	"errors"

	"github.com/exascience/amorph/speculative"
)

type sequentialContext[T any] struct {
	buffer []T
	broke  bool
}

func (ctx *sequentialContext[T]) Push(v T)    { ctx.buffer = append(ctx.buffer, v) }
func (ctx *sequentialContext[T]) BreakLoop()  { ctx.broke = true }
func (ctx *sequentialContext[T]) Worker() int { return 0 }

// ForEach executes op over the initial items and their committed pushes
// in FIFO order on the calling goroutine, with the same commit, abort,
// and break semantics as speculative.ForEach. Aborted items are
// re-enqueued at the tail and retried.
func ForEach[T any](initial []T, op speculative.Operator[T]) error {
	queue := append([]T(nil), initial...)
	ctx := &sequentialContext[T]{}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		ctx.buffer = ctx.buffer[:0]
		err := op(v, ctx)
		switch {
		case err == nil:
			queue = append(queue, ctx.buffer...)
		case errors.Is(err, speculative.ErrAbort):
			queue = append(queue, v)
		default:
			return err
		}
		if ctx.broke {
			return nil
		}
	}
	return nil
}

// DoAll invokes op for each item in order on the calling goroutine. An
// operator error terminates the loop immediately and is returned;
// remaining items are not invoked.
func DoAll[T any](items []T, op func(worker int, v T) error) error {
	for _, v := range items {
		if err := op(0, v); err != nil {
			return err
		}
	}
	return nil
}
