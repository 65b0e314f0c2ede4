/*
Package speculative provides the ForEach loop driver, which executes an
operator speculatively over a worklist of items.

Each worker of the runtime repeatedly pops one item and invokes the
operator with it. Pushes issued through the operator's context are
buffered and committed to the worklist only when the operator returns
nil; this is the commit point after which the new items become visible
to other workers. An operator that returns ErrAbort has its buffered
pushes discarded and its item re-enqueued for retry through the
worklist's abort path, which may bias re-delivery towards the same
worker. Any other error is fatal: the first one stops the loop and is
returned to the caller.

The worklist policy is selected by passing one of the Factory
constructors (ChunkedFIFO, FIFO, LIFO, PriQueue, OrderedByIntegerMetric,
CacheByIntegerMetric); a nil factory selects a chunked FIFO with chunks
of 64 items.

The loop terminates when every seeded or committed item has been
committed, or when a worker requests a parallel break through its
context, in which case every worker finishes its current operator
invocation and the remaining items are abandoned. Callers that break
re-gather their work for the next phase.
*/
package speculative

import (
	"errors"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/statistic"
	"github.com/exascience/amorph/worklists"
)

// ErrAbort is returned by an operator to signal that its invocation must
// be rolled back and the item retried. It never propagates out of
// ForEach. Wrapped values are recognized with errors.Is.
var ErrAbort = errors.New("speculative: abort")

// An Operator processes one work item. New items are pushed through ctx;
// the pushes take effect only when the Operator returns nil.
type Operator[T any] func(v T, ctx Context[T]) error

// ForEach seeds a worklist with the initial items and drives op over it
// with the runtime's workers until no work remains, a worker breaks the
// loop, or an operator fails.
//
// The wl factory selects the worklist policy; nil selects ChunkedFIFO
// with chunk size 64. Options attach a loop name and a statistics
// registry.
//
// ForEach returns the first fatal operator error, or nil. If one or more
// operator invocations panic, ForEach panics with the left-most
// recovered panic value, extended with stack trace information.
func ForEach[T any](rt *amorph.Runtime, initial []T, op Operator[T], wl Factory[T], options ...Option) error {
	cfg := newConfig(options)
	workers := rt.Workers()
	if wl == nil {
		wl = ChunkedFIFO[T](64)
	}
	w := wl(workers)
	w.FillInitial(initial)

	loop := statistic.NewLoop(cfg.name, workers)
	if cfg.stats != nil {
		cfg.stats.Attach(loop)
	}

	e := &executor[T]{
		wl:   w,
		op:   op,
		loop: loop,
	}
	e.outstanding.Store(int64(len(initial)))

	rt.Run(e.work)

	loop.Stop()
	if m, ok := w.(worklists.Merger); ok {
		m.Merge()
	}
	return e.err
}

type executor[T any] struct {
	wl          worklists.Worklist[T]
	op          Operator[T]
	loop        *statistic.Loop
	outstanding atomix.Int64
	brk         atomix.Bool
	stop        atomix.Bool
	errOnce     atomix.Int32
	err         error
}

func (e *executor[T]) work(worker int) {
	counters := e.loop.Get(worker)
	stealer, canSteal := e.wl.(worklists.Stealer[T])
	canSteal = canSteal && stealer.CanSteal()
	backoff := iox.Backoff{}
	ctx := &userContext[T]{executor: e, worker: worker}

	for {
		if e.stop.LoadAcquire() || e.brk.LoadAcquire() {
			return
		}
		v, ok := e.wl.Pop(worker)
		if !ok && canSteal {
			if v, ok = stealer.Steal(worker); ok {
				counters.Steals++
			}
		}
		if !ok {
			if e.outstanding.Load() == 0 {
				return
			}
			counters.EmptyPops++
			backoff.Wait()
			continue
		}
		backoff.Reset()

		ctx.buffer = ctx.buffer[:0]
		err := e.invoke(v, ctx)
		counters.Iterations++

		switch {
		case err == nil:
			// Commit point: buffered pushes become visible before the
			// item itself is retired, so the outstanding count never
			// reaches zero while committed work is still queued.
			for _, pushed := range ctx.buffer {
				e.outstanding.Add(1)
				e.wl.Push(worker, pushed)
				counters.Pushes++
			}
			e.outstanding.Add(-1)
			counters.Commits++
		case errors.Is(err, ErrAbort):
			e.wl.Aborted(worker, v)
			counters.Aborts++
		default:
			if e.errOnce.CompareAndSwapAcqRel(0, 1) {
				e.err = err
			}
			e.stop.StoreRelease(true)
			return
		}
	}
}

// invoke runs the operator, making sure a panicking operator releases the
// other workers before the panic propagates to the caller of ForEach.
func (e *executor[T]) invoke(v T, ctx *userContext[T]) error {
	defer func() {
		if p := recover(); p != nil {
			e.stop.StoreRelease(true)
			panic(p)
		}
	}()
	return e.op(v, ctx)
}
