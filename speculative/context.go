package speculative

// A Context is handed to each operator invocation. It buffers pushes
// until the commit point and carries the identity of the executing
// worker. A Context is only valid for the duration of one invocation.
//
// The sequential package provides an alternative implementation for
// single-threaded debugging runs.
type Context[T any] interface {
	// Push enqueues a new item. The push takes effect only if the
	// operator returns nil; an aborted invocation discards it.
	Push(v T)

	// BreakLoop requests early termination of the whole loop. Every
	// worker finishes its current operator invocation and exits without
	// draining the remaining items.
	BreakLoop()

	// Worker returns the identifier of the executing worker, for use
	// with per-worker facilities such as bags and counters.
	Worker() int
}

type userContext[T any] struct {
	executor *executor[T]
	worker   int
	buffer   []T
}

func (ctx *userContext[T]) Push(v T) {
	ctx.buffer = append(ctx.buffer, v)
}

func (ctx *userContext[T]) BreakLoop() {
	ctx.executor.brk.StoreRelease(true)
}

func (ctx *userContext[T]) Worker() int {
	return ctx.worker
}
