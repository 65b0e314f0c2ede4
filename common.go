package amorph

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/exascience/amorph/internal"
)

// A Runtime describes the fixed pool of workers that executes parallel
// loops. It carries no mutable state of its own: it only records how many
// workers a loop spawns and whether those workers are pinned to CPUs.
//
// A Runtime is safe for concurrent use; several loops may run against the
// same Runtime at the same time, each with its own pool of workers.
type Runtime struct {
	workers int
	pinned  bool
}

// An Option configures a Runtime.
type Option func(*Runtime)

// Workers sets the number of workers that each loop spawns.
//
// Workers panics if n < 1.
func Workers(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("invalid number of workers: %v", n))
	}
	return func(rt *Runtime) {
		rt.workers = n
	}
}

// Pinned controls whether each worker locks its goroutine to an OS thread
// and binds that thread to a CPU. Pinning biases worker-local work (such
// as the staging chunks of the chunked FIFO) towards staying on one core,
// at the cost of flexibility for the Go scheduler.
func Pinned(pin bool) Option {
	return func(rt *Runtime) {
		rt.pinned = pin
	}
}

// NewRuntime returns a Runtime configured by the given options.
//
// Without options, the worker count is runtime.GOMAXPROCS(0) and workers
// are not pinned.
func NewRuntime(options ...Option) *Runtime {
	rt := &Runtime{
		workers: runtime.GOMAXPROCS(0),
	}
	for _, option := range options {
		option(rt)
	}
	return rt
}

// Workers returns the number of workers that each loop spawns.
func (rt *Runtime) Workers() int {
	return rt.workers
}

// Run spawns one goroutine per worker, invokes body(worker) in each with
// worker identifiers 0 <= worker < rt.Workers(), and returns when all of
// them have terminated. With a single unpinned worker, body(0) runs on
// the calling goroutine instead.
//
// Run is the low-level entry point used by the loop drivers in the
// parallel and speculative packages; user programs normally do not call
// it directly.
//
// If one or more invocations of body panic, the corresponding goroutines
// recover the panics, and Run panics with the left-most recovered panic
// value, extended with stack trace information.
func (rt *Runtime) Run(body func(worker int)) {
	if rt.workers == 1 && !rt.pinned {
		defer func() {
			if p := internal.WrapPanic(recover()); p != nil {
				panic(p)
			}
		}()
		body(0)
		return
	}
	panics := make([]interface{}, rt.workers)
	var wg sync.WaitGroup
	wg.Add(rt.workers)
	for w := 0; w < rt.workers; w++ {
		go func(w int) {
			defer func() {
				panics[w] = internal.WrapPanic(recover())
				wg.Done()
			}()
			if rt.pinned {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				pin(w)
			}
			body(w)
		}(w)
	}
	wg.Wait()
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
}
