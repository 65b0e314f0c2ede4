// Package spinlock provides the one-word busy-wait lock used by the
// worklist implementations.
//
// Two types implement the same locking surface: Lock, which spins with a
// CPU pause hint and yields to the scheduler under sustained contention,
// and None, whose operations are no-ops. Passing None where a locker is
// expected yields a zero-overhead single-threaded specialization of the
// same container code, which is how the chunked FIFO obtains its unshared
// intra-chunk containers.
package spinlock

import (
	"runtime"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// yieldAfter bounds the number of consecutive pause iterations before the
// spinning goroutine yields to the Go scheduler.
const yieldAfter = 64

// A Lock is a one-word test-and-set spin lock. The zero value is an
// unlocked Lock.
//
// Acquisitions must not be nested on the same Lock by the same worker;
// a nested Lock call spins forever.
type Lock struct {
	state atomix.Int32
}

// Lock acquires l, spinning until it is available. Repeated failures
// insert CPU pause hints and eventually yield to the scheduler.
func (l *Lock) Lock() {
	sw := spin.Wait{}
	for tries := 0; ; {
		if l.TryLock() {
			return
		}
		for l.state.LoadRelaxed() != 0 {
			sw.Once()
			tries++
			if tries >= yieldAfter {
				runtime.Gosched()
				tries = 0
			}
		}
	}
}

// TryLock attempts to acquire l without spinning and reports whether it
// succeeded.
func (l *Lock) TryLock() bool {
	return l.state.LoadRelaxed() == 0 && l.state.CompareAndSwapAcqRel(0, 1)
}

// Unlock releases l with a release store. It must only be called by the
// holder of the lock.
func (l *Lock) Unlock() {
	l.state.StoreRelease(0)
}

// None is the no-op specialization of Lock for containers that are only
// ever touched by a single worker.
type None struct{}

// Lock is a no-op.
func (None) Lock() {}

// TryLock always succeeds.
func (None) TryLock() bool { return true }

// Unlock is a no-op.
func (None) Unlock() {}
