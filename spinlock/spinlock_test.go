package spinlock_test

import (
	"sync"
	"testing"

	"github.com/exascience/amorph/spinlock"
)

func TestLockMutualExclusion(t *testing.T) {
	var mu spinlock.Lock
	const goroutines = 8
	const increments = 10000

	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if want := goroutines * increments; counter != want {
		t.Errorf("counter = %v, want %v", counter, want)
	}
}

func TestTryLock(t *testing.T) {
	var mu spinlock.Lock
	if !mu.TryLock() {
		t.Fatal("TryLock failed on an unlocked lock")
	}
	if mu.TryLock() {
		t.Fatal("TryLock succeeded on a held lock")
	}
	mu.Unlock()
	if !mu.TryLock() {
		t.Fatal("TryLock failed after Unlock")
	}
	mu.Unlock()
}

func TestNone(t *testing.T) {
	var mu spinlock.None
	mu.Lock()
	mu.Lock() // no-ops never block, even nested
	if !mu.TryLock() {
		t.Fatal("None.TryLock must always succeed")
	}
	mu.Unlock()
	mu.Unlock()
}
