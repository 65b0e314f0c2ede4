package worklists_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/exascience/amorph/worklists"
)

func drain[T any](wl worklists.Worklist[T], worker int) []T {
	var out []T
	for {
		v, ok := wl.Pop(worker)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestLIFOOrder(t *testing.T) {
	wl := worklists.NewLIFO[int]()
	for _, v := range []int{1, 2, 3} {
		wl.Push(0, v)
	}
	got := drain[int](wl, 0)
	want := []int{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pops = %v, want %v", got, want)
		}
	}
	if !wl.Empty(0) {
		t.Error("drained worklist not empty")
	}
}

func TestUnlockedFIFODeterministic(t *testing.T) {
	wl := worklists.NewUnlockedFIFO[int]()
	wl.FillInitial([]int{10, 20, 30})
	for _, want := range []int{10, 20, 30} {
		v, ok := wl.Pop(0)
		if !ok || v != want {
			t.Fatalf("Pop = %v, %v, want %v, true", v, ok, want)
		}
	}
	if _, ok := wl.Pop(0); ok {
		t.Error("Pop succeeded on an empty worklist")
	}
}

func TestPriQueueGreatestFirst(t *testing.T) {
	wl := worklists.NewPriQueue(func(x, y int) bool { return x < y })
	for _, v := range []int{3, 1, 4, 1, 5} {
		wl.Push(0, v)
	}
	got := drain[int](wl, 0)
	want := []int{5, 4, 3, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pops = %v, want %v", got, want)
		}
	}
}

func TestAbortedIsPush(t *testing.T) {
	wl := worklists.NewFIFO[int]()
	wl.Aborted(0, 7)
	if v, ok := wl.Pop(0); !ok || v != 7 {
		t.Fatalf("Pop = %v, %v after Aborted, want 7, true", v, ok)
	}
}

func TestLIFOConcurrentMultiset(t *testing.T) {
	wl := worklists.NewLIFO[int]()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, v := range []int{1, 2, 3} {
			wl.Push(0, v)
		}
	}()
	go func() {
		defer wg.Done()
		for _, v := range []int{4, 5} {
			wl.Push(1, v)
		}
	}()
	wg.Wait()

	first, ok := wl.Pop(0)
	if !ok {
		t.Fatal("Pop failed on a non-empty worklist")
	}
	if first != 3 && first != 5 {
		t.Errorf("first pop = %v, want the top of one worker's pushes (3 or 5)", first)
	}
	got := append([]int{first}, drain[int](wl, 0)...)
	sort.Ints(got)
	want := []int{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained multiset = %v, want %v", got, want)
		}
	}
}

// Preservation: with concurrent pushers and poppers and no aborts, the
// multiset drained equals the multiset enqueued.
func TestPreservationUnderContention(t *testing.T) {
	wl := worklists.NewFIFO[int]()
	const pushers = 4
	const perPusher = 2500

	var popped [pushers][]int
	var wg sync.WaitGroup
	wg.Add(2 * pushers)
	for p := 0; p < pushers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPusher; i++ {
				wl.Push(p, p*perPusher+i)
			}
		}(p)
		go func(p int) {
			defer wg.Done()
			count := 0
			for count < perPusher/2 {
				if v, ok := wl.Pop(p); ok {
					popped[p] = append(popped[p], v)
					count++
				}
			}
		}(p)
	}
	wg.Wait()

	var got []int
	for p := range popped {
		got = append(got, popped[p]...)
	}
	got = append(got, drain[int](wl, 0)...)
	if len(got) != pushers*perPusher {
		t.Fatalf("drained %v items, want %v", len(got), pushers*perPusher)
	}
	sort.Ints(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("item %v delivered twice", got[i])
		}
	}
}
