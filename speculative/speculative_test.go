package speculative_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/speculative"
	"github.com/exascience/amorph/statistic"
)

func TestTerminationWithoutPushes(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	const n = 100
	initial := make([]int, n)
	for i := range initial {
		initial[i] = i
	}
	var invocations int64
	err := speculative.ForEach(rt, initial, func(v int, ctx speculative.Context[int]) error {
		atomic.AddInt64(&invocations, 1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if invocations != n {
		t.Errorf("invocations = %v, want exactly %v", invocations, n)
	}
}

func TestAbortRetriesAndCommitsOnce(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	var aborted, commitsA, commitsB, attemptsA int64
	err := speculative.ForEach(rt, []string{"a", "b"}, func(v string, ctx speculative.Context[string]) error {
		if v == "a" {
			atomic.AddInt64(&attemptsA, 1)
			if atomic.CompareAndSwapInt64(&aborted, 0, 1) {
				return speculative.ErrAbort
			}
			atomic.AddInt64(&commitsA, 1)
			return nil
		}
		atomic.AddInt64(&commitsB, 1)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if attemptsA < 2 {
		t.Errorf("item a attempted %v times, want at least 2", attemptsA)
	}
	if commitsA != 1 || commitsB != 1 {
		t.Errorf("commits = %v, %v, want exactly 1 each", commitsA, commitsB)
	}
}

func TestPushesVisibleAfterCommit(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	var processed int64
	err := speculative.ForEach(rt, []int{10}, func(v int, ctx speculative.Context[int]) error {
		atomic.AddInt64(&processed, 1)
		if v > 0 {
			ctx.Push(v - 1)
			ctx.Push(-v)
		}
		return nil
	}, speculative.LIFO[int]())
	if err != nil {
		t.Fatal(err)
	}
	// Item k spawns k-1 and -k down to 0: 10 positive items spawn ten
	// negatives plus the chain 10..0.
	if want := int64(21); processed != want {
		t.Errorf("processed = %v, want %v", processed, want)
	}
}

func TestDiscardedPushesOnAbort(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	var sawPushed int64
	var once int64
	err := speculative.ForEach(rt, []int{1}, func(v int, ctx speculative.Context[int]) error {
		if v == 99 {
			atomic.AddInt64(&sawPushed, 1)
			return nil
		}
		if atomic.CompareAndSwapInt64(&once, 0, 1) {
			ctx.Push(99) // discarded with the abort
			return speculative.ErrAbort
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sawPushed != 0 {
		t.Errorf("aborted push became visible %v times", sawPushed)
	}
}

func TestFatalErrorStopsLoop(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	boom := errors.New("boom")
	initial := make([]int, 1000)
	for i := range initial {
		initial[i] = i
	}
	err := speculative.ForEach(rt, initial, func(v int, ctx speculative.Context[int]) error {
		if v == 500 {
			return boom
		}
		return nil
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("ForEach error = %v, want %v", err, boom)
	}
}

func TestBreakLoop(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(1))
	initial := make([]int, 10)
	var iterations int64
	err := speculative.ForEach(rt, initial, func(v int, ctx speculative.Context[int]) error {
		atomic.AddInt64(&iterations, 1)
		ctx.BreakLoop()
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if iterations != 1 {
		t.Errorf("iterations = %v, want 1 with a single worker breaking immediately", iterations)
	}
}

func TestOperatorPanicPropagates(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	defer func() {
		if recover() == nil {
			t.Error("ForEach must re-panic an operator panic")
		}
	}()
	_ = speculative.ForEach(rt, []int{1, 2, 3}, func(v int, ctx speculative.Context[int]) error {
		panic("operator failure")
	}, nil)
}

func TestWorkerIdentifiers(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(3))
	initial := make([]int, 300)
	var mu sync.Mutex
	seen := make(map[int]bool)
	err := speculative.ForEach(rt, initial, func(v int, ctx speculative.Context[int]) error {
		mu.Lock()
		seen[ctx.Worker()] = true
		mu.Unlock()
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for w := range seen {
		if w < 0 || w >= 3 {
			t.Errorf("worker identifier %v out of range", w)
		}
	}
}

func TestStatistics(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	registry := statistic.NewRegistry()
	const n = 50
	initial := make([]int, n)
	err := speculative.ForEach(rt, initial, func(v int, ctx speculative.Context[int]) error {
		return nil
	}, nil, speculative.Name("NoOp"), speculative.Stats(registry))
	if err != nil {
		t.Fatal(err)
	}
	report, err := registry.Report()
	if err != nil {
		t.Fatal(err)
	}
	if len(report) == 0 {
		t.Fatal("empty statistics report")
	}
}

func TestOrderedPolicyRunsInPriorityOrder(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(1))
	var order []int
	err := speculative.ForEach(rt, []int{3, 1, 2, 0}, func(v int, ctx speculative.Context[int]) error {
		order = append(order, v)
		return nil
	}, speculative.OrderedByIntegerMetric(3, func(v, buckets int) int { return v }))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("single-worker ordered run out of order: %v", order)
		}
	}
}
