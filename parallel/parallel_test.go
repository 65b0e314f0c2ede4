package parallel_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/exascience/amorph/parallel"
)

func TestDoLeftmostError(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	err := parallel.Do(
		func() error { return nil },
		func() error { return first },
		func() error { return second },
	)
	if err != first {
		t.Errorf("Do error = %v, want %v", err, first)
	}
}

func TestRangeCoversInterval(t *testing.T) {
	const n = 1000
	covered := make([]int32, n)
	err := parallel.Range(0, n, 0, func(low, high int) error {
		for i := low; i < high; i++ {
			atomic.AddInt32(&covered[i], 1)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range covered {
		if c != 1 {
			t.Fatalf("index %v covered %v times", i, c)
		}
	}
}

func TestRangeAnd(t *testing.T) {
	allTrue, err := parallel.RangeAnd(0, 100, 0, func(low, high int) (bool, error) {
		return true, nil
	})
	if err != nil || !allTrue {
		t.Errorf("RangeAnd = %v, %v, want true, nil", allTrue, err)
	}
	oneFalse, err := parallel.RangeAnd(0, 100, 0, func(low, high int) (bool, error) {
		return low != 0, nil
	})
	if err != nil || oneFalse {
		t.Errorf("RangeAnd = %v, %v, want false, nil", oneFalse, err)
	}
}

func TestRangeReduceSum(t *testing.T) {
	const n = 10000
	sum, err := parallel.RangeReduce(0, n, 0,
		func(low, high int) (int, error) {
			s := 0
			for i := low; i < high; i++ {
				s += i
			}
			return s, nil
		},
		func(x, y int) (int, error) { return x + y, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	if want := n * (n - 1) / 2; sum != want {
		t.Errorf("sum = %v, want %v", sum, want)
	}
}

func TestRangePanicsOnInvalidRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Range with high < low must panic")
		}
	}()
	_ = parallel.Range(1, 0, 0, func(low, high int) error { return nil })
}
