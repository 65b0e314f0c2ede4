package parallel

import (
	"code.hybscloud.com/atomix"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/internal"
	"github.com/exascience/amorph/statistic"
)

// cursor tracks one worker's block of items. Claims go through the
// atomic index so that idle workers can steal from the same block; an
// index past high just means the block is exhausted.
type cursor struct {
	next atomix.Int64
	high int64
	_    [48]byte
}

type doAllConfig struct {
	name  string
	steal bool
	stats *statistic.Registry
}

// A DoAllOption configures a DoAll loop.
type DoAllOption func(*doAllConfig)

// Steal controls whether workers that exhaust their own block of items
// claim items from other workers' blocks. Enabled by default.
func Steal(enabled bool) DoAllOption {
	return func(cfg *doAllConfig) {
		cfg.steal = enabled
	}
}

// DoAllName sets the loop name under which statistics are reported.
func DoAllName(name string) DoAllOption {
	return func(cfg *doAllConfig) {
		cfg.name = name
	}
}

// DoAllStats attaches the loop's statistics to a registry.
func DoAllStats(registry *statistic.Registry) DoAllOption {
	return func(cfg *doAllConfig) {
		cfg.stats = registry
	}
}

// DoAll partitions items into one contiguous block per worker and
// invokes op at most once for each item. There is no context, no push
// path, and no abort path; operators that produce follow-up work collect
// it themselves, typically in a bag.
//
// With stealing enabled (the default), a worker that has drained its own
// block claims items from the remaining blocks, which absorbs load
// imbalance from irregular operators.
//
// An operator error terminates the loop immediately: the failing worker
// stops, and every worker stops claiming further items once it observes
// the stop flag. DoAll returns the left-most per-worker error value that
// is different from nil. If one or more operator invocations panic,
// DoAll panics with the left-most recovered panic value, extended with
// stack trace information.
func DoAll[T any](rt *amorph.Runtime, items []T, op func(worker int, v T) error, options ...DoAllOption) error {
	cfg := doAllConfig{name: "doAll", steal: true}
	for _, option := range options {
		option(&cfg)
	}
	if len(items) == 0 {
		return nil
	}

	workers := rt.Workers()
	bounds := internal.Partition(len(items), workers)
	cursors := make([]cursor, workers)
	for w := 0; w < workers; w++ {
		cursors[w].next.Store(int64(bounds[w]))
		cursors[w].high = int64(bounds[w+1])
	}

	loop := statistic.NewLoop(cfg.name, workers)
	if cfg.stats != nil {
		cfg.stats.Attach(loop)
	}

	var stop atomix.Bool
	errs := make([]error, workers)
	rt.Run(func(worker int) {
		counters := loop.Get(worker)
		drain := func(c *cursor, stolen bool) {
			for !stop.LoadAcquire() {
				i := c.next.Add(1) - 1
				if i >= c.high {
					return
				}
				counters.Iterations++
				if stolen {
					counters.Steals++
				}
				if err := op(worker, items[i]); err != nil {
					if errs[worker] == nil {
						errs[worker] = err
					}
					stop.StoreRelease(true)
					return
				}
			}
		}
		drain(&cursors[worker], false)
		if cfg.steal {
			for d := 1; d < workers && !stop.LoadAcquire(); d++ {
				victim := (worker + d) % workers
				drain(&cursors[victim], true)
			}
		}
	})
	loop.Stop()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
