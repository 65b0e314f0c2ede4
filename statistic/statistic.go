// Package statistic collects per-loop execution statistics.
//
// Every loop driver creates a Loop, bumps its per-worker counters while
// running, and stops it when the loop terminates. Attaching loops and
// named counters to a Registry makes them part of a JSON report, which is
// the substrate's only observable side channel; nothing in this package
// is part of the worklist contract.
package statistic

import (
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"gonum.org/v1/gonum/stat"

	"github.com/exascience/amorph/perworker"
)

// Counters is one worker's view of a loop. The owning worker increments
// the fields without synchronization; readers wait for the loop to stop.
type Counters struct {
	Iterations uint64 `json:"iterations"`
	Commits    uint64 `json:"commits"`
	Aborts     uint64 `json:"aborts"`
	EmptyPops  uint64 `json:"emptyPops"`
	Pushes     uint64 `json:"pushes"`
	Steals     uint64 `json:"steals"`
}

func (c *Counters) add(o *Counters) {
	c.Iterations += o.Iterations
	c.Commits += o.Commits
	c.Aborts += o.Aborts
	c.EmptyPops += o.EmptyPops
	c.Pushes += o.Pushes
	c.Steals += o.Steals
}

// A Loop holds the statistics of one loop execution: a wall-clock timer
// and one Counters record per worker.
type Loop struct {
	name     string
	workers  int
	start    time.Time
	duration time.Duration
	counters *perworker.Storage[Counters]
}

// NewLoop starts the timer for a loop with the given name and worker
// count.
func NewLoop(name string, workers int) *Loop {
	return &Loop{
		name:     name,
		workers:  workers,
		start:    time.Now(),
		counters: perworker.New[Counters](workers, nil),
	}
}

// Get returns the given worker's counters.
func (l *Loop) Get(worker int) *Counters {
	return l.counters.Get(worker)
}

// Stop records the loop duration. Counters must not be bumped afterwards.
func (l *Loop) Stop() {
	l.duration = time.Since(l.start)
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Duration returns the wall-clock time between NewLoop and Stop.
func (l *Loop) Duration() time.Duration { return l.duration }

// Totals sums the counters over all workers.
func (l *Loop) Totals() Counters {
	var total Counters
	for w := 0; w < l.workers; w++ {
		total.add(l.counters.Get(w))
	}
	return total
}

// A LoopReport is the serializable summary of one loop.
type LoopReport struct {
	Name       string   `json:"name"`
	Workers    int      `json:"workers"`
	DurationNS int64    `json:"durationNs"`
	Totals     Counters `json:"totals"`
	PerWorker  []uint64 `json:"iterationsPerWorker"`

	// MeanIterations and StddevIterations summarize how evenly the
	// iterations spread over the workers.
	MeanIterations   float64 `json:"meanIterations"`
	StddevIterations float64 `json:"stddevIterations"`
}

// Report summarizes the loop.
func (l *Loop) Report() LoopReport {
	perWorker := make([]uint64, l.workers)
	iterations := make([]float64, l.workers)
	for w := 0; w < l.workers; w++ {
		perWorker[w] = l.counters.Get(w).Iterations
		iterations[w] = float64(perWorker[w])
	}
	stddev := 0.0
	if l.workers > 1 {
		stddev = stat.StdDev(iterations, nil)
	}
	return LoopReport{
		Name:             l.name,
		Workers:          l.workers,
		DurationNS:       l.duration.Nanoseconds(),
		Totals:           l.Totals(),
		PerWorker:        perWorker,
		MeanIterations:   stat.Mean(iterations, nil),
		StddevIterations: stddev,
	}
}

// A Counter is a named per-worker accumulator, for application-level
// statistics such as the number of empty union-find merges.
type Counter struct {
	name  string
	cells *perworker.Storage[uint64]
}

// NewCounter returns a named counter with one cell per worker.
func NewCounter(name string, workers int) *Counter {
	return &Counter{
		name:  name,
		cells: perworker.New[uint64](workers, nil),
	}
}

// Add adds delta to the calling worker's cell.
func (c *Counter) Add(worker int, delta uint64) {
	*c.cells.Get(worker) += delta
}

// Total sums all cells. It is only meaningful after the workers have
// quiesced.
func (c *Counter) Total() uint64 {
	var total uint64
	for w := 0; w < c.cells.Workers(); w++ {
		total += *c.cells.Get(w)
	}
	return total
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// A Registry gathers loops and counters for reporting. The zero value is
// not valid; use NewRegistry.
type Registry struct {
	mu       sync.Mutex
	loops    []*Loop
	counters []*Counter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Attach adds a stopped or running loop to the registry.
func (r *Registry) Attach(l *Loop) {
	r.mu.Lock()
	r.loops = append(r.loops, l)
	r.mu.Unlock()
}

// NewCounter creates a named counter and attaches it to the registry.
func (r *Registry) NewCounter(name string, workers int) *Counter {
	c := NewCounter(name, workers)
	r.mu.Lock()
	r.counters = append(r.counters, c)
	r.mu.Unlock()
	return c
}

// A Report is the serializable summary of a registry.
type Report struct {
	Loops    []LoopReport      `json:"loops"`
	Counters map[string]uint64 `json:"counters"`
}

// Report returns the registry's loops and counters as JSON.
func (r *Registry) Report() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := Report{
		Counters: make(map[string]uint64, len(r.counters)),
	}
	for _, l := range r.loops {
		report.Loops = append(report.Loops, l.Report())
	}
	for _, c := range r.counters {
		report.Counters[c.name] = c.Total()
	}
	return sonnet.Marshal(report)
}
