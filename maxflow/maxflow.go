package maxflow

import (
	"code.hybscloud.com/atomix"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/bag"
	"github.com/exascience/amorph/parallel"
	"github.com/exascience/amorph/perworker"
	"github.com/exascience/amorph/speculative"
	"github.com/exascience/amorph/spinlock"
	"github.com/exascience/amorph/statistic"
)

// nodeState is the mutable per-node state of the algorithm. excess and
// current are guarded by the node locks; height is read by neighbors and
// by the global relabel, so it is atomic.
type nodeState struct {
	height  []atomix.Int64
	excess  []int64
	current []int32
	locks   []spinlock.Lock
}

func newNodeState(n int) *nodeState {
	return &nodeState{
		height:  make([]atomix.Int64, n),
		excess:  make([]int64, n),
		current: make([]int32, n),
		locks:   make([]spinlock.Lock, n),
	}
}

func (s *nodeState) heightOf(u int32) int64 { return s.height[u].Load() }

// A Config tunes MaxFlow.
type Config struct {
	// RelabelInterval is the number of local relabels, split over the
	// workers, that triggers a global relabeling: a worker breaks the
	// loop once it has done RelabelInterval/workers + 1 of them. Zero
	// selects a default based on the graph size; a negative value
	// disables global relabeling.
	RelabelInterval int

	// Stats, when non-nil, receives the statistics of every loop.
	Stats *statistic.Registry
}

// MaxFlow runs preflow-push on the network and returns the value of the
// maximum flow from source to sink. The network holds the resulting
// preflow afterwards; rerunning MaxFlow on the same network is invalid.
func MaxFlow(rt *amorph.Runtime, net *Network, cfg Config) (int64, error) {
	interval := cfg.RelabelInterval
	if interval == 0 {
		interval = defaultInterval(net.n)
	}

	net.initializePreflow()
	active := net.gatherActive(rt)

	for len(active) > 0 {
		var relabelNeeded atomix.Bool
		relabels := perworker.New[int](rt.Workers(), nil)
		limit := 0
		if interval > 0 {
			limit = interval/rt.Workers() + 1
		}

		op := func(src int32, ctx speculative.Context[int32]) error {
			if !net.lockNeighborhood(src) {
				return speculative.ErrAbort
			}
			relabeled := net.discharge(src, ctx)
			net.unlockNeighborhood(src)
			if relabeled && limit > 0 {
				count := relabels.Get(ctx.Worker())
				*count++
				if *count >= limit {
					relabelNeeded.StoreRelease(true)
					ctx.BreakLoop()
				}
			}
			return nil
		}

		err := speculative.ForEach(rt, active, op,
			highLabelFirst(net),
			speculative.Name("Discharge"), speculative.Stats(cfg.Stats))
		if err != nil {
			return 0, err
		}

		if !relabelNeeded.LoadAcquire() {
			break
		}
		net.globalRelabel(rt, cfg)
		active = net.gatherActive(rt)
	}
	return net.nodes.excess[net.sink], nil
}

// defaultInterval mirrors the usual heuristic of relabeling globally
// about once per node-sized batch of local relabels.
func defaultInterval(n int) int {
	if n < 64 {
		return -1
	}
	return n
}

// highLabelFirst orders active nodes so that higher labels drain first,
// bucketing by distance below the height ceiling.
func highLabelFirst(net *Network) speculative.Factory[int32] {
	ceiling := int64(net.n)
	return speculative.OrderedByIntegerMetric(net.n, func(v int32, buckets int) int {
		h := net.nodes.heightOf(v)
		if h > ceiling {
			h = ceiling
		}
		return int(ceiling - h)
	})
}

// initializePreflow raises the source to the height ceiling and
// saturates its outgoing arcs.
func (net *Network) initializePreflow() {
	net.nodes.height[net.source].Store(int64(net.n))
	begin, end := net.arcRange(net.source)
	for at := begin; at < end; at++ {
		if c := net.cap[at]; c > 0 {
			net.pushFlow(at, c)
		}
	}
}

// pushFlow moves amount units along the arc, updating both residual
// capacities and the endpoint excesses.
func (net *Network) pushFlow(at int32, amount int64) {
	arc := net.arcs[at]
	from := net.arcs[arc.rev].to
	net.cap[at] -= amount
	net.cap[arc.rev] += amount
	net.nodes.excess[from] -= amount
	net.nodes.excess[arc.to] += amount
}

// lockNeighborhood try-locks src and all its neighbors, releasing
// everything and reporting false on any contention. Operators abort on
// false and the substrate retries the node later, which keeps the
// locking deadlock-free without a global order.
func (net *Network) lockNeighborhood(src int32) bool {
	if !net.nodes.locks[src].TryLock() {
		return false
	}
	begin, end := net.arcRange(src)
	for at := begin; at < end; at++ {
		if !net.nodes.locks[net.arcs[at].to].TryLock() {
			for held := begin; held < at; held++ {
				net.nodes.locks[net.arcs[held].to].Unlock()
			}
			net.nodes.locks[src].Unlock()
			return false
		}
	}
	return true
}

func (net *Network) unlockNeighborhood(src int32) {
	begin, end := net.arcRange(src)
	for at := begin; at < end; at++ {
		net.nodes.locks[net.arcs[at].to].Unlock()
	}
	net.nodes.locks[src].Unlock()
}

// discharge pushes the excess of src along admissible arcs, relabeling
// src whenever the scan exhausts its arcs, until the excess is gone or
// src reaches the height ceiling. Nodes whose excess becomes positive
// are pushed as new work. Reports whether src was relabeled.
func (net *Network) discharge(src int32, ctx speculative.Context[int32]) bool {
	nodes := net.nodes
	ceiling := int64(net.n)
	if nodes.excess[src] == 0 || nodes.heightOf(src) >= ceiling {
		return false
	}
	relabeled := false
	begin, end := net.arcRange(src)
	for {
		finished := false
		hsrc := nodes.heightOf(src)
		for at := begin + nodes.current[src]; at < end; at++ {
			if net.cap[at] == 0 {
				continue
			}
			dst := net.arcs[at].to
			if hsrc-1 != nodes.heightOf(dst) {
				continue
			}

			amount := nodes.excess[src]
			if c := net.cap[at]; c < amount {
				amount = c
			}
			hadExcess := nodes.excess[dst] != 0
			net.pushFlow(at, amount)
			if dst != net.sink && dst != net.source && !hadExcess {
				ctx.Push(dst)
			}

			if nodes.excess[src] == 0 {
				finished = true
				nodes.current[src] = at - begin
				break
			}
		}
		if finished {
			break
		}
		net.relabel(src)
		relabeled = true
		if nodes.heightOf(src) >= ceiling {
			break
		}
	}
	return relabeled
}

// relabel lifts src to one more than the lowest neighboring height
// reachable over a residual arc, or retires it at the ceiling.
func (net *Network) relabel(src int32) {
	nodes := net.nodes
	ceiling := int64(net.n)
	minHeight := ceiling
	minArc := int32(0)
	begin, end := net.arcRange(src)
	for at := begin; at < end; at++ {
		if net.cap[at] > 0 {
			if h := nodes.heightOf(net.arcs[at].to); h < minHeight {
				minHeight = h
				minArc = at - begin
			}
		}
	}
	if minHeight+1 < ceiling {
		nodes.height[src].Store(minHeight + 1)
		nodes.current[src] = minArc
	} else {
		nodes.height[src].Store(ceiling)
	}
}

// globalRelabel recomputes every height as the exact residual distance
// to the sink with a backward breadth-first pass, resetting unreachable
// nodes to the ceiling.
func (net *Network) globalRelabel(rt *amorph.Runtime, cfg Config) {
	ceiling := int64(net.n)
	for i := 0; i < net.n; i++ {
		net.nodes.height[i].Store(ceiling)
		net.nodes.current[i] = 0
	}
	net.nodes.height[net.sink].Store(0)

	op := func(node int32, ctx speculative.Context[int32]) error {
		h := net.nodes.heightOf(node) + 1
		begin, end := net.arcRange(node)
		for at := begin; at < end; at++ {
			// The neighbor can send flow to node when the reverse arc
			// has residual capacity.
			if net.cap[net.arcs[at].rev] == 0 {
				continue
			}
			u := net.arcs[at].to
			if u == net.source {
				continue
			}
			for {
				old := net.nodes.heightOf(u)
				if old <= h {
					break
				}
				if net.nodes.height[u].CompareAndSwapAcqRel(old, h) {
					ctx.Push(u)
					break
				}
			}
		}
		return nil
	}
	// Heights only ever decrease during the pass, so FIFO order gives a
	//near-breadth-first traversal and repeated improvements stay rare.
	_ = speculative.ForEach(rt, []int32{net.sink}, op,
		speculative.FIFO[int32](),
		speculative.Name("UpdateHeights"), speculative.Stats(cfg.Stats))
}

// gatherActive collects the nodes that still carry excess and have not
// been retired at the height ceiling.
func (net *Network) gatherActive(rt *amorph.Runtime) []int32 {
	found := bag.New[int32](rt.Workers())
	seeds := make([]int32, net.n)
	for i := range seeds {
		seeds[i] = int32(i)
	}
	_ = parallel.DoAll(rt, seeds, func(worker int, v int32) error {
		if v == net.source || v == net.sink {
			return nil
		}
		if net.nodes.excess[v] > 0 && net.nodes.heightOf(v) < int64(net.n) {
			found.Push(worker, v)
		}
		return nil
	}, parallel.DoAllName("GatherActive"))
	return found.Slice()
}
