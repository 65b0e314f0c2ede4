// Package sta performs static timing analysis over a delay-annotated
// directed acyclic graph.
//
// The analysis runs in phases, each a parallel loop over the substrate:
// forward and reverse levelization assign every node its topological
// level; arrival times then propagate forwards in level order, and
// required times propagate backwards. The level-ordered phases are
// driven by a priority-bucketed worklist indexed by level, which keeps
// recomputation rare without imposing a strict topological schedule:
// a node processed before all its predecessors settles is simply pushed
// again when a predecessor's time improves.
//
// Input graphs come from gonum; edge weights are interpreted as delays.
package sta

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/parallel"
	"github.com/exascience/amorph/speculative"
)

// A Scheduler selects the worklist policy of the level-ordered phases.
type Scheduler int

const (
	// OrderedByLevel buckets nodes by topological level with FIFO
	// buckets.
	OrderedByLevel Scheduler = iota

	// CachedPriQueue keeps a small per-worker cache of the lowest
	// levels in front of a shared priority queue.
	CachedPriQueue
)

// A Graph is a timing graph in CSR form, forwards and backwards, with
// per-edge delays.
type Graph struct {
	n int

	fwdOff, fwdDst []int32
	fwdDelay       []float64
	revOff, revDst []int32
	revDelay       []float64

	state *timingState

	ids   []int64
	index map[int64]int32
}

// NewGraph compacts a weighted directed acyclic gonum graph into a
// timing graph. Edge weights are the delays; they must be non-negative.
func NewGraph(g graph.WeightedDirected) (*Graph, error) {
	var ids []int64
	nodes := g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tg := &Graph{
		n:     len(ids),
		ids:   ids,
		index: make(map[int64]int32, len(ids)),
	}
	for i, id := range ids {
		tg.index[id] = int32(i)
	}

	type arc struct {
		from, to int32
		delay    float64
	}
	var arcs []arc
	for i, id := range ids {
		succs := g.From(id)
		for succs.Next() {
			j := tg.index[succs.Node().ID()]
			w, _ := g.Weight(id, ids[j])
			if w < 0 {
				return nil, fmt.Errorf("sta: negative delay on edge %v->%v", id, ids[j])
			}
			arcs = append(arcs, arc{from: int32(i), to: j, delay: w})
		}
	}

	build := func(key func(arc) int32, dst func(arc) int32) ([]int32, []int32, []float64) {
		off := make([]int32, tg.n+1)
		for _, a := range arcs {
			off[key(a)+1]++
		}
		for i := 0; i < tg.n; i++ {
			off[i+1] += off[i]
		}
		at := append([]int32(nil), off[:tg.n]...)
		targets := make([]int32, len(arcs))
		delays := make([]float64, len(arcs))
		for _, a := range arcs {
			k := key(a)
			targets[at[k]] = dst(a)
			delays[at[k]] = a.delay
			at[k]++
		}
		return off, targets, delays
	}
	tg.fwdOff, tg.fwdDst, tg.fwdDelay = build(
		func(a arc) int32 { return a.from },
		func(a arc) int32 { return a.to })
	tg.revOff, tg.revDst, tg.revDelay = build(
		func(a arc) int32 { return a.to },
		func(a arc) int32 { return a.from })

	tg.state = newTimingState(tg.n)
	return tg, nil
}

// Len returns the number of nodes.
func (tg *Graph) Len() int { return tg.n }

// ID returns the original gonum identifier of a compacted node.
func (tg *Graph) ID(node int32) int64 { return tg.ids[node] }

func (tg *Graph) succs(node int32) ([]int32, []float64) {
	return tg.fwdDst[tg.fwdOff[node]:tg.fwdOff[node+1]],
		tg.fwdDelay[tg.fwdOff[node]:tg.fwdOff[node+1]]
}

func (tg *Graph) preds(node int32) ([]int32, []float64) {
	return tg.revDst[tg.revOff[node]:tg.revOff[node+1]],
		tg.revDelay[tg.revOff[node]:tg.revOff[node+1]]
}

// Analyze runs all four phases: forward and reverse levelization,
// arrival propagation, and required propagation against the clock
// period.
func (tg *Graph) Analyze(rt *amorph.Runtime, sched Scheduler, clockPeriod float64) error {
	if err := tg.ComputeLevels(rt); err != nil {
		return err
	}
	if err := tg.ComputeArrivals(rt, sched); err != nil {
		return err
	}
	return tg.ComputeRequireds(rt, sched, clockPeriod)
}

// Arrival returns the arrival time of a node after ComputeArrivals.
func (tg *Graph) Arrival(node int32) float64 { return tg.state.arrivalOf(node) }

// Required returns the required time of a node after ComputeRequireds.
func (tg *Graph) Required(node int32) float64 { return tg.state.requiredOf(node) }

// Slack returns required minus arrival time of a node.
func (tg *Graph) Slack(node int32) float64 {
	return tg.Required(node) - tg.Arrival(node)
}

// Level returns the topological level of a node after ComputeLevels;
// nodes without predecessors are at level 1.
func (tg *Graph) Level(node int32) int64 { return tg.state.level[node].Load() }

// RevLevel returns the reverse topological level after ComputeLevels.
func (tg *Graph) RevLevel(node int32) int64 { return tg.state.revLevel[node].Load() }

func (tg *Graph) allNodes() []int32 {
	seeds := make([]int32, tg.n)
	for i := range seeds {
		seeds[i] = int32(i)
	}
	return seeds
}

// ComputeLevels assigns forward and reverse topological levels with two
// chaotic relaxation loops. Levels only grow, and every growth re-pushes
// the affected side's neighbors, so both loops settle at the exact
// levelization of the DAG.
func (tg *Graph) ComputeLevels(rt *amorph.Runtime) error {
	state := tg.state
	forward := func(node int32, ctx speculative.Context[int32]) error {
		state.onLevelList[node].Store(0)
		level := int64(1)
		preds, _ := tg.preds(node)
		for _, p := range preds {
			if l := state.level[p].Load(); l+1 > level {
				level = l + 1
			}
		}
		if level != state.level[node].Load() {
			state.level[node].Store(level)
			succs, _ := tg.succs(node)
			for _, s := range succs {
				if state.onLevelList[s].CompareAndSwapAcqRel(0, 1) {
					ctx.Push(s)
				}
			}
		}
		return nil
	}
	if err := speculative.ForEach(rt, tg.allNodes(), forward, nil,
		speculative.Name("ComputeTopoL")); err != nil {
		return err
	}

	backward := func(node int32, ctx speculative.Context[int32]) error {
		state.onLevelList[node].Store(0)
		level := int64(1)
		succs, _ := tg.succs(node)
		for _, s := range succs {
			if l := state.revLevel[s].Load(); l+1 > level {
				level = l + 1
			}
		}
		if level != state.revLevel[node].Load() {
			state.revLevel[node].Store(level)
			preds, _ := tg.preds(node)
			for _, p := range preds {
				if state.onLevelList[p].CompareAndSwapAcqRel(0, 1) {
					ctx.Push(p)
				}
			}
		}
		return nil
	}
	return speculative.ForEach(rt, tg.allNodes(), backward, nil,
		speculative.Name("ComputeRevTopoL"))
}

// maxLevel is only meaningful after ComputeLevels.
func (tg *Graph) maxLevel(rev bool) int64 {
	levels := tg.state.level
	if rev {
		levels = tg.state.revLevel
	}
	max := int64(1)
	for i := range levels {
		if l := levels[i].Load(); l > max {
			max = l
		}
	}
	return max
}

func (tg *Graph) scheduler(sched Scheduler, level func(int32) int64, rng int64) speculative.Factory[int32] {
	indexer := func(v int32, buckets int) int {
		l := level(v) - 1
		if l < 0 {
			l = 0
		}
		if l > rng {
			l = rng
		}
		return int(l)
	}
	switch sched {
	case CachedPriQueue:
		// Lowest level drains first, so the heap's greatest element is
		// the one with the smallest level.
		parent := speculative.PriQueue(func(x, y int32) bool {
			return level(x) > level(y)
		})
		return speculative.CacheByIntegerMetric(4, indexer, parent)
	default:
		return speculative.OrderedByIntegerMetric(int(rng), indexer)
	}
}

// ComputeArrivals propagates arrival times forwards: the arrival of a
// node is the maximum over its predecessors of their arrival plus the
// edge delay, and nodes without predecessors arrive at time zero.
func (tg *Graph) ComputeArrivals(rt *amorph.Runtime, sched Scheduler) error {
	state := tg.state
	for i := 0; i < tg.n; i++ {
		preds, _ := tg.preds(int32(i))
		if len(preds) == 0 {
			state.storeArrival(int32(i), 0)
		} else {
			state.storeArrival(int32(i), math.Inf(-1))
		}
	}

	op := func(node int32, ctx speculative.Context[int32]) error {
		state.onTimeList[node].Store(0)
		preds, delays := tg.preds(node)
		if len(preds) == 0 {
			return nil
		}
		arrival := math.Inf(-1)
		for i, p := range preds {
			if t := state.arrivalOf(p) + delays[i]; t > arrival {
				arrival = t
			}
		}
		if arrival > state.arrivalOf(node) {
			state.storeArrival(node, arrival)
			succs, _ := tg.succs(node)
			for _, s := range succs {
				if state.onTimeList[s].CompareAndSwapAcqRel(0, 1) {
					ctx.Push(s)
				}
			}
		}
		return nil
	}
	factory := tg.scheduler(sched, tg.Level, tg.maxLevel(false)-1)
	return speculative.ForEach(rt, tg.allNodes(), op, factory,
		speculative.Name("ComputeForward"))
}

// ComputeRequireds propagates required times backwards from the clock
// period: the required time of a node is the minimum over its successors
// of their required time minus the edge delay.
func (tg *Graph) ComputeRequireds(rt *amorph.Runtime, sched Scheduler, clockPeriod float64) error {
	state := tg.state
	for i := 0; i < tg.n; i++ {
		succs, _ := tg.succs(int32(i))
		if len(succs) == 0 {
			state.storeRequired(int32(i), clockPeriod)
		} else {
			state.storeRequired(int32(i), math.Inf(1))
		}
	}

	op := func(node int32, ctx speculative.Context[int32]) error {
		state.onTimeList[node].Store(0)
		succs, delays := tg.succs(node)
		if len(succs) == 0 {
			return nil
		}
		required := math.Inf(1)
		for i, s := range succs {
			if t := state.requiredOf(s) - delays[i]; t < required {
				required = t
			}
		}
		if required < state.requiredOf(node) {
			state.storeRequired(node, required)
			preds, _ := tg.preds(node)
			for _, p := range preds {
				if state.onTimeList[p].CompareAndSwapAcqRel(0, 1) {
					ctx.Push(p)
				}
			}
		}
		return nil
	}
	factory := tg.scheduler(sched, tg.RevLevel, tg.maxLevel(true)-1)
	return speculative.ForEach(rt, tg.allNodes(), op, factory,
		speculative.Name("ComputeBackward"))
}

// Verify checks that levels strictly increase and reverse levels
// strictly decrease along every edge, and that no arrival time lies
// below a predecessor's arrival plus the edge delay. Required times are
// not checked.
func (tg *Graph) Verify(rt *amorph.Runtime) error {
	ok, err := parallel.RangeAnd(0, tg.n, 0, func(low, high int) (bool, error) {
		for i := low; i < high; i++ {
			node := int32(i)
			succs, delays := tg.succs(node)
			for k, s := range succs {
				if tg.Level(node) >= tg.Level(s) {
					return false, fmt.Errorf("sta: level not increasing along %v->%v", node, s)
				}
				if tg.RevLevel(node) <= tg.RevLevel(s) {
					return false, fmt.Errorf("sta: reverse level not decreasing along %v->%v", node, s)
				}
				if want := tg.Arrival(node) + delays[k]; tg.Arrival(s) < want-1e-9 {
					return false, fmt.Errorf("sta: arrival at %v below %v's contribution", s, node)
				}
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sta: verification failed")
	}
	return nil
}
