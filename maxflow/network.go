// Package maxflow computes maximum flow with a parallel preflow-push
// algorithm.
//
// The active-node loop is driven by a speculative ForEach over a
// priority-bucketed worklist that prefers high-label nodes. Operators
// lock the neighborhood of their node with try-locks and abort on
// contention, letting the substrate retry the node. Periodically the
// loop is broken for a global relabeling, a backward breadth-first
// recomputation of the height labels from the sink over the residual
// graph, after which the active set is re-gathered and the loop resumes.
package maxflow

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/parallel"
)

// edgeRef is one directed arc of the residual graph: to is its target
// and rev indexes the paired reverse arc. The remaining capacity of the
// arc lives in Network.cap at the same index.
type edgeRef struct {
	to  int32
	rev int32
}

// A Network is a residual flow network in CSR form. Every arc has a
// paired reverse arc, so pushing flow is a pair of capacity updates.
//
// Mutable per-node state (excess, current arc) is guarded by the node
// locks taken by discharge operators; heights are atomic because the
// global relabel and the height checks of neighbors read them without
// the owner's lock.
type Network struct {
	n            int
	source, sink int32

	offsets []int32
	arcs    []edgeRef
	cap     []int64
	origCap []int64

	nodes *nodeState

	ids   []int64
	index map[int64]int32
}

// NewNetwork builds a residual network from a weighted directed gonum
// graph, with edge weights as integer capacities. Fractional weights are
// truncated. The source and sink are given as gonum node identifiers.
func NewNetwork(g graph.WeightedDirected, source, sink int64) (*Network, error) {
	var ids []int64
	nodes := g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[int64]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}
	if _, ok := index[source]; !ok {
		return nil, fmt.Errorf("maxflow: source %v not in graph", source)
	}
	if _, ok := index[sink]; !ok {
		return nil, fmt.Errorf("maxflow: sink %v not in graph", sink)
	}
	if source == sink {
		return nil, fmt.Errorf("maxflow: source equals sink")
	}

	n := len(ids)
	// Symmetric adjacency: every arc needs its reverse, with zero
	// capacity if the graph has no such edge.
	caps := make([]map[int32]int64, n)
	for i := range caps {
		caps[i] = make(map[int32]int64)
	}
	for i, id := range ids {
		succs := g.From(id)
		for succs.Next() {
			j := index[succs.Node().ID()]
			w, _ := g.Weight(id, ids[j])
			c := int64(w)
			if c < 0 {
				return nil, fmt.Errorf("maxflow: negative capacity on edge %v->%v", id, ids[j])
			}
			caps[i][j] += c
			if _, ok := caps[j][int32(i)]; !ok {
				caps[j][int32(i)] = 0
			}
		}
	}

	net := &Network{
		n:      n,
		source: index[source],
		sink:   index[sink],
		ids:    ids,
		index:  index,
	}
	net.offsets = make([]int32, n+1)
	for i := 0; i < n; i++ {
		net.offsets[i+1] = net.offsets[i] + int32(len(caps[i]))
	}
	total := net.offsets[n]
	net.arcs = make([]edgeRef, total)
	net.cap = make([]int64, total)

	position := make([]map[int32]int32, n)
	for i := 0; i < n; i++ {
		neighbors := make([]int32, 0, len(caps[i]))
		for j := range caps[i] {
			neighbors = append(neighbors, j)
		}
		sort.Slice(neighbors, func(a, b int) bool { return neighbors[a] < neighbors[b] })
		position[i] = make(map[int32]int32, len(neighbors))
		at := net.offsets[i]
		for _, j := range neighbors {
			net.arcs[at] = edgeRef{to: j}
			net.cap[at] = caps[i][j]
			position[i][j] = at
			at++
		}
	}
	for i := 0; i < n; i++ {
		for at := net.offsets[i]; at < net.offsets[i+1]; at++ {
			j := net.arcs[at].to
			net.arcs[at].rev = position[j][int32(i)]
		}
	}
	net.origCap = append([]int64(nil), net.cap...)
	net.nodes = newNodeState(n)
	return net, nil
}

// Len returns the number of nodes.
func (net *Network) Len() int { return net.n }

func (net *Network) arcRange(node int32) (int32, int32) {
	return net.offsets[node], net.offsets[node+1]
}

// Verify checks the invariants of the computed preflow: capacities are
// non-negative, flow is antisymmetric, residual arcs never jump down
// more than one height level, and the excess bookkeeping matches the
// flow into every internal node.
func (net *Network) Verify(rt *amorph.Runtime) error {
	n := net.n
	ok, err := parallel.RangeAnd(0, n, 0, func(low, high int) (bool, error) {
		for i := low; i < high; i++ {
			u := int32(i)
			hu := net.nodes.heightOf(u)
			begin, end := net.arcRange(u)
			var inflow int64
			for at := begin; at < end; at++ {
				arc := net.arcs[at]
				if net.cap[at] < 0 {
					return false, fmt.Errorf("maxflow: negative residual capacity on arc %v->%v", u, arc.to)
				}
				flow := net.origCap[at] - net.cap[at]
				rflow := net.origCap[arc.rev] - net.cap[arc.rev]
				if flow+rflow != 0 {
					return false, fmt.Errorf("maxflow: flow not antisymmetric on arc %v->%v", u, arc.to)
				}
				if flow < 0 {
					inflow += -flow
				}
				if net.cap[at] > 0 && hu > net.nodes.heightOf(arc.to)+1 {
					return false, fmt.Errorf("maxflow: invalid height drop on residual arc %v->%v", u, arc.to)
				}
			}
			if u != net.source && u != net.sink {
				var outflow int64
				for at := begin; at < end; at++ {
					if flow := net.origCap[at] - net.cap[at]; flow > 0 {
						outflow += flow
					}
				}
				if inflow-outflow != net.nodes.excess[u] {
					return false, fmt.Errorf("maxflow: conservation violated at node %v", u)
				}
				if net.nodes.excess[u] < 0 {
					return false, fmt.Errorf("maxflow: negative excess at node %v", u)
				}
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("maxflow: verification failed")
	}
	return nil
}
