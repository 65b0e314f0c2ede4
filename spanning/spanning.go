// Package spanning constructs a spanning forest of an undirected graph.
//
// Three algorithms are provided. Demo grows a single tree outwards from
// a root with a speculative ForEach loop, claiming nodes as it reaches
// them; it is intended as a simple introduction to the substrate rather
// than as the fastest approach. Async runs a non-speculative DoAll over
// all nodes, merging every edge into a concurrent union-find; successful
// merges are tree edges. BlockedAsync refines Async by merging most
// edges through per-node continuation work items drained from a chunked
// FIFO, which biases a node's remaining work towards a single worker.
//
// Input graphs come from gonum; they are compacted into a CSR adjacency
// before the loops run.
package spanning

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/bag"
	"github.com/exascience/amorph/parallel"
	"github.com/exascience/amorph/speculative"
	"github.com/exascience/amorph/statistic"
)

// A Graph is a CSR adjacency over the nodes of an undirected gonum
// graph, with node identifiers compacted to [0, n).
type Graph struct {
	offsets []int32
	targets []int32
	ids     []int64
	index   map[int64]int32
}

// NewGraph compacts an undirected gonum graph. Node order follows
// ascending gonum identifiers so that results are reproducible.
func NewGraph(g graph.Undirected) *Graph {
	var ids []int64
	nodes := g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cg := &Graph{
		ids:   ids,
		index: make(map[int64]int32, len(ids)),
	}
	for i, id := range ids {
		cg.index[id] = int32(i)
	}
	cg.offsets = make([]int32, len(ids)+1)
	for i, id := range ids {
		deg := 0
		neighbors := g.From(id)
		for neighbors.Next() {
			deg++
		}
		cg.offsets[i+1] = cg.offsets[i] + int32(deg)
	}
	cg.targets = make([]int32, cg.offsets[len(ids)])
	for i, id := range ids {
		at := cg.offsets[i]
		neighbors := g.From(id)
		for neighbors.Next() {
			cg.targets[at] = cg.index[neighbors.Node().ID()]
			at++
		}
	}
	return cg
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// ID returns the original gonum identifier of a compacted node.
func (g *Graph) ID(node int32) int64 { return g.ids[node] }

func (g *Graph) edges(node int32) []int32 {
	return g.targets[g.offsets[node]:g.offsets[node+1]]
}

// An Edge is one tree edge of the spanning forest, in compacted node
// indices.
type Edge struct {
	U, V int32
}

// Async builds a spanning forest by merging every edge of the graph into
// a concurrent union-find with a bulk DoAll pass. The returned edges
// form the forest; the returned Forest maps every node to its component.
//
// The EmptyMerges counter, registered when a registry is supplied,
// counts edges whose endpoints were already connected.
func Async(rt *amorph.Runtime, g *Graph, registry *statistic.Registry) (*Forest, []Edge, error) {
	forest := NewForest(g.Len())
	mst := bag.New[Edge](rt.Workers())
	emptyMerges := statistic.NewCounter("EmptyMerges", rt.Workers())
	if registry != nil {
		emptyMerges = registry.NewCounter("EmptyMerges", rt.Workers())
	}

	seeds := make([]int32, g.Len())
	for i := range seeds {
		seeds[i] = int32(i)
	}
	err := parallel.DoAll(rt, seeds, func(worker int, src int32) error {
		for _, dst := range g.edges(src) {
			if forest.Merge(src, dst) {
				mst.Push(worker, Edge{U: src, V: dst})
			} else {
				emptyMerges.Add(worker, 1)
			}
		}
		return nil
	}, parallel.DoAllName("Merge"), parallel.Steal(true), parallel.DoAllStats(registry))
	if err != nil {
		return nil, nil, err
	}
	if err := Normalize(rt, forest); err != nil {
		return nil, nil, err
	}
	return forest, mst.Slice(), nil
}

// A workItem is a node together with the offset of the next unmerged
// edge in its adjacency list; parked continuations let the initial pass
// hand partially processed nodes to the worklist loop.
type workItem struct {
	src   int32
	start int32
}

// blockedMerge merges the edges of one node from a given offset, parking
// a continuation work item whenever it stops early: after the first
// merge failure, or after limit merges when limit is non-zero.
type blockedMerge struct {
	graph  *Graph
	forest *Forest
	mst    *bag.Bag[Edge]
}

func (m *blockedMerge) process(worker int, src, start int32, limit int, push func(workItem)) {
	edges := m.graph.edges(src)
	count := 0
	for k := start; k < int32(len(edges)); k++ {
		count++
		dst := edges[k]
		if m.forest.Merge(src, dst) {
			m.mst.Push(worker, Edge{U: src, V: dst})
			if limit == 0 || count != limit {
				continue
			}
		}
		push(workItem{src: src, start: k + 1})
		return
	}
}

// BlockedAsync improves on Async by following the machine topology: the
// first worker merges each of its nodes' edges until the first failed
// merge, while the remaining workers merge a single edge per node; the
// rest of every node's edges is parked as a continuation work item. The continuations are then drained by a speculative ForEach
// over a chunked FIFO with chunks of 128 items, which keeps each parked
// node's remaining edges on one worker.
func BlockedAsync(rt *amorph.Runtime, g *Graph, registry *statistic.Registry) (*Forest, []Edge, error) {
	forest := NewForest(g.Len())
	mst := bag.New[Edge](rt.Workers())
	items := bag.New[workItem](rt.Workers())
	merge := &blockedMerge{graph: g, forest: forest, mst: mst}

	seeds := make([]int32, g.Len())
	for i := range seeds {
		seeds[i] = int32(i)
	}
	err := parallel.DoAll(rt, seeds, func(worker int, src int32) error {
		limit := 1
		if worker == 0 {
			limit = 0
		}
		merge.process(worker, src, 0, limit, func(item workItem) {
			items.Push(worker, item)
		})
		return nil
	}, parallel.DoAllName("Initialize"), parallel.DoAllStats(registry))
	if err != nil {
		return nil, nil, err
	}

	op := func(item workItem, ctx speculative.Context[workItem]) error {
		merge.process(ctx.Worker(), item.src, item.start, 0, ctx.Push)
		return nil
	}
	err = speculative.ForEach(rt, items.Slice(), op,
		speculative.ChunkedFIFO[workItem](128),
		speculative.Name("Merge"), speculative.Stats(registry))
	if err != nil {
		return nil, nil, err
	}
	if err := Normalize(rt, forest); err != nil {
		return nil, nil, err
	}
	return forest, mst.Slice(), nil
}

// Demo builds a spanning tree of the component containing root with a
// modified BFS: each operator claims the unvisited neighbors of its
// node, records the connecting edges, and pushes the neighbors as new
// work. Intended as a simple introduction to the substrate and not
// intended to be particularly fast.
func Demo(rt *amorph.Runtime, g *Graph, root int32) ([]Edge, error) {
	forest := NewForest(g.Len())
	mst := bag.New[Edge](rt.Workers())
	forest.claim(root, root)

	op := func(src int32, ctx speculative.Context[int32]) error {
		for _, dst := range g.edges(src) {
			if forest.claim(dst, root) {
				mst.Push(ctx.Worker(), Edge{U: src, V: dst})
				ctx.Push(dst)
			}
		}
		return nil
	}
	err := speculative.ForEach(rt, []int32{root}, op, nil, speculative.Name("Demo"))
	if err != nil {
		return nil, err
	}
	return mst.Slice(), nil
}

// Normalize points every node directly at its component root by doing a
// find with path compression.
func Normalize(rt *amorph.Runtime, forest *Forest) error {
	seeds := make([]int32, forest.Len())
	for i := range seeds {
		seeds[i] = int32(i)
	}
	return parallel.DoAll(rt, seeds, func(worker int, node int32) error {
		forest.Find(node)
		return nil
	}, parallel.DoAllName("Normalize"))
}

// Verify checks that the forest is consistent with the graph: endpoints
// of every graph edge share a component, the tree edges are acyclic
// (components + tree edges == nodes), and the component count matches
// the expected number of connected components.
func Verify(rt *amorph.Runtime, g *Graph, forest *Forest, tree []Edge, components int) error {
	n := g.Len()
	ok, err := parallel.RangeAnd(0, n, 0, func(low, high int) (bool, error) {
		for i := low; i < high; i++ {
			src := int32(i)
			for _, dst := range g.edges(src) {
				if forest.Find(src) != forest.Find(dst) {
					return false, fmt.Errorf("spanning: nodes %v and %v not in same component", src, dst)
				}
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("spanning: edge endpoints in different components")
	}

	roots, err := parallel.RangeReduce(0, n, 0,
		func(low, high int) (int, error) {
			count := 0
			for i := low; i < high; i++ {
				if forest.Find(int32(i)) == int32(i) {
					count++
				}
			}
			return count, nil
		},
		func(x, y int) (int, error) { return x + y, nil },
	)
	if err != nil {
		return err
	}
	if roots+len(tree) != n {
		return fmt.Errorf("spanning: not a forest: %v roots and %v tree edges over %v nodes", roots, len(tree), n)
	}
	if roots != components {
		return fmt.Errorf("spanning: found %v components, expected %v", roots, components)
	}
	return nil
}
