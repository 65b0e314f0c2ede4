package spanning_test

import (
	"testing"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/spanning"
	"github.com/exascience/amorph/statistic"
)

func cycle(n int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node((i + 1) % n)})
	}
	return g
}

func grid(rows, cols int) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	id := func(r, c int) simple.Node { return simple.Node(r*cols + c) }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				g.SetEdge(simple.Edge{F: id(r, c), T: id(r, c+1)})
			}
			if r+1 < rows {
				g.SetEdge(simple.Edge{F: id(r, c), T: id(r+1, c)})
			}
		}
	}
	return g
}

func TestAsyncOnCycle(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	ug := cycle(100)
	g := spanning.NewGraph(ug)

	registry := statistic.NewRegistry()
	forest, tree, err := spanning.Async(rt, g, registry)
	if err != nil {
		t.Fatal(err)
	}
	components := len(topo.ConnectedComponents(ug))
	if err := spanning.Verify(rt, g, forest, tree, components); err != nil {
		t.Fatal(err)
	}
	if len(tree) != g.Len()-1 {
		t.Errorf("tree edges = %v, want %v", len(tree), g.Len()-1)
	}
}

func TestAsyncOnGrid(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	ug := grid(20, 30)
	g := spanning.NewGraph(ug)

	forest, tree, err := spanning.Async(rt, g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := spanning.Verify(rt, g, forest, tree, 1); err != nil {
		t.Fatal(err)
	}
}

func TestAsyncOnForest(t *testing.T) {
	// Two disjoint components give a two-tree forest.
	g := simple.NewUndirectedGraph()
	for i := 0; i < 9; i++ {
		g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(i + 1)})
	}
	for i := 100; i < 104; i++ {
		g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(i + 1)})
	}
	rt := amorph.NewRuntime(amorph.Workers(2))
	cg := spanning.NewGraph(g)
	forest, tree, err := spanning.Async(rt, cg, nil)
	if err != nil {
		t.Fatal(err)
	}
	components := len(topo.ConnectedComponents(g))
	if components != 2 {
		t.Fatalf("test graph has %v components, want 2", components)
	}
	if err := spanning.Verify(rt, cg, forest, tree, components); err != nil {
		t.Fatal(err)
	}
}

func TestBlockedAsyncOnGrid(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	ug := grid(20, 30)
	g := spanning.NewGraph(ug)

	registry := statistic.NewRegistry()
	forest, tree, err := spanning.BlockedAsync(rt, g, registry)
	if err != nil {
		t.Fatal(err)
	}
	if err := spanning.Verify(rt, g, forest, tree, 1); err != nil {
		t.Fatal(err)
	}
	if len(tree) != g.Len()-1 {
		t.Errorf("tree edges = %v, want %v", len(tree), g.Len()-1)
	}
}

func TestBlockedAsyncOnForest(t *testing.T) {
	g := simple.NewUndirectedGraph()
	for i := 0; i < 9; i++ {
		g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(i + 1)})
	}
	for i := 100; i < 104; i++ {
		g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(i + 1)})
	}
	rt := amorph.NewRuntime(amorph.Workers(2))
	cg := spanning.NewGraph(g)
	forest, tree, err := spanning.BlockedAsync(rt, cg, nil)
	if err != nil {
		t.Fatal(err)
	}
	components := len(topo.ConnectedComponents(g))
	if err := spanning.Verify(rt, cg, forest, tree, components); err != nil {
		t.Fatal(err)
	}
}

func TestDemoOnCycle(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(4))
	ug := cycle(64)
	g := spanning.NewGraph(ug)

	tree, err := spanning.Demo(rt, g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) != g.Len()-1 {
		t.Errorf("tree edges = %v, want %v", len(tree), g.Len()-1)
	}
	claimed := make(map[int32]bool)
	claimed[0] = true
	for _, e := range tree {
		if claimed[e.V] {
			t.Fatalf("node %v claimed twice", e.V)
		}
		claimed[e.V] = true
	}
	if len(claimed) != g.Len() {
		t.Errorf("claimed %v nodes, want %v", len(claimed), g.Len())
	}
}
