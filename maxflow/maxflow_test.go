package maxflow_test

import (
	"testing"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/exascience/amorph"
	"github.com/exascience/amorph/maxflow"
	"github.com/exascience/amorph/statistic"
)

type arc struct {
	from, to int64
	cap      float64
}

func network(arcs []arc) *simple.WeightedDirectedGraph {
	g := simple.NewWeightedDirectedGraph(0, 0)
	for _, a := range arcs {
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(a.from),
			T: simple.Node(a.to),
			W: a.cap,
		})
	}
	return g
}

// The classic six-node network with maximum flow 23.
func clrsNetwork() *simple.WeightedDirectedGraph {
	return network([]arc{
		{0, 1, 16}, {0, 2, 13},
		{1, 3, 12}, {2, 1, 4}, {2, 4, 14},
		{3, 2, 9}, {3, 5, 20},
		{4, 3, 7}, {4, 5, 4},
	})
}

func TestMaxFlowCLRS(t *testing.T) {
	for _, workers := range []int{1, 4} {
		rt := amorph.NewRuntime(amorph.Workers(workers))
		net, err := maxflow.NewNetwork(clrsNetwork(), 0, 5)
		if err != nil {
			t.Fatal(err)
		}
		flow, err := maxflow.MaxFlow(rt, net, maxflow.Config{})
		if err != nil {
			t.Fatal(err)
		}
		if flow != 23 {
			t.Errorf("workers=%v: max flow = %v, want 23", workers, flow)
		}
		if err := net.Verify(rt); err != nil {
			t.Errorf("workers=%v: %v", workers, err)
		}
	}
}

func TestMaxFlowWithGlobalRelabel(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	net, err := maxflow.NewNetwork(clrsNetwork(), 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	flow, err := maxflow.MaxFlow(rt, net, maxflow.Config{RelabelInterval: 2})
	if err != nil {
		t.Fatal(err)
	}
	if flow != 23 {
		t.Errorf("max flow = %v, want 23", flow)
	}
	if err := net.Verify(rt); err != nil {
		t.Error(err)
	}
}

func TestMaxFlowBipartite(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	net, err := maxflow.NewNetwork(network([]arc{
		{0, 1, 3}, {0, 2, 2},
		{1, 3, 2}, {2, 3, 3},
	}), 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	flow, err := maxflow.MaxFlow(rt, net, maxflow.Config{Stats: statistic.NewRegistry()})
	if err != nil {
		t.Fatal(err)
	}
	if flow != 4 {
		t.Errorf("max flow = %v, want 4", flow)
	}
	if err := net.Verify(rt); err != nil {
		t.Error(err)
	}
}

func TestMaxFlowDisconnectedSink(t *testing.T) {
	rt := amorph.NewRuntime(amorph.Workers(2))
	net, err := maxflow.NewNetwork(network([]arc{
		{0, 1, 5},
		{2, 3, 5},
	}), 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	flow, err := maxflow.MaxFlow(rt, net, maxflow.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if flow != 0 {
		t.Errorf("max flow = %v, want 0 across disconnected halves", flow)
	}
}

func TestNewNetworkRejectsBadInput(t *testing.T) {
	g := network([]arc{{0, 1, 1}})
	if _, err := maxflow.NewNetwork(g, 0, 0); err == nil {
		t.Error("source == sink must be rejected")
	}
	if _, err := maxflow.NewNetwork(g, 0, 99); err == nil {
		t.Error("missing sink must be rejected")
	}
}
