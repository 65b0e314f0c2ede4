package statistic_test

import (
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"github.com/exascience/amorph/statistic"
)

func TestLoopTotals(t *testing.T) {
	loop := statistic.NewLoop("test", 2)
	loop.Get(0).Iterations = 3
	loop.Get(0).Commits = 3
	loop.Get(1).Iterations = 5
	loop.Get(1).Aborts = 1
	loop.Stop()

	totals := loop.Totals()
	if totals.Iterations != 8 || totals.Commits != 3 || totals.Aborts != 1 {
		t.Errorf("totals = %+v", totals)
	}
	report := loop.Report()
	if report.Name != "test" || report.Workers != 2 {
		t.Errorf("report header = %+v", report)
	}
	if report.MeanIterations != 4 {
		t.Errorf("mean iterations = %v, want 4", report.MeanIterations)
	}
}

func TestCounter(t *testing.T) {
	c := statistic.NewCounter("emptyMerges", 3)
	c.Add(0, 2)
	c.Add(1, 3)
	c.Add(2, 5)
	if c.Total() != 10 {
		t.Errorf("total = %v, want 10", c.Total())
	}
	if c.Name() != "emptyMerges" {
		t.Errorf("name = %q", c.Name())
	}
}

func TestRegistryReportRoundTrip(t *testing.T) {
	registry := statistic.NewRegistry()
	loop := statistic.NewLoop("merge", 1)
	loop.Get(0).Iterations = 7
	loop.Stop()
	registry.Attach(loop)
	registry.NewCounter("roots", 1).Add(0, 4)

	data, err := registry.Report()
	if err != nil {
		t.Fatal(err)
	}
	var report statistic.Report
	if err := sonnet.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Loops) != 1 || report.Loops[0].Name != "merge" {
		t.Fatalf("report loops = %+v", report.Loops)
	}
	if report.Loops[0].Totals.Iterations != 7 {
		t.Errorf("iterations = %v, want 7", report.Loops[0].Totals.Iterations)
	}
	if report.Counters["roots"] != 4 {
		t.Errorf("counters = %v", report.Counters)
	}
}
