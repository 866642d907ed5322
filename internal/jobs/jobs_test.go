package jobs

import (
	"testing"
	"time"

	"github.com/gilchrisn/graph-clustering-service/core/engine"
	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

func tinyHypergraph(t *testing.T) *hgraph.Hypergraph {
	t.Helper()
	h := hgraph.New(4)
	if _, err := h.AddEdge(1, []int32{0, 1, 2, 3}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	for v := 0; v < h.NumNodes; v++ {
		h.SetNodeWeight(v, 1)
	}
	return h
}

func tinyOptions() engine.Options {
	c := config.NewWithPreset(config.PresetDeterministic)
	c.Set("k", 2)
	c.Set("epsilon", 0.5)
	c.Set("initial_partitioning.runs", 1)
	c.Set("initial_partitioning.population_size", 1)
	c.Set("refinement.fm.multitry_rounds", 1)
	c.Set("refinement.flows.algorithm", "")
	return engine.FromConfig(c)
}

func TestSubmitCompletesAndIsRetrievable(t *testing.T) {
	reg := NewRegistry(2, logging.Nop())
	run := reg.Submit(tinyHypergraph(t), tinyOptions())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, ok := reg.Get(run.ID)
		if !ok {
			t.Fatal("Get did not find the submitted run")
		}
		if got.Status == StatusCompleted || got.Status == StatusFailed {
			if got.Status == StatusFailed {
				t.Fatalf("run failed: %v", got.Err)
			}
			if got.Result == nil {
				t.Fatal("completed run has no result")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run did not complete within the deadline")
}

func TestCancelQueuedRun(t *testing.T) {
	reg := NewRegistry(1, logging.Nop())
	reg.workers <- struct{}{} // occupy the only slot so Submit's run stays queued
	run := reg.Submit(tinyHypergraph(t), tinyOptions())

	if err := reg.Cancel(run.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, _ := reg.Get(run.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	<-reg.workers
}

func TestCancelUnknownRun(t *testing.T) {
	reg := NewRegistry(1, logging.Nop())
	if err := reg.Cancel("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown run id")
	}
}
