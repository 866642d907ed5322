package coarsening

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

// buildChain builds an n-vertex hypergraph that is a simple path of size-2
// edges, so heavy-edge rating matching should pair up adjacent vertices.
func buildChain(t *testing.T, n int) *hgraph.Hypergraph {
	t.Helper()
	h := hgraph.New(n)
	for v := 0; v < n-1; v++ {
		if _, err := h.AddEdge(1, []int32{int32(v), int32(v + 1)}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return h
}

func defaultOptions(k int) Options {
	return Options{
		K:                          k,
		ContractionLimitMultiplier: 2,
		MaxAllowedWeightMultiplier: 4.0,
		MinimumShrinkFactor:        1.1,
		MaximumShrinkFactor:        2.0,
		RatingFunction:             config.RatingHeavyEdge,
		HeavyNodePenaltyPolicy:     config.PenaltyMultiplicative,
	}
}

func TestCoarsenReachesContractionLimit(t *testing.T) {
	h := buildChain(t, 16)
	hier, err := Coarsen(h, nil, defaultOptions(2), logging.Nop())
	if err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	active := activeVertices(h)
	limit := defaultOptions(2).K * defaultOptions(2).ContractionLimitMultiplier
	if len(active) > limit {
		t.Fatalf("active vertices after coarsening = %d, want <= %d", len(active), limit)
	}
	if len(hier.Levels) == 0 {
		t.Fatal("expected at least one coarsening level")
	}
}

func TestCoarsenPreservesTotalWeight(t *testing.T) {
	h := buildChain(t, 16)
	before := h.TotalWeight()
	if _, err := Coarsen(h, nil, defaultOptions(2), logging.Nop()); err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	if after := h.TotalWeight(); after != before {
		t.Fatalf("TotalWeight changed by coarsening: before=%d after=%d", before, after)
	}
}

func TestProjectRestoresOriginalVertexCount(t *testing.T) {
	h := buildChain(t, 10)
	hier, err := Coarsen(h, nil, defaultOptions(2), logging.Nop())
	if err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	// Assign every surviving (active) vertex to block 0.
	part := make([]int32, h.NumNodes)
	for v := 0; v < h.NumNodes; v++ {
		if h.NodeWeight(v) > 0 {
			part[v] = 0
		} else {
			part[v] = hgraph.Unassigned
		}
	}
	for lvl := len(hier.Levels) - 1; lvl >= 0; lvl-- {
		if err := hier.Project(lvl, part); err != nil {
			t.Fatalf("Project level %d: %v", lvl, err)
		}
	}
	for v, b := range part {
		if b != 0 {
			t.Fatalf("vertex %d unassigned after full projection: part=%d", v, b)
		}
	}
	if got := h.TotalWeight(); got != 10 {
		t.Fatalf("TotalWeight after full uncontraction = %d, want 10", got)
	}
}
