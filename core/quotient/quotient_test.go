package quotient

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
)

func buildThreeBlockHypergraph(t *testing.T) *hgraph.PartitionedHypergraph {
	t.Helper()
	h := hgraph.New(6)
	if _, err := h.AddEdge(1, []int32{0, 1, 2}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := h.AddEdge(1, []int32{2, 3, 4}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := h.AddEdge(1, []int32{4, 5}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	maxWeight := []int64{2, 2, 2}
	ph := hgraph.NewPartitioned(h, 3, maxWeight)
	ph.AssignInitial(0, 0)
	ph.AssignInitial(1, 0)
	ph.AssignInitial(2, 1)
	ph.AssignInitial(3, 1)
	ph.AssignInitial(4, 2)
	ph.AssignInitial(5, 2)
	return ph
}

func TestBuildGroupsCutEdgesByBlockPair(t *testing.T) {
	ph := buildThreeBlockHypergraph(t)
	g := Build(ph, Options{}, true)

	key01 := pairKey(0, 1)
	key12 := pairKey(1, 2)
	if _, ok := g.edges[key01]; !ok {
		t.Fatal("expected a quotient edge between blocks 0 and 1")
	}
	if _, ok := g.edges[key12]; !ok {
		t.Fatal("expected a quotient edge between blocks 1 and 2")
	}
}

func TestPopDrainsSeededRound(t *testing.T) {
	ph := buildThreeBlockHypergraph(t)
	g := Build(ph, Options{}, true)

	seen := make(map[[2]int32]bool)
	for qe := g.Pop(); qe != nil; qe = g.Pop() {
		seen[pairKey(qe.I, qe.J)] = true
	}
	if len(seen) != len(g.edges) {
		t.Fatalf("Pop drained %d edges, want %d", len(seen), len(g.edges))
	}
}

func TestFinalizeWithoutImprovementEndsScheduling(t *testing.T) {
	ph := buildThreeBlockHypergraph(t)
	g := Build(ph, Options{}, true)

	var qe01 *Edge
	for key, qe := range g.edges {
		if key == pairKey(0, 1) {
			qe01 = qe
		}
	}
	if qe01 == nil {
		t.Fatal("missing (0,1) quotient edge")
	}
	for q := g.Pop(); q != nil; q = g.Pop() {
		g.Finalize(q, 0)
	}
	if g.AdvanceRound() {
		t.Fatal("zero improvement round should not continue scheduling")
	}
}
