package flow

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

// buildBarbell builds two size-n cliques joined by one bridging hyperedge --
// the same fixture shape core/fm uses, sized small enough for a flow search.
func buildBarbell(t *testing.T, n int) *hgraph.Hypergraph {
	t.Helper()
	h := hgraph.New(2 * n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if _, err := h.AddEdge(1, []int32{int32(i), int32(j)}); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
			if _, err := h.AddEdge(1, []int32{int32(n + i), int32(n + j)}); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
		}
	}
	if _, err := h.AddEdge(1, []int32{0, int32(n)}); err != nil {
		t.Fatalf("AddEdge bridge: %v", err)
	}
	return h
}

func TestRefinerNeverWorsensCut(t *testing.T) {
	h := buildBarbell(t, 5)
	maxWeight := []int64{int64(h.NumNodes), int64(h.NumNodes)}
	ph := hgraph.NewPartitioned(h, 2, maxWeight)
	// A deliberately bad split: half of each clique in the wrong block.
	for v := 0; v < h.NumNodes; v++ {
		if v%2 == 0 {
			ph.AssignInitial(v, 0)
		} else {
			ph.AssignInitial(v, 1)
		}
	}

	before := ph.Cut()
	r := NewRefiner(ph, Options{MaxNumPins: 50, NumThreads: 2})
	r.Run(true, logging.Nop())
	after := ph.Cut()

	if after > before {
		t.Fatalf("cut got worse: before=%d after=%d", before, after)
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
}

func TestRefinerRespectsBalanceCap(t *testing.T) {
	h := buildBarbell(t, 5)
	maxWeight := []int64{6, 6}
	ph := hgraph.NewPartitioned(h, 2, maxWeight)
	for v := 0; v < h.NumNodes; v++ {
		if v%2 == 0 {
			ph.AssignInitial(v, 0)
		} else {
			ph.AssignInitial(v, 1)
		}
	}

	r := NewRefiner(ph, Options{MaxNumPins: 50, NumThreads: 2})
	r.Run(true, logging.Nop())

	for b := 0; b < ph.K; b++ {
		if ph.BlockWeight(b) > maxWeight[b] {
			t.Fatalf("block %d weight %d exceeds cap %d", b, ph.BlockWeight(b), maxWeight[b])
		}
	}
}
