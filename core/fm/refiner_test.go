package fm

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

// buildTwoClusterChain builds two size-n cliques joined by a single bridging
// hyperedge, so an initial alternating (bad) partition has plenty of
// positive-gain moves available for FM to find.
func buildTwoClusterChain(t *testing.T, n int) *hgraph.Hypergraph {
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

func alternatingPartition(h *hgraph.Hypergraph, k int, maxWeight []int64) *hgraph.PartitionedHypergraph {
	ph := hgraph.NewPartitioned(h, k, maxWeight)
	for v := 0; v < h.NumNodes; v++ {
		ph.AssignInitial(v, int32(v%k))
	}
	return ph
}

func defaultOptions() Options {
	return Options{
		MultitryRounds:                 4,
		NumSeedNodes:                   4,
		RollbackBalanceViolationFactor: 0.25,
		MinImprovement:                 0,
		TimeLimitFactor:                1,
		PerformMovesGlobal:             true,
		RollbackParallel:               false,
		ObeyMinimalParallelism:         false,
		ReleaseNodes:                   true,
		NumThreads:                     2,
		Seed:                           11,
	}
}

func TestRefinerNeverWorsensKm1(t *testing.T) {
	h := buildTwoClusterChain(t, 6)
	maxWeight := []int64{int64(h.NumNodes), int64(h.NumNodes)}
	ph := alternatingPartition(h, 2, maxWeight)

	before := ph.Km1()
	r := NewRefiner(ph, defaultOptions())
	improvement, err := r.Run(logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := ph.Km1()

	if after > before {
		t.Fatalf("Km1 got worse: before=%d after=%d", before, after)
	}
	if before-after != improvement {
		t.Fatalf("reported improvement %d does not match actual Km1 delta %d", improvement, before-after)
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
}

func TestRefinerRespectsBalance(t *testing.T) {
	h := buildTwoClusterChain(t, 5)
	maxWeight := []int64{6, 6}
	ph := alternatingPartition(h, 2, maxWeight)

	r := NewRefiner(ph, defaultOptions())
	if _, err := r.Run(logging.Nop()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for b := 0; b < ph.K; b++ {
		if ph.BlockWeight(b) > maxWeight[b] {
			t.Fatalf("block %d weight %d exceeds cap %d", b, ph.BlockWeight(b), maxWeight[b])
		}
	}
}

func TestRefinerLocalModeLeavesNoPartialEffect(t *testing.T) {
	h := buildTwoClusterChain(t, 6)
	maxWeight := []int64{int64(h.NumNodes), int64(h.NumNodes)}
	ph := alternatingPartition(h, 2, maxWeight)

	opt := defaultOptions()
	opt.PerformMovesGlobal = false
	r := NewRefiner(ph, opt)

	before := ph.Km1()
	if _, err := r.Run(logging.Nop()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := ph.Km1()
	if after > before {
		t.Fatalf("local-mode Km1 got worse: before=%d after=%d", before, after)
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
}
