package initialpartition

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

func buildClique(t *testing.T, n int) *hgraph.Hypergraph {
	t.Helper()
	h := hgraph.New(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if _, err := h.AddEdge(1, []int32{int32(i), int32(j)}); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
		}
	}
	return h
}

func defaultOptions(k int) Options {
	return Options{
		K:                       k,
		Epsilon:                 0.1,
		Objective:               config.ObjectiveKm1,
		Runs:                    3,
		UseAdaptiveRuns:         false,
		MinAdaptiveRuns:         2,
		PerformRefinementOnBest: true,
		FMRefinementRounds:      4,
		PopulationSize:          4,
		LPMaxIterations:         10,
		Seed:                    7,
	}
}

func TestRunProducesFeasiblePartitionOnBalancedInput(t *testing.T) {
	h := buildClique(t, 12)
	ph, report, err := Run(h, defaultOptions(3), logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ph.Imbalance() > 0.1+1e-9 {
		t.Fatalf("Imbalance = %g, want <= 0.1", ph.Imbalance())
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
	if report.BestAlgorithm == "" {
		t.Fatal("expected a winning algorithm name")
	}
}

func TestRunAssignsEveryVertex(t *testing.T) {
	h := buildClique(t, 8)
	ph, _, err := Run(h, defaultOptions(2), logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for v := 0; v < h.NumVertices(); v++ {
		if ph.BlockOf(v) == hgraph.Unassigned {
			t.Fatalf("vertex %d left unassigned", v)
		}
	}
}

func TestIsOtherBetterAntiSymmetric(t *testing.T) {
	cases := []Result{
		{Objective: 10, Imbalance: 0.05, Feasible: true, tag: 1},
		{Objective: 10, Imbalance: 0.05, Feasible: true, tag: 2},
		{Objective: 8, Imbalance: 0.2, Feasible: false, tag: 3},
		{Objective: 12, Imbalance: 0.0, Feasible: true, tag: 4},
	}
	for i, a := range cases {
		for j, b := range cases {
			if i == j {
				continue
			}
			if isOtherBetter(a, b, true) && isOtherBetter(b, a, true) {
				t.Fatalf("anti-symmetry violated for %+v vs %+v", a, b)
			}
		}
	}
}

func TestEvaluateKm1ZeroWhenSingleBlock(t *testing.T) {
	h := buildClique(t, 6)
	part := make([]int32, 6)
	obj, imb := evaluate(h, part, 2, config.ObjectiveKm1)
	if obj != 0 {
		t.Fatalf("km1 = %d, want 0 when all vertices share one block", obj)
	}
	if imb <= 0 {
		t.Fatalf("imbalance = %g, want > 0 when one block holds everything", imb)
	}
}
