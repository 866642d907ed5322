package engine

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/coarsening"
	"github.com/gilchrisn/graph-clustering-service/core/fm"
	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/core/initialpartition"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

// buildTwoCliques builds two size-n cliques joined by one bridging
// hyperedge, large enough to force at least one coarsening level.
func buildTwoCliques(t *testing.T, n int) *hgraph.Hypergraph {
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
	for v := 0; v < h.NumNodes; v++ {
		h.SetNodeWeight(v, 1)
	}
	return h
}

func testConfig() *config.Config {
	c := config.NewWithPreset(config.PresetDeterministic)
	c.Set("k", 2)
	c.Set("epsilon", 0.5)
	c.Set("num_threads", 2)
	c.Set("num_vcycles", 1)
	c.Set("initial_partitioning.runs", 2)
	c.Set("initial_partitioning.population_size", 2)
	c.Set("refinement.fm.multitry_rounds", 2)
	c.Set("refinement.fm.num_seed_nodes", 4)
	c.Set("refinement.flows.max_num_pins", 50)
	return c
}

func TestRunProducesFeasiblePartition(t *testing.T) {
	h := buildTwoCliques(t, 8)
	opt := FromConfig(testConfig())

	result, err := Run(h, opt, logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PH == nil {
		t.Fatal("Run returned a nil partition")
	}
	if err := result.PH.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
	for b := 0; b < result.PH.K; b++ {
		if result.PH.BlockWeight(b) > result.PH.MaxBlockWeight(b) {
			t.Fatalf("block %d weight %d exceeds cap %d", b, result.PH.BlockWeight(b), result.PH.MaxBlockWeight(b))
		}
	}
	for v := 0; v < h.NumNodes; v++ {
		if result.PH.BlockOf(v) < 0 {
			t.Fatalf("vertex %d left unassigned", v)
		}
	}
}

// TestRunCyclePinCountsValidAtEveryLevel is a white-box regression test for
// the incident-net duplication bug in Hypergraph.Contract: it drives
// runCycle's own coarsen/project/rebuild loop and calls ValidatePinCounts
// after every intermediate rebuildPartition, not just on the final,
// fully-uncontracted result (where Uncontract's own bookkeeping would mask
// a stale duplicate left over from a still-contracted level).
func TestRunCyclePinCountsValidAtEveryLevel(t *testing.T) {
	h := buildTwoCliques(t, 8)
	opt := FromConfig(testConfig())

	community, err := detectCommunity(h, opt, logging.Nop())
	if err != nil {
		t.Fatalf("detectCommunity: %v", err)
	}

	maxWeights := maxBlockWeights(h, opt)
	hier, err := coarsening.Coarsen(h, community, opt.Coarsening, logging.Nop())
	if err != nil {
		t.Fatalf("Coarsen: %v", err)
	}
	if len(hier.Levels) == 0 {
		t.Skip("no coarsening levels produced for this fixture")
	}

	ph, _, err := initialpartition.Run(h, opt.IP, logging.Nop())
	if err != nil {
		t.Fatalf("initial partition: %v", err)
	}
	if err := ph.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts at coarsest level: %v", err)
	}

	part := extractPart(ph, h.NumVertices())
	for level := len(hier.Levels) - 1; level >= 0; level-- {
		if err := hier.Project(level, part); err != nil {
			t.Fatalf("Project(%d): %v", level, err)
		}
		ph = rebuildPartition(h, part, maxWeights)
		if err := ph.ValidatePinCounts(); err != nil {
			t.Fatalf("ValidatePinCounts at level %d: %v", level, err)
		}
		fm.NewRefiner(ph, opt.FM).Run(logging.Nop())
		if err := ph.ValidatePinCounts(); err != nil {
			t.Fatalf("ValidatePinCounts at level %d after FM: %v", level, err)
		}
		part = extractPart(ph, h.NumVertices())
	}
}

func TestRunHandlesTrivialCoarsening(t *testing.T) {
	h := buildTwoCliques(t, 2)
	c := testConfig()
	c.Set("coarsening.contraction_limit_multiplier", 1000)
	opt := FromConfig(c)

	result, err := Run(h, opt, logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := result.PH.ValidatePinCounts(); err != nil {
		t.Fatalf("ValidatePinCounts: %v", err)
	}
}
