package graph

import (
	"math"
	"testing"

	"github.com/gilchrisn/graph-clustering-service/internal/config"
)

// literalHypergraph is a minimal Hypergraphlike fixture for graph tests.
type literalHypergraph struct {
	n       int
	weights []int64
	pins    [][]int32
}

func (l *literalHypergraph) NumVertices() int              { return l.n }
func (l *literalHypergraph) NumHyperedges() int             { return len(l.pins) }
func (l *literalHypergraph) HyperedgeWeight(e int32) int64  { return l.weights[e] }
func (l *literalHypergraph) HyperedgePins(e int32) []int32  { return l.pins[e] }

func TestBuildTwoUniformIsDirect(t *testing.T) {
	h := &literalHypergraph{
		n:       4,
		weights: []int64{1, 1, 1},
		pins:    [][]int32{{0, 1}, {1, 2}, {2, 3}},
	}
	g := Build(h, config.EdgeWeightUniform)
	if g.NumArcs() != 2*len(h.pins) {
		t.Fatalf("NumArcs = %d, want %d", g.NumArcs(), 2*len(h.pins))
	}
	if g.NumNodes != 4 {
		t.Fatalf("NumNodes = %d, want 4 (no bipartite auxiliary nodes)", g.NumNodes)
	}
	var volSum float64
	for v := 0; v < g.NumNodes; v++ {
		volSum += g.Volume(v)
	}
	tol := 1e-12 * g.TotalVolume()
	if math.Abs(volSum-g.TotalVolume()) > tol+1e-12 {
		t.Fatalf("sum(volumes)=%g, totalVolume=%g (tol %g)", volSum, g.TotalVolume(), tol)
	}
}

func TestBuildNonUniformUsesBipartite(t *testing.T) {
	h := &literalHypergraph{
		n:       4,
		weights: []int64{1},
		pins:    [][]int32{{0, 1, 2, 3}},
	}
	g := Build(h, config.EdgeWeightUniform)
	if g.NumNodes != 4+1 {
		t.Fatalf("NumNodes = %d, want 5 (bipartite V∪E)", g.NumNodes)
	}
	if g.NumArcs() != 2*4 {
		t.Fatalf("NumArcs = %d, want %d", g.NumArcs(), 8)
	}
}

func TestContractProducesRemappedNodes(t *testing.T) {
	h := &literalHypergraph{
		n:       4,
		weights: []int64{1, 1, 1},
		pins:    [][]int32{{0, 1}, {1, 2}, {2, 3}},
	}
	g := Build(h, config.EdgeWeightUniform)
	clustering := []int32{0, 0, 1, 1}
	coarse, err := g.Contract(clustering)
	if err != nil {
		t.Fatalf("Contract: %v", err)
	}
	if coarse.NumNodes != 2 {
		t.Fatalf("NumNodes = %d, want 2", coarse.NumNodes)
	}
	// node 0 (cluster {0,1}) should have exactly one arc to node 1 (cluster {2,3})
	arcs := coarse.Arcs(0)
	if len(arcs) != 1 || arcs[0].Head != 1 {
		t.Fatalf("coarse arcs(0) = %+v, want single arc to node 1", arcs)
	}
	if arcs[0].Weight != 1 {
		t.Fatalf("coarse arc weight = %g, want 1 (edge {1,2})", arcs[0].Weight)
	}
}

func TestContractRejectsMismatchedLength(t *testing.T) {
	h := &literalHypergraph{n: 2, weights: []int64{1}, pins: [][]int32{{0, 1}}}
	g := Build(h, config.EdgeWeightUniform)
	if _, err := g.Contract([]int32{0}); err == nil {
		t.Fatal("expected error for mismatched clustering length")
	}
}
