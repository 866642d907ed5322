package louvain

import (
	"testing"

	"github.com/gilchrisn/graph-clustering-service/core/graph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

type edge struct {
	u, v int32
	w    int64
}

type literalHypergraph struct {
	n     int
	edges []edge
}

func (l *literalHypergraph) NumVertices() int             { return l.n }
func (l *literalHypergraph) NumHyperedges() int            { return len(l.edges) }
func (l *literalHypergraph) HyperedgeWeight(e int32) int64 { return l.edges[e].w }
func (l *literalHypergraph) HyperedgePins(e int32) []int32 { return []int32{l.edges[e].u, l.edges[e].v} }

// twoTriangles builds two tightly-connected triangles joined by a single
// bridge edge -- a minimal graph where Louvain should find two clusters.
func twoTriangles() *graph.Graph {
	h := &literalHypergraph{
		n: 6,
		edges: []edge{
			{0, 1, 1}, {1, 2, 1}, {0, 2, 1},
			{3, 4, 1}, {4, 5, 1}, {3, 5, 1},
			{2, 3, 1},
		},
	}
	return graph.Build(h, config.EdgeWeightUniform)
}

func defaultOptions() Options {
	return Options{
		MaxPassIterations:             20,
		MinVertexMoveFraction:         0.0001,
		VertexDegreeSamplingThreshold: 0, // no sampling for small graphs
		Seed:                          42,
	}
}

func TestRunFindsTwoCommunities(t *testing.T) {
	g := twoTriangles()
	c, err := Run(g, defaultOptions(), logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(c) != g.NumNodes {
		t.Fatalf("len(clustering) = %d, want %d", len(c), g.NumNodes)
	}
	if c[0] != c[1] || c[1] != c[2] {
		t.Fatalf("triangle {0,1,2} split across clusters: %v", c[:3])
	}
	if c[3] != c[4] || c[4] != c[5] {
		t.Fatalf("triangle {3,4,5} split across clusters: %v", c[3:])
	}
	if c[0] == c[3] {
		t.Fatalf("both triangles merged into one cluster: %v", c)
	}
}

func TestRunIsDeterministicGivenSameSeed(t *testing.T) {
	g := twoTriangles()
	opt := defaultOptions()
	opt.Deterministic = true
	opt.NumSubRoundsDeterministic = 4

	c1, err := Run(g, opt, logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	c2, err := Run(g, opt, logging.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for v := range c1 {
		if c1[v] != c2[v] {
			t.Fatalf("deterministic runs diverged at node %d: %d vs %d", v, c1[v], c2[v])
		}
	}
}

func TestModularityNonPositiveForTrivialClustering(t *testing.T) {
	g := twoTriangles()
	trivial := make(Clustering, g.NumNodes)
	for i := range trivial {
		trivial[i] = int32(i)
	}
	q := Modularity(g, trivial)
	if q > 0 {
		t.Fatalf("singleton clustering modularity = %g, expected <= 0", q)
	}
}

func TestFromConfigReadsExpectedDefaults(t *testing.T) {
	cfg := config.New()
	opt := FromConfig(cfg)
	if opt.MaxPassIterations <= 0 {
		t.Fatalf("MaxPassIterations = %d, want > 0", opt.MaxPassIterations)
	}
	if opt.VertexDegreeSamplingThreshold <= 0 {
		t.Fatalf("VertexDegreeSamplingThreshold = %d, want > 0", opt.VertexDegreeSamplingThreshold)
	}
}
