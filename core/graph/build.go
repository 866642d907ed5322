package graph

import "github.com/gilchrisn/graph-clustering-service/internal/config"

// Build constructs a Graph from a hypergraph-like source for Louvain
// preprocessing (spec §3 "Graph (for Louvain)"). If every hyperedge has
// size 2, the graph is built directly (2*M arcs, invariant #6); otherwise a
// bipartite graph over V∪E is built with 2*Σ|e| arcs.
func Build(h Hypergraphlike, rule config.EdgeWeightFunction) *Graph {
	if isTwoUniform(h) {
		return buildDirect(h)
	}
	return buildBipartite(h, rule)
}

// Hypergraphlike is the minimal read surface core/hgraph.Hypergraph offers
// that graph construction needs; kept as an interface so tests can supply
// small literal fixtures without importing core/hgraph (avoids an import
// cycle since core/hgraph never needs core/graph).
type Hypergraphlike interface {
	NumVertices() int
	NumHyperedges() int
	HyperedgeWeight(e int32) int64
	HyperedgePins(e int32) []int32
}

func isTwoUniform(h Hypergraphlike) bool {
	for e := int32(0); e < int32(h.NumHyperedges()); e++ {
		if len(h.HyperedgePins(e)) != 2 {
			return false
		}
	}
	return true
}

// buildDirect builds the graph with exactly 2*M arcs, one undirected edge
// per hyperedge of size 2 (invariant #6: no bipartite auxiliary nodes).
func buildDirect(h Hypergraphlike) *Graph {
	b := newBuilder(h.NumVertices())
	for e := int32(0); e < int32(h.NumHyperedges()); e++ {
		pins := h.HyperedgePins(e)
		w := float64(h.HyperedgeWeight(e))
		if pins[0] == pins[1] {
			b.addSelfLoop(pins[0], 2*w)
		} else {
			b.add(pins[0], pins[1], w)
		}
	}
	return b.build()
}

// buildBipartite builds a graph over V∪E: node ids [0,N) are original
// vertices, node ids [N,N+M) are hyperedges. Each pin contributes one arc
// pair between the vertex and the hyperedge node, weighted per rule.
func buildBipartite(h Hypergraphlike, rule config.EdgeWeightFunction) *Graph {
	n := h.NumVertices()
	m := h.NumHyperedges()
	b := newBuilder(n + m)
	for e := int32(0); e < int32(m); e++ {
		pins := h.HyperedgePins(e)
		w := float64(h.HyperedgeWeight(e))
		edgeNode := int32(n) + e
		for _, p := range pins {
			weight := w
			switch rule {
			case config.EdgeWeightNonUniform:
				weight = w / float64(len(pins))
			case config.EdgeWeightDegree:
				// degree-scaled weight needs the vertex's hypergraph degree,
				// which Hypergraphlike doesn't expose directly; it is read
				// through the optional degreeOracle extension, and without one
				// the weight falls back to the non-uniform rule w/|e|.
				if hd, ok := h.(degreeOracle); ok {
					weight = w * float64(hd.VertexDegree(int(p))) / float64(len(pins))
				} else {
					weight = w / float64(len(pins))
				}
			}
			b.add(p, edgeNode, weight)
		}
	}
	return b.build()
}

// degreeOracle is an optional extension of Hypergraphlike that exposes a
// vertex's hypergraph degree, needed by the "degree" edge-weight rule.
type degreeOracle interface {
	VertexDegree(v int) int
}
