// Package graph implements the plain weighted CSR graph view (spec §3, §4.1)
// used by community detection: built from a Hypergraph directly (2-uniform
// input) or via a bipartite V∪E construction, with deterministic parallel
// volume reduction.
//
// Grounded on the teacher's pkg2/louvain.Graph / pkg/louvain.NormalizedGraph
// CSR style (parallel Adjacency/Weights slices, Degrees, TotalWeight,
// Clone, Validate), generalized here to true CSR (flat index+arc arrays
// instead of a slice-of-slices) to match spec §3's "two CSR-style
// adjacencies" requirement and to support the contraction algorithm's
// prefix-sum offset scheme (spec §4.1).
package graph

import (
	"fmt"

	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// Arc is one directed, weighted edge in the CSR arc array.
type Arc struct {
	Head   int32
	Weight float64
}

// Graph is a CSR weighted undirected graph: arcs of node i are
// arcs[indices[i]:indices[i+1]].
type Graph struct {
	NumNodes    int
	indices     []int32
	arcs        []Arc
	nodeVolumes []float64
	totalVolume float64
}

// NumArcs returns the number of directed arcs (each undirected edge counted
// twice, per spec invariant #6; a self-loop is stored as a single arc).
func (g *Graph) NumArcs() int { return len(g.arcs) }

// Arcs returns node v's arcs. Callers must not mutate the returned slice.
func (g *Graph) Arcs(v int) []Arc { return g.arcs[g.indices[v]:g.indices[v+1]] }

// Volume returns node v's volume (sum of incident arc weights).
func (g *Graph) Volume(v int) float64 { return g.nodeVolumes[v] }

// TotalVolume returns the deterministically-reduced sum of all node volumes.
func (g *Graph) TotalVolume() float64 { return g.totalVolume }

// builder accumulates (from,to,weight) triples before CSR compaction.
type builder struct {
	n    int
	from []int32
	to   []int32
	w    []float64
}

func newBuilder(n int) *builder { return &builder{n: n} }

func (b *builder) add(u, v int32, w float64) {
	b.from = append(b.from, u, v)
	b.to = append(b.to, v, u)
	b.w = append(b.w, w, w)
}

func (b *builder) addSelfLoop(u int32, w float64) {
	b.from = append(b.from, u)
	b.to = append(b.to, u)
	b.w = append(b.w, w)
}

// build compacts accumulated triples into CSR form with deterministic
// per-node volume reduction (fixed-block compensated summation, spec §4.1
// "double addition is order-sensitive; use fixed-block deterministic
// summation").
func (b *builder) build() *Graph {
	g := &Graph{NumNodes: b.n, indices: make([]int32, b.n+1)}
	degree := make([]int32, b.n)
	for _, u := range b.from {
		degree[u]++
	}
	for i := 0; i < b.n; i++ {
		g.indices[i+1] = g.indices[i] + degree[i]
	}
	g.arcs = make([]Arc, len(b.from))
	cursor := append([]int32(nil), g.indices[:b.n]...)
	for i := range b.from {
		u := b.from[i]
		pos := cursor[u]
		g.arcs[pos] = Arc{Head: b.to[i], Weight: b.w[i]}
		cursor[u]++
	}
	g.nodeVolumes = make([]float64, b.n)
	for v := 0; v < b.n; v++ {
		g.nodeVolumes[v] = deterministicSum(g.Arcs(v))
	}
	g.totalVolume = deterministicSumFloat(g.nodeVolumes)
	return g
}

// deterministicSum sums arc weights in fixed blocks of 8 with Kahan
// compensation per block, then combines block sums in index order -- the
// same result regardless of how many goroutines computed the blocks,
// addressing spec §9's open question about double-accumulation order.
func deterministicSum(arcs []Arc) float64 {
	const blockSize = 8
	var total, comp float64
	for i := 0; i < len(arcs); i += blockSize {
		end := i + blockSize
		if end > len(arcs) {
			end = len(arcs)
		}
		var blockSum, blockComp float64
		for _, a := range arcs[i:end] {
			y := a.Weight - blockComp
			t := blockSum + y
			blockComp = (t - blockSum) - y
			blockSum = t
		}
		y := blockSum - comp
		t := total + y
		comp = (t - total) - y
		total = t
	}
	return total
}

func deterministicSumFloat(vals []float64) float64 {
	const blockSize = 8
	var total, comp float64
	for i := 0; i < len(vals); i += blockSize {
		end := i + blockSize
		if end > len(vals) {
			end = len(vals)
		}
		var blockSum, blockComp float64
		for _, v := range vals[i:end] {
			y := v - blockComp
			t := blockSum + y
			blockComp = (t - blockSum) - y
			blockSum = t
		}
		y := blockSum - comp
		t := total + y
		comp = (t - total) - y
		total = t
	}
	return total
}

// Validate checks basic CSR consistency: at least one node, every arc head
// in range, non-negative weights. Arc symmetry is not checked.
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return errs.New(errs.InvalidInput, "graph.Validate", fmt.Errorf("graph has no nodes"))
	}
	for v := 0; v < g.NumNodes; v++ {
		for _, a := range g.Arcs(v) {
			if int(a.Head) < 0 || int(a.Head) >= g.NumNodes {
				return errs.Newf(errs.InvalidInput, "graph.Validate", "node %d has arc to invalid node %d", v, a.Head)
			}
			if a.Weight < 0 {
				return errs.Newf(errs.InvalidInput, "graph.Validate", "negative arc weight %g on node %d", a.Weight, v)
			}
		}
	}
	return nil
}
