// Package hgraph implements the core in-memory hypergraph H=(V,E,w,c) with
// its CSR pin/incidence adjacencies and atomic-block-assignment overlay
// (spec §3). It is grounded on the teacher's pkg/louvain NormalizedGraph /
// pkg2/louvain Graph CSR style (parallel adjacency + weight slices, a
// Validate method, a Clone method) generalized from a plain weighted graph
// to a hypergraph with both pin and incidence adjacency and weighted nodes
// and edges.
package hgraph

import (
	"fmt"

	"github.com/gilchrisn/graph-clustering-service/internal/errs"
	"github.com/gilchrisn/graph-clustering-service/internal/segarray"
)

// Hypergraph is H=(V,E,w,c): N vertices with integer weights, M hyperedges
// with integer weights and pin lists of distinct vertex ids.
type Hypergraph struct {
	NumNodes int
	NumEdges int

	nodeWeight []int64
	edgeWeight []int64

	// pins[e] is edge e's pin list (distinct vertex ids, size >= 1).
	pins [][]int32

	// incident is the per-vertex incident-net array, stored in a shared
	// arena so concatenation/splitting during (un)contraction is O(1).
	arena    *segarray.Arena
	incident []segarray.Header

	// fixedVertices, if non-nil, marks vertices exempt from further
	// contraction (not used by the core spec but kept for an adaptive
	// max_allowed_node_weight extension hook); zero value means none fixed.
	fixedVertices []bool
}

// New builds an empty hypergraph for n vertices; edges are added with
// AddEdge. Vertex weights default to 1.
func New(n int) *Hypergraph {
	h := &Hypergraph{
		NumNodes:      n,
		nodeWeight:    make([]int64, n),
		pins:          nil,
		arena:         segarray.NewArena(),
		incident:      make([]segarray.Header, n),
		fixedVertices: make([]bool, n),
	}
	for i := range h.nodeWeight {
		h.nodeWeight[i] = 1
	}
	for i := range h.incident {
		h.incident[i] = h.arena.NewChain()
	}
	return h
}

// SetNodeWeight sets vertex v's weight.
func (h *Hypergraph) SetNodeWeight(v int, w int64) { h.nodeWeight[v] = w }

// NodeWeight returns vertex v's weight.
func (h *Hypergraph) NodeWeight(v int) int64 { return h.nodeWeight[v] }

// TotalWeight returns c(V), the sum of all vertex weights.
func (h *Hypergraph) TotalWeight() int64 {
	var total int64
	for _, w := range h.nodeWeight {
		total += w
	}
	return total
}

// AddEdge appends a new hyperedge with the given weight and distinct pin
// list; returns its id. Pins must be in [0, NumNodes) and the list must be
// non-empty, per spec §3.
func (h *Hypergraph) AddEdge(weight int64, pins []int32) (int32, error) {
	if len(pins) == 0 {
		return 0, errs.New(errs.InvalidInput, "hgraph.AddEdge", fmt.Errorf("empty hyperedge"))
	}
	seen := make(map[int32]struct{}, len(pins))
	cp := make([]int32, 0, len(pins))
	for _, p := range pins {
		if p < 0 || int(p) >= h.NumNodes {
			return 0, errs.Newf(errs.InvalidInput, "hgraph.AddEdge", "pin %d out of range [0,%d)", p, h.NumNodes)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		cp = append(cp, p)
	}
	edgeID := int32(len(h.pins))
	h.pins = append(h.pins, cp)
	h.edgeWeight = append(h.edgeWeight, weight)
	h.NumEdges++
	for _, p := range cp {
		h.arena.Append(&h.incident[p], edgeID)
	}
	return edgeID, nil
}

// EdgeWeight returns w(e).
func (h *Hypergraph) EdgeWeight(e int32) int64 { return h.edgeWeight[e] }

// Pins returns the (distinct) vertex ids incident to edge e. Callers must
// not mutate the returned slice.
func (h *Hypergraph) Pins(e int32) []int32 { return h.pins[e] }

// EdgeSize returns |e|.
func (h *Hypergraph) EdgeSize(e int32) int { return len(h.pins[e]) }

// NumVertices, NumHyperedges, HyperedgeWeight, HyperedgePins, and
// VertexDegree implement core/graph.Hypergraphlike (and its optional
// degreeOracle extension) so core/graph.Build can consume a *Hypergraph
// directly without an import cycle.
func (h *Hypergraph) NumVertices() int                  { return h.NumNodes }
func (h *Hypergraph) NumHyperedges() int                { return h.NumEdges }
func (h *Hypergraph) HyperedgeWeight(e int32) int64     { return h.edgeWeight[e] }
func (h *Hypergraph) HyperedgePins(e int32) []int32     { return h.pins[e] }
func (h *Hypergraph) VertexDegree(v int) int            { return h.NodeDegree(v) }

// IncidentEdges returns the active incident edge ids of vertex v.
func (h *Hypergraph) IncidentEdges(v int) []int32 { return h.arena.Active(h.incident[v]) }

// NodeDegree returns the number of active incident edges of v.
func (h *Hypergraph) NodeDegree(v int) int { return h.incident[v].Degree() }

// IsFixed reports whether v is exempt from further contraction.
func (h *Hypergraph) IsFixed(v int) bool { return h.fixedVertices[v] }

// SetFixed marks v as exempt (or not) from further contraction.
func (h *Hypergraph) SetFixed(v int, fixed bool) { h.fixedVertices[v] = fixed }

// Validate checks the structural invariants: every edge has >=1 distinct
// pin in range, and total vertex weight is non-negative.
func (h *Hypergraph) Validate() error {
	if h.NumNodes <= 0 {
		return errs.New(errs.InvalidInput, "hgraph.Validate", fmt.Errorf("hypergraph has no vertices"))
	}
	for e, pins := range h.pins {
		if len(pins) == 0 {
			return errs.Newf(errs.InvalidInput, "hgraph.Validate", "edge %d is empty", e)
		}
		seen := make(map[int32]struct{}, len(pins))
		for _, p := range pins {
			if p < 0 || int(p) >= h.NumNodes {
				return errs.Newf(errs.InvalidInput, "hgraph.Validate", "edge %d has out-of-range pin %d", e, p)
			}
			if _, dup := seen[p]; dup {
				return errs.Newf(errs.InvalidInput, "hgraph.Validate", "edge %d has duplicate pin %d", e, p)
			}
			seen[p] = struct{}{}
		}
	}
	return nil
}

// ContractionRecord captures everything needed to reverse one Contract call
// (spec §3 "must support in-place contraction and uncontraction in reverse
// order").
type ContractionRecord struct {
	Into int32 // surviving vertex u
	From int32 // contracted-away vertex v

	vHeaderSnapshot segarray.Header // v's incident-net header just before the splice
	vWeight         int64

	// overwritten lists edges where v's pin slot was simply relabeled to u
	// (v was not already a pin of that edge).
	overwritten []rewiredEdge
	// removed lists edges where v was dropped entirely because u was
	// already a pin of that edge (the hyperedge would otherwise carry a
	// duplicate pin, i.e. a self-loop after contraction).
	removed []rewiredEdge
}

type rewiredEdge struct {
	edge int32
	pos  int // index within pins[edge] where v used to sit
}

// Contract merges vertex v into vertex u: v's weight is added to u, v's
// incident-net chain is spliced onto u's (O(1)), and every edge incident to
// both u and v (a newly-formed self-loop after contraction) has its
// duplicate pin removed. Returns a record sufficient for Uncontract.
func (h *Hypergraph) Contract(u, v int32) (*ContractionRecord, error) {
	if u == v {
		return nil, errs.New(errs.InvalidInput, "hgraph.Contract", fmt.Errorf("cannot contract vertex %d into itself", u))
	}
	rec := &ContractionRecord{
		Into:    u,
		From:    v,
		vWeight: h.nodeWeight[v],
	}

	h.nodeWeight[u] += h.nodeWeight[v]
	h.nodeWeight[v] = 0

	vEdges := h.arena.Active(h.incident[v])
	uSet := make(map[int32]struct{}, h.incident[u].Degree())
	for _, e := range h.arena.Active(h.incident[u]) {
		uSet[e] = struct{}{}
	}

	for _, e := range vEdges {
		pins := h.pins[e]
		pos := -1
		for i, p := range pins {
			if p == v {
				pos = i
				break
			}
		}
		if _, already := uSet[e]; already {
			// parallel pin after contraction: drop v's occurrence, remember
			// its position so Uncontract can re-insert it verbatim. e is
			// already listed against u, so deactivate it from v's own
			// incident-net chain first -- otherwise Concatenate would splice
			// a second, duplicate active entry for e onto u's chain (spec
			// §3's Deactivate exists precisely to prevent this).
			rec.removed = append(rec.removed, rewiredEdge{edge: e, pos: pos})
			h.pins[e] = append(pins[:pos:pos], pins[pos+1:]...)
			h.arena.Deactivate(&h.incident[v], e)
		} else {
			rec.overwritten = append(rec.overwritten, rewiredEdge{edge: e, pos: pos})
			h.pins[e][pos] = u
		}
	}

	// Snapshot v's header after the Deactivate calls above, not before: this
	// is exactly the header state Concatenate is about to splice onto u
	// (size/degree already excluding the deactivated duplicates), so Split
	// can undo Concatenate's u.size/u.degree bookkeeping with matching
	// numbers during Uncontract.
	rec.vHeaderSnapshot = h.incident[v]
	h.arena.Concatenate(&h.incident[u], &h.incident[v])
	return rec, nil
}

// Uncontract reverses rec exactly, restoring nodeWeight, pin lists, and the
// incident-net arrays of both u and v (spec invariant #5).
func (h *Hypergraph) Uncontract(rec *ContractionRecord) error {
	u, v := rec.Into, rec.From

	for _, rw := range rec.overwritten {
		h.pins[rw.edge][rw.pos] = v
	}
	for i := len(rec.removed) - 1; i >= 0; i-- {
		rw := rec.removed[i]
		pins := h.pins[rw.edge]
		restored := make([]int32, len(pins)+1)
		copy(restored, pins[:rw.pos])
		restored[rw.pos] = v
		copy(restored[rw.pos+1:], pins[rw.pos:])
		h.pins[rw.edge] = restored
	}

	h.arena.Split(&h.incident[u], rec.vHeaderSnapshot.Head(), rec.vHeaderSnapshot.Size(), rec.vHeaderSnapshot.DegreeRaw())
	h.incident[v] = rec.vHeaderSnapshot

	// Reactivate the duplicate entries Contract deactivated from v's own
	// chain, in reverse order, restoring v's incident-net array to exactly
	// what it was before Contract ran.
	for i := len(rec.removed) - 1; i >= 0; i-- {
		h.arena.Reactivate(&h.incident[v], rec.removed[i].edge)
	}

	h.nodeWeight[v] = rec.vWeight
	h.nodeWeight[u] -= rec.vWeight
	return nil
}
