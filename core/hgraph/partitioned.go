package hgraph

import (
	"sync/atomic"

	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// Unassigned is the sentinel block id for a vertex with no assignment yet.
const Unassigned int32 = -1

// PartitionedHypergraph overlays a block assignment onto a Hypergraph with
// atomic per-edge-per-block pin counts and atomic per-block weights (spec
// §3). All move application goes through MoveVertex, which enforces the
// balance precondition (invariant #1) and keeps pinCount/blockWeight exact
// (invariant #2).
type PartitionedHypergraph struct {
	H *Hypergraph
	K int

	part []int32 // part[v], atomic

	// pinCount is edge-major, block-minor: pinCount[e*K+b].
	pinCount []int64

	blockWeight   []int64 // atomic per-block weight
	maxBlockWeight []int64

	cache *GainCache
}

// NewPartitioned creates an unassigned partition of h into k blocks, each
// with the given max weight (typically ceil(c(V)/k) * (1+epsilon)).
func NewPartitioned(h *Hypergraph, k int, maxBlockWeight []int64) *PartitionedHypergraph {
	ph := &PartitionedHypergraph{
		H:              h,
		K:              k,
		part:           make([]int32, h.NumNodes),
		pinCount:       make([]int64, h.NumEdges*k),
		blockWeight:    make([]int64, k),
		maxBlockWeight: append([]int64(nil), maxBlockWeight...),
	}
	for i := range ph.part {
		ph.part[i] = Unassigned
	}
	return ph
}

// EnableGainCache allocates and populates the gain cache (spec §3 "gain
// cache: initialized lazily by the refiner").
func (ph *PartitionedHypergraph) EnableGainCache() { ph.cache = NewGainCache(ph) }

// GainCache returns the gain cache, or nil if not enabled.
func (ph *PartitionedHypergraph) GainCacheRef() *GainCache { return ph.cache }

// BlockOf returns v's current block, or Unassigned.
func (ph *PartitionedHypergraph) BlockOf(v int) int32 { return atomic.LoadInt32(&ph.part[v]) }

// BlockWeight returns W[b].
func (ph *PartitionedHypergraph) BlockWeight(b int) int64 { return atomic.LoadInt64(&ph.blockWeight[b]) }

// MaxBlockWeight returns the balance cap for block b.
func (ph *PartitionedHypergraph) MaxBlockWeight(b int) int64 { return ph.maxBlockWeight[b] }

// PinCount returns pinCount[e][b].
func (ph *PartitionedHypergraph) PinCount(e int32, b int) int64 {
	return atomic.LoadInt64(&ph.pinCount[int(e)*ph.K+b])
}

// ConnectivitySize returns |{b : pinCount[e][b] > 0}|, the connectivity set
// size used by km1 (invariant #4: must be >= 1 for any edge with >=1 pin).
func (ph *PartitionedHypergraph) ConnectivitySize(e int32) int {
	n := 0
	for b := 0; b < ph.K; b++ {
		if ph.PinCount(e, b) > 0 {
			n++
		}
	}
	return n
}

// AssignInitial sets v's block directly without balance checks, used only
// while building the very first (possibly infeasible) partition; pinCount
// and blockWeight are updated exactly as MoveVertex would.
func (ph *PartitionedHypergraph) AssignInitial(v int, b int32) {
	old := ph.part[v]
	ph.part[v] = b
	if old >= 0 {
		for _, e := range ph.H.IncidentEdges(v) {
			ph.pinCount[int(e)*ph.K+int(old)]--
		}
		ph.blockWeight[old] -= ph.H.NodeWeight(v)
	}
	for _, e := range ph.H.IncidentEdges(v) {
		ph.pinCount[int(e)*ph.K+int(b)]++
	}
	ph.blockWeight[b] += ph.H.NodeWeight(v)
}

// CanMove reports whether moving v to block to would respect the balance
// precondition (invariant #1): W[to] + c(v) <= maxWeight[to].
func (ph *PartitionedHypergraph) CanMove(v int, to int32) bool {
	w := ph.H.NodeWeight(v)
	return ph.BlockWeight(int(to))+w <= ph.maxBlockWeight[to]
}

// MoveVertex atomically moves v from its current block to `to`, updating
// pinCount and blockWeight for every incident edge (invariant #1 and #2).
// Returns false without effect if the move would violate balance.
func (ph *PartitionedHypergraph) MoveVertex(v int, to int32) (bool, error) {
	from := ph.BlockOf(v)
	if from == to {
		return true, nil
	}
	if from == Unassigned {
		return false, errs.New(errs.Internal, "hgraph.MoveVertex", errUnassignedMove)
	}
	if !ph.CanMove(v, to) {
		return false, nil
	}
	w := ph.H.NodeWeight(v)

	// v's block is published first so gain-cache recomputes see v in `to`.
	atomic.StoreInt32(&ph.part[v], to)
	for _, e := range ph.H.IncidentEdges(v) {
		atomic.AddInt64(&ph.pinCount[int(e)*ph.K+int(from)], -1)
		atomic.AddInt64(&ph.pinCount[int(e)*ph.K+int(to)], 1)
		if ph.cache != nil {
			ph.cache.onPinCountChange(ph, e, from, to)
		}
	}
	atomic.AddInt64(&ph.blockWeight[from], -w)
	atomic.AddInt64(&ph.blockWeight[to], w)
	if ph.cache != nil {
		ph.cache.recomputeVertex(ph, v)
	}
	return true, nil
}

var errUnassignedMove = errUnassigned{}

type errUnassigned struct{}

func (errUnassigned) Error() string { return "cannot move an unassigned vertex" }

// Cut computes Σ_{e crosses >=2 blocks} w(e) from scratch.
func (ph *PartitionedHypergraph) Cut() int64 {
	var total int64
	for e := int32(0); e < int32(ph.H.NumEdges); e++ {
		if ph.ConnectivitySize(e) >= 2 {
			total += ph.H.EdgeWeight(e)
		}
	}
	return total
}

// Km1 computes Σ_e w(e)*(|connectivity(e)|-1) from scratch.
func (ph *PartitionedHypergraph) Km1() int64 {
	var total int64
	for e := int32(0); e < int32(ph.H.NumEdges); e++ {
		c := ph.ConnectivitySize(e)
		if c > 0 {
			total += ph.H.EdgeWeight(e) * int64(c-1)
		}
	}
	return total
}

// Imbalance returns max_b W[b] / ceil(W(V)/k) - 1.
func (ph *PartitionedHypergraph) Imbalance() float64 {
	total := ph.H.TotalWeight()
	ideal := (total + int64(ph.K) - 1) / int64(ph.K)
	if ideal == 0 {
		return 0
	}
	var maxW int64
	for b := 0; b < ph.K; b++ {
		if w := ph.BlockWeight(b); w > maxW {
			maxW = w
		}
	}
	return float64(maxW)/float64(ideal) - 1.0
}

// ValidatePinCounts checks invariant #2 (Σ_b pinCount[e][b] == |e|) for
// every edge, used by tests and debug assertions.
func (ph *PartitionedHypergraph) ValidatePinCounts() error {
	for e := int32(0); e < int32(ph.H.NumEdges); e++ {
		var sum int64
		for b := 0; b < ph.K; b++ {
			sum += ph.PinCount(e, b)
		}
		if int(sum) != ph.H.EdgeSize(e) {
			return errs.Newf(errs.Internal, "hgraph.ValidatePinCounts", "edge %d: pin count sum %d != |e|=%d", e, sum, ph.H.EdgeSize(e))
		}
	}
	return nil
}
