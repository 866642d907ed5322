package hgraph

import "sync/atomic"

// GainCache holds one atomic integer per (v,b): the benefit of moving v to
// b, incrementally maintained from pin-count deltas (spec §3, §9). Storage
// is N*K, laid out so each vertex's K cells are contiguous -- this keeps a
// single vertex's row on as few cache lines as possible, trading false
// sharing between different vertices' rows for locality within one row's
// read (spec §9 "consider sharding by block to reduce false sharing").
type GainCache struct {
	k     int
	cells []int64 // cells[v*k+b]
}

// NewGainCache allocates and fully (re)computes the cache from ph's current
// partition.
func NewGainCache(ph *PartitionedHypergraph) *GainCache {
	gc := &GainCache{k: ph.K, cells: make([]int64, ph.H.NumNodes*ph.K)}
	gc.recomputeAll(ph)
	return gc
}

func (gc *GainCache) recomputeAll(ph *PartitionedHypergraph) {
	for v := 0; v < ph.H.NumNodes; v++ {
		gc.recomputeVertex(ph, v)
	}
}

// recomputeVertex recomputes every (v,b) cell from the current pin counts:
// moving v to b removes w(e) from the cut for every edge where v is the
// only pin currently in from-block-after-removal considerations and adds
// w(e) if b would newly join the connectivity set. Concretely, for km1,
// gain(v,b) = Σ_e incident(v) [ benefit(e, from, to) ], where removing v
// from `from` drops it from the connectivity set iff pinCount[e][from]==1,
// and adding v to `to` grows the connectivity set iff pinCount[e][to]==0.
func (gc *GainCache) recomputeVertex(ph *PartitionedHypergraph, v int) {
	from := ph.BlockOf(v)
	row := gc.cells[v*gc.k : v*gc.k+gc.k]
	for b := range row {
		row[b] = 0
	}
	for _, e := range ph.H.IncidentEdges(v) {
		w := ph.H.EdgeWeight(e)
		removeBenefit := int64(0)
		if from >= 0 && ph.PinCount(e, int(from)) == 1 {
			removeBenefit = w
		}
		for b := 0; b < gc.k; b++ {
			if int32(b) == from {
				continue
			}
			addCost := int64(0)
			if ph.PinCount(e, b) == 0 {
				addCost = w
			}
			row[b] += removeBenefit - addCost
		}
	}
}

// Gain returns the cached benefit of moving v to block b.
func (gc *GainCache) Gain(v, b int) int64 { return atomic.LoadInt64(&gc.cells[v*gc.k+b]) }

// onPinCountChange is invoked by MoveVertex for every edge whose pin count
// changed, and recomputes the gain rows of every pin of that edge -- spec
// §4.5: "these are the only edges where any
// pin's gain changes" whenever pinCount-in-from goes 0/1 or pinCount-in-to
// goes 1/2.
func (gc *GainCache) onPinCountChange(ph *PartitionedHypergraph, e int32, from, to int32) {
	cntFrom := ph.PinCount(e, int(from))
	cntTo := ph.PinCount(e, int(to))
	if cntFrom > 1 && cntTo > 2 {
		return // neither boundary crossed; no pin's gain for this edge changed
	}
	for _, p := range ph.H.Pins(e) {
		gc.recomputeVertex(ph, int(p))
	}
}
