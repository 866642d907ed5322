package fm

import "github.com/gilchrisn/graph-clustering-service/core/hgraph"

// Delta is a transparent copy-on-write overlay over a PartitionedHypergraph:
// reads sum shared state plus this task's own deltas, writes touch only the
// deltas (spec §9 "Delta partitioned hypergraph ... small hash map of
// pin-count overrides plus a W-delta array"). Used by LocalizedSearch in
// *local* mode so a task can explore a sequence of moves without touching
// shared state until (and unless) it commits.
type Delta struct {
	ph *hgraph.PartitionedHypergraph

	partOverride  map[int32]int32
	pinCountDelta map[uint64]int64
	weightDelta   map[int32]int64
}

func NewDelta(ph *hgraph.PartitionedHypergraph) *Delta {
	return &Delta{
		ph:            ph,
		partOverride:  make(map[int32]int32),
		pinCountDelta: make(map[uint64]int64),
		weightDelta:   make(map[int32]int64),
	}
}

func pinKey(e int32, b int32) uint64 { return uint64(uint32(e))<<32 | uint64(uint32(b)) }

// BlockOf returns v's block under this delta.
func (d *Delta) BlockOf(v int32) int32 {
	if b, ok := d.partOverride[v]; ok {
		return b
	}
	return d.ph.BlockOf(int(v))
}

// PinCount returns pinCount[e][b] under this delta.
func (d *Delta) PinCount(e int32, b int32) int64 {
	return d.ph.PinCount(e, int(b)) + d.pinCountDelta[pinKey(e, b)]
}

// BlockWeight returns W[b] under this delta.
func (d *Delta) BlockWeight(b int32) int64 {
	return d.ph.BlockWeight(int(b)) + d.weightDelta[b]
}

// CanMove reports whether moving v to `to` respects the balance cap under
// this delta's view.
func (d *Delta) CanMove(v int32, to int32) bool {
	w := d.ph.H.NodeWeight(int(v))
	return d.BlockWeight(to)+w <= d.ph.MaxBlockWeight(int(to))
}

// MoveVertex applies v's move to the delta only, never touching the shared
// PartitionedHypergraph.
func (d *Delta) MoveVertex(v int32, to int32) {
	from := d.BlockOf(v)
	if from == to {
		return
	}
	w := d.ph.H.NodeWeight(int(v))
	for _, e := range d.ph.H.IncidentEdges(int(v)) {
		d.pinCountDelta[pinKey(e, from)]--
		d.pinCountDelta[pinKey(e, to)]++
	}
	d.weightDelta[from] -= w
	d.weightDelta[to] += w
	d.partOverride[v] = to
}

// Gain recomputes v's benefit of moving to b from this delta's pin counts
// (the shared GainCache only reflects committed state, so a task exploring
// a chain of uncommitted delta moves must recompute locally -- spec §9
// "read operations sum shared value + delta").
func (d *Delta) Gain(v int32, b int32) int64 {
	from := d.BlockOf(v)
	if from == b {
		return 0
	}
	var gain int64
	for _, e := range d.ph.H.IncidentEdges(int(v)) {
		w := d.ph.H.EdgeWeight(e)
		if d.PinCount(e, from) == 1 {
			gain += w
		}
		if d.PinCount(e, b) == 0 {
			gain -= w
		}
	}
	return gain
}
