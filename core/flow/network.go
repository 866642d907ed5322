package flow

import "github.com/gilchrisn/graph-clustering-service/core/hgraph"

// infiniteCapacity bounds routing arcs (vertex<->hyperedge legs) far above
// any realistic region weight, so only the hyperedge-internal arc
// (capacity w(e)) and the source/sink anchor arcs can ever be the
// bottleneck of a min cut.
const infiniteCapacity = int64(1) << 40

// Region is one FlowRefiner search's flow network together with the
// bookkeeping needed to translate its min cut back into vertex moves: block
// i anchors to the source, block j anchors to the sink, and each cut
// hyperedge becomes an in/out node pair (Lawler's hypergraph-to-flow-network
// construction) so its w(e) capacity -- not an individual pin -- is what the
// min cut has to sever (spec §4.6 "runs max-flow/min-cut producing a
// MoveSequence").
//
// Anchor arcs use the vertex's own weight as capacity rather than infinity:
// this is a documented simplification (no reference gives an exact
// construction) that lets the balance-conscious side of a swap show up as a
// real cost in the cut instead of only being checked after the fact.
type Region struct {
	Net *Network

	vertexNode map[int32]int32 // region vertex id -> flow node id
	nodeVertex []int32         // flow node id -> region vertex id (only valid for vertex nodes)
	blockI     int32
	blockJ     int32
}

// BuildRegion constructs the flow network for the cut hyperedges between
// blockI and blockJ, restricting the region to at most maxNumPins vertices
// (spec §6 refinement.flows.max_num_pins).
func BuildRegion(ph *hgraph.PartitionedHypergraph, cutEdges []int32, blockI, blockJ int32, maxNumPins int) *Region {
	region := &Region{
		vertexNode: make(map[int32]int32),
		blockI:     blockI,
		blockJ:     blockJ,
	}

	var regionVertices []int32
	seen := make(map[int32]bool)
	for _, e := range cutEdges {
		for _, v := range ph.H.Pins(e) {
			if seen[v] {
				continue
			}
			b := ph.BlockOf(int(v))
			if b != blockI && b != blockJ {
				continue
			}
			if len(regionVertices) >= maxNumPins {
				continue
			}
			seen[v] = true
			regionVertices = append(regionVertices, v)
		}
	}

	numNodes := 2 + len(regionVertices) + 2*len(cutEdges)
	net := NewNetwork(numNodes)
	region.nodeVertex = make([]int32, numNodes)
	for i := range region.nodeVertex {
		region.nodeVertex[i] = -1
	}

	next := int32(2)
	for _, v := range regionVertices {
		region.vertexNode[v] = next
		region.nodeVertex[next] = v
		next++

		w := ph.H.NodeWeight(int(v))
		switch ph.BlockOf(int(v)) {
		case blockI:
			net.AddArc(SourceID, region.vertexNode[v], w)
		case blockJ:
			net.AddArc(region.vertexNode[v], SinkID, w)
		}
	}

	for _, e := range cutEdges {
		hin, hout := next, next+1
		next += 2
		net.AddArc(hin, hout, ph.H.EdgeWeight(e))
		for _, v := range ph.H.Pins(e) {
			node, ok := region.vertexNode[v]
			if !ok {
				continue
			}
			net.AddArc(node, hin, infiniteCapacity)
			net.AddArc(hout, node, infiniteCapacity)
		}
	}

	region.Net = net
	return region
}

// Moves reports, for every region vertex whose min-cut side disagrees with
// its current block, the recommended new block.
func (r *Region) Moves(ph *hgraph.PartitionedHypergraph) map[int32]int32 {
	side := MinCutSide(r.Net)
	moves := make(map[int32]int32)
	for v, node := range r.vertexNode {
		wantsI := side[node]
		cur := ph.BlockOf(int(v))
		switch {
		case wantsI && cur == r.blockJ:
			moves[v] = r.blockI
		case !wantsI && cur == r.blockI:
			moves[v] = r.blockJ
		}
	}
	return moves
}
