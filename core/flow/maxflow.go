// Package flow implements the C7 flow-based refinement: the quotient-graph
// active-block scheduler of package core/quotient driving a pool of
// FlowRefiner workers (refiner.go), each owning its own max-flow/min-cut
// solver (this file).
//
// The solver is a sparse push-relabel max-flow algorithm with FIFO-by-height
// node discharge and the classic gap heuristic, adapted from
// other_examples/gazette-core__push_relabel.go: that reference models a
// dynamically-paged Network (arcs fetched lazily per node, current-arc state
// resumed across discharge calls) because its caller mutates the graph
// between solves. Our flow networks are rebuilt fresh and fully known for
// every search region, so the paging/PushFront machinery is dropped in favor
// of a plain static adjacency list with paired forward/residual edges; the
// discharge loop, height-indexed active heap, and height-count gap heuristic
// are kept, since those are the part of the algorithm worth reusing.
package flow

import "container/heap"

const noNode = int32(-1)

// edge is one directed arc of the residual network; edges are always added
// in forward/residual pairs stored at consecutive indices, so an edge's
// reverse lives at edges[i^1].
type edge struct {
	to  int32
	cap int64 // remaining residual capacity
}

// Network is a static max-flow instance: node 0 is always the source, node 1
// the sink (matching the gazette reference's convention).
type Network struct {
	n     int
	edges []edge
	head  [][]int32
}

const SourceID int32 = 0
const SinkID int32 = 1

// NewNetwork allocates an empty network over n nodes (including source and sink).
func NewNetwork(n int) *Network {
	return &Network{n: n, head: make([][]int32, n)}
}

// AddArc adds a directed arc u->v with the given capacity and its zero-capacity
// residual v->u, returning the forward edge's index (useful for reading back
// how much flow crossed it after solving).
func (g *Network) AddArc(u, v int32, capacity int64) int32 {
	fwd := int32(len(g.edges))
	g.edges = append(g.edges, edge{to: v, cap: capacity})
	g.edges = append(g.edges, edge{to: u, cap: 0})
	g.head[u] = append(g.head[u], fwd)
	g.head[v] = append(g.head[v], fwd+1)
	return fwd
}

// FlowOn returns the amount of flow currently carried by the arc returned
// from AddArc, derived from how much of its capacity has been consumed.
func (g *Network) FlowOn(fwdEdgeIdx int32, originalCapacity int64) int64 {
	return originalCapacity - g.edges[fwdEdgeIdx].cap
}

// solver holds push-relabel's mutable state for one FindMaxFlow call.
type solver struct {
	g *Network

	height      []int32
	heightCount []int32
	excess      []int64
	curArc      []int32 // index into head[v] of the next arc to try
	active      []int32 // heap of node ids with excess > 0, max-height first
}

// FindMaxFlow computes the maximum flow from SourceID to SinkID and leaves
// g's residual capacities reflecting the final flow (callers read blocking
// arcs off of g to recover the min cut).
func FindMaxFlow(g *Network) int64 {
	s := &solver{
		g:           g,
		height:      make([]int32, g.n),
		heightCount: make([]int32, g.n+1),
		excess:      make([]int64, g.n),
		curArc:      make([]int32, g.n),
	}
	s.height[SourceID] = int32(g.n)
	s.heightCount[0] = int32(g.n - 1) // every node but source starts at height 0
	s.heightCount[g.n] = 1

	// Saturate every arc out of the source to establish the initial preflow.
	for _, fid := range g.head[SourceID] {
		e := &g.edges[fid]
		if e.cap <= 0 {
			continue
		}
		delta := e.cap
		s.pushAlong(fid, delta)
	}

	for {
		v, ok := s.popActive()
		if !ok {
			break
		}
		s.discharge(v)
	}
	return s.excess[SinkID]
}

func (s *solver) pushAlong(fid int32, delta int64) {
	g := s.g
	e := &g.edges[fid]
	rev := fid ^ 1
	from := g.edges[rev].to
	to := e.to

	e.cap -= delta
	g.edges[rev].cap += delta

	s.excess[from] -= delta
	s.excess[to] += delta

	if to != SourceID && to != SinkID && s.excess[to] == delta {
		s.pushActive(to)
	}
}

// discharge pushes v's excess along admissible arcs (arcs to a strictly
// lower node) using the current-arc heuristic, relabeling v when no
// admissible arc remains, until v's excess reaches zero.
func (s *solver) discharge(v int32) {
	g := s.g
	for s.excess[v] > 0 {
		adj := g.head[v]
		if int(s.curArc[v]) >= len(adj) {
			s.relabel(v)
			if s.height[v] >= int32(g.n) {
				return // v is now provably disconnected from the sink
			}
			s.curArc[v] = 0
			continue
		}
		fid := adj[s.curArc[v]]
		e := &g.edges[fid]
		if e.cap > 0 && s.height[v] == s.height[e.to]+1 {
			delta := e.cap
			if delta > s.excess[v] {
				delta = s.excess[v]
			}
			s.pushAlong(fid, delta)
		} else {
			s.curArc[v]++
		}
	}
}

// relabel raises v's height to one more than the minimum height among nodes
// reachable by a residual arc, applying the gap heuristic: if v's old height
// was the last node at that height, every node strictly above it is
// unreachable from the sink and can jump straight to height n.
func (s *solver) relabel(v int32) {
	g := s.g
	oldHeight := s.height[v]
	minHeight := int32(2 * g.n)
	for _, fid := range g.head[v] {
		e := &g.edges[fid]
		if e.cap > 0 && s.height[e.to] < minHeight {
			minHeight = s.height[e.to]
		}
	}

	s.heightCount[oldHeight]--
	if oldHeight > 0 && oldHeight < int32(g.n) && s.heightCount[oldHeight] == 0 {
		s.closeGap(oldHeight)
	}

	newHeight := minHeight + 1
	if newHeight > int32(g.n) {
		newHeight = int32(g.n)
	}
	s.height[v] = newHeight
	s.heightCount[newHeight]++
}

// closeGap relabels every node above the newly-opened gap straight to
// height n, since they are now certainly cut off from the sink.
func (s *solver) closeGap(gapHeight int32) {
	n := int32(s.g.n)
	for v := int32(0); v < n; v++ {
		if s.height[v] > gapHeight && s.height[v] < n {
			s.heightCount[s.height[v]]--
			s.height[v] = n
			s.heightCount[n]++
		}
	}
}

func (s *solver) pushActive(v int32) { heap.Push((*activeHeap)(s), v) }

func (s *solver) popActive() (int32, bool) {
	if len(s.active) == 0 {
		return noNode, false
	}
	return heap.Pop((*activeHeap)(s)).(int32), true
}

// activeHeap orders nodes with excess by descending height (FIFO-by-height
// discharge order, as in the gazette reference).
type activeHeap solver

func (h *activeHeap) Len() int            { return len(h.active) }
func (h *activeHeap) Less(i, j int) bool  { return h.height[h.active[i]] > h.height[h.active[j]] }
func (h *activeHeap) Swap(i, j int)       { h.active[i], h.active[j] = h.active[j], h.active[i] }
func (h *activeHeap) Push(x interface{})  { h.active = append(h.active, x.(int32)) }
func (h *activeHeap) Pop() interface{} {
	old := h.active
	l := len(old)
	x := old[l-1]
	h.active = old[:l-1]
	return x
}

// MinCutSide returns the set of nodes reachable from SourceID in the final
// residual graph -- the source side of the min cut (spec §4.6 "runs
// max-flow/min-cut producing a MoveSequence").
func MinCutSide(g *Network) []bool {
	reachable := make([]bool, g.n)
	reachable[SourceID] = true
	stack := []int32{SourceID}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, fid := range g.head[v] {
			e := g.edges[fid]
			if e.cap > 0 && !reachable[e.to] {
				reachable[e.to] = true
				stack = append(stack, e.to)
			}
		}
	}
	return reachable
}
