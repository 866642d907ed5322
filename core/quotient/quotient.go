// Package quotient implements the active-block round scheduler over the
// quotient graph of cut hyperedges between block pairs (spec §4.6
// "QuotientGraphEdge" / "Active-block scheduling"). It owns no partition
// state itself -- core/flow.Refiner consumes the scheduler's queue and
// reports Δ back into it via Finalize.
//
// Grounded on the teacher's graph-clustering-backend/src2/service/job.go
// registry style (map + mutex-guarded bookkeeping structs, atomic status
// fields) generalized from a job-id keyed map to a block-pair keyed one, and
// on a compare-and-swap of each edge's owner field for the edge ownership
// spec §5 calls for.
package quotient

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
)

const NoOwner int64 = -1

// Edge is QuotientGraphEdge for the ordered pair (I,J), I<J: the cut
// hyperedges between the two blocks, their accumulated weight, an
// owner-search CAS slot, an in-queue flag, and improvement counters.
type Edge struct {
	I, J int32

	CutEdges []int32
	CutWeight int64

	owner        int64 // atomic; NoOwner when free
	inQueue      int32 // atomic bool
	FoundCount   int64 // atomic
	TotalImprove int64 // atomic
}

func (e *Edge) TryAcquire(searchID int64) bool {
	return atomic.CompareAndSwapInt64(&e.owner, NoOwner, searchID)
}

func (e *Edge) Release(searchID int64) bool {
	return atomic.CompareAndSwapInt64(&e.owner, searchID, NoOwner)
}

func (e *Edge) markQueued() bool   { return atomic.CompareAndSwapInt32(&e.inQueue, 0, 1) }
func (e *Edge) clearQueued()       { atomic.StoreInt32(&e.inQueue, 0) }
func (e *Edge) recordImprovement(delta int64) {
	if delta > 0 {
		atomic.AddInt64(&e.FoundCount, 1)
	}
	atomic.AddInt64(&e.TotalImprove, delta)
}

// Options configures the scheduler (spec §6 refinement.flows.*).
type Options struct {
	SkipSmallCuts        bool
	MinCutWeightOnInput  int64 // not read by qualifies, which uses a fixed cut-weight threshold of 10 off the original input
	SkipUnpromisingBlocks bool
	MinImprovementPerRound float64
}

// Graph is the quotient graph over K blocks plus its round scheduler state.
type Graph struct {
	k     int
	edges map[[2]int32]*Edge
	opt   Options

	mu           sync.Mutex
	queues       []([]*Edge) // queues[r] is round r's pending FIFO
	closed       []bool
	activeInRound []map[int32]bool // per round, blocks that became active
	round        int
	roundImprove float64
}

// Build scans ph for every cut hyperedge and groups it by the ordered block
// pair it connects (spec §4.6 "for each ordered pair i<j"). Hyperedges
// touching 3+ blocks contribute to every pair among their connectivity set.
func Build(ph *hgraph.PartitionedHypergraph, opt Options, isOriginalInput bool) *Graph {
	g := &Graph{
		k:     ph.K,
		edges: make(map[[2]int32]*Edge),
		opt:   opt,
	}
	for e := int32(0); e < int32(ph.H.NumEdges); e++ {
		var blocks []int32
		for b := 0; b < ph.K; b++ {
			if ph.PinCount(e, b) > 0 {
				blocks = append(blocks, int32(b))
			}
		}
		if len(blocks) < 2 {
			continue
		}
		w := ph.H.EdgeWeight(e)
		for a := 0; a < len(blocks); a++ {
			for b := a + 1; b < len(blocks); b++ {
				key := pairKey(blocks[a], blocks[b])
				qe := g.edges[key]
				if qe == nil {
					qe = &Edge{I: key[0], J: key[1], owner: NoOwner}
					g.edges[key] = qe
				}
				qe.CutEdges = append(qe.CutEdges, e)
				qe.CutWeight += w
			}
		}
	}

	g.queues = append(g.queues, nil)
	g.closed = append(g.closed, false)
	g.activeInRound = append(g.activeInRound, make(map[int32]bool))

	var seed []*Edge
	for _, qe := range g.edges {
		if g.qualifies(qe, isOriginalInput, true) {
			seed = append(seed, qe)
		}
	}
	sort.Slice(seed, func(a, b int) bool {
		if seed[a].TotalImprove != seed[b].TotalImprove {
			return seed[a].TotalImprove > seed[b].TotalImprove
		}
		return seed[a].CutWeight > seed[b].CutWeight
	})
	for _, qe := range seed {
		qe.markQueued()
		g.queues[0] = append(g.queues[0], qe)
	}
	return g
}

func pairKey(a, b int32) [2]int32 {
	if a > b {
		a, b = b, a
	}
	return [2]int32{a, b}
}

func (g *Graph) qualifies(qe *Edge, isOriginalInput, roundZero bool) bool {
	enoughCut := qe.CutWeight > 10 || isOriginalInput || !g.opt.SkipSmallCuts
	if !enoughCut {
		return false
	}
	if !g.opt.SkipUnpromisingBlocks {
		return true
	}
	return roundZero || atomic.LoadInt64(&qe.FoundCount) > 0
}

// Pop returns the next edge in the current round's queue (ownership is
// not checked here; callers take it with TryAcquire), or nil if
// the round has been fully drained (callers should call AdvanceRound).
func (g *Graph) Pop() *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.round
	for len(g.queues[r]) > 0 {
		qe := g.queues[r][0]
		g.queues[r] = g.queues[r][1:]
		qe.clearQueued()
		return qe
	}
	return nil
}

// Finalize records a search's outcome on (i,j) and applies the round r+1
// rescheduling rule from spec §4.6.
func (g *Graph) Finalize(qe *Edge, delta int64) {
	qe.recordImprovement(delta)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.roundImprove += float64(delta)
	if delta <= 0 {
		return
	}

	r := g.round
	g.ensureRound(r + 1)
	becameActiveI := !g.activeInRound[r][qe.I]
	becameActiveJ := !g.activeInRound[r][qe.J]
	g.activeInRound[r][qe.I] = true
	g.activeInRound[r][qe.J] = true

	pushed := false
	for key, other := range g.edges {
		if key[0] != qe.I && key[1] != qe.I && key[0] != qe.J && key[1] != qe.J {
			continue
		}
		if !g.qualifies(other, false, false) {
			continue
		}
		if other.markQueued() {
			g.queues[r+1] = append(g.queues[r+1], other)
			if other == qe {
				pushed = true
			}
		}
	}
	if !pushed && !(becameActiveI && becameActiveJ) {
		// (i,j) itself wasn't re-qualified above (e.g. SkipUnpromisingBlocks
		// filtered it) but at least one endpoint was already active this
		// round -- push it anyway per spec §4.6's extra clause.
		if qe.markQueued() {
			g.queues[r+1] = append(g.queues[r+1], qe)
		}
	}
}

func (g *Graph) ensureRound(r int) {
	for len(g.queues) <= r {
		g.queues = append(g.queues, nil)
		g.closed = append(g.closed, false)
		g.activeInRound = append(g.activeInRound, make(map[int32]bool))
	}
}

// AdvanceRound closes the current round and reports whether scheduling
// should continue (spec §4.6 "if its round-improvement is below
// min_improvement_per_round, terminate").
func (g *Graph) AdvanceRound() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed[g.round] = true
	improved := g.roundImprove >= g.opt.MinImprovementPerRound
	g.round++
	g.roundImprove = 0
	g.ensureRound(g.round)
	return improved && len(g.queues[g.round]) > 0
}
