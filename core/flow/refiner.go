// Refiner runs C7: a pool of workers pulling QuotientGraphEdge pairs off the
// active-block scheduler in core/quotient, each solving a max-flow/min-cut
// over a bounded region around the cut and applying the resulting moves
// atomically to the shared PartitionedHypergraph.
package flow

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/core/quotient"
	"github.com/gilchrisn/graph-clustering-service/core/taskpool"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/spinlock"
)

type Options struct {
	MaxNumPins                    int
	MinRelativeImprovementPerRound float64
	TimeLimitFactor                float64
	SkipSmallCuts                  bool
	SkipUnpromisingBlocks          bool
	NumThreads                     int
}

func FromConfig(c *config.Config) Options {
	return Options{
		MaxNumPins:                     c.FlowMaxNumPins(),
		MinRelativeImprovementPerRound: c.FlowMinRelativeImprovementPerRound(),
		TimeLimitFactor:                c.FlowTimeLimitFactor(),
		SkipSmallCuts:                  c.FlowSkipSmallCuts(),
		SkipUnpromisingBlocks:          c.FlowSkipUnpromisingBlocks(),
		NumThreads:                     c.NumThreads(),
	}
}

// Refiner drives the round scheduler to completion, dispatching one search
// per popped edge to a worker pool. searchSeq hands out the CAS owner ids
// quotient.Edge.TryAcquire needs.
type Refiner struct {
	ph  *hgraph.PartitionedHypergraph
	opt Options

	searchSeq int64

	runTimeLock   spinlock.Lock
	avgRunTime    time.Duration
	timedSearches int64
}

func NewRefiner(ph *hgraph.PartitionedHypergraph, opt Options) *Refiner {
	if opt.MaxNumPins <= 0 {
		opt.MaxNumPins = 100
	}
	if ph.GainCacheRef() == nil {
		ph.EnableGainCache()
	}
	return &Refiner{ph: ph, opt: opt}
}

// Run schedules rounds until the quotient scheduler reports no further
// qualifying work, returning the total cut-weight improvement achieved.
func (r *Refiner) Run(isOriginalInput bool, logger zerolog.Logger) int64 {
	qg := quotient.Build(r.ph, quotient.Options{
		SkipSmallCuts:          r.opt.SkipSmallCuts,
		SkipUnpromisingBlocks:  r.opt.SkipUnpromisingBlocks,
		MinImprovementPerRound: r.opt.MinRelativeImprovementPerRound,
	}, isOriginalInput)

	numThreads := r.opt.NumThreads
	if numThreads < 1 {
		numThreads = 1
	}
	pool := taskpool.New(numThreads)

	var total int64
	for {
		var batch []*quotient.Edge
		for qe := qg.Pop(); qe != nil; qe = qg.Pop() {
			batch = append(batch, qe)
		}
		if len(batch) == 0 {
			if !qg.AdvanceRound() {
				break
			}
			continue
		}

		pool.ParallelFor(len(batch), func(_ int, i int) {
			qe := batch[i]
			searchID := atomic.AddInt64(&r.searchSeq, 1)
			if !qe.TryAcquire(searchID) {
				return
			}
			defer qe.Release(searchID)

			delta := r.runSearch(qe)
			atomic.AddInt64(&total, delta)
			qg.Finalize(qe, delta)
		})

		if !qg.AdvanceRound() {
			break
		}
	}
	logger.Debug().Int64("cut_improvement", total).Msg("flow refinement completed")
	return total
}

// runSearch builds the region network for qe, solves max-flow, and applies
// every recommended move that still respects balance, returning the net cut
// weight reduction actually achieved.
func (r *Refiner) runSearch(qe *quotient.Edge) int64 {
	before := r.cutWeight(qe.CutEdges, qe.I, qe.J)

	limit := r.timeLimit()
	start := time.Now()

	region := BuildRegion(r.ph, qe.CutEdges, qe.I, qe.J, r.opt.MaxNumPins)
	FindMaxFlow(region.Net)
	moves := region.Moves(r.ph)

	elapsed := time.Since(start)
	if limit > 0 && elapsed > limit {
		// Per-search failures are contained: finalize with Δ=0 (spec §7).
		return 0
	}
	r.recordRunTime(elapsed)

	// The region network only approximates the true objective (its anchor
	// arcs weigh vertex balance, not cut weight); gate every recommended
	// move on the shared gain cache so a search can never apply a move that
	// actually worsens the partition, regardless of what the min cut
	// suggested (same gate core/fm uses before committing a move).
	gc := r.ph.GainCacheRef()
	for v, to := range moves {
		if !r.ph.CanMove(int(v), to) {
			continue
		}
		if gc != nil && gc.Gain(int(v), int(to)) < 0 {
			continue
		}
		r.ph.MoveVertex(int(v), to)
	}

	after := r.cutWeight(qe.CutEdges, qe.I, qe.J)
	return before - after
}

func (r *Refiner) cutWeight(edges []int32, i, j int32) int64 {
	var w int64
	for _, e := range edges {
		if r.ph.PinCount(e, int(i)) > 0 && r.ph.PinCount(e, int(j)) > 0 {
			w += r.ph.H.EdgeWeight(e)
		}
	}
	return w
}

func (r *Refiner) timeLimit() time.Duration {
	r.runTimeLock.Acquire()
	defer r.runTimeLock.Release()
	if r.opt.TimeLimitFactor <= 0 || r.avgRunTime == 0 {
		return 0
	}
	return time.Duration(float64(r.avgRunTime) * r.opt.TimeLimitFactor)
}

func (r *Refiner) recordRunTime(d time.Duration) {
	r.runTimeLock.Acquire()
	defer r.runTimeLock.Release()
	r.timedSearches++
	r.avgRunTime = r.avgRunTime + (d-r.avgRunTime)/time.Duration(r.timedSearches)
}
