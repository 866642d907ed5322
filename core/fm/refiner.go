// Refiner implements the multi-try localized k-way FM pass described in
// spec §4.5, built on top of NodeTracker/MoveTracker/Delta. Grounded on the
// teacher's pkg/louvain OneLevel (initialize-score, iterate-to-convergence,
// move-if-positive-gain structure) generalized from single-threaded
// modularity moves to concurrent boundary-localized FM tasks with rollback,
// and on core/taskpool for the worker pool.
package fm

import (
	"math/rand"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/core/taskpool"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
)

// Options configures one Refiner.Run call.
type Options struct {
	MultitryRounds                 int
	NumSeedNodes                   int
	RollbackBalanceViolationFactor float64
	MinImprovement                 float64
	TimeLimitFactor                float64
	PerformMovesGlobal             bool
	RollbackParallel               bool
	ObeyMinimalParallelism         bool
	ReleaseNodes                   bool
	NumThreads                     int
	Seed                           int64
}

func FromConfig(c *config.Config) Options {
	return Options{
		MultitryRounds:                 c.FMMultitryRounds(),
		NumSeedNodes:                   c.FMNumSeedNodes(),
		RollbackBalanceViolationFactor: c.FMRollbackBalanceViolationFactor(),
		MinImprovement:                 c.FMMinImprovement(),
		TimeLimitFactor:                c.FMTimeLimitFactor(),
		PerformMovesGlobal:             c.FMPerformMovesGlobal(),
		RollbackParallel:               c.FMRollbackParallel(),
		ObeyMinimalParallelism:         c.FMObeyMinimalParallelism(),
		ReleaseNodes:                   c.FMReleaseNodes(),
		NumThreads:                     c.NumThreads(),
		Seed:                           c.Seed(),
	}
}

// Refiner owns the shared tracking state for one refinement lifetime (it may
// be reused across several uncontraction levels).
type Refiner struct {
	ph      *hgraph.PartitionedHypergraph
	tracker *NodeTracker
	moves   *MoveTracker
	opt     Options

	searchSeq int64 // atomic, unique search ids within this refiner's lifetime
}

func NewRefiner(ph *hgraph.PartitionedHypergraph, opt Options) *Refiner {
	if ph.GainCacheRef() == nil {
		ph.EnableGainCache()
	}
	return &Refiner{
		ph:      ph,
		tracker: NewNodeTracker(ph.H.NumNodes),
		moves:   NewMoveTracker(),
		opt:     opt,
	}
}

// Run executes up to MultitryRounds rounds of localized FM over the current
// boundary, stopping early once a round's improvement falls below
// MinImprovement, and returns the total (already-applied, already-rolled-
// back) objective improvement achieved (spec §4.5 "Rounds").
func (r *Refiner) Run(logger zerolog.Logger) (int64, error) {
	var total int64
	for round := 0; round < r.opt.MultitryRounds; round++ {
		boundary := r.collectBoundary()
		if len(boundary) == 0 {
			break
		}
		startLen := r.moves.Len()
		r.runRound(boundary, round)

		kept := r.globalRollback(startLen)
		logger.Debug().Int("round", round).Int("boundary", len(boundary)).Int64("improvement", kept).Msg("fm round completed")
		total += kept
		if float64(kept) < r.opt.MinImprovement {
			break
		}
	}
	return total, nil
}

// collectBoundary returns every vertex incident to at least one cut
// hyperedge (spec glossary "boundary vertex").
func (r *Refiner) collectBoundary() []int32 {
	var boundary []int32
	for v := 0; v < r.ph.H.NumNodes; v++ {
		if r.ph.BlockOf(v) == hgraph.Unassigned {
			continue
		}
		for _, e := range r.ph.H.IncidentEdges(v) {
			if r.ph.ConnectivitySize(e) >= 2 {
				boundary = append(boundary, int32(v))
				break
			}
		}
	}
	return boundary
}

// runRound splits boundary into NumSeedNodes-sized batches and runs one
// LocalizedSearch task per batch across the worker pool.
func (r *Refiner) runRound(boundary []int32, round int) {
	seedSize := r.opt.NumSeedNodes
	if seedSize < 1 {
		seedSize = 25
	}
	numBatches := (len(boundary) + seedSize - 1) / seedSize

	numThreads := r.opt.NumThreads
	if numThreads < 1 {
		numThreads = 1
	}
	minParallelism := numThreads
	if 8 < minParallelism {
		minParallelism = 8
	}
	if r.opt.ObeyMinimalParallelism && numBatches < minParallelism {
		// Not enough independent work to keep the pool busy; run as one
		// sequential task rather than spinning up idle workers (spec §4.5
		// "obey minimal parallelism").
		numBatches = 1
		seedSize = len(boundary)
	}

	pool := taskpool.New(numThreads)
	pool.ParallelFor(numBatches, func(workerID, i int) {
		lo := i * seedSize
		hi := lo + seedSize
		if hi > len(boundary) {
			hi = len(boundary)
		}
		if lo >= hi {
			return
		}
		searchID := int32(atomic.AddInt64(&r.searchSeq, 1))
		rng := rand.New(rand.NewSource(r.opt.Seed + int64(round)*997 + int64(workerID)))
		r.runTask(boundary[lo:hi], searchID, rng)
	})
}

// candidate is one queued move proposal: moving Node to To yields Gain
// under the task's current view (shared PH in global mode, Delta in local
// mode).
type candidate struct {
	node int32
	to   int32
	gain int64
}

// runTask is one LocalizedSearch: it acquires its seed nodes, explores moves
// via a simplified priority queue (linear max-scan -- boundary batches are
// small enough that this is not the bottleneck a binary heap would address,
// unlike the reference implementation's k per-block PQs), tracks a
// best-prefix by cumulative gain, and commits or rolls back accordingly
// (spec §4.5 "per-task loop").
func (r *Refiner) runTask(seeds []int32, searchID int32, rng *rand.Rand) {
	owned := make([]int32, 0, len(seeds)*2)
	release := func() {
		if !r.opt.ReleaseNodes {
			return
		}
		for _, v := range owned {
			r.tracker.Release(int(v), searchID)
		}
	}
	defer release()

	var delta *Delta
	if !r.opt.PerformMovesGlobal {
		delta = NewDelta(r.ph)
	}

	var pq []candidate
	pushBest := func(v int32) {
		bestTo, bestGain := r.bestTargetBlock(v, delta)
		if bestTo < 0 {
			return
		}
		pq = append(pq, candidate{node: v, to: bestTo, gain: bestGain})
	}

	for _, v := range seeds {
		if r.tracker.TryAcquire(int(v), searchID) {
			owned = append(owned, v)
			pushBest(v)
		}
	}

	type applied struct {
		node, from, to int32
		gain           int64
		moveID         int64 // only meaningful in global mode
	}
	var prefix []applied
	var cumGain, bestCum int64
	bestLen := 0

	recentWindow := make([]int64, 0, 8)
	emaNegative := func() bool {
		if len(recentWindow) < 8 {
			return false
		}
		var sum int64
		for _, g := range recentWindow {
			sum += g
		}
		return sum < 0
	}

	for len(pq) > 0 {
		bi := argmax(pq, rng)
		best := pq[bi]
		pq = append(pq[:bi], pq[bi+1:]...)

		var from int32
		if delta != nil {
			from = delta.BlockOf(best.node)
			if !delta.CanMove(best.node, best.to) {
				continue
			}
		} else {
			from = r.ph.BlockOf(int(best.node))
			if !r.ph.CanMove(int(best.node), best.to) {
				continue
			}
		}

		// The queued gain may be stale by now; re-read the gain under the
		// current view right before applying the move.
		var moveID int64 = -1
		var gain int64
		if delta != nil {
			gain = delta.Gain(best.node, best.to)
			delta.MoveVertex(best.node, best.to)
		} else {
			gain = recomputeGainFromCache(r.ph, best.node, from, best.to)
			ok, err := r.ph.MoveVertex(int(best.node), best.to)
			if err != nil || !ok {
				continue
			}
			moveID = r.moves.Append(best.node, from, best.to, gain)
		}

		cumGain += gain
		prefix = append(prefix, applied{node: best.node, from: from, to: best.to, gain: gain, moveID: moveID})
		if cumGain > bestCum {
			bestCum = cumGain
			bestLen = len(prefix)
		}

		recentWindow = append(recentWindow, gain)
		if len(recentWindow) > 8 {
			recentWindow = recentWindow[1:]
		}

		for _, e := range r.ph.H.IncidentEdges(int(best.node)) {
			for _, u := range r.ph.H.Pins(e) {
				if u == best.node {
					continue
				}
				if r.tracker.TryAcquire(int(u), searchID) {
					owned = append(owned, u)
					pushBest(u)
				}
			}
		}

		if emaNegative() {
			break
		}
	}

	// Roll back to the best-seen prefix.
	if delta != nil {
		// Local mode: nothing has touched the shared PH yet; replay only
		// the kept prefix against it, stopping early if a concurrent move
		// elsewhere makes a step infeasible (spec §4.5 "the replay also
		// determines whether the truly-best prefix on the shared PH
		// differs").
		var replayed int64
		for i := 0; i < bestLen; i++ {
			a := prefix[i]
			trueFrom := r.ph.BlockOf(int(a.node))
			if !r.ph.CanMove(int(a.node), a.to) {
				break
			}
			trueGain := recomputeGainFromCache(r.ph, a.node, trueFrom, a.to)
			ok, err := r.ph.MoveVertex(int(a.node), a.to)
			if err != nil || !ok {
				break
			}
			r.moves.Append(a.node, trueFrom, a.to, trueGain)
			replayed += trueGain
			if replayed < 0 {
				break
			}
		}
	} else {
		// Global mode: moves already landed on the shared PH; undo the
		// tail beyond the best prefix, logging each undo so the move log
		// GlobalRollback replays matches the shared PH.
		for i := len(prefix) - 1; i >= bestLen; i-- {
			a := prefix[i]
			undoGain := recomputeGainFromCache(r.ph, a.node, a.to, a.from)
			if ok, err := r.ph.MoveVertex(int(a.node), a.from); err == nil && ok {
				r.moves.Append(a.node, a.to, a.from, undoGain)
			}
		}
	}
}

// recomputeGainFromCache reads the gain cache's row for `node` immediately
// before committing it (best-effort true gain for a replayed local-mode
// move; the cache may already reflect concurrent moves by other tasks).
func recomputeGainFromCache(ph *hgraph.PartitionedHypergraph, node int32, from, to int32) int64 {
	gc := ph.GainCacheRef()
	if gc == nil {
		return 0
	}
	return gc.Gain(int(node), int(to))
}

// bestTargetBlock returns the highest-gain block to move v to (excluding
// its current block), reading the shared gain cache in global mode or
// recomputing locally from the delta's pin counts in local mode. Returns
// to=-1 if no move improves on staying put.
func (r *Refiner) bestTargetBlock(v int32, delta *Delta) (int32, int64) {
	from := r.ph.BlockOf(int(v))
	if delta != nil {
		from = delta.BlockOf(v)
	}
	bestTo, bestGain := int32(-1), int64(0)
	for b := 0; b < r.ph.K; b++ {
		if int32(b) == from {
			continue
		}
		var g int64
		if delta != nil {
			g = delta.Gain(v, int32(b))
		} else if gc := r.ph.GainCacheRef(); gc != nil {
			g = gc.Gain(int(v), b)
		}
		if g > bestGain {
			bestGain = g
			bestTo = int32(b)
		}
	}
	return bestTo, bestGain
}

// argmax returns the index of the highest-gain candidate, breaking ties
// randomly so repeated refinement passes over symmetric input don't always
// favor the lowest queue index.
func argmax(pq []candidate, rng *rand.Rand) int {
	best := 0
	ties := 1
	for i := 1; i < len(pq); i++ {
		switch {
		case pq[i].gain > pq[best].gain:
			best = i
			ties = 1
		case pq[i].gain == pq[best].gain:
			ties++
			if rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	return best
}

// globalRollback truncates moves[startLen:] at the globally-best prefix,
// reverting the tail (spec §4.5 "GlobalRollback"). Returns the retained
// improvement.
func (r *Refiner) globalRollback(startLen int) int64 {
	end := r.moves.Len()
	if end <= startLen {
		return 0
	}
	round := r.moves.Slice(startLen, end)

	var cum, best int64
	bestLen := 0
	for i, m := range round {
		cum += m.Gain
		if cum > best {
			best = cum
			bestLen = i + 1
		}
	}

	for i := len(round) - 1; i >= bestLen; i-- {
		m := round[i]
		r.ph.MoveVertex(int(m.Node), m.From)
	}
	return best
}
