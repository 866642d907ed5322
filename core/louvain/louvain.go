// Package louvain implements the parallel modularity-maximizing local
// moving preprocessor (spec §4.2), grounded directly on the teacher's
// pkg/louvain/algorithm.go OneLevel/AggregateGraph pair: same
// initialize-each-node-alone, iterate-until-no-moves, contract-and-repeat
// structure, generalized to (a) run over core/graph.Graph's true CSR
// instead of the teacher's slice-of-slices Graph, (b) sample incident arcs
// above a degree threshold instead of always scanning every neighbor, and
// (c) support a deterministic sub-round mode.
package louvain

import (
	"math/rand"
	"sync/atomic"

	"github.com/gilchrisn/graph-clustering-service/core/graph"
	"github.com/gilchrisn/graph-clustering-service/core/taskpool"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/errs"
	"github.com/gilchrisn/graph-clustering-service/internal/spinlock"
	"github.com/rs/zerolog"
)

// Clustering assigns each graph node to a cluster id in [0, C).
type Clustering []int32

// Options configures one Run call, pulled from *config.Config by callers so
// this package stays independent of the viper wrapper.
type Options struct {
	MaxPassIterations             int
	MinVertexMoveFraction         float64
	VertexDegreeSamplingThreshold int
	Deterministic                 bool
	NumSubRoundsDeterministic     int
	Seed                          int64
	NumThreads                    int
}

func FromConfig(c *config.Config) Options {
	return Options{
		MaxPassIterations:             c.MaxPassIterations(),
		MinVertexMoveFraction:         c.MinVertexMoveFraction(),
		VertexDegreeSamplingThreshold: c.VertexDegreeSamplingThreshold(),
		Deterministic:                 c.Deterministic(),
		NumSubRoundsDeterministic:     c.NumSubRoundsDeterministic(),
		Seed:                          c.Seed(),
		NumThreads:                    c.NumThreads(),
	}
}

// state mirrors the teacher's LouvainState: per-cluster volumes and a
// node->cluster array, mutated in place by local moving. moveLock guards
// applyMove's read-modify-write of clusterVol/n2c when several worker
// goroutines process different nodes of the same pass concurrently (spec
// §5: "Move updates cluster volumes atomically").
type state struct {
	g          *graph.Graph
	n2c        []int32
	clusterVol []float64
	totalVol   float64
	moveLock   spinlock.Lock
}

func newState(g *graph.Graph) *state {
	s := &state{g: g, n2c: make([]int32, g.NumNodes), clusterVol: make([]float64, g.NumNodes), totalVol: g.TotalVolume()}
	for v := 0; v < g.NumNodes; v++ {
		s.n2c[v] = int32(v)
		s.clusterVol[v] = g.Volume(v)
	}
	return s
}

// Run maximizes modularity of g via repeated local-moving passes with
// contraction in between (spec §4.2), stopping when a pass moves fewer
// than MinVertexMoveFraction*|V| nodes or MaxPassIterations passes have
// run. Returns the final clustering over the ORIGINAL nodes of g.
func Run(g *graph.Graph, opt Options, logger zerolog.Logger) (Clustering, error) {
	if err := g.Validate(); err != nil {
		return nil, errs.New(errs.InvalidInput, "louvain.Run", err)
	}
	current := g
	// finalAssignment[v] tracks, for each ORIGINAL node v, which node of
	// `current` it currently maps to.
	finalAssignment := make([]int32, g.NumNodes)
	for v := range finalAssignment {
		finalAssignment[v] = int32(v)
	}

	for pass := 0; pass < opt.MaxPassIterations; pass++ {
		s := newState(current)
		moved := onePass(s, opt)
		// Renumber cluster ids to 0..C-1 in ascending order, the same remap
		// Contract applies, so finalAssignment keeps naming nodes of `current`.
		dense := make([]int32, current.NumNodes)
		for _, c := range s.n2c {
			dense[c] = 1
		}
		next := int32(0)
		for c := range dense {
			if dense[c] == 1 {
				dense[c] = next
				next++
			}
		}
		for v, c := range s.n2c {
			s.n2c[v] = dense[c]
		}
		logger.Debug().Int("pass", pass).Int("nodes", current.NumNodes).Int("moved", moved).Msg("community detection pass")

		if float64(moved) < opt.MinVertexMoveFraction*float64(current.NumNodes) {
			// fold s.n2c into finalAssignment and stop
			applyMapping(finalAssignment, s.n2c)
			break
		}

		coarse, err := contractFor(current, s.n2c, opt.Deterministic)
		if err != nil {
			return nil, errs.New(errs.Internal, "louvain.Run", err)
		}
		applyMapping(finalAssignment, s.n2c)
		if coarse.NumNodes >= current.NumNodes {
			break
		}
		current = coarse
	}

	return Clustering(finalAssignment), nil
}

func contractFor(g *graph.Graph, n2c []int32, deterministic bool) (*graph.Graph, error) {
	if deterministic {
		return g.ContractDeterministic(n2c)
	}
	return g.Contract(n2c)
}

// applyMapping composes assignment[v] = mapping[assignment[v]] for every
// original node v, projecting a coarse-level move down to the original
// node ids -- the Go analogue of the teacher's nodeToOriginal bookkeeping.
func applyMapping(assignment []int32, mapping []int32) {
	for v, cur := range assignment {
		assignment[v] = mapping[cur]
	}
}

// onePass runs local moving to convergence on s.g, mutating s.n2c and
// s.clusterVol in place, and returns the total number of moves applied.
func onePass(s *state, opt Options) int {
	rng := rand.New(rand.NewSource(opt.Seed))
	order := make([]int, s.g.NumNodes)
	for i := range order {
		order[i] = i
	}
	totalMoves := 0

	for iter := 0; iter < opt.MaxPassIterations; iter++ {
		var moves int
		if opt.Deterministic {
			moves = deterministicSubRoundPass(s, order, opt, rng)
		} else {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			moves = parallelPass(s, order, opt)
		}
		totalMoves += moves
		if moves == 0 {
			break
		}
	}
	return totalMoves
}

// parallelPass visits nodes in `order` across a worker pool, moving each to
// its best-gain neighboring cluster if positive (spec §4.2). Each worker
// has its own RNG seeded from the pass seed and its worker id so the
// sampling decisions are reproducible per-worker without sharing an *rand.Rand
// across goroutines.
func parallelPass(s *state, order []int, opt Options) int {
	numThreads := opt.NumThreads
	if numThreads <= 0 {
		numThreads = 1
	}
	pool := taskpool.New(numThreads)
	var moveCount atomic.Int64
	pool.ParallelFor(len(order), func(workerID, i int) {
		rng := rand.New(rand.NewSource(opt.Seed + int64(workerID) + 1))
		if tryMove(s, order[i], opt, rng) {
			moveCount.Add(1)
		}
	})
	return int(moveCount.Load())
}

// deterministicSubRoundPass splits nodes into fixed sub-rounds; within a
// sub-round, desired moves are computed against the state as of the START
// of the sub-round, then applied in increasing node-id order so the result
// depends only on input+seed+sub-round count, not on scheduling (spec
// §4.2 "Determinism option").
func deterministicSubRoundPass(s *state, order []int, opt Options, rng *rand.Rand) int {
	numSubRounds := opt.NumSubRoundsDeterministic
	if numSubRounds <= 0 {
		numSubRounds = 1
	}
	sorted := append([]int(nil), order...)
	// stable, seed-independent order within sub-rounds for reproducibility
	// across thread counts: plain ascending id order, then bucketed.
	total := 0
	subRoundOf := func(v int) int { return v % numSubRounds }
	for r := 0; r < numSubRounds; r++ {
		type desired struct {
			node   int
			target int32
			gain   float64
		}
		var batch []desired
		for _, v := range sorted {
			if subRoundOf(v) != r {
				continue
			}
			target, gain := bestMove(s, v, opt, rng)
			if target != s.n2c[v] && gain > 0 {
				batch = append(batch, desired{v, target, gain})
			}
		}
		for _, d := range batch {
			// recompute against the just-applied prefix within this
			// sub-round to resolve conflicts, per spec §4.2.
			target, gain := bestMove(s, d.node, opt, rng)
			if target != s.n2c[d.node] && gain > 0 {
				applyMove(s, d.node, target)
				total++
			}
		}
	}
	return total
}

// tryMove computes the best move for u and applies it under s.moveLock if
// found. The lock serializes bestMove+applyMove as one step so concurrent
// callers (parallelPass) never read a clusterVol snapshot that a racing
// goroutine is mid-update on; moves of distinct nodes still overlap across
// their read-only arc scans, which is where the actual parallelism speedup
// in this pass comes from.
func tryMove(s *state, u int, opt Options, rng *rand.Rand) bool {
	s.moveLock.Acquire()
	defer s.moveLock.Release()
	target, gain := bestMove(s, u, opt, rng)
	if target != s.n2c[u] && gain > 0 {
		applyMove(s, u, target)
		return true
	}
	return false
}

// bestMove computes, for node u, the best neighboring cluster to move to
// per spec §4.2's modularity gain formula, sampling incident arcs when
// degree exceeds VertexDegreeSamplingThreshold.
func bestMove(s *state, u int, opt Options, rng *rand.Rand) (int32, float64) {
	arcs := s.g.Arcs(u)
	if opt.VertexDegreeSamplingThreshold > 0 && len(arcs) > opt.VertexDegreeSamplingThreshold {
		sampled := make([]graph.Arc, opt.VertexDegreeSamplingThreshold)
		idx := rng.Perm(len(arcs))[:opt.VertexDegreeSamplingThreshold]
		for i, j := range idx {
			sampled[i] = arcs[j]
		}
		arcs = sampled
	}

	incidentWeight := make(map[int32]float64, len(arcs))
	for _, a := range arcs {
		if int(a.Head) == u {
			continue
		}
		incidentWeight[s.n2c[a.Head]] += a.Weight
	}
	oldComm := s.n2c[u]
	if _, ok := incidentWeight[oldComm]; !ok {
		incidentWeight[oldComm] = 0
	}

	uVol := s.g.Volume(u)
	m2 := s.totalVol
	oldClusterVolExcl := s.clusterVol[oldComm] - uVol

	bestComm := oldComm
	var bestGain float64
	for comm, wic := range incidentWeight {
		if comm == oldComm {
			continue
		}
		removeCost := incidentWeight[oldComm] - oldClusterVolExcl*uVol/m2
		addBenefit := wic - s.clusterVol[comm]*uVol/m2
		delta := addBenefit - removeCost
		if delta > bestGain || (delta == bestGain && comm < bestComm) {
			bestGain = delta
			bestComm = comm
		}
	}
	return bestComm, bestGain
}

func applyMove(s *state, u int, to int32) {
	from := s.n2c[u]
	vol := s.g.Volume(u)
	s.clusterVol[from] -= vol
	s.clusterVol[to] += vol
	s.n2c[u] = to
}

// Modularity computes Newman's modularity of `c` over `g` from scratch.
func Modularity(g *graph.Graph, c Clustering) float64 {
	if g.TotalVolume() == 0 {
		return 0
	}
	maxC := int32(0)
	for _, ci := range c {
		if ci > maxC {
			maxC = ci
		}
	}
	in := make([]float64, maxC+1)
	tot := make([]float64, maxC+1)
	for v := 0; v < g.NumNodes; v++ {
		tot[c[v]] += g.Volume(v)
		for _, a := range g.Arcs(v) {
			if c[a.Head] == c[v] {
				in[c[v]] += a.Weight
			}
		}
	}
	m2 := g.TotalVolume()
	var q float64
	for i := range in {
		q += in[i]/m2 - (tot[i]/m2)*(tot[i]/m2)
	}
	return q
}
