// Package initialpartition implements the initial-partitioning pool (spec
// §4.4): several flat partitioners run in turn on the coarsest hypergraph, a bounded
// population keeps the best results under a selection rule, adaptive run
// skipping trims an algorithm once it looks hopeless, and the population is
// refined once before the winner is committed. Grounded on the teacher's
// pkg/louvain/algorithm.go OneLevel loop structure (iterate nodes, compute a
// per-node score, move greedily) generalized from single-pass modularity
// local moving to several distinct flat k-way constructors plus a
// label-propagation / 2-way-FM refinement pass, and on its Config-driven
// "try several seeds, keep the best" shape.
package initialpartition

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/errs"
	"github.com/gilchrisn/graph-clustering-service/internal/spinlock"
)

// Options configures one Run call.
type Options struct {
	K                       int
	Epsilon                 float64
	Objective               config.Objective
	Runs                    int
	UseAdaptiveRuns         bool
	MinAdaptiveRuns         int
	PerformRefinementOnBest bool
	FMRefinementRounds      int
	PopulationSize          int
	LPMaxIterations         int
	Deterministic           bool
	Seed                    int64
}

func FromConfig(c *config.Config) Options {
	return Options{
		K:                       c.K(),
		Epsilon:                 c.Epsilon(),
		Objective:               c.Objective(),
		Runs:                    c.IPRuns(),
		UseAdaptiveRuns:         c.UseAdaptiveIPRuns(),
		MinAdaptiveRuns:         c.MinAdaptiveIPRuns(),
		PerformRefinementOnBest: c.PerformRefinementOnBest(),
		FMRefinementRounds:      c.FMRefinementRounds(),
		PopulationSize:          c.PopulationSize(),
		LPMaxIterations:         c.LPMaxIterations(),
		Deterministic:           c.Deterministic(),
		Seed:                    c.Seed(),
	}
}

// Result is one flat partitioner's output, plain-array form (no atomics --
// candidates are compared and discarded far more often than committed).
type Result struct {
	Algorithm string
	Part      []int32
	Objective int64
	Imbalance float64
	Feasible  bool
	tag       int64 // generation sequence number, used only to break exact ties deterministically
}

// Report summarizes one Run call for logging/statsserver consumption.
type Report struct {
	BestAlgorithm string
	BestObjective int64
	BestImbalance float64
	RunsByAlgo    map[string]int
	SkippedAlgos  map[string]bool
}

// Run runs the flat partitioner pool on h, one algorithm after another on
// the calling goroutine, and returns a committed
// PartitionedHypergraph holding the winning (and possibly refined)
// partition (spec §4.4).
func Run(h *hgraph.Hypergraph, opt Options, logger zerolog.Logger) (*hgraph.PartitionedHypergraph, Report, error) {
	if opt.K < 2 {
		return nil, Report{}, errs.Newf(errs.InvalidInput, "initialpartition.Run", "k=%d must be >= 2", opt.K)
	}
	total := h.TotalWeight()
	ideal := float64(total) / float64(opt.K)
	maxWeight := int64(math.Ceil(ideal) * (1 + opt.Epsilon))
	if maxWeight < 1 {
		maxWeight = 1
	}
	maxWeights := make([]int64, opt.K)
	for b := range maxWeights {
		maxWeights[b] = maxWeight
	}

	algos := []struct {
		name string
		run  func(*hgraph.Hypergraph, int, *rand.Rand) []int32
	}{
		{"bfs", bfsPartition},
		{"random", randomPartition},
		{"greedy_growing", greedyGrowingPartition},
		{"label_propagation", func(h *hgraph.Hypergraph, k int, rng *rand.Rand) []int32 {
			part := randomPartition(h, k, rng)
			labelPropagationPass(h, part, k, maxWeights, opt.LPMaxIterations, rng)
			return part
		}},
	}

	popSize := opt.PopulationSize
	if popSize < 1 {
		popSize = 1
	}

	pop := &population{cap: popSize}
	stats := make(map[string]*runningStats, len(algos))
	skipped := make(map[string]bool, len(algos))
	runsByAlgo := make(map[string]int, len(algos))
	var tagSeq int64
	var lock spinlock.Lock
	var bestFeasibleObjective int64 = math.MaxInt64

	runs := opt.Runs
	if runs < 1 {
		runs = 1
	}

	for round := 0; round < runs; round++ {
		for _, alg := range algos {
			if !opt.Deterministic && skipped[alg.name] {
				continue
			}
			rng := rand.New(rand.NewSource(opt.Seed + int64(round)*31 + hashString(alg.name)))
			part := alg.run(h, opt.K, rng)
			objective, imbalance := evaluate(h, part, opt.K, opt.Objective)
			feasible := imbalance <= opt.Epsilon

			lock.Acquire()
			tagSeq++
			res := Result{Algorithm: alg.name, Part: part, Objective: objective, Imbalance: imbalance, Feasible: feasible, tag: tagSeq}
			pop.insert(res)
			if feasible && objective < bestFeasibleObjective {
				bestFeasibleObjective = objective
			}
			lock.Release()

			runsByAlgo[alg.name]++
			st := stats[alg.name]
			if st == nil {
				st = &runningStats{}
				stats[alg.name] = st
			}
			st.update(float64(objective))

			if opt.UseAdaptiveRuns && !opt.Deterministic && st.n >= opt.MinAdaptiveRuns {
				if st.mean-2*st.stddev() > float64(bestFeasibleObjective) {
					skipped[alg.name] = true
				}
			}
		}
	}

	best := pop.best()
	if best == nil {
		return nil, Report{}, errs.New(errs.Internal, "initialpartition.Run", errNoCandidates{})
	}

	if opt.PerformRefinementOnBest {
		for i := range pop.entries {
			e := &pop.entries[i]
			rng := rand.New(rand.NewSource(opt.Seed + int64(i) + 997))
			refined := append([]int32(nil), e.Part...)
			if opt.K == 2 {
				twoWayLocalSearch(h, refined, maxWeights, opt.FMRefinementRounds)
			} else {
				labelPropagationPass(h, refined, opt.K, maxWeights, opt.FMRefinementRounds, rng)
			}
			objective, imbalance := evaluate(h, refined, opt.K, opt.Objective)
			e.Part = refined
			e.Objective = objective
			e.Imbalance = imbalance
			e.Feasible = imbalance <= opt.Epsilon
		}
		best = pop.best()
	}

	ph := hgraph.NewPartitioned(h, opt.K, maxWeights)
	for v, b := range best.Part {
		ph.AssignInitial(v, b)
	}

	logger.Info().
		Str("winner", best.Algorithm).
		Int64("objective", best.Objective).
		Float64("imbalance", best.Imbalance).
		Msg("initial partitioning pool completed")

	return ph, Report{
		BestAlgorithm: best.Algorithm,
		BestObjective: best.Objective,
		BestImbalance: best.Imbalance,
		RunsByAlgo:    runsByAlgo,
		SkippedAlgos:  skipped,
	}, nil
}

type errNoCandidates struct{}

func (errNoCandidates) Error() string { return "initial partitioning pool produced no candidates" }

// isOtherBetter implements spec §4.4's selection rule: candidate `other` is
// better than `cur`. Anti-symmetric by construction: every branch is a
// strict inequality on a shared field, so swapping cur/other can satisfy at
// most one direction (the tag tie-break likewise uses a strict, unique
// ordering).
func isOtherBetter(cur, other Result, deterministic bool) bool {
	if other.Objective < cur.Objective && (other.Feasible || other.Imbalance < cur.Imbalance) {
		return true
	}
	if other.Objective == cur.Objective && other.Imbalance < cur.Imbalance {
		return true
	}
	if other.Feasible && !cur.Feasible {
		return true
	}
	if !cur.Feasible && !other.Feasible && other.Imbalance < cur.Imbalance {
		return true
	}
	if deterministic && other.Objective == cur.Objective && other.Imbalance == cur.Imbalance && other.Feasible == cur.Feasible {
		return other.tag < cur.tag
	}
	return false
}

// population keeps the best `cap` results seen so far, guarded externally by
// the caller's spinlock (population heap, spec §5 "single spin lock around
// heap adjust").
type population struct {
	entries []Result
	cap     int
}

func (p *population) insert(r Result) {
	if len(p.entries) < p.cap {
		p.entries = append(p.entries, r)
		sort.SliceStable(p.entries, func(i, j int) bool { return rankLess(p.entries[i], p.entries[j]) })
		return
	}
	worst := &p.entries[len(p.entries)-1]
	if isOtherBetter(*worst, r, false) {
		*worst = r
		sort.SliceStable(p.entries, func(i, j int) bool { return rankLess(p.entries[i], p.entries[j]) })
	}
}

func (p *population) best() *Result {
	if len(p.entries) == 0 {
		return nil
	}
	return &p.entries[0]
}

func rankLess(a, b Result) bool {
	if a.Feasible != b.Feasible {
		return a.Feasible
	}
	if a.Objective != b.Objective {
		return a.Objective < b.Objective
	}
	return a.Imbalance < b.Imbalance
}

// runningStats tracks a running mean/stddev via Welford's algorithm for
// adaptive run skipping (spec §4.4 "track running mean μ and stddev σ").
type runningStats struct {
	n      int
	mean   float64
	m2     float64
}

func (s *runningStats) update(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

func (s *runningStats) stddev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n-1))
}

func hashString(s string) int64 {
	var h int64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= int64(s[i])
		h *= 1099511628211
	}
	return h
}

// evaluate computes the configured objective (cut or km1) and imbalance of a
// plain partition array directly from h, without constructing a
// PartitionedHypergraph (the pool evaluates many disposable candidates per
// round; atomics would only add overhead here).
func evaluate(h *hgraph.Hypergraph, part []int32, k int, objective config.Objective) (obj int64, imbalance float64) {
	blockWeight := make([]int64, k)
	for v := 0; v < h.NumVertices(); v++ {
		blockWeight[part[v]] += h.NodeWeight(v)
	}
	var total int64
	for e := int32(0); e < int32(h.NumHyperedges()); e++ {
		seen := make(map[int32]bool, 4)
		connectivity := 0
		for _, p := range h.HyperedgePins(e) {
			b := part[p]
			if !seen[b] {
				seen[b] = true
				connectivity++
			}
		}
		if objective == config.ObjectiveCut {
			if connectivity >= 2 {
				total += h.HyperedgeWeight(e)
			}
		} else {
			if connectivity > 0 {
				total += h.HyperedgeWeight(e) * int64(connectivity-1)
			}
		}
	}
	totalWeight := h.TotalWeight()
	ideal := math.Ceil(float64(totalWeight) / float64(k))
	var maxW int64
	for _, w := range blockWeight {
		if w > maxW {
			maxW = w
		}
	}
	if ideal > 0 {
		imbalance = float64(maxW)/ideal - 1.0
	}
	return total, imbalance
}
