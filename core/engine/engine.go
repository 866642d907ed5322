// Package engine wires the multilevel pipeline end to end (spec §2's
// control flow: "Preprocess with C2+C3 -> build hierarchy with C4 ->
// initial partition at coarsest level with C5 -> for each uncontraction
// step, project partition and run C6 (always) and C7 (when enabled)").
// Grounded on the teacher's pkg/louvain/louvain.go top-level Run function,
// which has the same shape: a driver that owns no algorithm of its own,
// only the order in which the algorithm packages are called and the
// logger/config plumbing between them.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/coarsening"
	"github.com/gilchrisn/graph-clustering-service/core/fm"
	"github.com/gilchrisn/graph-clustering-service/core/flow"
	"github.com/gilchrisn/graph-clustering-service/core/graph"
	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/core/initialpartition"
	"github.com/gilchrisn/graph-clustering-service/core/louvain"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// Options bundles every sub-package's options plus the few top-level knobs
// the engine itself consumes (spec.md §6: k, epsilon, objective, seed,
// num_vcycles).
type Options struct {
	K                 int
	Epsilon           float64
	Objective         config.Objective
	EdgeWeightFunction config.EdgeWeightFunction
	NumVCycles        int
	FlowsEnabled      bool

	Louvain louvain.Options
	Coarsening coarsening.Options
	IP      initialpartition.Options
	FM      fm.Options
	Flow    flow.Options
}

// FromConfig builds Options from a loaded *config.Config, delegating each
// sub-package's slice of keys to that package's own FromConfig so the
// engine never duplicates a key path.
func FromConfig(c *config.Config) Options {
	return Options{
		K:                  c.K(),
		Epsilon:            c.Epsilon(),
		Objective:          c.Objective(),
		EdgeWeightFunction: c.EdgeWeightFunction(),
		NumVCycles:         c.NumVCycles(),
		FlowsEnabled:       c.FlowsEnabled(),
		Louvain:            louvain.FromConfig(c),
		Coarsening:         coarsening.FromConfig(c),
		IP:                 initialpartition.FromConfig(c),
		FM:                 fm.FromConfig(c),
		Flow:               flow.FromConfig(c),
	}
}

// Result is the engine's output: the committed partition plus the
// objective value the caller asked for and the winning v-cycle's initial
// partitioning report (spec §4.4 "Report summarizes ... for
// statsserver consumption").
type Result struct {
	PH        *hgraph.PartitionedHypergraph
	Objective int64
	Imbalance float64
	IPReport  initialpartition.Report
	VCycles   int
}

// Run executes one full multilevel partitioning of h, then opt.NumVCycles
// additional v-cycles seeded from the previous cycle's partition instead
// of a fresh Louvain clustering, keeping whichever cycle's objective is
// best (an engine-level decision: the spec names num_vcycles as a config
// key but does not describe a v-cycle's internals -- see DESIGN.md).
func Run(h *hgraph.Hypergraph, opt Options, logger zerolog.Logger) (*Result, error) {
	if opt.K < 2 {
		return nil, errs.Newf(errs.InvalidInput, "engine.Run", "k=%d must be >= 2", opt.K)
	}

	community, err := detectCommunity(h, opt, logger)
	if err != nil {
		return nil, err
	}

	ph, report, err := runCycle(h, community, opt, logger)
	if err != nil {
		return nil, err
	}
	best := ph
	bestReport := report
	bestObjective := objectiveOf(best, opt.Objective)

	vcyclesRun := 0
	for i := 0; i < opt.NumVCycles; i++ {
		seed := communityFromPartition(best, h.NumVertices())
		candidate, candReport, err := runCycle(h, seed, opt, logger)
		if err != nil {
			return nil, err
		}
		vcyclesRun++
		candObjective := objectiveOf(candidate, opt.Objective)
		logger.Info().Int("vcycle", i+1).Int64("objective", candObjective).Msg("v-cycle completed")
		if candObjective <= bestObjective {
			best = candidate
			bestReport = candReport
			bestObjective = candObjective
		}
	}

	return &Result{
		PH:        best,
		Objective: bestObjective,
		Imbalance: best.Imbalance(),
		IPReport:  bestReport,
		VCycles:   vcyclesRun,
	}, nil
}

// runCycle performs one coarsen -> initial-partition -> (project, refine)*
// pass over h, restricting matching to `community`. h is left fully
// uncontracted (every original vertex active) on return, same as it was
// found, so a caller can start another cycle on the same hypergraph.
func runCycle(h *hgraph.Hypergraph, community coarsening.Community, opt Options, logger zerolog.Logger) (*hgraph.PartitionedHypergraph, initialpartition.Report, error) {
	maxWeights := maxBlockWeights(h, opt)

	hier, err := coarsening.Coarsen(h, community, opt.Coarsening, logger)
	if err != nil {
		return nil, initialpartition.Report{}, err
	}

	ph, report, err := initialpartition.Run(h, opt.IP, logger)
	if err != nil {
		return nil, initialpartition.Report{}, err
	}

	if len(hier.Levels) == 0 {
		refine(ph, true, opt, logger)
		return ph, report, nil
	}

	part := extractPart(ph, h.NumVertices())
	for level := len(hier.Levels) - 1; level >= 0; level-- {
		if err := hier.Project(level, part); err != nil {
			return nil, report, err
		}
		ph = rebuildPartition(h, part, maxWeights)
		refine(ph, level == 0, opt, logger)
		part = extractPart(ph, h.NumVertices())
	}

	return ph, report, nil
}

// refine runs C6 (always) then C7 (when enabled) over ph, exactly as spec
// §2's control flow names them. isOriginalInput tells core/flow's
// quotient-graph scheduler whether the SkipSmallCuts threshold is allowed
// to look at the hypergraph's real (uncoarsened) cut weights.
func refine(ph *hgraph.PartitionedHypergraph, isOriginalInput bool, opt Options, logger zerolog.Logger) {
	fm.NewRefiner(ph, opt.FM).Run(logger)
	if opt.FlowsEnabled {
		flow.NewRefiner(ph, opt.Flow).Run(isOriginalInput, logger)
	}
}

// detectCommunity runs C2 (build the Louvain-facing Graph view) then C3
// (local moving) and restricts the resulting clustering to the first N
// entries: buildBipartite appends one auxiliary node per hyperedge after
// the N vertex nodes, and those have no meaning as a coarsening community.
func detectCommunity(h *hgraph.Hypergraph, opt Options, logger zerolog.Logger) (coarsening.Community, error) {
	g := graph.Build(h, opt.EdgeWeightFunction)
	clustering, err := louvain.Run(g, opt.Louvain, logger)
	if err != nil {
		return nil, err
	}
	community := make(coarsening.Community, h.NumVertices())
	copy(community, clustering[:h.NumVertices()])
	return community, nil
}

// communityFromPartition treats a committed partition's blocks as the next
// v-cycle's matching restriction, so coarsening never contracts across a
// cut the previous cycle found worth keeping.
func communityFromPartition(ph *hgraph.PartitionedHypergraph, n int) coarsening.Community {
	community := make(coarsening.Community, n)
	for v := 0; v < n; v++ {
		community[v] = ph.BlockOf(v)
	}
	return community
}

func extractPart(ph *hgraph.PartitionedHypergraph, n int) []int32 {
	part := make([]int32, n)
	for v := 0; v < n; v++ {
		part[v] = ph.BlockOf(v)
	}
	return part
}

// rebuildPartition materializes a fresh PartitionedHypergraph over h's
// current (just-uncontracted) state from a plain assignment array:
// coarsening.Hierarchy.Project mutates h in place and writes into a plain
// []int32 rather than a PartitionedHypergraph, so each uncontraction step
// needs a new overlay before refinement can run against it.
func rebuildPartition(h *hgraph.Hypergraph, part []int32, maxWeights []int64) *hgraph.PartitionedHypergraph {
	ph := hgraph.NewPartitioned(h, len(maxWeights), maxWeights)
	for v, b := range part {
		if h.NodeWeight(v) == 0 {
			continue
		}
		ph.AssignInitial(v, b)
	}
	return ph
}

func maxBlockWeights(h *hgraph.Hypergraph, opt Options) []int64 {
	total := h.TotalWeight()
	ideal := float64((total + int64(opt.K) - 1) / int64(opt.K))
	maxWeight := int64(ideal * (1 + opt.Epsilon))
	if maxWeight < 1 {
		maxWeight = 1
	}
	maxWeights := make([]int64, opt.K)
	for b := range maxWeights {
		maxWeights[b] = maxWeight
	}
	return maxWeights
}

func objectiveOf(ph *hgraph.PartitionedHypergraph, objective config.Objective) int64 {
	if objective == config.ObjectiveCut {
		return ph.Cut()
	}
	return ph.Km1()
}
