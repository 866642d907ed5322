// Package coarsening implements the parallel coarsener (spec §4.3): repeated
// vertex matching and contraction of a Hypergraph until a contraction limit
// or shrink-factor floor is hit. It is grounded on the teacher's
// pkg/louvain/algorithm.go AggregateGraph, generalized from graph-node
// aggregation keyed by a full community partition to hypergraph pairwise
// matching keyed by a heavy-edge rating function, and retargeted onto
// core/hgraph.Hypergraph's in-place Contract/Uncontract instead of building
// a brand-new graph object per level.
package coarsening

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/errs"
)

// Level records one matching-and-contract pass: the contraction records
// applied, in the order they were applied, so Hierarchy.Uncontract can
// replay them in exact reverse order (spec §4.3 "each level stores enough
// information to uncontract exactly").
type Level struct {
	Records []*hgraph.ContractionRecord
}

// Hierarchy is a stack of coarsening levels over a single Hypergraph that is
// contracted in place: vertex ids never change, but vertices merged away
// carry zero weight and an empty incident-net chain until uncontracted.
type Hierarchy struct {
	H      *hgraph.Hypergraph
	Levels []*Level
}

// Community optionally restricts matching to same-community pairs, as
// produced by core/louvain.Run on the Louvain-preprocessed graph view (spec
// §1: "a community-detection preprocessor ... guides coarsening"). May be
// nil, in which case matching considers all hypergraph neighbors.
type Community []int32

// Options configures one Coarsen call.
type Options struct {
	K                         int
	ContractionLimitMultiplier int
	MaxAllowedWeightMultiplier float64
	MinimumShrinkFactor        float64
	MaximumShrinkFactor        float64
	RatingFunction             config.RatingFunction
	HeavyNodePenaltyPolicy     config.PenaltyPolicy
}

func FromConfig(c *config.Config) Options {
	return Options{
		K:                          c.K(),
		ContractionLimitMultiplier: c.ContractionLimitMultiplier(),
		MaxAllowedWeightMultiplier: c.MaxAllowedWeightMultiplier(),
		MinimumShrinkFactor:        c.MinimumShrinkFactor(),
		MaximumShrinkFactor:        c.MaximumShrinkFactor(),
		RatingFunction:             c.RatingFunction(),
		HeavyNodePenaltyPolicy:     c.HeavyNodePenaltyPolicy(),
	}
}

// Coarsen repeatedly matches and contracts h in place until the active
// vertex count reaches the contraction limit (k * ContractionLimitMultiplier)
// or a pass's shrink factor no longer clears MinimumShrinkFactor (spec
// §4.3). Returns the hierarchy of levels needed to uncontract and project a
// partition back to the original vertex set.
func Coarsen(h *hgraph.Hypergraph, community Community, opt Options, logger zerolog.Logger) (*Hierarchy, error) {
	if opt.K < 2 {
		return nil, errs.Newf(errs.InvalidInput, "coarsening.Coarsen", "k=%d must be >= 2", opt.K)
	}
	contractionLimit := opt.K * opt.ContractionLimitMultiplier
	if contractionLimit < opt.K {
		contractionLimit = opt.K
	}
	maxAllowedNodeWeight := int64(float64(h.TotalWeight()) / float64(opt.K) * opt.MaxAllowedWeightMultiplier)
	if maxAllowedNodeWeight < 1 {
		maxAllowedNodeWeight = 1
	}

	hier := &Hierarchy{H: h}
	active := activeVertices(h)

	for len(active) > contractionLimit {
		pairs := matchPass(h, active, community, maxAllowedNodeWeight, opt)
		if len(pairs) == 0 {
			logger.Debug().Int("active", len(active)).Msg("coarsening pass found no matches, stopping")
			break
		}

		// MaximumShrinkFactor bounds how much a single pass may shrink the
		// active set; once the limit is reached, defer remaining matches to
		// a later pass so refinement still sees intermediate levels.
		maxContractions := len(active) - int(float64(len(active))/opt.MaximumShrinkFactor)
		if maxContractions < 1 {
			maxContractions = 1
		}
		if maxContractions < len(pairs) {
			pairs = pairs[:maxContractions]
		}

		level := &Level{Records: make([]*hgraph.ContractionRecord, 0, len(pairs))}
		for _, p := range pairs {
			rec, err := h.Contract(p.u, p.v)
			if err != nil {
				return nil, errs.New(errs.Internal, "coarsening.Coarsen", err)
			}
			level.Records = append(level.Records, rec)
		}
		hier.Levels = append(hier.Levels, level)

		oldCount := len(active)
		active = activeVertices(h)
		shrinkFactor := float64(oldCount) / float64(len(active))
		logger.Debug().
			Int("level", len(hier.Levels)).
			Int("active_before", oldCount).
			Int("active_after", len(active)).
			Float64("shrink_factor", shrinkFactor).
			Msg("coarsening pass completed")

		if shrinkFactor < opt.MinimumShrinkFactor {
			break
		}
	}

	return hier, nil
}

// Project copies part[u] onto part[v] for every contracted pair (u<-v) of
// level, uncontracting in reverse order, then mirrors it back into `part`.
// Called once per level while unwinding the hierarchy during refinement.
func (hier *Hierarchy) Project(level int, part []int32) error {
	lvl := hier.Levels[level]
	for i := len(lvl.Records) - 1; i >= 0; i-- {
		rec := lvl.Records[i]
		if err := hier.H.Uncontract(rec); err != nil {
			return errs.New(errs.Internal, "coarsening.Project", err)
		}
		part[rec.From] = part[rec.Into]
	}
	return nil
}

type pair struct {
	u, v  int32
	score float64
}

// matchPass runs a single round of greedy rating-maximizing pairwise
// matching over `active`, visiting vertices in ascending id order (stable,
// reproducible regardless of thread count -- the teacher's algorithm.go
// iterates communities/nodes in plain ascending order too).
func matchPass(h *hgraph.Hypergraph, active []int32, community Community, maxWeight int64, opt Options) []pair {
	matched := make(map[int32]bool, len(active))
	var pairs []pair

	for _, u := range active {
		if matched[u] {
			continue
		}
		bestV := int32(-1)
		bestScore := -1.0
		for _, e := range h.IncidentEdges(int(u)) {
			for _, v := range h.Pins(e) {
				if v == u || matched[v] || h.NodeWeight(int(v)) == 0 {
					continue
				}
				if community != nil && community[u] != community[v] {
					continue
				}
				if h.NodeWeight(int(u))+h.NodeWeight(int(v)) > maxWeight {
					continue
				}
				score := rating(h, u, v, opt.RatingFunction, opt.HeavyNodePenaltyPolicy)
				if score > bestScore || (score == bestScore && v < bestV) {
					bestScore = score
					bestV = v
				}
			}
		}
		if bestV >= 0 {
			matched[u] = true
			matched[bestV] = true
			pairs = append(pairs, pair{u: u, v: bestV, score: bestScore})
		}
	}

	// Highest-rated pairs first, so a MaximumShrinkFactor truncation keeps
	// the strongest matches.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })
	return pairs
}

// rating scores the desirability of contracting u and v together. The
// default heavy_edge rating sums shared-hyperedge weight normalized by
// |e|-1 and then penalizes it by node weight per HeavyNodePenaltyPolicy.
// The multiplicative, additive and none ratings use the plain shared weight
// with their own node-weight term and ignore HeavyNodePenaltyPolicy.
func rating(h *hgraph.Hypergraph, u, v int32, rf config.RatingFunction, pp config.PenaltyPolicy) float64 {
	var heavyEdgeSum, plainSum float64
	for _, e := range h.IncidentEdges(int(u)) {
		pins := h.Pins(e)
		sharesV := false
		for _, p := range pins {
			if p == v {
				sharesV = true
				break
			}
		}
		if !sharesV {
			continue
		}
		w := float64(h.EdgeWeight(e))
		plainSum += w
		if size := h.EdgeSize(e); size > 1 {
			heavyEdgeSum += w / float64(size-1)
		}
	}

	cu, cv := float64(h.NodeWeight(int(u))), float64(h.NodeWeight(int(v)))

	var score float64
	switch rf {
	case config.RatingMultiplicative:
		score = plainSum / (cu * cv)
		return score
	case config.RatingAdditive:
		score = plainSum - (cu + cv)
		return score
	case config.RatingNone:
		return plainSum
	default: // RatingHeavyEdge
		score = heavyEdgeSum
	}

	switch pp {
	case config.PenaltyMultiplicative:
		score /= cu * cv
	case config.PenaltyAdditive:
		score -= cu + cv
	case config.PenaltyNone:
	}
	return score
}

// activeVertices returns the ids of vertices not yet contracted away
// (nonzero weight).
func activeVertices(h *hgraph.Hypergraph) []int32 {
	active := make([]int32, 0, h.NumNodes)
	for v := 0; v < h.NumNodes; v++ {
		if h.NodeWeight(v) > 0 {
			active = append(active, int32(v))
		}
	}
	return active
}
