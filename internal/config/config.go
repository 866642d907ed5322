// Package config manages partitioner configuration using Viper, following
// the same wrapper shape as the teacher's graph-clustering-algorithm
// pkg/louvain/config.go and pkg/scar/config.go: a *viper.Viper holding
// defaults, overridable from a file, exposed through typed getters.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-clustering-service/internal/errs"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

// RatingFunction selects the coarsening rating heuristic (spec §4.3).
type RatingFunction int

const (
	RatingHeavyEdge RatingFunction = iota
	RatingMultiplicative
	RatingAdditive
	RatingNone
)

// PenaltyPolicy penalizes heavy nodes during rating.
type PenaltyPolicy int

const (
	PenaltyMultiplicative PenaltyPolicy = iota
	PenaltyAdditive
	PenaltyNone
)

// EdgeWeightFunction selects how Louvain preprocessing derives graph arc
// weights from hyperedges (spec §3 Graph).
type EdgeWeightFunction int

const (
	EdgeWeightUniform EdgeWeightFunction = iota
	EdgeWeightNonUniform
	EdgeWeightDegree
)

func (f EdgeWeightFunction) String() string {
	switch f {
	case EdgeWeightUniform:
		return "uniform"
	case EdgeWeightNonUniform:
		return "non_uniform"
	case EdgeWeightDegree:
		return "degree"
	default:
		return "unknown"
	}
}

// Objective selects the partitioning objective.
type Objective int

const (
	ObjectiveCut Objective = iota
	ObjectiveKm1
)

// Preset names the three bundled parameter profiles from spec §6.
type Preset int

const (
	PresetSpeed Preset = iota
	PresetHighQuality
	PresetDeterministic
)

func ParsePreset(s string) (Preset, error) {
	switch s {
	case "speed", "":
		return PresetSpeed, nil
	case "high_quality":
		return PresetHighQuality, nil
	case "deterministic":
		return PresetDeterministic, nil
	default:
		return 0, errs.Newf(errs.InvalidInput, "config.ParsePreset", "unknown preset %q", s)
	}
}

func ParseObjective(s string) (Objective, error) {
	switch s {
	case "cut":
		return ObjectiveCut, nil
	case "km1", "":
		return ObjectiveKm1, nil
	default:
		return 0, errs.Newf(errs.InvalidInput, "config.ParseObjective", "unknown objective %q", s)
	}
}

func parseRating(s string) RatingFunction {
	switch s {
	case "multiplicative":
		return RatingMultiplicative
	case "additive":
		return RatingAdditive
	case "none":
		return RatingNone
	default:
		return RatingHeavyEdge
	}
}

func parsePenalty(s string) PenaltyPolicy {
	switch s {
	case "additive":
		return PenaltyAdditive
	case "none":
		return PenaltyNone
	default:
		return PenaltyMultiplicative
	}
}

func parseEdgeWeight(s string) EdgeWeightFunction {
	switch s {
	case "non_uniform":
		return EdgeWeightNonUniform
	case "degree":
		return EdgeWeightDegree
	default:
		return EdgeWeightUniform
	}
}

// Config wraps viper the way the teacher's algorithm config packages do.
type Config struct {
	v *viper.Viper
}

// New creates a configuration with the "speed" preset's defaults applied.
func New() *Config {
	c := &Config{v: viper.New()}
	c.applyPreset(PresetSpeed)
	return c
}

// NewWithPreset creates a configuration seeded from the given preset.
func NewWithPreset(p Preset) *Config {
	c := &Config{v: viper.New()}
	c.applyPreset(p)
	return c
}

func (c *Config) applyPreset(p Preset) {
	v := c.v

	// Top-level (spec §6).
	v.SetDefault("k", 2)
	v.SetDefault("epsilon", 0.03)
	v.SetDefault("objective", "km1")
	v.SetDefault("seed", time.Now().UnixNano())
	v.SetDefault("num_vcycles", 0)
	v.SetDefault("num_threads", runtime.NumCPU())
	v.SetDefault("deterministic", p == PresetDeterministic)

	// preprocessing.community_detection.*
	v.SetDefault("preprocessing.community_detection.edge_weight_function", "uniform")
	v.SetDefault("preprocessing.community_detection.max_pass_iterations", 100)
	v.SetDefault("preprocessing.community_detection.min_vertex_move_fraction", 0.01)
	v.SetDefault("preprocessing.community_detection.vertex_degree_sampling_threshold", 200)
	v.SetDefault("preprocessing.community_detection.num_sub_rounds_deterministic", 16)
	v.SetDefault("preprocessing.community_detection.low_memory_contraction", false)

	// coarsening.*
	v.SetDefault("coarsening.contraction_limit_multiplier", 160)
	v.SetDefault("coarsening.max_allowed_weight_multiplier", 1.25)
	v.SetDefault("coarsening.minimum_shrink_factor", 1.01)
	v.SetDefault("coarsening.maximum_shrink_factor", 4.0)
	v.SetDefault("coarsening.rating.rating_function", "heavy_edge")
	v.SetDefault("coarsening.rating.heavy_node_penalty_policy", "multiplicative")
	v.SetDefault("coarsening.rating.acceptance_policy", "best")

	// initial_partitioning.*
	v.SetDefault("initial_partitioning.runs", 20)
	v.SetDefault("initial_partitioning.use_adaptive_ip_runs", true)
	v.SetDefault("initial_partitioning.min_adaptive_ip_runs", 5)
	v.SetDefault("initial_partitioning.perform_refinement_on_best_partitions", true)
	v.SetDefault("initial_partitioning.fm_refinment_rounds", 1)
	v.SetDefault("initial_partitioning.population_size", runtime.NumCPU())

	// refinement.label_propagation.*
	v.SetDefault("refinement.label_propagation.algorithm", "label_propagation")
	v.SetDefault("refinement.label_propagation.maximum_iterations", 5)
	v.SetDefault("refinement.label_propagation.hyperedge_size_activation_threshold", 100)

	// refinement.fm.*
	v.SetDefault("refinement.fm.algorithm", "multitry_kway_fm")
	v.SetDefault("refinement.fm.multitry_rounds", 10)
	v.SetDefault("refinement.fm.num_seed_nodes", 25)
	v.SetDefault("refinement.fm.rollback_balance_violation_factor", 1.25)
	v.SetDefault("refinement.fm.min_improvement", 0.0)
	v.SetDefault("refinement.fm.time_limit_factor", 10.0)
	v.SetDefault("refinement.fm.perform_moves_global", p != PresetSpeed)
	v.SetDefault("refinement.fm.rollback_parallel", true)
	v.SetDefault("refinement.fm.obey_minimal_parallelism", true)
	v.SetDefault("refinement.fm.release_nodes", true)

	// refinement.flows.*
	v.SetDefault("refinement.flows.algorithm", "flow_cutter")
	v.SetDefault("refinement.flows.alpha", 16.0)
	v.SetDefault("refinement.flows.max_num_pins", 4_000_000)
	v.SetDefault("refinement.flows.find_most_balanced_cut", true)
	v.SetDefault("refinement.flows.parallel_searches_multiplier", 1.0)
	v.SetDefault("refinement.flows.max_bfs_distance", 2)
	v.SetDefault("refinement.flows.min_relative_improvement_per_round", 0.001)
	v.SetDefault("refinement.flows.time_limit_factor", 8.0)
	v.SetDefault("refinement.flows.skip_small_cuts", true)
	v.SetDefault("refinement.flows.skip_unpromising_blocks", true)
	v.SetDefault("refinement.flows.pierce_in_bulk", true)

	// logging.*
	v.SetDefault("logging.level", "info")

	switch p {
	case PresetHighQuality:
		v.Set("initial_partitioning.runs", 40)
		v.Set("refinement.fm.multitry_rounds", 20)
		v.Set("refinement.flows.algorithm", "flow_cutter")
	case PresetDeterministic:
		v.Set("deterministic", true)
		v.Set("initial_partitioning.use_adaptive_ip_runs", false)
	}
}

// LoadFromFile overlays option values from an INI/YAML/JSON/TOML file onto
// the already-applied preset defaults, mirroring the teacher's
// Config.LoadFromFile.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return errs.New(errs.InvalidInput, "config.LoadFromFile", err)
	}
	return nil
}

// Set allows dynamic configuration changes (tests, CLI flag overrides).
func (c *Config) Set(key string, value interface{}) { c.v.Set(key, value) }

// Validate checks the cross-field preconditions from spec §7 InvalidInput.
func (c *Config) Validate() error {
	if c.K() < 2 {
		return errs.Newf(errs.InvalidInput, "config.Validate", "k must be >= 2, got %d", c.K())
	}
	if c.Epsilon() <= 0 {
		return errs.Newf(errs.InvalidInput, "config.Validate", "epsilon must be > 0, got %f", c.Epsilon())
	}
	if c.NumThreads() < 1 {
		return errs.Newf(errs.InvalidInput, "config.Validate", "num_threads must be >= 1")
	}
	if _, err := ParseObjective(c.v.GetString("objective")); err != nil {
		return err
	}
	return nil
}

// --- Top level getters ---

func (c *Config) K() int             { return c.v.GetInt("k") }
func (c *Config) Epsilon() float64   { return c.v.GetFloat64("epsilon") }
func (c *Config) Seed() int64        { return c.v.GetInt64("seed") }
func (c *Config) NumVCycles() int    { return c.v.GetInt("num_vcycles") }
func (c *Config) NumThreads() int    { return c.v.GetInt("num_threads") }
func (c *Config) Deterministic() bool { return c.v.GetBool("deterministic") }

func (c *Config) Objective() Objective {
	o, _ := ParseObjective(c.v.GetString("objective"))
	return o
}

// --- preprocessing.community_detection.* ---

func (c *Config) EdgeWeightFunction() EdgeWeightFunction {
	return parseEdgeWeight(c.v.GetString("preprocessing.community_detection.edge_weight_function"))
}
func (c *Config) MaxPassIterations() int {
	return c.v.GetInt("preprocessing.community_detection.max_pass_iterations")
}
func (c *Config) MinVertexMoveFraction() float64 {
	return c.v.GetFloat64("preprocessing.community_detection.min_vertex_move_fraction")
}
func (c *Config) VertexDegreeSamplingThreshold() int {
	return c.v.GetInt("preprocessing.community_detection.vertex_degree_sampling_threshold")
}
func (c *Config) NumSubRoundsDeterministic() int {
	return c.v.GetInt("preprocessing.community_detection.num_sub_rounds_deterministic")
}
func (c *Config) LowMemoryContraction() bool {
	return c.v.GetBool("preprocessing.community_detection.low_memory_contraction")
}

// --- coarsening.* ---

func (c *Config) ContractionLimitMultiplier() int { return c.v.GetInt("coarsening.contraction_limit_multiplier") }
func (c *Config) MaxAllowedWeightMultiplier() float64 {
	return c.v.GetFloat64("coarsening.max_allowed_weight_multiplier")
}
func (c *Config) MinimumShrinkFactor() float64 { return c.v.GetFloat64("coarsening.minimum_shrink_factor") }
func (c *Config) MaximumShrinkFactor() float64 { return c.v.GetFloat64("coarsening.maximum_shrink_factor") }
func (c *Config) RatingFunction() RatingFunction {
	return parseRating(c.v.GetString("coarsening.rating.rating_function"))
}
func (c *Config) HeavyNodePenaltyPolicy() PenaltyPolicy {
	return parsePenalty(c.v.GetString("coarsening.rating.heavy_node_penalty_policy"))
}

// --- initial_partitioning.* ---

func (c *Config) IPRuns() int                { return c.v.GetInt("initial_partitioning.runs") }
func (c *Config) UseAdaptiveIPRuns() bool    { return c.v.GetBool("initial_partitioning.use_adaptive_ip_runs") }
func (c *Config) MinAdaptiveIPRuns() int     { return c.v.GetInt("initial_partitioning.min_adaptive_ip_runs") }
func (c *Config) PerformRefinementOnBest() bool {
	return c.v.GetBool("initial_partitioning.perform_refinement_on_best_partitions")
}
func (c *Config) FMRefinementRounds() int { return c.v.GetInt("initial_partitioning.fm_refinment_rounds") }
func (c *Config) PopulationSize() int     { return c.v.GetInt("initial_partitioning.population_size") }

// --- refinement.label_propagation.* ---

func (c *Config) LPMaxIterations() int {
	return c.v.GetInt("refinement.label_propagation.maximum_iterations")
}
func (c *Config) LPHyperedgeSizeActivationThreshold() int {
	return c.v.GetInt("refinement.label_propagation.hyperedge_size_activation_threshold")
}

// --- refinement.fm.* ---

func (c *Config) FMMultitryRounds() int          { return c.v.GetInt("refinement.fm.multitry_rounds") }
func (c *Config) FMNumSeedNodes() int            { return c.v.GetInt("refinement.fm.num_seed_nodes") }
func (c *Config) FMRollbackBalanceViolationFactor() float64 {
	return c.v.GetFloat64("refinement.fm.rollback_balance_violation_factor")
}
func (c *Config) FMMinImprovement() float64    { return c.v.GetFloat64("refinement.fm.min_improvement") }
func (c *Config) FMTimeLimitFactor() float64   { return c.v.GetFloat64("refinement.fm.time_limit_factor") }
func (c *Config) FMPerformMovesGlobal() bool   { return c.v.GetBool("refinement.fm.perform_moves_global") }
func (c *Config) FMRollbackParallel() bool     { return c.v.GetBool("refinement.fm.rollback_parallel") }
func (c *Config) FMObeyMinimalParallelism() bool {
	return c.v.GetBool("refinement.fm.obey_minimal_parallelism")
}
func (c *Config) FMReleaseNodes() bool { return c.v.GetBool("refinement.fm.release_nodes") }

// --- refinement.flows.* ---

func (c *Config) FlowsEnabled() bool { return c.v.GetString("refinement.flows.algorithm") != "" }
func (c *Config) FlowAlpha() float64 { return c.v.GetFloat64("refinement.flows.alpha") }
func (c *Config) FlowMaxNumPins() int { return c.v.GetInt("refinement.flows.max_num_pins") }
func (c *Config) FlowFindMostBalancedCut() bool {
	return c.v.GetBool("refinement.flows.find_most_balanced_cut")
}
func (c *Config) FlowParallelSearchesMultiplier() float64 {
	return c.v.GetFloat64("refinement.flows.parallel_searches_multiplier")
}
func (c *Config) FlowMaxBFSDistance() int { return c.v.GetInt("refinement.flows.max_bfs_distance") }
func (c *Config) FlowMinRelativeImprovementPerRound() float64 {
	return c.v.GetFloat64("refinement.flows.min_relative_improvement_per_round")
}
func (c *Config) FlowTimeLimitFactor() float64 { return c.v.GetFloat64("refinement.flows.time_limit_factor") }
func (c *Config) FlowSkipSmallCuts() bool      { return c.v.GetBool("refinement.flows.skip_small_cuts") }
func (c *Config) FlowSkipUnpromisingBlocks() bool {
	return c.v.GetBool("refinement.flows.skip_unpromising_blocks")
}
func (c *Config) FlowPierceInBulk() bool { return c.v.GetBool("refinement.flows.pierce_in_bulk") }

// --- logging ---

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }

// Logger creates a zerolog.Logger for the named subsystem at the
// configured level, mirroring the teacher's Config.CreateLogger.
func (c *Config) Logger(service string) zerolog.Logger {
	return logging.New(service, c.LogLevel())
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{k=%d eps=%g objective=%v deterministic=%v threads=%d}",
		c.K(), c.Epsilon(), c.Objective(), c.Deterministic(), c.NumThreads())
}
