// Package jobs is a uuid-keyed run registry: Submit hands a hypergraph and
// engine options to a background goroutine, bounded by a worker-slot
// channel, and Get/List let internal/statsserver poll status without
// blocking on the run. Grounded on the teacher's
// graph-clustering-backend/src2/service/job.go JobService: the same
// map+mutex registry, uuid.New job ids, a buffered-channel worker-slot
// semaphore, and a status/progress struct updated under the same lock the
// map itself uses.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/core/engine"
	"github.com/gilchrisn/graph-clustering-service/core/hgraph"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is one partitioning request's lifecycle record.
type Run struct {
	ID        string
	Status    Status
	Message   string
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	Result *engine.Result
	Err    error
}

// Registry tracks every Run submitted this process's lifetime. Runs are
// never evicted (spec §6 gives no TTL for the engine itself; a bounded TTL
// belongs to whatever long-lived server embeds this registry, not here).
type Registry struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	workers chan struct{}
	logger  zerolog.Logger
}

// NewRegistry creates a registry that runs at most maxConcurrent jobs at
// once; excess Submit calls queue behind the worker-slot channel.
func NewRegistry(maxConcurrent int, logger zerolog.Logger) *Registry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Registry{
		runs:    make(map[string]*Run),
		workers: make(chan struct{}, maxConcurrent),
		logger:  logger,
	}
}

// Submit queues h for partitioning under opt and immediately returns the
// new Run in StatusQueued; the caller polls Get for completion.
func (r *Registry) Submit(h *hgraph.Hypergraph, opt engine.Options) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		Status:    StatusQueued,
		Message:   "queued",
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()

	go r.process(run, h, opt)
	return run
}

func (r *Registry) process(run *Run, h *hgraph.Hypergraph, opt engine.Options) {
	r.workers <- struct{}{}
	defer func() { <-r.workers }()

	r.mu.Lock()
	if run.Status == StatusCancelled {
		r.mu.Unlock()
		return
	}
	run.Status = StatusRunning
	run.Message = "partitioning"
	run.StartedAt = time.Now()
	r.mu.Unlock()

	logger := r.logger.With().Str("run_id", run.ID).Logger()
	logger.Info().Int("k", opt.K).Msg("run started")

	result, err := engine.Run(h, opt, logger)

	r.mu.Lock()
	run.EndedAt = time.Now()
	if err != nil {
		run.Status = StatusFailed
		run.Err = err
		run.Message = err.Error()
		logger.Error().Err(err).Msg("run failed")
	} else {
		run.Status = StatusCompleted
		run.Result = result
		run.Message = "done"
		logger.Info().Int64("objective", result.Objective).Msg("run completed")
	}
	r.mu.Unlock()
}

// Get returns the run with the given id, or ok=false if unknown.
func (r *Registry) Get(id string) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}

// List returns every tracked run, most recently created first.
func (r *Registry) List() []*Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Cancel marks a still-queued run cancelled so it never starts. A run
// already in StatusRunning cannot be interrupted -- engine.Run takes no
// context.Context -- and Cancel reports that back as an error rather than
// silently no-oping.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("jobs: run %s not found", id)
	}
	switch run.Status {
	case StatusQueued:
		run.Status = StatusCancelled
		run.Message = "cancelled"
		run.EndedAt = time.Now()
		return nil
	case StatusRunning:
		return fmt.Errorf("jobs: run %s is already running and cannot be interrupted", id)
	default:
		return fmt.Errorf("jobs: run %s already finished with status %s", id, run.Status)
	}
}
