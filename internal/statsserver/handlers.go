package statsserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gilchrisn/graph-clustering-service/core/engine"
	"github.com/gilchrisn/graph-clustering-service/internal/config"
	"github.com/gilchrisn/graph-clustering-service/internal/jobs"
	"github.com/gilchrisn/graph-clustering-service/internal/parser"
)

// Handlers holds the registry the HTTP layer drives; grounded on the
// teacher's api.Handlers, which is likewise a thin struct of service
// references with one method per route.
type Handlers struct {
	registry *jobs.Registry
}

func NewHandlers(registry *jobs.Registry) *Handlers {
	return &Handlers{registry: registry}
}

// StartRun accepts a multipart form carrying an hMETIS hypergraph file
// (field "hypergraph") plus optional config overrides as form values
// (preset, k, epsilon, objective, seed, num_vcycles), and queues a run.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}

	file, _, err := r.FormFile("hypergraph")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing required file field: hypergraph", err)
		return
	}
	defer file.Close()

	hg, err := parser.ReadHMetis(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse hypergraph", err)
		return
	}

	c, err := configFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid config overrides", err)
		return
	}

	run := h.registry.Submit(hg, engine.FromConfig(c))
	writeSuccess(w, "run queued", runView(run))
}

// GetRun reports a run's current status, and its result once completed.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	run, ok := h.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	writeSuccess(w, "run retrieved", runView(run))
}

// ListRuns reports every run this process has ever submitted.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.registry.List()
	views := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}
	writeSuccess(w, "runs retrieved", views)
}

// CancelRun cancels a still-queued run.
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if err := h.registry.Cancel(runID); err != nil {
		writeError(w, http.StatusConflict, "failed to cancel run", err)
		return
	}
	writeSuccess(w, "run cancelled", nil)
}

// Healthz reports process liveness for load balancer / orchestrator probes.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "ok", map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// runSummary is the wire shape for a jobs.Run: the engine.Result's
// PartitionedHypergraph doesn't marshal (atomic int slices, no exported
// getters meant for JSON), so only the scalar fields callers actually poll
// for are surfaced.
type runSummary struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	CreatedAt string  `json:"created_at"`
	Objective *int64  `json:"objective,omitempty"`
	Imbalance *float64 `json:"imbalance,omitempty"`
	VCycles   *int    `json:"vcycles,omitempty"`
}

func runView(run *jobs.Run) runSummary {
	v := runSummary{
		ID:        run.ID,
		Status:    string(run.Status),
		Message:   run.Message,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
	if run.Result != nil {
		v.Objective = &run.Result.Objective
		v.Imbalance = &run.Result.Imbalance
		v.VCycles = &run.Result.VCycles
	}
	return v
}

// configFromForm overlays the speed preset with any form-supplied
// overrides, following the teacher's FormValue-driven parsing in
// UploadDataset (read the value, fall back to a default when blank).
func configFromForm(r *http.Request) (*config.Config, error) {
	preset := config.PresetSpeed
	if s := r.FormValue("preset"); s != "" {
		p, err := config.ParsePreset(s)
		if err != nil {
			return nil, err
		}
		preset = p
	}
	c := config.NewWithPreset(preset)

	if s := r.FormValue("k"); s != "" {
		k, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		c.Set("k", k)
	}
	if s := r.FormValue("epsilon"); s != "" {
		eps, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		c.Set("epsilon", eps)
	}
	if s := r.FormValue("objective"); s != "" {
		if _, err := config.ParseObjective(s); err != nil {
			return nil, err
		}
		c.Set("objective", s)
	}
	if s := r.FormValue("seed"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		c.Set("seed", seed)
	}
	if s := r.FormValue("num_vcycles"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		c.Set("num_vcycles", n)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
