package statsserver

import "github.com/gorilla/mux"

// SetupRoutes mirrors the teacher's api.SetupRoutes layout: a versioned API
// prefix, one subrouter per resource, health check unversioned at the root.
func SetupRoutes(router *mux.Router, h *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	runs := api.PathPrefix("/runs").Subrouter()
	runs.HandleFunc("", h.StartRun).Methods("POST")
	runs.HandleFunc("", h.ListRuns).Methods("GET")
	runs.HandleFunc("/{runId}", h.GetRun).Methods("GET")
	runs.HandleFunc("/{runId}/cancel", h.CancelRun).Methods("POST")

	router.HandleFunc("/healthz", h.Healthz).Methods("GET")
}
