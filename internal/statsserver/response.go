package statsserver

import (
	"encoding/json"
	"net/http"
)

// envelope is the JSON shape every handler replies with, mirroring the
// teacher's utils.WriteSuccessResponse/WriteErrorResponse pair.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	e := envelope{Success: false, Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
