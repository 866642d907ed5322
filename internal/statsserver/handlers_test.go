package statsserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/gilchrisn/graph-clustering-service/internal/jobs"
	"github.com/gilchrisn/graph-clustering-service/internal/logging"
)

func newTestRouter() (*mux.Router, *jobs.Registry) {
	reg := jobs.NewRegistry(2, logging.Nop())
	router := mux.NewRouter()
	SetupRoutes(router, NewHandlers(reg))
	return router, reg
}

func multipartHypergraphBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("hypergraph", "h.hgr")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte("1 4\n1 2 3 4\n"))
	mw.WriteField("k", "2")
	mw.WriteField("epsilon", "0.5")
	mw.WriteField("initial_partitioning.runs", "1") // ignored: not a form field the handler reads, but harmless
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestStartRunAndPoll(t *testing.T) {
	router, _ := newTestRouter()
	body, contentType := multipartHypergraphBody(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("StartRun status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("StartRun reported failure: %s", resp.Error)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %#v", resp.Data)
	}
	runID, _ := data["id"].(string)
	if runID == "" {
		t.Fatal("StartRun did not return a run id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID, nil)
		getRec := httptest.NewRecorder()
		router.ServeHTTP(getRec, getReq)
		var getResp envelope
		json.Unmarshal(getRec.Body.Bytes(), &getResp)
		d := getResp.Data.(map[string]interface{})
		if d["status"] == "completed" || d["status"] == "failed" {
			if d["status"] == "failed" {
				t.Fatalf("run failed: %v", d)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run did not complete within deadline")
}

func TestGetRunUnknownID(t *testing.T) {
	router, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
