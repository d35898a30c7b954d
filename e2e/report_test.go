package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/deeres/gateway/internal/model"
)

func TestGenerateReport_Success(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "test-key")

	resp, err := doRequest(app, http.MethodPost, "/generate-report", `{"topic": "solid state batteries"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["job_id"] != "job-test-1" {
		t.Errorf("expected backend job descriptor, got %v", result)
	}
	if backend.lastTopic != "solid state batteries" {
		t.Errorf("topic must be forwarded verbatim, backend saw %q", backend.lastTopic)
	}
	if backend.lastAPIKey != "test-key" {
		t.Errorf("configured API key must be injected, backend saw %q", backend.lastAPIKey)
	}
}

func TestGenerateReport_ConfigOverridesForwarded(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	body := `{"topic": "tidal energy", "config_overrides": {"search_api": "tavily", "max_search_depth": 2}}`
	resp, err := doRequest(app, http.MethodPost, "/generate-report", body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	if backend.createCalled != 1 {
		t.Errorf("expected exactly one forwarded job, got %d", backend.createCalled)
	}
}

func TestGenerateReport_EmptyTopic(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	for _, body := range []string{`{}`, `{"topic": ""}`, `{"topic": "   "}`} {
		resp, err := doRequest(app, http.MethodPost, "/generate-report", body, nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusBadRequest)

		result := parseJSON(t, resp)
		if result["detail"] == nil || result["detail"] == "" {
			t.Errorf("expected 'detail' in validation error body for %s", body)
		}
	}

	if backend.createCalled != 0 {
		t.Errorf("invalid topics must never reach the backend, got %d calls", backend.createCalled)
	}
}

func TestGenerateReport_BusyBackend(t *testing.T) {
	backend := newFakeBackend()
	backend.health.ServerStatus = model.ServerStatusBusy
	backend.health.CurrentLoad = 10
	backend.health.MaxCapacity = 10
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodPost, "/generate-report", `{"topic": "x"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusTooManyRequests)

	result := parseJSON(t, resp)
	if result["serverStatus"] != "busy" {
		t.Errorf("expected serverStatus 'busy', got %v", result["serverStatus"])
	}
	if result["currentLoad"] != float64(10) || result["maxCapacity"] != float64(10) {
		t.Errorf("load figures must be echoed exactly, got %v", result)
	}
	if backend.createCalled != 0 {
		t.Error("admission control must reject before forwarding")
	}
}

func TestGenerateReport_WarmingBackend(t *testing.T) {
	backend := newFakeBackend()
	backend.health.IsWarmingUp = true
	// Warming must win even when the backend also reports busy
	backend.health.ServerStatus = model.ServerStatusBusy
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodPost, "/generate-report", `{"topic": "x"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)

	if got := resp.Header.Get("Retry-After"); got != "30" {
		t.Errorf("expected Retry-After 30, got %q", got)
	}
	result := parseJSON(t, resp)
	if result["serverStatus"] != "warming" {
		t.Errorf("expected serverStatus 'warming', got %v", result["serverStatus"])
	}
}

func TestGenerateReport_UnreachableBackend(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	srv.Close() // nothing listening anymore
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodPost, "/generate-report", `{"topic": "x"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)

	result := parseJSON(t, resp)
	if result["serverStatus"] != "unavailable" {
		t.Errorf("expected serverStatus 'unavailable', got %v", result["serverStatus"])
	}
}

func TestGenerateReport_BackendErrorPropagated(t *testing.T) {
	backend := newFakeBackend()
	backend.createCode = http.StatusUnprocessableEntity
	backend.createDetail = "topic exceeds maximum length"
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodPost, "/generate-report", `{"topic": "x"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnprocessableEntity)

	result := parseJSON(t, resp)
	if result["detail"] != "topic exceeds maximum length" {
		t.Errorf("backend detail must pass through verbatim, got %v", result["detail"])
	}
}

func TestJobStatus_Success(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs["job-7"] = model.JobResult{
		JobID:    "job-7",
		Status:   model.JobStatusRunning,
		Progress: 0.5,
		Message:  "Analyzing search results...",
	}
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodGet, "/generate-report?jobId=job-7", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "running" || result["progress"] != float64(0.5) {
		t.Errorf("status payload must pass through unchanged, got %v", result)
	}
}

func TestJobStatus_CompletedCarriesReport(t *testing.T) {
	backend := newFakeBackend()
	backend.jobs["job-8"] = model.JobResult{
		JobID:    "job-8",
		Status:   model.JobStatusCompleted,
		Progress: 1.0,
		Report:   &model.ReportResult{Topic: "x", Content: "# Report\n\nbody"},
	}
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodGet, "/generate-report?jobId=job-8", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	report, ok := result["report"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected report object, got %v", result)
	}
	if report["content"] != "# Report\n\nbody" {
		t.Errorf("report content is opaque and must not be reinterpreted, got %v", report["content"])
	}
}

func TestJobStatus_MissingJobID(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	resp, err := doRequest(app, http.MethodGet, "/generate-report", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestJobStatus_NotFoundPropagated(t *testing.T) {
	backend := newFakeBackend()
	srv := backend.serve(t)
	app := setupApp(t, srv.URL, "")

	fakeJobID := uuid.New().String()
	resp, err := doRequest(app, http.MethodGet, "/generate-report?jobId="+fakeJobID, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	detail, _ := result["detail"].(string)
	if detail == "" {
		t.Error("propagated error must keep the backend detail")
	}
}
