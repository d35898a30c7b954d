package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deeres/gateway/internal/config"
	"github.com/deeres/gateway/internal/model"
)

func newClient(baseURL, apiKey string) *ResearchClient {
	return NewResearchClient(&config.BackendConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 5,
	})
}

func TestHealth_ParsesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"server_status": "busy",
			"current_load":  10,
			"max_capacity":  10,
			"is_warming_up": false,
		})
	}))
	defer srv.Close()

	health, err := newClient(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if health.ServerStatus != "busy" || health.CurrentLoad != 10 || health.MaxCapacity != 10 {
		t.Errorf("health payload parsed wrong: %+v", health)
	}
}

func TestCreateJob_AttachesAPIKeyOnlyWhenConfigured(t *testing.T) {
	var gotKey string
	var hasHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, hasHeader = r.Header["X-Api-Key"]
		json.NewEncoder(w).Encode(model.JobResult{JobID: "j1", Status: model.JobStatusProcessing})
	}))
	defer srv.Close()

	req := &model.ReportRequest{Topic: "desalination"}

	if _, err := newClient(srv.URL, "sekrit").CreateJob(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "sekrit" {
		t.Errorf("expected configured API key to be attached, got %q", gotKey)
	}

	if _, err := newClient(srv.URL, "").CreateJob(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasHeader {
		t.Error("X-API-Key header must be absent when no key is configured")
	}
}

func TestJobStatus_HitsJobStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job-status/j42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.JobResult{JobID: "j42", Status: model.JobStatusRunning, Progress: 0.7})
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, "").JobStatus(context.Background(), "j42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Progress != 0.7 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDoRequest_NonSuccessBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Job with ID j9 not found"})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").JobStatus(context.Background(), "j9")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "Job with ID j9 not found" {
		t.Errorf("backend detail must be kept verbatim, got %q", apiErr.Detail)
	}
}

func TestDoRequest_MissingDetailGetsGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Detail == "" {
		t.Error("a generic detail must be substituted when the body has none")
	}
}
