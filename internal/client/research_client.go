package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/deeres/gateway/internal/config"
	"github.com/deeres/gateway/internal/model"
)

// ResearchBackend defines the operations the gateway needs from the
// research service.
type ResearchBackend interface {
	Health(ctx context.Context) (*model.HealthStatus, error)
	CreateJob(ctx context.Context, req *model.ReportRequest) (*model.JobResult, error)
	JobStatus(ctx context.Context, jobID string) (*model.JobResult, error)
}

// ResearchClient implements ResearchBackend over HTTP.
type ResearchClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// APIError is a non-2xx response from the backend. The gateway propagates
// StatusCode and Detail to its own caller verbatim.
type APIError struct {
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("research API error (status %d): %s", e.StatusCode, e.Detail)
}

// NewResearchClient creates a new research backend client
func NewResearchClient(cfg *config.BackendConfig) *ResearchClient {
	return &ResearchClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// Health fetches the backend's current health and load information.
func (c *ResearchClient) Health(ctx context.Context) (*model.HealthStatus, error) {
	var result model.HealthStatus
	if err := c.get(ctx, "/health", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateJob starts report generation and returns the backend's job
// descriptor. When the backend finishes synchronously the descriptor
// already embeds the report.
func (c *ResearchClient) CreateJob(ctx context.Context, req *model.ReportRequest) (*model.JobResult, error) {
	var result model.JobResult
	if err := c.post(ctx, "/generate-report", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus retrieves the current status of a report job
func (c *ResearchClient) JobStatus(ctx context.Context, jobID string) (*model.JobResult, error) {
	endpoint := fmt.Sprintf("/job-status/%s", jobID)
	var result model.JobResult
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *ResearchClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *ResearchClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response. The API key
// header is attached only when one is configured; absence is not an error.
func (c *ResearchClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	log.Printf("[Research API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Research API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Research API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Research API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Research API] ✗ unmarshal error for %s %s: %v (body: %s)", req.Method, req.URL.String(), err, string(respBody))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// newAPIError extracts the backend-supplied detail from an error body,
// keeping it verbatim for propagation. A generic message is substituted
// only when the body carries none.
func newAPIError(statusCode int, body []byte) *APIError {
	detail := ""
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		detail = parsed.Detail
	}
	if detail == "" {
		detail = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Detail:     detail,
		Body:       body,
	}
}

// IsConfigured returns true if the client has a backend URL to talk to
func (c *ResearchClient) IsConfigured() bool {
	return c.baseURL != ""
}
