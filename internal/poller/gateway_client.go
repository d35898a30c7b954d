package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deeres/gateway/internal/model"
)

// GatewayClient drives the gateway's public surface the way a browser
// client would: one POST to submit, repeated GETs to poll. It satisfies
// StatusSource.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewGatewayClient creates a client for a gateway instance. authToken is
// optional and only needed when the gateway runs with auth enabled.
func NewGatewayClient(baseURL, authToken string) *GatewayClient {
	return &GatewayClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:   baseURL,
		authToken: authToken,
	}
}

// SubmitReport starts a report job via POST /generate-report.
func (c *GatewayClient) SubmitReport(ctx context.Context, req *model.ReportRequest) (*model.JobResult, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-report", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result model.JobResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus polls a job via GET /generate-report?jobId=<id>.
func (c *GatewayClient) JobStatus(ctx context.Context, jobID string) (*model.JobResult, error) {
	endpoint := c.baseURL + "/generate-report?jobId=" + url.QueryEscape(jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result model.JobResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *GatewayClient) do(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// newStatusError parses the gateway error contract, keeping the server
// status tag and load figures when present.
func newStatusError(statusCode int, body []byte) *StatusError {
	var parsed struct {
		Detail       string `json:"detail"`
		ServerStatus string `json:"serverStatus"`
		CurrentLoad  *int   `json:"currentLoad"`
		MaxCapacity  *int   `json:"maxCapacity"`
	}
	_ = json.Unmarshal(body, &parsed)
	if parsed.Detail == "" {
		parsed.Detail = http.StatusText(statusCode)
	}
	return &StatusError{
		StatusCode:   statusCode,
		Detail:       parsed.Detail,
		ServerStatus: parsed.ServerStatus,
		CurrentLoad:  parsed.CurrentLoad,
		MaxCapacity:  parsed.MaxCapacity,
	}
}
