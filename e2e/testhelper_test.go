package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/deeres/gateway/internal/client"
	"github.com/deeres/gateway/internal/config"
	"github.com/deeres/gateway/internal/handler"
	"github.com/deeres/gateway/internal/middleware"
	"github.com/deeres/gateway/internal/model"
	"github.com/deeres/gateway/internal/service"
)

// fakeBackend is an in-process research backend the gateway under test
// talks to.
type fakeBackend struct {
	mu sync.Mutex

	health     model.HealthStatus
	healthCode int

	createResult model.JobResult
	createCode   int
	createDetail string

	jobs map[string]model.JobResult

	lastAPIKey   string
	lastTopic    string
	createCalled int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		health: model.HealthStatus{
			Status:       "ok",
			ServerStatus: model.ServerStatusReady,
			CurrentLoad:  0,
			MaxCapacity:  10,
		},
		createResult: model.JobResult{
			JobID:   "job-test-1",
			Status:  model.JobStatusProcessing,
			Message: "Research started. Please check job status to monitor progress.",
		},
		jobs: make(map[string]model.JobResult),
	}
}

// serve starts an httptest server speaking the backend contract.
func (b *fakeBackend) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.URL.Path == "/health":
			if b.healthCode != 0 {
				w.WriteHeader(b.healthCode)
				return
			}
			json.NewEncoder(w).Encode(b.health)

		case r.URL.Path == "/generate-report" && r.Method == http.MethodPost:
			b.createCalled++
			b.lastAPIKey = r.Header.Get("X-API-Key")
			var req model.ReportRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			b.lastTopic = req.Topic
			if b.createCode != 0 {
				w.WriteHeader(b.createCode)
				json.NewEncoder(w).Encode(map[string]string{"detail": b.createDetail})
				return
			}
			json.NewEncoder(w).Encode(b.createResult)

		case strings.HasPrefix(r.URL.Path, "/job-status/"):
			jobID := strings.TrimPrefix(r.URL.Path, "/job-status/")
			job, ok := b.jobs[jobID]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Job with ID " + jobID + " not found"})
				return
			}
			json.NewEncoder(w).Encode(job)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupApp builds a gateway Fiber app identical to main.go, pointed at the
// given backend URL, with auth and rate limiting off.
func setupApp(t *testing.T, backendURL, apiKey string) *fiber.App {
	t.Helper()

	researchClient := client.NewResearchClient(&config.BackendConfig{
		BaseURL: backendURL,
		APIKey:  apiKey,
		Timeout: 5,
	})
	reportService := service.NewReportService(researchClient)
	validate := validator.New()
	reportHandler := handler.NewReportHandler(reportService, validate)

	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend":   researchClient.IsConfigured(),
				"ratelimit": false,
				"auth":      false,
			},
		})
	})
	app.Post("/generate-report", reportHandler.Generate)
	app.Get("/generate-report", reportHandler.Status)

	return app
}

// setupAuthApp builds a gateway app with bearer auth enabled.
func setupAuthApp(t *testing.T, backendURL, jwtSecret string) (*fiber.App, *middleware.AuthMiddleware) {
	t.Helper()

	researchClient := client.NewResearchClient(&config.BackendConfig{
		BaseURL: backendURL,
		Timeout: 5,
	})
	reportService := service.NewReportService(researchClient)
	reportHandler := handler.NewReportHandler(reportService, validator.New())
	authMiddleware := middleware.NewAuthMiddleware(jwtSecret)

	app := fiber.New()
	report := app.Group("/", authMiddleware.Authenticate())
	report.Post("/generate-report", reportHandler.Generate)
	report.Get("/generate-report", reportHandler.Status)

	return app, authMiddleware
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
