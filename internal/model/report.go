package model

// ReportRequest is the payload a caller sends to start a report job.
// It is forwarded to the research backend verbatim.
type ReportRequest struct {
	Topic           string                 `json:"topic" validate:"required"`
	ConfigOverrides map[string]interface{} `json:"config_overrides,omitempty"`
}

// ReportResult is a finished report. Content is opaque Markdown and is
// never reinterpreted by the gateway.
type ReportResult struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult mirrors the research backend's job descriptor. The gateway
// passes it through unchanged; only the backend ever mutates a job.
type JobResult struct {
	JobID           string        `json:"job_id"`
	Status          JobStatus     `json:"status"`
	Progress        float64       `json:"progress"`
	Message         string        `json:"message,omitempty"`
	Report          *ReportResult `json:"report,omitempty"`
	PositionInQueue *int          `json:"position_in_queue,omitempty"`
	EstimatedTime   *int          `json:"estimated_time,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// HealthStatus is the backend's health payload, fetched fresh per check.
type HealthStatus struct {
	Status       string `json:"status"`
	ServerStatus string `json:"server_status,omitempty"`
	CurrentLoad  int    `json:"current_load"`
	MaxCapacity  int    `json:"max_capacity"`
	IsWarmingUp  bool   `json:"is_warming_up"`
}

// Server status values reported by the backend health endpoint.
const (
	ServerStatusBusy  = "busy"
	ServerStatusReady = "ready"
)
