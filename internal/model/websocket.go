package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the base message envelope
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries a job progress update
type WSProgressMessage struct {
	Type       string    `json:"type"`
	JobID      string    `json:"jobId"`
	Status     JobStatus `json:"status"`
	Progress   float64   `json:"progress"`
	Stage      int       `json:"stage"`
	StageLabel string    `json:"stageLabel"`
}

// WSCompleteMessage carries the finished report
type WSCompleteMessage struct {
	Type   string        `json:"type"`
	JobID  string        `json:"jobId"`
	Report *ReportResult `json:"report,omitempty"`
}

// WSErrorMessage carries a job failure
type WSErrorMessage struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	Detail string `json:"detail"`
}
