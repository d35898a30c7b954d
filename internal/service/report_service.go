package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/deeres/gateway/internal/client"
	"github.com/deeres/gateway/internal/model"
)

// ErrWarming means the backend reported it is still warming up; callers
// should retry after a fixed delay.
var ErrWarming = errors.New("research backend is warming up")

// ErrBackendUnavailable means the backend health check could not be
// completed at all.
var ErrBackendUnavailable = errors.New("research backend is unavailable")

// OverloadedError is the admission-control rejection: the backend reported
// it is at capacity, so the job was never forwarded.
type OverloadedError struct {
	CurrentLoad int
	MaxCapacity int
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("research backend is busy (%d/%d jobs)", e.CurrentLoad, e.MaxCapacity)
}

// ReportService forwards report jobs to the research backend. It holds no
// state of its own; every call is an independent translation.
type ReportService struct {
	backend client.ResearchBackend
}

func NewReportService(backend client.ResearchBackend) *ReportService {
	return &ReportService{backend: backend}
}

// SubmitReport admits and forwards a new report job. The backend health
// check runs first: an unreachable backend, a warming backend, or a busy
// backend each reject the job before it is forwarded.
func (s *ReportService) SubmitReport(ctx context.Context, req *model.ReportRequest) (*model.JobResult, error) {
	health, err := s.backend.Health(ctx)
	if err != nil {
		log.Printf("[Report] health check failed: %v", err)
		return nil, ErrBackendUnavailable
	}

	// Warming wins over any server_status value
	if health.IsWarmingUp {
		return nil, ErrWarming
	}

	if health.ServerStatus == model.ServerStatusBusy {
		return nil, &OverloadedError{
			CurrentLoad: health.CurrentLoad,
			MaxCapacity: health.MaxCapacity,
		}
	}

	return s.backend.CreateJob(ctx, req)
}

// JobStatus forwards a job-status check and returns the backend's payload
// unchanged.
func (s *ReportService) JobStatus(ctx context.Context, jobID string) (*model.JobResult, error) {
	return s.backend.JobStatus(ctx, jobID)
}
