package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/deeres/gateway/internal/client"
	"github.com/deeres/gateway/internal/model"
	"github.com/deeres/gateway/internal/service"
	"github.com/deeres/gateway/pkg/response"
)

type ReportHandler struct {
	service   *service.ReportService
	validator *validator.Validate
}

func NewReportHandler(svc *service.ReportService, v *validator.Validate) *ReportHandler {
	return &ReportHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /generate-report.
// It validates the topic, runs the admission-control gate against the
// backend health endpoint, then forwards the job request verbatim.
func (h *ReportHandler) Generate(c *fiber.Ctx) error {
	var req model.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Topic is required")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return response.ValidationError(c, "Topic is required")
	}

	result, err := h.service.SubmitReport(c.Context(), &req)
	if err != nil {
		return writeSubmitError(c, err)
	}

	return response.OK(c, result)
}

// Status handles GET /generate-report?jobId=<id>.
// Backend responses, success or failure, pass through unchanged.
func (h *ReportHandler) Status(c *fiber.Ctx) error {
	jobID := c.Query("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required")
	}

	result, err := h.service.JobStatus(c.Context(), jobID)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return response.Error(c, apiErr.StatusCode, apiErr.Detail)
		}
		return response.Unavailable(c, "Failed to reach the research backend")
	}

	return response.OK(c, result)
}

// writeSubmitError maps service errors onto the client error contract.
func writeSubmitError(c *fiber.Ctx, err error) error {
	var overloaded *service.OverloadedError
	if errors.As(err, &overloaded) {
		detail := "The research server is at capacity (" +
			strconv.Itoa(overloaded.CurrentLoad) + "/" + strconv.Itoa(overloaded.MaxCapacity) +
			" jobs). Please try again later."
		return response.Busy(c, detail, overloaded.CurrentLoad, overloaded.MaxCapacity)
	}

	if errors.Is(err, service.ErrWarming) {
		return response.Warming(c, "The research server is warming up. Please retry in 30 seconds.")
	}

	if errors.Is(err, service.ErrBackendUnavailable) {
		return response.Unavailable(c, "The research server is unavailable. Please try again later.")
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return response.Error(c, apiErr.StatusCode, apiErr.Detail)
	}

	return response.Unavailable(c, "Failed to reach the research backend")
}
