package poller

import (
	"errors"
	"fmt"

	"github.com/deeres/gateway/internal/client"
	"github.com/deeres/gateway/internal/service"
	"github.com/deeres/gateway/pkg/response"
)

// FallbackFailureMessage is shown when a failure carries no detail at all.
const FallbackFailureMessage = "Failed to generate report. Please try again."

// StatusError is a non-2xx response from the gateway surface, carrying
// the server status tag when the gateway set one.
type StatusError struct {
	StatusCode   int
	Detail       string
	ServerStatus string
	CurrentLoad  *int
	MaxCapacity  *int
}

func (e *StatusError) Error() string {
	if e.ServerStatus != "" {
		return fmt.Sprintf("gateway error (status %d, %s): %s", e.StatusCode, e.ServerStatus, e.Detail)
	}
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Detail)
}

// FailureMessage turns a submit or poll error into the message shown to
// the user. Errors tagged with a server status render as one of three
// fixed templates; everything else shows the raw detail or a fallback.
func FailureMessage(err error) string {
	var overloaded *service.OverloadedError
	if errors.As(err, &overloaded) {
		return busyMessage(overloaded.CurrentLoad, overloaded.MaxCapacity)
	}
	if errors.Is(err, service.ErrWarming) {
		return warmingMessage
	}
	if errors.Is(err, service.ErrBackendUnavailable) {
		return unavailableMessage
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.ServerStatus {
		case response.ServerStatusBusy:
			var load, capacity int
			if statusErr.CurrentLoad != nil {
				load = *statusErr.CurrentLoad
			}
			if statusErr.MaxCapacity != nil {
				capacity = *statusErr.MaxCapacity
			}
			return busyMessage(load, capacity)
		case response.ServerStatusWarming:
			return warmingMessage
		case response.ServerStatusUnavailable:
			return unavailableMessage
		}
		if statusErr.Detail != "" {
			return statusErr.Detail
		}
		return FallbackFailureMessage
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return FallbackFailureMessage
	}

	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return FallbackFailureMessage
}

const (
	warmingMessage     = "The research server is starting up. Please retry in 30 seconds."
	unavailableMessage = "The research server is unavailable right now. Please try again later."
)

func busyMessage(load, capacity int) string {
	return fmt.Sprintf("The research server is currently at capacity (%d/%d active jobs). Please try again in a few minutes.", load, capacity)
}

// isFatalPollError reports whether a status-fetch failure ends the job.
// Explicit non-success responses are terminal; transient transport errors
// are not.
func isFatalPollError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var apiErr *client.APIError
	return errors.As(err, &apiErr)
}
