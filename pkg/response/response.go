package response

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Server status tags carried on error responses so clients can tell
// capacity problems apart from generic failures.
const (
	ServerStatusBusy        = "busy"
	ServerStatusWarming     = "warming"
	ServerStatusUnavailable = "unavailable"
)

// WarmingRetrySeconds is the fixed retry hint returned while the backend
// is still warming up.
const WarmingRetrySeconds = 30

// ErrorBody is the error contract exposed to clients. Detail is passed
// through from the backend verbatim when available.
type ErrorBody struct {
	Detail       string `json:"detail"`
	ServerStatus string `json:"serverStatus,omitempty"`
	CurrentLoad  *int   `json:"currentLoad,omitempty"`
	MaxCapacity  *int   `json:"maxCapacity,omitempty"`
}

func Error(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(ErrorBody{Detail: detail})
}

func ValidationError(c *fiber.Ctx, detail string) error {
	return Error(c, fiber.StatusBadRequest, detail)
}

func Unauthorized(c *fiber.Ctx, detail string) error {
	return Error(c, fiber.StatusUnauthorized, detail)
}

func NotFound(c *fiber.Ctx, detail string) error {
	return Error(c, fiber.StatusNotFound, detail)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, "Rate limit exceeded")
}

// Busy rejects new work because the backend is at capacity. Load and
// capacity are echoed exactly as the health check reported them.
func Busy(c *fiber.Ctx, detail string, currentLoad, maxCapacity int) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(ErrorBody{
		Detail:       detail,
		ServerStatus: ServerStatusBusy,
		CurrentLoad:  &currentLoad,
		MaxCapacity:  &maxCapacity,
	})
}

// Warming tells the caller the backend is still starting up and to retry
// after a fixed delay.
func Warming(c *fiber.Ctx, detail string) error {
	c.Set("Retry-After", strconv.Itoa(WarmingRetrySeconds))
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorBody{
		Detail:       detail,
		ServerStatus: ServerStatusWarming,
	})
}

// Unavailable reports that the backend could not be reached at all.
func Unavailable(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorBody{
		Detail:       detail,
		ServerStatus: ServerStatusUnavailable,
	})
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}
