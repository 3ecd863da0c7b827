package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"filevault/internal/errdefs"
	"filevault/internal/http/middleware"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

var kindStatus = map[errdefs.Kind]int{
	errdefs.KindUnauthorized:         fiber.StatusForbidden,
	errdefs.KindNotFound:             fiber.StatusNotFound,
	errdefs.KindInvalidInput:         fiber.StatusBadRequest,
	errdefs.KindConflict:             fiber.StatusConflict,
	errdefs.KindPreconditionFailed:   fiber.StatusPreconditionFailed,
	errdefs.KindIntegrity:            fiber.StatusInternalServerError,
	errdefs.KindInactive:             fiber.StatusGone,
	errdefs.KindExpired:              fiber.StatusGone,
	errdefs.KindDownloadLimitReached: fiber.StatusGone,
	errdefs.KindPasswordRequired:     fiber.StatusUnauthorized,
	errdefs.KindInvalidPassword:      fiber.StatusUnauthorized,
}

// writeServiceError maps a service failure onto its status and code. Failures without a
// kind are internal and their details stay in the logs.
func writeServiceError(c *fiber.Ctx, err error) error {
	kind := errdefs.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	if kind == errdefs.KindIntegrity {
		return writeError(c, status, "INTEGRITY_ERROR", "internal integrity error")
	}
	return writeError(c, status, strings.ToUpper(string(kind)), errdefs.MessageOf(err))
}

// Unauthenticated answers requests that carry no usable identity.
func Unauthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return unauthenticated(c)
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
