package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/mailprobe/internal/middleware"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// APIResponse is the envelope used by every endpoint except the raw
// validate and enrich results. RequestID matches the X-Request-ID header.
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success writes data in the envelope; status 0 means 200.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	return respond(c, status, APIResponse{Status: statusSuccess, Message: message, Data: data})
}

// Error writes message in the envelope; status 0 means 500.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return respond(c, status, APIResponse{Status: statusError, Message: message})
}

func respond(c echo.Context, status int, payload APIResponse) error {
	payload.RequestID = middleware.RequestIDFromContext(c)
	return c.JSON(status, payload)
}
