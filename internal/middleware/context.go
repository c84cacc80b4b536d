package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Context keys used to store request metadata.
const (
	ContextKeySubject   = "subject"
	ContextKeyRole      = "role"
	ContextKeyRequestID = "request_id"
)

// errorBody mirrors the API error envelope so middleware rejections look like handler errors.
type errorBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func reject(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, errorBody{Status: "error", Message: message, RequestID: RequestIDFromContext(c)})
}
