package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxRequestIDLength = 128

// RequestID tags every request with an identifier. A caller supplied
// X-Request-ID is kept when it is short printable ASCII; anything else is
// replaced with a fresh UUID so it cannot pollute logs or error bodies.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if !wellFormedRequestID(rid) {
				rid = uuid.NewString()
			}

			c.Set(ContextKeyRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			return next(c)
		}
	}
}

// RequestIDFromContext returns the id assigned by RequestID, or "" outside it.
func RequestIDFromContext(c echo.Context) string {
	rid, _ := c.Get(ContextKeyRequestID).(string)
	return rid
}

func wellFormedRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] <= ' ' || rid[i] > '~' {
			return false
		}
	}
	return true
}
