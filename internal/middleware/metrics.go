package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// RequestRecorder receives one sample per handled request.
type RequestRecorder interface {
	RecordRequest(endpoint, method string, status int, duration time.Duration)
}

// Metrics records latency and status per route. Requests that matched no
// route are grouped under their raw path.
func Metrics(recorder RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = c.Request().URL.Path
			}
			recorder.RecordRequest(endpoint, c.Request().Method, c.Response().Status, time.Since(start))
			return err
		}
	}
}
