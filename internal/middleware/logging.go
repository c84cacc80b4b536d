package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Logging writes one structured entry per HTTP request.
func Logging(log logrus.FieldLogger) echo.MiddlewareFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			entry := log.WithFields(logrus.Fields{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    latency.String(),
			})
			if err != nil {
				entry.WithError(err).Warn("request failed")
			} else {
				entry.Info("request handled")
			}

			return err
		}
	}
}
