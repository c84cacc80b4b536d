package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/mailprobe/internal/auth"
	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/handler"
	middlewarepkg "github.com/octobees/mailprobe/internal/middleware"
)

const (
	serviceName    = "mailprobe"
	serviceVersion = "0.3.0"

	pathEnrich = "/api/enrich"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Verify *handler.VerifyHandler
	Admin  *handler.AdminHandler
}

// Register wires all HTTP routes for the API. A nil jwtManager leaves the
// operational routes open.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "operational", map[string]any{
			"name":        serviceName,
			"version":     serviceVersion,
			"description": "email deliverability verification and lead enrichment",
		})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/validate", handlers.Verify.Validate)
	api.POST("/enrich", handlers.Verify.Enrich, middlewarepkg.EndpointRateLimiter(pathEnrich, cfg.RateLimitEnrich))

	var guard []echo.MiddlewareFunc
	if jwtManager != nil {
		guard = append(guard, middlewarepkg.JWT(jwtManager), middlewarepkg.RequireRole(auth.RoleAdmin))
	}
	api.GET("/metrics", handlers.Admin.Metrics, guard...)
	api.GET("/cache/stats", handlers.Admin.CacheStats, guard...)
	api.POST("/cache/clear", handlers.Admin.CacheClear, guard...)
}
