package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/mailprobe/internal/cache"
	"github.com/octobees/mailprobe/internal/metrics"
)

// MetricsSource produces the aggregated request and domain counters.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// CacheManager exposes the result caches.
type CacheManager interface {
	CacheStats() []cache.Stats
	ClearExpired() int
}

// MetricsResponse is the metrics snapshot together with cache statistics.
type MetricsResponse struct {
	metrics.Snapshot
	Cache []cache.Stats `json:"cache"`
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	metrics MetricsSource
	caches  CacheManager
	system  func() metrics.SystemStats
}

// NewAdminHandler wires a new AdminHandler instance.
func NewAdminHandler(source MetricsSource, caches CacheManager) *AdminHandler {
	return &AdminHandler{metrics: source, caches: caches, system: metrics.CollectSystemStats}
}

// Metrics returns the current snapshot with host and cache statistics.
func (h *AdminHandler) Metrics(c echo.Context) error {
	snapshot := h.metrics.Snapshot()
	system := h.system()
	snapshot.System = &system
	return c.JSON(http.StatusOK, MetricsResponse{Snapshot: snapshot, Cache: h.caches.CacheStats()})
}

// CacheStats reports size and hit ratios of every result cache.
func (h *AdminHandler) CacheStats(c echo.Context) error {
	return Success(c, http.StatusOK, "ok", h.caches.CacheStats())
}

// CacheClear removes expired entries; fresh entries are kept.
func (h *AdminHandler) CacheClear(c echo.Context) error {
	removed := h.caches.ClearExpired()
	return Success(c, http.StatusOK, "expired entries cleared", map[string]int{"removed": removed})
}
