package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// ValidationCounters tallies validation outcomes.
type ValidationCounters struct {
	Total        int64 `json:"total"`
	Valid        int64 `json:"valid"`
	Invalid      int64 `json:"invalid"`
	Disposable   int64 `json:"disposable"`
	SMTPVerified int64 `json:"smtp_verified"`
}

// EnrichmentCounters tallies enrichments per data source.
type EnrichmentCounters struct {
	Total    int64            `json:"total"`
	BySource map[string]int64 `json:"by_source"`
}

// EndpointSnapshot aggregates one "METHOD path" pair.
type EndpointSnapshot struct {
	Count        int64   `json:"count"`
	TotalTime    float64 `json:"total_time_seconds"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	Success      int64   `json:"success"`
	Errors       int64   `json:"errors"`
}

// LatencySummary is computed from the recent-duration ring buffer.
type LatencySummary struct {
	Samples int     `json:"samples"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// SystemStats describes the host the service runs on.
type SystemStats struct {
	Goroutines        int     `json:"goroutines"`
	CPUCount          int     `json:"cpu_count"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	HeapAllocBytes    uint64  `json:"heap_alloc_bytes"`
}

// Snapshot is the read-time aggregation served by the metrics endpoint and persisted.
type Snapshot struct {
	GeneratedAt       time.Time                   `json:"generated_at"`
	UptimeSeconds     float64                     `json:"uptime_seconds"`
	TotalRequests     int64                       `json:"total_requests"`
	RequestsPerSecond float64                     `json:"requests_per_second"`
	Latency           LatencySummary              `json:"latency"`
	StatusCodes       map[string]int64            `json:"status_codes"`
	Endpoints         map[string]EndpointSnapshot `json:"endpoints"`
	Hourly            map[string]int64            `json:"hourly"`
	Daily             map[string]int64            `json:"daily"`
	Validations       ValidationCounters          `json:"validations"`
	Enrichments       EnrichmentCounters          `json:"enrichments"`
	System            *SystemStats                `json:"system,omitempty"`
}

// CollectSystemStats samples the host. Fields that cannot be read stay zero.
func CollectSystemStats() SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := SystemStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
	}
	if n, err := cpu.Counts(true); err == nil {
		stats.CPUCount = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryTotalBytes = vm.Total
		stats.MemoryUsedPercent = vm.UsedPercent
	}
	return stats
}
