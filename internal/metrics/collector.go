// Package metrics aggregates request and verification counters in memory and
// periodically persists snapshots of them.
package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultBufferSize = 1000
	hourlyRetention   = 48
	dailyRetention    = 30
	hourKeyLayout     = "2006-01-02T15"
	dayKeyLayout      = "2006-01-02"
)

type endpointStats struct {
	count     int64
	totalTime time.Duration
	success   int64
	errors    int64
}

// Collector is safe for concurrent use. Percentiles are computed at read time
// from a fixed-size ring of the most recent request durations.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	now     func() time.Time

	totalRequests int64
	latencies     []time.Duration
	next          int
	filled        bool

	statusCodes map[int]int64
	endpoints   map[string]*endpointStats
	hourly      map[string]int64
	daily       map[string]int64

	validations  ValidationCounters
	enrichments  int64
	enrichSource map[string]int64
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector keeps the last bufferSize request durations for percentiles.
func NewCollector(bufferSize int, opts ...Option) *Collector {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	c := &Collector{
		now:          time.Now,
		latencies:    make([]time.Duration, bufferSize),
		statusCodes:  make(map[int]int64),
		endpoints:    make(map[string]*endpointStats),
		hourly:       make(map[string]int64),
		daily:        make(map[string]int64),
		enrichSource: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.started = c.now()
	return c
}

// RecordRequest counts one served request.
func (c *Collector) RecordRequest(endpoint, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	c.totalRequests++

	c.latencies[c.next] = duration
	c.next = (c.next + 1) % len(c.latencies)
	if c.next == 0 {
		c.filled = true
	}

	c.statusCodes[status]++

	key := method + " " + endpoint
	ep, ok := c.endpoints[key]
	if !ok {
		ep = &endpointStats{}
		c.endpoints[key] = ep
	}
	ep.count++
	ep.totalTime += duration
	if status >= 200 && status < 300 {
		ep.success++
	} else {
		ep.errors++
	}

	c.hourly[now.Format(hourKeyLayout)]++
	c.daily[now.Format(dayKeyLayout)]++
	c.pruneLocked(now)
}

// RecordValidation counts one validation outcome.
func (c *Collector) RecordValidation(valid, disposable, smtpVerified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.validations.Total++
	if valid {
		c.validations.Valid++
	} else {
		c.validations.Invalid++
	}
	if disposable {
		c.validations.Disposable++
	}
	if smtpVerified {
		c.validations.SMTPVerified++
	}
}

// RecordEnrichment counts one enrichment by its data source.
func (c *Collector) RecordEnrichment(dataSource string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enrichments++
	c.enrichSource[dataSource]++
}

// Snapshot returns an aggregated view of everything recorded so far.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	now := c.now()
	uptime := now.Sub(c.started)

	n := c.next
	if c.filled {
		n = len(c.latencies)
	}
	samples := make([]time.Duration, n)
	copy(samples, c.latencies[:n])

	snap := Snapshot{
		GeneratedAt:   now.UTC(),
		UptimeSeconds: uptime.Seconds(),
		TotalRequests: c.totalRequests,
		StatusCodes:   make(map[string]int64, len(c.statusCodes)),
		Endpoints:     make(map[string]EndpointSnapshot, len(c.endpoints)),
		Hourly:        copyCounts(c.hourly),
		Daily:         copyCounts(c.daily),
		Validations:   c.validations,
		Enrichments: EnrichmentCounters{
			Total:    c.enrichments,
			BySource: copyCounts(c.enrichSource),
		},
	}
	for code, count := range c.statusCodes {
		snap.StatusCodes[strconv.Itoa(code)] = count
	}
	for key, ep := range c.endpoints {
		es := EndpointSnapshot{
			Count:     ep.count,
			TotalTime: ep.totalTime.Seconds(),
			Success:   ep.success,
			Errors:    ep.errors,
		}
		if ep.count > 0 {
			es.AvgLatencyMs = milliseconds(ep.totalTime) / float64(ep.count)
		}
		snap.Endpoints[key] = es
	}
	c.mu.Unlock()

	if uptime > 0 {
		snap.RequestsPerSecond = float64(snap.TotalRequests) / uptime.Seconds()
	}
	snap.Latency = summarize(samples)
	return snap
}

func (c *Collector) pruneLocked(now time.Time) {
	if len(c.hourly) > hourlyRetention {
		cutoff := now.Add(-hourlyRetention * time.Hour).Format(hourKeyLayout)
		for key := range c.hourly {
			if key <= cutoff {
				delete(c.hourly, key)
			}
		}
	}
	if len(c.daily) > dailyRetention {
		cutoff := now.AddDate(0, 0, -dailyRetention).Format(dayKeyLayout)
		for key := range c.daily {
			if key <= cutoff {
				delete(c.daily, key)
			}
		}
	}
}

func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return LatencySummary{
		Samples: len(samples),
		AvgMs:   milliseconds(total) / float64(len(samples)),
		P50Ms:   percentile(samples, 0.50),
		P95Ms:   percentile(samples, 0.95),
		P99Ms:   percentile(samples, 0.99),
		MaxMs:   milliseconds(samples[len(samples)-1]),
	}
}

// percentile interpolates linearly between the closest ranks of sorted samples,
// so the 0.5 percentile is exactly the median.
func percentile(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 1 {
		return milliseconds(sorted[0])
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return milliseconds(sorted[lo])
	}
	frac := rank - float64(lo)
	return milliseconds(sorted[lo]) + frac*(milliseconds(sorted[hi])-milliseconds(sorted[lo]))
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
