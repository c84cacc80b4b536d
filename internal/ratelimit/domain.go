// Package ratelimit spaces out SMTP probes sent to the same domain.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultMinInterval = 2 * time.Second
	minJitter          = 500 * time.Millisecond
	maxJitter          = 1500 * time.Millisecond
	pruneThreshold     = 4096
)

// DomainLimiter enforces a minimum spacing between probes to the same domain.
// Callers for different domains never wait on each other.
type DomainLimiter struct {
	mu          sync.Mutex
	last        map[string]time.Time
	minInterval time.Duration

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// Option configures a DomainLimiter.
type Option func(*DomainLimiter)

// WithClock overrides the time source and the sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *DomainLimiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithJitter overrides the random extra delay added when a caller has to wait.
func WithJitter(jitter func() time.Duration) Option {
	return func(l *DomainLimiter) {
		if jitter != nil {
			l.jitter = jitter
		}
	}
}

// NewDomainLimiter builds a limiter. A non-positive interval uses DefaultMinInterval.
func NewDomainLimiter(minInterval time.Duration, opts ...Option) *DomainLimiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	l := &DomainLimiter{
		last:        make(map[string]time.Time),
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepContext,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the caller may probe domain. The slot is reserved under the
// lock and the sleep happens outside it, so concurrent callers for one domain
// are spaced at least minInterval apart.
func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	l.mu.Lock()
	now := l.now()
	slot := now
	if last, ok := l.last[domain]; ok && now.Sub(last) < l.minInterval {
		slot = last.Add(l.minInterval + l.jitter())
	}
	l.last[domain] = slot
	if len(l.last) > pruneThreshold {
		l.pruneLocked(now)
	}
	l.mu.Unlock()

	if delay := slot.Sub(now); delay > 0 {
		return l.sleep(ctx, delay)
	}
	return nil
}

func (l *DomainLimiter) pruneLocked(now time.Time) {
	horizon := now.Add(-(l.minInterval + maxJitter))
	for domain, last := range l.last {
		if last.Before(horizon) {
			delete(l.last, domain)
		}
	}
}

func randomJitter() time.Duration {
	return minJitter + rand.N(maxJitter-minJitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
