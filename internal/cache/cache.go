// Package cache implements the size-bounded TTL cache used for validation and
// enrichment results.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	// accessCounter is stamped from a monotonic counter on insert and on every hit.
	accessCounter uint64
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Name        string  `json:"name"`
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	TTLSeconds  float64 `json:"ttl_seconds"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
}

// Cache is a TTL cache that evicts the least recently accessed entry when full.
// Expiry is lazy on Get; Sweep removes everything past its TTL.
type Cache[V any] struct {
	mu       sync.Mutex
	name     string
	entries  map[string]*entry[V]
	capacity int
	ttl      time.Duration
	counter  uint64
	now      func() time.Time

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a cache holding at most capacity entries for ttl each.
func New[V any](name string, capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[V]{
		name:     name,
		entries:  make(map[string]*entry[V], capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
	}
}

// Get returns the value for key if present and younger than the TTL.
// A stale entry is deleted by the read that finds it.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e, c.now()) {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return zero, false
	}

	c.counter++
	e.accessCounter = c.counter
	c.hits++
	return e.value, true
}

// Set stores value under key. Inserting a new key into a full cache first
// evicts the entry with the lowest access counter.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.insertedAt = c.now()
		e.accessCounter = c.counter
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}
	c.entries[key] = &entry[V]{value: value, insertedAt: c.now(), accessCounter: c.counter}
}

// Sweep deletes every entry past its TTL and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expirations += uint64(removed)
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:        c.name,
		Size:        len(c.entries),
		Capacity:    c.capacity,
		TTLSeconds:  c.ttl.Seconds(),
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.insertedAt) > c.ttl
}

func (c *Cache[V]) evictLocked() {
	var (
		victim string
		lowest uint64
		found  bool
	)
	for key, e := range c.entries {
		if !found || e.accessCounter < lowest {
			victim, lowest, found = key, e.accessCounter, true
		}
	}
	if found {
		delete(c.entries, victim)
		c.evictions++
	}
}
