// Package mx resolves and caches the preferred mail exchanger of a domain.
package mx

import (
	"context"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/octobees/mailprobe/internal/retry"
)

const (
	DefaultCacheSize = 500
	defaultTimeout   = 5 * time.Second
)

// ErrNoMX is returned by Lookup when the domain publishes no usable MX record.
var ErrNoMX = errors.New("no MX records found")

// Resolver returns the preferred MX host per domain. Successful answers are
// kept in a bounded LRU; failures are never cached so they are retried on the
// next call.
type Resolver struct {
	lookuper Lookuper
	cache    *lru.Cache[string, string]
	group    singleflight.Group
	policy   retry.Policy
	timeout  time.Duration
	log      logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookuper replaces the system resolver.
func WithLookuper(l Lookuper) Option {
	return func(r *Resolver) {
		if l != nil {
			r.lookuper = l
		}
	}
}

// WithRetryPolicy overrides the per-domain retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithTimeout bounds each lookup attempt.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver builds a resolver whose cache holds at most size domains.
func NewResolver(size int, opts ...Option) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, errors.Wrap(err, "create mx cache")
	}
	r := &Resolver{
		lookuper: &net.Resolver{},
		cache:    cache,
		policy:   retry.Policy{Attempts: 2, Backoff: 250 * time.Millisecond},
		timeout:  defaultTimeout,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the preferred MX host of domain and whether one was found.
func (r *Resolver) Resolve(ctx context.Context, domain string) (string, bool) {
	host, err := r.Lookup(ctx, domain)
	if err != nil {
		r.log.WithField("domain", domain).WithError(err).Debug("mx lookup failed")
		return "", false
	}
	return host, true
}

// Lookup is Resolve with the failure reason.
func (r *Resolver) Lookup(ctx context.Context, domain string) (string, error) {
	if domain == "" {
		return "", ErrNoMX
	}
	if host, ok := r.cache.Get(domain); ok {
		return host, nil
	}

	v, err, _ := r.group.Do(domain, func() (any, error) {
		host, err := r.lookup(ctx, domain)
		if err != nil {
			return "", err
		}
		r.cache.Add(domain, host)
		return host, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len reports how many domains are cached.
func (r *Resolver) Len() int {
	return r.cache.Len()
}

func (r *Resolver) lookup(ctx context.Context, domain string) (string, error) {
	var host string
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		records, err := r.lookuper.LookupMX(attemptCtx, domain)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return retry.Permanent(ErrNoMX)
			}
			return err
		}
		host = PreferredHost(records)
		if host == "" {
			return retry.Permanent(ErrNoMX)
		}
		return nil
	})
	return host, err
}
