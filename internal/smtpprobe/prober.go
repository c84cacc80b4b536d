// Package smtpprobe checks mailbox existence with an SMTP RCPT conversation,
// detecting catch-all domains first.
package smtpprobe

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/entity"
	"github.com/octobees/mailprobe/internal/retry"
)

const (
	confidenceVerified   = 95
	confidenceGreylisted = 70
	confidenceCatchAll   = 50
	maxReasonDetail      = 50
)

// Resolver finds the preferred MX host of a domain.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, bool)
}

// Limiter spaces out probes to the same domain.
type Limiter interface {
	Wait(ctx context.Context, domain string) error
}

// Config controls the SMTP conversation.
type Config struct {
	HeloDomain      string
	MailFrom        string
	Port            string
	CatchAllTimeout time.Duration
	ProbeTimeout    time.Duration
	// CatchAllTTL keeps definitive catch-all answers per domain; zero disables it.
	CatchAllTTL time.Duration
	// Connect governs connection attempts for the target probe.
	Connect retry.Policy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		HeloDomain:      "orca-horizon.com",
		MailFrom:        "verify@orca-horizon.com",
		Port:            "25",
		CatchAllTimeout: 5 * time.Second,
		ProbeTimeout:    10 * time.Second,
		CatchAllTTL:     time.Hour,
		Connect:         retry.Policy{Attempts: 2, Backoff: time.Second},
	}
}

// Prober runs RCPT probes. It is safe for concurrent use.
type Prober struct {
	cfg      Config
	limiter  Limiter
	resolver Resolver
	dial     DialFunc
	catchAll *catchAllCache
	log      logrus.FieldLogger
	now      func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the direct TCP dialer, e.g. with ProxyDialer.
func WithDialer(dial DialFunc) Option {
	return func(p *Prober) {
		if dial != nil {
			p.dial = dial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Prober) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides the time source of the catch-all cache.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a Prober.
func New(cfg Config, limiter Limiter, resolver Resolver, opts ...Option) *Prober {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	p := &Prober{
		cfg:      cfg,
		limiter:  limiter,
		resolver: resolver,
		dial:     DirectDialer(),
		catchAll: &catchAllCache{entries: make(map[string]catchAllEntry)},
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe resolves the MX host of addr and verifies the mailbox there. It never
// fails: problems become an unknown result with a reason.
func (p *Prober) Probe(ctx context.Context, addr entity.EmailAddress) entity.ProbeResult {
	host, _ := p.resolver.Resolve(ctx, addr.ASCIIDomain)
	return p.ProbeHost(ctx, addr, host)
}

// ProbeHost verifies addr against an already resolved MX host. An empty host
// means the domain has no MX records and nothing is dialled.
func (p *Prober) ProbeHost(ctx context.Context, addr entity.EmailAddress, host string) entity.ProbeResult {
	if host == "" {
		return entity.ProbeResult{Reachable: entity.Unreachable, Reason: "no MX records found"}
	}
	domain := addr.ASCIIDomain
	log := p.log.WithFields(logrus.Fields{"domain": domain, "mx_host": host})

	if err := p.limiter.Wait(ctx, domain); err != nil {
		return entity.ProbeResult{Reason: unavailable(err)}
	}

	catchAll := p.detectCatchAll(ctx, host, domain, log)

	code, err := p.probeTarget(ctx, host, addr.Local+"@"+domain)
	if err != nil {
		log.WithError(err).Debug("target probe failed")
	} else {
		log.WithField("smtp_code", code).Debug("target probe answered")
	}

	result := Interpret(code, err, catchAll)
	result.MXHost = host
	return result
}

// Interpret maps a RCPT reply code (or a transport error) to a probe result.
func Interpret(code int, err error, catchAll bool) entity.ProbeResult {
	if err != nil {
		if isDisconnect(err) {
			return entity.ProbeResult{CatchAll: catchAll, Reason: "server disconnected - cannot verify"}
		}
		return entity.ProbeResult{CatchAll: catchAll, Reason: unavailable(err)}
	}

	switch code {
	case 250:
		confidence := confidenceVerified
		if catchAll {
			confidence = confidenceCatchAll
		}
		return entity.ProbeResult{Reachable: entity.Reachable, CatchAll: catchAll, Confidence: confidence, SMTPCode: code}
	case 450, 451, 452:
		return entity.ProbeResult{
			Reachable:  entity.Reachable,
			CatchAll:   catchAll,
			Confidence: confidenceGreylisted,
			SMTPCode:   code,
			Reason:     "greylisted - likely valid",
		}
	case 550, 551, 553:
		return entity.ProbeResult{Reachable: entity.Unreachable, CatchAll: catchAll, SMTPCode: code, Reason: "invalid mailbox"}
	default:
		return entity.ProbeResult{CatchAll: catchAll, SMTPCode: code, Reason: fmt.Sprintf("unexpected response code %d", code)}
	}
}

// detectCatchAll asks for a random mailbox; a 250 means the server accepts anything.
func (p *Prober) detectCatchAll(ctx context.Context, host, domain string, log logrus.FieldLogger) bool {
	if v, ok := p.catchAll.get(domain, p.now()); ok {
		return v
	}

	s, err := openSession(ctx, p.dial, net.JoinHostPort(host, p.cfg.Port), p.cfg.CatchAllTimeout)
	if err != nil {
		log.WithError(err).Debug("catch-all probe connect failed")
		return false
	}
	defer s.close()

	code, err := s.rcpt(p.cfg.HeloDomain, p.cfg.MailFrom, randomLocalPart()+"@"+domain)
	if err != nil {
		log.WithError(err).Debug("catch-all probe failed")
		return false
	}

	catchAll := code == 250
	if p.cfg.CatchAllTTL > 0 {
		p.catchAll.set(domain, catchAll, p.now().Add(p.cfg.CatchAllTTL))
	}
	return catchAll
}

func (p *Prober) probeTarget(ctx context.Context, host, rcpt string) (int, error) {
	address := net.JoinHostPort(host, p.cfg.Port)

	var s *session
	err := p.cfg.Connect.Do(ctx, func(ctx context.Context) error {
		var err error
		s, err = openSession(ctx, p.dial, address, p.cfg.ProbeTimeout)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer s.close()

	return s.rcpt(p.cfg.HeloDomain, p.cfg.MailFrom, rcpt)
}

func randomLocalPart() string {
	return fmt.Sprintf("test%d", 100000+rand.IntN(900000))
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func unavailable(err error) string {
	detail := []rune(err.Error())
	if len(detail) > maxReasonDetail {
		detail = detail[:maxReasonDetail]
	}
	return "verification not available: " + string(detail)
}

type catchAllEntry struct {
	catchAll bool
	expires  time.Time
}

type catchAllCache struct {
	mu      sync.Mutex
	entries map[string]catchAllEntry
}

func (c *catchAllCache) get(domain string, now time.Time) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[domain]
	if !ok {
		return false, false
	}
	if !now.Before(e.expires) {
		delete(c.entries, domain)
		return false, false
	}
	return e.catchAll, true
}

func (c *catchAllCache) set(domain string, catchAll bool, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = catchAllEntry{catchAll: catchAll, expires: expires}
}
