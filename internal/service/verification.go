package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/cache"
	"github.com/octobees/mailprobe/internal/enrich"
	"github.com/octobees/mailprobe/internal/entity"
	"github.com/octobees/mailprobe/internal/service/scoring"
)

const (
	validateKeyPrefix = "validate:"
	enrichKeyPrefix   = "enrich:"

	defaultCacheEntries = 1000
	defaultValidateTTL  = 30 * time.Minute
	defaultEnrichTTL    = 60 * time.Minute

	confidenceVerified    = 0.95
	confidenceWebScraped  = 0.7
	confidenceCatchAllCap = 0.5
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	// ErrEmailRequired is returned when the address is blank.
	ErrEmailRequired = errors.New("email is required")
	// ErrInvalidEmail is returned when the address cannot be split into local part and domain.
	ErrInvalidEmail = errors.New("email must contain a local part and a domain")
)

// DomainLists classifies mail domains.
type DomainLists interface {
	IsDisposable(domain string) bool
	IsFreeProvider(domain string) bool
}

// MXResolver reports the preferred MX host of a domain.
type MXResolver interface {
	Resolve(ctx context.Context, domain string) (string, bool)
}

// Prober runs the SMTP mailbox check against a resolved MX host. An empty host
// means the domain has none.
type Prober interface {
	ProbeHost(ctx context.Context, addr entity.EmailAddress, host string) entity.ProbeResult
}

// WebsiteEnricher crawls a company domain.
type WebsiteEnricher interface {
	Enrich(ctx context.Context, domain string) *entity.CompanyProfile
}

// MetricsRecorder receives domain counters.
type MetricsRecorder interface {
	RecordValidation(valid, disposable, smtpVerified bool)
	RecordEnrichment(dataSource string)
}

// VerificationService validates addresses and enriches them with identity and
// company details. Results are cached per operation.
type VerificationService struct {
	lists         DomainLists
	resolver      MXResolver
	prober        Prober
	enricher      WebsiteEnricher
	validateCache *cache.Cache[entity.ValidationResult]
	enrichCache   *cache.Cache[entity.EnrichmentResult]
	metrics       MetricsRecorder
	now           func() time.Time
	log           logrus.FieldLogger
}

// VerificationOption configures optional dependencies.
type VerificationOption func(*VerificationService)

// WithValidateCache overrides the default validation cache.
func WithValidateCache(c *cache.Cache[entity.ValidationResult]) VerificationOption {
	return func(s *VerificationService) {
		if c != nil {
			s.validateCache = c
		}
	}
}

// WithEnrichCache overrides the default enrichment cache.
func WithEnrichCache(c *cache.Cache[entity.EnrichmentResult]) VerificationOption {
	return func(s *VerificationService) {
		if c != nil {
			s.enrichCache = c
		}
	}
}

// WithMetrics records validation and enrichment counters into m.
func WithMetrics(m MetricsRecorder) VerificationOption {
	return func(s *VerificationService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) VerificationOption {
	return func(s *VerificationService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source used for enriched_at.
func WithClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewVerificationService wires the validation pipeline.
func NewVerificationService(lists DomainLists, resolver MXResolver, prober Prober, enricher WebsiteEnricher, opts ...VerificationOption) *VerificationService {
	s := &VerificationService{
		lists:         lists,
		resolver:      resolver,
		prober:        prober,
		enricher:      enricher,
		validateCache: cache.New[entity.ValidationResult]("validate", defaultCacheEntries, defaultValidateTTL),
		enrichCache:   cache.New[entity.EnrichmentResult]("enrich", defaultCacheEntries, defaultEnrichTTL),
		metrics:       noopMetrics{},
		now:           time.Now,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks syntax, disposable domain, MX records and SMTP reachability.
// A failing syntax check lowers the score but does not stop the other checks.
func (s *VerificationService) Validate(ctx context.Context, email string) (entity.ValidationResult, error) {
	addr, err := parseAddress(email)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	result := s.validate(ctx, addr)
	s.metrics.RecordValidation(result.Valid, result.Disposable, result.Reachable.Known())
	return result, nil
}

// Enrich validates email, then derives the owner's identity from the local part
// and, for company domains, crawls the domain website.
func (s *VerificationService) Enrich(ctx context.Context, email string) (entity.EnrichmentResult, error) {
	addr, err := parseAddress(email)
	if err != nil {
		return entity.EnrichmentResult{}, err
	}

	key := enrichKeyPrefix + addr.Raw
	if cached, ok := s.enrichCache.Get(key); ok {
		s.metrics.RecordEnrichment(string(cached.DataSource))
		return cached, nil
	}

	result := entity.EnrichmentResult{
		ValidationResult: s.validate(ctx, addr),
		EnrichedAt:       s.now().UTC(),
	}
	log := s.log.WithFields(logrus.Fields{"email": addr.Raw, "domain": addr.Domain})

	if result.Disposable || !result.SyntaxValid {
		result.DataSource = entity.DataSourceSkipped
		result.Confidence = 0
		s.storeEnrichment(key, result, log)
		return result, nil
	}

	id := enrich.DeriveIdentity(addr.Local)
	result.FirstName = entity.StringPtr(id.FirstName)
	result.LastName = entity.StringPtr(id.LastName)
	result.FullName = entity.StringPtr(id.FullName)
	result.Confidence = id.Confidence
	result.DataSource = entity.DataSourcePatternMatch

	if !s.lists.IsFreeProvider(addr.Domain) {
		s.applyCompany(ctx, &result, addr, id)
	}

	switch result.DataSource {
	case entity.DataSourceScrapedVerified:
		result.Confidence = confidenceVerified
	case entity.DataSourceWebScraped:
		result.Confidence = confidenceWebScraped
	}
	if result.CatchAll && result.Confidence > confidenceCatchAllCap {
		result.Confidence = confidenceCatchAllCap
	}

	s.storeEnrichment(key, result, log)
	return result, nil
}

// CacheStats reports both result caches.
func (s *VerificationService) CacheStats() []cache.Stats {
	return []cache.Stats{s.validateCache.Stats(), s.enrichCache.Stats()}
}

// ClearExpired drops expired entries from both caches and returns how many went.
func (s *VerificationService) ClearExpired() int {
	return s.validateCache.Sweep() + s.enrichCache.Sweep()
}

func (s *VerificationService) validate(ctx context.Context, addr entity.EmailAddress) entity.ValidationResult {
	key := validateKeyPrefix + addr.Raw
	if cached, ok := s.validateCache.Get(key); ok {
		return cached
	}

	host, hasMX := s.resolver.Resolve(ctx, addr.ASCIIDomain)
	if !hasMX {
		host = ""
	}
	probe := s.prober.ProbeHost(ctx, addr, host)

	result := entity.ValidationResult{
		Email:       addr.Raw,
		Domain:      addr.Domain,
		SyntaxValid: emailPattern.MatchString(addr.Raw),
		Disposable:  s.lists.IsDisposable(addr.Domain),
		HasMX:       hasMX,
		Reachable:   probe.Reachable,
		CatchAll:    probe.CatchAll,
		Details:     probe,
	}
	result.Valid = result.SyntaxValid && result.HasMX
	result.Score = scoring.ComputeScore(scoring.EmailSignals{
		SyntaxValid: result.SyntaxValid,
		Disposable:  result.Disposable,
		HasMX:       result.HasMX,
		Reachable:   result.Reachable,
		CatchAll:    result.CatchAll,
	}).Total

	s.validateCache.Set(key, result)
	s.log.WithFields(logrus.Fields{
		"email":     addr.Raw,
		"score":     result.Score,
		"reachable": result.Reachable.String(),
		"catch_all": result.CatchAll,
	}).Info("email validated")
	return result
}

func (s *VerificationService) applyCompany(ctx context.Context, result *entity.EnrichmentResult, addr entity.EmailAddress, id enrich.Identity) {
	company := s.enricher.Enrich(ctx, addr.ASCIIDomain)
	if company == nil {
		company = &entity.CompanyProfile{Website: "https://" + addr.ASCIIDomain}
	}

	match, matched := enrich.MatchMember(addr.Raw, id.FirstName, company.TeamMembers)
	switch {
	case matched && match.Verified:
		result.FirstName = entity.StringPtr(match.FirstName)
		result.LastName = entity.StringPtr(match.LastName)
		result.FullName = entity.StringPtr(match.FullName)
		result.JobTitle = entity.StringPtr(match.JobTitle)
		result.LinkedInURL = entity.StringPtr(match.LinkedIn)
		result.DataSource = entity.DataSourceScrapedVerified
	case matched:
		result.JobTitle = entity.StringPtr(match.JobTitle)
		result.LinkedInURL = entity.StringPtr(match.LinkedIn)
		result.Confidence = match.Confidence
	}

	if !match.Verified && company.Name != "" {
		result.DataSource = entity.DataSourceWebScraped
	}
	if company.Name == "" {
		company.Name = enrich.CompanyNameFromDomain(addr.Domain)
	}
	result.Company = company
}

func (s *VerificationService) storeEnrichment(key string, result entity.EnrichmentResult, log logrus.FieldLogger) {
	s.enrichCache.Set(key, result)
	s.metrics.RecordEnrichment(string(result.DataSource))
	log.WithFields(logrus.Fields{
		"data_source": result.DataSource,
		"confidence":  result.Confidence,
	}).Info("email enriched")
}

func parseAddress(raw string) (entity.EmailAddress, error) {
	if strings.TrimSpace(raw) == "" {
		return entity.EmailAddress{}, ErrEmailRequired
	}
	addr := entity.ParseEmailAddress(raw)
	if addr.Local == "" || addr.Domain == "" {
		return entity.EmailAddress{}, errors.Wrapf(ErrInvalidEmail, "parse %q", addr.Raw)
	}
	return addr, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordValidation(bool, bool, bool) {}
func (noopMetrics) RecordEnrichment(string)           {}
