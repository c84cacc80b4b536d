package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/octobees/mailprobe/internal/entity"
)

type stubLists struct {
	disposable map[string]bool
	free       map[string]bool
}

func (s stubLists) IsDisposable(domain string) bool   { return s.disposable[domain] }
func (s stubLists) IsFreeProvider(domain string) bool { return s.free[domain] }

type stubResolver struct {
	mu    sync.Mutex
	hosts map[string]string
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, domain string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	host, ok := s.hosts[domain]
	return host, ok
}

type stubProber struct {
	mu     sync.Mutex
	result entity.ProbeResult
	calls  int
	hosts  []string
}

func (s *stubProber) ProbeHost(_ context.Context, _ entity.EmailAddress, host string) entity.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.hosts = append(s.hosts, host)
	return s.result
}

type stubEnricher struct {
	profile entity.CompanyProfile
	calls   int
}

func (s *stubEnricher) Enrich(_ context.Context, domain string) *entity.CompanyProfile {
	s.calls++
	profile := s.profile
	profile.Website = "https://" + domain
	return &profile
}

type stubMetrics struct {
	validations int
	verified    int
	sources     []string
}

func (m *stubMetrics) RecordValidation(_, _ bool, smtpVerified bool) {
	m.validations++
	if smtpVerified {
		m.verified++
	}
}

func (m *stubMetrics) RecordEnrichment(source string) {
	m.sources = append(m.sources, source)
}

type fixture struct {
	svc      *VerificationService
	resolver *stubResolver
	prober   *stubProber
	enricher *stubEnricher
	metrics  *stubMetrics
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func newFixture(probe entity.ProbeResult, profile entity.CompanyProfile) *fixture {
	f := &fixture{
		prober:   &stubProber{result: probe},
		enricher: &stubEnricher{profile: profile},
		metrics:  &stubMetrics{},
	}
	lists := stubLists{
		disposable: map[string]bool{"mailinator.com": true},
		free:       map[string]bool{"gmail.com": true},
	}
	f.resolver = &stubResolver{hosts: map[string]string{
		"acme.io":            "mx.acme.io",
		"unknown-co.example": "mx.unknown-co.example",
		"mailinator.com":     "mx.mailinator.com",
		"gmail.com":          "gmail-smtp-in.l.google.com",
	}}
	log, _ := test.NewNullLogger()
	f.svc = NewVerificationService(lists, f.resolver, f.prober, f.enricher,
		WithMetrics(f.metrics),
		WithLogger(log),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

var reachable = entity.ProbeResult{Reachable: entity.Reachable, Confidence: 95, SMTPCode: 250, MXHost: "mx.acme.io"}

func TestValidateScoresAndCaches(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{})

	first, err := f.svc.Validate(context.Background(), "  Jane.Doe@ACME.io ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Email != "jane.doe@acme.io" || first.Domain != "acme.io" {
		t.Fatalf("address not normalized: %+v", first)
	}
	if !first.Valid || !first.SyntaxValid || !first.HasMX || first.Disposable {
		t.Fatalf("unexpected flags: %+v", first)
	}
	if first.Score != 100 {
		t.Fatalf("expected score 100, got %d", first.Score)
	}

	second, err := f.svc.Validate(context.Background(), "jane.doe@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if f.prober.calls != 1 {
		t.Fatalf("expected a single probe, got %d", f.prober.calls)
	}
	if f.metrics.validations != 2 || f.metrics.verified != 2 {
		t.Fatalf("expected metrics for both served validations, got %+v", f.metrics)
	}
}

func TestValidateInvalidSyntaxStillChecksMailbox(t *testing.T) {
	f := newFixture(entity.ProbeResult{}, entity.CompanyProfile{})

	result, err := f.svc.Validate(context.Background(), "jane!doe@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SyntaxValid || result.Valid {
		t.Fatalf("expected syntax failure, got %+v", result)
	}
	if f.prober.calls != 1 {
		t.Fatalf("expected SMTP probe despite syntax failure")
	}
	if result.Score != 60 {
		t.Fatalf("expected 0+25+25+10, got %d", result.Score)
	}
	if f.metrics.verified != 0 {
		t.Fatalf("unknown reachability must not count as verified")
	}
}

func TestValidateWithoutMX(t *testing.T) {
	f := newFixture(entity.ProbeResult{Reachable: entity.Unreachable, Reason: "no MX records found"}, entity.CompanyProfile{})

	result, err := f.svc.Validate(context.Background(), "someone@nomx.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasMX || result.Valid || result.Reachable != entity.Unreachable {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Score != 50 {
		t.Fatalf("expected score 50, got %d", result.Score)
	}
	if f.resolver.calls != 1 {
		t.Fatalf("expected a single MX lookup, got %d", f.resolver.calls)
	}
	if len(f.prober.hosts) != 1 || f.prober.hosts[0] != "" {
		t.Fatalf("expected the prober to be told there is no MX host, got %q", f.prober.hosts)
	}
}

func TestValidatePassesResolvedHostToProber(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{})

	if _, err := f.svc.Validate(context.Background(), "jane.doe@acme.io"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.resolver.calls != 1 {
		t.Fatalf("expected a single MX lookup, got %d", f.resolver.calls)
	}
	if len(f.prober.hosts) != 1 || f.prober.hosts[0] != "mx.acme.io" {
		t.Fatalf("expected probe against mx.acme.io, got %q", f.prober.hosts)
	}
}

func TestValidateRejectsUnparseableInput(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{})

	if _, err := f.svc.Validate(context.Background(), "   "); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
	for _, input := range []string{"no-at-sign", "@acme.io", "jane@"} {
		if _, err := f.svc.Validate(context.Background(), input); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("expected ErrInvalidEmail for %q, got %v", input, err)
		}
	}
	if f.prober.calls != 0 {
		t.Fatalf("unparseable input must not be probed")
	}
}

func TestEnrichDisposableSkipsScraping(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{Name: "Should Not Appear"})

	result, err := f.svc.Enrich(context.Background(), "user@mailinator.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DataSource != entity.DataSourceSkipped || result.Confidence != 0 {
		t.Fatalf("expected skipped_invalid with 0 confidence, got %s %.2f", result.DataSource, result.Confidence)
	}
	if f.enricher.calls != 0 {
		t.Fatalf("disposable address must not be crawled")
	}
	if result.FirstName != nil || result.Company != nil {
		t.Fatalf("no identity expected, got %+v", result)
	}
	if !result.EnrichedAt.Equal(fixedNow) || result.EnrichedAt.Location() != time.UTC {
		t.Fatalf("enriched_at should be UTC now, got %v", result.EnrichedAt)
	}
}

func TestEnrichFallsBackToPattern(t *testing.T) {
	f := newFixture(entity.ProbeResult{}, entity.CompanyProfile{})

	result, err := f.svc.Enrich(context.Background(), "jane.doe@unknown-co.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deref(result.FirstName) != "Jane" || deref(result.LastName) != "Doe" || deref(result.FullName) != "Jane Doe" {
		t.Fatalf("unexpected identity: %q %q %q", deref(result.FirstName), deref(result.LastName), deref(result.FullName))
	}
	if result.DataSource != entity.DataSourcePatternMatch || result.Confidence != 0.6 {
		t.Fatalf("expected pattern_match 0.6, got %s %.2f", result.DataSource, result.Confidence)
	}
	if result.Company == nil || result.Company.Name != "Unknown Co" || result.Company.Website != "https://unknown-co.example" {
		t.Fatalf("expected company derived from domain, got %+v", result.Company)
	}
	if len(f.metrics.sources) != 1 || f.metrics.sources[0] != "pattern_match" {
		t.Fatalf("unexpected enrichment metrics: %v", f.metrics.sources)
	}
}

func TestEnrichExactTeamEmailIsVerified(t *testing.T) {
	profile := entity.CompanyProfile{
		Name: "Acme",
		TeamMembers: []entity.TeamMember{
			{Name: "Janet Doeling", Title: "CFO"},
			{Name: "Jane Doe", Title: "CEO", Email: "jane.doe@acme.io", LinkedIn: "https://linkedin.com/in/jd"},
		},
	}
	f := newFixture(reachable, profile)

	result, err := f.svc.Enrich(context.Background(), "jane.doe@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DataSource != entity.DataSourceScrapedVerified || result.Confidence != 0.95 {
		t.Fatalf("expected verified 0.95, got %s %.2f", result.DataSource, result.Confidence)
	}
	if deref(result.JobTitle) != "CEO" || deref(result.LinkedInURL) != "https://linkedin.com/in/jd" {
		t.Fatalf("member details not adopted: %+v", result)
	}
}

func TestEnrichCompanyFoundWithoutMember(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{Name: "Acme", TeamMembers: []entity.TeamMember{{Name: "Jane Roe", Title: "Designer"}}})

	result, err := f.svc.Enrich(context.Background(), "jane@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DataSource != entity.DataSourceWebScraped || result.Confidence != 0.7 {
		t.Fatalf("expected web_scraped 0.7, got %s %.2f", result.DataSource, result.Confidence)
	}
	if deref(result.JobTitle) != "Designer" {
		t.Fatalf("fuzzy match should adopt title, got %q", deref(result.JobTitle))
	}
	if result.Company.Name != "Acme" {
		t.Fatalf("scraped company name should be kept, got %q", result.Company.Name)
	}
}

func TestEnrichCatchAllCapsConfidence(t *testing.T) {
	probe := entity.ProbeResult{Reachable: entity.Reachable, CatchAll: true, Confidence: 50, SMTPCode: 250}
	profile := entity.CompanyProfile{
		Name:        "Acme",
		TeamMembers: []entity.TeamMember{{Name: "Jane Doe", Email: "jane.doe@acme.io"}},
	}
	f := newFixture(probe, profile)

	result, err := f.svc.Enrich(context.Background(), "jane.doe@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DataSource != entity.DataSourceScrapedVerified {
		t.Fatalf("expected verified source, got %s", result.DataSource)
	}
	if result.Confidence != 0.5 {
		t.Fatalf("catch-all must cap confidence at 0.5, got %.2f", result.Confidence)
	}
}

func TestEnrichFreeProviderSkipsCrawl(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{Name: "Google"})

	result, err := f.svc.Enrich(context.Background(), "johnsmith@gmail.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.enricher.calls != 0 {
		t.Fatalf("free provider domains must not be crawled")
	}
	if result.DataSource != entity.DataSourcePatternMatch || result.Confidence != 0.3 {
		t.Fatalf("expected pattern_match 0.3, got %s %.2f", result.DataSource, result.Confidence)
	}
	if result.Company != nil {
		t.Fatalf("no company expected for free providers, got %+v", result.Company)
	}
	if deref(result.FirstName) != "Johnsmith" || result.LastName != nil {
		t.Fatalf("unexpected identity: %q %v", deref(result.FirstName), result.LastName)
	}
}

func TestEnrichIsCached(t *testing.T) {
	f := newFixture(reachable, entity.CompanyProfile{Name: "Acme"})

	first, err := f.svc.Enrich(context.Background(), "jane@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Enrich(context.Background(), "JANE@acme.io")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached enrichment differs")
	}
	if f.enricher.calls != 1 || f.prober.calls != 1 {
		t.Fatalf("expected one crawl and one probe, got %d and %d", f.enricher.calls, f.prober.calls)
	}

	stats := f.svc.CacheStats()
	if len(stats) != 2 || stats[0].Name != "validate" || stats[1].Name != "enrich" {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}
	if stats[1].Hits != 1 || stats[0].Size != 1 {
		t.Fatalf("unexpected cache counters: %+v", stats)
	}
	if removed := f.svc.ClearExpired(); removed != 0 {
		t.Fatalf("fresh entries must survive, removed %d", removed)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
