// Package app assembles the verification components from configuration.
package app

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/cache"
	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/crawler"
	"github.com/octobees/mailprobe/internal/database"
	"github.com/octobees/mailprobe/internal/domains"
	"github.com/octobees/mailprobe/internal/enrich"
	"github.com/octobees/mailprobe/internal/entity"
	"github.com/octobees/mailprobe/internal/metrics"
	"github.com/octobees/mailprobe/internal/mx"
	"github.com/octobees/mailprobe/internal/ratelimit"
	"github.com/octobees/mailprobe/internal/repository"
	"github.com/octobees/mailprobe/internal/service"
	"github.com/octobees/mailprobe/internal/smtpprobe"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	Service   *service.VerificationService
	Metrics   *metrics.Collector
	Persister *metrics.Persister

	closers []func()
}

// NewLogger builds a logrus logger writing to stderr with the configured level and format.
func NewLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse LOG_LEVEL %q", level)
	}
	log.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unsupported LOG_FORMAT %q", format)
	}
	return log, nil
}

// Build wires every component. The caller must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	lookuper := mx.Lookuper(nil)
	if cfg.DNS.Server != "" {
		lookuper = mx.NewDNSClient(cfg.DNS.Server, cfg.DNS.Timeout)
	}
	resolver, err := mx.NewResolver(cfg.DNS.CacheSize,
		mx.WithLookuper(lookuper),
		mx.WithTimeout(cfg.DNS.Timeout),
		mx.WithLogger(log.WithField("component", "mx")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build mx resolver")
	}

	dial := smtpprobe.DirectDialer()
	if cfg.SMTP.ProxyURL != "" {
		if dial, err = smtpprobe.ProxyDialer(cfg.SMTP.ProxyURL); err != nil {
			return nil, errors.Wrap(err, "build smtp proxy dialer")
		}
	}
	probeCfg := smtpprobe.DefaultConfig()
	probeCfg.HeloDomain = cfg.SMTP.HeloDomain
	probeCfg.MailFrom = cfg.SMTP.MailFrom
	probeCfg.Port = cfg.SMTP.Port
	probeCfg.CatchAllTimeout = cfg.SMTP.CatchAllTimeout
	probeCfg.ProbeTimeout = cfg.SMTP.ProbeTimeout
	probeCfg.CatchAllTTL = cfg.SMTP.CatchAllTTL
	prober := smtpprobe.New(probeCfg,
		ratelimit.NewDomainLimiter(cfg.SMTP.MinInterval),
		resolver,
		smtpprobe.WithDialer(dial),
		smtpprobe.WithLogger(log.WithField("component", "smtp")),
	)

	fetcher := crawler.NewFetcher(cfg.Crawler.Timeout, crawler.WithLogger(log.WithField("component", "crawler")))
	enricher := enrich.NewWebsiteEnricher(fetcher,
		enrich.WithMaxPages(cfg.Crawler.MaxPages),
		enrich.WithPhoneRegion(cfg.Crawler.PhoneRegion),
		enrich.WithLogger(log.WithField("component", "enrich")),
	)

	validateCache := cache.New[entity.ValidationResult]("validate", cfg.Cache.MaxEntries, cfg.Cache.ValidateTTL)
	enrichCache := cache.New[entity.EnrichmentResult]("enrich", cfg.Cache.MaxEntries, cfg.Cache.EnrichTTL)

	a.Metrics = metrics.NewCollector(cfg.Metrics.BufferSize)
	a.Service = service.NewVerificationService(domains.Default(), resolver, prober, enricher,
		service.WithValidateCache(validateCache),
		service.WithEnrichCache(enrichCache),
		service.WithMetrics(a.Metrics),
		service.WithLogger(log.WithField("component", "verify")),
	)

	store, err := a.snapshotStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Persister = metrics.NewPersister(a.Metrics, store, cfg.Metrics.SnapshotInterval,
		log.WithField("component", "metrics"), validateCache, enrichCache)

	return a, nil
}

// snapshotStore prefers Postgres when DATABASE_URL is set and falls back to a file.
func (a *App) snapshotStore(ctx context.Context) (metrics.Store, error) {
	if a.Config.DatabaseURL == "" {
		return metrics.NewFileStore(a.Config.Metrics.SnapshotPath), nil
	}

	pool, err := database.Connect(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect snapshot database")
	}
	a.closers = append(a.closers, pool.Close)

	repo := repository.NewPGXSnapshotRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Close releases database connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
