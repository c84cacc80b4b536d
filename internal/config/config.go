package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Decode implements envconfig.Decoder for values such as "30/min".
func (r *RateLimitConfig) Decode(value string) error {
	parsed, err := parseRateLimit(value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// SMTPConfig controls the outbound RCPT probes.
type SMTPConfig struct {
	HeloDomain      string        `envconfig:"SMTP_HELO_DOMAIN" default:"orca-horizon.com"`
	MailFrom        string        `envconfig:"SMTP_MAIL_FROM" default:"verify@orca-horizon.com"`
	Port            string        `envconfig:"SMTP_PORT" default:"25"`
	CatchAllTimeout time.Duration `envconfig:"SMTP_CATCH_ALL_TIMEOUT" default:"5s"`
	ProbeTimeout    time.Duration `envconfig:"SMTP_PROBE_TIMEOUT" default:"10s"`
	CatchAllTTL     time.Duration `envconfig:"SMTP_CATCH_ALL_TTL" default:"1h"`
	MinInterval     time.Duration `envconfig:"SMTP_MIN_INTERVAL" default:"2s"`
	ProxyURL        string        `envconfig:"SMTP_PROXY_URL"`
}

// DNSConfig selects how MX records are looked up.
type DNSConfig struct {
	Server    string        `envconfig:"DNS_SERVER"`
	Timeout   time.Duration `envconfig:"DNS_TIMEOUT" default:"5s"`
	CacheSize int           `envconfig:"MX_CACHE_SIZE" default:"500"`
}

// CacheConfig sizes the result caches.
type CacheConfig struct {
	MaxEntries  int           `envconfig:"CACHE_MAX_ENTRIES" default:"1000"`
	ValidateTTL time.Duration `envconfig:"CACHE_VALIDATE_TTL" default:"30m"`
	EnrichTTL   time.Duration `envconfig:"CACHE_ENRICH_TTL" default:"60m"`
}

// CrawlerConfig controls website enrichment.
type CrawlerConfig struct {
	Timeout     time.Duration `envconfig:"CRAWLER_TIMEOUT" default:"10s"`
	MaxPages    int           `envconfig:"CRAWLER_MAX_PAGES" default:"4"`
	PhoneRegion string        `envconfig:"CRAWLER_PHONE_REGION" default:"US"`
}

// MetricsConfig controls the collector and its persistence loop.
type MetricsConfig struct {
	BufferSize       int           `envconfig:"METRICS_BUFFER_SIZE" default:"1000"`
	SnapshotPath     string        `envconfig:"METRICS_SNAPSHOT_PATH" default:"metrics.json"`
	SnapshotInterval time.Duration `envconfig:"METRICS_SNAPSHOT_INTERVAL" default:"5m"`
}

// NSQConfig wires the queue worker.
type NSQConfig struct {
	NSQDAddr    string `envconfig:"NSQD_ADDR" default:"127.0.0.1:4150"`
	LookupdAddr string `envconfig:"NSQ_LOOKUPD_ADDR"`
	Topic       string `envconfig:"NSQ_TOPIC" default:"verify-requests"`
	Channel     string `envconfig:"NSQ_CHANNEL" default:"workers"`
	ResultTopic string `envconfig:"NSQ_RESULT_TOPIC" default:"verify-results"`
	Concurrency int    `envconfig:"NSQ_CONCURRENCY" default:"4"`
}

// Config aggregates application-wide configuration values.
type Config struct {
	Port            string          `envconfig:"PORT" default:"8080"`
	LogLevel        string          `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string          `envconfig:"LOG_FORMAT" default:"text"`
	DatabaseURL     string          `envconfig:"DATABASE_URL"`
	AdminJWTSecret  string          `envconfig:"ADMIN_JWT_SECRET"`
	RateLimitEnrich RateLimitConfig `envconfig:"RATE_LIMIT_ENRICH" default:"30/min"`

	SMTP    SMTPConfig
	DNS     DNSConfig
	Cache   CacheConfig
	Crawler CrawlerConfig
	Metrics MetricsConfig
	NSQ     NSQConfig
}

// Load reads configuration from the environment, after loading a .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}
	if cfg.Crawler.MaxPages <= 0 {
		return nil, errors.Errorf("CRAWLER_MAX_PAGES must be positive, got %d", cfg.Crawler.MaxPages)
	}
	if !strings.Contains(cfg.SMTP.MailFrom, "@") {
		return nil, errors.Errorf("SMTP_MAIL_FROM must be an address, got %q", cfg.SMTP.MailFrom)
	}
	return &cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, errors.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, errors.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, errors.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}
