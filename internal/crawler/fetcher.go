// Package crawler fetches public web pages politely for enrichment.
package crawler

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 5 << 20
	minDelay       = time.Second
	maxDelay       = 2 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8,fr;q=0.6",
	"en-CA,en;q=0.9",
}

// HTTPClient abstracts the HTTP transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads pages with a politeness delay and browser-like headers.
// Failures are reported as ok=false, never as errors.
type Fetcher struct {
	client HTTPClient
	delay  func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	log    logrus.FieldLogger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default client.
func WithHTTPClient(client HTTPClient) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithDelay overrides the politeness delay drawn before every request.
func WithDelay(delay func() time.Duration) Option {
	return func(f *Fetcher) {
		if delay != nil {
			f.delay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFetcher builds a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{
		client: NewHTTPClient(timeout),
		delay:  randomDelay,
		sleep:  sleepContext,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a client that follows redirects and keeps cookies per site.
func NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.Jar = jar
	}
	return client
}

// Fetch returns the UTF-8 body of url when it answers 200.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool) {
	log := f.log.WithField("url", url)

	if err := f.sleep(ctx, f.delay()); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.WithError(err).Debug("build request failed")
		return "", false
	}
	req.Header = browserHeaders()

	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("fetch failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Debug("unexpected status")
		return "", false
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		log.WithError(err).Debug("read body failed")
		return "", false
	}
	return string(body), true
}

func browserHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func randomDelay() time.Duration {
	return minDelay + rand.N(maxDelay-minDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
