package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/octobees/mailprobe/internal/config"
)

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-123")

	err := Logging(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Data["request_id"] != "rid-123" || entry.Data["status"] != http.StatusOK {
		t.Fatalf("expected log entry with request id and status, got %+v", entry)
	}

	// ensure errors are propagated and logged
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-456")
	expected := errors.New("boom")
	err = Logging(logger)(func(c echo.Context) error {
		return expected
	})(c)
	entry = hook.LastEntry()
	if entry == nil || entry.Data["request_id"] != "rid-456" || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning entry with new request id, got %+v", entry)
	}
	if !errors.Is(err, expected) {
		t.Fatalf("expected error to bubble up")
	}
}

type recordedRequest struct {
	endpoint string
	method   string
	status   int
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) RecordRequest(endpoint, method string, status int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{endpoint: endpoint, method: method, status: status})
}

func TestMetricsMiddleware(t *testing.T) {
	recorder := &fakeRecorder{}
	e := echo.New()
	mw := Metrics(recorder)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/validate")
	if err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	_ = mw(func(c echo.Context) error {
		return echo.ErrNotFound
	})(c)

	if len(recorder.requests) != 2 {
		t.Fatalf("expected two samples, got %d", len(recorder.requests))
	}
	if got := recorder.requests[0]; got != (recordedRequest{"/api/validate", http.MethodPost, http.StatusCreated}) {
		t.Fatalf("unexpected first sample: %+v", got)
	}
	if got := recorder.requests[1]; got != (recordedRequest{"/missing", http.MethodGet, http.StatusNotFound}) {
		t.Fatalf("unexpected second sample: %+v", got)
	}
}

func TestEndpointRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Requests: 1, Interval: time.Second}
	mw := EndpointRateLimiter("/api/enrich", cfg)

	e := echo.New()
	nextCalls := 0
	next := func(c echo.Context) error {
		nextCalls++
		return c.NoContent(http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/enrich", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/enrich")

	_ = mw(next)(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/enrich", nil)
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req2, rec2)
	c2.SetPath("/api/enrich")
	c2.Set(ContextKeyRequestID, "rid-429")
	_ = mw(next)(c2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rejected, got %d", rec2.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec2.Body.Bytes(), &body); err != nil || body.Status != "error" || body.RequestID != "rid-429" {
		t.Fatalf("expected error envelope, got %s", rec2.Body.String())
	}
	if retry := rec2.Header().Get("Retry-After"); retry == "" || retry == "0" {
		t.Fatalf("expected positive Retry-After, got %q", retry)
	}

	// Other routes bypass the limiter.
	req3 := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
	rec3 := httptest.NewRecorder()
	c3 := e.NewContext(req3, rec3)
	c3.SetPath("/api/validate")
	_ = mw(next)(c3)
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected other route to pass")
	}

	// zero config should behave as passthrough
	mw = EndpointRateLimiter("/api/enrich", config.RateLimitConfig{})
	req4 := httptest.NewRequest(http.MethodPost, "/api/enrich", nil)
	rec4 := httptest.NewRecorder()
	c4 := e.NewContext(req4, rec4)
	c4.SetPath("/api/enrich")
	_ = mw(next)(c4)
	if rec4.Code != http.StatusOK {
		t.Fatalf("expected passthrough when limiter disabled")
	}
	if nextCalls != 3 {
		t.Fatalf("expected next handler to run three times, got %d", nextCalls)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	mw := RequireRole("admin")

	t.Run("missing role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("incorrect role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyRole, "user")

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyRole, "admin")

		called := false
		if err := mw(func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatalf("expected handler to run")
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	handler := RequestID()

	t.Run("reuse incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "incoming")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) != "incoming" {
				t.Fatalf("expected request id to be stored")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") != "incoming" {
			t.Fatalf("expected response header to propagate request id")
		}
	})

	t.Run("generate when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			rid := RequestIDFromContext(c)
			if rid == "" {
				t.Fatalf("expected generated request id")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected response header set")
		}
	})

	for name, incoming := range map[string]string{
		"control characters": "abc\r\ninjected: 1",
		"spaces":             "has space",
		"too long":           strings.Repeat("a", maxRequestIDLength+1),
	} {
		t.Run("replace malformed header "+name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(echo.HeaderXRequestID, incoming)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var rid string
			if err := handler(func(c echo.Context) error {
				rid = RequestIDFromContext(c)
				return c.NoContent(http.StatusOK)
			})(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if rid == "" || rid == incoming {
				t.Fatalf("expected malformed id to be replaced, got %q", rid)
			}
			if _, err := uuid.Parse(rid); err != nil {
				t.Fatalf("expected generated uuid, got %q", rid)
			}
		})
	}
}
