package database

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConnectRejectsBadDSN(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"malformed": "invalid-dsn",
	}
	for name, dsn := range cases {
		t.Run(name, func(t *testing.T) {
			if pool, err := Connect(context.Background(), dsn); err == nil {
				pool.Close()
				t.Fatalf("expected error for dsn %q", dsn)
			}
		})
	}
}

func TestConnectReportsUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Connect(ctx, "postgres://snapshots@127.0.0.1:1/mailprobe?connect_timeout=1&sslmode=disable")
	if err == nil {
		t.Fatalf("expected error for unreachable server")
	}
	if !strings.Contains(err.Error(), "ping database") {
		t.Fatalf("expected ping failure, got %v", err)
	}
}
