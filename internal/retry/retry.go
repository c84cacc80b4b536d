// Package retry provides a small bounded retry policy shared by the DNS and SMTP paths.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy retries an operation up to Attempts times, sleeping Backoff between tries.
type Policy struct {
	Attempts int
	Backoff  time.Duration

	// Sleep overrides the wait between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error or the attempts run out.
// The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		if p.Backoff > 0 {
			if serr := sleep(ctx, p.Backoff); serr != nil {
				return err
			}
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
