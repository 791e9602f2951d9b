// Package executor wraps a single provider call with a total timeout,
// transient-failure retries and cooperative cancellation.
package executor

import (
	"context"
	"time"

	"github.com/parley-app/parley/internal/provider"
)

const (
	// DefaultTimeout bounds one whole call including retries and backoff.
	DefaultTimeout = 12 * time.Second
	// DefaultMaxRetries is the number of re-attempts after the first try.
	DefaultMaxRetries = 2
)

// defaultBackoff delays are measured from the end of the failed attempt.
var defaultBackoff = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}

// Executor issues provider calls with a fresh retry budget per call. The
// zero value is not usable; construct with New.
type Executor struct {
	timeout    time.Duration
	maxRetries int
	backoff    []time.Duration
}

// Option adjusts executor construction, mostly for tests.
type Option func(*Executor)

func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

func WithBackoff(delays ...time.Duration) Option {
	return func(e *Executor) { e.backoff = delays }
}

func New(opts ...Option) *Executor {
	e := &Executor{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Complete invokes p with the bounded timeout, retrying transient failures
// up to the retry cap. A cancelled parent context aborts the in-flight
// attempt and suppresses further retries; the context error is returned
// unwrapped so callers can tell cancellation from provider failure.
func (e *Executor) Complete(ctx context.Context, p provider.Provider, turns []provider.Turn) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := e.wait(callCtx, e.delay(attempt)); err != nil {
				return "", err
			}
		}

		completion, err := p.Complete(callCtx, turns)
		if err == nil {
			return completion, nil
		}
		// Surface the caller's context error as-is; wrapping it would make
		// cancellation look like a provider failure.
		if ctxErr := callCtx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if !provider.IsTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// delay returns the backoff before the given 1-based retry attempt. The
// last configured delay repeats if the cap exceeds the schedule.
func (e *Executor) delay(attempt int) time.Duration {
	if len(e.backoff) == 0 {
		return 0
	}
	if attempt-1 < len(e.backoff) {
		return e.backoff[attempt-1]
	}
	return e.backoff[len(e.backoff)-1]
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
