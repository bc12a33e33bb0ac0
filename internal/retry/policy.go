// Package retry provides the retry policy applied to every call made against
// an external service (PostgreSQL, Redis).
//
// A Policy is an explicit value rather than implicit wrapping: callers decide
// which operations are retried and which errors count as transient by passing
// a predicate. The delay starts at InitialDelay, grows by Multiplier after each
// failure and is capped at MaxDelay. With MaxRetries == 0 the policy retries
// until the operation succeeds or the context is cancelled.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultInitialDelay is the delay before the first retry
	DefaultInitialDelay = 100 * time.Millisecond
	// DefaultMultiplier is the growth factor applied to the delay after each failure
	DefaultMultiplier = 2.0
	// DefaultMaxDelay is the ceiling for the delay between attempts
	DefaultMaxDelay = 10 * time.Second
)

// Predicate reports whether an error is transient and the operation should be retried
type Predicate func(error) bool

// Policy describes how failed operations are retried
type Policy struct {
	retryable    Predicate
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	maxRetries   uint
	onRetry      func(operation string, err error, next time.Duration)
}

// Option configures a Policy
type Option func(*Policy)

// WithInitialDelay sets the delay before the first retry
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithMultiplier sets the growth factor of the delay
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m >= 1 {
			p.multiplier = m
		}
	}
}

// WithMaxDelay sets the delay ceiling
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithMaxRetries bounds the number of retries. Zero keeps retrying forever.
func WithMaxRetries(n uint) Option {
	return func(p *Policy) {
		p.maxRetries = n
	}
}

// WithOnRetry registers a hook invoked before every retry
func WithOnRetry(fn func(operation string, err error, next time.Duration)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New creates a retry policy that retries errors matched by retryable.
// A nil predicate never retries.
func New(retryable Predicate, opts ...Option) *Policy {
	p := &Policy{
		retryable:    retryable,
		initialDelay: DefaultInitialDelay,
		multiplier:   DefaultMultiplier,
		maxDelay:     DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxDelay < p.initialDelay {
		p.maxDelay = p.initialDelay
	}
	return p
}

// Retryable reports whether err is retried by this policy
func (p *Policy) Retryable(err error) bool {
	return err != nil && p.retryable != nil && p.retryable(err)
}

// Do runs op under the policy
func (p *Policy) Do(ctx context.Context, operation string, op func() error) error {
	_, err := Value(ctx, p, operation, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value runs op under the policy and returns its result.
// A nil policy runs op exactly once.
func Value[T any](ctx context.Context, p *Policy, operation string, op func() (T, error)) (T, error) {
	if p == nil {
		return op()
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.initialDelay,
		RandomizationFactor: 0,
		Multiplier:          p.multiplier,
		MaxInterval:         p.maxDelay,
	}
	b.Reset()

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Error("Operation failed, retrying",
				"operation", operation,
				"error", err,
				"retry_in", next)
			if p.onRetry != nil {
				p.onRetry(operation, err, next)
			}
		}),
	}
	if p.maxRetries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.maxRetries+1))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}
