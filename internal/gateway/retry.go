package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/config"
)

// Policy bounds the attempts made for one gateway operation.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Timeout applies to each attempt separately. Zero means no timeout.
	Timeout time.Duration
}

// NewPolicy combines the configured retry bounds with a per-call timeout.
func NewPolicy(r config.Retry, timeout time.Duration) Policy {
	return Policy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
		Timeout:         timeout,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx ends. Every returned error is a *Error.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		callCtx, cancel := withTimeout(ctx, p.Timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err == nil {
			result = v
			return nil
		}

		gerr := Classify(op, err)
		if ctx.Err() != nil || !gerr.Kind.Retryable() {
			return backoff.Permanent(gerr)
		}
		return gerr
	}, b, func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", wait).
			Msg("Gateway call failed, retrying")
	})
	if err != nil {
		var zero T
		return zero, Classify(op, err)
	}
	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
