package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is a fixed-delay retry: at most Retries extra attempts, each
// after Delay, and only for errors accepted by ShouldRetry.
type RetryPolicy struct {
	Retries     int
	Delay       time.Duration
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error)
}

// RateLimitPolicy returns the policy used by provider chains: one retry
// after a fixed delay, on rate limiting only.
func RateLimitPolicy(delay time.Duration) RetryPolicy {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return RetryPolicy{
		Retries:     1,
		Delay:       delay,
		ShouldRetry: IsRateLimited,
	}
}

// Do runs fn under the policy. Context cancellation stops waiting and
// returns the last error.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value.
func DoVal[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= p.Retries || ctx.Err() != nil || !shouldRetry(err) {
			return zero, err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(provider, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying provider call",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
