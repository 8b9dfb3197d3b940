package extract

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
)

// Attempt records one provider call made by the chain.
type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// Observer receives every provider attempt. Implemented by the metrics
// recorder.
type Observer interface {
	ObserveAttempt(provider string, err error, d time.Duration)
}

// Outcome is a successful chain run: the winning result plus every
// attempt made to get it.
type Outcome struct {
	Result   *model.ExtractionResult
	Attempts []Attempt
}

// Chain tries providers in priority order, returning the first success.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	backoff   time.Duration
	breakers  *resilience.ProviderBreakers
	observer  Observer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithRateLimitBackoff sets the fixed delay before the single rate-limit
// retry.
func WithRateLimitBackoff(d time.Duration) ChainOption {
	return func(c *Chain) { c.backoff = d }
}

// WithBreakers guards each provider with a circuit breaker.
func WithBreakers(b *resilience.ProviderBreakers) ChainOption {
	return func(c *Chain) { c.breakers = b }
}

// WithObserver reports attempts to o.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// NewChain creates a Chain. Providers are tried in the given order.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		timeout:   30 * time.Second,
		backoff:   2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Providers returns the provider names in chain order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Extract runs the chain. A rate-limited provider is retried once after
// the fixed backoff; any other failure moves to the next provider. When
// every provider fails the error is a *resilience.ExhaustedError listing
// each provider's reason.
func (c *Chain) Extract(ctx context.Context, imageURL string) (*Outcome, error) {
	var (
		attempts []Attempt
		failures []resilience.ProviderFailure
	)

	for _, p := range c.providers {
		name := p.Name()

		if !p.IsAvailable() {
			err := resilience.Unavailable(name, eris.New("provider not configured"))
			failures = append(failures, resilience.ProviderFailure{Provider: name, Err: err})
			zap.L().Debug("extract: provider unavailable, skipping", zap.String("provider", name))
			continue
		}

		var cb *resilience.CircuitBreaker
		if c.breakers != nil {
			cb = c.breakers.Get(name)
			if err := cb.Allow(); err != nil {
				perr := resilience.Unavailable(name, err)
				failures = append(failures, resilience.ProviderFailure{Provider: name, Err: perr})
				continue
			}
		}

		policy := resilience.RateLimitPolicy(c.backoff)
		policy.OnRetry = resilience.RetryLogger(name, "extract_text")

		res, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*model.ExtractionResult, error) {
			res, elapsed, err := c.call(ctx, p, imageURL)
			attempts = append(attempts, Attempt{Provider: name, Err: err, Duration: elapsed})
			return res, err
		})
		if cb != nil {
			cb.Record(err)
		}
		if err == nil {
			return &Outcome{Result: res, Attempts: attempts}, nil
		}

		failures = append(failures, resilience.ProviderFailure{Provider: name, Err: err})
		zap.L().Warn("extract: provider failed, trying next",
			zap.String("provider", name),
			zap.String("kind", string(resilience.KindOf(err))),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &resilience.ExhaustedError{Failures: failures}
}

// call makes one bounded provider call and normalizes its result.
func (c *Chain) call(ctx context.Context, p Provider, imageURL string) (*model.ExtractionResult, time.Duration, error) {
	name := p.Name()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.ExtractText(ctx, imageURL)
	elapsed := time.Since(start)

	if err == nil && (res == nil || strings.TrimSpace(res.Text) == "") {
		err = resilience.Unavailable(name, errNoText)
	}
	if err != nil {
		err = resilience.Classify(name, err)
	}
	if c.observer != nil {
		c.observer.ObserveAttempt(name, err, elapsed)
	}
	if err != nil {
		return nil, elapsed, err
	}

	res.Provider = name
	if res.ProcessingTimeMs == 0 {
		res.ProcessingTimeMs = elapsed.Milliseconds()
	}
	res.Confidence = clamp(res.Confidence, 0, 1)
	return res, elapsed, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
