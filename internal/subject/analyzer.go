// Package subject identifies the primary business subject in a photo with
// a vision model and extracts business fields from that subject only.
package subject

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/extract"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
	"github.com/sells-group/fieldsnap/pkg/gemini"
)

const (
	defaultTimeout = 60 * time.Second
	defaultBackoff = 2 * time.Second
)

// Analyzer runs subject analysis against one vision model.
type Analyzer struct {
	model   VisionModel
	timeout time.Duration
	backoff time.Duration
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRateLimitBackoff sets the wait before the single rate-limit retry.
func WithRateLimitBackoff(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.backoff = d
		}
	}
}

// New creates an Analyzer.
func New(m VisionModel, opts ...Option) *Analyzer {
	a := &Analyzer{model: m, timeout: defaultTimeout, backoff: defaultBackoff}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Backend returns the configured model's name.
func (a *Analyzer) Backend() string {
	if a.model == nil {
		return ""
	}
	return a.model.Name()
}

// Analyze asks the model for a structured subject breakdown of the image.
// A reply that cannot be parsed degrades to Heuristic instead of failing;
// a model error after the rate-limit retry is returned as a
// *resilience.ProviderError.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (*model.SubjectAnalysis, error) {
	if a.model == nil {
		return nil, resilience.Unavailable("subject", eris.New("subject: no vision model configured"))
	}
	name := a.model.Name()

	policy := resilience.RateLimitPolicy(a.backoff)
	policy.OnRetry = resilience.RetryLogger(name, "analyze_subject")

	start := time.Now()
	raw, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		out, err := a.model.Describe(callCtx, imageURL, analysisPrompt)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return "", resilience.Timeout(name, err)
			}
			return "", resilience.Classify(name, err)
		}
		return out, nil
	})
	if err != nil {
		zap.L().Warn("subject: analysis failed",
			zap.String("backend", name),
			zap.String("image_url", imageURL),
			zap.Error(err),
		)
		return nil, err
	}

	analysis, perr := ParseResponse(raw)
	if perr != nil {
		zap.L().Warn("subject: unparseable reply, using heuristic",
			zap.String("backend", name),
			zap.Error(&resilience.ParseError{Source: name, Err: perr}),
		)
		analysis = Heuristic(raw)
	}

	zap.L().Debug("subject: analysis complete",
		zap.String("backend", name),
		zap.Int("subjects", len(analysis.DetectedSubjects)),
		zap.Bool("primary", analysis.PrimaryBusinessSubject != nil),
		zap.Bool("degraded", analysis.Degraded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return analysis, nil
}

// Clients holds the API clients a configured backend may need.
type Clients struct {
	Anthropic anthropic.Client
	Gemini    gemini.Client
}

// NewFromConfig builds the Analyzer selected by subject.backend.
func NewFromConfig(cfg *config.Config, clients Clients, fetcher *extract.Fetcher) (*Analyzer, error) {
	var m VisionModel
	switch cfg.Subject.Backend {
	case BackendGemini:
		if clients.Gemini == nil {
			return nil, eris.New("subject: gemini backend selected but no client configured")
		}
		m = NewGeminiModel(clients.Gemini, cfg.Gemini.Model, fetcher)
	case BackendClaude:
		if clients.Anthropic == nil {
			return nil, eris.New("subject: claude backend selected but no client configured")
		}
		m = NewClaudeModel(clients.Anthropic, cfg.Anthropic.SonnetModel, fetcher)
	default:
		return nil, eris.Errorf("subject: unknown backend %q", cfg.Subject.Backend)
	}

	return New(m,
		WithTimeout(time.Duration(cfg.Subject.TimeoutSecs)*time.Second),
		WithRateLimitBackoff(time.Duration(cfg.Extraction.RateLimitBackoffMs)*time.Millisecond),
	), nil
}
