package extract

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
	"github.com/sells-group/fieldsnap/pkg/google"
)

// Registry holds the providers built at process start, keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain resolves order into a Chain. Unknown names are an error.
func (r *Registry) Chain(order []string, opts ...ChainOption) (*Chain, error) {
	if len(order) == 0 {
		order = DefaultPriority
	}
	providers := make([]Provider, 0, len(order))
	for _, name := range order {
		p, ok := r.providers[name]
		if !ok {
			return nil, eris.Errorf("extract: unknown provider %q", name)
		}
		providers = append(providers, p)
	}
	return NewChain(providers, opts...), nil
}

// Clients are the optional API clients providers are built on. Nil
// clients leave the matching provider registered but unavailable.
type Clients struct {
	Anthropic anthropic.Client
	Vision    google.VisionClient
}

// NewRegistryFromConfig registers every provider from cfg.
func NewRegistryFromConfig(cfg config.ExtractionConfig, anthropicModel string, clients Clients) *Registry {
	fetcher := NewFetcher(nil)
	r := NewRegistry()
	r.Register(NewTesseract(cfg.Tesseract, fetcher, nil))

	var claude anthropic.Client
	if cfg.ClaudeVision.Enabled {
		claude = clients.Anthropic
	}
	model := cfg.ClaudeVision.Model
	if model == "" {
		model = anthropicModel
	}
	r.Register(NewClaudeVision(claude, model, fetcher))

	var vision google.VisionClient
	if cfg.CloudVision.Enabled {
		vision = clients.Vision
	}
	r.Register(NewCloudVision(vision, fetcher))
	return r
}

// ChainOptions converts cfg into chain options. obs may be nil.
func ChainOptions(cfg config.ExtractionConfig, obs Observer) []ChainOption {
	opts := []ChainOption{}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, WithCallTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}
	if cfg.RateLimitBackoffMs > 0 {
		opts = append(opts, WithRateLimitBackoff(time.Duration(cfg.RateLimitBackoffMs)*time.Millisecond))
	}
	if cfg.Circuit.Enabled {
		opts = append(opts, WithBreakers(resilience.NewProviderBreakers(resilience.FromCircuitConfig(cfg.Circuit))))
	}
	if obs != nil {
		opts = append(opts, WithObserver(obs))
	}
	return opts
}
