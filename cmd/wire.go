package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/crm"
	"github.com/sells-group/fieldsnap/internal/enrich"
	"github.com/sells-group/fieldsnap/internal/extract"
	"github.com/sells-group/fieldsnap/internal/fusion"
	"github.com/sells-group/fieldsnap/internal/leads"
	"github.com/sells-group/fieldsnap/internal/metrics"
	"github.com/sells-group/fieldsnap/internal/notify"
	"github.com/sells-group/fieldsnap/internal/outreach"
	"github.com/sells-group/fieldsnap/internal/scorer"
	"github.com/sells-group/fieldsnap/internal/store"
	"github.com/sells-group/fieldsnap/internal/subject"
	anthropicpkg "github.com/sells-group/fieldsnap/pkg/anthropic"
	"github.com/sells-group/fieldsnap/pkg/gemini"
	"github.com/sells-group/fieldsnap/pkg/google"
	"github.com/sells-group/fieldsnap/pkg/notion"
	sfpkg "github.com/sells-group/fieldsnap/pkg/salesforce"
)

// appEnv holds the store, the orchestrator and the collaborators the
// serve, worker and process commands share.
type appEnv struct {
	Store        store.Store
	Orchestrator *leads.Orchestrator
	Metrics      *metrics.Recorder
	Notifier     notify.Notifier
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initApp builds every client from config and wires the orchestrator.
// Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st, Metrics: metrics.New()}

	var anthropicClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Debug("FIELDSNAP_ANTHROPIC_KEY not set, claude providers unavailable")
	}

	var geminiClient gemini.Client
	if cfg.Gemini.Key != "" {
		geminiClient, err = gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init gemini")
		}
	}

	var (
		visionClient google.VisionClient
		placesClient google.PlacesClient
	)
	if cfg.Google.Key != "" {
		var visionOpts []google.Option
		if cfg.Extraction.CloudVision.BaseURL != "" {
			visionOpts = append(visionOpts, google.WithBaseURL(cfg.Extraction.CloudVision.BaseURL))
		}
		visionClient = google.NewVisionClient(cfg.Google.Key, visionOpts...)
		placesClient = google.NewPlacesClient(cfg.Google.Key)
		zap.L().Info("google vision and places enabled")
	} else {
		zap.L().Debug("FIELDSNAP_GOOGLE_KEY not set, cloud vision and places disabled")
	}

	registry := extract.NewRegistryFromConfig(cfg.Extraction, cfg.Anthropic.SonnetModel, extract.Clients{
		Anthropic: anthropicClient,
		Vision:    visionClient,
	})
	chain, err := registry.Chain(cfg.Extraction.Priority, extract.ChainOptions(cfg.Extraction, env.Metrics)...)
	if err != nil {
		env.Close()
		return nil, err
	}

	analyzer, err := subject.NewFromConfig(cfg, subject.Clients{
		Anthropic: anthropicClient,
		Gemini:    geminiClient,
	}, extract.NewFetcher(nil))
	if err != nil {
		env.Close()
		return nil, err
	}

	rules, err := scorer.RulesFromConfig(cfg.Scoring)
	if err != nil {
		env.Close()
		return nil, err
	}
	sc, err := scorer.New(rules)
	if err != nil {
		env.Close()
		return nil, err
	}

	sinks, err := initCRM()
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Notifier = notify.FromConfig(cfg.Notify)

	deps := leads.Deps{
		Store:    st,
		Chain:    chain,
		Analyzer: analyzer,
		Enricher: enrich.FromConfig(cfg.Enrichment, placesClient),
		Outreach: outreach.FromConfig(cfg.Outreach, anthropicClient, cfg.Anthropic.HaikuModel),
		Notifier: env.Notifier,
		Scorer:   sc,
		Metrics:  env.Metrics,
		Fusion: fusion.Config{
			MaxServices:         cfg.Fusion.MaxServices,
			SimilarityThreshold: cfg.Fusion.SimilarityThreshold,
		},
	}
	if len(sinks) > 0 {
		deps.CRM = sinks
	}

	env.Orchestrator, err = leads.New(deps)
	if err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Info("pipeline initialized",
		zap.Strings("providers", chain.Providers()),
		zap.String("subject_backend", analyzer.Backend()),
		zap.Float64("threshold", rules.Threshold),
		zap.Int("crm_sinks", len(sinks)),
	)
	return env, nil
}

// initCRM builds the enabled CRM sinks. Clients are only created for
// enabled sinks.
func initCRM() (crm.Multi, error) {
	var clients crm.Clients
	if cfg.CRM.Salesforce {
		sf, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		clients.Salesforce = sf
	}
	if cfg.CRM.Notion && cfg.Notion.Token != "" {
		clients.Notion = notion.NewClient(cfg.Notion.Token)
	}
	return crm.FromConfig(cfg, clients)
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (FIELDSNAP_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return sfpkg.Connect(sfpkg.Credentials{
		LoginURL:       cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
}
