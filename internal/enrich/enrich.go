// Package enrich looks up external data about a business: reviews,
// opening hours, website and social profiles.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/google"
)

// Query identifies the business to enrich. Only Name is expected; the
// other fields narrow the lookup when present.
type Query struct {
	Name    string
	Phone   string
	Address string
	Website string
}

// QueryFromFacts builds a Query from canonical facts.
func QueryFromFacts(f model.CanonicalFacts) Query {
	return Query{Name: f.BusinessName, Phone: f.PhoneNumber, Address: f.Address, Website: f.Website}
}

// Enricher looks up external data about a business.
type Enricher interface {
	Name() string
	EnrichBusiness(ctx context.Context, q Query) (*model.Enrichment, error)
}

// Composite runs enrichers in order and merges their results. A website
// found by an earlier enricher is handed to later ones.
type Composite struct {
	enrichers []Enricher
	timeout   time.Duration
}

// NewComposite creates a Composite. A zero timeout leaves calls unbounded
// beyond the caller's context.
func NewComposite(timeout time.Duration, enrichers ...Enricher) *Composite {
	return &Composite{enrichers: enrichers, timeout: timeout}
}

// Name implements Enricher.
func (c *Composite) Name() string { return "composite" }

// EnrichBusiness implements Enricher. It fails only when every enricher
// fails.
func (c *Composite) EnrichBusiness(ctx context.Context, q Query) (*model.Enrichment, error) {
	out := &model.Enrichment{}
	if len(c.enrichers) == 0 {
		return out, nil
	}

	var errs []error
	for _, e := range c.enrichers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := c.run(ctx, e, q)
		if err != nil {
			zap.L().Warn("enrich: enricher failed",
				zap.String("enricher", e.Name()),
				zap.String("business", q.Name),
				zap.Error(err),
			)
			errs = append(errs, eris.Wrapf(err, "enrich: %s", e.Name()))
			continue
		}
		out.Merge(res)
		if q.Website == "" && out.Website != "" {
			q.Website = out.Website
		}
	}

	if len(errs) == len(c.enrichers) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Composite) run(ctx context.Context, e Enricher, q Query) (*model.Enrichment, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return e.EnrichBusiness(ctx, q)
}

// FromConfig builds the configured enrichers. places may be nil when no
// Google key is configured.
func FromConfig(cfg config.EnrichmentConfig, places google.PlacesClient) *Composite {
	var es []Enricher
	if cfg.Places && places != nil {
		es = append(es, NewPlacesEnricher(places))
	}
	if cfg.SocialScan {
		es = append(es, NewSocialEnricher(nil))
	}
	return NewComposite(time.Duration(cfg.TimeoutSecs)*time.Second, es...)
}
