// Package crm pushes qualified leads into downstream CRMs.
package crm

import (
	"context"
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/notion"
	"github.com/sells-group/fieldsnap/pkg/salesforce"
)

// Sink syncs a lead into one CRM and returns the CRM record ID.
type Sink interface {
	Name() string
	SyncLead(ctx context.Context, lead *model.Lead) (string, error)
}

// Multi syncs a lead into every sink.
type Multi []Sink

// SyncAll runs every sink and returns the record IDs keyed by sink name.
// A failing sink does not stop the others; errors are joined.
func (m Multi) SyncAll(ctx context.Context, lead *model.Lead) (map[string]string, error) {
	refs := make(map[string]string, len(m))
	var errs []error
	for _, s := range m {
		id, err := s.SyncLead(ctx, lead)
		if err != nil {
			zap.L().Warn("crm: sync failed",
				zap.String("sink", s.Name()),
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		refs[s.Name()] = id
	}
	return refs, errors.Join(errs...)
}

// Clients carries the CRM API clients available to FromConfig.
type Clients struct {
	Salesforce salesforce.Client
	Notion     notion.Client
}

// FromConfig builds the enabled sinks. A sink enabled without a client is
// an error.
func FromConfig(cfg *config.Config, clients Clients) (Multi, error) {
	var m Multi
	if cfg.CRM.Salesforce {
		if clients.Salesforce == nil {
			return nil, eris.New("crm: salesforce enabled but no client configured")
		}
		m = append(m, NewSalesforceSink(clients.Salesforce))
	}
	if cfg.CRM.Notion {
		if clients.Notion == nil || cfg.Notion.LeadDB == "" {
			return nil, eris.New("crm: notion enabled but client or lead_db missing")
		}
		m = append(m, NewNotionSink(clients.Notion, cfg.Notion.LeadDB))
	}
	return m, nil
}

// E164 formats a phone number as E.164, assuming US for national
// numbers. Unparseable numbers are returned trimmed.
func E164(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	num, err := phonenumbers.Parse(phone, "US")
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
