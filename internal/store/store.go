// Package store persists leads. Implementations are chosen once at
// construction from store.driver.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
)

// ErrNotFound is returned by UpdateLead for an unknown lead id.
var ErrNotFound = eris.New("store: lead not found")

// defaultListLimit caps ListLeads when the filter sets no limit.
const defaultListLimit = 100

// Store defines the persistence interface for leads.
type Store interface {
	CreateLead(ctx context.Context, in model.NewLead) (*model.Lead, error)
	// GetLead returns nil, nil when the lead does not exist.
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	// UpdateLead applies u atomically and returns the updated lead.
	UpdateLead(ctx context.Context, id string, u model.LeadUpdate) (*model.Lead, error)
	ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

// newLead builds the initial received record.
func newLead(in model.NewLead, now time.Time) *model.Lead {
	now = now.UTC()
	return &model.Lead{
		ID:               uuid.New().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
		ImageURL:         in.ImageURL,
		SourceLocation:   in.SourceLocation,
		SourceNotes:      in.SourceNotes,
		Services:         []string{},
		ProcessingStatus: model.StatusReceived,
	}
}

func encodeLead(l *model.Lead) ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal lead %s", l.ID)
	}
	return data, nil
}

func decodeLead(data []byte) (*model.Lead, error) {
	var l model.Lead
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal lead")
	}
	if l.Services == nil {
		l.Services = []string{}
	}
	return &l, nil
}

func listLimit(f model.LeadFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
