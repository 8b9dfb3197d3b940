package crm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/notion"
)

// NotionSink upserts leads into a Notion database keyed by lead ID.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink creates a NotionSink for the given database.
func NewNotionSink(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Name implements Sink.
func (s *NotionSink) Name() string { return "notion" }

// SyncLead implements Sink.
func (s *NotionSink) SyncLead(ctx context.Context, lead *model.Lead) (string, error) {
	id, err := notion.UpsertLead(ctx, s.client, s.dbID, notion.LeadRow{
		LeadID:        lead.ID,
		BusinessName:  lead.BusinessName,
		Phone:         E164(lead.PhoneNumber),
		Email:         lead.Email,
		Website:       lead.Website,
		Services:      lead.Services,
		Score:         lead.LeadScore,
		Qualification: string(lead.QualificationStatus),
		Location:      lead.SourceLocation,
	})
	if err != nil {
		return "", eris.Wrap(err, "crm: notion upsert")
	}
	return id, nil
}
