package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/salesforce"
)

// LeadSource tags every lead created by this service.
const LeadSource = "Field Snap"

// hotScore is the score at which a qualified lead is rated Hot.
const hotScore = 75

// SalesforceSink syncs leads as Salesforce Lead records. A lead with a
// phone that matches an open Salesforce Lead updates it instead of
// creating a duplicate.
type SalesforceSink struct {
	client salesforce.Client
}

// NewSalesforceSink creates a SalesforceSink.
func NewSalesforceSink(client salesforce.Client) *SalesforceSink {
	return &SalesforceSink{client: client}
}

// Name implements Sink.
func (s *SalesforceSink) Name() string { return "salesforce" }

// SyncLead implements Sink.
func (s *SalesforceSink) SyncLead(ctx context.Context, lead *model.Lead) (string, error) {
	fields := LeadFields(lead)

	if phone, _ := fields["Phone"].(string); phone != "" {
		existing, err := salesforce.FindLeadByPhone(ctx, s.client, phone)
		if err != nil {
			return "", eris.Wrap(err, "crm: salesforce lookup")
		}
		if existing != nil {
			if err := salesforce.UpdateLead(ctx, s.client, existing.ID, fields); err != nil {
				return "", eris.Wrap(err, "crm: salesforce update")
			}
			return existing.ID, nil
		}
	}

	id, err := salesforce.CreateLead(ctx, s.client, fields)
	if err != nil {
		return "", eris.Wrap(err, "crm: salesforce create")
	}
	return id, nil
}

// LeadFields maps a lead to Salesforce Lead sObject fields.
func LeadFields(lead *model.Lead) map[string]any {
	company := strings.TrimSpace(lead.BusinessName)
	if company == "" {
		company = "Unknown business"
	}
	fields := map[string]any{
		"Company":    company,
		"LastName":   company,
		"LeadSource": LeadSource,
		"Rating":     rating(lead),
	}
	if p := E164(lead.PhoneNumber); p != "" {
		fields["Phone"] = p
	}
	if lead.Email != "" {
		fields["Email"] = lead.Email
	}
	if lead.Website != "" {
		fields["Website"] = lead.Website
	}
	if lead.Address != "" {
		fields["Street"] = lead.Address
	}

	var desc []string
	if len(lead.Services) > 0 {
		desc = append(desc, "Services: "+strings.Join(lead.Services, ", "))
	}
	if lead.SourceLocation != "" {
		desc = append(desc, "Spotted at: "+lead.SourceLocation)
	}
	desc = append(desc, fmt.Sprintf("Score: %.0f", lead.LeadScore))
	if lead.QualificationNotes != "" {
		desc = append(desc, lead.QualificationNotes)
	}
	desc = append(desc, "Field Snap lead "+lead.ID)
	fields["Description"] = strings.Join(desc, "\n")
	return fields
}

func rating(lead *model.Lead) string {
	switch {
	case lead.QualificationStatus != model.Qualified:
		return "Cold"
	case lead.LeadScore >= hotScore:
		return "Hot"
	default:
		return "Warm"
	}
}
