package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadObject is the Salesforce sObject name for leads.
const LeadObject = "Lead"

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	Company     string `json:"Company" salesforce:"Company"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Phone       string `json:"Phone" salesforce:"Phone"`
	Email       string `json:"Email" salesforce:"Email"`
	Website     string `json:"Website" salesforce:"Website"`
	Status      string `json:"Status" salesforce:"Status"`
	LeadSource  string `json:"LeadSource" salesforce:"LeadSource"`
	Description string `json:"Description" salesforce:"Description"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "Company", "LastName", "Phone", "Email", "Website",
	"Status", "LeadSource", "Description",
}

// FindLeadByPhone returns the first open Lead with the given phone, or nil.
func FindLeadByPhone(ctx context.Context, c Client, phone string) (*Lead, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, nil
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Phone = '%s' AND IsConverted = false LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(phone),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by phone %s", phone))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// CreateLead creates a Lead record and returns its Salesforce ID.
func CreateLead(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Company"] == nil || fields["Company"] == "" {
		return "", eris.New("sf: lead Company is required")
	}
	if fields["LastName"] == nil || fields["LastName"] == "" {
		return "", eris.New("sf: lead LastName is required")
	}
	id, err := c.InsertOne(ctx, LeadObject, fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

// UpdateLead updates a Lead record with the given fields.
func UpdateLead(ctx context.Context, c Client, leadID string, fields map[string]any) error {
	if leadID == "" {
		return eris.New("sf: lead id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, LeadObject, leadID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update lead %s", leadID))
	}
	return nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
