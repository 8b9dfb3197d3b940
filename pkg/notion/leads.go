// Package notion syncs leads into a Notion tracking database.
package notion

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client is the Notion surface the lead upsert needs. FindLeadPage
// returns "" when no page carries the lead ID.
type Client interface {
	FindLeadPage(ctx context.Context, dbID, leadID string) (string, error)
	CreateLeadPage(ctx context.Context, dbID string, props notionapi.Properties) (string, error)
	UpdateLeadPage(ctx context.Context, pageID string, props notionapi.Properties) (string, error)
}

// Option configures the client returned by NewClient.
type Option func(*client)

// WithRateLimit overrides the default 3 req/s throttle. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = nil
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithHTTPClient sets the transport used for Notion API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

type client struct {
	api        *notionapi.Client
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a rate-limited Client for an integration token.
func NewClient(token string, opts ...Option) Client {
	c := &client{limiter: rate.NewLimiter(3, 1)}
	for _, opt := range opts {
		opt(c)
	}
	var apiOpts []notionapi.ClientOption
	if c.httpClient != nil {
		apiOpts = append(apiOpts, notionapi.WithHTTPClient(c.httpClient))
	}
	c.api = notionapi.NewClient(notionapi.Token(token), apiOpts...)
	return c
}

func (c *client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notion: rate limit")
	}
	return nil
}

func (c *client) FindLeadPage(ctx context.Context, dbID, leadID string) (string, error) {
	if err := c.throttle(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), leadQuery(leadID))
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: query database %s", dbID))
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

func (c *client) CreateLeadPage(ctx context.Context, dbID string, props notionapi.Properties) (string, error) {
	if err := c.throttle(ctx); err != nil {
		return "", err
	}
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create page")
	}
	return string(page.ID), nil
}

func (c *client) UpdateLeadPage(ctx context.Context, pageID string, props notionapi.Properties) (string, error) {
	if err := c.throttle(ctx); err != nil {
		return "", err
	}
	page, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: props})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: update page %s", pageID))
	}
	return string(page.ID), nil
}

// leadQuery matches the single page whose Lead ID equals leadID.
func leadQuery(leadID string) *notionapi.DatabaseQueryRequest {
	return &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropLeadID,
			RichText: &notionapi.TextFilterCondition{Equals: leadID},
		},
		PageSize: 1,
	}
}

// Property names in the lead tracking database.
const (
	PropName          = "Name"
	PropLeadID        = "Lead ID"
	PropPhone         = "Phone"
	PropEmail         = "Email"
	PropWebsite       = "Website"
	PropServices      = "Services"
	PropScore         = "Score"
	PropQualification = "Qualification"
	PropLocation      = "Location"
)

// LeadRow is the subset of a lead written to Notion.
type LeadRow struct {
	LeadID        string
	BusinessName  string
	Phone         string
	Email         string
	Website       string
	Services      []string
	Score         float64
	Qualification string
	Location      string
}

// LeadProperties builds page properties for a lead row. Empty optional
// values are omitted so they do not clear existing cells on update.
func LeadProperties(row LeadRow) notionapi.Properties {
	name := strings.TrimSpace(row.BusinessName)
	if name == "" {
		name = "Unknown business"
	}
	props := notionapi.Properties{
		PropName:   notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText(name)},
		PropLeadID: notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(row.LeadID)},
		PropScore:  notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: row.Score},
	}
	if row.Qualification != "" {
		props[PropQualification] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: row.Qualification},
		}
	}
	if row.Phone != "" {
		props[PropPhone] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(row.Phone)}
	}
	if row.Email != "" {
		props[PropEmail] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(row.Email)}
	}
	if row.Website != "" {
		props[PropWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: row.Website}
	}
	if row.Location != "" {
		props[PropLocation] = notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(row.Location)}
	}
	if len(row.Services) > 0 {
		opts := make([]notionapi.Option, 0, len(row.Services))
		for _, s := range row.Services {
			// Notion rejects commas in select option names.
			opts = append(opts, notionapi.Option{Name: strings.ReplaceAll(s, ",", " ")})
		}
		props[PropServices] = notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
	}
	return props
}

// UpsertLead updates the lead's existing page or creates one, returning
// the page ID.
func UpsertLead(ctx context.Context, c Client, dbID string, row LeadRow) (string, error) {
	if row.LeadID == "" {
		return "", eris.New("notion: lead id is required")
	}
	props := LeadProperties(row)

	pageID, err := c.FindLeadPage(ctx, dbID, row.LeadID)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: find lead %s", row.LeadID))
	}
	if pageID != "" {
		id, err := c.UpdateLeadPage(ctx, pageID, props)
		if err != nil {
			return "", eris.Wrap(err, fmt.Sprintf("notion: update lead %s", row.LeadID))
		}
		return id, nil
	}

	id, err := c.CreateLeadPage(ctx, dbID, props)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: create lead %s", row.LeadID))
	}
	return id, nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}
