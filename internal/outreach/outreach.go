// Package outreach drafts first-contact SMS and email copy for qualified
// leads.
package outreach

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
)

// Generator produces outreach drafts for a lead.
type Generator interface {
	Generate(ctx context.Context, lead *model.Lead) (*model.OutreachDrafts, error)
}

// smsLimit is the single-segment SMS length.
const smsLimit = 160

const smsTemplate = `Hi {{.Greeting}}, this is {{.Sender}}. We spotted your {{.Seen}} and put together a quick site preview for you{{if .PreviewURL}}: {{.PreviewURL}}{{end}}. Reply STOP to opt out.`

const emailTemplate = `Subject: A quick idea for {{.Business}}

Hi {{.Greeting}},

I came across {{.Business}}{{if .Location}} near {{.Location}}{{end}} and wanted to reach out.
{{- if .Services}}
It looks like you focus on {{.Services}}.
{{- end}}
{{- if .Rating}}
Your customers clearly like you: {{.Rating}}.
{{- end}}

We help local businesses turn word of mouth into booked jobs.
{{- if .PreviewURL}}
I mocked up a preview for you here: {{.PreviewURL}}
{{- end}}

Would you be open to a 10-minute call this week?

{{.Sender}}
`

var (
	smsTmpl   = template.Must(template.New("sms").Parse(smsTemplate))
	emailTmpl = template.Must(template.New("email").Parse(emailTemplate))
)

// templateData is the view model both templates render from.
type templateData struct {
	Business   string
	Greeting   string
	Seen       string
	Location   string
	Services   string
	Rating     string
	PreviewURL string
	Sender     string
}

// TemplateGenerator renders drafts from fixed text templates.
type TemplateGenerator struct {
	sender         string
	previewBaseURL string
}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator(sender, previewBaseURL string) *TemplateGenerator {
	if sender == "" {
		sender = "Field Snap"
	}
	return &TemplateGenerator{sender: sender, previewBaseURL: strings.TrimRight(previewBaseURL, "/")}
}

// Generate implements Generator.
func (g *TemplateGenerator) Generate(_ context.Context, lead *model.Lead) (*model.OutreachDrafts, error) {
	if lead == nil {
		return nil, eris.New("outreach: nil lead")
	}
	data := g.data(lead)

	var sms, email bytes.Buffer
	if err := smsTmpl.Execute(&sms, data); err != nil {
		return nil, eris.Wrap(err, "outreach: render sms")
	}
	if err := emailTmpl.Execute(&email, data); err != nil {
		return nil, eris.Wrap(err, "outreach: render email")
	}

	return &model.OutreachDrafts{
		SMSDraft:   clip(sms.String(), smsLimit),
		EmailDraft: strings.TrimSpace(email.String()),
		PreviewURL: data.PreviewURL,
	}, nil
}

func (g *TemplateGenerator) data(lead *model.Lead) templateData {
	business := strings.TrimSpace(lead.BusinessName)
	greeting := "there"
	if business != "" {
		greeting = business + " team"
	} else {
		business = "your business"
	}

	d := templateData{
		Business:   business,
		Greeting:   greeting,
		Seen:       "ad",
		Location:   lead.SourceLocation,
		PreviewURL: g.PreviewURL(lead.ID),
		Sender:     g.sender,
	}
	if len(lead.Services) > 0 {
		d.Services = joinList(lowerAll(lead.Services))
	}
	if lead.Enrichment != nil {
		for _, r := range lead.Enrichment.Reviews {
			if r.Rating >= 4 && r.Count > 0 {
				d.Rating = formatRating(r)
				break
			}
		}
	}
	return d
}

// PreviewURL returns the preview link for a lead, or "" when no preview
// base URL is configured.
func (g *TemplateGenerator) PreviewURL(leadID string) string {
	if g.previewBaseURL == "" || leadID == "" {
		return ""
	}
	return g.previewBaseURL + "/" + leadID
}

// FromConfig builds the configured generator. The Claude generator is used
// only when selected and a client is available.
func FromConfig(cfg config.OutreachConfig, client anthropic.Client, model string) Generator {
	tmpl := NewTemplateGenerator(cfg.SenderName, cfg.PreviewBaseURL)
	if cfg.Generator == "claude" && client != nil {
		return NewClaudeGenerator(client, model, tmpl)
	}
	return tmpl
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// joinList renders "a", "a and b" or "a, b and c".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
