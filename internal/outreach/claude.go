package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
)

const claudeSystem = `You write short, friendly first-contact messages from a small web agency
to local businesses that were spotted advertising in the field. Never invent facts
that are not in the lead data. Respond with JSON only:
{"sms": "at most 160 characters", "email": "subject line, blank line, then body"}`

// ClaudeGenerator drafts outreach with Claude and falls back to templates
// when the call or its output fails.
type ClaudeGenerator struct {
	client   anthropic.Client
	model    string
	fallback *TemplateGenerator
}

// NewClaudeGenerator creates a ClaudeGenerator.
func NewClaudeGenerator(client anthropic.Client, model string, fallback *TemplateGenerator) *ClaudeGenerator {
	if fallback == nil {
		fallback = NewTemplateGenerator("", "")
	}
	return &ClaudeGenerator{client: client, model: model, fallback: fallback}
}

type claudeDrafts struct {
	SMS   string `json:"sms"`
	Email string `json:"email"`
}

// Generate implements Generator.
func (g *ClaudeGenerator) Generate(ctx context.Context, lead *model.Lead) (*model.OutreachDrafts, error) {
	if lead == nil {
		return nil, eris.New("outreach: nil lead")
	}
	drafts, err := g.generate(ctx, lead)
	if err != nil {
		zap.L().Warn("outreach: claude generation failed, using templates",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return g.fallback.Generate(ctx, lead)
	}
	return drafts, nil
}

func (g *ClaudeGenerator) generate(ctx context.Context, lead *model.Lead) (*model.OutreachDrafts, error) {
	preview := g.fallback.PreviewURL(lead.ID)
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 1024,
		System:    []anthropic.SystemBlock{{Text: claudeSystem}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: leadPrompt(lead, preview, g.fallback.sender),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "outreach: create message")
	}
	resp.Usage.LogCost(g.model, "outreach")

	var out claudeDrafts
	if err := json.Unmarshal([]byte(extractJSON(resp.Text())), &out); err != nil {
		return nil, eris.Wrap(err, "outreach: parse drafts")
	}
	if strings.TrimSpace(out.SMS) == "" || strings.TrimSpace(out.Email) == "" {
		return nil, eris.New("outreach: empty draft")
	}
	return &model.OutreachDrafts{
		SMSDraft:   clip(out.SMS, smsLimit),
		EmailDraft: strings.TrimSpace(out.Email),
		PreviewURL: preview,
	}, nil
}

func leadPrompt(lead *model.Lead, preview, sender string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sender: %s\n", sender)
	fmt.Fprintf(&b, "Business: %s\n", lead.BusinessName)
	if len(lead.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(lead.Services, ", "))
	}
	if lead.SourceLocation != "" {
		fmt.Fprintf(&b, "Spotted near: %s\n", lead.SourceLocation)
	}
	if lead.SubjectDescription != "" {
		fmt.Fprintf(&b, "What we saw: %s\n", lead.SubjectDescription)
	}
	if lead.Enrichment != nil {
		for _, r := range lead.Enrichment.Reviews {
			fmt.Fprintf(&b, "Reviews: %s\n", formatRating(r))
		}
	}
	if preview != "" {
		fmt.Fprintf(&b, "Preview link to include: %s\n", preview)
	}
	return b.String()
}

// extractJSON strips markdown fences and returns the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func formatRating(r model.ReviewSource) string {
	return fmt.Sprintf("%.1f stars from %d %s reviews", r.Rating, r.Count, r.Source)
}
