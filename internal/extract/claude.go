package extract

import (
	"context"
	"strings"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
)

// claudeConfidence is reported for every non-empty Claude transcription;
// the API exposes no per-token confidence.
const claudeConfidence = 0.85

const transcribePrompt = `Transcribe every piece of legible text in this image exactly as it appears.
Keep the original line breaks. Include business names, phone numbers, emails,
websites, addresses and service lists. Do not describe the image, add commentary
or correct spelling. If there is no legible text, reply with an empty response.`

// ClaudeVision extracts text with a Claude vision model.
type ClaudeVision struct {
	client  anthropic.Client
	model   string
	fetcher *Fetcher
}

// NewClaudeVision creates a Claude vision provider. A nil client makes the
// provider unavailable.
func NewClaudeVision(client anthropic.Client, model string, fetcher *Fetcher) *ClaudeVision {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	return &ClaudeVision{client: client, model: model, fetcher: fetcher}
}

// Name implements Provider.
func (c *ClaudeVision) Name() string { return ProviderClaudeVision }

// IsAvailable reports whether an API client is configured.
func (c *ClaudeVision) IsAvailable() bool { return c.client != nil && c.model != "" }

// ExtractText implements Provider. Remote images are passed by URL;
// local images are sent inline.
func (c *ClaudeVision) ExtractText(ctx context.Context, imageURL string) (*model.ExtractionResult, error) {
	img := anthropic.ImageFromURL(imageURL)
	if !IsRemote(imageURL) {
		local, err := c.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return nil, resilience.Unavailable(c.Name(), err)
		}
		img = anthropic.ImageFromBytes(local.MediaType, local.Data)
	}

	text, err := anthropic.Describe(ctx, c.client, c.model, 2048, img, transcribePrompt)
	if err != nil && text == "" {
		return nil, resilience.ClassifyStatus(c.Name(), anthropic.StatusCode(err), err)
	}

	text = strings.TrimSpace(text)
	return &model.ExtractionResult{
		Text:       text,
		Confidence: claudeConfidence,
		Provider:   c.Name(),
	}, nil
}

