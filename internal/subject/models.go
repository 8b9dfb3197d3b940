package subject

import (
	"context"

	"github.com/sells-group/fieldsnap/internal/extract"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/pkg/anthropic"
	"github.com/sells-group/fieldsnap/pkg/gemini"
)

// Backend names accepted in subject.backend.
const (
	BackendGemini = "gemini"
	BackendClaude = "claude"
)

// VisionModel answers a free-form prompt about a single image.
type VisionModel interface {
	Name() string
	Describe(ctx context.Context, imageURL, prompt string) (string, error)
}

// GeminiModel runs the analysis on a Gemini model. Images are always
// sent inline.
type GeminiModel struct {
	client  gemini.Client
	model   string
	fetcher *extract.Fetcher
}

// NewGeminiModel creates a Gemini-backed VisionModel.
func NewGeminiModel(client gemini.Client, model string, fetcher *extract.Fetcher) *GeminiModel {
	if fetcher == nil {
		fetcher = extract.NewFetcher(nil)
	}
	return &GeminiModel{client: client, model: model, fetcher: fetcher}
}

// Name implements VisionModel.
func (g *GeminiModel) Name() string { return BackendGemini }

// Describe implements VisionModel.
func (g *GeminiModel) Describe(ctx context.Context, imageURL, prompt string) (string, error) {
	img, err := g.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", resilience.Unavailable(g.Name(), err)
	}

	temp := float32(0.1)
	resp, err := g.client.GenerateFromImage(ctx, gemini.ImageRequest{
		Model:       g.model,
		Prompt:      prompt,
		Image:       img.Data,
		MIMEType:    img.MediaType,
		JSON:        true,
		Temperature: &temp,
	})
	if err != nil {
		return "", resilience.ClassifyStatus(g.Name(), gemini.StatusCode(err), err)
	}
	return resp.Text, nil
}

// ClaudeModel runs the analysis on a Claude vision model.
type ClaudeModel struct {
	client  anthropic.Client
	model   string
	fetcher *extract.Fetcher
}

// NewClaudeModel creates a Claude-backed VisionModel.
func NewClaudeModel(client anthropic.Client, model string, fetcher *extract.Fetcher) *ClaudeModel {
	if fetcher == nil {
		fetcher = extract.NewFetcher(nil)
	}
	return &ClaudeModel{client: client, model: model, fetcher: fetcher}
}

// Name implements VisionModel.
func (c *ClaudeModel) Name() string { return BackendClaude }

// Describe implements VisionModel.
func (c *ClaudeModel) Describe(ctx context.Context, imageURL, prompt string) (string, error) {
	img := anthropic.ImageFromURL(imageURL)
	if !extract.IsRemote(imageURL) {
		local, err := c.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return "", resilience.Unavailable(c.Name(), err)
		}
		img = anthropic.ImageFromBytes(local.MediaType, local.Data)
	}

	text, err := anthropic.Describe(ctx, c.client, c.model, 4096, img, prompt)
	if err != nil && text == "" {
		return "", resilience.ClassifyStatus(c.Name(), anthropic.StatusCode(err), err)
	}
	// A truncated reply is still handed to the parser; the heuristic
	// fallback covers JSON that was cut short.
	return text, nil
}

