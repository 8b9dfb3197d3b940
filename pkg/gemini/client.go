// Package gemini wraps the Google genai SDK for single-image vision
// prompts.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client defines the Gemini operations used by the pipeline.
type Client interface {
	GenerateFromImage(ctx context.Context, req ImageRequest) (*Response, error)
}

// ImageRequest is one prompt over one inline image.
type ImageRequest struct {
	Model       string
	Prompt      string
	Image       []byte
	MIMEType    string
	JSON        bool
	Temperature *float32
}

// Response is the model's text reply plus token usage.
type Response struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

// StatusCode returns the HTTP status of a genai API error in err's chain,
// or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// Option configures the client.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = hc
	}
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cfg)
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: c}, nil
}

func (c *sdkClient) GenerateFromImage(ctx context.Context, req ImageRequest) (*Response, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image, req.MIMEType),
		genai.NewPartFromText(req.Prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	gcfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.JSON {
		gcfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, gcfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := &Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	zap.L().Debug("gemini: generate content",
		zap.String("model", req.Model),
		zap.Int32("input_tokens", out.InputTokens),
		zap.Int32("output_tokens", out.OutputTokens),
	)
	return out, nil
}
