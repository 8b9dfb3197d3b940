package anthropic

import (
	"context"
	"encoding/base64"

	"github.com/rotisserie/eris"
)

// ImageFromURL builds a URL image input.
func ImageFromURL(url string) Image {
	return Image{URL: url}
}

// ImageFromBytes builds an inline base64 image input.
func ImageFromBytes(mediaType string, data []byte) Image {
	return Image{MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(data)}
}

// Describe sends one image with a prompt and returns the model's text
// reply.
func Describe(ctx context.Context, client Client, model string, maxTokens int64, img Image, prompt string) (string, error) {
	resp, err := client.CreateMessage(ctx, MessageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []Message{{
			Role:    "user",
			Content: prompt,
			Images:  []Image{img},
		}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(model, "vision")
	if resp.StopReason == "max_tokens" {
		return resp.Text(), eris.Errorf("anthropic: response truncated at %d tokens", maxTokens)
	}
	return resp.Text(), nil
}
