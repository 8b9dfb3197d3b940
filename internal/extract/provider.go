// Package extract turns a business-ad image into raw text through an
// ordered chain of interchangeable providers.
package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
)

// Provider names.
const (
	ProviderTesseract    = "tesseract"
	ProviderClaudeVision = "claude_vision"
	ProviderCloudVision  = "cloud_vision"
)

// DefaultPriority is the provider order used when none is configured.
var DefaultPriority = []string{ProviderTesseract, ProviderClaudeVision, ProviderCloudVision}

// errNoText marks a provider call that succeeded but recognised nothing.
var errNoText = eris.New("no text detected")

// Provider is one text-extraction backend. Failures are
// *resilience.ProviderError values of kind unavailable, timeout or
// rate_limited.
type Provider interface {
	Name() string
	IsAvailable() bool
	ExtractText(ctx context.Context, imageURL string) (*model.ExtractionResult, error)
}
