package extract

import (
	"context"
	"strings"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/pkg/google"
)

// cloudVisionConfidence is reported for every non-empty detection;
// TEXT_DETECTION returns no confidence score.
const cloudVisionConfidence = 0.9

// CloudVision extracts text with Google Cloud Vision TEXT_DETECTION.
type CloudVision struct {
	client  google.VisionClient
	fetcher *Fetcher
}

// NewCloudVision creates a Cloud Vision provider. A nil client makes the
// provider unavailable.
func NewCloudVision(client google.VisionClient, fetcher *Fetcher) *CloudVision {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	return &CloudVision{client: client, fetcher: fetcher}
}

// Name implements Provider.
func (c *CloudVision) Name() string { return ProviderCloudVision }

// IsAvailable reports whether an API client is configured.
func (c *CloudVision) IsAvailable() bool { return c.client != nil }

// ExtractText implements Provider. The first annotation is the full text;
// the remaining word annotations become bounding boxes.
func (c *CloudVision) ExtractText(ctx context.Context, imageURL string) (*model.ExtractionResult, error) {
	in := google.VisionImage{URI: imageURL}
	if !IsRemote(imageURL) {
		local, err := c.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return nil, resilience.Unavailable(c.Name(), err)
		}
		in = google.VisionImage{Content: local.Data}
	}

	det, err := c.client.DetectText(ctx, in)
	if err != nil {
		return nil, resilience.ClassifyStatus(c.Name(), google.StatusCode(err), err)
	}

	res := &model.ExtractionResult{
		Text:       strings.TrimSpace(det.FullText),
		Confidence: cloudVisionConfidence,
		Provider:   c.Name(),
	}
	for i, a := range det.Annotations {
		if i == 0 {
			continue
		}
		res.BoundingBoxes = append(res.BoundingBoxes, boxFromPoly(a))
	}
	return res, nil
}

func boxFromPoly(a google.TextAnnotation) model.BoundingBox {
	box := model.BoundingBox{Text: a.Description, Confidence: cloudVisionConfidence}
	vs := a.BoundingPoly.Vertices
	if len(vs) == 0 {
		return box
	}
	minX, minY, maxX, maxY := vs[0].X, vs[0].Y, vs[0].X, vs[0].Y
	for _, v := range vs[1:] {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}
	box.X, box.Y = minX, minY
	box.Width, box.Height = maxX-minX, maxY-minY
	return box
}
