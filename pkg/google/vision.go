package google

import (
	"context"
	"encoding/base64"
	"net/http"
)

const defaultVisionBaseURL = "https://vision.googleapis.com/v1"

// Google RPC status codes surfaced in per-image annotate errors.
const (
	rpcDeadlineExceeded  = 4
	rpcResourceExhausted = 8
)

// VisionClient performs Cloud Vision text detection.
type VisionClient interface {
	DetectText(ctx context.Context, img VisionImage) (*TextDetection, error)
}

// VisionImage is either a public URI or inline image bytes.
type VisionImage struct {
	URI     string
	Content []byte
}

// TextDetection is the TEXT_DETECTION result for one image. The first
// annotation spans the full text; the rest are individual words.
type TextDetection struct {
	Annotations []TextAnnotation
	FullText    string
}

// TextAnnotation is one detected text region.
type TextAnnotation struct {
	Description  string       `json:"description"`
	Locale       string       `json:"locale,omitempty"`
	BoundingPoly BoundingPoly `json:"boundingPoly"`
}

// BoundingPoly outlines a text region.
type BoundingPoly struct {
	Vertices []Vertex `json:"vertices"`
}

// Vertex is one polygon corner in pixel coordinates.
type Vertex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewVisionClient creates a Cloud Vision API client.
func NewVisionClient(apiKey string, opts ...Option) VisionClient {
	return &visionClient{newHTTPClient(apiKey, defaultVisionBaseURL, opts)}
}

type visionClient struct {
	*httpClient
}

type annotateRequest struct {
	Requests []annotateImageRequest `json:"requests"`
}

type annotateImageRequest struct {
	Image    visionImagePayload `json:"image"`
	Features []visionFeature    `json:"features"`
}

type visionImagePayload struct {
	Content string             `json:"content,omitempty"`
	Source  *visionImageSource `json:"source,omitempty"`
}

type visionImageSource struct {
	ImageURI string `json:"imageUri"`
}

type visionFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []annotateImageResponse `json:"responses"`
}

type annotateImageResponse struct {
	TextAnnotations    []TextAnnotation `json:"textAnnotations"`
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation,omitempty"`
	Error *rpcStatus `json:"error,omitempty"`
}

type rpcStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *visionClient) DetectText(ctx context.Context, img VisionImage) (*TextDetection, error) {
	payload := visionImagePayload{}
	if len(img.Content) > 0 {
		payload.Content = base64.StdEncoding.EncodeToString(img.Content)
	} else {
		payload.Source = &visionImageSource{ImageURI: img.URI}
	}

	req := annotateRequest{Requests: []annotateImageRequest{{
		Image:    payload,
		Features: []visionFeature{{Type: "TEXT_DETECTION"}},
	}}}

	var resp annotateResponse
	if err := c.postJSON(ctx, "/images:annotate", nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return &TextDetection{}, nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, &APIError{StatusCode: rpcToHTTP(r.Error.Code), Body: r.Error.Message}
	}

	out := &TextDetection{Annotations: r.TextAnnotations}
	switch {
	case r.FullTextAnnotation != nil:
		out.FullText = r.FullTextAnnotation.Text
	case len(r.TextAnnotations) > 0:
		out.FullText = r.TextAnnotations[0].Description
	}
	return out, nil
}

func rpcToHTTP(code int) int {
	switch code {
	case rpcResourceExhausted:
		return http.StatusTooManyRequests
	case rpcDeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
