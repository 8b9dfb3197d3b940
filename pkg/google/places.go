package google

import (
	"context"
	"strings"
)

const defaultPlacesBaseURL = "https://places.googleapis.com/v1"

// placesFieldMask selects the fields enrichment reads.
var placesFieldMask = strings.Join([]string{
	"places.displayName",
	"places.rating",
	"places.userRatingCount",
	"places.websiteUri",
	"places.nationalPhoneNumber",
	"places.formattedAddress",
	"places.googleMapsUri",
	"places.regularOpeningHours.weekdayDescriptions",
}, ",")

// PlacesClient performs Google Places API operations.
type PlacesClient interface {
	TextSearch(ctx context.Context, query string) (*TextSearchResponse, error)
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	DisplayName         DisplayName   `json:"displayName"`
	Rating              float64       `json:"rating"`
	UserRatingCount     int           `json:"userRatingCount"`
	WebsiteURI          string        `json:"websiteUri,omitempty"`
	NationalPhoneNumber string        `json:"nationalPhoneNumber,omitempty"`
	FormattedAddress    string        `json:"formattedAddress,omitempty"`
	GoogleMapsURI       string        `json:"googleMapsUri,omitempty"`
	RegularOpeningHours *OpeningHours `json:"regularOpeningHours,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// OpeningHours holds the human-readable weekly schedule, one entry per
// weekday, e.g. "Monday: 8:00 AM – 5:00 PM".
type OpeningHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

// NewPlacesClient creates a Google Places API client.
func NewPlacesClient(apiKey string, opts ...Option) PlacesClient {
	return &placesClient{newHTTPClient(apiKey, defaultPlacesBaseURL, opts)}
}

type placesClient struct {
	*httpClient
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
}

func (c *placesClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	var result TextSearchResponse
	headers := map[string]string{"X-Goog-FieldMask": placesFieldMask}
	if err := c.postJSON(ctx, "/places:searchText", headers, textSearchRequest{TextQuery: query}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
