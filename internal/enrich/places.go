package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/textparse"
	"github.com/sells-group/fieldsnap/pkg/google"
)

// PlacesEnricher reads rating, review count, opening hours and website
// from Google Places text search.
type PlacesEnricher struct {
	client google.PlacesClient
}

// NewPlacesEnricher creates a PlacesEnricher.
func NewPlacesEnricher(client google.PlacesClient) *PlacesEnricher {
	return &PlacesEnricher{client: client}
}

// Name implements Enricher.
func (p *PlacesEnricher) Name() string { return "google_places" }

// EnrichBusiness implements Enricher. No match is an empty result, not
// an error.
func (p *PlacesEnricher) EnrichBusiness(ctx context.Context, q Query) (*model.Enrichment, error) {
	query := placesQuery(q)
	if query == "" {
		return &model.Enrichment{}, nil
	}

	resp, err := p.client.TextSearch(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "places: text search %q", query)
	}
	place := bestPlace(resp.Places, q)
	if place == nil {
		return &model.Enrichment{}, nil
	}
	return placeEnrichment(place), nil
}

func placesQuery(q Query) string {
	var parts []string
	if n := strings.TrimSpace(q.Name); n != "" {
		parts = append(parts, n)
	}
	switch {
	case strings.TrimSpace(q.Address) != "":
		parts = append(parts, strings.TrimSpace(q.Address))
	case strings.TrimSpace(q.Phone) != "":
		parts = append(parts, strings.TrimSpace(q.Phone))
	}
	return strings.Join(parts, " ")
}

// bestPlace prefers a result whose phone matches the query, then one whose
// name contains the queried name, then the first result.
func bestPlace(places []google.Place, q Query) *google.Place {
	if len(places) == 0 {
		return nil
	}
	if want := textparse.Digits(q.Phone); len(want) >= 7 {
		for i := range places {
			got := textparse.Digits(places[i].NationalPhoneNumber)
			if got != "" && (strings.HasSuffix(got, want) || strings.HasSuffix(want, got)) {
				return &places[i]
			}
		}
	}
	if name := strings.ToLower(strings.TrimSpace(q.Name)); name != "" {
		for i := range places {
			if strings.Contains(strings.ToLower(places[i].DisplayName.Text), name) {
				return &places[i]
			}
		}
	}
	return &places[0]
}

func placeEnrichment(p *google.Place) *model.Enrichment {
	e := &model.Enrichment{Website: p.WebsiteURI}
	if p.UserRatingCount > 0 || p.Rating > 0 {
		e.Reviews = []model.ReviewSource{{
			Source: "google",
			Count:  p.UserRatingCount,
			Rating: p.Rating,
			URL:    p.GoogleMapsURI,
		}}
	}
	if p.RegularOpeningHours != nil {
		e.BusinessHours = parseWeekdayDescriptions(p.RegularOpeningHours.WeekdayDescriptions)
	}
	return e
}

// parseWeekdayDescriptions turns "Monday: 8:00 AM – 5:00 PM" entries into
// a day → hours map. Closed days are omitted.
func parseWeekdayDescriptions(descs []string) map[string]string {
	hours := make(map[string]string, len(descs))
	for _, d := range descs {
		day, span, ok := strings.Cut(d, ":")
		if !ok {
			continue
		}
		day = strings.ToLower(strings.TrimSpace(day))
		span = strings.TrimSpace(span)
		if day == "" || span == "" || strings.EqualFold(span, "closed") {
			continue
		}
		hours[day] = span
	}
	if len(hours) == 0 {
		return nil
	}
	return hours
}
