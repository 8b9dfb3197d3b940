package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.regularOpeningHours.weekdayDescriptions")

		var body textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC Plumbing 555-123-4567", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[{
			"displayName":{"text":"ABC Plumbing"},
			"rating":4.6,
			"userRatingCount":60,
			"websiteUri":"https://abcplumbing.com",
			"regularOpeningHours":{"weekdayDescriptions":["Monday: 8:00 AM – 5:00 PM","Sunday: Closed"]}
		}]}`))
	}))
	defer srv.Close()

	client := NewPlacesClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), "ABC Plumbing 555-123-4567")

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	p := resp.Places[0]
	assert.Equal(t, "ABC Plumbing", p.DisplayName.Text)
	assert.InDelta(t, 4.6, p.Rating, 0.001)
	assert.Equal(t, 60, p.UserRatingCount)
	assert.Equal(t, "https://abcplumbing.com", p.WebsiteURI)
	require.NotNil(t, p.RegularOpeningHours)
	assert.Len(t, p.RegularOpeningHours.WeekdayDescriptions, 2)
}

func TestTextSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewPlacesClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), "Nonexistent")
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "quota"}`))
	}))
	defer srv.Close()

	resp, err := NewPlacesClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}

func TestTextSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewPlacesClient("k", WithBaseURL(srv.URL)).TextSearch(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}

func TestWithRateLimit(t *testing.T) {
	c := newHTTPClient("k", "http://x", []Option{WithRateLimit(5)})
	require.NotNil(t, c.limiter)
	assert.Equal(t, 5, c.limiter.Burst())

	c = newHTTPClient("k", "http://x", []Option{WithRateLimit(0)})
	assert.Nil(t, c.limiter)
}
