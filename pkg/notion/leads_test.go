package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) FindLeadPage(ctx context.Context, dbID, leadID string) (string, error) {
	args := m.Called(ctx, dbID, leadID)
	return args.String(0), args.Error(1)
}

func (m *MockClient) CreateLeadPage(ctx context.Context, dbID string, props notionapi.Properties) (string, error) {
	args := m.Called(ctx, dbID, props)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateLeadPage(ctx context.Context, pageID string, props notionapi.Properties) (string, error) {
	args := m.Called(ctx, pageID, props)
	return args.String(0), args.Error(1)
}

func sampleRow() LeadRow {
	return LeadRow{
		LeadID:        "lead-1",
		BusinessName:  "ABC Plumbing",
		Phone:         "+15551234567",
		Website:       "https://abcplumbing.com",
		Services:      []string{"Plumbing", "Heating, Cooling"},
		Score:         72.5,
		Qualification: "qualified",
	}
}

func TestLeadProperties(t *testing.T) {
	props := LeadProperties(sampleRow())

	title := props[PropName].(notionapi.TitleProperty)
	assert.Equal(t, "ABC Plumbing", title.Title[0].Text.Content)
	assert.Equal(t, "lead-1", props[PropLeadID].(notionapi.RichTextProperty).RichText[0].Text.Content)
	assert.Equal(t, 72.5, props[PropScore].(notionapi.NumberProperty).Number)
	assert.Equal(t, "qualified", props[PropQualification].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "https://abcplumbing.com", props[PropWebsite].(notionapi.URLProperty).URL)

	services := props[PropServices].(notionapi.MultiSelectProperty).MultiSelect
	require.Len(t, services, 2)
	assert.Equal(t, "Heating  Cooling", services[1].Name)

	assert.NotContains(t, props, PropEmail)
	assert.NotContains(t, props, PropLocation)
}

func TestLeadProperties_UnknownName(t *testing.T) {
	props := LeadProperties(LeadRow{LeadID: "x"})
	assert.Equal(t, "Unknown business", props[PropName].(notionapi.TitleProperty).Title[0].Text.Content)
	assert.NotContains(t, props, PropServices)
	assert.NotContains(t, props, PropQualification)
}

func TestUpsertLead_Creates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("FindLeadPage", ctx, "db-leads", "lead-1").Return("", nil).Once()
	mc.On("CreateLeadPage", ctx, "db-leads", mock.MatchedBy(func(props notionapi.Properties) bool {
		return props[PropLeadID] != nil
	})).Return("page-new", nil).Once()

	id, err := UpsertLead(ctx, mc, "db-leads", sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "page-new", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_Updates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("FindLeadPage", ctx, "db-leads", "lead-1").Return("page-1", nil).Once()
	mc.On("UpdateLeadPage", ctx, "page-1", mock.AnythingOfType("notionapi.Properties")).
		Return("page-1", nil).Once()

	id, err := UpsertLead(ctx, mc, "db-leads", sampleRow())
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := UpsertLead(ctx, new(MockClient), "db", LeadRow{})
	assert.ErrorContains(t, err, "lead id is required")

	mc := new(MockClient)
	mc.On("FindLeadPage", ctx, "db", "lead-1").Return("", assert.AnError).Once()
	_, err = UpsertLead(ctx, mc, "db", sampleRow())
	assert.ErrorContains(t, err, "notion: find lead lead-1")

	mc = new(MockClient)
	mc.On("FindLeadPage", ctx, "db", "lead-1").Return("", nil).Once()
	mc.On("CreateLeadPage", ctx, "db", mock.Anything).Return("", assert.AnError).Once()
	_, err = UpsertLead(ctx, mc, "db", sampleRow())
	assert.ErrorContains(t, err, "notion: create lead lead-1")

	mc = new(MockClient)
	mc.On("FindLeadPage", ctx, "db", "lead-1").Return("page-1", nil).Once()
	mc.On("UpdateLeadPage", ctx, "page-1", mock.Anything).Return("", assert.AnError).Once()
	_, err = UpsertLead(ctx, mc, "db", sampleRow())
	assert.ErrorContains(t, err, "notion: update lead lead-1")
}

// redirectTransport sends every request to the test server.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewClient("test-token",
		WithRateLimit(0),
		WithHTTPClient(&http.Client{Transport: redirectTransport{target: u}}),
	)
}

func TestClient_FindLeadPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db-leads/query", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		filter := body["filter"].(map[string]any)
		assert.Equal(t, PropLeadID, filter["property"])
		assert.Equal(t, "lead-1", filter["rich_text"].(map[string]any)["equals"])
		assert.EqualValues(t, 1, body["page_size"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","results":[{"object":"page","id":"page-1"}],"has_more":false}`))
	})

	id, err := c.FindLeadPage(context.Background(), "db-leads", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
}

func TestClient_FindLeadPage_None(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","results":[],"has_more":false}`))
	})

	id, err := c.FindLeadPage(context.Background(), "db-leads", "lead-1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClient_CreateAndUpdate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["properties"], PropLeadID)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/pages":
			parent := body["parent"].(map[string]any)
			assert.Equal(t, "db-leads", parent["database_id"])
			_, _ = w.Write([]byte(`{"object":"page","id":"page-new"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/v1/pages/page-1":
			_, _ = w.Write([]byte(`{"object":"page","id":"page-1"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()
	props := LeadProperties(sampleRow())

	id, err := c.CreateLeadPage(ctx, "db-leads", props)
	require.NoError(t, err)
	assert.Equal(t, "page-new", id)

	id, err = c.UpdateLeadPage(ctx, "page-1", props)
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"bad filter"}`))
	})

	_, err := c.FindLeadPage(context.Background(), "db-leads", "lead-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query database db-leads")
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(10)).(*client)
	assert.Equal(t, 10.0, float64(c.limiter.Limit()))
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("test-token", WithRateLimit(0)).(*client)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.throttle(context.Background()))
}

func TestThrottle_Cancelled(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(0.001)).(*client)
	require.NoError(t, c.throttle(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorContains(t, c.throttle(ctx), "notion: rate limit")
}
