package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/internal/store"
)

type fakeIngester struct {
	st  store.Store
	err error
}

func (f *fakeIngester) Ingest(ctx context.Context, req model.IngestRequest) (*model.Lead, error) {
	if f.err != nil {
		return nil, f.err
	}
	if req.ImageURL == "" {
		return nil, &resilience.ValidationError{Field: "imageUrl", Reason: "is required"}
	}
	return f.st.CreateLead(ctx, model.NewLead{ImageURL: req.ImageURL})
}

type fakeDispatcher struct {
	ids []string
	err error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, leadID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.ids = append(f.ids, leadID)
	return "proc-" + leadID, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore, *fakeIngester, *fakeDispatcher) {
	t.Helper()
	st := store.NewMemory()
	ing := &fakeIngester{st: st}
	disp := &fakeDispatcher{}
	srv := NewServer(Deps{
		Ingester:   ing,
		Dispatcher: disp,
		Leads:      st,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st, ing, disp
}

func postIngest(t *testing.T, url, body string) (*http.Response, model.IngestResponse) {
	t.Helper()
	resp, err := http.Post(url+"/api/ingest", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out model.IngestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetricsRoute(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngest_Accepted(t *testing.T) {
	ts, st, _, disp := newTestServer(t)

	resp, out := postIngest(t, ts.URL, `{"imageUrl":"https://img.example.com/a.jpg"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, out.Success)
	require.NotEmpty(t, out.LeadID)
	assert.Equal(t, "proc-"+out.LeadID, out.ProcessingID)
	assert.Equal(t, []string{out.LeadID}, disp.ids)

	lead, err := st.GetLead(context.Background(), out.LeadID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, model.StatusReceived, lead.ProcessingStatus)
}

func TestIngest_ValidationError(t *testing.T) {
	ts, _, _, disp := newTestServer(t)

	resp, out := postIngest(t, ts.URL, `{"sourceNotes":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "imageUrl")
	assert.Empty(t, out.LeadID)
	assert.Empty(t, disp.ids)
}

func TestIngest_BadJSON(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp, out := postIngest(t, ts.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestIngest_PersistenceError(t *testing.T) {
	ts, _, ing, _ := newTestServer(t)
	ing.err = resilience.Persistence("create_lead", errors.New("disk full"))

	resp, out := postIngest(t, ts.URL, `{"imageUrl":"https://img.example.com/a.jpg"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, out.Success)
	assert.NotContains(t, out.Message, "disk full")
}

func TestIngest_DispatchFailureStillAccepted(t *testing.T) {
	ts, _, _, disp := newTestServer(t)
	disp.err = errors.New("redis down")

	resp, out := postIngest(t, ts.URL, `{"imageUrl":"https://img.example.com/a.jpg"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.LeadID)
	assert.Empty(t, out.ProcessingID)
}

func TestGetLead(t *testing.T) {
	ts, st, _, _ := newTestServer(t)
	lead, err := st.CreateLead(context.Background(), model.NewLead{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/leads/" + lead.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Lead
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, lead.ID, got.ID)

	missing, err := http.Get(ts.URL + "/api/leads/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListLeads(t *testing.T) {
	ts, st, _, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		_, err := st.CreateLead(context.Background(), model.NewLead{ImageURL: "https://img.example.com/a.jpg"})
		require.NoError(t, err)
	}

	resp, err := http.Get(ts.URL + "/api/leads?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Leads []model.Lead `json:"leads"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)

	bad, err := http.Get(ts.URL + "/api/leads?limit=abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/ingest", strings.NewReader(""))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
