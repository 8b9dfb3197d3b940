package leads

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldsnap/internal/enrich"
	"github.com/sells-group/fieldsnap/internal/extract"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/notify"
	"github.com/sells-group/fieldsnap/internal/outreach"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/internal/scorer"
	"github.com/sells-group/fieldsnap/internal/store"
)

const qualifiedText = "ABC Plumbing\n(555) 123-4567\ninfo@abcplumbing.com\nwww.abcplumbing.com"

type fakeChain struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeChain) Extract(_ context.Context, _ string) (*extract.Outcome, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &extract.Outcome{Result: &model.ExtractionResult{Text: f.text, Provider: "tesseract", Confidence: 0.8}}, nil
}

type fakeAnalyzer struct {
	analysis *model.SubjectAnalysis
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) (*model.SubjectAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

type fakeEnricher struct {
	enr *model.Enrichment
	err error
}

func (f *fakeEnricher) Name() string { return "fake" }

func (f *fakeEnricher) EnrichBusiness(_ context.Context, _ enrich.Query) (*model.Enrichment, error) {
	return f.enr, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.SystemNotification
	err  error
}

func (f *fakeNotifier) SendSystemNotification(_ context.Context, n model.SystemNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

type fakeGenerator struct {
	calls int
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, _ *model.Lead) (*model.OutreachDrafts, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.OutreachDrafts{SMSDraft: "hi", EmailDraft: "hello"}, nil
}

// flakyStore fails the failOn-th UpdateLead call and delegates every
// other call to the memory store.
type flakyStore struct {
	*store.MemoryStore
	failOn  int
	updates int
}

func (s *flakyStore) UpdateLead(ctx context.Context, id string, u model.LeadUpdate) (*model.Lead, error) {
	s.updates++
	if s.updates == s.failOn {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.UpdateLead(ctx, id, u)
}

type fakeCRM struct {
	calls int
	refs  map[string]string
	err   error
}

func (f *fakeCRM) SyncAll(_ context.Context, _ *model.Lead) (map[string]string, error) {
	f.calls++
	return f.refs, f.err
}

type fakeRecorder struct {
	stages []model.Stage
	leads  []model.ProcessingStatus
}

func (f *fakeRecorder) ObserveStage(s model.Stage, _ time.Duration) { f.stages = append(f.stages, s) }

func (f *fakeRecorder) ObserveLead(s model.ProcessingStatus, _ model.Qualification) {
	f.leads = append(f.leads, s)
}

type fixture struct {
	orch     *Orchestrator
	store    *store.MemoryStore
	chain    *fakeChain
	analyzer *fakeAnalyzer
	enricher *fakeEnricher
	notifier *fakeNotifier
	crm      *fakeCRM
	metrics  *fakeRecorder
	deps     Deps
}

// rebuild recreates the orchestrator after fn adjusts its collaborators.
func (f *fixture) rebuild(t *testing.T, fn func(*Deps)) {
	t.Helper()
	fn(&f.deps)
	var err error
	f.orch, err = New(f.deps)
	require.NoError(t, err)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sc, err := scorer.New(scorer.DefaultRules())
	require.NoError(t, err)

	f := &fixture{
		store: store.NewMemory(),
		chain: &fakeChain{text: qualifiedText},
		analyzer: &fakeAnalyzer{analysis: &model.SubjectAnalysis{
			Description: "a white van",
			PrimaryBusinessSubject: &model.BusinessSubject{
				Type:         model.SubjectVehicleWrap,
				BusinessData: model.BusinessData{BusinessName: "ABC Plumbing"},
				TextContent:  []string{"ABC Plumbing"},
			},
		}},
		enricher: &fakeEnricher{},
		notifier: &fakeNotifier{},
		crm:      &fakeCRM{refs: map[string]string{"salesforce": "00Q1"}},
		metrics:  &fakeRecorder{},
	}
	f.deps = Deps{
		Store:    f.store,
		Chain:    f.chain,
		Analyzer: f.analyzer,
		Enricher: f.enricher,
		Outreach: outreach.NewTemplateGenerator("Field Snap", "https://preview.example.com"),
		Notifier: f.notifier,
		CRM:      f.crm,
		Scorer:   sc,
		Metrics:  f.metrics,
	}
	f.orch, err = New(f.deps)
	require.NoError(t, err)
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestProcessLead_QualifiedEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.enricher.enr = &model.Enrichment{SocialMedia: map[string]string{"facebook": "https://facebook.com/abc"}}

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{
		ImageURL:       " https://img.example.com/van.jpg ",
		SourceLocation: "Main St",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.Equal(t, "https://img.example.com/van.jpg", lead.ImageURL)
	assert.Equal(t, "ABC Plumbing", lead.BusinessName)
	assert.Equal(t, "info@abcplumbing.com", lead.Email)
	assert.NotEmpty(t, lead.PhoneNumber)
	assert.NotEmpty(t, lead.Website)
	assert.Equal(t, "tesseract", lead.ExtractionProvider)
	assert.Equal(t, "a white van", lead.SubjectDescription)
	require.NotNil(t, lead.CrossValidationScore)

	assert.Equal(t, model.Qualified, lead.QualificationStatus)
	assert.GreaterOrEqual(t, lead.LeadScore, 60.0)
	require.NotNil(t, lead.Enrichment)
	assert.Contains(t, lead.Enrichment.SocialMedia, "facebook")

	require.NotNil(t, lead.Outreach)
	assert.NotEmpty(t, lead.Outreach.SMSDraft)
	assert.Equal(t, map[string]string{"salesforce": "00Q1"}, lead.CRMRefs)

	for _, s := range []model.Stage{model.StageExtraction, model.StageEnrichment, model.StageScoring, model.StageOutreach} {
		assert.True(t, lead.ProcessingSteps.Done(s), s)
	}

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.TypeLeadCompleted, f.notifier.sent[0].Type)
	assert.Equal(t, model.PriorityHigh, f.notifier.sent[0].Priority)
	assert.Equal(t, lead.ID, f.notifier.sent[0].Data["leadId"])

	assert.Len(t, f.metrics.stages, 4)
	assert.Equal(t, []model.ProcessingStatus{model.StatusCompleted}, f.metrics.leads)
}

func TestProcessLead_Unqualified(t *testing.T) {
	f := newFixture(t)
	f.chain.text = "OPEN 24 HOURS"
	f.analyzer.analysis = &model.SubjectAnalysis{}

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.Equal(t, model.Unqualified, lead.QualificationStatus)
	assert.Nil(t, lead.Outreach)
	assert.False(t, lead.ProcessingSteps.Done(model.StageOutreach))
	assert.Zero(t, f.crm.calls)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.PriorityLow, f.notifier.sent[0].Priority)
}

func TestProcessLead_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   model.IngestRequest
		field string
	}{
		{"missing url", model.IngestRequest{}, "imageUrl"},
		{"not http", model.IngestRequest{ImageURL: "ftp://x.example.com/a.jpg"}, "imageUrl"},
		{"notes too long", model.IngestRequest{ImageURL: "https://x.example.com/a.jpg", SourceNotes: string(make([]byte, 2001))}, "sourceNotes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.ProcessLead(context.Background(), tt.req)
			var ve *resilience.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	leads, err := f.store.ListLeads(context.Background(), model.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestProcessLead_ExtractionExhaustedFails(t *testing.T) {
	f := newFixture(t)
	f.chain.err = &resilience.ExhaustedError{Failures: []resilience.ProviderFailure{
		{Provider: "tesseract", Err: errors.New("boom")},
	}}

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, lead.ProcessingStatus)
	assert.Contains(t, lead.ProcessingError, "extraction")
	assert.Contains(t, lead.ProcessingError, "all providers exhausted")
	assert.False(t, lead.ProcessingSteps.Done(model.StageExtraction))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.TypeLeadFailed, f.notifier.sent[0].Type)
	assert.Equal(t, model.PriorityHigh, f.notifier.sent[0].Priority)
	assert.Equal(t, []model.ProcessingStatus{model.StatusFailed}, f.metrics.leads)
}

func TestProcessLead_AnalyzerUnavailableFails(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = resilience.Unavailable("gemini", errors.New("no key"))

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, lead.ProcessingStatus)
}

func TestProcessLead_AnalyzerTimeoutDegrades(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = resilience.Timeout("gemini", context.DeadlineExceeded)

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.Equal(t, "ABC Plumbing", lead.BusinessName)
	assert.Empty(t, lead.SubjectDescription)
}

func TestProcessLead_EnrichmentFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.enricher.err = errors.New("places down")

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.True(t, lead.ProcessingSteps.Done(model.StageEnrichment))
	assert.Nil(t, lead.Enrichment)
}

func TestProcessLead_EnrichmentFillsWebsite(t *testing.T) {
	f := newFixture(t)
	f.chain.text = "ABC Plumbing\n(555) 123-4567\ninfo@abcplumbing.com"
	f.enricher.enr = &model.Enrichment{Website: "abcplumbing.com"}

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://abcplumbing.com", lead.Website)
}

func TestProcessLead_CRMFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.crm.refs = nil
	f.crm.err = errors.New("salesforce down")

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.Empty(t, lead.CRMRefs)
}

func TestRun_TerminalIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lead, err := f.orch.ProcessLead(ctx, model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	again, err := f.orch.Run(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, int32(1), f.chain.calls.Load())

	_, err = f.orch.Resume(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestRun_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResume_SkipsCompletedStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lead, err := f.orch.Ingest(ctx, model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, lead.ProcessingStatus)

	status := model.StatusProcessing
	facts := model.CanonicalFacts{BusinessName: "Saved Co", PhoneNumber: "555-123-4567", Email: "a@saved.co"}
	_, err = f.store.UpdateLead(ctx, lead.ID, model.LeadUpdate{
		Status:    &status,
		Facts:     &facts,
		MarkSteps: []model.Stage{model.StageExtraction},
	})
	require.NoError(t, err)

	got, err := f.orch.Resume(ctx, lead.ID)
	require.NoError(t, err)
	assert.Zero(t, f.chain.calls.Load())
	assert.Equal(t, "Saved Co", got.BusinessName)
	assert.Equal(t, model.StatusCompleted, got.ProcessingStatus)
	assert.InDelta(t, 45, got.LeadScore, 0.001)
}

func TestRescore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lead, err := f.orch.Ingest(ctx, model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	_, err = f.orch.Rescore(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrNotExtracted)

	facts := model.CanonicalFacts{PhoneNumber: "555-123-4567"}
	_, err = f.store.UpdateLead(ctx, lead.ID, model.LeadUpdate{Facts: &facts, MarkSteps: []model.Stage{model.StageExtraction}})
	require.NoError(t, err)

	got, err := f.orch.Rescore(ctx, lead.ID)
	require.NoError(t, err)
	assert.InDelta(t, 25, got.LeadScore, 0.001)
	assert.Equal(t, model.Unqualified, got.QualificationStatus)
	assert.Equal(t, model.StatusReceived, got.ProcessingStatus)
}

func TestProcessLead_OutreachFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	f.rebuild(t, func(d *Deps) { d.Outreach = gen })

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	assert.Equal(t, model.Qualified, lead.QualificationStatus)
	assert.Nil(t, lead.Outreach)
	assert.False(t, lead.ProcessingSteps.Done(model.StageOutreach))
	assert.True(t, lead.ProcessingSteps.Done(model.StageScoring))

	stored, err := f.store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.False(t, stored.ProcessingSteps.Done(model.StageOutreach))
}

func TestProcessLead_NotifierErrorIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("webhook 502")

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, lead.ProcessingStatus)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.TypeLeadCompleted, f.notifier.sent[0].Type)

	f.chain.err = &resilience.ExhaustedError{Failures: []resilience.ProviderFailure{
		{Provider: "tesseract", Err: errors.New("boom")},
	}}
	failed, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.ProcessingStatus)
}

func TestProcessLead_PersistenceErrorAborts(t *testing.T) {
	f := newFixture(t)
	// update 1 marks processing, 2 stores extraction, 3 stores enrichment
	st := &flakyStore{MemoryStore: f.store, failOn: 3}
	f.rebuild(t, func(d *Deps) { d.Store = st })

	lead, err := f.orch.ProcessLead(context.Background(), model.IngestRequest{ImageURL: "https://img.example.com/a.jpg"})
	require.Error(t, err)
	assert.Nil(t, lead)

	var pe *resilience.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "update_lead", pe.Op)
	assert.Contains(t, err.Error(), "connection reset")

	leads, err := f.store.ListLeads(context.Background(), model.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	got := leads[0]
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Contains(t, got.ProcessingError, "connection reset")
	assert.True(t, got.ProcessingSteps.Done(model.StageExtraction))
	assert.False(t, got.ProcessingSteps.Done(model.StageEnrichment))
	assert.Empty(t, f.notifier.sent)
}
