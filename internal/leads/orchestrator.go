// Package leads drives a business-ad photo through extraction, fusion,
// enrichment, scoring and outreach to a terminal lead record.
package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fieldsnap/internal/enrich"
	"github.com/sells-group/fieldsnap/internal/extract"
	"github.com/sells-group/fieldsnap/internal/fusion"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/notify"
	"github.com/sells-group/fieldsnap/internal/outreach"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/internal/scorer"
	"github.com/sells-group/fieldsnap/internal/store"
	"github.com/sells-group/fieldsnap/internal/textparse"
)

var (
	// ErrTerminal is returned by Resume for leads that already finished.
	ErrTerminal = eris.New("leads: lead already in a terminal state")
	// ErrNotExtracted is returned by Rescore before extraction completed.
	ErrNotExtracted = eris.New("leads: lead has no extracted facts")
)

// Extractor runs the text-extraction provider chain.
type Extractor interface {
	Extract(ctx context.Context, imageURL string) (*extract.Outcome, error)
}

// SubjectAnalyzer identifies the primary business subject in the image.
type SubjectAnalyzer interface {
	Analyze(ctx context.Context, imageURL string) (*model.SubjectAnalysis, error)
}

// CRMSyncer pushes a qualified lead into downstream CRMs.
type CRMSyncer interface {
	SyncAll(ctx context.Context, lead *model.Lead) (map[string]string, error)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	ObserveStage(stage model.Stage, d time.Duration)
	ObserveLead(status model.ProcessingStatus, qual model.Qualification)
}

// Dispatcher hands a created lead to whatever runs it and returns a
// processing ID for the ingestion response.
type Dispatcher interface {
	Dispatch(ctx context.Context, leadID string) (string, error)
}

// Deps are the orchestrator's collaborators. Store, Extractor, Analyzer
// and Scorer are required; the rest may be nil.
type Deps struct {
	Store    store.Store
	Chain    Extractor
	Analyzer SubjectAnalyzer
	Enricher enrich.Enricher
	Outreach outreach.Generator
	Notifier notify.Notifier
	CRM      CRMSyncer
	Scorer   *scorer.Scorer
	Metrics  Recorder
	Fusion   fusion.Config
}

// Orchestrator runs the lead state machine. It holds no per-lead state
// and is safe for concurrent use across leads.
type Orchestrator struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, eris.New("leads: store is required")
	case deps.Chain == nil:
		return nil, eris.New("leads: extraction chain is required")
	case deps.Analyzer == nil:
		return nil, eris.New("leads: subject analyzer is required")
	case deps.Scorer == nil:
		return nil, eris.New("leads: scorer is required")
	}
	if deps.Fusion.MaxServices <= 0 {
		deps.Fusion = fusion.DefaultConfig()
	}
	return &Orchestrator{deps: deps, validate: newValidator(), now: time.Now}, nil
}

// ProcessLead creates a lead from the request and runs it to a terminal
// state. Errors are returned only for invalid requests and persistence
// failures; stage failures are recorded on the returned lead.
func (o *Orchestrator) ProcessLead(ctx context.Context, req model.IngestRequest) (*model.Lead, error) {
	lead, err := o.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, lead.ID)
}

// Ingest validates the request and creates a received lead.
func (o *Orchestrator) Ingest(ctx context.Context, req model.IngestRequest) (*model.Lead, error) {
	if err := o.validateRequest(&req); err != nil {
		return nil, err
	}
	lead, err := o.deps.Store.CreateLead(ctx, model.NewLead{
		ImageURL:       req.ImageURL,
		SourceLocation: req.SourceLocation,
		SourceNotes:    req.SourceNotes,
	})
	if err != nil {
		return nil, resilience.Persistence("create_lead", err)
	}
	zap.L().Info("leads: lead received",
		zap.String("lead_id", lead.ID),
		zap.String("image_url", lead.ImageURL),
	)
	return lead, nil
}

// Resume continues a lead left in received or processing, skipping the
// stages it already completed.
func (o *Orchestrator) Resume(ctx context.Context, leadID string) (*model.Lead, error) {
	lead, err := o.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.ProcessingStatus.Terminal() {
		return lead, ErrTerminal
	}
	return o.run(ctx, lead)
}

// Run drives a lead through every incomplete stage. Running a terminal
// lead returns it unchanged.
func (o *Orchestrator) Run(ctx context.Context, leadID string) (*model.Lead, error) {
	lead, err := o.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.ProcessingStatus.Terminal() {
		return lead, nil
	}
	return o.run(ctx, lead)
}

// Rescore recomputes a lead's score from its persisted facts and
// enrichment. Status and other stages are left untouched.
func (o *Orchestrator) Rescore(ctx context.Context, leadID string) (*model.Lead, error) {
	lead, err := o.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !lead.ProcessingSteps.Done(model.StageExtraction) {
		return lead, ErrNotExtracted
	}
	res, err := o.deps.Scorer.Score(lead.Facts(), lead.Enrichment)
	if err != nil {
		return nil, eris.Wrap(err, "leads: rescore")
	}
	return o.update(ctx, lead.ID, model.LeadUpdate{
		Score:     &res,
		MarkSteps: []model.Stage{model.StageScoring},
	})
}

func (o *Orchestrator) load(ctx context.Context, leadID string) (*model.Lead, error) {
	lead, err := o.deps.Store.GetLead(ctx, leadID)
	if err != nil {
		return nil, resilience.Persistence("get_lead", err)
	}
	if lead == nil {
		return nil, eris.Wrapf(store.ErrNotFound, "leads: %s", leadID)
	}
	return lead, nil
}

func (o *Orchestrator) update(ctx context.Context, id string, u model.LeadUpdate) (*model.Lead, error) {
	lead, err := o.deps.Store.UpdateLead(ctx, id, u)
	if err != nil {
		return nil, resilience.Persistence("update_lead", err)
	}
	return lead, nil
}

// stageError is a fatal stage failure. It is recorded on the lead rather
// than returned to the caller.
type stageError struct {
	stage model.Stage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }

func (e *stageError) Unwrap() error { return e.err }

func (o *Orchestrator) run(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID))
	start := o.now()

	if lead.ProcessingStatus == model.StatusReceived {
		status := model.StatusProcessing
		var err error
		if lead, err = o.update(ctx, lead.ID, model.LeadUpdate{Status: &status}); err != nil {
			return nil, err
		}
	}
	log.Info("leads: processing started")

	stages := []struct {
		stage model.Stage
		fn    func(context.Context, *model.Lead) (*model.Lead, error)
	}{
		{model.StageExtraction, o.extractStage},
		{model.StageEnrichment, o.enrichStage},
		{model.StageScoring, o.scoreStage},
		{model.StageOutreach, o.outreachStage},
	}

	for _, s := range stages {
		if lead.ProcessingSteps.Done(s.stage) {
			log.Debug("leads: stage already complete, skipping", zap.String("stage", string(s.stage)))
			continue
		}
		stageStart := o.now()
		next, err := s.fn(ctx, lead)
		if o.deps.Metrics != nil {
			o.deps.Metrics.ObserveStage(s.stage, o.now().Sub(stageStart))
		}
		var se *stageError
		if errors.As(err, &se) {
			return o.fail(ctx, lead, se)
		}
		if err != nil {
			return nil, o.abort(ctx, lead.ID, err)
		}
		lead = next
	}

	synced, err := o.syncCRM(ctx, lead)
	if err != nil {
		return nil, o.abort(ctx, lead.ID, err)
	}

	status := model.StatusCompleted
	if lead, err = o.update(ctx, synced.ID, model.LeadUpdate{Status: &status}); err != nil {
		return nil, o.abort(ctx, synced.ID, err)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveLead(lead.ProcessingStatus, lead.QualificationStatus)
	}
	log.Info("leads: processing completed",
		zap.Float64("score", lead.LeadScore),
		zap.String("qualification", string(lead.QualificationStatus)),
		zap.Duration("duration", o.now().Sub(start)),
	)
	o.notifyCompleted(ctx, lead)
	return lead, nil
}

// extractStage runs the provider chain and subject analysis concurrently,
// then fuses and persists the canonical facts.
func (o *Orchestrator) extractStage(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	var (
		outcome  *extract.Outcome
		analysis *model.SubjectAnalysis
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := o.deps.Chain.Extract(gctx, lead.ImageURL)
		if err != nil {
			return err
		}
		outcome = out
		return nil
	})
	g.Go(func() error {
		a, err := o.deps.Analyzer.Analyze(gctx, lead.ImageURL)
		if err != nil {
			if resilience.IsUnavailable(err) {
				return err
			}
			zap.L().Warn("leads: subject analysis failed, fusing text only",
				zap.String("lead_id", lead.ID),
				zap.Error(err),
			)
			a = &model.SubjectAnalysis{Degraded: true}
		}
		analysis = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, &stageError{stage: model.StageExtraction, err: err}
	}

	ocr := textparse.ParseOCR(outcome.Result.Text)
	merged := fusion.Merge(ocr, fusion.FromAnalysis(analysis), o.deps.Fusion)
	fusion.LogLowSimilarity(lead.ID, merged, o.deps.Fusion.SimilarityThreshold)

	facts := merged.Facts
	description := analysis.Description
	provider := outcome.Result.Provider
	confidence := outcome.Result.Confidence
	similarity := merged.Similarity
	return o.update(ctx, lead.ID, model.LeadUpdate{
		Facts:                &facts,
		RawExtractedText:     &outcome.Result.Text,
		SubjectDescription:   &description,
		ExtractionProvider:   &provider,
		ExtractionConfidence: &confidence,
		CrossValidationScore: &similarity,
		MarkSteps:            []model.Stage{model.StageExtraction},
	})
}

// enrichStage never fails the lead; the stage is marked complete whether
// or not enrichment succeeded.
func (o *Orchestrator) enrichStage(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	u := model.LeadUpdate{MarkSteps: []model.Stage{model.StageEnrichment}}
	if o.deps.Enricher == nil {
		return o.update(ctx, lead.ID, u)
	}

	q := enrich.QueryFromFacts(lead.Facts())
	enr, err := o.deps.Enricher.EnrichBusiness(ctx, q)
	if err != nil {
		zap.L().Warn("leads: enrichment failed, continuing",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}
	if enr != nil {
		enr.Merge(lead.Enrichment)
		u.Enrichment = enr
		if lead.Website == "" && enr.Website != "" {
			facts := lead.Facts()
			facts.Website = textparse.NormalizeWebsite(enr.Website)
			u.Facts = &facts
		}
	}
	return o.update(ctx, lead.ID, u)
}

func (o *Orchestrator) scoreStage(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	res, err := o.deps.Scorer.Score(lead.Facts(), lead.Enrichment)
	if err != nil {
		return nil, &stageError{stage: model.StageScoring, err: err}
	}
	return o.update(ctx, lead.ID, model.LeadUpdate{
		Score:     &res,
		MarkSteps: []model.Stage{model.StageScoring},
	})
}

// outreachStage only runs for qualified leads and never fails the lead.
// The step stays unmarked when skipped or failed.
func (o *Orchestrator) outreachStage(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.QualificationStatus != model.Qualified || o.deps.Outreach == nil {
		return lead, nil
	}
	drafts, err := o.deps.Outreach.Generate(ctx, lead)
	if err != nil {
		zap.L().Warn("leads: outreach generation failed",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return lead, nil
	}
	return o.update(ctx, lead.ID, model.LeadUpdate{
		Outreach:  drafts,
		MarkSteps: []model.Stage{model.StageOutreach},
	})
}

// syncCRM is best-effort and runs once per qualified lead.
func (o *Orchestrator) syncCRM(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if o.deps.CRM == nil || lead.QualificationStatus != model.Qualified || len(lead.CRMRefs) > 0 {
		return lead, nil
	}
	refs, err := o.deps.CRM.SyncAll(ctx, lead)
	if err != nil {
		zap.L().Warn("leads: crm sync incomplete", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	if len(refs) == 0 {
		return lead, nil
	}
	return o.update(ctx, lead.ID, model.LeadUpdate{CRMRefs: refs})
}

// fail records a fatal stage error on the lead and emits the failure
// notification.
func (o *Orchestrator) fail(ctx context.Context, lead *model.Lead, se *stageError) (*model.Lead, error) {
	msg := se.Error()
	zap.L().Error("leads: processing failed",
		zap.String("lead_id", lead.ID),
		zap.String("stage", string(se.stage)),
		zap.Error(se.err),
	)

	status := model.StatusFailed
	failed, err := o.update(ctx, lead.ID, model.LeadUpdate{Status: &status, ProcessingError: &msg})
	if err != nil {
		return nil, err
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveLead(failed.ProcessingStatus, failed.QualificationStatus)
	}
	o.send(ctx, model.SystemNotification{
		Type:     notify.TypeLeadFailed,
		Priority: model.PriorityHigh,
		Title:    "Lead processing failed",
		Message:  fmt.Sprintf("Lead %s failed during %s: %s", lead.ID, se.stage, se.err),
		Data: map[string]any{
			"leadId":   lead.ID,
			"stage":    string(se.stage),
			"imageUrl": lead.ImageURL,
			"error":    se.err.Error(),
		},
	})
	return failed, nil
}

// abort makes a best-effort attempt to leave the lead failed after a
// persistence error, then returns the original error.
func (o *Orchestrator) abort(ctx context.Context, leadID string, cause error) error {
	status := model.StatusFailed
	msg := cause.Error()
	if _, err := o.deps.Store.UpdateLead(ctx, leadID, model.LeadUpdate{Status: &status, ProcessingError: &msg}); err != nil {
		zap.L().Error("leads: could not mark lead failed",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
	}
	return cause
}

func (o *Orchestrator) notifyCompleted(ctx context.Context, lead *model.Lead) {
	priority := model.PriorityLow
	title := "Lead processed"
	if lead.QualificationStatus == model.Qualified {
		priority = model.PriorityHigh
		title = "New qualified lead"
	}
	name := lead.BusinessName
	if name == "" {
		name = "Unknown business"
	}
	o.send(ctx, model.SystemNotification{
		Type:     notify.TypeLeadCompleted,
		Priority: priority,
		Title:    title,
		Message:  fmt.Sprintf("%s scored %.0f (%s)", name, lead.LeadScore, lead.QualificationStatus),
		Data: map[string]any{
			"leadId":        lead.ID,
			"businessName":  lead.BusinessName,
			"leadScore":     lead.LeadScore,
			"qualification": string(lead.QualificationStatus),
		},
	})
}

// send delivers a notification, logging and swallowing any error.
func (o *Orchestrator) send(ctx context.Context, n model.SystemNotification) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.SendSystemNotification(ctx, n); err != nil {
		zap.L().Warn("leads: notification failed",
			zap.String("type", n.Type),
			zap.Error(err),
		)
	}
}
