package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ProcessingStatus is the lifecycle state of a lead's pipeline run.
type ProcessingStatus string

const (
	StatusReceived   ProcessingStatus = "received"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

var statusRank = map[ProcessingStatus]int{
	StatusReceived:   0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// Terminal reports whether no further transitions are allowed.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic. Staying in the same non-terminal state is allowed.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if s.Terminal() {
		return false
	}
	return to >= from
}

// Qualification is the binary qualification band of a scored lead.
type Qualification string

const (
	Qualified   Qualification = "qualified"
	Unqualified Qualification = "unqualified"
)

// Stage names a resumable pipeline sub-step.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageEnrichment Stage = "enrichment"
	StageScoring    Stage = "scoring"
	StageOutreach   Stage = "outreach"
)

// StepMark records whether a stage finished and when.
type StepMark struct {
	Completed bool       `json:"completed"`
	At        *time.Time `json:"at,omitempty"`
}

// ProcessingSteps tracks per-stage completion so a lead can be resumed
// without redoing finished stages.
type ProcessingSteps struct {
	ExtractionCompleted StepMark `json:"extractionCompleted"`
	EnrichmentCompleted StepMark `json:"enrichmentCompleted"`
	ScoringCompleted    StepMark `json:"scoringCompleted"`
	OutreachGenerated   StepMark `json:"outreachGenerated"`
}

func (p *ProcessingSteps) mark(stage Stage) *StepMark {
	switch stage {
	case StageExtraction:
		return &p.ExtractionCompleted
	case StageEnrichment:
		return &p.EnrichmentCompleted
	case StageScoring:
		return &p.ScoringCompleted
	case StageOutreach:
		return &p.OutreachGenerated
	}
	return nil
}

// Done reports whether the given stage has completed.
func (p ProcessingSteps) Done(stage Stage) bool {
	m := p.mark(stage)
	return m != nil && m.Completed
}

// Mark sets the stage flag. A flag is only ever set once; marking an
// already-completed stage keeps the original timestamp.
func (p *ProcessingSteps) Mark(stage Stage, at time.Time) error {
	m := p.mark(stage)
	if m == nil {
		return eris.Errorf("model: unknown stage %q", stage)
	}
	if m.Completed {
		return nil
	}
	t := at.UTC()
	m.Completed = true
	m.At = &t
	return nil
}

// Lead is the canonical record for one processed business-ad photo.
type Lead struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ImageURL       string `json:"imageUrl"`
	SourceLocation string `json:"sourceLocation,omitempty"`
	SourceNotes    string `json:"sourceNotes,omitempty"`

	BusinessName string   `json:"businessName,omitempty"`
	PhoneNumber  string   `json:"phoneNumber,omitempty"`
	Email        string   `json:"email,omitempty"`
	Website      string   `json:"website,omitempty"`
	Address      string   `json:"address,omitempty"`
	Services     []string `json:"services"`

	RawExtractedText     string   `json:"rawExtractedText,omitempty"`
	SubjectDescription   string   `json:"subjectDescription,omitempty"`
	ExtractionProvider   string   `json:"extractionProvider,omitempty"`
	ExtractionConfidence float64  `json:"extractionConfidence,omitempty"`
	CrossValidationScore *float64 `json:"crossValidationScore,omitempty"`

	Enrichment *Enrichment `json:"enrichment,omitempty"`

	LeadScore           float64            `json:"leadScore"`
	ScoreBreakdown      map[string]float64 `json:"scoreBreakdown,omitempty"`
	QualificationStatus Qualification      `json:"qualificationStatus,omitempty"`
	QualificationNotes  string             `json:"qualificationNotes,omitempty"`

	Outreach *OutreachDrafts   `json:"outreach,omitempty"`
	CRMRefs  map[string]string `json:"crmRefs,omitempty"`

	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ProcessingError  string           `json:"processingError,omitempty"`
	ProcessingSteps  ProcessingSteps  `json:"processingSteps"`
}

// Facts returns the lead's canonical business facts.
func (l *Lead) Facts() CanonicalFacts {
	return CanonicalFacts{
		BusinessName: l.BusinessName,
		PhoneNumber:  l.PhoneNumber,
		Email:        l.Email,
		Website:      l.Website,
		Address:      l.Address,
		Services:     append([]string(nil), l.Services...),
	}
}

// NewLead holds the fields supplied at lead creation.
type NewLead struct {
	ImageURL       string
	SourceLocation string
	SourceNotes    string
}

// LeadUpdate is a partial update. Nil fields are left unchanged.
type LeadUpdate struct {
	Status               *ProcessingStatus
	ProcessingError      *string
	Facts                *CanonicalFacts
	RawExtractedText     *string
	SubjectDescription   *string
	ExtractionProvider   *string
	ExtractionConfidence *float64
	CrossValidationScore *float64
	Enrichment           *Enrichment
	Score                *ScoringResult
	Outreach             *OutreachDrafts
	CRMRefs              map[string]string
	MarkSteps            []Stage
}

// Apply mutates l with the update. It rejects backward status transitions
// and leaves l untouched on error.
func (u LeadUpdate) Apply(l *Lead, now time.Time) error {
	if u.Status != nil && *u.Status != l.ProcessingStatus && !l.ProcessingStatus.CanTransition(*u.Status) {
		return eris.Errorf("model: invalid status transition %s -> %s", l.ProcessingStatus, *u.Status)
	}

	steps := l.ProcessingSteps
	for _, s := range u.MarkSteps {
		if err := steps.Mark(s, now); err != nil {
			return err
		}
	}
	l.ProcessingSteps = steps

	if u.Status != nil {
		l.ProcessingStatus = *u.Status
	}
	if u.ProcessingError != nil {
		l.ProcessingError = *u.ProcessingError
	}
	if u.Facts != nil {
		l.BusinessName = u.Facts.BusinessName
		l.PhoneNumber = u.Facts.PhoneNumber
		l.Email = u.Facts.Email
		l.Website = u.Facts.Website
		l.Address = u.Facts.Address
		l.Services = append([]string(nil), u.Facts.Services...)
	}
	if u.RawExtractedText != nil {
		l.RawExtractedText = *u.RawExtractedText
	}
	if u.SubjectDescription != nil {
		l.SubjectDescription = *u.SubjectDescription
	}
	if u.ExtractionProvider != nil {
		l.ExtractionProvider = *u.ExtractionProvider
	}
	if u.ExtractionConfidence != nil {
		l.ExtractionConfidence = *u.ExtractionConfidence
	}
	if u.CrossValidationScore != nil {
		v := *u.CrossValidationScore
		l.CrossValidationScore = &v
	}
	if u.Enrichment != nil {
		l.Enrichment = u.Enrichment
	}
	if u.Score != nil {
		l.LeadScore = u.Score.TotalScore
		l.ScoreBreakdown = u.Score.Breakdown
		l.QualificationStatus = u.Score.Qualification
		l.QualificationNotes = u.Score.QualificationReason
	}
	if u.Outreach != nil {
		l.Outreach = u.Outreach
	}
	if len(u.CRMRefs) > 0 {
		if l.CRMRefs == nil {
			l.CRMRefs = make(map[string]string, len(u.CRMRefs))
		}
		for k, v := range u.CRMRefs {
			l.CRMRefs[k] = v
		}
	}
	if l.Services == nil {
		l.Services = []string{}
	}
	l.UpdatedAt = now.UTC()
	return nil
}

// LeadFilter narrows ListLeads results.
type LeadFilter struct {
	Status        ProcessingStatus
	Qualification Qualification
	Limit         int
	Offset        int
}

// IngestRequest is the ingestion API request body.
type IngestRequest struct {
	ImageURL       string `json:"imageUrl" validate:"required,url,startswith=http"`
	SourceLocation string `json:"sourceLocation,omitempty" validate:"omitempty,max=500"`
	SourceNotes    string `json:"sourceNotes,omitempty" validate:"omitempty,max=2000"`
}

// IngestResponse is the ingestion API response body.
type IngestResponse struct {
	Success      bool   `json:"success"`
	LeadID       string `json:"leadId,omitempty"`
	Message      string `json:"message"`
	ProcessingID string `json:"processingId,omitempty"`
}

// OutreachDrafts holds generated outreach copy for a qualified lead.
type OutreachDrafts struct {
	SMSDraft   string `json:"smsDraft"`
	EmailDraft string `json:"emailDraft"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// NotificationPriority ranks system notifications.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// SystemNotification is an event emitted to the notification collaborator.
type SystemNotification struct {
	Type     string               `json:"type"`
	Priority NotificationPriority `json:"priority"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Data     map[string]any       `json:"data,omitempty"`
}
