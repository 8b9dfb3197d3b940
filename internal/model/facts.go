package model

// OcrFacts are business fields parsed from the winning provider's raw text.
type OcrFacts struct {
	BusinessName string
	PhoneNumber  string
	Email        string
	Website      string
	Address      string
	Services     []string
	RawText      string
}

// SubjectFacts are business fields read from the primary visual subject.
type SubjectFacts struct {
	BusinessName string
	PhoneNumber  string
	Website      string
	Address      string
	Services     []string
	TextContent  []string
	Description  string
}

// CanonicalFacts is the fused business-fact record persisted on a lead.
type CanonicalFacts struct {
	BusinessName string   `json:"businessName,omitempty"`
	PhoneNumber  string   `json:"phoneNumber,omitempty"`
	Email        string   `json:"email,omitempty"`
	Website      string   `json:"website,omitempty"`
	Address      string   `json:"address,omitempty"`
	Services     []string `json:"services"`
}

// ReviewSource is review data from one platform.
type ReviewSource struct {
	Source string  `json:"source"`
	Count  int     `json:"count"`
	Rating float64 `json:"rating,omitempty"`
	URL    string  `json:"url,omitempty"`
}

// Enrichment is external data gathered about a business.
type Enrichment struct {
	SocialMedia   map[string]string `json:"socialMedia,omitempty"`
	Reviews       []ReviewSource    `json:"reviews,omitempty"`
	BusinessHours map[string]string `json:"businessHours,omitempty"`
	Website       string            `json:"website,omitempty"`
}

// Merge folds other into e. Existing non-empty values win.
func (e *Enrichment) Merge(other *Enrichment) {
	if other == nil {
		return
	}
	for k, v := range other.SocialMedia {
		if e.SocialMedia == nil {
			e.SocialMedia = make(map[string]string)
		}
		if _, ok := e.SocialMedia[k]; !ok && v != "" {
			e.SocialMedia[k] = v
		}
	}
	for k, v := range other.BusinessHours {
		if e.BusinessHours == nil {
			e.BusinessHours = make(map[string]string)
		}
		if _, ok := e.BusinessHours[k]; !ok && v != "" {
			e.BusinessHours[k] = v
		}
	}
	seen := make(map[string]bool, len(e.Reviews))
	for _, r := range e.Reviews {
		seen[r.Source] = true
	}
	for _, r := range other.Reviews {
		if !seen[r.Source] {
			e.Reviews = append(e.Reviews, r)
			seen[r.Source] = true
		}
	}
	if e.Website == "" {
		e.Website = other.Website
	}
}

// ScoringResult is the output of the scoring engine.
type ScoringResult struct {
	TotalScore          float64            `json:"totalScore"`
	MaxScore            float64            `json:"maxScore"`
	Breakdown           map[string]float64 `json:"breakdown"`
	Qualification       Qualification      `json:"qualification"`
	QualificationReason string             `json:"qualificationReason"`
}
