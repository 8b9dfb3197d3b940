// Package fusion merges the raw-text parse and the visual subject analysis
// into one canonical business-fact record.
package fusion

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/textparse"
)

const (
	// DefaultMaxServices caps the merged services list.
	DefaultMaxServices = 10
	// DefaultSimilarityThreshold is the advisory cross-validation floor.
	DefaultSimilarityThreshold = 0.5
	// lengthRatioFloor is the shorter/longer text-length ratio that counts
	// as a passing length check.
	lengthRatioFloor = 0.3
)

// Config controls merge behavior.
type Config struct {
	MaxServices         int
	SimilarityThreshold float64
}

// DefaultConfig returns the default merge settings.
func DefaultConfig() Config {
	return Config{MaxServices: DefaultMaxServices, SimilarityThreshold: DefaultSimilarityThreshold}
}

// Result is the merge output plus cross-validation metadata.
type Result struct {
	Facts         model.CanonicalFacts
	Similarity    float64
	LowSimilarity bool
}

// Merge applies field-level trust rules. The subject wins the business
// name; the OCR parse wins phone, email, website and address; services
// are the case-insensitive union, subject first. A field missing from the
// winning source falls back to the other.
func Merge(ocr model.OcrFacts, subj model.SubjectFacts, cfg Config) Result {
	if cfg.MaxServices <= 0 {
		cfg.MaxServices = DefaultMaxServices
	}

	facts := model.CanonicalFacts{
		BusinessName: firstNonEmpty(subj.BusinessName, ocr.BusinessName),
		PhoneNumber:  firstNonEmpty(ocr.PhoneNumber, textparse.NormalizePhone(subj.PhoneNumber), strings.TrimSpace(subj.PhoneNumber)),
		Email:        ocr.Email,
		Website:      firstNonEmpty(ocr.Website, textparse.NormalizeWebsite(subj.Website)),
		Address:      firstNonEmpty(ocr.Address, subj.Address),
		Services:     MergeServices(cfg.MaxServices, subj.Services, ocr.Services),
	}
	if facts.Website != "" {
		facts.Website = textparse.NormalizeWebsite(facts.Website)
	}

	sim := Similarity(ocr.RawText, subj)
	return Result{
		Facts:         facts,
		Similarity:    sim,
		LowSimilarity: sim < cfg.SimilarityThreshold,
	}
}

// MergeServices concatenates the lists in order, dropping blanks and
// case-insensitive duplicates, and caps the result at limit entries.
func MergeServices(limit int, lists ...[]string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for _, list := range lists {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			key := fold.String(s)
			if seen[key] {
				continue
			}
			if len(out) == limit {
				return out
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

// Similarity cross-validates the two extractions. Each subject text
// fragment is one check, passing when it appears in the raw OCR text
// case-insensitively; one more check passes when the joined subject text
// and the OCR text are within a length ratio of lengthRatioFloor. The
// result is passes/checks, or 0 with no checks.
func Similarity(rawText string, subj model.SubjectFacts) float64 {
	fold := cases.Fold()
	hay := fold.String(collapseSpace(rawText))

	fragments := subjectFragments(subj)
	if len(fragments) == 0 {
		return 0
	}

	checks, passes := 0, 0
	for _, f := range fragments {
		checks++
		if hay != "" && strings.Contains(hay, fold.String(collapseSpace(f))) {
			passes++
		}
	}

	checks++
	joined := collapseSpace(strings.Join(fragments, " "))
	if lengthRatio(len(joined), len(collapseSpace(rawText))) >= lengthRatioFloor {
		passes++
	}

	return float64(passes) / float64(checks)
}

// LogLowSimilarity emits the data-quality warning for a merge result.
func LogLowSimilarity(leadID string, r Result, threshold float64) {
	if !r.LowSimilarity {
		return
	}
	zap.L().Warn("fusion: low cross-validation similarity",
		zap.String("lead_id", leadID),
		zap.Float64("similarity", r.Similarity),
		zap.Float64("threshold", threshold),
	)
}

func subjectFragments(subj model.SubjectFacts) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) < 2 || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	for _, t := range subj.TextContent {
		add(t)
	}
	add(subj.BusinessName)
	add(subj.PhoneNumber)
	add(subj.Website)
	return out
}

func lengthRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var titleTag = language.AmericanEnglish

// FromAnalysis projects the primary subject of an analysis into the
// SubjectFacts fusion input. Without a primary subject only the
// description is carried.
func FromAnalysis(a *model.SubjectAnalysis) model.SubjectFacts {
	if a == nil {
		return model.SubjectFacts{}
	}
	facts := model.SubjectFacts{Description: a.Description}
	p := a.PrimaryBusinessSubject
	if p == nil {
		return facts
	}
	if facts.Description == "" {
		facts.Description = p.Description
	}
	title := cases.Title(titleTag)
	facts.BusinessName = strings.TrimSpace(p.BusinessData.BusinessName)
	facts.PhoneNumber = p.BusinessData.PhoneNumber
	facts.Website = p.BusinessData.Website
	facts.Address = p.BusinessData.Address
	for _, s := range p.BusinessData.Services {
		name := textparse.ServiceName(s)
		if name == strings.TrimSpace(s) && strings.ToLower(name) == name {
			name = title.String(name)
		}
		facts.Services = append(facts.Services, name)
	}
	facts.TextContent = append([]string(nil), p.TextContent...)
	return facts
}
