package scorer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
	"github.com/sells-group/fieldsnap/internal/textparse"
)

// Scorer evaluates canonical facts against a rule table. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	rules RuleTable
}

// New creates a Scorer for the given rule table.
func New(rules RuleTable) (*Scorer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{rules: rules}, nil
}

// Rules returns the scorer's rule table.
func (s *Scorer) Rules() RuleTable { return s.rules }

// Score computes points per factor, the qualification band and a
// deterministic reason. Enrichment may be nil.
func (s *Scorer) Score(facts model.CanonicalFacts, enr *model.Enrichment) (model.ScoringResult, error) {
	if enr == nil {
		enr = &model.Enrichment{}
	}
	count, rating := reviewStats(enr.Reviews)

	fractions := map[string]float64{
		FactorPhone:         phoneFraction(facts.PhoneNumber),
		FactorEmail:         boolFraction(textparse.IsEmail(facts.Email)),
		FactorWebsite:       boolFraction(textparse.IsWebsite(facts.Website)),
		FactorSocialMedia:   socialFraction(countPopulated(enr.SocialMedia)),
		FactorBusinessHours: hoursFraction(countPopulated(enr.BusinessHours)),
		FactorReviewCount:   reviewCountFraction(count),
		FactorReviewRating:  ratingFraction(rating, hasRating(enr.Reviews)),
	}

	breakdown := make(map[string]float64, len(Factors))
	var total float64
	for _, f := range Factors {
		limit := s.rules.MaxPoints(f)
		pts := math.Min(round2(limit*fractions[f]), limit)
		breakdown[f] = pts
		total += pts
	}
	maxScore := s.rules.Total()
	total = math.Min(round2(total), maxScore)
	if total < 0 || total > maxScore {
		return model.ScoringResult{}, &resilience.ValidationError{
			Field:  "leadScore",
			Reason: fmt.Sprintf("total %.2f outside [0, %.2f]", total, maxScore),
		}
	}

	qual := Qualify(total, s.rules.Threshold)
	return model.ScoringResult{
		TotalScore:          total,
		MaxScore:            maxScore,
		Breakdown:           breakdown,
		Qualification:       qual,
		QualificationReason: Reason(breakdown, total, maxScore, s.rules.Threshold, qual),
	}, nil
}

// Qualify maps a score to its band: qualified iff score >= threshold.
func Qualify(score, threshold float64) model.Qualification {
	if score >= threshold {
		return model.Qualified
	}
	return model.Unqualified
}

// Reason renders the qualification rationale. Qualified leads list the
// three highest-scoring factors; unqualified leads list the deficit and
// the first three zero-scoring factors. Ties keep rule-table order.
func Reason(breakdown map[string]float64, total, maxScore, threshold float64, qual model.Qualification) string {
	if qual == model.Qualified {
		type fp struct {
			name string
			pts  float64
		}
		var pos []fp
		for _, f := range Factors {
			if breakdown[f] > 0 {
				pos = append(pos, fp{f, breakdown[f]})
			}
		}
		sort.SliceStable(pos, func(i, j int) bool { return pos[i].pts > pos[j].pts })
		if len(pos) > 3 {
			pos = pos[:3]
		}
		parts := make([]string, 0, len(pos))
		for _, p := range pos {
			parts = append(parts, fmt.Sprintf("%s (%s)", p.name, fmtPoints(p.pts)))
		}
		top := "none"
		if len(parts) > 0 {
			top = strings.Join(parts, ", ")
		}
		return fmt.Sprintf("Qualified with %s/%s points (threshold %s). Strongest factors: %s",
			fmtPoints(total), fmtPoints(maxScore), fmtPoints(threshold), top)
	}

	var zero []string
	for _, f := range Factors {
		if breakdown[f] == 0 {
			zero = append(zero, f)
			if len(zero) == 3 {
				break
			}
		}
	}
	missing := "none"
	if len(zero) > 0 {
		missing = strings.Join(zero, ", ")
	}
	return fmt.Sprintf("Not qualified: %s/%s points, %s short of threshold %s. Missing: %s",
		fmtPoints(total), fmtPoints(maxScore), fmtPoints(round2(threshold-total)), fmtPoints(threshold), missing)
}

var relaxedPhone = regexp.MustCompile(`^\+?[\d\s().-]{10,}$`)

// phoneFraction gives full credit to numbers matching a relaxed domestic
// or international pattern, half credit to phone-like strings with at
// least seven digits, and nothing otherwise.
func phoneFraction(phone string) float64 {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return 0
	}
	digits := len(textparse.Digits(phone))
	if relaxedPhone.MatchString(phone) && digits >= 10 && digits <= 15 {
		return 1
	}
	if num, err := phonenumbers.Parse(phone, "US"); err == nil && phonenumbers.IsPossibleNumber(num) && digits >= 10 {
		return 1
	}
	if digits >= 7 {
		return 0.5
	}
	return 0
}

func boolFraction(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func socialFraction(platforms int) float64 {
	switch {
	case platforms <= 0:
		return 0
	case platforms == 1:
		return 0.4
	case platforms == 2:
		return 0.7
	default:
		return 1
	}
}

func hoursFraction(days int) float64 {
	switch {
	case days <= 0:
		return 0
	case days <= 2:
		return 0.4
	case days <= 4:
		return 0.7
	default:
		return 1
	}
}

func reviewCountFraction(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < 5:
		return 0.3
	case n < 20:
		return 0.5
	case n < 50:
		return 0.8
	default:
		return 1
	}
}

func ratingFraction(avg float64, rated bool) float64 {
	if !rated {
		return 0
	}
	switch {
	case avg >= 4.5:
		return 1
	case avg >= 4.0:
		return 0.8
	case avg >= 3.5:
		return 0.6
	case avg >= 3.0:
		return 0.4
	default:
		return 0.2
	}
}

// reviewStats sums review counts across sources and averages their
// ratings, weighted by count when counts are known.
func reviewStats(reviews []model.ReviewSource) (int, float64) {
	var count int
	var weighted, plain float64
	var weight, rated int
	for _, r := range reviews {
		if r.Count > 0 {
			count += r.Count
		}
		if r.Rating <= 0 {
			continue
		}
		rated++
		plain += r.Rating
		if r.Count > 0 {
			weighted += r.Rating * float64(r.Count)
			weight += r.Count
		}
	}
	switch {
	case weight > 0:
		return count, weighted / float64(weight)
	case rated > 0:
		return count, plain / float64(rated)
	}
	return count, 0
}

func hasRating(reviews []model.ReviewSource) bool {
	for _, r := range reviews {
		if r.Rating > 0 {
			return true
		}
	}
	return false
}

// countPopulated counts distinct keys with non-blank values.
func countPopulated(m map[string]string) int {
	seen := make(map[string]bool, len(m))
	for k, v := range m {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		seen[k] = true
	}
	return len(seen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fmtPoints(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
