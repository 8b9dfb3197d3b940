// Package scorer implements deterministic lead scoring against a weighted
// rule table.
package scorer

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fieldsnap/internal/config"
)

// Factor names, in the fixed order used for tie-breaking and reasons.
const (
	FactorPhone         = "phone"
	FactorEmail         = "email"
	FactorWebsite       = "website"
	FactorSocialMedia   = "social_media"
	FactorBusinessHours = "business_hours"
	FactorReviewCount   = "review_count"
	FactorReviewRating  = "review_rating"
)

// Factors lists every factor in rule-table order.
var Factors = []string{
	FactorPhone,
	FactorEmail,
	FactorWebsite,
	FactorSocialMedia,
	FactorBusinessHours,
	FactorReviewCount,
	FactorReviewRating,
}

// RuleTable holds the per-factor maximum points and the qualification
// threshold.
type RuleTable struct {
	Phone         float64 `yaml:"phone"`
	Email         float64 `yaml:"email"`
	Website       float64 `yaml:"website"`
	SocialMedia   float64 `yaml:"social_media"`
	BusinessHours float64 `yaml:"business_hours"`
	ReviewCount   float64 `yaml:"review_count"`
	ReviewRating  float64 `yaml:"review_rating"`
	Threshold     float64 `yaml:"threshold"`
}

// DefaultRules returns the default rule table. Factor maxima sum to 100.
func DefaultRules() RuleTable {
	return RuleTable{
		Phone:         25,
		Email:         20,
		Website:       15,
		SocialMedia:   10,
		BusinessHours: 5,
		ReviewCount:   15,
		ReviewRating:  10,
		Threshold:     50,
	}
}

// MaxPoints returns the factor's configured maximum.
func (r RuleTable) MaxPoints(factor string) float64 {
	switch factor {
	case FactorPhone:
		return r.Phone
	case FactorEmail:
		return r.Email
	case FactorWebsite:
		return r.Website
	case FactorSocialMedia:
		return r.SocialMedia
	case FactorBusinessHours:
		return r.BusinessHours
	case FactorReviewCount:
		return r.ReviewCount
	case FactorReviewRating:
		return r.ReviewRating
	}
	return 0
}

// Total returns the sum of all factor maxima.
func (r RuleTable) Total() float64 {
	var sum float64
	for _, f := range Factors {
		sum += r.MaxPoints(f)
	}
	return sum
}

// Validate checks that a rule table is internally consistent.
func (r RuleTable) Validate() error {
	var errs []string
	for _, f := range Factors {
		if r.MaxPoints(f) < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", f))
		}
	}
	total := r.Total()
	if total <= 0 {
		errs = append(errs, "factor sum must be > 0")
	}
	if r.Threshold < 0 || r.Threshold > total {
		errs = append(errs, fmt.Sprintf("threshold must be between 0 and %.1f", total))
	}
	if len(errs) > 0 {
		return eris.Errorf("scorer: rule table validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadRules reads a YAML rule table. Factors missing from the file keep
// their default maxima.
func LoadRules(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, eris.Wrapf(err, "scorer: read rules %s", path)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleTable{}, eris.Wrapf(err, "scorer: parse rules %s", path)
	}
	if err := rules.Validate(); err != nil {
		return RuleTable{}, err
	}
	return rules, nil
}

// RulesFromConfig builds the rule table for a run: the YAML file when
// configured, otherwise the defaults. A configured threshold is applied on
// top of either.
func RulesFromConfig(cfg config.ScoringConfig) (RuleTable, error) {
	rules := DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return RuleTable{}, err
		}
		rules = loaded
	}
	if cfg.Threshold != nil {
		threshold := float64(*cfg.Threshold)
		if cfg.RulesPath != "" && threshold != rules.Threshold {
			zap.L().Info("scorer: scoring.threshold overrides rule file",
				zap.String("rules_path", cfg.RulesPath),
				zap.Float64("file_threshold", rules.Threshold),
				zap.Float64("threshold", threshold),
			)
		}
		rules.Threshold = threshold
	}
	if err := rules.Validate(); err != nil {
		return RuleTable{}, err
	}
	return rules, nil
}
