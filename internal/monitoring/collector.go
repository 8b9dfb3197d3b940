package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
)

// scanLimit caps how many recent leads one collection reads.
const scanLimit = 10000

// staleAfter is how long a lead may sit in received or processing before
// it counts as stale.
const staleAfter = time.Hour

// MetricsSnapshot holds a point-in-time view of lead processing health.
type MetricsSnapshot struct {
	LeadsTotal     int     `json:"leads_total"`
	LeadsCompleted int     `json:"leads_completed"`
	LeadsFailed    int     `json:"leads_failed"`
	LeadsInFlight  int     `json:"leads_in_flight"`
	LeadsStale     int     `json:"leads_stale"`
	LeadsQualified int     `json:"leads_qualified"`
	FailRate       float64 `json:"fail_rate"`
	AvgScore       float64 `json:"avg_score"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Finished is the number of leads that reached a terminal state.
func (s *MetricsSnapshot) Finished() int {
	return s.LeadsCompleted + s.LeadsFailed
}

// LeadLister is the slice of the store the collector needs.
type LeadLister interface {
	ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error)
}

// Collector gathers lead metrics from the store.
type Collector struct {
	leads LeadLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(leads LeadLister) *Collector {
	return &Collector{leads: leads, now: time.Now}
}

// Collect summarizes leads created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	leads, err := c.leads.ListLeads(ctx, model.LeadFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list leads")
	}

	var totalScore float64
	var scored int
	for _, l := range leads {
		if l.CreatedAt.Before(cutoff) {
			continue
		}
		snap.LeadsTotal++
		switch l.ProcessingStatus {
		case model.StatusCompleted:
			snap.LeadsCompleted++
		case model.StatusFailed:
			snap.LeadsFailed++
		default:
			snap.LeadsInFlight++
			if now.Sub(l.UpdatedAt) > staleAfter {
				snap.LeadsStale++
			}
		}
		if l.QualificationStatus == model.Qualified {
			snap.LeadsQualified++
		}
		if l.ProcessingSteps.Done(model.StageScoring) {
			totalScore += l.LeadScore
			scored++
		}
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.LeadsFailed) / float64(finished)
	}
	if scored > 0 {
		snap.AvgScore = totalScore / float64(scored)
	}
	return snap, nil
}
