// Package monitoring periodically checks lead processing health and raises
// system notifications when thresholds are breached.
package monitoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/notify"
)

const defaultMinFinished = 5

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// delivers alerts through a notifier.
type Alerter struct {
	cfg      config.MonitoringConfig
	notifier notify.Notifier
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig, notifier notify.Notifier) *Alerter {
	if cfg.MinFinished <= 0 {
		cfg.MinFinished = defaultMinFinished
	}
	return &Alerter{cfg: cfg, notifier: notifier}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []model.SystemNotification {
	var alerts []model.SystemNotification

	finished := snap.Finished()
	if finished >= a.cfg.MinFinished && a.cfg.FailureRateThreshold > 0 && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, model.SystemNotification{
			Type:     notify.TypeFailureRate,
			Priority: model.PriorityHigh,
			Title:    "Lead failure rate above threshold",
			Message: fmt.Sprintf(
				"Lead failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.LeadsFailed, finished, snap.LookbackHours,
			),
			Data: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.LeadsFailed,
				"finished":     finished,
			},
		})
	}

	if snap.LeadsStale > 0 {
		alerts = append(alerts, model.SystemNotification{
			Type:     notify.TypeStaleLeads,
			Priority: model.PriorityMedium,
			Title:    "Leads stuck in processing",
			Message: fmt.Sprintf(
				"%d lead(s) have not progressed in over %s; run resume to continue them",
				snap.LeadsStale, staleAfter,
			),
			Data: map[string]any{
				"stale":     snap.LeadsStale,
				"in_flight": snap.LeadsInFlight,
			},
		})
	}

	return alerts
}

// SendAlerts delivers alerts and returns the number successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []model.SystemNotification) int {
	if a.notifier == nil || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.notifier.SendSystemNotification(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", alert.Type),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", alert.Type),
			zap.String("priority", string(alert.Priority)),
		)
		sent++
	}
	return sent
}
