// Package notify delivers system notifications about lead processing to
// operators.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
)

// Notification types emitted by the lead pipeline.
const (
	TypeLeadCompleted = "lead_completed"
	TypeLeadFailed    = "lead_failed"
	TypeFailureRate   = "lead_failure_rate"
	TypeStaleLeads    = "lead_stale"
)

// Notifier sends a system notification.
type Notifier interface {
	SendSystemNotification(ctx context.Context, n model.SystemNotification) error
}

// Multi fans a notification out to every notifier. All notifiers are
// attempted; their errors are joined.
type Multi []Notifier

// SendSystemNotification implements Notifier.
func (m Multi) SendSystemNotification(ctx context.Context, n model.SystemNotification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.SendSystemNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the structured log. It is the fallback when
// no delivery channel is configured.
type Log struct{}

// SendSystemNotification implements Notifier.
func (Log) SendSystemNotification(_ context.Context, n model.SystemNotification) error {
	fields := []zap.Field{
		zap.String("type", n.Type),
		zap.String("priority", string(n.Priority)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	if len(n.Data) > 0 {
		fields = append(fields, zap.Any("data", n.Data))
	}
	if n.Priority == model.PriorityHigh {
		zap.L().Warn("notify: system notification", fields...)
		return nil
	}
	zap.L().Info("notify: system notification", fields...)
	return nil
}

// FromConfig builds the configured notifier chain. The log notifier is
// always included.
func FromConfig(cfg config.NotifyConfig) Notifier {
	m := Multi{Log{}}
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhook(cfg.WebhookURL, nil))
	}
	if cfg.SMTP.Host != "" && len(cfg.SMTP.To) > 0 {
		m = append(m, NewEmail(cfg.SMTP))
	}
	return m
}
