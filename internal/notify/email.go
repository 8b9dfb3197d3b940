package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
)

// Email sends notifications over SMTP.
type Email struct {
	cfg config.SMTPConfig
}

// NewEmail creates an SMTP Email notifier.
func NewEmail(cfg config.SMTPConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg}
}

// SendSystemNotification implements Notifier.
func (e *Email) SendSystemNotification(ctx context.Context, n model.SystemNotification) error {
	msg, err := e.message(n)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(e.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(e.cfg.Username),
			gomail.WithPassword(e.cfg.Password),
		)
	}
	client, err := gomail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "notify: smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "notify: smtp send")
	}
	return nil
}

func (e *Email) message(n model.SystemNotification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return nil, eris.Wrap(err, "notify: smtp from")
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return nil, eris.Wrap(err, "notify: smtp to")
	}
	msg.Subject(subject(n))
	msg.SetBodyString(gomail.TypeTextPlain, body(n))
	return msg, nil
}

func subject(n model.SystemNotification) string {
	s := "[fieldsnap] " + n.Title
	if n.Priority == model.PriorityHigh {
		s = "[fieldsnap][HIGH] " + n.Title
	}
	return s
}

func body(n model.SystemNotification) string {
	var b strings.Builder
	b.WriteString(n.Message)
	b.WriteString("\n")
	if len(n.Data) > 0 {
		b.WriteString("\n")
		keys := make([]string, 0, len(n.Data))
		for k := range n.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %v\n", k, n.Data[k])
		}
	}
	fmt.Fprintf(&b, "\ntype: %s\npriority: %s\n", n.Type, n.Priority)
	return b.String()
}
