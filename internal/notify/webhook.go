package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
)

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	model.SystemNotification
	Timestamp time.Time `json:"timestamp"`
}

// Webhook posts notifications as JSON to a URL.
type Webhook struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhook creates a Webhook notifier. A nil client gets a 10s timeout.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client, now: time.Now}
}

// SendSystemNotification implements Notifier.
func (w *Webhook) SendSystemNotification(ctx context.Context, n model.SystemNotification) error {
	payload, err := json.Marshal(webhookPayload{SystemNotification: n, Timestamp: w.now().UTC()})
	if err != nil {
		return eris.Wrap(err, "notify: marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
