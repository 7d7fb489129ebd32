package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is the payload handed to the external notification
// dispatcher when a message arrives for a recipient.
type Notification struct {
	RecipientEmail string            `json:"recipientEmail"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
}

// Notifier dispatches notifications. Dispatch is fire-and-forget from the
// service's point of view: a failure is logged, never surfaced to the
// sender, because the message is already durably appended.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier records notifications in the service log. Used when no
// dispatcher endpoint is configured.
type LogNotifier struct {
	Log *logrus.Entry
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Log.WithFields(logrus.Fields{
		"recipient": n.RecipientEmail,
		"type":      n.Type,
		"title":     n.Title,
	}).Info("notification (no dispatcher configured)")
	return nil
}

// WebhookNotifier POSTs notifications to the dispatcher endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier returns a notifier posting to url with a bounded
// request timeout.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification dispatcher returned %s", resp.Status)
	}
	return nil
}
