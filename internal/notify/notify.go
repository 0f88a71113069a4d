package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"planline/internal/domain"
	"planline/internal/log"
)

// Notifier delivers one notification over a channel. Delivery is best
// effort; persistence of the notification row happens elsewhere.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, n domain.Notification) error
}

// LogNotifier writes notifications to the process log. Always configured,
// so alarms remain visible with no webhook set up.
type LogNotifier struct{}

func (LogNotifier) Channel() string { return "log" }

func (LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	log.Info("notification", "kind", n.Kind, "user", n.UserID, "title", n.Title, "body", n.Body)
	return nil
}

// WebhookNotifier posts the notification as JSON to a fixed URL.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (*WebhookNotifier) Channel() string { return "webhook" }

type webhookPayload struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
	SentAt string `json:"sent_at"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(webhookPayload{
		Kind:   n.Kind,
		UserID: n.UserID,
		Title:  n.Title,
		Body:   n.Body,
		SentAt: n.SentAt,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Fanout sends to every notifier; one failing channel does not block the
// others. The first error is returned after all attempts.
type Fanout []Notifier

func (f Fanout) Channel() string { return "fanout" }

func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var first error
	for _, nt := range f {
		if err := nt.Notify(ctx, n); err != nil {
			log.Error("notify failed", err, "channel", nt.Channel(), "kind", n.Kind)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
