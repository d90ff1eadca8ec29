package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier POSTs each alert as a JSON document.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
	log    *zap.Logger
}

func NewWebhookNotifier(url string, log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: defaultClient,
		now:    time.Now,
		log:    log.With(zap.String("component", "webhook")),
	}
}

type webhookPayload struct {
	Source string `json:"source"`
	Alert
	SentAt time.Time `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	p := webhookPayload{Source: "volscreener", Alert: alert, SentAt: w.now().UTC()}
	if err := postJSON(ctx, w.client, w.url, p); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	w.log.Debug("alert delivered", zap.String("title", alert.Title))
	return nil
}
