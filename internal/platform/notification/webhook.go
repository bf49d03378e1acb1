package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyWebhookSender posts JSON event payloads to a fixed endpoint.
type RestyWebhookSender struct {
	client   *resty.Client
	endpoint string
}

// NewRestyWebhookSender builds a webhook sender for the given endpoint URL.
func NewRestyWebhookSender(endpoint string) *RestyWebhookSender {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &RestyWebhookSender{client: client, endpoint: endpoint}
}

type webhookEnvelope struct {
	Event   string      `json:"event"`
	SentAt  time.Time   `json:"sent_at"`
	Payload interface{} `json:"payload"`
}

func (s *RestyWebhookSender) SendWebhook(ctx context.Context, event string, payload interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookEnvelope{Event: event, SentAt: time.Now().UTC(), Payload: payload}).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook request status: %d", resp.StatusCode())
	}
	return nil
}
