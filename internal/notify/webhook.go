package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPayload body POSTed to the push gateway.
type WebhookPayload struct {
	DeliveryID  string                 `json:"delivery_id"`
	CaregiverID string                 `json:"caregiver_id"`
	AlertID     string                 `json:"alert_id,omitempty"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Priority    string                 `json:"priority"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	SentAt      time.Time              `json:"sent_at"`
}

// WebhookTransport posts deliveries to a push gateway over HTTP.
type WebhookTransport struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookTransport(url string, timeout time.Duration, logger *zap.Logger) *WebhookTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookTransport{httpClient: client, url: url, logger: logger}
}

func (t *WebhookTransport) Deliver(ctx context.Context, d Delivery) error {
	body := WebhookPayload{
		DeliveryID:  d.ID,
		CaregiverID: d.CaregiverID,
		AlertID:     d.AlertID,
		Title:       d.Title,
		Message:     d.Message,
		Priority:    string(d.Priority),
		Payload:     d.Payload,
		SentAt:      time.Now().UTC(),
	}

	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(t.url)
	if err != nil {
		t.logger.Error("Webhook delivery failed",
			zap.String("delivery_id", d.ID),
			zap.String("caregiver_id", d.CaregiverID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		t.logger.Error("Webhook returned error",
			zap.String("delivery_id", d.ID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}

	t.logger.Debug("Webhook delivered",
		zap.String("delivery_id", d.ID),
		zap.String("caregiver_id", d.CaregiverID),
	)
	return nil
}
