package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

// ErrThrottled a non-critical delivery was suppressed by the do-not-disturb window.
var ErrThrottled = errors.New("delivery throttled")

// Delivery one notification to one caregiver.
type Delivery = models.Delivery

// Transport delivers notifications. Success or failure is the transport's to log.
type Transport interface {
	Deliver(ctx context.Context, d Delivery) error
}

// LogTransport writes deliveries to the log. Used when no webhook is configured.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Deliver(ctx context.Context, d Delivery) error {
	t.logger.Info("Caregiver notification",
		zap.String("delivery_id", d.ID),
		zap.String("caregiver_id", d.CaregiverID),
		zap.String("priority", string(d.Priority)),
		zap.String("title", d.Title),
		zap.String("message", d.Message),
	)
	return nil
}
