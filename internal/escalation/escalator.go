package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/notify"
)

// CaregiverSource registered caregivers.
type CaregiverSource interface {
	List(ctx context.Context) ([]models.Caregiver, error)
}

// CheckInStore check-in persistence with a once-only flag mark.
type CheckInStore interface {
	Create(ctx context.Context, c models.CheckIn) error
	Get(ctx context.Context, id string) (*models.CheckIn, error)
	MarkFlagged(ctx context.Context, id string, reasons []string) (bool, error)
	SetNotification(ctx context.Context, id string, notified, pending bool) error
}

// PendingQueue critical deliveries waiting for the next retry tick.
type PendingQueue interface {
	Enqueue(ctx context.Context, d models.Delivery) error
	List(ctx context.Context) ([]models.Delivery, error)
	Remove(ctx context.Context, id string) error
}

// FanOutResult per-alert delivery counts.
type FanOutResult struct {
	Delivered int `json:"delivered"`
	Denied    int `json:"denied"`
	Throttled int `json:"throttled"`
	Failed    int `json:"failed"`
	Queued    int `json:"queued"`
	// Deferred the caregiver list was unavailable and the whole alert was queued.
	Deferred bool `json:"deferred,omitempty"`
}

// CheckInResult outcome of SubmitCheckIn.
type CheckInResult struct {
	CheckIn      models.CheckIn `json:"checkin"`
	Evaluation   Evaluation     `json:"evaluation"`
	Alert        *models.Alert  `json:"alert,omitempty"`
	VitalAlerts  []models.Alert `json:"vital_alerts,omitempty"`
	Notification *FanOutResult  `json:"notification,omitempty"`
}

// Escalator applies the policy and performs caregiver delivery.
type Escalator struct {
	policy     *Policy
	caregivers CaregiverSource
	checkIns   CheckInStore
	transport  notify.Transport
	pending    PendingQueue
	logger     *zap.Logger
	now        func() time.Time

	// held critical deliveries the pending queue could not take
	heldMu sync.Mutex
	held   []models.Delivery
}

func NewEscalator(policy *Policy, caregivers CaregiverSource, checkIns CheckInStore, transport notify.Transport, pending PendingQueue, logger *zap.Logger) *Escalator {
	return &Escalator{
		policy:     policy,
		caregivers: caregivers,
		checkIns:   checkIns,
		transport:  transport,
		pending:    pending,
		logger:     logger,
		now:        time.Now,
	}
}

func (e *Escalator) Policy() *Policy { return e.policy }

// NotifyCaregivers delivers the alert to every caregiver permitted for its category.
// Failed critical deliveries are queued for retry; other failures are logged only.
// When caregivers cannot be listed a critical alert is queued whole and reported as Deferred.
func (e *Escalator) NotifyCaregivers(ctx context.Context, alert models.Alert) (FanOutResult, error) {
	res, err := e.fanOut(ctx, alert)
	if err == nil || alert.Priority != models.PriorityCritical {
		return res, err
	}

	a := alert
	e.queue(ctx, models.Delivery{
		ID:       uuid.New().String(),
		AlertID:  alert.ID,
		Title:    alert.Title,
		Message:  alert.Message,
		Priority: alert.Priority,
		Payload:  alert.Payload,
		Alert:    &a,
		Attempts: 1,
		QueuedAt: e.now(),
	})
	e.logger.Warn("Caregivers unavailable, critical alert deferred",
		zap.String("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.Error(err),
	)
	res.Deferred = true
	return res, nil
}

func (e *Escalator) fanOut(ctx context.Context, alert models.Alert) (FanOutResult, error) {
	var res FanOutResult
	caregivers, err := e.caregivers.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list caregivers: %w", err)
	}

	for _, cg := range caregivers {
		if !IsPermitted(cg, alert.Category) {
			res.Denied++
			e.logger.Debug("Caregiver not permitted for alert",
				zap.String("caregiver_id", cg.ID),
				zap.String("alert_type", string(alert.Category)),
				zap.Error(models.ErrPermissionDenied),
			)
			continue
		}

		d := models.Delivery{
			ID:          uuid.New().String(),
			CaregiverID: cg.ID,
			AlertID:     alert.ID,
			Title:       alert.Title,
			Message:     alert.Message,
			Priority:    alert.Priority,
			Payload:     alert.Payload,
			QueuedAt:    e.now(),
		}
		err := e.transport.Deliver(ctx, d)
		switch {
		case err == nil:
			res.Delivered++
		case errors.Is(err, notify.ErrThrottled):
			res.Throttled++
		default:
			res.Failed++
			e.logger.Warn("Caregiver delivery failed",
				zap.String("caregiver_id", cg.ID),
				zap.String("alert_id", alert.ID),
				zap.String("priority", string(alert.Priority)),
				zap.Error(err),
			)
			if alert.Priority == models.PriorityCritical {
				d.Attempts = 1
				e.queue(ctx, d)
				res.Queued++
			}
		}
	}

	e.logger.Info("Alert fanned out",
		zap.String("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("priority", string(alert.Priority)),
		zap.Int("delivered", res.Delivered),
		zap.Int("denied", res.Denied),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// queue stores d for the next retry tick, holding it in memory when the queue is down.
func (e *Escalator) queue(ctx context.Context, d models.Delivery) {
	if e.pending != nil {
		err := e.pending.Enqueue(ctx, d)
		if err == nil {
			return
		}
		e.logger.Error("Failed to queue critical delivery, holding in memory",
			zap.String("delivery_id", d.ID),
			zap.Error(err),
		)
	}
	e.heldMu.Lock()
	e.held = append(e.held, d)
	e.heldMu.Unlock()
}

func (e *Escalator) takeHeld() []models.Delivery {
	e.heldMu.Lock()
	defer e.heldMu.Unlock()
	out := e.held
	e.held = nil
	return out
}

// Held number of critical deliveries waiting in memory.
func (e *Escalator) Held() int {
	e.heldMu.Lock()
	defer e.heldMu.Unlock()
	return len(e.held)
}

// HandleVitals evaluates a vitals snapshot and notifies one alert per concern.
func (e *Escalator) HandleVitals(ctx context.Context, v models.VitalSigns) []models.Alert {
	alerts := e.policy.EvaluateVitals(v)
	for _, a := range alerts {
		if _, err := e.NotifyCaregivers(ctx, a); err != nil {
			e.logger.Error("Failed to notify vital alert",
				zap.String("concern", a.Concern),
				zap.Error(err),
			)
		}
	}
	return alerts
}

// SubmitCheckIn persists the check-in, evaluates it and, when flagged, claims the flag and
// sends exactly one batched alert. CaregiverNotified is set only after the fan-out has run.
// A check-in that cannot be stored is still evaluated and escalated, and the store error
// is returned with the result. Vitals attached to the check-in are escalated separately.
func (e *Escalator) SubmitCheckIn(ctx context.Context, c models.CheckIn) (CheckInResult, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = e.now()
	}
	if c.Type == "" {
		c.Type = models.CheckInDaily
	}
	c.Flagged, c.CaregiverNotified, c.NotificationPending, c.FlagReasons = false, false, false, nil

	var storeErr error
	if err := e.checkIns.Create(ctx, c); err != nil {
		storeErr = fmt.Errorf("failed to store check-in: %w", err)
		e.logger.Warn("Check-in not stored, escalating anyway",
			zap.String("checkin_id", c.ID),
			zap.Error(err),
		)
	}
	stored := storeErr == nil

	res := CheckInResult{CheckIn: c, Evaluation: e.policy.EvaluateCheckIn(c)}
	if res.Evaluation.Flagged {
		res.CheckIn.Flagged = true
		res.CheckIn.FlagReasons = res.Evaluation.Reasons

		won := true
		if stored {
			var err error
			won, err = e.checkIns.MarkFlagged(ctx, c.ID, res.Evaluation.Reasons)
			if err != nil {
				won = true
				e.logger.Warn("Failed to claim check-in flag, escalating anyway",
					zap.String("checkin_id", c.ID),
					zap.Error(err),
				)
			}
		}

		if won {
			alert := e.policy.CheckInAlert(c, res.Evaluation)
			res.Alert = &alert
			fan, err := e.NotifyCaregivers(ctx, alert)
			if err != nil {
				e.logger.Error("Failed to notify flagged check-in",
					zap.String("checkin_id", c.ID),
					zap.Error(err),
				)
			} else {
				res.Notification = &fan
			}
			notified := err == nil && !fan.Deferred
			res.CheckIn.CaregiverNotified = notified
			res.CheckIn.NotificationPending = fan.Deferred
			if stored {
				if err := e.checkIns.SetNotification(ctx, c.ID, notified, fan.Deferred); err != nil {
					e.logger.Warn("Failed to record check-in notification",
						zap.String("checkin_id", c.ID),
						zap.Error(err),
					)
				}
			}
		} else if cur, err := e.checkIns.Get(ctx, c.ID); err == nil {
			res.CheckIn = *cur
		}
	}

	if c.Vitals != nil {
		v := *c.Vitals
		if v.Timestamp.IsZero() {
			v.Timestamp = c.Timestamp
		}
		res.VitalAlerts = e.HandleVitals(ctx, v)
	}
	return res, storeErr
}

// RetryPending redelivers queued critical notifications, including those held in memory.
// A deferred alert is fanned out again once caregivers can be listed. Returns how many succeeded.
func (e *Escalator) RetryPending(ctx context.Context) (int, error) {
	held := e.takeHeld()

	var queued []models.Delivery
	var listErr error
	if e.pending != nil {
		if queued, listErr = e.pending.List(ctx); listErr != nil {
			listErr = fmt.Errorf("failed to list pending deliveries: %w", listErr)
		}
	}

	sent := 0
	for i, d := range held {
		if err := ctx.Err(); err != nil {
			for _, rest := range held[i:] {
				e.queue(ctx, rest)
			}
			return sent, err
		}
		if e.retry(ctx, d, false) {
			sent++
		}
	}
	for _, d := range queued {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if e.retry(ctx, d, true) {
			sent++
		}
	}
	return sent, listErr
}

// retry attempts one entry; inQueue marks entries read from the pending queue.
func (e *Escalator) retry(ctx context.Context, d models.Delivery, inQueue bool) bool {
	var err error
	if d.IsFanOut() {
		_, err = e.fanOut(ctx, *d.Alert)
	} else {
		err = e.transport.Deliver(ctx, d)
	}

	if err != nil {
		d.Attempts++
		e.logger.Warn("Retry of critical delivery failed",
			zap.String("delivery_id", d.ID),
			zap.Bool("fan_out", d.IsFanOut()),
			zap.Int("attempts", d.Attempts),
			zap.Error(err),
		)
		e.queue(ctx, d)
		return false
	}

	if inQueue {
		if err := e.pending.Remove(ctx, d.ID); err != nil {
			e.logger.Error("Failed to remove delivered entry", zap.String("delivery_id", d.ID), zap.Error(err))
		}
	}
	if d.IsFanOut() {
		e.markCheckInNotified(ctx, *d.Alert)
	}
	return true
}

func (e *Escalator) markCheckInNotified(ctx context.Context, alert models.Alert) {
	if alert.Type != models.AlertCheckInFlagged {
		return
	}
	id, _ := alert.Payload["checkin_id"].(string)
	if id == "" {
		return
	}
	if err := e.checkIns.SetNotification(ctx, id, true, false); err != nil {
		e.logger.Warn("Failed to record check-in notification",
			zap.String("checkin_id", id),
			zap.Error(err),
		)
	}
}
