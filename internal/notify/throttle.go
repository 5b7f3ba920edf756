package notify

import (
	"context"
	"sync"
	"time"

	"wellness-analytics/internal/models"
)

// Throttle do-not-disturb wrapper: at most one non-critical delivery per caregiver
// per interval. Critical deliveries always pass.
type Throttle struct {
	next     Transport
	interval time.Duration
	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

func NewThrottle(next Transport, interval time.Duration) *Throttle {
	return &Throttle{next: next, interval: interval, lastSent: make(map[string]time.Time), now: time.Now}
}

// Deliver reserves the caregiver's slot before sending, so concurrent non-critical
// deliveries cannot both pass. A failed send gives the slot back.
func (t *Throttle) Deliver(ctx context.Context, d Delivery) error {
	if d.Priority == models.PriorityCritical || t.interval <= 0 {
		if err := t.next.Deliver(ctx, d); err != nil {
			return err
		}
		t.mu.Lock()
		t.lastSent[d.CaregiverID] = t.now()
		t.mu.Unlock()
		return nil
	}

	t.mu.Lock()
	now := t.now()
	last, had := t.lastSent[d.CaregiverID]
	if had && now.Sub(last) < t.interval {
		t.mu.Unlock()
		return ErrThrottled
	}
	t.lastSent[d.CaregiverID] = now
	t.mu.Unlock()

	if err := t.next.Deliver(ctx, d); err != nil {
		t.mu.Lock()
		if t.lastSent[d.CaregiverID].Equal(now) {
			if had {
				t.lastSent[d.CaregiverID] = last
			} else {
				delete(t.lastSent, d.CaregiverID)
			}
		}
		t.mu.Unlock()
		return err
	}
	return nil
}
