package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/store"
)

// Key layout of the JSON documents kept in the KV store.
const (
	goalKeyPrefix      = "wellness:goal:"
	checkInKeyPrefix   = "wellness:checkin:"
	caregiverKeyPrefix = "wellness:caregiver:"
	pendingKeyPrefix   = "wellness:pending:"
	trendKeyPrefix     = "wellness:trend:"
	correlationsKey    = "wellness:correlations"
	insightLogKey      = "wellness:insights"
)

// docStore JSON get/put over a KV with a per-call timeout.
type docStore struct {
	kv      store.KV
	timeout time.Duration
}

func (d docStore) get(ctx context.Context, key string, out interface{}) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return models.ErrNotFound
		}
		return unavailable("get "+key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (d docStore) put(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.kv.Set(ctx, key, string(data), ttl); err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}

func (d docStore) delete(ctx context.Context, key string) error {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.kv.Delete(ctx, key); err != nil {
		return unavailable("delete "+key, err)
	}
	return nil
}

func (d docStore) keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	keys, err := d.kv.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, unavailable("scan "+prefix, err)
	}
	return keys, nil
}

// GoalRepository goals as JSON documents; Update is a compare-and-set on Version.
type GoalRepository struct {
	docs  docStore
	locks *store.KeyedLock
}

func NewGoalRepository(kv store.KV, timeout time.Duration) *GoalRepository {
	return &GoalRepository{docs: docStore{kv: kv, timeout: timeout}, locks: store.NewKeyedLock()}
}

func (r *GoalRepository) Get(ctx context.Context, id string) (*models.Goal, error) {
	var g models.Goal
	if err := r.docs.get(ctx, goalKeyPrefix+id, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GoalRepository) Create(ctx context.Context, g models.Goal) error {
	return r.docs.put(ctx, goalKeyPrefix+g.ID, g, 0)
}

// Update runs mutate against the stored goal and writes the result. The per-goal lock is
// held across the read and the write, so concurrent updates in this process apply one at a
// time; Version is bumped on every write. mutate returns false to skip the write.
func (r *GoalRepository) Update(ctx context.Context, id string, mutate func(*models.Goal) bool) (*models.Goal, error) {
	unlock := r.locks.Lock(goalKeyPrefix + id)
	defer unlock()

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if !mutate(&next) {
		return current, nil
	}
	next.Version = current.Version + 1
	if err := r.docs.put(ctx, goalKeyPrefix+id, next, 0); err != nil {
		return nil, err
	}
	return &next, nil
}

// List returns every goal, ordered by creation time.
func (r *GoalRepository) List(ctx context.Context) ([]models.Goal, error) {
	keys, err := r.docs.keys(ctx, goalKeyPrefix)
	if err != nil {
		return nil, err
	}
	goals := make([]models.Goal, 0, len(keys))
	for _, k := range keys {
		var g models.Goal
		if err := r.docs.get(ctx, k, &g); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		goals = append(goals, g)
	}
	sortGoals(goals)
	return goals, nil
}

// CheckInRepository check-ins as JSON documents.
type CheckInRepository struct {
	docs  docStore
	locks *store.KeyedLock
}

func NewCheckInRepository(kv store.KV, timeout time.Duration) *CheckInRepository {
	return &CheckInRepository{docs: docStore{kv: kv, timeout: timeout}, locks: store.NewKeyedLock()}
}

func (r *CheckInRepository) Create(ctx context.Context, c models.CheckIn) error {
	return r.docs.put(ctx, checkInKeyPrefix+c.ID, c, 0)
}

func (r *CheckInRepository) Get(ctx context.Context, id string) (*models.CheckIn, error) {
	var c models.CheckIn
	if err := r.docs.get(ctx, checkInKeyPrefix+id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkFlagged sets Flagged and FlagReasons once.
// It reports false when another caller already flagged the check-in.
func (r *CheckInRepository) MarkFlagged(ctx context.Context, id string, reasons []string) (bool, error) {
	unlock := r.locks.Lock(checkInKeyPrefix + id)
	defer unlock()

	c, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Flagged {
		return false, nil
	}
	c.Flagged = true
	c.FlagReasons = append([]string(nil), reasons...)
	if err := r.docs.put(ctx, checkInKeyPrefix+id, c, 0); err != nil {
		return false, err
	}
	return true, nil
}

// SetNotification records the fan-out outcome. notified wins over pending, and a
// check-in already marked notified is left alone.
func (r *CheckInRepository) SetNotification(ctx context.Context, id string, notified, pending bool) error {
	unlock := r.locks.Lock(checkInKeyPrefix + id)
	defer unlock()

	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.CaregiverNotified {
		return nil
	}
	c.CaregiverNotified = notified
	c.NotificationPending = pending && !notified
	return r.docs.put(ctx, checkInKeyPrefix+id, c, 0)
}

// List returns check-ins at or after since, newest first.
func (r *CheckInRepository) List(ctx context.Context, since time.Time) ([]models.CheckIn, error) {
	keys, err := r.docs.keys(ctx, checkInKeyPrefix)
	if err != nil {
		return nil, err
	}
	var out []models.CheckIn
	for _, k := range keys {
		var c models.CheckIn
		if err := r.docs.get(ctx, k, &c); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if c.Timestamp.Before(since) {
			continue
		}
		out = append(out, c)
	}
	sortCheckIns(out)
	return out, nil
}

// CaregiverRepository registered caregivers and their permissions.
type CaregiverRepository struct {
	docs docStore
}

func NewCaregiverRepository(kv store.KV, timeout time.Duration) *CaregiverRepository {
	return &CaregiverRepository{docs: docStore{kv: kv, timeout: timeout}}
}

func (r *CaregiverRepository) Save(ctx context.Context, c models.Caregiver) error {
	return r.docs.put(ctx, caregiverKeyPrefix+c.ID, c, 0)
}

func (r *CaregiverRepository) Get(ctx context.Context, id string) (*models.Caregiver, error) {
	var c models.Caregiver
	if err := r.docs.get(ctx, caregiverKeyPrefix+id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CaregiverRepository) List(ctx context.Context) ([]models.Caregiver, error) {
	keys, err := r.docs.keys(ctx, caregiverKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Caregiver, 0, len(keys))
	for _, k := range keys {
		var c models.Caregiver
		if err := r.docs.get(ctx, k, &c); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CorrelationRepository the latest correlation batch, stored as one document.
type CorrelationRepository struct {
	docs docStore
}

func NewCorrelationRepository(kv store.KV, timeout time.Duration) *CorrelationRepository {
	return &CorrelationRepository{docs: docStore{kv: kv, timeout: timeout}}
}

// Replace swaps the stored batch in a single write.
func (r *CorrelationRepository) Replace(ctx context.Context, set models.CorrelationSet) error {
	return r.docs.put(ctx, correlationsKey, set, 0)
}

func (r *CorrelationRepository) Latest(ctx context.Context) (models.CorrelationSet, error) {
	var set models.CorrelationSet
	err := r.docs.get(ctx, correlationsKey, &set)
	if errors.Is(err, models.ErrNotFound) {
		return models.CorrelationSet{}, nil
	}
	return set, err
}

// TrendCache computed trends keyed by metric and period, with a TTL.
type TrendCache struct {
	docs docStore
	ttl  time.Duration
}

func NewTrendCache(kv store.KV, timeout, ttl time.Duration) *TrendCache {
	return &TrendCache{docs: docStore{kv: kv, timeout: timeout}, ttl: ttl}
}

func trendKey(metricType models.MetricType, period models.Period) string {
	return trendKeyPrefix + string(metricType) + ":" + string(period)
}

func (c *TrendCache) Put(ctx context.Context, t models.TrendResult) error {
	return c.docs.put(ctx, trendKey(t.MetricType, t.Period), t, c.ttl)
}

// Get returns ErrNotFound on a miss.
func (c *TrendCache) Get(ctx context.Context, metricType models.MetricType, period models.Period) (*models.TrendResult, error) {
	var t models.TrendResult
	if err := c.docs.get(ctx, trendKey(metricType, period), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsightLogRepository persists the bounded insight log as one document.
type InsightLogRepository struct {
	docs docStore
}

func NewInsightLogRepository(kv store.KV, timeout time.Duration) *InsightLogRepository {
	return &InsightLogRepository{docs: docStore{kv: kv, timeout: timeout}}
}

func (r *InsightLogRepository) Save(ctx context.Context, entries []models.Insight) error {
	return r.docs.put(ctx, insightLogKey, entries, 0)
}

func (r *InsightLogRepository) Load(ctx context.Context) ([]models.Insight, error) {
	var entries []models.Insight
	err := r.docs.get(ctx, insightLogKey, &entries)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return entries, err
}

// PendingDeliveryRepository critical deliveries awaiting retry.
type PendingDeliveryRepository struct {
	docs docStore
}

func NewPendingDeliveryRepository(kv store.KV, timeout time.Duration) *PendingDeliveryRepository {
	return &PendingDeliveryRepository{docs: docStore{kv: kv, timeout: timeout}}
}

func (r *PendingDeliveryRepository) Enqueue(ctx context.Context, d models.Delivery) error {
	return r.docs.put(ctx, pendingKeyPrefix+d.ID, d, 0)
}

func (r *PendingDeliveryRepository) Remove(ctx context.Context, id string) error {
	return r.docs.delete(ctx, pendingKeyPrefix+id)
}

// List returns queued deliveries, oldest first.
func (r *PendingDeliveryRepository) List(ctx context.Context) ([]models.Delivery, error) {
	keys, err := r.docs.keys(ctx, pendingKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]models.Delivery, 0, len(keys))
	for _, k := range keys {
		var d models.Delivery
		if err := r.docs.get(ctx, k, &d); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, d)
	}
	sortDeliveries(out)
	return out, nil
}
