package insights

import (
	"context"
	"errors"
	"sync"
	"time"

	"wellness-analytics/internal/store"
)

// DefaultAdviceCooldown how long an advice key stays suppressed after use.
const DefaultAdviceCooldown = 24 * time.Hour

// AdviceHistory maps an advice context key to when it was last shown.
type AdviceHistory interface {
	LastUsed(ctx context.Context, key string) (time.Time, bool, error)
	MarkUsed(ctx context.Context, key string, at time.Time) error
}

// MemoryAdviceHistory process-local history.
type MemoryAdviceHistory struct {
	mu   sync.Mutex
	used map[string]time.Time
}

func NewMemoryAdviceHistory() *MemoryAdviceHistory {
	return &MemoryAdviceHistory{used: make(map[string]time.Time)}
}

func (h *MemoryAdviceHistory) LastUsed(ctx context.Context, key string) (time.Time, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.used[key]
	return t, ok, nil
}

func (h *MemoryAdviceHistory) MarkUsed(ctx context.Context, key string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used[key] = at
	return nil
}

const adviceKeyPrefix = "wellness:advice:"

// KVAdviceHistory keeps entries in the KV store; they expire with the cooldown.
type KVAdviceHistory struct {
	kv  store.KV
	ttl time.Duration
}

func NewKVAdviceHistory(kv store.KV, ttl time.Duration) *KVAdviceHistory {
	return &KVAdviceHistory{kv: kv, ttl: ttl}
}

func (h *KVAdviceHistory) LastUsed(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := h.kv.Get(ctx, adviceKeyPrefix+key)
	if errors.Is(err, store.ErrMiss) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (h *KVAdviceHistory) MarkUsed(ctx context.Context, key string, at time.Time) error {
	return h.kv.Set(ctx, adviceKeyPrefix+key, at.Format(time.RFC3339Nano), h.ttl)
}
