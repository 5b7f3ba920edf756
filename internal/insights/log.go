package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

// DefaultRetention number of insights kept before the oldest is evicted.
const DefaultRetention = 100

// LogStore persistence for the log; *repository.InsightLogRepository satisfies it.
type LogStore interface {
	Save(ctx context.Context, entries []models.Insight) error
	Load(ctx context.Context) ([]models.Insight, error)
}

// Log bounded, append-only insight log. Dismissal is the only mutation.
type Log struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	adviceMu  sync.Mutex       // check and mark of a source key happen together
	entries   []models.Insight // oldest first
	retention int
	cooldown  time.Duration
	history   AdviceHistory
	store     LogStore
	logger    *zap.Logger
	now       func() time.Time
}

// LogOptions optional collaborators; zero values fall back to defaults.
type LogOptions struct {
	Retention int
	Cooldown  time.Duration
	History   AdviceHistory
	Store     LogStore
}

func NewLog(opts LogOptions, logger *zap.Logger) *Log {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultAdviceCooldown
	}
	if opts.History == nil {
		opts.History = NewMemoryAdviceHistory()
	}
	return &Log{
		retention: opts.Retention,
		cooldown:  opts.Cooldown,
		history:   opts.History,
		store:     opts.Store,
		logger:    logger,
		now:       time.Now,
	}
}

// Restore replaces the in-memory log with the persisted one.
func (l *Log) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load insights: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > l.retention {
		entries = entries[len(entries)-l.retention:]
	}
	l.entries = entries
	return nil
}

// Append adds an insight unless its source key was used within the cooldown.
// It reports whether the insight was added.
func (l *Log) Append(ctx context.Context, in *models.Insight) bool {
	if in == nil {
		return false
	}
	now := l.now()
	if in.SourceKey != "" && !l.reserve(ctx, in.SourceKey, now) {
		return false
	}

	l.mu.Lock()
	l.entries = append(l.entries, *in)
	if over := len(l.entries) - l.retention; over > 0 {
		// copy so the evicted prefix can be collected
		l.entries = append([]models.Insight(nil), l.entries[over:]...)
	}
	l.mu.Unlock()

	l.persist(ctx)
	return true
}

// reserve claims key for the cooldown. It reports false when the key was used within it.
// An unavailable history lets the insight through.
func (l *Log) reserve(ctx context.Context, key string, now time.Time) bool {
	l.adviceMu.Lock()
	defer l.adviceMu.Unlock()

	last, ok, err := l.history.LastUsed(ctx, key)
	if err != nil {
		l.logger.Warn("Advice history unavailable", zap.String("key", key), zap.Error(err))
	} else if ok && now.Sub(last) < l.cooldown {
		return false
	}
	if err := l.history.MarkUsed(ctx, key, now); err != nil {
		l.logger.Warn("Failed to record advice use", zap.String("key", key), zap.Error(err))
	}
	return true
}

// Dismiss marks an insight dismissed. Dismissing twice is a no-op.
func (l *Log) Dismiss(ctx context.Context, id string) error {
	l.mu.Lock()
	idx := -1
	for i := range l.entries {
		if l.entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		l.mu.Unlock()
		return fmt.Errorf("insight %s: %w", id, models.ErrNotFound)
	}
	if l.entries[idx].Dismissed {
		l.mu.Unlock()
		return nil
	}
	l.entries[idx].Dismissed = true
	l.mu.Unlock()

	l.persist(ctx)
	return nil
}

// Snapshot returns a copy of the log, newest first.
func (l *Log) Snapshot(includeDismissed bool) []models.Insight {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Insight, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Dismissed && !includeDismissed {
			continue
		}
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) copyLocked() []models.Insight {
	out := make([]models.Insight, len(l.entries))
	copy(out, l.entries)
	return out
}

// persist writes the current log; persistMu orders concurrent writers so the last save wins with the latest state.
func (l *Log) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.RLock()
	entries := l.copyLocked()
	l.mu.RUnlock()

	if err := l.store.Save(ctx, entries); err != nil {
		l.logger.Warn("Failed to persist insights", zap.Error(err))
	}
}
