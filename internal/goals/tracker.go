package goals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

var (
	ErrInvalidGoal  = errors.New("invalid goal")
	ErrGoalInactive = errors.New("goal is inactive")
)

// Store persistence the tracker needs; *repository.GoalRepository satisfies it.
type Store interface {
	Create(ctx context.Context, g models.Goal) error
	Get(ctx context.Context, id string) (*models.Goal, error)
	Update(ctx context.Context, id string, mutate func(*models.Goal) bool) (*models.Goal, error)
	List(ctx context.Context) ([]models.Goal, error)
}

// ProgressUpdate result of one progress evaluation.
type ProgressUpdate struct {
	Goal models.Goal `json:"goal"`
	// NewlyAchieved progress reached 100 for the first time in the goal's life.
	NewlyAchieved bool `json:"newly_achieved"`
}

// AchievementHandler is called once for a goal that reaches its target for the first time.
type AchievementHandler func(ctx context.Context, g models.Goal)

// Tracker owns every write to a goal's progress fields.
type Tracker struct {
	store      Store
	onAchieved AchievementHandler
	logger     *zap.Logger
	now        func() time.Time
}

func NewTracker(store Store, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// OnAchieved registers h for every progress write, whichever caller made it.
func (t *Tracker) OnAchieved(h AchievementHandler) {
	t.onAchieved = h
}

// CreateGoal stores a new active goal and returns its ID.
func (t *Tracker) CreateGoal(ctx context.Context, metricType models.MetricType, target, initial float64, timeframe models.Timeframe, deadline *time.Time) (string, error) {
	if !metricType.IsKnown() || metricType == models.MetricEmotion {
		return "", fmt.Errorf("%w: metric type %q", ErrInvalidGoal, metricType)
	}
	if !timeframe.IsValid() {
		return "", fmt.Errorf("%w: timeframe %q", ErrInvalidGoal, timeframe)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return "", fmt.Errorf("%w: target must be finite", ErrInvalidGoal)
	}

	g := models.Goal{
		ID:           uuid.New().String(),
		MetricType:   metricType,
		TargetValue:  target,
		InitialValue: initial,
		CurrentValue: initial,
		Timeframe:    timeframe,
		Deadline:     deadline,
		IsActive:     true,
		Progress:     Progress(target, initial, initial),
		CreatedAt:    t.now(),
	}
	if err := t.store.Create(ctx, g); err != nil {
		return "", fmt.Errorf("failed to create goal: %w", err)
	}
	t.logger.Info("Goal created",
		zap.String("goal_id", g.ID),
		zap.String("metric_type", string(metricType)),
		zap.Float64("target", target),
	)
	return g.ID, nil
}

// Progress percentage of the distance from initial to target covered by current, in [0, 100].
func Progress(target, initial, current float64) float64 {
	span := math.Abs(target - initial)
	if span == 0 {
		return 100
	}
	p := (span - math.Abs(target-current)) / span * 100
	return math.Max(0, math.Min(100, p))
}

// RecordProgress applies currentValue observed at `at` as one compare-and-set.
// Repeating the same value within the same period changes nothing.
func (t *Tracker) RecordProgress(ctx context.Context, goalID string, currentValue float64, at time.Time) (ProgressUpdate, error) {
	var (
		update   ProgressUpdate
		inactive bool
	)
	evaluatedAt := t.now()

	g, err := t.store.Update(ctx, goalID, func(g *models.Goal) bool {
		if !g.IsActive {
			inactive = true
			return false
		}
		return apply(g, currentValue, at, evaluatedAt, &update.NewlyAchieved)
	})
	if err != nil {
		return ProgressUpdate{}, fmt.Errorf("failed to record progress for goal %s: %w", goalID, err)
	}
	if inactive {
		return ProgressUpdate{Goal: *g}, ErrGoalInactive
	}
	update.Goal = *g
	if update.NewlyAchieved {
		t.logger.Info("Goal achieved", zap.String("goal_id", goalID), zap.Float64("value", currentValue))
		if t.onAchieved != nil {
			t.onAchieved(ctx, update.Goal)
		}
	}
	return update, nil
}

// apply mutates g and reports whether anything changed.
func apply(g *models.Goal, current float64, at, evaluatedAt time.Time, newlyAchieved *bool) bool {
	before := *g

	g.CurrentValue = current
	g.Progress = Progress(g.TargetValue, g.InitialValue, current)

	key := periodKey(g.Timeframe, at)
	if g.Progress >= 100 {
		if g.StreakPeriod != key {
			if g.StreakPeriod != "" && g.StreakPeriod == periodKey(g.Timeframe, previousPeriod(g.Timeframe, at)) {
				g.StreakDays++
			} else {
				g.StreakDays = 1
			}
			g.StreakPeriod = key
		}
		if g.LastAchieved == nil {
			stamp := at
			g.LastAchieved = &stamp
			*newlyAchieved = true
		}
	} else {
		g.StreakDays = 0
		g.StreakPeriod = ""
	}
	g.LastPeriod = key

	changed := g.CurrentValue != before.CurrentValue ||
		g.Progress != before.Progress ||
		g.StreakDays != before.StreakDays ||
		g.StreakPeriod != before.StreakPeriod ||
		g.LastPeriod != before.LastPeriod ||
		(g.LastAchieved == nil) != (before.LastAchieved == nil)
	if changed {
		stamp := evaluatedAt
		g.LastEvaluated = &stamp
	}
	return changed
}

// periodKey identifies the calendar day, ISO week or month containing t.
func periodKey(tf models.Timeframe, t time.Time) string {
	switch tf {
	case models.TimeframeWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case models.TimeframeMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func previousPeriod(tf models.Timeframe, t time.Time) time.Time {
	switch tf {
	case models.TimeframeWeekly:
		return t.AddDate(0, 0, -7)
	case models.TimeframeMonthly:
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return first.AddDate(0, -1, 0)
	default:
		return t.AddDate(0, 0, -1)
	}
}

// Tick evaluates every active goal of the sample's metric. Failures are logged per goal.
func (t *Tracker) Tick(ctx context.Context, sample models.MetricSample) []ProgressUpdate {
	goals, err := t.ListActive(ctx)
	if err != nil {
		t.logger.Warn("Failed to list goals for tick", zap.Error(err))
		return nil
	}

	var updates []ProgressUpdate
	for _, g := range goals {
		if g.MetricType != sample.MetricType {
			continue
		}
		u, err := t.RecordProgress(ctx, g.ID, sample.Value.Float(), sample.Timestamp)
		if err != nil {
			if !errors.Is(err, ErrGoalInactive) {
				t.logger.Warn("Failed to update goal",
					zap.String("goal_id", g.ID),
					zap.String("metric_type", string(sample.MetricType)),
					zap.Error(err),
				)
			}
			continue
		}
		updates = append(updates, u)
	}
	return updates
}

// Deactivate retires a goal. Goals are never deleted.
func (t *Tracker) Deactivate(ctx context.Context, goalID string) error {
	_, err := t.store.Update(ctx, goalID, func(g *models.Goal) bool {
		if !g.IsActive {
			return false
		}
		g.IsActive = false
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate goal %s: %w", goalID, err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, goalID string) (*models.Goal, error) {
	return t.store.Get(ctx, goalID)
}

func (t *Tracker) ListActive(ctx context.Context) ([]models.Goal, error) {
	all, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0:0]
	for _, g := range all {
		if g.IsActive {
			active = append(active, g)
		}
	}
	return active, nil
}

// List returns all goals, active or not.
func (t *Tracker) List(ctx context.Context) ([]models.Goal, error) {
	return t.store.List(ctx)
}
