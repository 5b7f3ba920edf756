package goals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
	"wellness-analytics/internal/store"
)

var day0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) // a Monday

func newTracker() *Tracker {
	tr := NewTracker(repository.NewGoalRepository(store.NewMemoryKV(), time.Second), zap.NewNop())
	tr.now = func() time.Time { return day0 }
	return tr
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(8000, 4000, 4000))
	assert.Equal(t, 50.0, Progress(8000, 4000, 6000))
	assert.Equal(t, 100.0, Progress(8000, 4000, 9000))
	assert.Equal(t, 0.0, Progress(8000, 4000, 1000))
	// lower target
	assert.Equal(t, 50.0, Progress(2, 8, 5))
	assert.Equal(t, 100.0, Progress(5, 5, 1))
}

func TestCreateGoal_Validation(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	_, err := tr.CreateGoal(ctx, "karma", 1, 0, models.TimeframeDaily, nil)
	assert.ErrorIs(t, err, ErrInvalidGoal)
	_, err = tr.CreateGoal(ctx, models.MetricSteps, 1, 0, "yearly", nil)
	assert.ErrorIs(t, err, ErrInvalidGoal)

	id, err := tr.CreateGoal(ctx, models.MetricSteps, 8000, 4000, models.TimeframeDaily, nil)
	require.NoError(t, err)
	g, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, g.IsActive)
	assert.Equal(t, 0.0, g.Progress)
	assert.Equal(t, 4000.0, g.CurrentValue)
}

func TestRecordProgress_Idempotent(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()
	id, err := tr.CreateGoal(ctx, models.MetricSteps, 8000, 4000, models.TimeframeDaily, nil)
	require.NoError(t, err)

	first, err := tr.RecordProgress(ctx, id, 6000, day0)
	require.NoError(t, err)
	second, err := tr.RecordProgress(ctx, id, 6000, day0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 50.0, first.Goal.Progress)
	assert.Equal(t, first.Goal.Progress, second.Goal.Progress)
	assert.Equal(t, first.Goal.StreakDays, second.Goal.StreakDays)
	assert.Equal(t, first.Goal.Version, second.Goal.Version)
}

func TestRecordProgress_AchievedOnceAndStreak(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()
	id, err := tr.CreateGoal(ctx, models.MetricSteps, 8000, 4000, models.TimeframeDaily, nil)
	require.NoError(t, err)

	u, err := tr.RecordProgress(ctx, id, 8500, day0)
	require.NoError(t, err)
	assert.True(t, u.NewlyAchieved)
	assert.Equal(t, 1, u.Goal.StreakDays)
	require.NotNil(t, u.Goal.LastAchieved)
	firstAchieved := *u.Goal.LastAchieved

	// same day again: no new streak day
	u, err = tr.RecordProgress(ctx, id, 9000, day0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, u.NewlyAchieved)
	assert.Equal(t, 1, u.Goal.StreakDays)

	u, err = tr.RecordProgress(ctx, id, 8100, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, u.Goal.StreakDays)
	assert.Equal(t, firstAchieved, *u.Goal.LastAchieved)

	// missed target resets
	u, err = tr.RecordProgress(ctx, id, 5000, day0.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, u.Goal.StreakDays)

	u, err = tr.RecordProgress(ctx, id, 8000, day0.AddDate(0, 0, 2).Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, u.Goal.StreakDays)
	assert.False(t, u.NewlyAchieved)

	// a skipped day breaks the streak
	u, err = tr.RecordProgress(ctx, id, 8000, day0.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, u.Goal.StreakDays)
}

func TestRecordProgress_WeeklyStreak(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()
	id, err := tr.CreateGoal(ctx, models.MetricSleep, 8, 6, models.TimeframeWeekly, nil)
	require.NoError(t, err)

	u, err := tr.RecordProgress(ctx, id, 8, day0)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Goal.StreakDays)

	u, err = tr.RecordProgress(ctx, id, 8, day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, u.Goal.StreakDays)

	u, err = tr.RecordProgress(ctx, id, 9, day0.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, 2, u.Goal.StreakDays)
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-01", periodKey(models.TimeframeDaily, at))
	assert.Equal(t, "2026-W01", periodKey(models.TimeframeWeekly, at))
	assert.Equal(t, "2026-01", periodKey(models.TimeframeMonthly, at))
	assert.Equal(t, "2025-12", periodKey(models.TimeframeMonthly, previousPeriod(models.TimeframeMonthly, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))))
}

func TestTick_UpdatesMatchingActiveGoals(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()
	steps, err := tr.CreateGoal(ctx, models.MetricSteps, 8000, 0, models.TimeframeDaily, nil)
	require.NoError(t, err)
	retired, err := tr.CreateGoal(ctx, models.MetricSteps, 100, 0, models.TimeframeDaily, nil)
	require.NoError(t, err)
	sleep, err := tr.CreateGoal(ctx, models.MetricSleep, 8, 0, models.TimeframeDaily, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Deactivate(ctx, retired))

	updates := tr.Tick(ctx, models.MetricSample{
		MetricType: models.MetricSteps, Value: models.Scalar(4000), Timestamp: day0, Source: models.SourceDevice,
	})
	require.Len(t, updates, 1)
	assert.Equal(t, steps, updates[0].Goal.ID)
	assert.Equal(t, 50.0, updates[0].Goal.Progress)

	g, err := tr.Get(ctx, sleep)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g.Progress)

	active, err := tr.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = tr.RecordProgress(ctx, retired, 100, day0)
	assert.ErrorIs(t, err, ErrGoalInactive)
}
