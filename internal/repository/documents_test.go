package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/store"
)

func TestGoalRepository_UpdateBumpsVersion(t *testing.T) {
	repo := NewGoalRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, models.Goal{ID: "g1", MetricType: models.MetricSteps, TargetValue: 8000, IsActive: true}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "g1", func(g *models.Goal) bool {
				g.CurrentValue++
				return true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	g, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, g.CurrentValue)
	assert.Equal(t, int64(20), g.Version)
}

func TestGoalRepository_UpdateSkipAndNotFound(t *testing.T) {
	repo := NewGoalRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, models.Goal{ID: "g1"}))

	g, err := repo.Update(ctx, "g1", func(*models.Goal) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.Version)

	_, err = repo.Update(ctx, "missing", func(*models.Goal) bool { return true })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCheckInRepository_MarkFlaggedOnce(t *testing.T) {
	repo := NewCheckInRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, models.CheckIn{ID: "c1", Timestamp: time.Now(), OverallScore: 2}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkFlagged(ctx, "c1", []string{"overall_score"})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.Flagged)
	assert.False(t, c.CaregiverNotified)
	assert.Equal(t, []string{"overall_score"}, c.FlagReasons)
}

func TestCheckInRepository_SetNotification(t *testing.T) {
	repo := NewCheckInRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, models.CheckIn{ID: "c1", Timestamp: time.Now()}))

	require.NoError(t, repo.SetNotification(ctx, "c1", false, true))
	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, c.CaregiverNotified)
	assert.True(t, c.NotificationPending)

	require.NoError(t, repo.SetNotification(ctx, "c1", true, false))
	// a late pending mark does not undo a completed fan-out
	require.NoError(t, repo.SetNotification(ctx, "c1", false, true))
	c, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.CaregiverNotified)
	assert.False(t, c.NotificationPending)

	assert.ErrorIs(t, repo.SetNotification(ctx, "missing", true, false), models.ErrNotFound)
}

func TestCorrelationRepository_ReplaceAndEmpty(t *testing.T) {
	repo := NewCorrelationRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()

	set, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Empty(t, set.Correlations)

	require.NoError(t, repo.Replace(ctx, models.CorrelationSet{Correlations: []models.Correlation{{MetricA: models.MetricMood, MetricB: models.MetricSleep, Coefficient: 0.8}}}))
	require.NoError(t, repo.Replace(ctx, models.CorrelationSet{Correlations: []models.Correlation{{MetricA: models.MetricPain, MetricB: models.MetricMood, Coefficient: -0.6}}}))

	set, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, set.Correlations, 1)
	assert.Equal(t, models.MetricPain, set.Correlations[0].MetricA)
}

func TestPendingDeliveryRepository_OrderAndRemove(t *testing.T) {
	repo := NewPendingDeliveryRepository(store.NewMemoryKV(), time.Second)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Enqueue(ctx, models.Delivery{ID: "b", QueuedAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Enqueue(ctx, models.Delivery{ID: "a", QueuedAt: now}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	require.NoError(t, repo.Remove(ctx, "a"))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTrendCache_Miss(t *testing.T) {
	cache := NewTrendCache(store.NewMemoryKV(), time.Second, time.Hour)
	_, err := cache.Get(context.Background(), models.MetricMood, models.Period7d)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, cache.Put(context.Background(), models.TrendResult{MetricType: models.MetricMood, Period: models.Period7d, Direction: models.DirectionStable}))
	got, err := cache.Get(context.Background(), models.MetricMood, models.Period7d)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionStable, got.Direction)
}
