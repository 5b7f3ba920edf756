package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-analytics/internal/goals"
	"wellness-analytics/internal/insights"
	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
	"wellness-analytics/internal/store"
)

type mockVitals struct {
	mock.Mock
}

func (m *mockVitals) HandleVitals(ctx context.Context, v models.VitalSigns) []models.Alert {
	args := m.Called(ctx, v)
	alerts, _ := args.Get(0).([]models.Alert)
	return alerts
}

func newIngestor(t *testing.T, vitals VitalsHandler) (*Ingestor, *repository.MemoryMetricStore, *goals.Tracker, *insights.Log) {
	ms := repository.NewMemoryMetricStore()
	tracker := goals.NewTracker(repository.NewGoalRepository(store.NewMemoryKV(), time.Second), zap.NewNop())
	log := insights.NewLog(insights.LogOptions{}, zap.NewNop())
	tracker.OnAchieved(insights.AchievementRecorder(insights.NewGenerator(), log))
	return NewIngestor(ms, tracker, vitals, zap.NewNop()), ms, tracker, log
}

func TestIngest_AppendsAndTicksGoals(t *testing.T) {
	ing, ms, tracker, log := newIngestor(t, nil)
	ctx := context.Background()
	id, err := tracker.CreateGoal(ctx, models.MetricSteps, 8000, 2000, models.TimeframeDaily, nil)
	require.NoError(t, err)

	now := time.Now()
	res, err := ing.Ingest(ctx, models.MetricSample{MetricType: models.MetricSteps, Value: models.Scalar(9000), Timestamp: now, Source: models.SourceDevice})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Sample.ID)
	assert.Equal(t, 1, res.GoalsUpdated)
	assert.Equal(t, 1, res.GoalsAchieved)

	ts, err := ms.Query(ctx, models.MetricSteps, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, ts, 1)

	g, err := tracker.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, g.Progress)

	snap := log.Snapshot(false)
	require.Len(t, snap, 1)
	assert.Equal(t, models.InsightAchievement, snap[0].Kind)
}

func TestIngest_InvalidSampleRejected(t *testing.T) {
	ing, _, _, _ := newIngestor(t, nil)
	_, err := ing.Ingest(context.Background(), models.MetricSample{MetricType: "aura", Value: models.Scalar(1), Timestamp: time.Now(), Source: models.SourceManual})
	assert.True(t, errors.Is(err, models.ErrInvalidSample))
}

func TestIngestBatch_SkipsOnlyInvalid(t *testing.T) {
	ing, ms, _, _ := newIngestor(t, nil)
	now := time.Now()
	res := ing.IngestBatch(context.Background(), []models.MetricSample{
		{MetricType: models.MetricMood, Value: models.Scalar(3), Timestamp: now, Source: models.SourceManual},
		{MetricType: models.MetricMood, Timestamp: now, Source: models.SourceManual},
		{MetricType: models.MetricMood, Value: models.Scalar(4), Timestamp: now.Add(time.Second), Source: models.SourceManual},
	})
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, res.Errors, 1)

	ts, err := ms.Query(context.Background(), models.MetricMood, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, ts, 2)
}

func TestIngest_DeviceVitalsEscalated(t *testing.T) {
	vitals := new(mockVitals)
	vitals.On("HandleVitals", mock.Anything, mock.MatchedBy(func(v models.VitalSigns) bool {
		return v.HeartRate != nil && v.HeartRate.BPM == 130
	})).Return([]models.Alert{{Type: models.AlertVitalSignsCritical}}).Once()
	ing, _, _, _ := newIngestor(t, vitals)
	ctx := context.Background()

	res, err := ing.Ingest(ctx, models.MetricSample{MetricType: models.MetricHeartRate, Value: models.Scalar(130), Timestamp: time.Now(), Source: models.SourceDevice})
	require.NoError(t, err)
	assert.Len(t, res.Alerts, 1)

	// manual entries are not escalated on ingest
	_, err = ing.Ingest(ctx, models.MetricSample{MetricType: models.MetricHeartRate, Value: models.Scalar(130), Timestamp: time.Now(), Source: models.SourceManual})
	require.NoError(t, err)
	vitals.AssertExpectations(t)
}

// unavailableStore fails every call the way a timed-out backend does.
type unavailableStore struct{}

func (unavailableStore) Append(ctx context.Context, sample models.MetricSample) error {
	return fmt.Errorf("%w: append: timeout", models.ErrStoreUnavailable)
}

func (unavailableStore) Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error) {
	return nil, fmt.Errorf("%w: query: timeout", models.ErrStoreUnavailable)
}

func (unavailableStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, fmt.Errorf("%w: prune: timeout", models.ErrStoreUnavailable)
}

func TestIngest_VitalsEscalatedWhenStoreUnavailable(t *testing.T) {
	vitals := new(mockVitals)
	vitals.On("HandleVitals", mock.Anything, mock.MatchedBy(func(v models.VitalSigns) bool {
		return v.HeartRate != nil && v.HeartRate.BPM == 130
	})).Return([]models.Alert{{Type: models.AlertVitalSignsCritical, Priority: models.PriorityCritical}}).Once()

	tracker := goals.NewTracker(repository.NewGoalRepository(store.NewMemoryKV(), time.Second), zap.NewNop())
	ing := NewIngestor(unavailableStore{}, tracker, vitals, zap.NewNop())

	res, err := ing.Ingest(context.Background(), models.MetricSample{MetricType: models.MetricHeartRate, Value: models.Scalar(130), Timestamp: time.Now(), Source: models.SourceDevice})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.PriorityCritical, res.Alerts[0].Priority)
	assert.Equal(t, 0, res.GoalsUpdated)
	vitals.AssertExpectations(t)
}

func TestIngestEmotion(t *testing.T) {
	ing, ms, _, _ := newIngestor(t, nil)
	ctx := context.Background()
	now := time.Now()

	_, err := ing.IngestEmotion(ctx, models.EmotionSample{Emotion: " Happy ", Confidence: 0.9, Timestamp: now})
	require.NoError(t, err)
	_, err = ing.IngestEmotion(ctx, models.EmotionSample{Emotion: "", Confidence: 0.9, Timestamp: now})
	assert.ErrorIs(t, err, models.ErrInvalidSample)
	_, err = ing.IngestEmotion(ctx, models.EmotionSample{Emotion: "sad", Confidence: 1.5, Timestamp: now})
	assert.ErrorIs(t, err, models.ErrInvalidSample)

	ts, err := ms.Query(ctx, models.MetricEmotion, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "happy", ts[0].Value.Text)
	assert.Equal(t, models.SourceEstimation, ts[0].Source)
}
