package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

func shuffledSamples(n int, base time.Time) []models.MetricSample {
	samples := make([]models.MetricSample, n)
	for i := 0; i < n; i++ {
		samples[i] = models.MetricSample{
			ID:         fmt.Sprintf("s-%02d", i),
			MetricType: models.MetricMood,
			Value:      models.Scalar(float64(i % 5)),
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			Source:     models.SourceManual,
		}
	}
	r := rand.New(rand.NewSource(7))
	r.Shuffle(n, func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
	return samples
}

func assertRoundTrip(t *testing.T, s MetricStore) {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	in := shuffledSamples(20, base)
	for _, sample := range in {
		require.NoError(t, s.Append(ctx, sample))
	}
	// other metric must not leak into the mood series
	require.NoError(t, s.Append(ctx, models.MetricSample{
		ID: "p-1", MetricType: models.MetricPain, Value: models.Scalar(3),
		Timestamp: base, Source: models.SourceManual,
	}))

	ts, err := s.Query(ctx, models.MetricMood, base)
	require.NoError(t, err)
	require.Len(t, ts, 20)
	for i := range ts {
		assert.Equal(t, fmt.Sprintf("s-%02d", i), ts[i].ID)
		if i > 0 {
			assert.False(t, ts[i].Timestamp.Before(ts[i-1].Timestamp))
		}
	}

	later, err := s.Query(ctx, models.MetricMood, base.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Len(t, later, 5)
}

func TestMemoryMetricStore_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemoryMetricStore())
}

func TestMemoryMetricStore_QueryIsSnapshot(t *testing.T) {
	s := NewMemoryMetricStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, models.MetricSample{ID: "a", MetricType: models.MetricSleep, Value: models.Scalar(7), Timestamp: base, Source: models.SourceDevice}))

	snap, err := s.Query(ctx, models.MetricSleep, base)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, models.MetricSample{ID: "b", MetricType: models.MetricSleep, Value: models.Scalar(8), Timestamp: base.Add(time.Hour), Source: models.SourceDevice}))

	assert.Len(t, snap, 1)
}

func TestMemoryMetricStore_Prune(t *testing.T) {
	s := NewMemoryMetricStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, sample := range shuffledSamples(10, base) {
		require.NoError(t, s.Append(ctx, sample))
	}

	n, err := s.Prune(ctx, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	ts, err := s.Query(ctx, models.MetricMood, time.Time{})
	require.NoError(t, err)
	assert.Len(t, ts, 6)
}

func setupRedisMetricStore(t *testing.T) (*miniredis.Miniredis, *RedisMetricStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisMetricStore(client, time.Second, zap.NewNop())
}

func TestRedisMetricStore_RoundTrip(t *testing.T) {
	_, s := setupRedisMetricStore(t)
	assertRoundTrip(t, s)
}

func TestRedisMetricStore_Prune(t *testing.T) {
	_, s := setupRedisMetricStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, sample := range shuffledSamples(10, base) {
		require.NoError(t, s.Append(ctx, sample))
	}

	n, err := s.Prune(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisMetricStore_UnavailableIsWrapped(t *testing.T) {
	mr, s := setupRedisMetricStore(t)
	mr.Close()

	_, err := s.Query(context.Background(), models.MetricMood, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestPostgresMetricStore_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresMetricStore(db, time.Second, zap.NewNop())

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "metric_type", "value", "unit", "ts", "source", "tags"}).
		AddRow("b", "blood_pressure", []byte(`{"systolic":130,"diastolic":85}`), "mmHg", base.Add(time.Hour), "device", "{}").
		AddRow("a", "blood_pressure", []byte(`{"systolic":120,"diastolic":80}`), nil, base, "device", "{home}")

	mock.ExpectQuery(`SELECT id, metric_type, value, unit, ts, source, tags`).
		WithArgs("blood_pressure", base).
		WillReturnRows(rows)

	ts, err := s.Query(context.Background(), models.MetricBloodPressure, base)
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "a", ts[0].ID)
	assert.Equal(t, 120.0, ts[0].Value.Float())
	assert.Equal(t, []string{"home"}, ts[0].Tags)
	assert.Equal(t, "mmHg", ts[1].Unit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMetricStore_AppendFailureIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresMetricStore(db, time.Second, zap.NewNop())

	mock.ExpectExec(`INSERT INTO metric_samples`).WillReturnError(fmt.Errorf("connection reset"))

	err = s.Append(context.Background(), models.MetricSample{
		ID: "x", MetricType: models.MetricMood, Value: models.Scalar(3),
		Timestamp: time.Now(), Source: models.SourceManual,
	})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
