package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

const metricKeyPrefix = "wellness:metrics:"

// RedisMetricStore one sorted set per metric type, scored by timestamp in milliseconds.
// Members are the JSON-encoded samples; IDs keep them unique.
type RedisMetricStore struct {
	client  *redis.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewRedisMetricStore(client *redis.Client, timeout time.Duration, logger *zap.Logger) *RedisMetricStore {
	return &RedisMetricStore{client: client, timeout: timeout, logger: logger}
}

func metricKey(t models.MetricType) string {
	return metricKeyPrefix + string(t)
}

func (s *RedisMetricStore) Append(ctx context.Context, sample models.MetricSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err = s.client.ZAdd(ctx, metricKey(sample.MetricType), &redis.Z{
		Score:  float64(sample.Timestamp.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return unavailable("append", err)
	}
	return nil
}

func (s *RedisMetricStore) Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	members, err := s.client.ZRangeByScore(ctx, metricKey(metricType), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, unavailable("query", err)
	}

	samples := make([]models.MetricSample, 0, len(members))
	for _, m := range members {
		var sample models.MetricSample
		if err := json.Unmarshal([]byte(m), &sample); err != nil {
			s.logger.Warn("Skipping undecodable sample",
				zap.String("metric_type", string(metricType)),
				zap.Error(err),
			)
			continue
		}
		samples = append(samples, sample)
	}
	return models.NewTimeSeries(samples), nil
}

func (s *RedisMetricStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	max := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	var removed int64
	for _, t := range models.AllMetricTypes {
		n, err := s.client.ZRemRangeByScore(ctx, metricKey(t), "-inf", max).Result()
		if err != nil {
			return removed, unavailable("prune", err)
		}
		removed += n
	}
	return removed, nil
}
