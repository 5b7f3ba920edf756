package repository

import (
	"context"
	"sync"
	"time"

	"wellness-analytics/internal/models"
)

// MemoryMetricStore append-only in-process store.
type MemoryMetricStore struct {
	mu      sync.RWMutex
	samples map[models.MetricType][]models.MetricSample
}

func NewMemoryMetricStore() *MemoryMetricStore {
	return &MemoryMetricStore{samples: make(map[models.MetricType][]models.MetricSample)}
}

func (s *MemoryMetricStore) Append(ctx context.Context, sample models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.MetricType] = append(s.samples[sample.MetricType], sample)
	return nil
}

func (s *MemoryMetricStore) Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error) {
	s.mu.RLock()
	var matched []models.MetricSample
	for _, sample := range s.samples[metricType] {
		if !sample.Timestamp.Before(since) {
			matched = append(matched, sample)
		}
	}
	s.mu.RUnlock()
	return models.NewTimeSeries(matched), nil
}

func (s *MemoryMetricStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for t, samples := range s.samples {
		kept := samples[:0:0]
		for _, sample := range samples {
			if sample.Timestamp.Before(before) {
				removed++
				continue
			}
			kept = append(kept, sample)
		}
		s.samples[t] = kept
	}
	return removed, nil
}
