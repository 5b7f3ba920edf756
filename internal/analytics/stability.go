package analytics

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
)

// DefaultStabilityWindowDays lookback for MoodStability.
const DefaultStabilityWindowDays = 7

// StabilityScorer scores emotional consistency from emotion samples.
type StabilityScorer struct {
	store  repository.MetricStore
	logger *zap.Logger
	now    func() time.Time
}

func NewStabilityScorer(store repository.MetricStore, logger *zap.Logger) *StabilityScorer {
	return &StabilityScorer{store: store, logger: logger, now: time.Now}
}

// MoodStability returns a score in [0, 1]; 1.0 when there is too little data or the store fails.
func (s *StabilityScorer) MoodStability(ctx context.Context, windowDays int) float64 {
	return s.Evaluate(ctx, windowDays).Score
}

// Evaluate is MoodStability with the window and sample count attached.
func (s *StabilityScorer) Evaluate(ctx context.Context, windowDays int) models.StabilityScore {
	if windowDays <= 0 {
		windowDays = DefaultStabilityWindowDays
	}
	now := s.now()
	series, err := s.store.Query(ctx, models.MetricEmotion, now.Add(-time.Duration(windowDays)*24*time.Hour))
	if err != nil {
		s.logger.Warn("Failed to load emotions for stability", zap.Error(err))
		series = nil
	}
	score, used := Stability(series)
	return models.StabilityScore{Score: score, WindowDays: windowDays, SampleCount: used, ComputedAt: now}
}

// Stability maps emotion labels to ordinals and returns 1 - min(1, stddev/2).
// Unknown labels are skipped; fewer than two usable samples score 1.0.
func Stability(series models.TimeSeries) (score float64, used int) {
	ordinals := make([]float64, 0, len(series))
	for _, s := range series {
		if v, ok := EmotionOrdinal(s.Value.Text); ok {
			ordinals = append(ordinals, v)
		}
	}
	if len(ordinals) < 2 {
		return 1.0, len(ordinals)
	}
	sd := standardDeviation(ordinals)
	return clamp(1-math.Min(1, sd/2), 0, 1), len(ordinals)
}
