package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
)

const (
	minTrendPoints = 3
	// stableThreshold |slope / mean| per day below which a series counts as stable.
	stableThreshold = 0.05
)

// TrendAnalyzer computes per-metric trends from the metric store.
type TrendAnalyzer struct {
	store     repository.MetricStore
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewTrendAnalyzer retentionDays caps how far back a query may look; 0 means no cap.
func NewTrendAnalyzer(store repository.MetricStore, retentionDays int, logger *zap.Logger) *TrendAnalyzer {
	return &TrendAnalyzer{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// AnalyzeTrend never fails: a store error is logged and yields insufficient_data.
func (a *TrendAnalyzer) AnalyzeTrend(ctx context.Context, metricType models.MetricType, period models.Period) models.TrendResult {
	res, err := a.ComputeTrend(ctx, metricType, period)
	if err != nil {
		a.logger.Warn("Failed to load series for trend",
			zap.String("metric_type", string(metricType)),
			zap.String("period", string(period)),
			zap.Error(err),
		)
		return Analyze(metricType, period, nil, a.now())
	}
	return res
}

// ComputeTrend is AnalyzeTrend without the fallback: a store error is returned so callers
// holding an earlier result can keep it.
func (a *TrendAnalyzer) ComputeTrend(ctx context.Context, metricType models.MetricType, period models.Period) (models.TrendResult, error) {
	now := a.now()
	series, err := a.store.Query(ctx, metricType, windowStart(now, period.Duration(), a.retention))
	if err != nil {
		return models.TrendResult{}, fmt.Errorf("failed to load %s for trend: %w", metricType, err)
	}
	return Analyze(metricType, period, series, now), nil
}

func windowStart(now time.Time, lookback, retention time.Duration) time.Time {
	if retention > 0 && lookback > retention {
		lookback = retention
	}
	return now.Add(-lookback)
}

// Analyze is the pure trend computation over a snapshot.
func Analyze(metricType models.MetricType, period models.Period, series models.TimeSeries, now time.Time) models.TrendResult {
	result := models.TrendResult{
		MetricType:  metricType,
		Period:      period,
		SampleCount: len(series),
		ComputedAt:  now,
	}

	values := series.Values()
	if len(values) > 0 {
		result.LastValue = values[len(values)-1]
		result.MeanValue = average(values)
		result.MinValue, result.MaxValue = minMax(values)
	}

	if len(series) < minTrendPoints {
		result.Direction = models.DirectionInsufficientData
		result.Recommendations = Recommendations(metricType, result.Direction)
		return result
	}

	first := series[0].Timestamp
	xs := make([]float64, len(series))
	for i, s := range series {
		xs[i] = s.Timestamp.Sub(first).Hours() / 24
	}
	slope, r := linearRegression(xs, values)

	mean := result.MeanValue
	normalized := slope
	if mean != 0 {
		normalized = slope / math.Abs(mean)
		result.PercentChange = (result.LastValue - mean) / mean * 100
	}

	result.Direction = directionFor(metricType, normalized)
	result.Confidence = confidenceFromR(r)
	result.Recommendations = Recommendations(metricType, result.Direction)
	return result
}

func directionFor(metricType models.MetricType, normalizedSlope float64) models.Direction {
	if math.Abs(normalizedSlope) < stableThreshold {
		return models.DirectionStable
	}
	rising := normalizedSlope > 0
	if PolarityOf(metricType) == LowerIsBetter {
		rising = !rising
	}
	if rising {
		return models.DirectionImproving
	}
	return models.DirectionDeclining
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := xs[0], xs[0]
	for _, v := range xs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
