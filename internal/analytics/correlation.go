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
	// DefaultCorrelationWindowDays lookback used by RecomputeAll.
	DefaultCorrelationWindowDays = 30
	minMatchedPairs              = 5
	minReportedCoefficient       = 0.3
	maxPairGap                   = 24 * time.Hour
)

// MetricPair an ordered (A, B) pair to correlate.
type MetricPair struct {
	A, B models.MetricType
}

// DefaultPairs the pairs RecomputeAll evaluates.
var DefaultPairs = []MetricPair{
	{models.MetricMood, models.MetricSleep},
	{models.MetricPain, models.MetricMood},
	{models.MetricEnergy, models.MetricSleep},
	{models.MetricMood, models.MetricSteps},
	{models.MetricSleep, models.MetricHeartRate},
}

// CorrelationSink receives a complete recomputed batch.
type CorrelationSink interface {
	Replace(ctx context.Context, set models.CorrelationSet) error
}

// CorrelationEngine correlates pairs of metric series.
type CorrelationEngine struct {
	store  repository.MetricStore
	sink   CorrelationSink
	pairs  []MetricPair
	logger *zap.Logger
	now    func() time.Time
}

func NewCorrelationEngine(store repository.MetricStore, sink CorrelationSink, logger *zap.Logger) *CorrelationEngine {
	return &CorrelationEngine{
		store:  store,
		sink:   sink,
		pairs:  DefaultPairs,
		logger: logger,
		now:    time.Now,
	}
}

// Correlate returns nil (without error) when the pair has too few matches or a weak coefficient.
// An error is only returned when a series could not be read.
func (e *CorrelationEngine) Correlate(ctx context.Context, a, b models.MetricType, windowDays int) (*models.Correlation, error) {
	if windowDays <= 0 {
		windowDays = DefaultCorrelationWindowDays
	}
	now := e.now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	seriesA, err := e.store.Query(ctx, a, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", a, err)
	}
	seriesB, err := e.store.Query(ctx, b, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", b, err)
	}
	return CorrelateSeries(a, b, seriesA, seriesB, windowDays, now), nil
}

// CorrelateSeries is the pure computation over two snapshots.
func CorrelateSeries(a, b models.MetricType, seriesA, seriesB models.TimeSeries, windowDays int, now time.Time) *models.Correlation {
	xs, ys := matchPairs(seriesA, seriesB)
	if len(xs) < minMatchedPairs {
		return nil
	}
	r := pearson(xs, ys)
	if math.IsNaN(r) || math.Abs(r) < minReportedCoefficient {
		return nil
	}
	return &models.Correlation{
		MetricA:     a,
		MetricB:     b,
		Coefficient: r,
		Confidence:  confidenceFromR(r),
		Description: describeCorrelation(a, b, r),
		WindowDays:  windowDays,
		SampleCount: len(xs),
		ComputedAt:  now,
	}
}

// matchPairs pairs each A sample with the nearest unused B sample less than 24h away.
func matchPairs(seriesA, seriesB models.TimeSeries) (xs, ys []float64) {
	used := make([]bool, len(seriesB))
	for _, sa := range seriesA {
		best := -1
		var bestGap time.Duration
		for j, sb := range seriesB {
			if used[j] {
				continue
			}
			gap := sa.Timestamp.Sub(sb.Timestamp)
			if gap < 0 {
				gap = -gap
			}
			if gap >= maxPairGap {
				continue
			}
			if best == -1 || gap < bestGap {
				best, bestGap = j, gap
			}
		}
		if best == -1 {
			continue
		}
		used[best] = true
		xs = append(xs, sa.Value.Float())
		ys = append(ys, seriesB[best].Value.Float())
	}
	return xs, ys
}

// StrengthOf buckets |r| into strong, moderate or weak.
func StrengthOf(r float64) string {
	switch abs := math.Abs(r); {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.5:
		return "moderate"
	default:
		return "weak"
	}
}

func describeCorrelation(a, b models.MetricType, r float64) string {
	sign := "positive"
	if r < 0 {
		sign = "negative"
	}
	return fmt.Sprintf("%s %s correlation between %s and %s", StrengthOf(r), sign, a, b)
}

// Compute correlates every configured pair without storing the result.
// A pair that fails to load is logged and skipped.
func (e *CorrelationEngine) Compute(ctx context.Context) (models.CorrelationSet, error) {
	set := models.CorrelationSet{ComputedAt: e.now()}
	for _, p := range e.pairs {
		if err := ctx.Err(); err != nil {
			return models.CorrelationSet{}, err
		}
		c, err := e.Correlate(ctx, p.A, p.B, DefaultCorrelationWindowDays)
		if err != nil {
			e.logger.Warn("Skipping correlation pair",
				zap.String("metric_a", string(p.A)),
				zap.String("metric_b", string(p.B)),
				zap.Error(err),
			)
			continue
		}
		if c != nil {
			set.Correlations = append(set.Correlations, *c)
		}
	}
	return set, nil
}

// RecomputeAll computes every pair and replaces the stored batch in one write.
func (e *CorrelationEngine) RecomputeAll(ctx context.Context) (models.CorrelationSet, error) {
	set, err := e.Compute(ctx)
	if err != nil {
		return models.CorrelationSet{}, err
	}
	if e.sink != nil {
		if err := e.sink.Replace(ctx, set); err != nil {
			return set, fmt.Errorf("failed to store correlations: %w", err)
		}
	}
	return set, nil
}
