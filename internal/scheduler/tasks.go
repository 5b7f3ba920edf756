package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wellness-analytics/internal/goals"
	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
)

// TrendSource computes a trend, reporting a store failure as an error.
type TrendSource interface {
	ComputeTrend(ctx context.Context, metricType models.MetricType, period models.Period) (models.TrendResult, error)
}

// CorrelationSource computes the correlation batch without storing it.
type CorrelationSource interface {
	Compute(ctx context.Context) (models.CorrelationSet, error)
}

type TrendStore interface {
	Put(ctx context.Context, t models.TrendResult) error
}

type CorrelationStore interface {
	Replace(ctx context.Context, set models.CorrelationSet) error
}

// InsightProducer turns analysis results into insights.
type InsightProducer interface {
	FromTrend(t models.TrendResult) *models.Insight
	FromCorrelation(c models.Correlation) *models.Insight
}

type InsightSink interface {
	Append(ctx context.Context, in *models.Insight) bool
}

// GoalRefresher re-evaluates goals against stored samples.
type GoalRefresher interface {
	ListActive(ctx context.Context) ([]models.Goal, error)
	RecordProgress(ctx context.Context, goalID string, currentValue float64, at time.Time) (goals.ProgressUpdate, error)
}

// PendingRetrier redelivers queued notifications.
type PendingRetrier interface {
	RetryPending(ctx context.Context) (int, error)
}

// RefreshTask one scheduler tick. Every field except Trends is optional.
type RefreshTask struct {
	Trends       TrendSource
	TrendCache   TrendStore
	Correlations CorrelationSource
	CorrStore    CorrelationStore
	Insights     InsightProducer
	Log          InsightSink
	Goals        GoalRefresher
	Samples      repository.MetricStore
	Pending      PendingRetrier

	RetentionDays int
	Logger        *zap.Logger

	now func() time.Time
}

// computed results of one tick, held until commit.
type computed struct {
	trends       []models.TrendResult
	correlations *models.CorrelationSet
}

// Run computes everything first and commits only if ctx is still live.
func (t *RefreshTask) Run(ctx context.Context) error {
	out, err := t.compute(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.commit(ctx, out); err != nil {
		return err
	}

	t.refreshGoals(ctx)
	t.retryPending(ctx)
	return t.prune(ctx)
}

func (t *RefreshTask) compute(ctx context.Context) (computed, error) {
	var out computed
	for _, m := range models.AllMetricTypes {
		if m == models.MetricEmotion {
			continue
		}
		for _, p := range models.AllPeriods {
			if err := ctx.Err(); err != nil {
				return computed{}, err
			}
			tr, err := t.Trends.ComputeTrend(ctx, m, p)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return computed{}, ctxErr
				}
				// the cached trend stays until a later tick can read the series
				t.Logger.Warn("Trend not refreshed",
					zap.String("metric_type", string(m)),
					zap.String("period", string(p)),
					zap.Error(err),
				)
				continue
			}
			out.trends = append(out.trends, tr)
		}
	}

	if t.Correlations != nil {
		set, err := t.Correlations.Compute(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return computed{}, err
			}
			return computed{}, fmt.Errorf("failed to compute correlations: %w", err)
		}
		out.correlations = &set
	}
	return out, nil
}

func (t *RefreshTask) commit(ctx context.Context, out computed) error {
	for _, tr := range out.trends {
		if t.TrendCache != nil {
			if err := t.TrendCache.Put(ctx, tr); err != nil {
				return fmt.Errorf("failed to cache trend %s/%s: %w", tr.MetricType, tr.Period, err)
			}
		}
		if t.Insights != nil && t.Log != nil {
			t.Log.Append(ctx, t.Insights.FromTrend(tr))
		}
	}

	if out.correlations == nil {
		return nil
	}
	if t.CorrStore != nil {
		if err := t.CorrStore.Replace(ctx, *out.correlations); err != nil {
			return fmt.Errorf("failed to store correlations: %w", err)
		}
	}
	if t.Insights != nil && t.Log != nil {
		for _, c := range out.correlations.Correlations {
			t.Log.Append(ctx, t.Insights.FromCorrelation(c))
		}
	}
	return nil
}

// refreshGoals feeds each active goal the latest sample of its metric.
func (t *RefreshTask) refreshGoals(ctx context.Context) {
	if t.Goals == nil || t.Samples == nil {
		return
	}
	active, err := t.Goals.ListActive(ctx)
	if err != nil {
		t.Logger.Warn("Failed to list goals for refresh", zap.Error(err))
		return
	}
	for _, g := range active {
		if ctx.Err() != nil {
			return
		}
		series, err := t.Samples.Query(ctx, g.MetricType, t.clock().Add(-timeframeLookback(g.Timeframe)))
		if err != nil {
			t.Logger.Warn("Failed to load samples for goal", zap.String("goal_id", g.ID), zap.Error(err))
			continue
		}
		last, ok := series.Last()
		if !ok {
			continue
		}
		// achievements are reported by the tracker's own handler
		if _, err := t.Goals.RecordProgress(ctx, g.ID, last.Value.Float(), last.Timestamp); err != nil {
			if !errors.Is(err, goals.ErrGoalInactive) {
				t.Logger.Warn("Failed to refresh goal", zap.String("goal_id", g.ID), zap.Error(err))
			}
		}
	}
}

func (t *RefreshTask) retryPending(ctx context.Context) {
	if t.Pending == nil {
		return
	}
	sent, err := t.Pending.RetryPending(ctx)
	if err != nil {
		t.Logger.Warn("Pending notification retry failed", zap.Error(err))
		return
	}
	if sent > 0 {
		t.Logger.Info("Delivered pending notifications", zap.Int("count", sent))
	}
}

func (t *RefreshTask) prune(ctx context.Context) error {
	if t.Samples == nil || t.RetentionDays <= 0 {
		return nil
	}
	before := t.clock().AddDate(0, 0, -t.RetentionDays)
	n, err := t.Samples.Prune(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to prune samples: %w", err)
	}
	if n > 0 {
		t.Logger.Info("Pruned expired samples", zap.Int64("count", n), zap.Time("before", before))
	}
	return nil
}

func (t *RefreshTask) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func timeframeLookback(tf models.Timeframe) time.Duration {
	switch tf {
	case models.TimeframeWeekly:
		return 7 * 24 * time.Hour
	case models.TimeframeMonthly:
		return 31 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
