package insights

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-analytics/internal/analytics"
	"wellness-analytics/internal/models"
)

const (
	minTrendChange     = 20.0
	minTrendConfidence = 70.0
	highPriorityChange = 30.0
	minCorrelationR    = 0.5
)

// Generator turns analytic results into insights. It holds no state.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// FromTrend fires only for a change above 20% with confidence above 70.
func (g *Generator) FromTrend(t models.TrendResult) *models.Insight {
	change := math.Abs(t.PercentChange)
	if change <= minTrendChange || t.Confidence <= minTrendConfidence {
		return nil
	}

	kind := models.InsightNeutral
	switch t.Direction {
	case models.DirectionImproving:
		kind = models.InsightPositive
	case models.DirectionDeclining:
		kind = models.InsightConcern
	}
	priority := models.InsightPriorityMedium
	if change > highPriorityChange {
		priority = models.InsightPriorityHigh
	}

	name := metricLabel(t.MetricType)
	return &models.Insight{
		ID:    uuid.New().String(),
		Title: fmt.Sprintf("%s is %s", capitalize(name), directionLabel(t.Direction)),
		Description: fmt.Sprintf("Your %s changed by %+.1f%% against its %s average (confidence %.0f%%).",
			name, t.PercentChange, t.Period, t.Confidence),
		Kind:       kind,
		Priority:   priority,
		Category:   models.InsightCategoryTrend,
		Timestamp:  g.now(),
		Actionable: t.Direction == models.DirectionDeclining,
		SourceKey:  fmt.Sprintf("trend:%s:%s:%s", t.MetricType, t.Period, t.Direction),
	}
}

// FromCorrelation fires for |r| >= 0.5.
func (g *Generator) FromCorrelation(c models.Correlation) *models.Insight {
	if math.Abs(c.Coefficient) < minCorrelationR {
		return nil
	}
	strength := analytics.StrengthOf(c.Coefficient)
	priority := models.InsightPriorityLow
	if strength == "strong" {
		priority = models.InsightPriorityMedium
	}

	a, b := metricLabel(c.MetricA), metricLabel(c.MetricB)
	relation := "rises with"
	if c.Coefficient < 0 {
		relation = "falls as"
	}
	return &models.Insight{
		ID:          uuid.New().String(),
		Title:       fmt.Sprintf("Link between %s and %s", a, b),
		Description: fmt.Sprintf("Your %s %s your %s (%s, r=%.2f).", a, relation, b, c.Description, c.Coefficient),
		Kind:        models.InsightNeutral,
		Priority:    priority,
		Category:    models.InsightCategoryCorrelation,
		Timestamp:   g.now(),
		Actionable:  false,
		SourceKey:   fmt.Sprintf("correlation:%s:%s", c.MetricA, c.MetricB),
	}
}

// FromGoal emits an achievement the first time a goal reaches its target.
func (g *Generator) FromGoal(goal models.Goal, newlyAchieved bool) *models.Insight {
	if !newlyAchieved {
		return nil
	}
	return &models.Insight{
		ID:          uuid.New().String(),
		Title:       "Goal achieved",
		Description: fmt.Sprintf("You reached your %s %s goal of %g.", goal.Timeframe, metricLabel(goal.MetricType), goal.TargetValue),
		Kind:        models.InsightAchievement,
		Priority:    models.InsightPriorityMedium,
		Category:    models.InsightCategoryGoal,
		Timestamp:   g.now(),
		SourceKey:   "goal:" + goal.ID,
	}
}

// AchievementRecorder returns a goal achievement handler that appends FromGoal insights to log.
func AchievementRecorder(g *Generator, log *Log) func(ctx context.Context, goal models.Goal) {
	return func(ctx context.Context, goal models.Goal) {
		log.Append(ctx, g.FromGoal(goal, true))
	}
}

func metricLabel(m models.MetricType) string {
	return strings.ReplaceAll(string(m), "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func directionLabel(d models.Direction) string {
	switch d {
	case models.DirectionImproving:
		return "improving"
	case models.DirectionDeclining:
		return "declining"
	default:
		return "holding steady"
	}
}
