package models

import "time"

// InsightKind tone of an insight.
type InsightKind string

const (
	InsightPositive    InsightKind = "positive"
	InsightNeutral     InsightKind = "neutral"
	InsightConcern     InsightKind = "concern"
	InsightAchievement InsightKind = "achievement"
)

// InsightPriority display priority.
type InsightPriority string

const (
	InsightPriorityLow    InsightPriority = "low"
	InsightPriorityMedium InsightPriority = "medium"
	InsightPriorityHigh   InsightPriority = "high"
)

// InsightCategory what produced the insight.
type InsightCategory string

const (
	InsightCategoryTrend          InsightCategory = "trend"
	InsightCategoryGoal           InsightCategory = "goal"
	InsightCategoryCorrelation    InsightCategory = "correlation"
	InsightCategoryRecommendation InsightCategory = "recommendation"
)

// Insight human-readable observation. Dismissal is the only mutation.
type Insight struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Kind        InsightKind     `json:"kind"`
	Priority    InsightPriority `json:"priority"`
	Category    InsightCategory `json:"category"`
	Timestamp   time.Time       `json:"timestamp"`
	Actionable  bool            `json:"actionable"`
	Dismissed   bool            `json:"dismissed"`
	// SourceKey identifies the producing context, e.g. "trend:mood:7d".
	SourceKey string `json:"source_key,omitempty"`
}
