package models

import "time"

// Period trend lookback window.
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
)

// AllPeriods in ascending length.
var AllPeriods = []Period{Period24h, Period7d, Period30d, Period90d}

// Days returns the lookback in days; unknown periods map to 7.
func (p Period) Days() int {
	switch p {
	case Period24h:
		return 1
	case Period30d:
		return 30
	case Period90d:
		return 90
	default:
		return 7
	}
}

// Duration returns Days as a time.Duration.
func (p Period) Duration() time.Duration {
	return time.Duration(p.Days()) * 24 * time.Hour
}

// ParsePeriod parses "24h", "7d", "30d" or "90d".
func ParsePeriod(s string) (Period, bool) {
	for _, p := range AllPeriods {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Direction of a trend.
type Direction string

const (
	DirectionImproving        Direction = "improving"
	DirectionStable           Direction = "stable"
	DirectionDeclining        Direction = "declining"
	DirectionInsufficientData Direction = "insufficient_data"
)

// TrendResult summary of one metric over one period.
type TrendResult struct {
	MetricType      MetricType `json:"metric_type"`
	Period          Period     `json:"period"`
	Direction       Direction  `json:"direction"`
	PercentChange   float64    `json:"percent_change"`
	Confidence      float64    `json:"confidence"`
	SampleCount     int        `json:"sample_count"`
	LastValue       float64    `json:"last_value"`
	MeanValue       float64    `json:"mean_value"`
	MinValue        float64    `json:"min_value"`
	MaxValue        float64    `json:"max_value"`
	Recommendations []string   `json:"recommendations"`
	ComputedAt      time.Time  `json:"computed_at"`
}

// Correlation association between two metric series.
type Correlation struct {
	MetricA     MetricType `json:"metric_a"`
	MetricB     MetricType `json:"metric_b"`
	Coefficient float64    `json:"coefficient"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description"`
	WindowDays  int        `json:"window_days"`
	SampleCount int        `json:"sample_count"`
	ComputedAt  time.Time  `json:"computed_at"`
}

// CorrelationSet one batch of correlations, replaced as a whole.
type CorrelationSet struct {
	Correlations []Correlation `json:"correlations"`
	ComputedAt   time.Time     `json:"computed_at"`
}

// StabilityScore emotional stability over a window.
type StabilityScore struct {
	Score       float64   `json:"score"`
	WindowDays  int       `json:"window_days"`
	SampleCount int       `json:"sample_count"`
	ComputedAt  time.Time `json:"computed_at"`
}
