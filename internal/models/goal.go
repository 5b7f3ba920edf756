package models

import "time"

// Timeframe goal evaluation period.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// IsValid reports whether t is a known timeframe.
func (t Timeframe) IsValid() bool {
	switch t {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return true
	}
	return false
}

// Goal user-defined target for a metric.
// CurrentValue, Progress, StreakDays and LastAchieved are only written by the goal tracker.
type Goal struct {
	ID           string     `json:"id"`
	MetricType   MetricType `json:"metric_type"`
	TargetValue  float64    `json:"target_value"`
	InitialValue float64    `json:"initial_value"`
	CurrentValue float64    `json:"current_value"`
	Timeframe    Timeframe  `json:"timeframe"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	IsActive     bool       `json:"is_active"`
	Progress     float64    `json:"progress"`
	StreakDays   int        `json:"streak_days"`
	LastAchieved *time.Time `json:"last_achieved,omitempty"`

	// LastPeriod is the period key (day, ISO week or month) of the last tick.
	LastPeriod string `json:"last_period,omitempty"`
	// StreakPeriod is the period key in which the streak was last incremented.
	StreakPeriod  string     `json:"streak_period,omitempty"`
	LastEvaluated *time.Time `json:"last_evaluated,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
}
