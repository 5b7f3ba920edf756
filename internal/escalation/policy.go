package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-analytics/internal/models"
)

// Evaluation outcome of the check-in flag rules.
type Evaluation struct {
	Flagged bool     `json:"flagged"`
	Reasons []string `json:"reasons,omitempty"`
}

func (e Evaluation) has(reason string) bool {
	for _, r := range e.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Policy pure flagging and alert decisions.
type Policy struct {
	now func() time.Time
}

func NewPolicy() *Policy {
	return &Policy{now: time.Now}
}

// EvaluateCheckIn flags when any rule holds: overall score <= 3, pain >= 8, mood <= 2, emergency >= 7.
func (p *Policy) EvaluateCheckIn(c models.CheckIn) Evaluation {
	var ev Evaluation
	add := func(reason string) {
		if !ev.has(reason) {
			ev.Reasons = append(ev.Reasons, reason)
		}
	}

	if c.OverallScore > 0 && c.OverallScore <= MaxFlaggedOverallScore {
		add(ReasonLowOverallScore)
	}
	for _, r := range c.Responses {
		if r.Value == nil {
			continue
		}
		v := *r.Value
		switch r.Category {
		case models.ResponsePainLevel:
			if v >= MinFlaggedPain {
				add(ReasonSeverePain)
			}
		case models.ResponseMood:
			if v <= MaxFlaggedMood {
				add(ReasonLowMood)
			}
		case models.ResponseEmergency:
			if v >= MinFlaggedEmergency {
				add(ReasonEmergency)
			}
		}
	}
	ev.Flagged = len(ev.Reasons) > 0
	return ev
}

// EvaluateVitals returns one vital_signs_critical alert per breached concern.
func (p *Policy) EvaluateVitals(v models.VitalSigns) []models.Alert {
	at := v.Timestamp
	if at.IsZero() {
		at = p.now()
	}
	var alerts []models.Alert
	for _, rule := range vitalRules {
		reading, ok := rule.check(v)
		if !ok {
			continue
		}
		alerts = append(alerts, models.Alert{
			ID:       uuid.New().String(),
			Type:     models.AlertVitalSignsCritical,
			Concern:  rule.concern,
			Category: models.AlertTypeVitalSigns,
			Priority: rule.priority,
			Title:    rule.title,
			Message:  fmt.Sprintf("%s: %s recorded at %s.", rule.title, reading, at.Format(time.RFC3339)),
			Payload: map[string]interface{}{
				"concern": rule.concern,
				"reading": reading,
			},
			Timestamp: at,
		})
	}
	return alerts
}

// CheckInAlert builds the single batched alert for a flagged check-in.
func (p *Policy) CheckInAlert(c models.CheckIn, ev Evaluation) models.Alert {
	category := models.AlertTypeHealthData
	priority := models.PriorityHigh
	if c.Type == models.CheckInEmergency || ev.has(ReasonEmergency) {
		category = models.AlertTypeEmergencyAlerts
		priority = models.PriorityCritical
	}
	return models.Alert{
		ID:       uuid.New().String(),
		Type:     models.AlertCheckInFlagged,
		Concern:  strings.Join(ev.Reasons, ","),
		Category: category,
		Priority: priority,
		Title:    "Check-in needs attention",
		Message:  fmt.Sprintf("A %s check-in scored %d/10 and was flagged: %s.", c.Type, c.OverallScore, strings.Join(ev.Reasons, ", ")),
		Payload: map[string]interface{}{
			"checkin_id":    c.ID,
			"overall_score": c.OverallScore,
			"reasons":       ev.Reasons,
		},
		Timestamp: p.now(),
	}
}

// IsPermitted reports whether the caregiver holds a granted permission for alertType.
func IsPermitted(c models.Caregiver, alertType models.AlertType) bool {
	for _, perm := range c.Permissions {
		if perm.AlertType == alertType && perm.Granted {
			return true
		}
	}
	return false
}

// VitalsFromSample lifts a device vital-sign sample into VitalSigns.
// Non-vital metrics and incomplete readings return false.
func VitalsFromSample(s models.MetricSample) (models.VitalSigns, bool) {
	v := models.VitalSigns{Timestamp: s.Timestamp}
	switch s.MetricType {
	case models.MetricHeartRate:
		v.HeartRate = &models.HeartRateReading{BPM: s.Value.Float()}
	case models.MetricBloodPressure:
		if s.Value.Systolic == nil || s.Value.Diastolic == nil {
			return v, false
		}
		v.BloodPressure = &models.BloodPressureReading{Systolic: *s.Value.Systolic, Diastolic: *s.Value.Diastolic}
	case models.MetricTemperature:
		f := s.Value.Float()
		if isCelsius(s.Unit) {
			f = f*9/5 + 32
		}
		v.Temperature = &models.TemperatureReading{Fahrenheit: f}
	case models.MetricOxygenSaturation:
		v.OxygenSaturation = &models.OxygenSaturationReading{Percent: s.Value.Float()}
	default:
		return v, false
	}
	return v, true
}

func isCelsius(unit string) bool {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "c", "°c", "celsius":
		return true
	}
	return false
}

func formatBP(bp *models.BloodPressureReading) string {
	return fmt.Sprintf("%.0f/%.0f mmHg", bp.Systolic, bp.Diastolic)
}

func formatValue(v float64, unit string) string {
	if unit == "%" {
		return fmt.Sprintf("%.0f%%", v)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}
