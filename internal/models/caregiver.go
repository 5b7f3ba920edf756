package models

import "time"

// AlertType caregiver permission category.
type AlertType string

const (
	AlertTypeHealthData      AlertType = "health_data"
	AlertTypeMedication      AlertType = "medication"
	AlertTypeEmergencyAlerts AlertType = "emergency_alerts"
	AlertTypeDailyReports    AlertType = "daily_reports"
	AlertTypeVitalSigns      AlertType = "vital_signs"
	AlertTypeMoodTracking    AlertType = "mood_tracking"
)

// CaregiverPermission grant (or explicit denial) of one alert type.
type CaregiverPermission struct {
	CaregiverID string    `json:"caregiver_id"`
	AlertType   AlertType `json:"alert_type"`
	Granted     bool      `json:"granted"`
}

// Caregiver someone who may receive escalations.
type Caregiver struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Contact     string                `json:"contact,omitempty"`
	Permissions []CaregiverPermission `json:"permissions"`
}

// AlertKind what raised the alert.
type AlertKind string

const (
	AlertVitalSignsCritical AlertKind = "vital_signs_critical"
	AlertCheckInFlagged     AlertKind = "checkin_flagged"
)

// Priority notification priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Alert a decision to notify caregivers.
type Alert struct {
	ID        string                 `json:"id"`
	Type      AlertKind              `json:"type"`
	Concern   string                 `json:"concern"`
	Category  AlertType              `json:"category"`
	Priority  Priority               `json:"priority"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Delivery one notification addressed to one caregiver. A queued entry with Alert set
// and no CaregiverID is a whole fan-out that could not list caregivers.
type Delivery struct {
	ID          string                 `json:"id"`
	CaregiverID string                 `json:"caregiver_id"`
	AlertID     string                 `json:"alert_id,omitempty"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Priority    Priority               `json:"priority"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Alert       *Alert                 `json:"alert,omitempty"`
	Attempts    int                    `json:"attempts"`
	QueuedAt    time.Time              `json:"queued_at"`
}

// IsFanOut reports whether the entry stands for a whole alert rather than one caregiver.
func (d Delivery) IsFanOut() bool {
	return d.Alert != nil && d.CaregiverID == ""
}
