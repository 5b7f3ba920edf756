package models

import "time"

// CheckInType kind of check-in submission.
type CheckInType string

const (
	CheckInDaily     CheckInType = "daily"
	CheckInWeekly    CheckInType = "weekly"
	CheckInMonthly   CheckInType = "monthly"
	CheckInEmergency CheckInType = "emergency"
	CheckInCustom    CheckInType = "custom"
)

// ResponseCategory what a check-in answer measures.
type ResponseCategory string

const (
	ResponsePainLevel  ResponseCategory = "pain_level"
	ResponseMood       ResponseCategory = "mood"
	ResponseEmergency  ResponseCategory = "emergency"
	ResponseEnergy     ResponseCategory = "energy"
	ResponseSleep      ResponseCategory = "sleep"
	ResponseMedication ResponseCategory = "medication"
	ResponseGeneral    ResponseCategory = "general"
)

// CheckInResponse one answer. Value holds numeric answers; Answer free text.
type CheckInResponse struct {
	QuestionID string           `json:"question_id"`
	Category   ResponseCategory `json:"category"`
	Value      *float64         `json:"value,omitempty"`
	Answer     string           `json:"answer,omitempty"`
}

// BloodPressureReading systolic/diastolic in mmHg.
type BloodPressureReading struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// HeartRateReading beats per minute.
type HeartRateReading struct {
	BPM float64 `json:"bpm"`
}

// TemperatureReading degrees Fahrenheit.
type TemperatureReading struct {
	Fahrenheit float64 `json:"fahrenheit"`
}

// OxygenSaturationReading SpO2 percent.
type OxygenSaturationReading struct {
	Percent float64 `json:"percent"`
}

// VitalSigns a set of vital readings taken together. Any reading may be absent.
type VitalSigns struct {
	BloodPressure    *BloodPressureReading    `json:"blood_pressure,omitempty"`
	HeartRate        *HeartRateReading        `json:"heart_rate,omitempty"`
	Temperature      *TemperatureReading      `json:"temperature,omitempty"`
	OxygenSaturation *OxygenSaturationReading `json:"oxygen_saturation,omitempty"`
	Timestamp        time.Time                `json:"timestamp"`
}

// CheckIn a submitted questionnaire.
// Flagged is set once by the escalation policy. CaregiverNotified is set once the
// caregiver fan-out has run; NotificationPending marks a fan-out queued for retry.
type CheckIn struct {
	ID                  string            `json:"id"`
	Timestamp           time.Time         `json:"timestamp"`
	Type                CheckInType       `json:"type"`
	Responses           []CheckInResponse `json:"responses"`
	Vitals              *VitalSigns       `json:"vitals,omitempty"`
	OverallScore        int               `json:"overall_score"`
	Flagged             bool              `json:"flagged"`
	CaregiverNotified   bool              `json:"caregiver_notified"`
	NotificationPending bool              `json:"notification_pending,omitempty"`
	FlagReasons         []string          `json:"flag_reasons,omitempty"`
}
