package escalation

import "wellness-analytics/internal/models"

// Critical vital-sign bounds. These are fixed and not adjustable at runtime.
const (
	SystolicHigh        = 180.0
	DiastolicHigh       = 120.0
	SystolicLow         = 90.0
	DiastolicLow        = 60.0
	HeartRateHigh       = 120.0
	HeartRateLow        = 50.0
	TemperatureHighF    = 102.0
	TemperatureLowF     = 95.0
	OxygenSaturationLow = 90.0
)

// Concern identifiers, one alert per distinct concern.
const (
	ConcernBloodPressureHigh   = "blood_pressure_high"
	ConcernBloodPressureLow    = "blood_pressure_low"
	ConcernHeartRateHigh       = "heart_rate_high"
	ConcernHeartRateLow        = "heart_rate_low"
	ConcernTemperatureHigh     = "temperature_high"
	ConcernTemperatureLow      = "temperature_low"
	ConcernOxygenSaturationLow = "oxygen_saturation_low"
)

type vitalRule struct {
	concern  string
	title    string
	priority models.Priority
	// check returns the offending reading description when the rule fires.
	check func(v models.VitalSigns) (string, bool)
}

var vitalRules = []vitalRule{
	{
		concern:  ConcernBloodPressureHigh,
		title:    "Critically high blood pressure",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			bp := v.BloodPressure
			if bp == nil || !(bp.Systolic > SystolicHigh || bp.Diastolic > DiastolicHigh) {
				return "", false
			}
			return formatBP(bp), true
		},
	},
	{
		concern:  ConcernBloodPressureLow,
		title:    "Low blood pressure",
		priority: models.PriorityHigh,
		check: func(v models.VitalSigns) (string, bool) {
			bp := v.BloodPressure
			if bp == nil || !(bp.Systolic < SystolicLow || bp.Diastolic < DiastolicLow) {
				return "", false
			}
			return formatBP(bp), true
		},
	},
	{
		concern:  ConcernHeartRateHigh,
		title:    "Heart rate too high",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			if v.HeartRate == nil || v.HeartRate.BPM <= HeartRateHigh {
				return "", false
			}
			return formatValue(v.HeartRate.BPM, "bpm"), true
		},
	},
	{
		concern:  ConcernHeartRateLow,
		title:    "Heart rate too low",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			if v.HeartRate == nil || v.HeartRate.BPM >= HeartRateLow {
				return "", false
			}
			return formatValue(v.HeartRate.BPM, "bpm"), true
		},
	},
	{
		concern:  ConcernTemperatureHigh,
		title:    "High fever",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			if v.Temperature == nil || v.Temperature.Fahrenheit <= TemperatureHighF {
				return "", false
			}
			return formatValue(v.Temperature.Fahrenheit, "°F"), true
		},
	},
	{
		concern:  ConcernTemperatureLow,
		title:    "Body temperature too low",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			if v.Temperature == nil || v.Temperature.Fahrenheit >= TemperatureLowF {
				return "", false
			}
			return formatValue(v.Temperature.Fahrenheit, "°F"), true
		},
	},
	{
		concern:  ConcernOxygenSaturationLow,
		title:    "Low oxygen saturation",
		priority: models.PriorityCritical,
		check: func(v models.VitalSigns) (string, bool) {
			if v.OxygenSaturation == nil || v.OxygenSaturation.Percent >= OxygenSaturationLow {
				return "", false
			}
			return formatValue(v.OxygenSaturation.Percent, "%"), true
		},
	},
}

// Check-in flag rules.
const (
	MaxFlaggedOverallScore = 3
	MinFlaggedPain         = 8.0
	MaxFlaggedMood         = 2.0
	MinFlaggedEmergency    = 7.0
)

// Flag reasons recorded on a check-in.
const (
	ReasonLowOverallScore = "overall_score_low"
	ReasonSeverePain      = "pain_level_high"
	ReasonLowMood         = "mood_low"
	ReasonEmergency       = "emergency_reported"
)
