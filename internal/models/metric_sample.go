package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MetricType categorical tag for a measured quantity.
type MetricType string

const (
	MetricMood             MetricType = "mood"
	MetricPain             MetricType = "pain"
	MetricEnergy           MetricType = "energy"
	MetricSleep            MetricType = "sleep"
	MetricHeartRate        MetricType = "heart_rate"
	MetricBloodPressure    MetricType = "blood_pressure"
	MetricWeight           MetricType = "weight"
	MetricSteps            MetricType = "steps"
	MetricTemperature      MetricType = "temperature"
	MetricGlucose          MetricType = "glucose"
	MetricOxygenSaturation MetricType = "oxygen_saturation"
	MetricEmotion          MetricType = "emotion"
)

// AllMetricTypes lists every metric the service knows, in display order.
var AllMetricTypes = []MetricType{
	MetricMood, MetricPain, MetricEnergy, MetricSleep, MetricHeartRate, MetricBloodPressure,
	MetricWeight, MetricSteps, MetricTemperature, MetricGlucose, MetricOxygenSaturation, MetricEmotion,
}

// IsKnown reports whether m is one of AllMetricTypes.
func (m MetricType) IsKnown() bool {
	for _, known := range AllMetricTypes {
		if m == known {
			return true
		}
	}
	return false
}

// SampleSource where a sample came from.
type SampleSource string

const (
	SourceManual     SampleSource = "manual"
	SourceDevice     SampleSource = "device"
	SourceEstimation SampleSource = "estimation"
	SourceCheckIn    SampleSource = "checkin"
)

// IsValid reports whether s is a recognised source.
func (s SampleSource) IsValid() bool {
	switch s {
	case SourceManual, SourceDevice, SourceEstimation, SourceCheckIn:
		return true
	}
	return false
}

// SampleValue is a scalar, a systolic/diastolic pair or raw text.
// JSON form: a number, {"systolic":x,"diastolic":y}, or a string.
type SampleValue struct {
	Number    *float64
	Systolic  *float64
	Diastolic *float64
	Text      string
}

// Scalar builds a numeric value.
func Scalar(v float64) SampleValue {
	return SampleValue{Number: &v}
}

// Pressure builds a blood-pressure pair.
func Pressure(systolic, diastolic float64) SampleValue {
	return SampleValue{Systolic: &systolic, Diastolic: &diastolic}
}

// Text builds a textual value (emotion labels, free-form device output).
func Text(s string) SampleValue {
	return SampleValue{Text: s}
}

// IsEmpty reports whether no component is set.
func (v SampleValue) IsEmpty() bool {
	return v.Number == nil && v.Systolic == nil && v.Diastolic == nil && v.Text == ""
}

// Float projects the value onto a single scalar.
// Blood pressure projects to systolic. Text that does not parse yields 0.
func (v SampleValue) Float() float64 {
	switch {
	case v.Number != nil:
		return *v.Number
	case v.Systolic != nil:
		return *v.Systolic
	case v.Text != "":
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

type pressureJSON struct {
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v SampleValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Systolic != nil || v.Diastolic != nil:
		return json.Marshal(pressureJSON{Systolic: v.Systolic, Diastolic: v.Diastolic})
	case v.Text != "":
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *SampleValue) UnmarshalJSON(data []byte) error {
	*v = SampleValue{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '{':
		var p pressureJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("invalid composite value: %w", err)
		}
		v.Systolic, v.Diastolic = p.Systolic, p.Diastolic
	case '"':
		return json.Unmarshal(data, &v.Text)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid scalar value: %w", err)
		}
		v.Number = &f
	}
	return nil
}

// MetricSample one time-stamped reading. Immutable once stored.
type MetricSample struct {
	ID         string       `json:"id"`
	MetricType MetricType   `json:"metric_type"`
	Value      SampleValue  `json:"value"`
	Unit       string       `json:"unit,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Source     SampleSource `json:"source"`
	Tags       []string     `json:"tags,omitempty"`
}

// Validate checks the fields ingestion relies on.
func (s MetricSample) Validate() error {
	if !s.MetricType.IsKnown() {
		return fmt.Errorf("%w: unknown metric type %q", ErrInvalidSample, s.MetricType)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSample)
	}
	if !s.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidSample, s.Source)
	}
	if s.Value.IsEmpty() {
		return fmt.Errorf("%w: missing value", ErrInvalidSample)
	}
	return nil
}

// EmotionSample output of the emotion classifier.
type EmotionSample struct {
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// TimeSeries ascending-by-timestamp samples of one metric.
type TimeSeries []MetricSample

// NewTimeSeries copies samples and sorts them ascending by timestamp.
// The copy makes the result a snapshot independent of the caller's slice.
func NewTimeSeries(samples []MetricSample) TimeSeries {
	ts := make(TimeSeries, len(samples))
	copy(ts, samples)
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].Timestamp.Before(ts[j].Timestamp)
	})
	return ts
}

// Values returns the scalar projection of every sample.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts))
	for i, s := range ts {
		out[i] = s.Value.Float()
	}
	return out
}

// Since returns the samples at or after t. ts must be sorted.
func (ts TimeSeries) Since(t time.Time) TimeSeries {
	idx := sort.Search(len(ts), func(i int) bool {
		return !ts[i].Timestamp.Before(t)
	})
	return ts[idx:]
}

// Last returns the most recent sample.
func (ts TimeSeries) Last() (MetricSample, bool) {
	if len(ts) == 0 {
		return MetricSample{}, false
	}
	return ts[len(ts)-1], true
}
