package analytics

import (
	"strings"

	"wellness-analytics/internal/models"
)

// Polarity which direction of change counts as improvement.
type Polarity int

const (
	HigherIsBetter Polarity = iota
	LowerIsBetter
)

var polarityTable = map[models.MetricType]Polarity{
	models.MetricMood:   HigherIsBetter,
	models.MetricEnergy: HigherIsBetter,
	models.MetricSleep:  HigherIsBetter,
	models.MetricSteps:  HigherIsBetter,
	models.MetricPain:   LowerIsBetter,
}

// PolarityOf defaults to HigherIsBetter for metrics not in the table.
func PolarityOf(m models.MetricType) Polarity {
	if p, ok := polarityTable[m]; ok {
		return p
	}
	return HigherIsBetter
}

const (
	fallbackRecommendation     = "Consult a professional if you have concerns about this metric."
	insufficientRecommendation = "Keep logging this metric regularly so trends can be calculated."
)

type recommendationKey struct {
	metric    models.MetricType
	direction models.Direction
}

var recommendationTable = map[recommendationKey][]string{
	{models.MetricMood, models.DirectionImproving}: {
		"Your mood is improving. Keep up the activities that help you feel good.",
	},
	{models.MetricMood, models.DirectionStable}: {
		"Your mood is steady. Consider adding a new enjoyable activity to your week.",
	},
	{models.MetricMood, models.DirectionDeclining}: {
		"Your mood has been declining. Try reaching out to a friend or family member.",
		"Consider short walks outdoors or a relaxation exercise.",
	},
	{models.MetricPain, models.DirectionImproving}: {
		"Your pain levels are going down. Continue your current care plan.",
	},
	{models.MetricPain, models.DirectionStable}: {
		"Your pain levels are unchanged. Mention them at your next appointment.",
	},
	{models.MetricPain, models.DirectionDeclining}: {
		"Your pain is increasing. Consider contacting your healthcare provider.",
		"Review whether medications are being taken as prescribed.",
	},
	{models.MetricEnergy, models.DirectionImproving}: {
		"Your energy is rising. Keep a consistent routine to maintain it.",
	},
	{models.MetricEnergy, models.DirectionDeclining}: {
		"Your energy is dropping. Check your sleep and hydration.",
	},
	{models.MetricSleep, models.DirectionImproving}: {
		"Your sleep is improving. Keep a regular bedtime.",
	},
	{models.MetricSleep, models.DirectionStable}: {
		"Your sleep is consistent. Aim for seven to nine hours a night.",
	},
	{models.MetricSleep, models.DirectionDeclining}: {
		"Your sleep is getting shorter. Limit screens and caffeine before bed.",
	},
	{models.MetricSteps, models.DirectionImproving}: {
		"You are moving more. Great work staying active.",
	},
	{models.MetricSteps, models.DirectionDeclining}: {
		"Your activity is dropping. Try a short walk after meals.",
	},
	{models.MetricHeartRate, models.DirectionDeclining}: {
		"Your heart rate trend changed. Share the readings with your care team.",
	},
	{models.MetricWeight, models.DirectionDeclining}: {
		"Your weight is changing. Discuss it with your care team.",
	},
}

// Recommendations looks up advice for a metric and direction.
func Recommendations(m models.MetricType, d models.Direction) []string {
	if d == models.DirectionInsufficientData {
		return []string{insufficientRecommendation}
	}
	if recs, ok := recommendationTable[recommendationKey{m, d}]; ok {
		out := make([]string, len(recs))
		copy(out, recs)
		return out
	}
	return []string{fallbackRecommendation}
}

// emotionOrdinals maps classifier labels onto a 1..5 scale.
var emotionOrdinals = map[string]float64{
	"happy":     5,
	"surprised": 4,
	"neutral":   3,
	"fearful":   2,
	"disgusted": 2,
	"sad":       1,
	"angry":     1,
}

// EmotionOrdinal returns the ordinal for a label and whether it is known.
func EmotionOrdinal(label string) (float64, bool) {
	v, ok := emotionOrdinals[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}
