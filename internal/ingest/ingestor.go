package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wellness-analytics/internal/escalation"
	"wellness-analytics/internal/goals"
	"wellness-analytics/internal/models"
	"wellness-analytics/internal/repository"
)

// GoalTicker advances goals from a new sample; achievements are reported by the tracker.
type GoalTicker interface {
	Tick(ctx context.Context, sample models.MetricSample) []goals.ProgressUpdate
}

// VitalsHandler escalates a vitals snapshot.
type VitalsHandler interface {
	HandleVitals(ctx context.Context, v models.VitalSigns) []models.Alert
}

// Result outcome of ingesting one sample.
type Result struct {
	Sample        models.MetricSample `json:"sample"`
	GoalsUpdated  int                 `json:"goals_updated"`
	GoalsAchieved int                 `json:"goals_achieved"`
	Alerts        []models.Alert      `json:"alerts,omitempty"`
}

// BatchResult outcome of a batch; invalid samples are skipped individually.
type BatchResult struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Ingestor single entry point for producers.
type Ingestor struct {
	store  repository.MetricStore
	goals  GoalTicker
	vitals VitalsHandler
	logger *zap.Logger
}

func NewIngestor(store repository.MetricStore, goals GoalTicker, vitals VitalsHandler, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		goals:  goals,
		vitals: vitals,
		logger: logger,
	}
}

// Ingest validates and appends one sample, then ticks goals. Device vitals are escalated
// before the append so a store outage cannot hold back an alert; on an append failure the
// alerts are still returned alongside the error.
func (i *Ingestor) Ingest(ctx context.Context, sample models.MetricSample) (Result, error) {
	if err := sample.Validate(); err != nil {
		return Result{}, err
	}
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}

	res := Result{Sample: sample}
	if sample.Source == models.SourceDevice && i.vitals != nil {
		if v, ok := escalation.VitalsFromSample(sample); ok {
			res.Alerts = i.vitals.HandleVitals(ctx, v)
		}
	}

	if err := i.store.Append(ctx, sample); err != nil {
		i.logger.Warn("Sample not stored",
			zap.String("sample_id", sample.ID),
			zap.String("metric_type", string(sample.MetricType)),
			zap.Int("alerts", len(res.Alerts)),
			zap.Error(err),
		)
		return res, fmt.Errorf("failed to append sample: %w", err)
	}

	if i.goals != nil {
		for _, u := range i.goals.Tick(ctx, sample) {
			res.GoalsUpdated++
			if u.NewlyAchieved {
				res.GoalsAchieved++
			}
		}
	}

	i.logger.Debug("Sample ingested",
		zap.String("sample_id", sample.ID),
		zap.String("metric_type", string(sample.MetricType)),
		zap.String("source", string(sample.Source)),
		zap.Int("goals_updated", res.GoalsUpdated),
		zap.Int("alerts", len(res.Alerts)),
	)
	return res, nil
}

// IngestBatch ingests each sample; a failure only skips that sample.
func (i *Ingestor) IngestBatch(ctx context.Context, samples []models.MetricSample) BatchResult {
	var out BatchResult
	for idx, s := range samples {
		if _, err := i.Ingest(ctx, s); err != nil {
			out.Rejected++
			out.Errors = append(out.Errors, fmt.Sprintf("sample %d: %v", idx, err))
			i.logger.Warn("Sample rejected",
				zap.Int("index", idx),
				zap.String("metric_type", string(s.MetricType)),
				zap.Error(err),
			)
			continue
		}
		out.Accepted++
	}
	return out
}

// IngestEmotion stores a classifier output as an emotion sample.
func (i *Ingestor) IngestEmotion(ctx context.Context, e models.EmotionSample) (Result, error) {
	sample, err := EmotionToSample(e)
	if err != nil {
		return Result{}, err
	}
	return i.Ingest(ctx, sample)
}

// EmotionToSample converts a classifier output; the label becomes the text value.
func EmotionToSample(e models.EmotionSample) (models.MetricSample, error) {
	label := strings.ToLower(strings.TrimSpace(e.Emotion))
	if label == "" {
		return models.MetricSample{}, fmt.Errorf("%w: empty emotion label", models.ErrInvalidSample)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return models.MetricSample{}, fmt.Errorf("%w: confidence %v outside [0,1]", models.ErrInvalidSample, e.Confidence)
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return models.MetricSample{
		ID:         uuid.New().String(),
		MetricType: models.MetricEmotion,
		Value:      models.Text(label),
		Timestamp:  ts,
		Source:     models.SourceEstimation,
		Tags:       []string{"confidence:" + strconv.FormatFloat(e.Confidence, 'f', 2, 64)},
	}, nil
}
