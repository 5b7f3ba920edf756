package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

// PostgresMetricStore samples in the metric_samples table.
type PostgresMetricStore struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

func NewPostgresMetricStore(db *sql.DB, timeout time.Duration, logger *zap.Logger) *PostgresMetricStore {
	return &PostgresMetricStore{db: db, timeout: timeout, logger: logger}
}

// EnsureSchema creates metric_samples and its lookup index.
func (s *PostgresMetricStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metric_samples (
			id          TEXT PRIMARY KEY,
			metric_type TEXT NOT NULL,
			value       JSONB NOT NULL,
			unit        TEXT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			source      TEXT NOT NULL,
			tags        TEXT[] NULL
		);
		CREATE INDEX IF NOT EXISTS idx_metric_samples_type_ts ON metric_samples (metric_type, ts);
	`)
	if err != nil {
		return fmt.Errorf("failed to create metric_samples: %w", err)
	}
	return nil
}

func (s *PostgresMetricStore) Append(ctx context.Context, sample models.MetricSample) error {
	value, err := json.Marshal(sample.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	var unit sql.NullString
	if sample.Unit != "" {
		unit = sql.NullString{String: sample.Unit, Valid: true}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_samples (id, metric_type, value, unit, ts, source, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, sample.ID, string(sample.MetricType), value, unit, sample.Timestamp, string(sample.Source), pq.Array(sample.Tags))
	if err != nil {
		return unavailable("append", err)
	}
	return nil
}

func (s *PostgresMetricStore) Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric_type, value, unit, ts, source, tags
		FROM metric_samples
		WHERE metric_type = $1 AND ts >= $2
		ORDER BY ts ASC
	`, string(metricType), since)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var (
			sample  models.MetricSample
			mt, src string
			value   []byte
			unit    sql.NullString
			tags    pq.StringArray
		)
		if err := rows.Scan(&sample.ID, &mt, &value, &unit, &sample.Timestamp, &src, &tags); err != nil {
			return nil, unavailable("scan", err)
		}
		if err := json.Unmarshal(value, &sample.Value); err != nil {
			s.logger.Warn("Skipping undecodable sample", zap.String("id", sample.ID), zap.Error(err))
			continue
		}
		sample.MetricType = models.MetricType(mt)
		sample.Source = models.SampleSource(src)
		if unit.Valid {
			sample.Unit = unit.String
		}
		if len(tags) > 0 {
			sample.Tags = []string(tags)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows", err)
	}
	return models.NewTimeSeries(samples), nil
}

func (s *PostgresMetricStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE ts < $1`, before)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
