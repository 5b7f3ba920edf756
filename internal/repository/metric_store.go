package repository

import (
	"context"
	"fmt"
	"time"

	"wellness-analytics/internal/models"
)

// MetricStore append/query over metric samples. Append is atomic per sample;
// Query returns a sorted snapshot the caller owns.
type MetricStore interface {
	Append(ctx context.Context, sample models.MetricSample) error
	Query(ctx context.Context, metricType models.MetricType, since time.Time) (models.TimeSeries, error)
	// Prune drops samples older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// DefaultStoreTimeout bound on a single store call when none is configured.
const DefaultStoreTimeout = 2 * time.Second

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// unavailable hides the driver error behind ErrStoreUnavailable, keeping its text for logs.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrStoreUnavailable, op, err)
}
