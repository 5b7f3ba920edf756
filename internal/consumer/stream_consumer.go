package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "wellness-analytics/common/redis"
	"wellness-analytics/internal/ingest"
	"wellness-analytics/internal/models"
)

// SampleMessage JSON carried in a stream entry's "data" field. Exactly one field is set.
type SampleMessage struct {
	Sample  *models.MetricSample  `json:"sample,omitempty"`
	Emotion *models.EmotionSample `json:"emotion,omitempty"`
}

// SampleSink the ingestion entry point; *ingest.Ingestor satisfies it.
type SampleSink interface {
	Ingest(ctx context.Context, sample models.MetricSample) (ingest.Result, error)
	IngestEmotion(ctx context.Context, e models.EmotionSample) (ingest.Result, error)
}

// StreamConfig stream consumer settings.
type StreamConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Block         time.Duration
}

// StreamConsumer reads samples from a Redis stream into the ingestor.
type StreamConsumer struct {
	config      StreamConfig
	redisClient *redis.Client
	sink        SampleSink
	logger      *zap.Logger
	metrics     *Metrics
}

func NewStreamConsumer(cfg StreamConfig, redisClient *redis.Client, sink SampleSink, logger *zap.Logger) *StreamConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		sink:        sink,
		logger:      logger,
		metrics:     newMetrics(),
	}
}

func (c *StreamConsumer) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Start consumes until ctx is cancelled, backing off exponentially (1s to 30s) on read or store errors.
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup); err != nil {
		return err
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.config.Stream),
		zap.String("consumer_group", c.config.ConsumerGroup),
		zap.String("consumer_name", c.config.ConsumerName),
	)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := c.ConsumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second
	}
}

// ConsumeOnce processes one batch. Entries left pending by an earlier store failure are
// retried before new entries are read. Store failures stay unacknowledged and are reported
// as ErrStoreUnavailable so Start backs off; everything else is acknowledged.
// Returns the number of entries read.
func (c *StreamConsumer) ConsumeOnce(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadPendingFromStream(ctx, c.redisClient,
		c.config.Stream, c.config.ConsumerGroup, c.config.ConsumerName, c.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending entries: %w", err)
	}
	if len(messages) > 0 {
		c.metrics.addRedelivered(len(messages))
	} else {
		messages, err = rediscommon.ReadFromStream(ctx, c.redisClient,
			c.config.Stream, c.config.ConsumerGroup, c.config.ConsumerName,
			c.config.BatchSize, c.config.Block)
		if err != nil {
			return 0, fmt.Errorf("failed to read from stream: %w", err)
		}
	}

	ids := make([]string, 0, len(messages))
	kept := 0
	for _, msg := range messages {
		c.metrics.incProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			if errors.Is(err, models.ErrStoreUnavailable) {
				kept++
				c.logger.Warn("Store unavailable, entry left pending",
					zap.String("stream_id", msg.ID),
					zap.Error(err),
				)
				continue
			}
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
		ids = append(ids, msg.ID)
	}

	if err := rediscommon.Ack(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup, ids...); err != nil {
		return len(messages), fmt.Errorf("failed to ack: %w", err)
	}
	if kept > 0 {
		return len(messages), fmt.Errorf("%d entries left pending: %w", kept, models.ErrStoreUnavailable)
	}
	return len(messages), nil
}

func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	start := time.Now()

	data, ok := msg.Data()
	if !ok {
		c.metrics.incFailed("parse")
		return fmt.Errorf("missing data field in message")
	}
	var payload SampleMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		c.metrics.incFailed("parse")
		return fmt.Errorf("failed to unmarshal message data: %w", err)
	}

	var err error
	switch {
	case payload.Sample != nil:
		_, err = c.sink.Ingest(ctx, *payload.Sample)
	case payload.Emotion != nil:
		_, err = c.sink.IngestEmotion(ctx, *payload.Emotion)
	default:
		c.metrics.incFailed("parse")
		return fmt.Errorf("message carries neither sample nor emotion")
	}

	if err != nil {
		if errors.Is(err, models.ErrInvalidSample) {
			c.metrics.incRejected()
			c.logger.Warn("Dropping invalid sample", zap.String("stream_id", msg.ID), zap.Error(err))
			return nil
		}
		c.metrics.incFailed("store")
		return err
	}

	c.metrics.incSucceeded(time.Since(start))
	return nil
}
