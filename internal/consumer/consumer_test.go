package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqttcommon "wellness-analytics/common/mqtt"
	rediscommon "wellness-analytics/common/redis"
	"wellness-analytics/internal/ingest"
	"wellness-analytics/internal/models"
)

type recordingSink struct {
	mu       sync.Mutex
	samples  []models.MetricSample
	emotions []models.EmotionSample
	failWith error
}

func (s *recordingSink) Ingest(ctx context.Context, sample models.MetricSample) (ingest.Result, error) {
	if err := sample.Validate(); err != nil {
		return ingest.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return ingest.Result{}, s.failWith
	}
	s.samples = append(s.samples, sample)
	return ingest.Result{Sample: sample}, nil
}

func (s *recordingSink) IngestEmotion(ctx context.Context, e models.EmotionSample) (ingest.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emotions = append(s.emotions, e)
	return ingest.Result{}, nil
}

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestConsumer(t *testing.T, client *redis.Client, sink SampleSink) *StreamConsumer {
	c := NewStreamConsumer(StreamConfig{
		Stream:        "wellness:samples",
		ConsumerGroup: "analytics",
		ConsumerName:  "test-1",
		Block:         10 * time.Millisecond,
	}, client, sink, zap.NewNop())
	require.NoError(t, rediscommon.CreateConsumerGroup(context.Background(), client, "wellness:samples", "analytics"))
	return c
}

func TestStreamConsumer_ConsumeOnce(t *testing.T) {
	client := setupRedis(t)
	sink := &recordingSink{}
	c := newTestConsumer(t, client, sink)
	ctx := context.Background()

	now := time.Now().UTC()
	valid := models.MetricSample{MetricType: models.MetricMood, Value: models.Scalar(4), Timestamp: now, Source: models.SourceManual}
	invalid := models.MetricSample{MetricType: "aura", Value: models.Scalar(4), Timestamp: now, Source: models.SourceManual}

	_, err := rediscommon.PublishJSONToStream(ctx, client, "wellness:samples", SampleMessage{Sample: &valid})
	require.NoError(t, err)
	_, err = rediscommon.PublishJSONToStream(ctx, client, "wellness:samples", SampleMessage{Emotion: &models.EmotionSample{Emotion: "happy", Confidence: 0.8, Timestamp: now}})
	require.NoError(t, err)
	_, err = rediscommon.PublishJSONToStream(ctx, client, "wellness:samples", SampleMessage{Sample: &invalid})
	require.NoError(t, err)
	_, err = rediscommon.PublishToStream(ctx, client, "wellness:samples", map[string]interface{}{"data": "not json"})
	require.NoError(t, err)

	n, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Len(t, sink.samples, 1)
	assert.Len(t, sink.emotions, 1)

	m := c.Metrics()
	assert.Equal(t, int64(4), m.Processed)
	assert.Equal(t, int64(2), m.Succeeded)
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, int64(1), m.ErrorsParse)

	pending, err := client.XPending(ctx, "wellness:samples", "analytics").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	n, err = c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStreamConsumer_StoreFailureLeftPendingAndRetried(t *testing.T) {
	client := setupRedis(t)
	sink := &recordingSink{failWith: fmt.Errorf("%w: timeout", models.ErrStoreUnavailable)}
	c := newTestConsumer(t, client, sink)
	ctx := context.Background()

	s := models.MetricSample{MetricType: models.MetricHeartRate, Value: models.Scalar(130), Timestamp: time.Now(), Source: models.SourceDevice}
	_, err := rediscommon.PublishJSONToStream(ctx, client, "wellness:samples", SampleMessage{Sample: &s})
	require.NoError(t, err)

	n, err := c.ConsumeOnce(ctx)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, int64(1), c.Metrics().ErrorsStore)

	pending, err := client.XPending(ctx, "wellness:samples", "analytics").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// store back: the pending entry is read again and acknowledged
	sink.mu.Lock()
	sink.failWith = nil
	sink.mu.Unlock()

	n, err = c.ConsumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sink.samples, 1)
	assert.Equal(t, 130.0, sink.samples[0].Value.Float())
	assert.Equal(t, int64(1), c.Metrics().Redelivered)

	pending, err = client.XPending(ctx, "wellness:samples", "analytics").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestStreamConsumer_StartStopsOnCancel(t *testing.T) {
	client := setupRedis(t)
	c := newTestConsumer(t, client, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

type fakeSubscriber struct {
	handlers map[string]mqttcommon.MessageHandler
}

func (f *fakeSubscriber) IsConnected() bool { return f.handlers != nil }

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return nil
}

func TestMQTTBridge_RepublishesDeviceReadings(t *testing.T) {
	client := setupRedis(t)
	sink := &recordingSink{}
	c := newTestConsumer(t, client, sink)
	ctx := context.Background()

	sub := &fakeSubscriber{handlers: map[string]mqttcommon.MessageHandler{}}
	bridge := NewMQTTBridge(sub, client, "wellness/devices/+/samples", 1, "wellness:samples", zap.NewNop())
	require.NoError(t, bridge.Start(ctx))

	handler := sub.handlers["wellness/devices/+/samples"]
	require.NotNil(t, handler)
	require.NoError(t, handler("wellness/devices/cuff-01/samples", []byte(`{"metric_type":"blood_pressure","value":{"systolic":185,"diastolic":95},"unit":"mmHg","timestamp":"2026-06-01T08:00:00Z"}`)))
	assert.Error(t, handler("wellness/devices/cuff-01/samples", []byte(`{`)))

	_, err := c.ConsumeOnce(ctx)
	require.NoError(t, err)
	require.Len(t, sink.samples, 1)
	got := sink.samples[0]
	assert.Equal(t, models.SourceDevice, got.Source)
	assert.Equal(t, []string{"device:cuff-01"}, got.Tags)
	assert.Equal(t, 185.0, *got.Value.Systolic)

	st := bridge.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, int64(1), st.Bridged)

	bridge.Stop()
	assert.Empty(t, sub.handlers)
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "abc", deviceIDFromTopic("wellness/devices/abc/samples"))
	assert.Equal(t, "", deviceIDFromTopic("wellness/samples"))
}
