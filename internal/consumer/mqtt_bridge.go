package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	mqttcommon "wellness-analytics/common/mqtt"
	rediscommon "wellness-analytics/common/redis"
	"wellness-analytics/internal/models"
)

// DeviceReading payload published by a vital-sign device.
type DeviceReading struct {
	MetricType models.MetricType  `json:"metric_type"`
	Value      models.SampleValue `json:"value"`
	Unit       string             `json:"unit,omitempty"`
	Timestamp  *time.Time         `json:"timestamp,omitempty"`
}

// Subscriber the part of the MQTT client the bridge uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
}

// BridgeStatus reported on the status endpoint.
type BridgeStatus struct {
	Topic     string `json:"topic"`
	Connected bool   `json:"connected"`
	Bridged   int64  `json:"bridged"`
}

// MQTTBridge republishes device readings from MQTT topics into the sample stream.
// Topics look like wellness/devices/{device_id}/samples.
type MQTTBridge struct {
	mqtt        Subscriber
	redisClient *redis.Client
	topic       string
	qos         byte
	stream      string
	logger      *zap.Logger
	bridged     int64
}

func NewMQTTBridge(sub Subscriber, redisClient *redis.Client, topic string, qos byte, stream string, logger *zap.Logger) *MQTTBridge {
	return &MQTTBridge{
		mqtt:        sub,
		redisClient: redisClient,
		topic:       topic,
		qos:         qos,
		stream:      stream,
		logger:      logger,
	}
}

func (b *MQTTBridge) Start(ctx context.Context) error {
	if err := b.mqtt.Subscribe(b.topic, b.qos, func(topic string, payload []byte) error {
		return b.HandleMessage(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", b.topic, err)
	}
	b.logger.Info("MQTT bridge started", zap.String("topic", b.topic), zap.String("stream", b.stream))
	return nil
}

func (b *MQTTBridge) Status() BridgeStatus {
	return BridgeStatus{
		Topic:     b.topic,
		Connected: b.mqtt.IsConnected(),
		Bridged:   atomic.LoadInt64(&b.bridged),
	}
}

func (b *MQTTBridge) Stop() {
	if err := b.mqtt.Unsubscribe(b.topic); err != nil {
		b.logger.Warn("Failed to unsubscribe", zap.String("topic", b.topic), zap.Error(err))
	}
}

// HandleMessage converts one device payload to a sample and publishes it.
func (b *MQTTBridge) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	var reading DeviceReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to parse device payload on %s: %w", topic, err)
	}

	ts := time.Now().UTC()
	if reading.Timestamp != nil {
		ts = *reading.Timestamp
	}
	sample := models.MetricSample{
		MetricType: reading.MetricType,
		Value:      reading.Value,
		Unit:       reading.Unit,
		Timestamp:  ts,
		Source:     models.SourceDevice,
	}
	if id := deviceIDFromTopic(topic); id != "" {
		sample.Tags = []string{"device:" + id}
	}

	if _, err := rediscommon.PublishJSONToStream(ctx, b.redisClient, b.stream, SampleMessage{Sample: &sample}); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	atomic.AddInt64(&b.bridged, 1)
	b.logger.Debug("Device reading bridged",
		zap.String("topic", topic),
		zap.String("metric_type", string(sample.MetricType)),
	)
	return nil
}

func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" {
			return parts[i+1]
		}
	}
	return ""
}
