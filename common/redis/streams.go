package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage is one entry read from a stream.
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data returns the "data" field of the entry, the JSON payload written by PublishJSONToStream.
func (m StreamMessage) Data() ([]byte, bool) {
	raw, ok := m.Values["data"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

// PublishToStream appends values to a stream, stringifying scalars and JSON-encoding the rest.
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		var strValue string
		switch val := v.(type) {
		case string:
			strValue = val
		case []byte:
			strValue = string(val)
		case int:
			strValue = strconv.Itoa(val)
		case int64:
			strValue = strconv.FormatInt(val, 10)
		case float64:
			strValue = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			strValue = strconv.FormatBool(val)
		default:
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			strValue = string(jsonBytes)
		}
		streamValues[k] = strValue
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}).Result()
}

// PublishJSONToStream publishes data as a JSON "data" field with a unix "timestamp".
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return PublishToStream(ctx, client, stream, map[string]interface{}{
		"data":      string(jsonBytes),
		"timestamp": time.Now().Unix(),
	})
}

// ReadFromStream reads new entries for a consumer group, blocking at most block.
// A timeout with no entries returns an empty slice and no error.
func ReadFromStream(ctx context.Context, client *redis.Client, stream, consumerGroup, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	return readGroup(ctx, client, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
}

// ReadPendingFromStream re-reads entries delivered to consumer but not yet acknowledged.
// It never blocks.
func ReadPendingFromStream(ctx context.Context, client *redis.Client, stream, consumerGroup, consumer string, count int64) ([]StreamMessage, error) {
	return readGroup(ctx, client, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
		Block:    -1,
	})
}

func readGroup(ctx context.Context, client *redis.Client, args *redis.XReadGroupArgs) ([]StreamMessage, error) {
	streams, err := client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StreamMessage{}, nil
		}
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}

	return messages, nil
}

// Ack acknowledges processed entries.
func Ack(ctx context.Context, client *redis.Client, stream, consumerGroup string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, consumerGroup, ids...).Err()
}

// CreateConsumerGroup creates the group (and the stream if missing); an existing group is fine.
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream string, groupName string) error {
	err := client.XGroupCreateMkStream(ctx, stream, groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", groupName, stream, err)
	}
	return nil
}
