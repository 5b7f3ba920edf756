package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-analytics/common/config"
)

func TestNewRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer Close(client)

	require.NoError(t, Ping(context.Background(), client))

	mr.Close()
	err := Ping(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
