package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 90, cfg.Store.RetentionDays)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 100, cfg.Analytics.InsightRetention)
	assert.Equal(t, 24*time.Hour, cfg.Analytics.AdviceCooldown)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=wellness sslmode=disable", cfg.Database.GetDSN())
	assert.False(t, cfg.MQTT.Enabled)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("METRIC_RETENTION_DAYS", "30")
	t.Setenv("REFRESH_INTERVAL", "1m")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://push.local/notify")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("DB_HOST", "db")
	t.Setenv("STREAM_ENABLED", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a,http://b")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 30, cfg.Store.RetentionDays)
	assert.Equal(t, time.Minute, cfg.Analytics.RefreshInterval)
	assert.Equal(t, "http://push.local/notify", cfg.Notify.WebhookURL)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.HTTP.AllowOrigins)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_TIMEOUT", "soon")
	t.Setenv("INSIGHT_RETENTION", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 100, cfg.Analytics.InsightRetention)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
store:
  backend: memory
  retention_days: 14
analytics:
  refresh_interval: 5m
mqtt:
  enabled: true
  sample_topic: home/+/vitals
  broker: tcp://yaml-broker:1883
log:
  level: debug
`), 0o600))
	t.Setenv(EnvConfigFilePath, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 14, cfg.Store.RetentionDays)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.RefreshInterval)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "home/+/vitals", cfg.MQTT.SampleTopic)
	assert.Equal(t, "tcp://yaml-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "warn", cfg.Log.Level)
	// untouched keys keep defaults
	assert.Equal(t, 100, cfg.Analytics.InsightRetention)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	os.Clearenv()
	t.Setenv(EnvConfigFilePath, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
