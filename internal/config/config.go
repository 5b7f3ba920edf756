package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	commoncfg "wellness-analytics/common/config"
)

const EnvConfigFilePath = "CONFIG_FILE_PATH"

// Store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config wellness-analytics service configuration.
// Precedence: defaults, then the YAML file at CONFIG_FILE_PATH, then environment.
type Config struct {
	HTTP struct {
		Port         string   `yaml:"port"`
		AllowOrigins []string `yaml:"allow_origins"`
		Debug        bool     `yaml:"debug"`
	} `yaml:"http"`

	Store struct {
		Backend       string        `yaml:"backend"`
		Timeout       time.Duration `yaml:"timeout"`
		RetentionDays int           `yaml:"retention_days"`
	} `yaml:"store"`

	Database commoncfg.DatabaseConfig `yaml:"database"`
	Redis    commoncfg.RedisConfig    `yaml:"redis"`

	Analytics struct {
		RefreshInterval  time.Duration `yaml:"refresh_interval"`
		InsightRetention int           `yaml:"insight_retention"`
		AdviceCooldown   time.Duration `yaml:"advice_cooldown"`
		TrendCacheTTL    time.Duration `yaml:"trend_cache_ttl"`
	} `yaml:"analytics"`

	Notify struct {
		WebhookURL       string        `yaml:"webhook_url"`
		WebhookTimeout   time.Duration `yaml:"webhook_timeout"`
		ThrottleInterval time.Duration `yaml:"throttle_interval"`
	} `yaml:"notify"`

	Stream struct {
		Enabled       bool          `yaml:"enabled"`
		Name          string        `yaml:"name"`
		ConsumerGroup string        `yaml:"consumer_group"`
		ConsumerName  string        `yaml:"consumer_name"`
		BatchSize     int64         `yaml:"batch_size"`
		Block         time.Duration `yaml:"block"`
	} `yaml:"stream"`

	MQTT struct {
		Enabled              bool   `yaml:"enabled"`
		SampleTopic          string `yaml:"sample_topic"`
		commoncfg.MQTTConfig `yaml:",inline"`
	} `yaml:"mqtt"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"

	cfg.Store.Backend = BackendRedis
	cfg.Store.Timeout = 2 * time.Second
	cfg.Store.RetentionDays = 90

	cfg.Database = commoncfg.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "postgres",
		Database: "wellness", SSLMode: "disable", MaxConns: 10, MaxIdle: 5,
	}
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}

	cfg.Analytics.RefreshInterval = 15 * time.Minute
	cfg.Analytics.InsightRetention = 100
	cfg.Analytics.AdviceCooldown = 24 * time.Hour
	cfg.Analytics.TrendCacheTTL = time.Hour

	cfg.Notify.WebhookTimeout = 5 * time.Second
	cfg.Notify.ThrottleInterval = 10 * time.Minute

	cfg.Stream.Enabled = true
	cfg.Stream.Name = "wellness:samples"
	cfg.Stream.ConsumerGroup = "wellness-analytics"
	cfg.Stream.ConsumerName = hostnameOr("wellness-analytics-1")
	cfg.Stream.BatchSize = 10
	cfg.Stream.Block = time.Second

	cfg.MQTT.SampleTopic = "wellness/devices/+/samples"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wellness-analytics"
	cfg.MQTT.QoS = 1

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load builds the configuration. A missing or malformed config file is an error
// only when CONFIG_FILE_PATH is set.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(EnvConfigFilePath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Database.LoadFromEnv("DB")
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.LoadFromEnv("MQTT")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Port = getEnv("HTTP_PORT", cfg.HTTP.Port)
	if origins := os.Getenv("CORS_ALLOW_ORIGINS"); origins != "" {
		cfg.HTTP.AllowOrigins = strings.Split(origins, ",")
	}
	cfg.HTTP.Debug = parseBool(os.Getenv("GIN_DEBUG_MODE"), cfg.HTTP.Debug)

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.Timeout = parseDuration(os.Getenv("STORE_TIMEOUT"), cfg.Store.Timeout)
	cfg.Store.RetentionDays = parseInt(os.Getenv("METRIC_RETENTION_DAYS"), cfg.Store.RetentionDays)

	cfg.Analytics.RefreshInterval = parseDuration(os.Getenv("REFRESH_INTERVAL"), cfg.Analytics.RefreshInterval)
	cfg.Analytics.InsightRetention = parseInt(os.Getenv("INSIGHT_RETENTION"), cfg.Analytics.InsightRetention)
	cfg.Analytics.AdviceCooldown = parseDuration(os.Getenv("ADVICE_COOLDOWN"), cfg.Analytics.AdviceCooldown)
	cfg.Analytics.TrendCacheTTL = parseDuration(os.Getenv("TREND_CACHE_TTL"), cfg.Analytics.TrendCacheTTL)

	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.WebhookTimeout = parseDuration(os.Getenv("NOTIFY_WEBHOOK_TIMEOUT"), cfg.Notify.WebhookTimeout)
	cfg.Notify.ThrottleInterval = parseDuration(os.Getenv("NOTIFY_THROTTLE_INTERVAL"), cfg.Notify.ThrottleInterval)

	cfg.Stream.Enabled = parseBool(os.Getenv("STREAM_ENABLED"), cfg.Stream.Enabled)
	cfg.Stream.Name = getEnv("SAMPLE_STREAM", cfg.Stream.Name)
	cfg.Stream.ConsumerGroup = getEnv("CONSUMER_GROUP", cfg.Stream.ConsumerGroup)
	cfg.Stream.ConsumerName = getEnv("CONSUMER_NAME", cfg.Stream.ConsumerName)

	cfg.MQTT.Enabled = parseBool(os.Getenv("MQTT_ENABLED"), cfg.MQTT.Enabled)
	cfg.MQTT.SampleTopic = getEnv("MQTT_SAMPLE_TOPIC", cfg.MQTT.SampleTopic)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.RetentionDays <= 0 {
		return fmt.Errorf("METRIC_RETENTION_DAYS must be positive, got %d", c.Store.RetentionDays)
	}
	if c.Analytics.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.Analytics.RefreshInterval)
	}
	return nil
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == BackendRedis || c.Stream.Enabled
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
