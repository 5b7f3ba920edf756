package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wellness-analytics/common/database"
	mqttcommon "wellness-analytics/common/mqtt"
	rediscommon "wellness-analytics/common/redis"
	"wellness-analytics/internal/analytics"
	"wellness-analytics/internal/config"
	"wellness-analytics/internal/consumer"
	"wellness-analytics/internal/escalation"
	"wellness-analytics/internal/goals"
	httpapi "wellness-analytics/internal/http"
	"wellness-analytics/internal/ingest"
	"wellness-analytics/internal/insights"
	"wellness-analytics/internal/notify"
	"wellness-analytics/internal/report"
	"wellness-analytics/internal/repository"
	"wellness-analytics/internal/scheduler"
	"wellness-analytics/internal/store"
)

// WellnessService wires stores, analytics, escalation and the outer surfaces.
type WellnessService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	ingestor  *ingest.Ingestor
	escalator *escalation.Escalator
	log       *insights.Log
	refresher *scheduler.Refresher
	consumer  *consumer.StreamConsumer
	bridge    *consumer.MQTTBridge
	server    *http.Server

	wg sync.WaitGroup
}

// NewWellnessService connects the configured backends and builds every component.
func NewWellnessService(cfg *config.Config, logger *zap.Logger) (*WellnessService, error) {
	s := &WellnessService{config: cfg, logger: logger}
	ctx := context.Background()

	if cfg.Store.Backend == config.BackendPostgres {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		s.db = db
	}
	if cfg.NeedsRedis() {
		client := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, client); err != nil {
			s.closeConnections()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s.redisClient = client
	}

	kv, samples, err := s.buildStores(ctx)
	if err != nil {
		s.closeConnections()
		return nil, err
	}

	timeout := cfg.Store.Timeout
	goalRepo := repository.NewGoalRepository(kv, timeout)
	checkIns := repository.NewCheckInRepository(kv, timeout)
	caregivers := repository.NewCaregiverRepository(kv, timeout)
	correlations := repository.NewCorrelationRepository(kv, timeout)
	trendCache := repository.NewTrendCache(kv, timeout, cfg.Analytics.TrendCacheTTL)
	pending := repository.NewPendingDeliveryRepository(kv, timeout)

	s.escalator = escalation.NewEscalator(escalation.NewPolicy(), caregivers, checkIns, s.buildTransport(), pending, logger)
	tracker := goals.NewTracker(goalRepo, logger)
	generator := insights.NewGenerator()
	s.log = insights.NewLog(insights.LogOptions{
		Retention: cfg.Analytics.InsightRetention,
		Cooldown:  cfg.Analytics.AdviceCooldown,
		History:   insights.NewKVAdviceHistory(kv, cfg.Analytics.AdviceCooldown),
		Store:     repository.NewInsightLogRepository(kv, timeout),
	}, logger)
	tracker.OnAchieved(insights.AchievementRecorder(generator, s.log))
	if err := s.log.Restore(ctx); err != nil {
		logger.Warn("Starting with an empty insight log", zap.Error(err))
	}

	trends := analytics.NewTrendAnalyzer(samples, cfg.Store.RetentionDays, logger)
	engine := analytics.NewCorrelationEngine(samples, correlations, logger)
	stability := analytics.NewStabilityScorer(samples, logger)
	s.ingestor = ingest.NewIngestor(samples, tracker, s.escalator, logger)

	task := &scheduler.RefreshTask{
		Trends:        trends,
		TrendCache:    trendCache,
		Correlations:  engine,
		CorrStore:     correlations,
		Insights:      generator,
		Log:           s.log,
		Goals:         tracker,
		Samples:       samples,
		Pending:       s.escalator,
		RetentionDays: cfg.Store.RetentionDays,
		Logger:        logger,
	}
	s.refresher = scheduler.NewRefresher(cfg.Analytics.RefreshInterval, task.Run, logger)

	status := map[string]httpapi.StatusFunc{
		"scheduler": func() interface{} { return s.refresher.Stats() },
		"insights":  func() interface{} { return s.log.Len() },
		// critical deliveries held in memory while the pending queue is down
		"escalation_held": func() interface{} { return s.escalator.Held() },
	}

	if cfg.Stream.Enabled {
		s.consumer = consumer.NewStreamConsumer(consumer.StreamConfig{
			Stream:        cfg.Stream.Name,
			ConsumerGroup: cfg.Stream.ConsumerGroup,
			ConsumerName:  cfg.Stream.ConsumerName,
			BatchSize:     cfg.Stream.BatchSize,
			Block:         cfg.Stream.Block,
		}, s.redisClient, s.ingestor, logger)
		status["stream_consumer"] = func() interface{} { return s.consumer.Metrics() }
	}

	if cfg.MQTT.Enabled {
		if s.redisClient == nil {
			s.closeConnections()
			return nil, errors.New("MQTT bridge requires the Redis sample stream")
		}
		client, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			s.closeConnections()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.mqttClient = client
		s.bridge = consumer.NewMQTTBridge(client, s.redisClient, cfg.MQTT.SampleTopic, cfg.MQTT.QoS, cfg.Stream.Name, logger)
		status["mqtt_bridge"] = func() interface{} { return s.bridge.Status() }
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Ingestor:     s.ingestor,
		Samples:      samples,
		Trends:       trends,
		TrendCache:   trendCache,
		Correlator:   engine,
		Correlations: correlations,
		Stability:    stability,
		Goals:        tracker,
		Insights:     s.log,
		CheckIns:     s.escalator,
		CheckInLog:   checkIns,
		Caregivers:   caregivers,
		Reports:      report.NewReporter(trends, s.log, checkIns, caregivers, logger),
		Status:       status,
	}, logger)
	s.server = &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           httpapi.NewRouter(httpapi.RouterConfig{AllowOrigins: cfg.HTTP.AllowOrigins, Debug: cfg.HTTP.Debug}, handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// buildStores picks the KV and metric store for the configured backend.
func (s *WellnessService) buildStores(ctx context.Context) (store.KV, repository.MetricStore, error) {
	cfg := s.config
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return store.NewRedisKV(s.redisClient),
			repository.NewRedisMetricStore(s.redisClient, cfg.Store.Timeout, s.logger), nil
	case config.BackendPostgres:
		kv := store.NewPostgresKV(s.db)
		if err := kv.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to prepare kv schema: %w", err)
		}
		samples := repository.NewPostgresMetricStore(s.db, cfg.Store.Timeout, s.logger)
		if err := samples.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to prepare metric schema: %w", err)
		}
		return kv, samples, nil
	default:
		s.logger.Warn("Using in-memory stores; data is lost on restart")
		return store.NewMemoryKV(), repository.NewMemoryMetricStore(), nil
	}
}

// buildTransport returns the webhook transport when configured, else the log transport,
// wrapped in the per-caregiver throttle.
func (s *WellnessService) buildTransport() notify.Transport {
	var t notify.Transport
	if url := s.config.Notify.WebhookURL; url != "" {
		t = notify.NewWebhookTransport(url, s.config.Notify.WebhookTimeout, s.logger)
	} else {
		t = notify.NewLogTransport(s.logger)
	}
	if s.config.Notify.ThrottleInterval > 0 {
		t = notify.NewThrottle(t, s.config.Notify.ThrottleInterval)
	}
	return t
}

// Start runs background loops and serves HTTP until ctx is cancelled or the server fails.
func (s *WellnessService) Start(ctx context.Context) error {
	s.logger.Info("Starting wellness analytics service",
		zap.String("store_backend", s.config.Store.Backend),
		zap.String("http_addr", s.server.Addr),
		zap.Bool("stream_enabled", s.consumer != nil),
		zap.Bool("mqtt_enabled", s.bridge != nil),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refresher.Start(ctx)
	}()

	if s.consumer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("Stream consumer exited", zap.Error(err))
			}
		}()
	}

	if s.bridge != nil {
		if err := s.bridge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mqtt bridge: %w", err)
		}
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down, waits for loops and closes connections.
// The caller cancels the Start context first.
func (s *WellnessService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping wellness analytics service")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shut down http server", zap.Error(err))
	}
	if s.bridge != nil {
		s.bridge.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Background loops did not stop in time")
	}

	s.closeConnections()
	return nil
}

func (s *WellnessService) closeConnections() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
}
