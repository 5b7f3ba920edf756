package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wellness-analytics/common/logger"
	"wellness-analytics/internal/config"
	"wellness-analytics/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. logger
	log, err := initLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. service
	svc, err := service.NewWellnessService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create wellness service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceErrChan := make(chan error, 1)
	go func() {
		serviceErrChan <- svc.Start(ctx)
	}()

	// 4. wait for a signal or a fatal service error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serviceErrChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		log.Error("Failed to stop service cleanly", zap.Error(err))
	}
	log.Info("Wellness analytics service stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var file *logger.FileConfig
	if cfg.Log.File != "" {
		file = &logger.FileConfig{
			Filename:   cfg.Log.File,
			MaxSizeMB:  100,
			MaxAgeDays: 14,
			MaxBackups: 5,
			Compress:   true,
		}
	}
	return logger.NewLoggerWithFile(cfg.Log.Level, cfg.Log.Format, "wellness-analytics", file)
}
