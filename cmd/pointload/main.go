// Package main запускает нагрузочный стенд: конкурентные запросы к эндпоинту
// суммы баллов с подсчётом статусов ответа.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/mmeshcher/point-service/internal/config"
	"github.com/mmeshcher/point-service/internal/loadtest"
	"github.com/mmeshcher/point-service/internal/logging"
	"github.com/mmeshcher/point-service/internal/pointclient"
)

func main() {
	cfg, err := config.ParseLoad()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer logger.Sync()

	client := pointclient.NewClient(cfg.Target,
		pointclient.WithRetries(cfg.Retries),
		pointclient.WithTimeout(cfg.Timeout),
		pointclient.WithLogger(logger),
	)

	runner, err := loadtest.NewRunner(client, loadtest.Options{
		PathTemplate: cfg.PathTemplate,
		Users:        cfg.Users,
		Concurrency:  cfg.Concurrency,
		Duration:     cfg.Duration,
		Ramp:         cfg.Ramp,
		Pause:        cfg.Pause,
	}, logger)
	if err != nil {
		logger.Fatal("invalid load profile", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting load",
		zap.String("target", cfg.Target),
		zap.String("path", cfg.PathTemplate),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Duration("duration", cfg.Duration),
	)

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal("load run failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.Int64("requests", report.Requests),
		zap.Int64("transportErrors", report.Errors),
		zap.Int64("anomalies", report.Anomalies),
		zap.Float64("failureRate", report.FailureRate()),
		zap.Duration("elapsed", report.Elapsed),
	}
	for _, code := range report.Statuses() {
		fields = append(fields, zap.Int64("status"+strconv.Itoa(code), report.ByStatus[code]))
	}
	logger.Info("load finished", fields...)

	if report.Anomalies > 0 {
		logger.Warn("unexpected statuses observed", zap.Int64("anomalies", report.Anomalies))
		logger.Sync()
		os.Exit(1)
	}
}
