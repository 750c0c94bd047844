// Package main запускает HTTP-сервер сервиса начисления баллов.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/point-service/internal/config"
	"github.com/mmeshcher/point-service/internal/events"
	"github.com/mmeshcher/point-service/internal/fault"
	"github.com/mmeshcher/point-service/internal/handler"
	"github.com/mmeshcher/point-service/internal/logging"
	"github.com/mmeshcher/point-service/internal/repository"
	"github.com/mmeshcher/point-service/internal/service"
	"github.com/mmeshcher/point-service/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	tel, err := telemetry.Setup(context.Background(), telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		log.Fatalf("telemetry initialization error: %v", err)
	}
	tel.Install()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Printf("telemetry shutdown error: %v", err)
		}
	}()

	logger, err := logging.New(cfg.LogLevel, tel.Core())
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Infow("telemetry configured", "enabled", tel.Enabled(), "service", cfg.ServiceName)

	repo, err := newRepository(cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error(), "database", cfg.RedactedDSN())
	}
	sugar.Infow("connected to database", "driver", cfg.DBDriver, "database", cfg.RedactedDSN())

	var publisher service.Publisher = events.Noop{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			// Очередь событий — побочный канал, без неё сервис работает.
			sugar.Warnw("event publisher disabled", "error", err.Error())
		} else {
			publisher = amqpPublisher
			sugar.Infow("publishing events", "queue", cfg.RabbitMQQueue)
		}
	}

	injector := fault.NewRandomInjector(cfg.FaultRate, cfg.FaultSeed)
	sugar.Infow("fault injection configured", "rate", injector.Rate())

	svc := service.NewService(repo, injector, publisher, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			sugar.Warnw("close service", "error", err.Error())
		}
	}()

	h := handler.NewHandler(svc, logger)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("point service listening", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}

func newRepository(cfg *config.Config) (service.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return repository.NewMySQLRepository(cfg.DSN(), cfg.DBMaxConns)
	default:
		return repository.NewPostgresRepository(cfg.DSN(), int32(cfg.DBMaxConns))
	}
}
