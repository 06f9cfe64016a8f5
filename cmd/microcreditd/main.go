package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bibbank/microcredit/internal/app"
	"github.com/bibbank/microcredit/internal/infrastructure/config"
	"github.com/bibbank/microcredit/internal/infrastructure/scheduler"
	"github.com/bibbank/microcredit/internal/presentation/rest"
	"github.com/bibbank/microcredit/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting microcredit engine",
		"http_port", cfg.HTTPPort,
		"events_topic", cfg.Kafka.EventsTopic,
		"loan_events_topic", cfg.Kafka.LoanEventsTopic,
	)

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	meterProvider, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		logger.Warn("failed to initialize otel metrics", "error", err)
	} else {
		defer func() { _ = meterProvider.Shutdown(context.Background()) }()
	}

	if err := app.Migrate(cfg); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Batch jobs.
	sched, err := scheduler.New(scheduler.Config{
		SweepSpec:       cfg.Scheduler.SweepSpec,
		RecalculateSpec: cfg.Scheduler.RecalculateSpec,
		Workers:         cfg.Workers,
	}, a.SweepArrears, a.Recalculate, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start(ctx)
	defer sched.Stop()

	// Ops HTTP server.
	checks := map[string]rest.Check{
		"postgres": a.Pool.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           rest.NewRouter(rest.NewHealthHandler(cfg.ServiceName, checks, logger), observability.MetricsHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	consumer := a.LoanEventConsumer()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("loan event consumer: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close error", "error", err)
	}

	slog.Info("microcredit engine stopped")
}
