package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bibbank/microcredit/internal/app"
	"github.com/bibbank/microcredit/internal/cli"
	"github.com/bibbank/microcredit/internal/infrastructure/config"
	"github.com/bibbank/microcredit/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCmd(cli.Deps{
		Recalculator: func(ctx context.Context) (cli.Recalculator, func(), error) {
			a, err := build(ctx)
			if err != nil {
				return nil, nil, err
			}
			return a.Recalculate, a.Close, nil
		},
		Sweeper: func(ctx context.Context) (cli.Sweeper, func(), error) {
			a, err := build(ctx)
			if err != nil {
				return nil, nil, err
			}
			return a.SweepArrears, a.Close, nil
		},
		Migrate: func(context.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Migrate(cfg)
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func build(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.InitLogger(observability.LogConfig{
		Output:  os.Stderr,
		Level:   cfg.LogLevel,
		Format:  "text",
		Service: cfg.ServiceName,
	})
	return app.New(ctx, cfg, logger)
}
