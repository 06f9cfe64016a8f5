// Package app assembles the microcredit engine from configuration. Both the
// daemon and the operator CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bibbank/microcredit/internal/application/usecase"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/infrastructure/adapter"
	"github.com/bibbank/microcredit/internal/infrastructure/cache"
	"github.com/bibbank/microcredit/internal/infrastructure/config"
	"github.com/bibbank/microcredit/internal/infrastructure/messaging"
	pgrepo "github.com/bibbank/microcredit/internal/infrastructure/persistence/postgres"
	pkgkafka "github.com/bibbank/microcredit/pkg/kafka"
	pkgpostgres "github.com/bibbank/microcredit/pkg/postgres"
)

// App holds the wired adapters and use cases.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Producer *pkgkafka.Producer

	AssessBorrower  *usecase.AssessBorrowerUseCase
	SubmitLoan      *usecase.SubmitLoanApplicationUseCase
	ReviewLoan      *usecase.ReviewLoanApplicationUseCase
	DisburseLoan    *usecase.DisburseLoanUseCase
	RecordRepayment *usecase.RecordRepaymentUseCase
	HandleLoanEvent *usecase.HandleLoanEventUseCase
	SweepArrears    *usecase.SweepArrearsUseCase
	Recalculate     *usecase.RecalculateScoresUseCase
	GetCreditScore  *usecase.GetCreditScoreUseCase
	GetLoan         *usecase.GetLoanUseCase
}

// New connects to Postgres and Redis and wires every use case. A Redis
// outage is tolerated: events are then deduplicated by the aggregates alone.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pkgpostgres.NewPool(dbCtx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.DB.Host, "database", cfg.DB.Database)

	a := &App{Config: cfg, Logger: logger, Pool: pool}

	var dedupe port.EventDeduplicator
	rdb, err := cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("redis unavailable, continuing without event dedupe", "error", err)
	} else {
		a.Redis = rdb
		dedupe = cache.NewEventDeduplicator(rdb, cfg.Redis.DedupeTTL)
	}

	a.Producer = pkgkafka.NewProducer(pkgkafka.Config{Brokers: cfg.Kafka.Brokers})
	publisher := messaging.NewKafkaEventPublisher(a.Producer, cfg.Kafka.EventsTopic, logger)

	borrowers := pgrepo.NewBorrowerRepo(pool)
	loans := pgrepo.NewLoanRepo(pool)
	scores := pgrepo.NewCreditScoreRepo(pool)

	engine := service.NewScoringEngine(
		service.NewSignalAggregator(service.DefaultSectorStrategies()),
		logger,
		providerOptions(cfg)...,
	)
	pricing := service.NewPricingEngine(cfg.Policy)
	tracker := service.NewScoreTracker(logger)

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithSaveAttempts(cfg.SaveAttempts),
		usecase.WithWorkers(cfg.Workers),
		usecase.WithGrace(time.Duration(cfg.Policy.GraceDays) * 24 * time.Hour),
	}
	reviser := usecase.NewScoreReviser(borrowers, loans, scores, publisher, engine, tracker, opts...)

	a.AssessBorrower = usecase.NewAssessBorrowerUseCase(borrowers, publisher, engine, pricing, reviser, opts...)
	a.SubmitLoan = usecase.NewSubmitLoanApplicationUseCase(borrowers, loans, publisher, engine, pricing, reviser, opts...)
	a.ReviewLoan = usecase.NewReviewLoanApplicationUseCase(loans, publisher, opts...)
	a.DisburseLoan = usecase.NewDisburseLoanUseCase(loans, publisher, reviser, opts...)
	a.RecordRepayment = usecase.NewRecordRepaymentUseCase(loans, publisher, reviser, opts...)
	a.HandleLoanEvent = usecase.NewHandleLoanEventUseCase(loans, dedupe, publisher, reviser, opts...)
	a.SweepArrears = usecase.NewSweepArrearsUseCase(loans, publisher, reviser, opts...)
	a.Recalculate = usecase.NewRecalculateScoresUseCase(borrowers, reviser, opts...)
	a.GetCreditScore = usecase.NewGetCreditScoreUseCase(scores)
	a.GetLoan = usecase.NewGetLoanUseCase(loans)
	return a, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(cfg config.Config) error {
	return pkgpostgres.RunMigrations(cfg.DB.DSN(), pgrepo.Migrations, pgrepo.MigrationsDir)
}

// LoanEventConsumer builds the Kafka consumer for inbound lifecycle webhooks.
func (a *App) LoanEventConsumer() *pkgkafka.Consumer {
	handler := messaging.NewLoanEventConsumer(a.HandleLoanEvent, a.Logger)
	return pkgkafka.NewConsumer(pkgkafka.Config{
		Brokers:         a.Config.Kafka.Brokers,
		ConsumerGroup:   a.Config.Kafka.ConsumerGroup,
		HandlerAttempts: a.Config.Kafka.HandlerAttempts,
		HandlerBackoff:  a.Config.Kafka.HandlerBackoff,
	}, a.Config.Kafka.LoanEventsTopic, handler.Handle, a.Logger)
}

// Close releases connections.
func (a *App) Close() {
	if err := a.Producer.Close(); err != nil {
		a.Logger.Warn("closing kafka producer", "error", err)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}

// providerOptions picks the HTTP clients or the stubs, and sizes the per-call
// budget to cover the clients' retries.
func providerOptions(cfg config.Config) []service.ScoringOption {
	var (
		opts   []service.ScoringOption
		budget time.Duration
	)
	if cfg.Weather.BaseURL != "" {
		opts = append(opts, service.WithWeatherProvider(adapter.NewWeatherClient(clientConfig(cfg.Weather))))
		budget = max(budget, cfg.Weather.Timeout*time.Duration(cfg.Weather.Retries+1))
	} else {
		opts = append(opts, service.WithWeatherProvider(adapter.StubWeather{}))
	}
	if cfg.MobileMoney.BaseURL != "" {
		opts = append(opts, service.WithMobileMoneyProvider(adapter.NewMobileMoneyClient(clientConfig(cfg.MobileMoney))))
		budget = max(budget, cfg.MobileMoney.Timeout*time.Duration(cfg.MobileMoney.Retries+1))
	} else {
		opts = append(opts, service.WithMobileMoneyProvider(adapter.StubMobileMoney{}))
	}
	if budget > 0 {
		opts = append(opts, service.WithProviderTimeout(budget))
	}
	return opts
}

func clientConfig(p config.ProviderConfig) adapter.ClientConfig {
	return adapter.ClientConfig{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Timeout: p.Timeout,
		Retries: p.Retries,
	}
}
