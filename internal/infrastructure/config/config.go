package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/pkg/postgres"
)

type KafkaConfig struct {
	Brokers         []string
	EventsTopic     string
	LoanEventsTopic string
	ConsumerGroup   string
	HandlerAttempts int
	HandlerBackoff  time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	DedupeTTL time.Duration
}

// ProviderConfig configures an external signal provider. An empty BaseURL
// selects the deterministic stub.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

type SchedulerConfig struct {
	SweepSpec       string
	RecalculateSpec string
}

type Config struct {
	ServiceName  string
	LogLevel     string
	LogFormat    string
	HTTPPort     int
	OTLPEndpoint string
	DB           postgres.Config
	Kafka        KafkaConfig
	Redis        RedisConfig
	Weather      ProviderConfig
	MobileMoney  ProviderConfig
	Scheduler    SchedulerConfig
	Workers      int
	SaveAttempts int
	PolicyFile   string
	Policy       service.LendingPolicy
}

// Load reads an optional .env file, then the environment, then the policy
// file named by POLICY_FILE.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		ServiceName:  "microcredit",
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		HTTPPort:     getEnvInt("HTTP_PORT", 8090),
		// Empty disables trace export.
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DB: postgres.Config{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "microcredit"),
			Password:       getEnv("DB_PASSWORD", ""),
			Database:       getEnv("DB_NAME", "microcredit"),
			SSLMode:        getEnv("DB_SSLMODE", "require"),
			MaxConns:       int32(getEnvInt("DB_MAX_CONNS", 10)),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvList("KAFKA_BROKERS", "localhost:9092"),
			EventsTopic:     getEnv("KAFKA_EVENTS_TOPIC", "microcredit.events"),
			LoanEventsTopic: getEnv("KAFKA_LOAN_EVENTS_TOPIC", "microcredit.loan-events"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "microcredit"),
			HandlerAttempts: getEnvInt("KAFKA_HANDLER_ATTEMPTS", 3),
			HandlerBackoff:  getEnvDuration("KAFKA_HANDLER_BACKOFF", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			DedupeTTL: getEnvDuration("REDIS_DEDUPE_TTL", 72*time.Hour),
		},
		Weather: ProviderConfig{
			BaseURL: getEnv("WEATHER_API_URL", ""),
			APIKey:  getEnv("WEATHER_API_KEY", ""),
			Timeout: getEnvDuration("WEATHER_API_TIMEOUT", 2*time.Second),
			Retries: getEnvInt("WEATHER_API_RETRIES", 1),
		},
		MobileMoney: ProviderConfig{
			BaseURL: getEnv("MOBILE_MONEY_API_URL", ""),
			APIKey:  getEnv("MOBILE_MONEY_API_KEY", ""),
			Timeout: getEnvDuration("MOBILE_MONEY_API_TIMEOUT", 2*time.Second),
			Retries: getEnvInt("MOBILE_MONEY_API_RETRIES", 1),
		},
		Scheduler: SchedulerConfig{
			SweepSpec:       getEnv("SWEEP_SCHEDULE", "15 1 * * *"),
			RecalculateSpec: getEnv("RECALCULATE_SCHEDULE", "30 2 * * *"),
		},
		Workers:      getEnvInt("RECALCULATE_WORKERS", 4),
		SaveAttempts: getEnvInt("SAVE_ATTEMPTS", 3),
		PolicyFile:   getEnv("POLICY_FILE", ""),
		Policy:       service.DefaultLendingPolicy(),
	}

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.PolicyFile, cfg.Policy)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = policy
	}
	return cfg, nil
}

// Validate checks required values and cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.DB.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.Kafka.EventsTopic == "" || c.Kafka.LoanEventsTopic == "" {
		errs = append(errs, errors.New("kafka topics must not be empty"))
	}
	if c.Workers < 1 || c.Workers > 64 {
		errs = append(errs, fmt.Errorf("RECALCULATE_WORKERS must be between 1 and 64, got %d", c.Workers))
	}
	if c.SaveAttempts < 1 {
		errs = append(errs, fmt.Errorf("SAVE_ATTEMPTS must be positive, got %d", c.SaveAttempts))
	}
	for name, spec := range map[string]string{
		"SWEEP_SCHEDULE":       c.Scheduler.SweepSpec,
		"RECALCULATE_SCHEDULE": c.Scheduler.RecalculateSpec,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("lending policy: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
