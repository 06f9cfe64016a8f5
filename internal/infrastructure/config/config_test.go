package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	"github.com/bibbank/microcredit/internal/infrastructure/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTPAddr())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 7, cfg.Policy.GraceDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REDIS_DEDUPE_TTL", "1h")
	t.Setenv("RECALCULATE_WORKERS", "16")
	t.Setenv("WEATHER_API_URL", "http://weather.local")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "1h0m0s", cfg.Redis.DedupeTTL.String())
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, "http://weather.local", cfg.Weather.BaseURL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=fromfile\nHTTP_PORT=9100\n"), 0o600))
	// Registered for restore, then unset so the file values apply.
	for _, key := range []string{"DB_PASSWORD", "HTTP_PORT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.DB.Password)
	assert.Equal(t, ":9100", cfg.HTTPAddr())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Config{
			Kafka:        config.KafkaConfig{Brokers: []string{"k:9092"}, EventsTopic: "e", LoanEventsTopic: "l"},
			Scheduler:    config.SchedulerConfig{SweepSpec: "0 1 * * *", RecalculateSpec: "0 2 * * *"},
			Workers:      4,
			SaveAttempts: 3,
			Policy:       service.DefaultLendingPolicy(),
		}
		cfg.DB.Password = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"missing password", func(c *config.Config) { c.DB.Password = "" }, "DB_PASSWORD"},
		{"bad cron spec", func(c *config.Config) { c.Scheduler.SweepSpec = "every day" }, "SWEEP_SCHEDULE"},
		{"too many workers", func(c *config.Config) { c.Workers = 100 }, "RECALCULATE_WORKERS"},
		{"no brokers", func(c *config.Config) { c.Kafka.Brokers = nil }, "KAFKA_BROKERS"},
		{"inverted thresholds", func(c *config.Config) {
			c.Policy.DefaultThresholds = service.RecommendationThresholds{Approve: 70, Decline: 40}
		}, "lending policy"},
	}
	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
min_rate = 9
grace_days = 10

[base_rates]
agriculture = 11.5

[thresholds.transport]
approve = 38
decline = 58

[auto_approval]
min_probability = 0.9
ceiling = 750000
`), 0o600))

	p, err := config.LoadPolicy(path, service.DefaultLendingPolicy())
	require.NoError(t, err)

	assert.Equal(t, "9", p.MinRate.String())
	assert.Equal(t, 10, p.GraceDays)
	assert.Equal(t, "11.5", p.BaseRate(valueobject.SectorAgriculture).String())
	assert.Equal(t, "16", p.BaseRate(valueobject.SectorRetail).String())
	assert.Equal(t, service.RecommendationThresholds{Approve: 38, Decline: 58}, p.ThresholdsFor(valueobject.SectorTransport))
	assert.Equal(t, service.RecommendationThresholds{Approve: 35, Decline: 55}, p.ThresholdsFor(valueobject.SectorAgriculture))
	assert.Equal(t, 0.9, p.AutoApproval.MinProbability)
	assert.Equal(t, "750000", p.AutoApproval.Ceiling.String())
}

func TestLoadPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown key", "interest_cap = 40\n", "unknown key"},
		{"unknown sector", "[base_rates]\nfishing = 10\n", "base_rates"},
		{"inverted rate band", "min_rate = 35\n", "policy"},
		{"malformed", "min_rate = \n", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := config.LoadPolicy(path, service.DefaultLendingPolicy())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
