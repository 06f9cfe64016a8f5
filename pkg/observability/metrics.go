package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const namespace = "microcredit"

// AssessmentsTotal counts scoring outcomes by kind ("full" or "fallback").
var AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "scoring",
	Name:      "assessments_total",
	Help:      "Risk assessments produced, by outcome.",
}, []string{"outcome"})

// ProviderLatency tracks external signal provider call latency.
var ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "scoring",
	Name:      "provider_latency_seconds",
	Help:      "Latency of weather and mobile-money provider calls.",
	Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
}, []string{"provider", "result"})

// ScoreUpdatesTotal counts credit score history entries by reason.
var ScoreUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "score_history",
	Name:      "updates_total",
	Help:      "Credit score updates appended to borrower history, by reason.",
}, []string{"reason"})

// DuplicateEventsTotal counts webhook events dropped as replays.
var DuplicateEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "score_history",
	Name:      "duplicate_events_total",
	Help:      "Loan events ignored because their event id was already applied.",
})

// LoanTransitionsTotal counts loan status transitions.
var LoanTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "lifecycle",
	Name:      "transitions_total",
	Help:      "Loan status transitions, by source and target status.",
}, []string{"from", "to"})

// VersionConflictsTotal counts optimistic-lock conflicts by aggregate.
var VersionConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "storage",
	Name:      "version_conflicts_total",
	Help:      "Optimistic concurrency conflicts, by aggregate type.",
}, []string{"aggregate"})

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName string
	// Registerer receives the OpenTelemetry collector. Defaults to the
	// process registry served by MetricsHandler.
	Registerer prometheus.Registerer
}

// InitMetrics installs a global OpenTelemetry meter provider whose
// instruments are exported next to the promauto collectors.
func InitMetrics(cfg MetricsConfig) (*sdkmetric.MeterProvider, error) {
	var opts []promexporter.Option
	if cfg.Registerer != nil {
		opts = append(opts, promexporter.WithRegisterer(cfg.Registerer))
	}
	exporter, err := promexporter.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(serviceResource(cfg.ServiceName)),
	)
	otel.SetMeterProvider(provider)
	return provider, nil
}

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
