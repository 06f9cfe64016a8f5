package usecase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bibbank/microcredit/internal/application/usecase"

var (
	tracer = otel.Tracer(instrumentationName)

	// Instruments created from the global meter follow the provider set later
	// by observability.InitMetrics.
	durationSeconds, _ = otel.Meter(instrumentationName).Float64Histogram(
		"microcredit.usecase.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Use case execution time."),
	)
)

type opSpan struct {
	ctx   context.Context
	span  trace.Span
	op    string
	start time.Time
}

// startSpan opens a span for one use case execution.
func startSpan(ctx context.Context, op string) (context.Context, opSpan) {
	ctx, span := tracer.Start(ctx, "usecase."+op)
	return ctx, opSpan{ctx: ctx, span: span, op: op, start: time.Now()}
}

func (s opSpan) end(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	durationSeconds.Record(s.ctx, time.Since(s.start).Seconds(), metric.WithAttributes(
		attribute.String("operation", s.op),
		attribute.Bool("error", err != nil),
	))
	s.span.End()
}
