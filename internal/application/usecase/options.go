package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	"github.com/bibbank/microcredit/pkg/observability"
)

const (
	// DefaultSaveAttempts bounds optimistic-concurrency retries per aggregate.
	DefaultSaveAttempts = 3
	// DefaultWorkers is the bulk recalculation pool size.
	DefaultWorkers = 4
	// DefaultGrace is the arrears grace window.
	DefaultGrace = 7 * 24 * time.Hour

	systemActor = "system"
)

type options struct {
	now      func() time.Time
	logger   *slog.Logger
	attempts int
	workers  int
	grace    time.Duration
}

// Option configures a use case.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSaveAttempts sets how many times a save is retried on version conflict.
func WithSaveAttempts(n int) Option {
	return func(o *options) { o.attempts = n }
}

// WithWorkers sets the bulk recalculation pool size.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithGrace sets the arrears grace window.
func WithGrace(d time.Duration) Option {
	return func(o *options) { o.grace = d }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
		attempts: DefaultSaveAttempts,
		workers:  DefaultWorkers,
		grace:    DefaultGrace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// withVersionRetry reruns a load-modify-save cycle while the save loses an
// optimistic-concurrency race. After the last attempt the conflict is
// returned, still matching valueobject.ErrVersionConflict.
func withVersionRetry(ctx context.Context, aggregate string, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, valueobject.ErrVersionConflict) {
			return err
		}
		observability.VersionConflictsTotal.WithLabelValues(aggregate).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", aggregate, attempts, err)
}

// countTransitions records the status changes between two versions of a loan.
func countTransitions(before, after model.Loan) {
	all := after.Transitions()
	for _, t := range all[len(before.Transitions()):] {
		observability.LoanTransitionsTotal.WithLabelValues(t.From.String(), t.To.String()).Inc()
	}
}
