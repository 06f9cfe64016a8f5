package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bibbank/microcredit/internal/application/dto"
)

// ArrearsSweeper is satisfied by *usecase.SweepArrearsUseCase.
type ArrearsSweeper interface {
	Execute(ctx context.Context) (dto.SweepArrearsResponse, error)
}

// ScoreRecalculator is satisfied by *usecase.RecalculateScoresUseCase.
type ScoreRecalculator interface {
	Execute(ctx context.Context, req dto.RecalculateScoresRequest) (dto.RecalculateScoresResponse, error)
}

// Config holds the cron specs of the batch jobs.
type Config struct {
	SweepSpec       string
	RecalculateSpec string
	Workers         int
	// JobTimeout bounds one run of either job. Zero means one hour.
	JobTimeout time.Duration
}

// Scheduler runs the arrears sweep and the score re-evaluation on cron
// schedules, in UTC. A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweep   ArrearsSweeper
	recalc  ScoreRecalculator
	logger  *slog.Logger
	workers int
	timeout time.Duration
	ctx     context.Context
}

// New registers both jobs. It fails on an unparsable spec.
func New(cfg Config, sweep ArrearsSweeper, recalc ScoreRecalculator, logger *slog.Logger) (*Scheduler, error) {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweep:   sweep,
		recalc:  recalc,
		logger:  logger,
		workers: cfg.Workers,
		timeout: timeout,
		ctx:     context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.SweepSpec, s.runSweep); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", cfg.SweepSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.RecalculateSpec, s.runRecalculation); err != nil {
		return nil, fmt.Errorf("recalculate schedule %q: %w", cfg.RecalculateSpec, err)
	}
	return s, nil
}

// Start begins firing jobs. Runs inherit ctx, so cancelling it aborts them.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Entries exposes the registered jobs.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.sweep.Execute(ctx)
	if err != nil {
		s.logger.Error("arrears sweep failed", "error", err)
		return
	}
	s.logger.Info("arrears sweep finished",
		"loans_checked", res.LoansChecked,
		"newly_overdue", res.NewlyOverdue,
		"moved_to_arrears", res.MovedToArrears,
		"failed", res.Failed,
		"duration", time.Since(start),
	)
}

func (s *Scheduler) runRecalculation() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.recalc.Execute(ctx, dto.RecalculateScoresRequest{Workers: s.workers})
	if err != nil {
		s.logger.Error("score recalculation failed", "error", err)
		return
	}
	s.logger.Info("score recalculation finished",
		"processed", res.Processed,
		"updated", res.Updated,
		"fallbacks", res.Fallbacks,
		"failed", res.Failed,
		"duration", time.Since(start),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
