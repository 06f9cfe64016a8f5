package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/infrastructure/scheduler"
)

type mockSweeper struct {
	calls atomic.Int32
	err   error
}

func (m *mockSweeper) Execute(context.Context) (dto.SweepArrearsResponse, error) {
	m.calls.Add(1)
	return dto.SweepArrearsResponse{LoansChecked: 3}, m.err
}

type mockRecalculator struct {
	calls   atomic.Int32
	workers atomic.Int32
}

func (m *mockRecalculator) Execute(_ context.Context, req dto.RecalculateScoresRequest) (dto.RecalculateScoresResponse, error) {
	m.calls.Add(1)
	m.workers.Store(int32(req.Workers))
	return dto.RecalculateScoresResponse{Processed: 1}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func config() scheduler.Config {
	return scheduler.Config{SweepSpec: "15 1 * * *", RecalculateSpec: "30 2 * * *", Workers: 6}
}

func TestNew_RegistersBothJobs(t *testing.T) {
	sweep, recalc := &mockSweeper{}, &mockRecalculator{}
	s, err := scheduler.New(config(), sweep, recalc, quietLogger())
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 2)

	entries[0].Job.Run()
	entries[1].Job.Run()

	assert.Equal(t, int32(1), sweep.calls.Load())
	assert.Equal(t, int32(1), recalc.calls.Load())
	assert.Equal(t, int32(6), recalc.workers.Load())
}

func TestNew_RejectsBadSpec(t *testing.T) {
	cfg := config()
	cfg.RecalculateSpec = "every night"

	_, err := scheduler.New(cfg, &mockSweeper{}, &mockRecalculator{}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recalculate schedule")
}

func TestJobFailureDoesNotPanic(t *testing.T) {
	sweep := &mockSweeper{err: errors.New("db down")}
	s, err := scheduler.New(config(), sweep, &mockRecalculator{}, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.Entries()[0].Job.Run() })
	assert.Equal(t, int32(1), sweep.calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := scheduler.New(config(), &mockSweeper{}, &mockRecalculator{}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	for _, e := range s.Entries() {
		assert.False(t, e.Next.IsZero())
	}
	s.Stop()
}
