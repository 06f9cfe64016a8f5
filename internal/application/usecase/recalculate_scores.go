package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// RecalculateScoresUseCase re-evaluates many borrowers on a bounded worker
// pool. Each borrower's update is independently atomic.
type RecalculateScoresUseCase struct {
	borrowers port.BorrowerRepository
	reviser   *ScoreReviser
	opts      options
}

// NewRecalculateScoresUseCase wires dependencies.
func NewRecalculateScoresUseCase(
	borrowers port.BorrowerRepository,
	reviser *ScoreReviser,
	opts ...Option,
) *RecalculateScoresUseCase {
	return &RecalculateScoresUseCase{
		borrowers: borrowers,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute re-scores the requested borrowers, or every active borrower. The
// event ID is per borrower and day, so rerunning the same day is a no-op.
func (uc *RecalculateScoresUseCase) Execute(ctx context.Context, req dto.RecalculateScoresRequest) (dto.RecalculateScoresResponse, error) {
	ctx, span := startSpan(ctx, "recalculate_scores")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *RecalculateScoresUseCase) execute(
	ctx context.Context,
	req dto.RecalculateScoresRequest,
) (dto.RecalculateScoresResponse, error) {
	if err := dto.Validate(req); err != nil {
		return dto.RecalculateScoresResponse{}, err
	}
	ids := req.BorrowerIDs
	if len(ids) == 0 {
		var err error
		if ids, err = uc.borrowers.ListActiveIDs(ctx); err != nil {
			return dto.RecalculateScoresResponse{}, fmt.Errorf("list borrowers: %w", err)
		}
	}
	workers := uc.opts.workers
	if req.Workers > 0 {
		workers = req.Workers
	}

	now := uc.opts.now()
	day := now.Format("2006-01-02")
	var processed, updated, fallbacks, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			processed.Add(1)
			out, err := uc.reviser.Revise(ctx, Revision{
				BorrowerID: id,
				Reason:     valueobject.ReasonPeriodicReevaluation,
				EventID:    "reeval:" + id + ":" + day,
				At:         now,
			})
			if err != nil {
				failed.Add(1)
				uc.opts.logger.WarnContext(ctx, "re-evaluation failed", "borrower_id", id, "error", err)
				return nil
			}
			if out.Applied {
				updated.Add(1)
				if out.Record.IsFallback() {
					fallbacks.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := dto.RecalculateScoresResponse{
		Processed: int(processed.Load()),
		Updated:   int(updated.Load()),
		Fallbacks: int(fallbacks.Load()),
		Failed:    int(failed.Load()),
	}
	uc.opts.logger.InfoContext(ctx, "score recalculation finished",
		"processed", resp.Processed, "updated", resp.Updated,
		"fallbacks", resp.Fallbacks, "failed", resp.Failed)
	if err := ctx.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}
