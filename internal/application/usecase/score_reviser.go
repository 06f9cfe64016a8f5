package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// Revision is one score-affecting event for a borrower.
type Revision struct {
	At                time.Time
	BorrowerID        string
	Reason            valueobject.ScoreReason
	EventID           string
	EarlyInstallments int
}

// ScoreReviser recomputes a borrower's assessment from current data and
// folds it into the score record under optimistic concurrency. It is the
// only path from lifecycle events to the scoring engine.
type ScoreReviser struct {
	borrowers port.BorrowerRepository
	loans     port.LoanRepository
	scores    port.CreditScoreRepository
	publisher port.EventPublisher
	engine    *service.ScoringEngine
	tracker   *service.ScoreTracker
	opts      options
}

// NewScoreReviser wires dependencies.
func NewScoreReviser(
	borrowers port.BorrowerRepository,
	loans port.LoanRepository,
	scores port.CreditScoreRepository,
	publisher port.EventPublisher,
	engine *service.ScoringEngine,
	tracker *service.ScoreTracker,
	opts ...Option,
) *ScoreReviser {
	return &ScoreReviser{
		borrowers: borrowers,
		loans:     loans,
		scores:    scores,
		publisher: publisher,
		engine:    engine,
		tracker:   tracker,
		opts:      buildOptions(opts),
	}
}

// Revise re-scores the borrower and applies the event's delta. Deactivated
// borrowers are skipped. A replayed event ID reports Applied=false.
func (r *ScoreReviser) Revise(ctx context.Context, rev Revision) (service.TrackOutcome, error) {
	// 1. Refresh loan performance from on-platform loans.
	p, err := r.borrowers.Load(ctx, rev.BorrowerID)
	if err != nil {
		return service.TrackOutcome{}, fmt.Errorf("find borrower: %w", err)
	}
	loans, err := r.loans.ListByBorrower(ctx, rev.BorrowerID)
	if err != nil {
		return service.TrackOutcome{}, fmt.Errorf("list loans: %w", err)
	}
	p = p.UpdateLoanPerformance(model.SummarizeLoans(loans, rev.At), rev.At)

	// 2. Recompute.
	result, err := r.engine.Assess(ctx, p, reassessmentRequest(p, loans))
	if errors.Is(err, valueobject.ErrBorrowerInactive) {
		r.opts.logger.InfoContext(ctx, "skipping score revision for inactive borrower",
			"borrower_id", rev.BorrowerID, "reason", rev.Reason)
		return service.TrackOutcome{}, nil
	}
	if err != nil {
		return service.TrackOutcome{}, fmt.Errorf("assess borrower: %w", err)
	}

	// 3. Fold into the record.
	return r.track(ctx, rev.BorrowerID, false, service.TrackRequest{
		Result:  result,
		Reason:  rev.Reason,
		EventID: rev.EventID,
		At:      rev.At,
		Context: service.DeltaContext{
			OnTimeRate:        p.LoanPerformance().OnTimeRate,
			EarlyInstallments: rev.EarlyInstallments,
		},
	})
}

// Initialize seeds a record from a first assessment. Borrowers that already
// have a record are left alone.
func (r *ScoreReviser) Initialize(ctx context.Context, borrowerID string, result service.ScoringResult, at time.Time) (service.TrackOutcome, error) {
	reason := valueobject.ReasonInitial
	if _, ok := result.(service.FallbackAssessment); ok {
		reason = valueobject.ReasonFallback
	}
	return r.track(ctx, borrowerID, true, service.TrackRequest{Result: result, Reason: reason, At: at})
}

func (r *ScoreReviser) track(ctx context.Context, borrowerID string, onlyNew bool, req service.TrackRequest) (service.TrackOutcome, error) {
	var out service.TrackOutcome
	err := withVersionRetry(ctx, "credit_score", r.opts.attempts, func() error {
		out = service.TrackOutcome{}
		rec, err := r.scores.Load(ctx, borrowerID)
		switch {
		case errors.Is(err, valueobject.ErrNotFound):
			if rec, err = model.NewCreditScoreRecord(borrowerID); err != nil {
				return err
			}
		case err != nil:
			return err
		case onlyNew:
			out.Record = rec
			return nil
		}
		out = r.tracker.Track(rec, req)
		if !out.Applied {
			return nil
		}
		return r.scores.Save(ctx, out.Record, rec.Version())
	})
	if err != nil {
		return service.TrackOutcome{}, fmt.Errorf("update score record: %w", err)
	}

	if out.Applied && r.publisher != nil {
		if err := r.publisher.Publish(ctx, out.Event); err != nil {
			r.opts.logger.WarnContext(ctx, "failed to publish score update",
				"borrower_id", borrowerID, "error", err)
		}
	}
	return out, nil
}

// reassessmentRequest picks the request a re-evaluation is scored against:
// the borrower's most recent loan, or a neutral request in their own sector.
func reassessmentRequest(p model.BorrowerProfile, loans []model.Loan) model.LoanRequest {
	var latest *model.Loan
	for i := range loans {
		if latest == nil || loans[i].CreatedAt().After(latest.CreatedAt()) {
			latest = &loans[i]
		}
	}
	if latest != nil {
		return latest.Request()
	}
	req := model.LoanRequest{
		Sector:     p.Sector(),
		TermMonths: 6,
		Purpose:    "re-evaluation",
		Channel:    valueobject.ChannelMobileMoney,
	}
	if farm := p.Farm(); farm != nil {
		req.CropType = farm.Crop
	}
	return req
}
