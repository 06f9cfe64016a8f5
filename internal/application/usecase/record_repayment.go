package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// RecordRepaymentUseCase allocates a received payment to a loan's schedule.
type RecordRepaymentUseCase struct {
	loans     port.LoanRepository
	publisher port.EventPublisher
	reviser   *ScoreReviser
	opts      options
}

// NewRecordRepaymentUseCase wires dependencies.
func NewRecordRepaymentUseCase(
	loans port.LoanRepository,
	publisher port.EventPublisher,
	reviser *ScoreReviser,
	opts ...Option,
) *RecordRepaymentUseCase {
	return &RecordRepaymentUseCase{
		loans:     loans,
		publisher: publisher,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute records the payment. A payment carrying an already applied event
// ID is acknowledged without being allocated again.
func (uc *RecordRepaymentUseCase) Execute(ctx context.Context, req dto.RecordRepaymentRequest) (dto.RepaymentResponse, error) {
	ctx, span := startSpan(ctx, "record_repayment")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *RecordRepaymentUseCase) execute(
	ctx context.Context,
	req dto.RecordRepaymentRequest,
) (dto.RepaymentResponse, error) {
	if err := dto.Validate(req); err != nil {
		return dto.RepaymentResponse{}, err
	}
	payment := model.Payment{
		Amount:    req.Amount,
		PaidAt:    req.PaidAt.UTC(),
		Method:    req.Method,
		Reference: req.Reference,
		Actor:     req.Actor,
	}

	var (
		loan      model.Loan
		outcome   model.RepaymentOutcome
		duplicate bool
	)
	err := withVersionRetry(ctx, "loan", uc.opts.attempts, func() error {
		current, err := uc.loans.Load(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if req.EventID != "" && current.HasApplied(req.EventID) {
			loan, duplicate = current, true
			return nil
		}
		next, out, err := current.RecordRepayment(payment)
		if err != nil {
			return fmt.Errorf("record repayment: %w", err)
		}
		next = next.MarkApplied(req.EventID)
		if err := uc.loans.Save(ctx, next, current.Version()); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		countTransitions(current, next)
		loan, outcome, duplicate = next, out, false
		return nil
	})
	if err != nil {
		return dto.RepaymentResponse{}, err
	}
	if duplicate {
		return dto.RepaymentResponse{
			LoanID:      loan.ID(),
			LoanStatus:  loan.Status().String(),
			Outstanding: loan.Outstanding(),
			Duplicate:   true,
		}, nil
	}

	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("publish events: %w", err)
	}
	if uc.reviser != nil {
		if _, err := uc.reviser.Revise(ctx, repaymentRevision(loan, outcome, req.EventID, payment.PaidAt)); err != nil {
			uc.opts.logger.WarnContext(ctx, "score revision failed", "loan_id", loan.ID(), "error", err)
		}
	}

	uc.opts.logger.InfoContext(ctx, "repayment recorded",
		"loan_id", loan.ID(),
		"amount", req.Amount.String(),
		"outstanding", outcome.Outstanding.String(),
		"status", loan.Status().String(),
	)
	return dto.RepaymentResponse{
		LoanID:            loan.ID(),
		LoanStatus:        loan.Status().String(),
		Allocated:         outcome.Allocated,
		Outstanding:       outcome.Outstanding,
		Settled:           outcome.Settled,
		EarlyInstallments: outcome.EarlyInstallments,
	}, nil
}

// repaymentRevision derives the score event for a recorded payment.
func repaymentRevision(l model.Loan, out model.RepaymentOutcome, eventID string, at time.Time) Revision {
	reason := valueobject.ReasonRepayment
	if out.Completed {
		reason = valueobject.ReasonCompleted
	}
	return Revision{
		BorrowerID:        l.BorrowerID(),
		Reason:            reason,
		EventID:           eventID,
		EarlyInstallments: out.EarlyInstallments,
		At:                at,
	}
}
