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

// DisburseLoanUseCase generates the repayment schedule for an approved loan
// and moves it to disbursed.
type DisburseLoanUseCase struct {
	loans     port.LoanRepository
	publisher port.EventPublisher
	reviser   *ScoreReviser
	opts      options
}

// NewDisburseLoanUseCase wires dependencies.
func NewDisburseLoanUseCase(
	loans port.LoanRepository,
	publisher port.EventPublisher,
	reviser *ScoreReviser,
	opts ...Option,
) *DisburseLoanUseCase {
	return &DisburseLoanUseCase{
		loans:     loans,
		publisher: publisher,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute disburses the loan.
func (uc *DisburseLoanUseCase) Execute(ctx context.Context, req dto.DisburseLoanRequest) (dto.LoanResponse, error) {
	ctx, span := startSpan(ctx, "disburse_loan")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *DisburseLoanUseCase) execute(
	ctx context.Context,
	req dto.DisburseLoanRequest,
) (dto.LoanResponse, error) {
	if err := dto.Validate(req); err != nil {
		return dto.LoanResponse{}, err
	}
	now := uc.opts.now()

	var loan model.Loan
	err := withVersionRetry(ctx, "loan", uc.opts.attempts, func() error {
		// 1. Retrieve the loan.
		current, err := uc.loans.Load(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}

		// 2. Generate the schedule from the priced terms.
		schedule, err := scheduleFor(current, now)
		if err != nil {
			return fmt.Errorf("generate schedule: %w", err)
		}

		// 3. Transition and persist.
		next, err := current.Disburse(schedule, req.Actor, now)
		if err != nil {
			return fmt.Errorf("disburse loan: %w", err)
		}
		if err := uc.loans.Save(ctx, next, current.Version()); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		countTransitions(current, next)
		loan = next
		return nil
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	// 4. Publish events.
	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("publish events: %w", err)
	}

	// 5. Revise the borrower's score.
	if uc.reviser != nil {
		if _, err := uc.reviser.Revise(ctx, Revision{
			BorrowerID: loan.BorrowerID(),
			Reason:     valueobject.ReasonDisbursed,
			EventID:    "disburse:" + loan.ID(),
			At:         now,
		}); err != nil {
			uc.opts.logger.WarnContext(ctx, "score revision failed", "loan_id", loan.ID(), "error", err)
		}
	}

	uc.opts.logger.InfoContext(ctx, "loan disbursed",
		"loan_id", loan.ID(), "amount", loan.ApprovedAmount().String(), "channel", loan.Request().Channel)
	return toLoanResponse(loan), nil
}

// scheduleFor builds the schedule for an approved loan from its terms.
func scheduleFor(l model.Loan, disbursedAt time.Time) (model.RepaymentSchedule, error) {
	terms := l.Terms()
	if terms == nil {
		return model.RepaymentSchedule{}, fmt.Errorf("%w: loan %s has no priced terms", valueobject.ErrInvalidTransition, l.ID())
	}
	req := l.Request()
	params := model.ScheduleParams{
		DisbursedAt: disbursedAt,
		Principal:   l.ApprovedAmount(),
		AnnualRate:  terms.AnnualRate,
		TermMonths:  req.TermMonths,
	}
	if req.IsHarvestLinked() {
		params.HarvestDate = req.ExpectedHarvestDate
	}
	return model.GenerateSchedule(params)
}
