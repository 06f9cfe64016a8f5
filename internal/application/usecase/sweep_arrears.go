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

// servicingStatuses are the statuses whose installments can fall overdue.
var servicingStatuses = []valueobject.LoanStatus{
	valueobject.LoanStatusDisbursed,
	valueobject.LoanStatusActive,
	valueobject.LoanStatusRepaymentActive,
	valueobject.LoanStatusInArrears,
	valueobject.LoanStatusRestructured,
	valueobject.LoanStatusRescheduled,
}

// SweepArrearsUseCase marks installments unpaid past the grace window as
// overdue and moves their loans into arrears.
type SweepArrearsUseCase struct {
	loans     port.LoanRepository
	publisher port.EventPublisher
	reviser   *ScoreReviser
	opts      options
}

// NewSweepArrearsUseCase wires dependencies.
func NewSweepArrearsUseCase(
	loans port.LoanRepository,
	publisher port.EventPublisher,
	reviser *ScoreReviser,
	opts ...Option,
) *SweepArrearsUseCase {
	return &SweepArrearsUseCase{
		loans:     loans,
		publisher: publisher,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute sweeps every servicing loan. A failure on one loan is logged and
// counted; the sweep continues.
func (uc *SweepArrearsUseCase) Execute(ctx context.Context) (dto.SweepArrearsResponse, error) {
	ctx, span := startSpan(ctx, "sweep_arrears")
	resp, err := uc.execute(ctx)
	span.end(err)
	return resp, err
}

func (uc *SweepArrearsUseCase) execute(ctx context.Context) (dto.SweepArrearsResponse, error) {
	now := uc.opts.now()
	loans, err := uc.loans.ListByStatus(ctx, servicingStatuses...)
	if err != nil {
		return dto.SweepArrearsResponse{}, fmt.Errorf("list loans: %w", err)
	}

	var resp dto.SweepArrearsResponse
	for _, l := range loans {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		resp.LoansChecked++
		out, err := uc.sweepOne(ctx, l.ID(), now)
		if err != nil {
			resp.Failed++
			uc.opts.logger.ErrorContext(ctx, "arrears sweep failed", "loan_id", l.ID(), "error", err)
			continue
		}
		resp.NewlyOverdue += len(out.NewlyOverdue)
		if out.MovedToArrears {
			resp.MovedToArrears++
		}
	}

	uc.opts.logger.InfoContext(ctx, "arrears sweep finished",
		"checked", resp.LoansChecked,
		"newly_overdue", resp.NewlyOverdue,
		"moved_to_arrears", resp.MovedToArrears,
		"failed", resp.Failed,
	)
	return resp, nil
}

func (uc *SweepArrearsUseCase) sweepOne(ctx context.Context, loanID string, now time.Time) (model.ArrearsOutcome, error) {
	var (
		loan model.Loan
		out  model.ArrearsOutcome
	)
	err := withVersionRetry(ctx, "loan", uc.opts.attempts, func() error {
		current, err := uc.loans.Load(ctx, loanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		next, o, err := current.SweepArrears(now, uc.opts.grace, systemActor)
		if err != nil {
			return fmt.Errorf("sweep arrears: %w", err)
		}
		out = o
		if len(o.NewlyOverdue) == 0 {
			return nil
		}
		if err := uc.loans.Save(ctx, next, current.Version()); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		countTransitions(current, next)
		loan = next
		return nil
	})
	if err != nil || len(out.NewlyOverdue) == 0 {
		return out, err
	}

	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return out, fmt.Errorf("publish events: %w", err)
	}
	if uc.reviser != nil {
		last := out.NewlyOverdue[len(out.NewlyOverdue)-1]
		if _, err := uc.reviser.Revise(ctx, Revision{
			BorrowerID: loan.BorrowerID(),
			Reason:     valueobject.ReasonRepaymentMissed,
			EventID:    fmt.Sprintf("sweep:%s:%d", loan.ID(), last),
			At:         now,
		}); err != nil {
			return out, fmt.Errorf("revise score: %w", err)
		}
	}
	return out, nil
}
