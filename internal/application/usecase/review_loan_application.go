package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// ReviewLoanApplicationUseCase records an underwriter's approve or reject
// decision on a loan under review.
type ReviewLoanApplicationUseCase struct {
	loans     port.LoanRepository
	publisher port.EventPublisher
	opts      options
}

// NewReviewLoanApplicationUseCase wires dependencies.
func NewReviewLoanApplicationUseCase(
	loans port.LoanRepository,
	publisher port.EventPublisher,
	opts ...Option,
) *ReviewLoanApplicationUseCase {
	return &ReviewLoanApplicationUseCase{
		loans:     loans,
		publisher: publisher,
		opts:      buildOptions(opts),
	}
}

// Execute applies the decision.
func (uc *ReviewLoanApplicationUseCase) Execute(ctx context.Context, req dto.ReviewLoanApplicationRequest) (dto.LoanResponse, error) {
	ctx, span := startSpan(ctx, "review_loan_application")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *ReviewLoanApplicationUseCase) execute(
	ctx context.Context,
	req dto.ReviewLoanApplicationRequest,
) (dto.LoanResponse, error) {
	if err := dto.Validate(req); err != nil {
		return dto.LoanResponse{}, err
	}
	evt := valueobject.EventApprove
	if req.Decision == "reject" {
		evt = valueobject.EventReject
	}

	var loan model.Loan
	err := withVersionRetry(ctx, "loan", uc.opts.attempts, func() error {
		current, err := uc.loans.Load(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		next, err := current.Apply(evt, req.Reviewer, uc.opts.now())
		if err != nil {
			return fmt.Errorf("apply decision: %w", err)
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

	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("publish events: %w", err)
	}
	uc.opts.logger.InfoContext(ctx, "loan reviewed",
		"loan_id", loan.ID(), "decision", req.Decision, "reviewer", req.Reviewer)
	return toLoanResponse(loan), nil
}
