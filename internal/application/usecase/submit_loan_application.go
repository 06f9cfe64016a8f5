package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// SubmitLoanApplicationUseCase orchestrates intake: the loan is created,
// submitted, scored and priced, then either auto-approved or queued for
// underwriter review.
type SubmitLoanApplicationUseCase struct {
	borrowers port.BorrowerRepository
	loans     port.LoanRepository
	publisher port.EventPublisher
	engine    *service.ScoringEngine
	pricing   *service.PricingEngine
	reviser   *ScoreReviser
	opts      options
}

// NewSubmitLoanApplicationUseCase wires dependencies.
func NewSubmitLoanApplicationUseCase(
	borrowers port.BorrowerRepository,
	loans port.LoanRepository,
	publisher port.EventPublisher,
	engine *service.ScoringEngine,
	pricing *service.PricingEngine,
	reviser *ScoreReviser,
	opts ...Option,
) *SubmitLoanApplicationUseCase {
	return &SubmitLoanApplicationUseCase{
		borrowers: borrowers,
		loans:     loans,
		publisher: publisher,
		engine:    engine,
		pricing:   pricing,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute creates, underwrites, and persists a loan application.
func (uc *SubmitLoanApplicationUseCase) Execute(ctx context.Context, req dto.SubmitLoanApplicationRequest) (dto.LoanResponse, error) {
	ctx, span := startSpan(ctx, "submit_loan_application")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *SubmitLoanApplicationUseCase) execute(
	ctx context.Context,
	req dto.SubmitLoanApplicationRequest,
) (dto.LoanResponse, error) {
	now := uc.opts.now()
	policy := uc.pricing.Policy()

	// 1. Validate and create the draft.
	if err := dto.Validate(req); err != nil {
		return dto.LoanResponse{}, err
	}
	loanReq, err := toLoanRequest(req.Loan)
	if err != nil {
		return dto.LoanResponse{}, err
	}
	profile, err := uc.borrowers.Load(ctx, req.BorrowerID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find borrower: %w", err)
	}
	draft, err := model.NewLoan(profile.ID(), loanReq, policy.LoanBounds, now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("create loan: %w", err)
	}
	loan, err := draft.Apply(valueobject.EventSubmit, req.Actor, now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("submit loan: %w", err)
	}

	// 2. Score and price.
	result, err := uc.engine.Assess(ctx, profile, loanReq)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("assess borrower: %w", err)
	}
	assessment := result.Assessment()
	terms, err := uc.pricing.Price(profile, loanReq, assessment)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("price loan: %w", err)
	}
	if loan, err = loan.AttachAssessment(assessment, terms, now); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("attach assessment: %w", err)
	}

	// 3. Route: auto-approve within the guard, otherwise review.
	if terms.Recommendation == valueobject.RecommendApprove {
		approved, err := loan.AutoApprove(policy.AutoApproval, systemActor, now)
		switch {
		case err == nil:
			loan = approved
		case !errors.Is(err, valueobject.ErrAutoApprovalNotPermitted):
			return dto.LoanResponse{}, fmt.Errorf("auto-approve: %w", err)
		}
	}
	if loan.Status().Equal(valueobject.LoanStatusSubmitted) {
		if loan, err = loan.Apply(valueobject.EventStartReview, systemActor, now); err != nil {
			return dto.LoanResponse{}, fmt.Errorf("start review: %w", err)
		}
	}

	// 4. Persist.
	if err := uc.loans.Save(ctx, loan, 0); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("save loan: %w", err)
	}
	countTransitions(draft, loan)

	// 5. Seed the score record and publish.
	if uc.reviser != nil {
		if _, err := uc.reviser.Initialize(ctx, profile.ID(), result, now); err != nil {
			uc.opts.logger.WarnContext(ctx, "failed to seed score record", "borrower_id", profile.ID(), "error", err)
		}
	}
	events := append(loan.DomainEvents(), event.NewRiskAssessed(
		profile.ID(), loan.ID(), assessment.Score, assessment.Tier.String(),
		assessment.RiskScore, assessment.IsFallback, string(terms.Recommendation), now,
	))
	if err := uc.publisher.Publish(ctx, events...); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.opts.logger.InfoContext(ctx, "loan application submitted",
		"loan_id", loan.ID(),
		"borrower_id", profile.ID(),
		"status", loan.Status().String(),
		"recommendation", terms.Recommendation,
	)
	return toLoanResponse(loan), nil
}
