package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/service"
)

// AssessBorrowerUseCase scores a borrower and prices an indicative loan
// without creating one.
type AssessBorrowerUseCase struct {
	borrowers port.BorrowerRepository
	publisher port.EventPublisher
	engine    *service.ScoringEngine
	pricing   *service.PricingEngine
	reviser   *ScoreReviser
	opts      options
}

// NewAssessBorrowerUseCase wires dependencies.
func NewAssessBorrowerUseCase(
	borrowers port.BorrowerRepository,
	publisher port.EventPublisher,
	engine *service.ScoringEngine,
	pricing *service.PricingEngine,
	reviser *ScoreReviser,
	opts ...Option,
) *AssessBorrowerUseCase {
	return &AssessBorrowerUseCase{
		borrowers: borrowers,
		publisher: publisher,
		engine:    engine,
		pricing:   pricing,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute runs the assessment. The first assessment of a borrower seeds
// their credit score record.
func (uc *AssessBorrowerUseCase) Execute(ctx context.Context, req dto.AssessBorrowerRequest) (dto.AssessBorrowerResponse, error) {
	ctx, span := startSpan(ctx, "assess_borrower")
	resp, err := uc.execute(ctx, req)
	span.end(err)
	return resp, err
}

func (uc *AssessBorrowerUseCase) execute(
	ctx context.Context,
	req dto.AssessBorrowerRequest,
) (dto.AssessBorrowerResponse, error) {
	now := uc.opts.now()

	// 1. Validate input.
	if err := dto.Validate(req); err != nil {
		return dto.AssessBorrowerResponse{}, err
	}
	loanReq, err := toLoanRequest(req.Loan)
	if err != nil {
		return dto.AssessBorrowerResponse{}, err
	}
	if err := loanReq.Validate(uc.pricing.Policy().LoanBounds); err != nil {
		return dto.AssessBorrowerResponse{}, err
	}

	// 2. Retrieve the borrower.
	profile, err := uc.borrowers.Load(ctx, req.BorrowerID)
	if err != nil {
		return dto.AssessBorrowerResponse{}, fmt.Errorf("find borrower: %w", err)
	}

	// 3. Score and price.
	result, err := uc.engine.Assess(ctx, profile, loanReq)
	if err != nil {
		return dto.AssessBorrowerResponse{}, fmt.Errorf("assess borrower: %w", err)
	}
	assessment := result.Assessment()
	terms, err := uc.pricing.Price(profile, loanReq, assessment)
	if err != nil {
		return dto.AssessBorrowerResponse{}, fmt.Errorf("price loan: %w", err)
	}

	// 4. Seed the score record.
	if uc.reviser != nil {
		if _, err := uc.reviser.Initialize(ctx, profile.ID(), result, now); err != nil {
			return dto.AssessBorrowerResponse{}, fmt.Errorf("record score: %w", err)
		}
	}

	// 5. Publish.
	evt := event.NewRiskAssessed(profile.ID(), "", assessment.Score, assessment.Tier.String(),
		assessment.RiskScore, assessment.IsFallback, string(terms.Recommendation), now)
	if err := uc.publisher.Publish(ctx, evt); err != nil {
		return dto.AssessBorrowerResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.opts.logger.InfoContext(ctx, "borrower assessed",
		"borrower_id", profile.ID(),
		"score", assessment.Score,
		"tier", assessment.Tier.String(),
		"fallback", assessment.IsFallback,
		"recommendation", terms.Recommendation,
	)
	return dto.AssessBorrowerResponse{
		Assessment: toAssessmentResponse(assessment),
		Terms:      toTermsResponse(terms),
	}, nil
}
