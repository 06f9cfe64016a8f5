package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// GetCreditScoreUseCase retrieves a borrower's score record.
type GetCreditScoreUseCase struct {
	scores port.CreditScoreRepository
}

// NewGetCreditScoreUseCase wires dependencies.
func NewGetCreditScoreUseCase(scores port.CreditScoreRepository) *GetCreditScoreUseCase {
	return &GetCreditScoreUseCase{scores: scores}
}

// Execute fetches the record by borrower ID.
func (uc *GetCreditScoreUseCase) Execute(ctx context.Context, borrowerID string) (dto.CreditScoreResponse, error) {
	if borrowerID == "" {
		return dto.CreditScoreResponse{}, valueobject.NewValidationError("borrower_id", "is required")
	}
	rec, err := uc.scores.Load(ctx, borrowerID)
	if err != nil {
		return dto.CreditScoreResponse{}, fmt.Errorf("find credit score: %w", err)
	}
	return toCreditScoreResponse(rec), nil
}
