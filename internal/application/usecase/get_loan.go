package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// GetLoanUseCase retrieves a single loan by ID.
type GetLoanUseCase struct {
	loans port.LoanRepository
}

// NewGetLoanUseCase wires dependencies.
func NewGetLoanUseCase(loans port.LoanRepository) *GetLoanUseCase {
	return &GetLoanUseCase{loans: loans}
}

// Execute retrieves the loan.
func (uc *GetLoanUseCase) Execute(ctx context.Context, loanID string) (dto.LoanResponse, error) {
	if loanID == "" {
		return dto.LoanResponse{}, valueobject.NewValidationError("loan_id", "is required")
	}
	loan, err := uc.loans.Load(ctx, loanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return toLoanResponse(loan), nil
}
