package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/application/usecase"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// underReview returns a stored loan awaiting an underwriter.
func underReview(t *testing.T, loans *memLoans) model.Loan {
	t.Helper()
	req := model.LoanRequest{
		Amount:     decimalOf(400_000),
		TermMonths: 4,
		Sector:     valueobject.SectorRetail,
		Purpose:    "stock",
		Channel:    valueobject.ChannelMobileMoney,
	}
	loan, err := model.NewLoan("vendor-1", req, policy().LoanBounds, testNow)
	require.NoError(t, err)
	for _, evt := range []valueobject.LoanEventType{valueobject.EventSubmit, valueobject.EventStartReview} {
		loan, err = loan.Apply(evt, "agent", testNow)
		require.NoError(t, err)
	}
	require.NoError(t, loans.Save(context.Background(), loan, 0))
	return loans.get(t, loan.ID())
}

func TestReviewLoanApplication(t *testing.T) {
	tests := []struct {
		name     string
		decision string
		want     string
	}{
		{"approve", "approve", "approved"},
		{"reject", "reject", "rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loans := newMemLoans()
			pub := &mockPublisher{}
			loan := underReview(t, loans)
			uc := usecase.NewReviewLoanApplicationUseCase(loans, pub, clockAt(testNow), usecase.WithLogger(quietLogger()))

			resp, err := uc.Execute(context.Background(), dto.ReviewLoanApplicationRequest{
				LoanID:   loan.ID(),
				Decision: tt.decision,
				Reviewer: "officer-2",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Status)

			stored := loans.get(t, loan.ID())
			assert.Equal(t, tt.want, stored.Status().String())
			assert.Equal(t, 2, stored.Version())
			last := stored.Transitions()[len(stored.Transitions())-1]
			assert.Equal(t, "officer-2", last.Actor)
			assert.Len(t, pub.types(), 1)
		})
	}
}

func TestReviewLoanApplication_InvalidTransition(t *testing.T) {
	loans := newMemLoans()
	loan := underReview(t, loans)
	uc := usecase.NewReviewLoanApplicationUseCase(loans, &mockPublisher{}, clockAt(testNow), usecase.WithLogger(quietLogger()))
	req := dto.ReviewLoanApplicationRequest{LoanID: loan.ID(), Decision: "approve", Reviewer: "officer-2"}

	_, err := uc.Execute(context.Background(), req)
	require.NoError(t, err)
	_, err = uc.Execute(context.Background(), req)
	require.ErrorIs(t, err, valueobject.ErrInvalidTransition)
}

func TestReviewLoanApplication_RetriesVersionConflicts(t *testing.T) {
	loans := newMemLoans()
	loan := underReview(t, loans)
	loans.conflicts = 2
	uc := usecase.NewReviewLoanApplicationUseCase(loans, &mockPublisher{}, clockAt(testNow), usecase.WithLogger(quietLogger()))

	resp, err := uc.Execute(context.Background(), dto.ReviewLoanApplicationRequest{
		LoanID: loan.ID(), Decision: "approve", Reviewer: "officer-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)
}

func TestReviewLoanApplication_GivesUpAfterAttempts(t *testing.T) {
	loans := newMemLoans()
	loan := underReview(t, loans)
	loans.conflicts = usecase.DefaultSaveAttempts
	uc := usecase.NewReviewLoanApplicationUseCase(loans, &mockPublisher{}, clockAt(testNow), usecase.WithLogger(quietLogger()))

	_, err := uc.Execute(context.Background(), dto.ReviewLoanApplicationRequest{
		LoanID: loan.ID(), Decision: "approve", Reviewer: "officer-2",
	})
	require.ErrorIs(t, err, valueobject.ErrVersionConflict)
	assert.Equal(t, "under_review", loans.get(t, loan.ID()).Status().String())
}

func TestReviewLoanApplication_UnknownDecision(t *testing.T) {
	uc := usecase.NewReviewLoanApplicationUseCase(newMemLoans(), &mockPublisher{})

	_, err := uc.Execute(context.Background(), dto.ReviewLoanApplicationRequest{
		LoanID: "loan-1", Decision: "maybe", Reviewer: "officer-2",
	})
	require.ErrorIs(t, err, valueobject.ErrValidation)
}
