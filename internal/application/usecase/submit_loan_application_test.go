package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/application/usecase"
	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func newSubmit(h *harness) *usecase.SubmitLoanApplicationUseCase {
	return usecase.NewSubmitLoanApplicationUseCase(h.borrowers, h.loans, h.publisher, h.engine, h.pricing, h.reviser, h.opts...)
}

func servicesLoan(amount int64) dto.LoanRequest {
	return dto.LoanRequest{
		Amount:     decimal.NewFromInt(amount),
		Sector:     "services",
		Purpose:    "sewing machine",
		Channel:    "mobile_money",
		TermMonths: 6,
	}
}

func TestSubmitLoanApplication_AutoApprovesWithinGuard(t *testing.T) {
	h := newHarness(t, testNow, establishedTrader(t))
	uc := newSubmit(h)

	resp, err := uc.Execute(context.Background(), dto.SubmitLoanApplicationRequest{
		BorrowerID: "trader-1",
		Actor:      "agent-7",
		Loan:       servicesLoan(500_000),
	})
	require.NoError(t, err)

	assert.Equal(t, "approved", resp.Status)
	require.NotNil(t, resp.Assessment)
	assert.Equal(t, 850, resp.Assessment.Score)

	stored := h.loans.get(t, resp.ID)
	require.Len(t, stored.Transitions(), 2)
	assert.Equal(t, valueobject.EventAutoApprove, stored.Transitions()[1].Event)
	assert.Contains(t, h.publisher.types(), event.TypeLoanStatusChanged)
	assert.Contains(t, h.publisher.types(), event.TypeRiskAssessed)
}

func TestSubmitLoanApplication_AboveCeilingGoesToReview(t *testing.T) {
	h := newHarness(t, testNow, establishedTrader(t))
	uc := newSubmit(h)

	resp, err := uc.Execute(context.Background(), dto.SubmitLoanApplicationRequest{
		BorrowerID: "trader-1",
		Actor:      "agent-7",
		Loan:       servicesLoan(1_500_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "under_review", resp.Status)
}

func TestSubmitLoanApplication_LowProbabilityGoesToReview(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	uc := newSubmit(h)

	resp, err := uc.Execute(context.Background(), dto.SubmitLoanApplicationRequest{
		BorrowerID: "vendor-1",
		Actor:      "agent-7",
		Loan:       retailLoan(500_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "under_review", resp.Status)

	rec, err := h.scores.Load(context.Background(), "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, 637, rec.Score())
}

func TestSubmitLoanApplication_MissingActor(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	uc := newSubmit(h)

	_, err := uc.Execute(context.Background(), dto.SubmitLoanApplicationRequest{
		BorrowerID: "vendor-1",
		Loan:       retailLoan(500_000),
	})
	var verr *valueobject.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "actor", verr.Field)
	assert.Empty(t, h.loans.rows)
}
