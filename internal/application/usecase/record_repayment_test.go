package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/application/usecase"
	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func repaymentFor(loanID string, amount int64, eventID string) dto.RecordRepaymentRequest {
	return dto.RecordRepaymentRequest{
		LoanID:  loanID,
		Amount:  decimalOf(amount),
		PaidAt:  testNow,
		Method:  "mobile_money",
		Actor:   "cashier",
		EventID: eventID,
	}
}

func TestRecordRepayment_StartsRepayment(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	loan := disbursedLoan(t, "vendor-1", 300_000, 3, testNow.AddDate(0, 0, -10))
	require.NoError(t, h.loans.Save(context.Background(), loan, 0))
	uc := usecase.NewRecordRepaymentUseCase(h.loans, h.publisher, h.reviser, h.opts...)

	resp, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 100_000, "pay-1"))
	require.NoError(t, err)

	assert.Equal(t, "repayment_active", resp.LoanStatus)
	assert.True(t, resp.Outstanding.Equal(decimalOf(200_000)))
	assert.Equal(t, 1, resp.Settled)
	assert.Equal(t, 1, resp.EarlyInstallments)
	assert.Contains(t, h.publisher.types(), event.TypeRepaymentRecorded)

	rec, err := h.scores.Load(context.Background(), "vendor-1")
	require.NoError(t, err)
	require.Len(t, rec.History(), 1)
	entry := rec.History()[0]
	assert.Equal(t, valueobject.ReasonRepayment, entry.Reason)
	// Perfect on-time record plus one early installment.
	assert.Equal(t, 40, entry.Delta)
}

func TestRecordRepayment_DuplicateEventID(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	loan := disbursedLoan(t, "vendor-1", 300_000, 3, testNow.AddDate(0, 0, -10))
	require.NoError(t, h.loans.Save(context.Background(), loan, 0))
	uc := usecase.NewRecordRepaymentUseCase(h.loans, h.publisher, h.reviser, h.opts...)

	_, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 100_000, "pay-1"))
	require.NoError(t, err)
	resp, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 100_000, "pay-1"))
	require.NoError(t, err)

	assert.True(t, resp.Duplicate)
	assert.True(t, resp.Outstanding.Equal(decimalOf(200_000)))
	assert.True(t, h.loans.get(t, loan.ID()).Outstanding().Equal(decimalOf(200_000)))
}

func TestRecordRepayment_FinalPaymentCompletesLoan(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	loan := disbursedLoan(t, "vendor-1", 300_000, 3, testNow.AddDate(0, 0, -10))
	require.NoError(t, h.loans.Save(context.Background(), loan, 0))
	uc := usecase.NewRecordRepaymentUseCase(h.loans, h.publisher, h.reviser, h.opts...)

	_, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 100_000, "pay-1"))
	require.NoError(t, err)
	resp, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 200_000, "pay-2"))
	require.NoError(t, err)

	assert.Equal(t, "completed", resp.LoanStatus)
	assert.True(t, resp.Outstanding.IsZero())

	rec, err := h.scores.Load(context.Background(), "vendor-1")
	require.NoError(t, err)
	history := rec.History()
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.ReasonCompleted, history[1].Reason)
	assert.Equal(t, 25, history[1].Delta)
}

func TestRecordRepayment_Overpayment(t *testing.T) {
	h := newHarness(t, testNow, vendor(t))
	loan := disbursedLoan(t, "vendor-1", 300_000, 3, testNow.AddDate(0, 0, -10))
	require.NoError(t, h.loans.Save(context.Background(), loan, 0))
	uc := usecase.NewRecordRepaymentUseCase(h.loans, h.publisher, h.reviser, h.opts...)

	_, err := uc.Execute(context.Background(), repaymentFor(loan.ID(), 400_000, ""))
	require.ErrorIs(t, err, valueobject.ErrOverpayment)
}
