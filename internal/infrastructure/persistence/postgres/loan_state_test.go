package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func disbursedLoan(t *testing.T, at time.Time) model.Loan {
	t.Helper()
	req := model.LoanRequest{
		Amount:     decimal.NewFromInt(300_000),
		TermMonths: 3,
		Sector:     valueobject.SectorRetail,
		Purpose:    "stock",
		Channel:    valueobject.ChannelMobileMoney,
	}
	bounds := model.LoanBounds{Min: decimal.NewFromInt(50_000), Max: decimal.NewFromInt(20_000_000)}
	loan, err := model.NewLoan("vendor-1", req, bounds, at)
	require.NoError(t, err)
	loan, err = loan.Apply(valueobject.EventSubmit, "borrower", at)
	require.NoError(t, err)
	loan, err = loan.AttachAssessment(
		model.RiskAssessment{BorrowerID: "vendor-1", Score: 637, Tier: valueobject.RiskTierFair, ApprovalProbability: 0.61},
		model.LoanTerms{AnnualRate: decimal.NewFromInt(24), Recommendation: valueobject.RecommendReview},
		at,
	)
	require.NoError(t, err)
	for _, evt := range []valueobject.LoanEventType{valueobject.EventStartReview, valueobject.EventApprove} {
		loan, err = loan.Apply(evt, "officer", at)
		require.NoError(t, err)
	}
	sched, err := model.GenerateSchedule(model.ScheduleParams{
		Principal:   loan.ApprovedAmount(),
		AnnualRate:  decimal.NewFromInt(24),
		TermMonths:  3,
		DisbursedAt: at,
	})
	require.NoError(t, err)
	loan, err = loan.Disburse(sched, "officer", at)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func TestLoanState_RoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	loan := disbursedLoan(t, at)
	want := loan.Snapshot()

	raw, err := encodeLoanState(want)
	require.NoError(t, err)

	got := model.LoanSnapshot{ID: want.ID, Status: want.Status}
	require.NoError(t, decodeLoanState(raw, &got))

	assert.True(t, want.ApprovedAmount.Equal(got.ApprovedAmount))
	assert.True(t, want.Request.Amount.Equal(got.Request.Amount))
	assert.Equal(t, want.Request.Sector, got.Request.Sector)
	require.NotNil(t, got.Assessment)
	assert.Equal(t, valueobject.RiskTierFair, got.Assessment.Tier)
	require.NotNil(t, got.Terms)
	assert.Equal(t, valueobject.RecommendReview, got.Terms.Recommendation)
	require.NotNil(t, got.DisbursedAt)
	assert.True(t, at.Equal(*got.DisbursedAt))

	require.NotNil(t, got.Schedule)
	require.Len(t, got.Schedule.Installments, 3)
	for i, inst := range got.Schedule.Installments {
		orig := want.Schedule.Installments[i]
		assert.Equal(t, orig.Status, inst.Status)
		assert.True(t, orig.AmountDue.Equal(inst.AmountDue), "installment %d", i+1)
		assert.True(t, orig.DueDate.Equal(inst.DueDate))
	}

	restored := model.ReconstructLoan(got)
	assert.True(t, loan.Outstanding().Equal(restored.Outstanding()))
}

func TestLoanState_RejectsGarbage(t *testing.T) {
	var snap model.LoanSnapshot
	assert.Error(t, decodeLoanState([]byte(`{"request":`), &snap))
}
