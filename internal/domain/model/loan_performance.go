package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// LoanPerformance is a borrower's repayment track record. Rates are 0-1 and
// nil when unknown.
type LoanPerformance struct {
	RepaymentRate   *float64 `json:"repayment_rate,omitempty"`
	OnTimeRate      *float64 `json:"on_time_rate,omitempty"`
	TotalLoans      int      `json:"total_loans"`
	CompletedLoans  int      `json:"completed_loans"`
	DefaultedLoans  int      `json:"defaulted_loans"`
	EarlyRepayments int      `json:"early_repayments"`
}

// HasHistory reports whether the borrower has ever held a loan.
func (lp LoanPerformance) HasHistory() bool { return lp.TotalLoans > 0 }

func (lp LoanPerformance) validate() error {
	if lp.TotalLoans < 0 || lp.CompletedLoans < 0 || lp.DefaultedLoans < 0 || lp.EarlyRepayments < 0 {
		return valueobject.NewValidationError("loan_performance", "counts must not be negative")
	}
	if lp.CompletedLoans+lp.DefaultedLoans > lp.TotalLoans {
		return valueobject.NewValidationError("loan_performance", "completed plus defaulted exceeds total loans")
	}
	for _, r := range []*float64{lp.RepaymentRate, lp.OnTimeRate} {
		if r != nil && (*r < 0 || *r > 1) {
			return valueobject.NewValidationError("loan_performance", "rates must be between 0 and 1")
		}
	}
	return nil
}

// Combine merges two track records. Counts add up; rates are averaged
// weighted by each side's loan count.
func (lp LoanPerformance) Combine(other LoanPerformance) LoanPerformance {
	return LoanPerformance{
		TotalLoans:      lp.TotalLoans + other.TotalLoans,
		CompletedLoans:  lp.CompletedLoans + other.CompletedLoans,
		DefaultedLoans:  lp.DefaultedLoans + other.DefaultedLoans,
		EarlyRepayments: lp.EarlyRepayments + other.EarlyRepayments,
		RepaymentRate:   weightedRate(lp.RepaymentRate, lp.TotalLoans, other.RepaymentRate, other.TotalLoans),
		OnTimeRate:      weightedRate(lp.OnTimeRate, lp.TotalLoans, other.OnTimeRate, other.TotalLoans),
	}
}

func weightedRate(a *float64, wa int, b *float64, wb int) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	}
	if wa+wb == 0 {
		v := (*a + *b) / 2
		return &v
	}
	v := (*a*float64(wa) + *b*float64(wb)) / float64(wa+wb)
	return &v
}

// SummarizeLoans derives a track record from on-platform loans. Only loans
// that reached disbursement count. An installment counts once it is due or
// settled.
func SummarizeLoans(loans []Loan, now time.Time) LoanPerformance {
	var (
		perf             LoanPerformance
		due, onTime      int
		totalDue, repaid decimal.Decimal
	)
	for _, l := range loans {
		if l.Schedule() == nil {
			continue
		}
		perf.TotalLoans++
		switch {
		case l.Status().Equal(valueobject.LoanStatusCompleted):
			perf.CompletedLoans++
		case l.Status().Equal(valueobject.LoanStatusDefaulted), l.Status().Equal(valueobject.LoanStatusWrittenOff):
			perf.DefaultedLoans++
		}
		for _, inst := range l.Schedule().Installments {
			if inst.Status.Equal(valueobject.InstallmentWaived) {
				continue
			}
			settled := inst.Status.Equal(valueobject.InstallmentPaid)
			if !settled && inst.DueDate.After(now) {
				continue
			}
			due++
			totalDue = totalDue.Add(inst.AmountDue)
			repaid = repaid.Add(inst.AmountPaid)
			if settled && inst.PaidOnTime() {
				onTime++
			}
			if settled && inst.PaidEarly() {
				perf.EarlyRepayments++
			}
		}
	}
	if due > 0 {
		ot := float64(onTime) / float64(due)
		perf.OnTimeRate = &ot
		rr, _ := repaid.Div(totalDue).Float64()
		if rr > 1 {
			rr = 1
		}
		perf.RepaymentRate = &rr
	}
	return perf
}
