package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Installment is one scheduled repayment. Only payment recording mutates it.
type Installment struct {
	DueDate    time.Time                     `json:"due_date"`
	PaidAt     *time.Time                    `json:"paid_at,omitempty"`
	Principal  decimal.Decimal               `json:"principal"`
	Interest   decimal.Decimal               `json:"interest"`
	AmountDue  decimal.Decimal               `json:"amount_due"`
	AmountPaid decimal.Decimal               `json:"amount_paid"`
	Method     string                        `json:"method,omitempty"`
	Reference  string                        `json:"reference,omitempty"`
	Status     valueobject.InstallmentStatus `json:"status"`
	Sequence   int                           `json:"sequence"`
}

// Outstanding returns what remains owed on the installment.
func (i Installment) Outstanding() decimal.Decimal {
	if i.Status.IsSettled() {
		return decimal.Zero
	}
	return i.AmountDue.Sub(i.AmountPaid)
}

// PaidOnTime reports whether the installment was settled by its due date.
func (i Installment) PaidOnTime() bool {
	return i.PaidAt != nil && !i.PaidAt.After(endOfDay(i.DueDate))
}

// PaidEarly reports whether the installment was settled before its due day.
func (i Installment) PaidEarly() bool {
	return i.PaidAt != nil && i.PaidAt.Before(startOfDay(i.DueDate))
}

// IsPastGrace reports whether the installment is unsettled beyond the grace window.
func (i Installment) IsPastGrace(now time.Time, grace time.Duration) bool {
	return !i.Status.IsSettled() && now.After(endOfDay(i.DueDate).Add(grace))
}

// RepaymentSchedule is the ordered installment list of a disbursed loan.
type RepaymentSchedule struct {
	Principal     decimal.Decimal `json:"principal"`
	AnnualRate    decimal.Decimal `json:"annual_rate"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalDue      decimal.Decimal `json:"total_due"`
	Installments  []Installment   `json:"installments"`
	HarvestLinked bool            `json:"harvest_linked"`
}

// ScheduleParams are the inputs to GenerateSchedule.
type ScheduleParams struct {
	DisbursedAt time.Time
	// HarvestDate switches to a single harvest-linked bullet installment.
	HarvestDate *time.Time
	Principal   decimal.Decimal
	// AnnualRate is a percentage, e.g. 15 for 15%.
	AnnualRate decimal.Decimal
	TermMonths int
}

// GenerateSchedule builds the repayment schedule.
//
// The standard path amortises monthly at r = annual/12:
//
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// Installment k is due round(k*payment) - round((k-1)*payment), so every
// installment is within one currency unit of the exact payment and the sum
// equals round(n*payment). A zero rate splits P evenly.
func GenerateSchedule(p ScheduleParams) (RepaymentSchedule, error) {
	if p.TermMonths <= 0 {
		return RepaymentSchedule{}, valueobject.ErrInvalidTerm
	}
	if !p.Principal.IsPositive() {
		return RepaymentSchedule{}, valueobject.NewValidationError("principal", "must be positive")
	}
	if p.AnnualRate.IsNegative() {
		return RepaymentSchedule{}, valueobject.NewValidationError("annual_rate", "must not be negative")
	}
	if p.HarvestDate != nil {
		return harvestLinkedSchedule(p)
	}
	return amortizedSchedule(p), nil
}

func amortizedSchedule(p ScheduleParams) RepaymentSchedule {
	n := p.TermMonths
	r := p.AnnualRate.Div(hundred).Div(twelve)
	payment := exactPayment(p.Principal, r, n)

	installments := make([]Installment, 0, n)
	remaining := p.Principal
	prevCumulative := decimal.Zero
	totalDue := decimal.Zero

	for k := 1; k <= n; k++ {
		cumulative := payment.Mul(decimal.NewFromInt(int64(k))).Round(0)
		amount := cumulative.Sub(prevCumulative)
		prevCumulative = cumulative

		var interest, principal decimal.Decimal
		if k == n {
			principal = remaining
			interest = amount.Sub(principal)
		} else {
			interest = remaining.Mul(r).Round(0)
			principal = amount.Sub(interest)
		}
		remaining = remaining.Sub(principal)
		totalDue = totalDue.Add(amount)

		installments = append(installments, Installment{
			Sequence:   k,
			DueDate:    p.DisbursedAt.AddDate(0, k, 0),
			Principal:  principal,
			Interest:   interest,
			AmountDue:  amount,
			AmountPaid: decimal.Zero,
			Status:     valueobject.InstallmentPending,
		})
	}

	return RepaymentSchedule{
		Principal:     p.Principal,
		AnnualRate:    p.AnnualRate,
		TotalInterest: totalDue.Sub(p.Principal),
		TotalDue:      totalDue,
		Installments:  installments,
	}
}

// exactPayment is the unrounded level payment.
func exactPayment(principal, r decimal.Decimal, n int) decimal.Decimal {
	if r.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}
	factor := decimal.NewFromInt(1).Add(r).Pow(decimal.NewFromInt(int64(n)))
	return principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
}

// ExactPayment exposes the unrounded level payment for previews and tests.
func ExactPayment(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	return exactPayment(principal, annualRate.Div(hundred).Div(twelve), termMonths)
}

func harvestLinkedSchedule(p ScheduleParams) (RepaymentSchedule, error) {
	harvest := *p.HarvestDate
	if harvest.Before(p.DisbursedAt) {
		return RepaymentSchedule{}, valueobject.ErrInvalidHarvestDate
	}
	// Simple interest over the full term.
	interest := p.Principal.
		Mul(p.AnnualRate).Div(hundred).
		Mul(decimal.NewFromInt(int64(p.TermMonths))).Div(twelve).
		Round(0)
	total := p.Principal.Add(interest)

	return RepaymentSchedule{
		Principal:     p.Principal,
		AnnualRate:    p.AnnualRate,
		TotalInterest: interest,
		TotalDue:      total,
		HarvestLinked: true,
		Installments: []Installment{{
			Sequence:   1,
			DueDate:    harvest,
			Principal:  p.Principal,
			Interest:   interest,
			AmountDue:  total,
			AmountPaid: decimal.Zero,
			Status:     valueobject.InstallmentPending,
		}},
	}, nil
}

// Outstanding sums what remains owed across all installments.
func (s RepaymentSchedule) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s.Installments {
		total = total.Add(inst.Outstanding())
	}
	return total
}

// TotalPaid sums payments received.
func (s RepaymentSchedule) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s.Installments {
		total = total.Add(inst.AmountPaid)
	}
	return total
}

// NextDue returns the first unsettled installment, if any.
func (s RepaymentSchedule) NextDue() (Installment, bool) {
	for _, inst := range s.Installments {
		if !inst.Status.IsSettled() {
			return inst, true
		}
	}
	return Installment{}, false
}

func (s RepaymentSchedule) clone() RepaymentSchedule {
	out := s
	out.Installments = make([]Installment, len(s.Installments))
	copy(out.Installments, s.Installments)
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
