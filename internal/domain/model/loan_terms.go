package model

import (
	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// RateBreakdown itemises the annual interest rate, in percentage points.
type RateBreakdown struct {
	Base    decimal.Decimal `json:"base"`
	Risk    decimal.Decimal `json:"risk"`
	Social  decimal.Decimal `json:"social"`
	Weather decimal.Decimal `json:"weather"`
	Term    decimal.Decimal `json:"term"`
}

// Fees are the one-off charges on disbursement.
type Fees struct {
	Processing       decimal.Decimal `json:"processing"`
	InsurancePremium decimal.Decimal `json:"insurance_premium"`
}

// Total returns the sum of all fees.
func (f Fees) Total() decimal.Decimal { return f.Processing.Add(f.InsurancePremium) }

// LoanTerms is derived from a RiskAssessment. It is recomputed whenever the
// assessment changes before disbursement.
type LoanTerms struct {
	// AnnualRate is a percentage, e.g. 15 for 15%.
	AnnualRate        decimal.Decimal            `json:"annual_rate"`
	MaxAmount         decimal.Decimal            `json:"max_amount"`
	Breakdown         RateBreakdown              `json:"breakdown"`
	Fees              Fees                       `json:"fees"`
	Recommendation    valueobject.Recommendation `json:"recommendation"`
	StabilityTier     valueobject.StabilityTier  `json:"stability_tier"`
	InsuranceRequired bool                       `json:"insurance_required"`
}

// ApprovedAmount caps the requested amount at the maximum, when one is set.
func (t LoanTerms) ApprovedAmount(requested decimal.Decimal) decimal.Decimal {
	if t.MaxAmount.IsPositive() && requested.GreaterThan(t.MaxAmount) {
		return t.MaxAmount
	}
	return requested
}
