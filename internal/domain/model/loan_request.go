package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// LoanRequest is the borrower's ask. It is a value object; amendments
// replace it wholesale on the owning Loan.
type LoanRequest struct {
	Amount              decimal.Decimal                 `json:"amount"`
	ExpectedHarvestDate *time.Time                      `json:"expected_harvest_date,omitempty"`
	Sector              valueobject.Sector              `json:"sector"`
	Purpose             string                          `json:"purpose"`
	CropType            valueobject.CropType            `json:"crop_type,omitempty"`
	Season              valueobject.Season              `json:"season,omitempty"`
	Channel             valueobject.DisbursementChannel `json:"channel"`
	TermMonths          int                             `json:"term_months"`
}

// LoanBounds are the platform-wide principal limits.
type LoanBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Validate checks the request against the platform bounds.
func (r LoanRequest) Validate(bounds LoanBounds) error {
	if !r.Amount.IsPositive() {
		return valueobject.NewValidationError("amount", "must be positive")
	}
	if !bounds.Min.IsZero() && r.Amount.LessThan(bounds.Min) {
		return valueobject.NewValidationError("amount", "below minimum loan "+bounds.Min.String())
	}
	if !bounds.Max.IsZero() && r.Amount.GreaterThan(bounds.Max) {
		return valueobject.NewValidationError("amount", "above maximum loan "+bounds.Max.String())
	}
	if r.TermMonths <= 0 {
		return valueobject.NewValidationError("term_months", "must be positive")
	}
	if _, err := valueobject.ParseSector(string(r.Sector)); err != nil {
		return valueobject.NewValidationError("sector", err.Error())
	}
	if _, err := valueobject.ParseDisbursementChannel(string(r.Channel)); err != nil {
		return valueobject.NewValidationError("channel", err.Error())
	}
	if strings.TrimSpace(r.Purpose) == "" {
		return valueobject.NewValidationError("purpose", "is required")
	}
	return nil
}

// IsHarvestLinked reports whether repayment is a single bullet due at harvest.
func (r LoanRequest) IsHarvestLinked() bool {
	return r.Sector.IsAgriculture() && r.ExpectedHarvestDate != nil
}

// EffectiveSeason returns the season, defaulting to unknown.
func (r LoanRequest) EffectiveSeason() valueobject.Season {
	if r.Season == "" {
		return valueobject.SeasonUnknown
	}
	return r.Season
}
