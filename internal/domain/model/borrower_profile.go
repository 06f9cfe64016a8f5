package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// MobileMoneyStats summarises a borrower's mobile-money behaviour.
type MobileMoneyStats struct {
	AverageBalance decimal.Decimal `json:"average_balance"`
	// TransactionsPerMonth is the average monthly transaction count.
	TransactionsPerMonth int `json:"transactions_per_month"`
	// SavingsPattern scores regular saving behaviour, 0-100.
	SavingsPattern float64 `json:"savings_pattern"`
}

// SocialCapital captures community ties that vouch for a borrower.
type SocialCapital struct {
	GroupMemberships int `json:"group_memberships"`
	References       int `json:"references"`
	CommunityYears   int `json:"community_years"`
	Guarantors       int `json:"guarantors"`
}

// FarmProfile holds agriculture-specific attributes.
type FarmProfile struct {
	Crop            valueobject.CropType     `json:"crop"`
	MarketAccess    valueobject.MarketAccess `json:"market_access"`
	LandAcres       float64                  `json:"land_acres"`
	ExperienceYears int                      `json:"experience_years"`
	Irrigated       bool                     `json:"irrigated"`
}

// TransportProfile holds transport-sector attributes.
type TransportProfile struct {
	VehicleType string `json:"vehicle_type"`
	OwnsVehicle bool   `json:"owns_vehicle"`
}

// BorrowerAttributes is the mutable-by-command data of a borrower profile. It
// doubles as the constructor input and the persistence snapshot.
type BorrowerAttributes struct {
	MonthlyIncome           decimal.Decimal               `json:"monthly_income"`
	TransactionConsistency  *float64                      `json:"transaction_consistency,omitempty"`
	MobileMoney             *MobileMoneyStats             `json:"mobile_money,omitempty"`
	SocialCapital           *SocialCapital                `json:"social_capital,omitempty"`
	InsuranceParticipation  *bool                         `json:"insurance_participation,omitempty"`
	InvestmentParticipation *bool                         `json:"investment_participation,omitempty"`
	Farm                    *FarmProfile                  `json:"farm,omitempty"`
	Transport               *TransportProfile             `json:"transport,omitempty"`
	Sector                  valueobject.Sector            `json:"sector"`
	Occupation              string                        `json:"occupation"`
	Region                  string                        `json:"region"`
	IncomeConsistency       valueobject.IncomeConsistency `json:"income_consistency"`
	PriorPerformance        LoanPerformance               `json:"prior_performance"`
	LoanPerformance         LoanPerformance               `json:"loan_performance"`
	BusinessYears           int                           `json:"business_years"`
}

// ---------------------------------------------------------------------------
// BorrowerProfile aggregate
// ---------------------------------------------------------------------------

// BorrowerProfile is an immutable aggregate. Mutations return a new copy.
type BorrowerProfile struct {
	createdAt time.Time
	updatedAt time.Time
	id        string
	attrs     BorrowerAttributes
	version   int
	active    bool
}

// NewBorrowerProfile validates attributes and creates an active profile.
// PriorPerformance seeds LoanPerformance with off-platform history.
func NewBorrowerProfile(id string, attrs BorrowerAttributes, now time.Time) (BorrowerProfile, error) {
	if id == "" {
		return BorrowerProfile{}, valueobject.NewValidationError("borrower_id", "is required")
	}
	if err := validateAttributes(attrs); err != nil {
		return BorrowerProfile{}, err
	}
	if attrs.IncomeConsistency == "" {
		attrs.IncomeConsistency = valueobject.IncomeUnknown
	}
	attrs.LoanPerformance = attrs.PriorPerformance
	return BorrowerProfile{
		id:        id,
		attrs:     attrs,
		active:    true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructBorrowerProfile rebuilds a profile from persistence.
func ReconstructBorrowerProfile(
	id string, attrs BorrowerAttributes, active bool, version int,
	createdAt, updatedAt time.Time,
) BorrowerProfile {
	return BorrowerProfile{
		id:        id,
		attrs:     attrs,
		active:    active,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func validateAttributes(a BorrowerAttributes) error {
	if _, err := valueobject.ParseSector(string(a.Sector)); err != nil {
		return valueobject.NewValidationError("sector", err.Error())
	}
	if a.MonthlyIncome.IsNegative() {
		return valueobject.NewValidationError("monthly_income", "must not be negative")
	}
	if a.BusinessYears < 0 {
		return valueobject.NewValidationError("business_years", "must not be negative")
	}
	if tc := a.TransactionConsistency; tc != nil && (*tc < 0 || *tc > 100) {
		return valueobject.NewValidationError("transaction_consistency", "must be between 0 and 100")
	}
	if f := a.Farm; f != nil {
		if f.LandAcres < 0 {
			return valueobject.NewValidationError("farm.land_acres", "must not be negative")
		}
		if f.ExperienceYears < 0 {
			return valueobject.NewValidationError("farm.experience_years", "must not be negative")
		}
	}
	if err := a.PriorPerformance.validate(); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Explicit update operations
// ---------------------------------------------------------------------------

// UpdateIncome replaces the income figures.
func (p BorrowerProfile) UpdateIncome(monthly decimal.Decimal, consistency valueobject.IncomeConsistency, now time.Time) (BorrowerProfile, error) {
	if !p.active {
		return p, valueobject.ErrBorrowerInactive
	}
	if monthly.IsNegative() {
		return p, valueobject.NewValidationError("monthly_income", "must not be negative")
	}
	next := p
	next.attrs.MonthlyIncome = monthly
	next.attrs.IncomeConsistency = consistency
	next.updatedAt = now
	return next, nil
}

// UpdateSocialCapital replaces the social capital attributes.
func (p BorrowerProfile) UpdateSocialCapital(sc SocialCapital, now time.Time) (BorrowerProfile, error) {
	if !p.active {
		return p, valueobject.ErrBorrowerInactive
	}
	if sc.GroupMemberships < 0 || sc.References < 0 || sc.CommunityYears < 0 || sc.Guarantors < 0 {
		return p, valueobject.NewValidationError("social_capital", "counts must not be negative")
	}
	next := p
	next.attrs.SocialCapital = &sc
	next.updatedAt = now
	return next, nil
}

// UpdateLoanPerformance combines on-platform loan performance with the
// profile's prior history.
func (p BorrowerProfile) UpdateLoanPerformance(platform LoanPerformance, now time.Time) BorrowerProfile {
	next := p
	next.attrs.LoanPerformance = p.attrs.PriorPerformance.Combine(platform)
	next.updatedAt = now
	return next
}

// Deactivate marks the borrower inactive. Profiles are never deleted.
func (p BorrowerProfile) Deactivate(now time.Time) (BorrowerProfile, error) {
	if !p.active {
		return p, errors.New("borrower already deactivated")
	}
	next := p
	next.active = false
	next.updatedAt = now
	return next, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (p BorrowerProfile) ID() string                                       { return p.id }
func (p BorrowerProfile) Sector() valueobject.Sector                       { return p.attrs.Sector }
func (p BorrowerProfile) Occupation() string                               { return p.attrs.Occupation }
func (p BorrowerProfile) Region() string                                   { return p.attrs.Region }
func (p BorrowerProfile) MonthlyIncome() decimal.Decimal                   { return p.attrs.MonthlyIncome }
func (p BorrowerProfile) IncomeConsistency() valueobject.IncomeConsistency { return p.attrs.IncomeConsistency }
func (p BorrowerProfile) BusinessYears() int                               { return p.attrs.BusinessYears }
func (p BorrowerProfile) TransactionConsistency() *float64                 { return p.attrs.TransactionConsistency }
func (p BorrowerProfile) MobileMoney() *MobileMoneyStats                   { return p.attrs.MobileMoney }
func (p BorrowerProfile) SocialCapital() *SocialCapital                    { return p.attrs.SocialCapital }
func (p BorrowerProfile) InsuranceParticipation() *bool                    { return p.attrs.InsuranceParticipation }
func (p BorrowerProfile) InvestmentParticipation() *bool                   { return p.attrs.InvestmentParticipation }
func (p BorrowerProfile) Farm() *FarmProfile                               { return p.attrs.Farm }
func (p BorrowerProfile) Transport() *TransportProfile                     { return p.attrs.Transport }
func (p BorrowerProfile) LoanPerformance() LoanPerformance                 { return p.attrs.LoanPerformance }
func (p BorrowerProfile) Active() bool                                     { return p.active }
func (p BorrowerProfile) Version() int                                     { return p.version }
func (p BorrowerProfile) CreatedAt() time.Time                             { return p.createdAt }
func (p BorrowerProfile) UpdatedAt() time.Time                             { return p.updatedAt }

// Attributes returns the attribute snapshot for persistence.
func (p BorrowerProfile) Attributes() BorrowerAttributes { return p.attrs }

// WithMobileMoney returns a copy carrying freshly fetched mobile-money stats.
// It is used for a single assessment and is not an update operation.
func (p BorrowerProfile) WithMobileMoney(stats MobileMoneyStats) BorrowerProfile {
	next := p
	next.attrs.MobileMoney = &stats
	return next
}

func (p BorrowerProfile) String() string {
	return fmt.Sprintf("borrower %s (%s)", p.id, p.attrs.Sector)
}
