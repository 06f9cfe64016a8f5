package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// RecommendationThresholds are the two cut points over the 0-100 risk score.
// Risk below Approve recommends APPROVE, above Decline recommends DECLINE.
type RecommendationThresholds struct {
	Approve float64 `toml:"approve"`
	Decline float64 `toml:"decline"`
}

// LendingPolicy holds every tunable pricing and lifecycle parameter.
type LendingPolicy struct {
	BaseRates       map[valueobject.Sector]decimal.Decimal
	Thresholds      map[valueobject.Sector]RecommendationThresholds
	StabilityLimits map[valueobject.StabilityTier]decimal.Decimal

	DefaultThresholds RecommendationThresholds

	MinRate decimal.Decimal
	MaxRate decimal.Decimal

	FarmerLimitPerAcre decimal.Decimal
	FarmerMaxAcres     float64

	ProcessingFeeRate    decimal.Decimal
	MinProcessingFee     decimal.Decimal
	InsurancePremiumRate decimal.Decimal
	// WeatherInsuranceRisk forces insurance for agricultural loans at or above it.
	WeatherInsuranceRisk float64

	LoanBounds   model.LoanBounds
	AutoApproval model.AutoApprovalGuard
	GraceDays    int
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DefaultLendingPolicy returns the compiled-in policy.
func DefaultLendingPolicy() LendingPolicy {
	farmer := RecommendationThresholds{Approve: 35, Decline: 55}
	return LendingPolicy{
		BaseRates: map[valueobject.Sector]decimal.Decimal{
			valueobject.SectorAgriculture: d(12),
			valueobject.SectorArtisan:     d(15),
			valueobject.SectorRetail:      d(16),
			valueobject.SectorServices:    d(16),
			valueobject.SectorTransport:   d(17),
			valueobject.SectorOther:       d(18),
			valueobject.SectorGigWork:     d(20),
		},
		Thresholds: map[valueobject.Sector]RecommendationThresholds{
			valueobject.SectorAgriculture: farmer,
		},
		DefaultThresholds: RecommendationThresholds{Approve: 40, Decline: 60},
		StabilityLimits: map[valueobject.StabilityTier]decimal.Decimal{
			valueobject.StabilityVeryHigh: decimal.NewFromInt(10_000_000),
			valueobject.StabilityHigh:     decimal.NewFromInt(5_000_000),
			valueobject.StabilityMedium:   decimal.NewFromInt(3_000_000),
			valueobject.StabilityLow:      decimal.NewFromInt(1_500_000),
			valueobject.StabilityVariable: decimal.NewFromInt(800_000),
		},
		MinRate:              d(8),
		MaxRate:              d(30),
		FarmerLimitPerAcre:   decimal.NewFromInt(1_500_000),
		FarmerMaxAcres:       10,
		ProcessingFeeRate:    d(0.02),
		MinProcessingFee:     decimal.NewFromInt(5_000),
		InsurancePremiumRate: d(0.015),
		WeatherInsuranceRisk: 60,
		LoanBounds: model.LoanBounds{
			Min: decimal.NewFromInt(50_000),
			Max: decimal.NewFromInt(20_000_000),
		},
		AutoApproval: model.AutoApprovalGuard{
			MinProbability: 0.85,
			Ceiling:        decimal.NewFromInt(1_000_000),
		},
		GraceDays: 7,
	}
}

// Validate checks the policy is internally consistent.
func (p LendingPolicy) Validate() error {
	if p.MinRate.GreaterThan(p.MaxRate) {
		return fmt.Errorf("min rate %s above max rate %s", p.MinRate, p.MaxRate)
	}
	check := func(name string, t RecommendationThresholds) error {
		if t.Approve > t.Decline {
			return fmt.Errorf("%s thresholds: approve cut %.1f above decline cut %.1f", name, t.Approve, t.Decline)
		}
		return nil
	}
	if err := check("default", p.DefaultThresholds); err != nil {
		return err
	}
	for s, t := range p.Thresholds {
		if err := check(string(s), t); err != nil {
			return err
		}
	}
	if p.GraceDays < 0 {
		return fmt.Errorf("grace days must not be negative")
	}
	return nil
}

// ThresholdsFor returns the recommendation cut points for a sector.
func (p LendingPolicy) ThresholdsFor(s valueobject.Sector) RecommendationThresholds {
	if t, ok := p.Thresholds[s]; ok {
		return t
	}
	return p.DefaultThresholds
}

// BaseRate returns the sector base rate, falling back to the "other" row.
func (p LendingPolicy) BaseRate(s valueobject.Sector) decimal.Decimal {
	if r, ok := p.BaseRates[s]; ok {
		return r
	}
	return p.BaseRates[valueobject.SectorOther]
}

// ---------------------------------------------------------------------------
// PricingEngine
// ---------------------------------------------------------------------------

// PricingEngine derives loan terms from an assessment.
type PricingEngine struct {
	policy LendingPolicy
}

// NewPricingEngine creates a pricing engine for a policy.
func NewPricingEngine(policy LendingPolicy) *PricingEngine {
	return &PricingEngine{policy: policy}
}

// Policy returns the engine's lending policy.
func (e *PricingEngine) Policy() LendingPolicy { return e.policy }

// Price computes terms:
//
//	rate = base(sector) + risk(score) - social(socialScore) + weather(weatherRisk) + term(months)
//
// clamped to the policy's rate band. Fallback assessments are never
// recommended for approval without review.
func (e *PricingEngine) Price(p model.BorrowerProfile, req model.LoanRequest, a model.RiskAssessment) (model.LoanTerms, error) {
	if req.TermMonths <= 0 {
		return model.LoanTerms{}, valueobject.ErrInvalidTerm
	}
	sector := EffectiveSector(p, req)
	agricultural := sector.IsAgriculture()

	breakdown := model.RateBreakdown{
		Base:    e.policy.BaseRate(sector),
		Risk:    riskAdjustment(a.Score),
		Social:  socialDiscount(a.SocialScore()),
		Weather: decimal.Zero,
		Term:    termAdjustment(req.TermMonths),
	}
	if agricultural && a.WeatherRisk != nil {
		breakdown.Weather = weatherAdjustment(*a.WeatherRisk)
	}
	rate := breakdown.Base.Add(breakdown.Risk).Sub(breakdown.Social).Add(breakdown.Weather).Add(breakdown.Term)
	rate = decimal.Max(e.policy.MinRate, decimal.Min(e.policy.MaxRate, rate))

	thresholds := e.policy.ThresholdsFor(sector)
	recommendation := recommend(a.RiskScore, thresholds)
	if a.IsFallback && recommendation == valueobject.RecommendApprove {
		recommendation = valueobject.RecommendReview
	}

	insurance := a.RiskScore >= thresholds.Approve
	if agricultural && a.WeatherRisk != nil && *a.WeatherRisk >= e.policy.WeatherInsuranceRisk {
		insurance = true
	}

	tier := valueobject.StabilityTierFor(a.IncomeStability())
	terms := model.LoanTerms{
		AnnualRate:        rate,
		Breakdown:         breakdown,
		Recommendation:    recommendation,
		InsuranceRequired: insurance,
		StabilityTier:     tier,
		MaxAmount:         e.maxAmount(p, sector, tier, a.RiskScore),
		Fees:              e.fees(req.Amount, insurance),
	}
	return terms, nil
}

// maxAmount scales the base limit by (1 - risk/200). Farmers with land
// records are limited by acreage and rounded to 50,000; everyone else by
// stability tier, rounded to 100,000.
func (e *PricingEngine) maxAmount(p model.BorrowerProfile, sector valueobject.Sector, tier valueobject.StabilityTier, risk float64) decimal.Decimal {
	factor := decimal.NewFromFloat(1 - clamp(risk, 0, 100)/200)

	if farm := p.Farm(); sector.IsAgriculture() && farm != nil && farm.LandAcres > 0 {
		acres := farm.LandAcres
		if acres > e.policy.FarmerMaxAcres {
			acres = e.policy.FarmerMaxAcres
		}
		base := e.policy.FarmerLimitPerAcre.Mul(decimal.NewFromFloat(acres))
		return roundTo(base.Mul(factor), 50_000)
	}
	base, ok := e.policy.StabilityLimits[tier]
	if !ok {
		base = e.policy.StabilityLimits[valueobject.StabilityVariable]
	}
	return roundTo(base.Mul(factor), 100_000)
}

func (e *PricingEngine) fees(amount decimal.Decimal, insurance bool) model.Fees {
	processing := decimal.Max(amount.Mul(e.policy.ProcessingFeeRate), e.policy.MinProcessingFee).Round(0)
	premium := decimal.Zero
	if insurance {
		premium = amount.Mul(e.policy.InsurancePremiumRate).Round(0)
	}
	return model.Fees{Processing: processing, InsurancePremium: premium}
}

// roundTo rounds to the nearest multiple of unit.
func roundTo(v decimal.Decimal, unit int64) decimal.Decimal {
	u := decimal.NewFromInt(unit)
	return v.Div(u).Round(0).Mul(u)
}

func riskAdjustment(score int) decimal.Decimal {
	switch {
	case score >= 800:
		return d(-3)
	case score >= 740:
		return d(-2)
	case score >= 670:
		return decimal.Zero
	case score >= 580:
		return d(3)
	default:
		return d(6)
	}
}

func socialDiscount(social float64) decimal.Decimal {
	switch {
	case social >= 80:
		return d(2)
	case social >= 60:
		return d(1)
	default:
		return decimal.Zero
	}
}

func weatherAdjustment(weatherRisk float64) decimal.Decimal {
	switch {
	case weatherRisk >= 70:
		return d(2)
	case weatherRisk >= 50:
		return d(1)
	default:
		return decimal.Zero
	}
}

func termAdjustment(months int) decimal.Decimal {
	switch {
	case months <= 6:
		return decimal.Zero
	case months <= 12:
		return d(0.5)
	case months <= 24:
		return d(1)
	default:
		return d(2)
	}
}

func recommend(risk float64, t RecommendationThresholds) valueobject.Recommendation {
	switch {
	case risk < t.Approve:
		return valueobject.RecommendApprove
	case risk > t.Decline:
		return valueobject.RecommendDecline
	default:
		return valueobject.RecommendReview
	}
}
