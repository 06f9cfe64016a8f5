package valueobject

import "fmt"

// ---------------------------------------------------------------------------
// RiskTier – immutable value object
// ---------------------------------------------------------------------------

// RiskTier is the categorical bucket of a 300-850 credit score.
type RiskTier struct {
	value string
}

const (
	riskTierExcellent = "excellent"
	riskTierVeryGood  = "very_good"
	riskTierGood      = "good"
	riskTierFair      = "fair"
	riskTierPoor      = "poor"
)

var (
	RiskTierExcellent = RiskTier{value: riskTierExcellent}
	RiskTierVeryGood  = RiskTier{value: riskTierVeryGood}
	RiskTierGood      = RiskTier{value: riskTierGood}
	RiskTierFair      = RiskTier{value: riskTierFair}
	RiskTierPoor      = RiskTier{value: riskTierPoor}
)

var validRiskTiers = map[string]RiskTier{
	riskTierExcellent: RiskTierExcellent,
	riskTierVeryGood:  RiskTierVeryGood,
	riskTierGood:      RiskTierGood,
	riskTierFair:      RiskTierFair,
	riskTierPoor:      RiskTierPoor,
}

// Score band lower bounds.
const (
	MinCreditScore = 300
	MaxCreditScore = 850

	excellentFloor = 800
	veryGoodFloor  = 740
	goodFloor      = 670
	fairFloor      = 580
)

// NewRiskTier creates a RiskTier from a raw string.
func NewRiskTier(s string) (RiskTier, error) {
	v, ok := validRiskTiers[s]
	if !ok {
		return RiskTier{}, fmt.Errorf("invalid risk tier: %q", s)
	}
	return v, nil
}

// TierForScore maps a credit score onto exactly one tier.
func TierForScore(score int) RiskTier {
	switch {
	case score >= excellentFloor:
		return RiskTierExcellent
	case score >= veryGoodFloor:
		return RiskTierVeryGood
	case score >= goodFloor:
		return RiskTierGood
	case score >= fairFloor:
		return RiskTierFair
	default:
		return RiskTierPoor
	}
}

// ClampScore bounds a score to the 300-850 scale.
func ClampScore(score int) int {
	if score < MinCreditScore {
		return MinCreditScore
	}
	if score > MaxCreditScore {
		return MaxCreditScore
	}
	return score
}

func (t RiskTier) String() string { return t.value }

// IsZero returns true if the tier has not been initialised.
func (t RiskTier) IsZero() bool { return t.value == "" }

// Equal returns true when both tiers carry the same value.
func (t RiskTier) Equal(other RiskTier) bool { return t.value == other.value }

// ---------------------------------------------------------------------------
// RiskLevel – immutable value object
// ---------------------------------------------------------------------------

// RiskLevel buckets the 0-100 risk score, where higher is worse.
type RiskLevel struct {
	value string
}

const (
	riskLevelLow      = "low"
	riskLevelMedium   = "medium"
	riskLevelHigh     = "high"
	riskLevelVeryHigh = "very_high"
)

var (
	RiskLevelLow      = RiskLevel{value: riskLevelLow}
	RiskLevelMedium   = RiskLevel{value: riskLevelMedium}
	RiskLevelHigh     = RiskLevel{value: riskLevelHigh}
	RiskLevelVeryHigh = RiskLevel{value: riskLevelVeryHigh}
)

var validRiskLevels = map[string]RiskLevel{
	riskLevelLow:      RiskLevelLow,
	riskLevelMedium:   RiskLevelMedium,
	riskLevelHigh:     RiskLevelHigh,
	riskLevelVeryHigh: RiskLevelVeryHigh,
}

// NewRiskLevel creates a RiskLevel from a raw string.
func NewRiskLevel(s string) (RiskLevel, error) {
	v, ok := validRiskLevels[s]
	if !ok {
		return RiskLevel{}, fmt.Errorf("invalid risk level: %q", s)
	}
	return v, nil
}

// LevelForRisk maps a 0-100 risk score onto a level.
func LevelForRisk(risk float64) RiskLevel {
	switch {
	case risk < 25:
		return RiskLevelLow
	case risk < 45:
		return RiskLevelMedium
	case risk < 65:
		return RiskLevelHigh
	default:
		return RiskLevelVeryHigh
	}
}

func (l RiskLevel) String() string { return l.value }

// IsZero returns true if the level has not been initialised.
func (l RiskLevel) IsZero() bool { return l.value == "" }

// Equal returns true when both levels carry the same value.
func (l RiskLevel) Equal(other RiskLevel) bool { return l.value == other.value }

// ---------------------------------------------------------------------------
// Recommendation, Confidence and StabilityTier
// ---------------------------------------------------------------------------

// Recommendation is the pricing engine's lending decision.
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendDecline Recommendation = "DECLINE"
)

// Confidence describes how much signal backs an assessment.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// StabilityTier groups borrowers by income stability for loan limits.
type StabilityTier string

const (
	StabilityVeryHigh StabilityTier = "very_high"
	StabilityHigh     StabilityTier = "high"
	StabilityMedium   StabilityTier = "medium"
	StabilityLow      StabilityTier = "low"
	StabilityVariable StabilityTier = "variable"
)

// StabilityTierFor maps an income stability sub-score onto a tier.
func StabilityTierFor(incomeStability float64) StabilityTier {
	switch {
	case incomeStability >= 85:
		return StabilityVeryHigh
	case incomeStability >= 70:
		return StabilityHigh
	case incomeStability >= 55:
		return StabilityMedium
	case incomeStability >= 40:
		return StabilityLow
	default:
		return StabilityVariable
	}
}
