package model

import (
	"sort"
	"time"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// ModelVersion tags every assessment produced by the rule engine.
const ModelVersion = "microcredit-rules/v1"

// SignalName identifies one normalised sub-score.
type SignalName string

const (
	SignalOccupation      SignalName = "occupation"
	SignalLoanHistory     SignalName = "loan_history"
	SignalBehavioral      SignalName = "behavioral"
	SignalIncomeStability SignalName = "income_stability"
	SignalSocialCapital   SignalName = "social_capital"
	SignalInvestment      SignalName = "investment"
	SignalInsurance       SignalName = "insurance"
	SignalSectorRisk      SignalName = "sector_risk"
)

// SignalSet maps sub-score names to values in [0, 100], higher is better.
// An absent key means the signal is unavailable.
type SignalSet map[SignalName]float64

// Get returns the sub-score and whether it is present.
func (s SignalSet) Get(name SignalName) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Names returns the present signal names in sorted order.
func (s SignalSet) Names() []SignalName {
	out := make([]SignalName, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (s SignalSet) Clone() SignalSet {
	out := make(SignalSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FactorAttribution explains one signal's share of the composite.
type FactorAttribution struct {
	Signal SignalName `json:"signal"`
	// Value is the 0-100 sub-score.
	Value float64 `json:"value"`
	// Weight is the normalised weight after present-weight rescaling.
	Weight float64 `json:"weight"`
	// Contribution is Value*Weight, in composite points.
	Contribution float64 `json:"contribution"`
}

// ScoreAdjustment is a discrete loan-performance bonus or penalty.
type ScoreAdjustment struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// RiskAssessment is an immutable scoring outcome. Prior assessments are kept
// alongside a loan, never mutated.
type RiskAssessment struct {
	AssessedAt time.Time   `json:"assessed_at"`
	SubScores  SignalSet   `json:"sub_scores"`
	// WeatherRisk is the 0-100 climate risk for agricultural borrowers.
	WeatherRisk         *float64                `json:"weather_risk,omitempty"`
	BorrowerID          string                  `json:"borrower_id"`
	ModelVersion        string                  `json:"model_version"`
	Confidence          valueobject.Confidence  `json:"confidence"`
	Tier                valueobject.RiskTier    `json:"tier"`
	Level               valueobject.RiskLevel   `json:"level"`
	Sector              valueobject.Sector      `json:"sector"`
	Factors             []FactorAttribution     `json:"factors"`
	Adjustments         []ScoreAdjustment       `json:"adjustments,omitempty"`
	Composite           float64                 `json:"composite"`
	RiskScore           float64                 `json:"risk_score"`
	ApprovalProbability float64                 `json:"approval_probability"`
	Score               int                     `json:"score"`
	IsFallback          bool                    `json:"is_fallback"`
}

// IncomeStability returns the income stability sub-score, or the neutral 50
// when absent.
func (a RiskAssessment) IncomeStability() float64 {
	if v, ok := a.SubScores.Get(SignalIncomeStability); ok {
		return v
	}
	return 50
}

// SocialScore returns the social capital sub-score, or 0 when absent.
func (a RiskAssessment) SocialScore() float64 {
	v, _ := a.SubScores.Get(SignalSocialCapital)
	return v
}

// FactorBreakdown flattens factor contributions for score history snapshots.
func (a RiskAssessment) FactorBreakdown() map[string]float64 {
	out := make(map[string]float64, len(a.SubScores))
	for k, v := range a.SubScores {
		out[string(k)] = v
	}
	return out
}
