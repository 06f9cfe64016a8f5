package service_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func assessment(score int, risk float64, subs model.SignalSet) model.RiskAssessment {
	return model.RiskAssessment{Score: score, RiskScore: risk, SubScores: subs}
}

func TestPricingEngine_VendorTerms(t *testing.T) {
	engine := service.NewPricingEngine(service.DefaultLendingPolicy())
	a := assessment(637, 38.81, model.SignalSet{model.SignalIncomeStability: 83})

	terms, err := engine.Price(vendor(), retailRequest(), a)
	require.NoError(t, err)

	// retail 16 + fair 3 + no social + no weather + short term 0
	assert.Equal(t, "19", terms.AnnualRate.String())
	assert.Equal(t, "16", terms.Breakdown.Base.String())
	assert.Equal(t, "3", terms.Breakdown.Risk.String())
	assert.Equal(t, valueobject.RecommendApprove, terms.Recommendation)
	assert.False(t, terms.InsuranceRequired)
	assert.Equal(t, valueobject.StabilityHigh, terms.StabilityTier)
	// 5,000,000 * (1 - 38.81/200) = 4,029,750 -> 4,000,000
	assert.Equal(t, "4000000", terms.MaxAmount.String())
	assert.Equal(t, "20000", terms.Fees.Processing.String())
	assert.True(t, terms.Fees.InsurancePremium.IsZero())
}

func TestPricingEngine_RateBand(t *testing.T) {
	engine := service.NewPricingEngine(service.DefaultLendingPolicy())

	low := assessment(820, 10, model.SignalSet{model.SignalSocialCapital: 85, model.SignalIncomeStability: 90})
	low.WeatherRisk = ptr(20.0)
	terms, err := engine.Price(coffeeFarmer(), farmRequest(), low)
	require.NoError(t, err)
	assert.Equal(t, "8", terms.AnnualRate.String(), "12 - 3 - 2 clamps up to 8")

	high := assessment(400, 80, nil)
	req := retailRequest()
	req.Sector = valueobject.SectorGigWork
	req.TermMonths = 36
	terms, err = engine.Price(vendor(), req, high)
	require.NoError(t, err)
	assert.Equal(t, "28", terms.AnnualRate.String(), "gig 20 + poor 6 + long term 2")
	assert.Equal(t, valueobject.RecommendDecline, terms.Recommendation)
	assert.True(t, terms.InsuranceRequired)
	assert.Equal(t, "15000", terms.Fees.InsurancePremium.String())
}

func TestPricingEngine_FarmerThresholdsAndLimits(t *testing.T) {
	engine := service.NewPricingEngine(service.DefaultLendingPolicy())

	// Risk 38 approves under general thresholds but needs review for farmers.
	a := assessment(634, 38, model.SignalSet{model.SignalIncomeStability: 62})
	a.WeatherRisk = ptr(65.0)

	terms, err := engine.Price(coffeeFarmer(), farmRequest(), a)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RecommendReview, terms.Recommendation)
	assert.True(t, terms.InsuranceRequired)
	assert.Equal(t, "1", terms.Breakdown.Weather.String())
	// 3 acres * 1,500,000 * (1 - 38/200) = 3,645,000 -> 3,650,000
	assert.Equal(t, "3650000", terms.MaxAmount.String())

	general, err := engine.Price(vendor(), retailRequest(), a)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RecommendApprove, general.Recommendation)
}

func TestPricingEngine_ThresholdsConfigurablePerSector(t *testing.T) {
	policy := service.DefaultLendingPolicy()
	policy.Thresholds[valueobject.SectorGigWork] = service.RecommendationThresholds{Approve: 20, Decline: 30}
	engine := service.NewPricingEngine(policy)

	req := retailRequest()
	req.Sector = valueobject.SectorGigWork
	terms, err := engine.Price(vendor(), req, assessment(700, 35, nil))
	require.NoError(t, err)
	assert.Equal(t, valueobject.RecommendDecline, terms.Recommendation)
}

func TestPricingEngine_FallbackNeverAutoApproves(t *testing.T) {
	engine := service.NewPricingEngine(service.DefaultLendingPolicy())
	a := assessment(780, 10, nil)
	a.IsFallback = true

	terms, err := engine.Price(vendor(), retailRequest(), a)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RecommendReview, terms.Recommendation)
}

func TestPricingEngine_TermAdjustment(t *testing.T) {
	engine := service.NewPricingEngine(service.DefaultLendingPolicy())
	a := assessment(700, 30, nil)
	cases := map[int]string{6: "0", 7: "0.5", 12: "0.5", 24: "1", 25: "2"}
	for months, want := range cases {
		req := retailRequest()
		req.TermMonths = months
		terms, err := engine.Price(vendor(), req, a)
		require.NoError(t, err)
		assert.Equal(t, want, terms.Breakdown.Term.String(), "%d months", months)
	}

	req := retailRequest()
	req.TermMonths = 0
	_, err := engine.Price(vendor(), req, a)
	assert.ErrorIs(t, err, valueobject.ErrInvalidTerm)
}

func TestLendingPolicy_Validate(t *testing.T) {
	require.NoError(t, service.DefaultLendingPolicy().Validate())

	p := service.DefaultLendingPolicy()
	p.MinRate = decimal.NewFromInt(40)
	assert.Error(t, p.Validate())

	p = service.DefaultLendingPolicy()
	p.Thresholds[valueobject.SectorAgriculture] = service.RecommendationThresholds{Approve: 60, Decline: 40}
	assert.Error(t, p.Validate())
}
