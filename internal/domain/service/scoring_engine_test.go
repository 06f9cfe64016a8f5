package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func newEngine(opts ...service.ScoringOption) *service.ScoringEngine {
	opts = append([]service.ScoringOption{service.WithClock(func() time.Time { return testNow })}, opts...)
	return service.NewScoringEngine(nil, quietLogger(), opts...)
}

func full(t *testing.T, r service.ScoringResult) service.FullAssessment {
	t.Helper()
	f, ok := r.(service.FullAssessment)
	require.True(t, ok, "expected a full assessment, got %T", r)
	return f
}

func TestScoringEngine_VendorWithoutHistory(t *testing.T) {
	result, err := newEngine().Assess(context.Background(), vendor(), retailRequest())
	require.NoError(t, err)

	a := full(t, result).Result
	assert.False(t, a.IsFallback)
	// (60*.25 + 45.5*.15 + 83*.15 + 55*.10) / .65 = 61.19
	assert.InDelta(t, 61.19, a.Composite, 0.01)
	assert.Equal(t, 637, a.Score)
	assert.Equal(t, valueobject.RiskTierFair, a.Tier)
	assert.InDelta(t, 38.81, a.RiskScore, 0.01)
	assert.Equal(t, valueobject.RiskLevelMedium, a.Level)
	assert.InDelta(t, 0.61, a.ApprovalProbability, 1e-9)
	assert.Equal(t, valueobject.ConfidenceLow, a.Confidence)
	assert.Empty(t, a.Adjustments)
	assert.Equal(t, model.ModelVersion, a.ModelVersion)
	assert.Equal(t, testNow, a.AssessedAt)

	weightSum := 0.0
	for _, f := range a.Factors {
		weightSum += f.Weight
	}
	assert.InDelta(t, 1, weightSum, 1e-9, "present weights are renormalised")
}

func TestScoringEngine_MissingSignalsAreNotPenalised(t *testing.T) {
	attrs := vendor().Attributes()
	attrs.SocialCapital = &model.SocialCapital{}
	withZeroSocial, err := model.NewBorrowerProfile("v2", attrs, testNow)
	require.NoError(t, err)

	engine := newEngine()
	missing, err := engine.Assess(context.Background(), vendor(), retailRequest())
	require.NoError(t, err)
	zero, err := engine.Assess(context.Background(), withZeroSocial, retailRequest())
	require.NoError(t, err)

	assert.Greater(t, missing.Assessment().Score, zero.Assessment().Score,
		"an absent signal drops out of the denominator instead of counting as zero")
}

func TestScoringEngine_CoffeeFarmerUnderDrought(t *testing.T) {
	weather := &stubWeather{risk: valueobject.ClimateRisk{Drought: 0.7}}
	engine := newEngine(service.WithWeatherProvider(weather))

	result, err := engine.Assess(context.Background(), coffeeFarmer(), farmRequest())
	require.NoError(t, err)

	f := full(t, result)
	require.NotNil(t, f.Agricultural)
	assert.InDelta(t, 32.75, f.Agricultural.Total, 1e-9)
	assert.Equal(t, 1, weather.calls)

	a := f.Result
	assert.GreaterOrEqual(t, a.RiskScore, 30.0)
	assert.LessOrEqual(t, a.RiskScore, 55.0)
	require.NotNil(t, a.WeatherRisk)
	assert.InDelta(t, 35, *a.WeatherRisk, 1e-9)

	terms, err := service.NewPricingEngine(service.DefaultLendingPolicy()).Price(coffeeFarmer(), farmRequest(), a)
	require.NoError(t, err)
	assert.NotEqual(t, valueobject.RecommendDecline, terms.Recommendation)
}

func TestScoringEngine_PerformanceAdjustments(t *testing.T) {
	attrs := vendor().Attributes()
	attrs.PriorPerformance = model.LoanPerformance{
		TotalLoans: 4, CompletedLoans: 3, DefaultedLoans: 1,
		RepaymentRate: ptr(0.97), OnTimeRate: ptr(0.9),
	}
	p, err := model.NewBorrowerProfile("v", attrs, testNow)
	require.NoError(t, err)

	result, err := newEngine().Assess(context.Background(), p, retailRequest())
	require.NoError(t, err)

	points := map[string]int{}
	for _, adj := range result.Assessment().Adjustments {
		points[adj.Reason] = adj.Points
	}
	assert.Equal(t, map[string]int{
		"repayment_rate_above_95pct":    50,
		"defaults_on_record":            -40,
		"more_than_two_completed_loans": 30,
	}, points)
}

func TestScoringEngine_ProviderFailureFallsBack(t *testing.T) {
	attrs := vendor().Attributes()
	attrs.PriorPerformance = model.LoanPerformance{TotalLoans: 3, CompletedLoans: 3, RepaymentRate: ptr(0.99)}
	p, err := model.NewBorrowerProfile("v", attrs, testNow)
	require.NoError(t, err)

	mm := &stubMobileMoney{err: errors.New("connection refused")}
	result, err := newEngine(service.WithMobileMoneyProvider(mm)).Assess(context.Background(), p, retailRequest())
	require.NoError(t, err, "upstream failures never surface as errors")

	fb, ok := result.(service.FallbackAssessment)
	require.True(t, ok, "expected fallback, got %T", result)
	assert.ErrorIs(t, fb.Cause, valueobject.ErrUpstreamUnavailable)

	a := fb.Result
	assert.True(t, a.IsFallback)
	assert.Equal(t, valueobject.ConfidenceLow, a.Confidence)
	assert.Equal(t, 580, a.Score, "500 + 50 repayment bonus + 30 completed bonus")
	assert.Equal(t, valueobject.RiskTierFair, a.Tier)
	_, hasHistory := a.SubScores.Get(model.SignalLoanHistory)
	assert.True(t, hasHistory)
}

func TestScoringEngine_ProviderTimeoutFallsBack(t *testing.T) {
	weather := &stubWeather{delay: time.Second}
	engine := newEngine(service.WithWeatherProvider(weather), service.WithProviderTimeout(20*time.Millisecond))

	start := time.Now()
	result, err := engine.Assess(context.Background(), coffeeFarmer(), farmRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	fb, ok := result.(service.FallbackAssessment)
	require.True(t, ok)
	assert.ErrorIs(t, fb.Cause, context.DeadlineExceeded)
	assert.Equal(t, 500, fb.Result.Score, "no history: fixed base only")
	assert.Equal(t, valueobject.RiskTierPoor, fb.Result.Tier)
}

func TestScoringEngine_VendorFallbackIsMidpoint(t *testing.T) {
	mm := &stubMobileMoney{err: errors.New("connection refused")}
	result, err := newEngine(service.WithMobileMoneyProvider(mm)).Assess(context.Background(), vendor(), retailRequest())
	require.NoError(t, err)

	fb, ok := result.(service.FallbackAssessment)
	require.True(t, ok, "expected fallback, got %T", result)
	assert.Equal(t, 500, fb.Result.Score)
	assert.Equal(t, valueobject.RiskTierPoor, fb.Result.Tier, "500 sits below the fair band at 580")
	assert.Equal(t, valueobject.SectorRetail, fb.Result.Sector)
}

func TestScoringEngine_MixedSectorFarmUsesAgriculturalRules(t *testing.T) {
	attrs := coffeeFarmer().Attributes()
	attrs.Sector = valueobject.SectorRetail
	p, err := model.NewBorrowerProfile("trader-farmer", attrs, testNow)
	require.NoError(t, err)

	weather := &stubWeather{risk: valueobject.ClimateRisk{Drought: 1, Flood: 1, Temperature: 1}}
	result, err := newEngine(service.WithWeatherProvider(weather)).Assess(context.Background(), p, farmRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, weather.calls)

	f := full(t, result)
	require.NotNil(t, f.Agricultural)
	require.NotNil(t, f.Result.WeatherRisk)
	assert.InDelta(t, 100, *f.Result.WeatherRisk, 1e-9)
	assert.Equal(t, valueobject.SectorAgriculture, f.Result.Sector)

	terms, err := service.NewPricingEngine(service.DefaultLendingPolicy()).Price(p, farmRequest(), f.Result)
	require.NoError(t, err)
	assert.True(t, terms.InsuranceRequired)
	assert.Equal(t, "2", terms.Breakdown.Weather.String())
	assert.Equal(t, "12", terms.Breakdown.Base.String())
}

func TestScoringEngine_InvalidClimateDataFallsBack(t *testing.T) {
	weather := &stubWeather{risk: valueobject.ClimateRisk{Drought: 1.4}}
	result, err := newEngine(service.WithWeatherProvider(weather)).Assess(context.Background(), coffeeFarmer(), farmRequest())
	require.NoError(t, err)
	assert.True(t, result.Assessment().IsFallback)
}

func TestScoringEngine_ValidationErrorsNeverFallBack(t *testing.T) {
	attrs := coffeeFarmer().Attributes()
	attrs.Farm = nil
	p, err := model.NewBorrowerProfile("f", attrs, testNow)
	require.NoError(t, err)

	weather := &stubWeather{err: errors.New("down")}
	result, err := newEngine(service.WithWeatherProvider(weather)).Assess(context.Background(), p, farmRequest())
	assert.ErrorIs(t, err, valueobject.ErrValidation)
	assert.Nil(t, result)
	assert.Zero(t, weather.calls, "validation runs before any provider call")
}

func TestScoringEngine_InactiveBorrower(t *testing.T) {
	p, err := vendor().Deactivate(testNow)
	require.NoError(t, err)
	_, err = newEngine().Assess(context.Background(), p, retailRequest())
	assert.ErrorIs(t, err, valueobject.ErrBorrowerInactive)
}

func TestScoringEngine_MobileMoneyFeedsBehavioral(t *testing.T) {
	mm := &stubMobileMoney{stats: model.MobileMoneyStats{
		TransactionsPerMonth: 65, AverageBalance: decimal.NewFromInt(1_200_000), SavingsPattern: 80,
	}}
	result, err := newEngine(service.WithMobileMoneyProvider(mm)).Assess(context.Background(), vendor(), retailRequest())
	require.NoError(t, err)

	v, ok := full(t, result).Result.SubScores.Get(model.SignalBehavioral)
	require.True(t, ok)
	// 0.4*50 + 0.25*100 + 0.2*100 + 0.15*80
	assert.InDelta(t, 77, v, 1e-9)
}

func TestScoringEngine_ScoreAlwaysWithinScale(t *testing.T) {
	engine := newEngine()
	for defaults := 0; defaults <= 10; defaults++ {
		for completed := 0; completed+defaults <= 10; completed++ {
			attrs := vendor().Attributes()
			attrs.PriorPerformance = model.LoanPerformance{
				TotalLoans: completed + defaults, CompletedLoans: completed, DefaultedLoans: defaults,
				RepaymentRate: ptr(1.0),
			}
			p, err := model.NewBorrowerProfile("v", attrs, testNow)
			require.NoError(t, err)

			r, err := engine.Assess(context.Background(), p, retailRequest())
			require.NoError(t, err)
			a := r.Assessment()
			assert.GreaterOrEqual(t, a.Score, 300)
			assert.LessOrEqual(t, a.Score, 850)
			assert.Equal(t, valueobject.TierForScore(a.Score), a.Tier)
		}
	}
}

func TestScoringEngine_ScoreIsBitStable(t *testing.T) {
	engine := newEngine()
	agg := service.Aggregation{Signals: model.SignalSet{
		model.SignalOccupation:      61.3,
		model.SignalLoanHistory:     77.7,
		model.SignalBehavioral:      45.1,
		model.SignalIncomeStability: 83.9,
		model.SignalSocialCapital:   52.3,
		model.SignalInvestment:      30,
		model.SignalInsurance:       100,
		model.SignalSectorRisk:      55.55,
	}}
	first := engine.Score("b", valueobject.SectorRetail, agg, model.LoanPerformance{})
	for i := 0; i < 200; i++ {
		again := engine.Score("b", valueobject.SectorRetail, agg, model.LoanPerformance{})
		require.Equal(t, first.Composite, again.Composite)
		require.Equal(t, first.Score, again.Score)
		require.Equal(t, first.Factors, again.Factors)
	}
}
