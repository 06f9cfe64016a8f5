package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	"github.com/bibbank/microcredit/pkg/observability"
)

// ---------------------------------------------------------------------------
// ScoringResult – sealed sum type
// ---------------------------------------------------------------------------

// ScoringResult is either a FullAssessment or a FallbackAssessment. Callers
// switch on the concrete type.
type ScoringResult interface {
	Assessment() model.RiskAssessment
	sealed()
}

// FullAssessment is produced when every signal source answered.
type FullAssessment struct {
	Agricultural *AgriculturalRisk
	Result       model.RiskAssessment
}

// FallbackAssessment is produced from loan performance alone after a
// provider failed. It always has IsFallback set and LOW confidence.
type FallbackAssessment struct {
	// Cause wraps valueobject.ErrUpstreamUnavailable.
	Cause  error
	Result model.RiskAssessment
}

func (f FullAssessment) Assessment() model.RiskAssessment     { return f.Result }
func (f FallbackAssessment) Assessment() model.RiskAssessment { return f.Result }
func (FullAssessment) sealed()                                {}
func (FallbackAssessment) sealed()                            {}

// ---------------------------------------------------------------------------
// Weights
// ---------------------------------------------------------------------------

// Weights maps each signal to its blend weight.
type Weights map[model.SignalName]float64

// GeneralWeights apply to non-agricultural borrowers.
func GeneralWeights() Weights {
	return Weights{
		model.SignalOccupation:      0.25,
		model.SignalLoanHistory:     0.20,
		model.SignalBehavioral:      0.15,
		model.SignalIncomeStability: 0.15,
		model.SignalSocialCapital:   0.10,
		model.SignalInvestment:      0.05,
		model.SignalInsurance:       0.05,
		model.SignalSectorRisk:      0.10,
	}
}

// AgriculturalWeights weigh crop and climate risk higher.
func AgriculturalWeights() Weights {
	w := GeneralWeights()
	w[model.SignalSectorRisk] = 0.15
	return w
}

const (
	fallbackBaseScore   = 500
	scoreScale          = 5.5
	highRepaymentRate   = 0.95
	highRepaymentBonus  = 50
	defaultPenalty      = -40
	completedLoansBonus = 30
	completedLoansFloor = 2

	highConfidenceSignals   = 7
	mediumConfidenceSignals = 5
)

// ---------------------------------------------------------------------------
// ScoringEngine
// ---------------------------------------------------------------------------

// ScoringEngine turns a borrower profile into a RiskAssessment.
type ScoringEngine struct {
	aggregator  *SignalAggregator
	weather     port.WeatherRiskProvider
	mobileMoney port.MobileMoneyProvider
	logger      *slog.Logger
	now         func() time.Time
	timeout     time.Duration
}

// ScoringOption configures a ScoringEngine.
type ScoringOption func(*ScoringEngine)

// WithWeatherProvider sets the climate data source for agricultural borrowers.
func WithWeatherProvider(p port.WeatherRiskProvider) ScoringOption {
	return func(e *ScoringEngine) { e.weather = p }
}

// WithMobileMoneyProvider sets the mobile-money behaviour source.
func WithMobileMoneyProvider(p port.MobileMoneyProvider) ScoringOption {
	return func(e *ScoringEngine) { e.mobileMoney = p }
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(d time.Duration) ScoringOption {
	return func(e *ScoringEngine) { e.timeout = d }
}

// WithClock overrides the assessment timestamp source.
func WithClock(now func() time.Time) ScoringOption {
	return func(e *ScoringEngine) { e.now = now }
}

// NewScoringEngine creates a scoring engine. Without providers it scores
// from the profile alone.
func NewScoringEngine(aggregator *SignalAggregator, logger *slog.Logger, opts ...ScoringOption) *ScoringEngine {
	if aggregator == nil {
		aggregator = NewSignalAggregator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &ScoringEngine{
		aggregator: aggregator,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		timeout:    3 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess scores a borrower for a loan request. Validation failures are
// returned as errors. Provider failures and timeouts never are: they yield a
// FallbackAssessment instead.
func (e *ScoringEngine) Assess(ctx context.Context, p model.BorrowerProfile, req model.LoanRequest) (ScoringResult, error) {
	if !p.Active() {
		return nil, valueobject.ErrBorrowerInactive
	}
	if err := e.aggregator.Validate(p, req); err != nil {
		return nil, err
	}

	inputs, profile, err := e.fetchSignals(ctx, p, req)
	if err != nil {
		e.logger.WarnContext(ctx, "signal provider unavailable, using fallback scoring",
			"borrower_id", p.ID(), "error", err)
		observability.AssessmentsTotal.WithLabelValues("fallback").Inc()
		fb := e.Fallback(p, fmt.Errorf("%w: %w", valueobject.ErrUpstreamUnavailable, err))
		fb.Result.Sector = EffectiveSector(p, req)
		return fb, nil
	}

	agg, err := e.aggregator.Aggregate(profile, req, inputs)
	if err != nil {
		return nil, err
	}
	result := e.Score(p.ID(), EffectiveSector(p, req), agg, p.LoanPerformance())
	observability.AssessmentsTotal.WithLabelValues("full").Inc()
	return FullAssessment{Result: result, Agricultural: agg.Agricultural}, nil
}

// fetchSignals queries the providers concurrently under the timeout budget.
func (e *ScoringEngine) fetchSignals(ctx context.Context, p model.BorrowerProfile, req model.LoanRequest) (SectorInputs, model.BorrowerProfile, error) {
	season := req.EffectiveSeason()
	inputs := SectorInputs{Season: season}
	profile := p

	g, gctx := errgroup.WithContext(ctx)
	if e.mobileMoney != nil {
		g.Go(func() error {
			stats, err := timed(gctx, e.timeout, "mobile_money", func(c context.Context) (model.MobileMoneyStats, error) {
				return e.mobileMoney.UsageStats(c, p.ID())
			})
			if err != nil {
				return fmt.Errorf("mobile money: %w", err)
			}
			profile = p.WithMobileMoney(stats)
			return nil
		})
	}
	if e.weather != nil && EffectiveSector(p, req).IsAgriculture() {
		g.Go(func() error {
			c, err := timed(gctx, e.timeout, "weather", func(c context.Context) (valueobject.ClimateRisk, error) {
				return e.weather.ClimateRisk(c, p.Region(), season)
			})
			if err != nil {
				return fmt.Errorf("weather: %w", err)
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("weather: %w", err)
			}
			inputs.Climate = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SectorInputs{}, p, err
	}
	return inputs, profile, nil
}

// timed runs one provider call with its own deadline and records latency.
func timed[T any](ctx context.Context, timeout time.Duration, provider string, call func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	v, err := call(cctx)
	result := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result = "timeout"
	case err != nil:
		result = "error"
	}
	observability.ProviderLatency.WithLabelValues(provider, result).Observe(time.Since(start).Seconds())
	return v, err
}

// Score blends an aggregation into an assessment using present-weight
// normalisation: missing signals drop out of the denominator.
func (e *ScoringEngine) Score(borrowerID string, sector valueobject.Sector, agg Aggregation, perf model.LoanPerformance) model.RiskAssessment {
	weights := GeneralWeights()
	if sector.IsAgriculture() {
		weights = AgriculturalWeights()
	}

	var weighted, present float64
	for _, name := range agg.Signals.Names() {
		w := weights[name]
		weighted += w * agg.Signals[name]
		present += w
	}
	composite := 0.0
	if present > 0 {
		composite = weighted / present
	}

	factors := make([]model.FactorAttribution, 0, len(agg.Signals))
	for _, name := range agg.Signals.Names() {
		w := 0.0
		if present > 0 {
			w = weights[name] / present
		}
		v := agg.Signals[name]
		factors = append(factors, model.FactorAttribution{Signal: name, Value: v, Weight: w, Contribution: v * w})
	}

	adjustments := PerformanceAdjustments(perf)
	raw := 300 + composite*scoreScale
	for _, a := range adjustments {
		raw += float64(a.Points)
	}
	score := valueobject.ClampScore(int(math.Round(raw)))
	risk := 100 - composite

	return model.RiskAssessment{
		BorrowerID:          borrowerID,
		Sector:              sector,
		Score:               score,
		Tier:                valueobject.TierForScore(score),
		Composite:           round2(composite),
		RiskScore:           round2(risk),
		Level:               valueobject.LevelForRisk(risk),
		ApprovalProbability: ApprovalProbability(score),
		SubScores:           agg.Signals.Clone(),
		Factors:             factors,
		Adjustments:         adjustments,
		Confidence:          confidenceFor(len(agg.Signals)),
		WeatherRisk:         agg.WeatherRisk,
		AssessedAt:          e.now(),
		ModelVersion:        model.ModelVersion,
	}
}

// Fallback scores from loan performance alone around a fixed base of 500.
func (e *ScoringEngine) Fallback(p model.BorrowerProfile, cause error) FallbackAssessment {
	perf := p.LoanPerformance()
	adjustments := PerformanceAdjustments(perf)
	raw := fallbackBaseScore
	for _, a := range adjustments {
		raw += a.Points
	}
	score := valueobject.ClampScore(raw)
	composite := float64(score-300) / scoreScale
	risk := 100 - composite

	signals := model.SignalSet{}
	if v, ok := LoanHistoryScore(perf); ok {
		signals[model.SignalLoanHistory] = v
	}

	return FallbackAssessment{
		Cause: cause,
		Result: model.RiskAssessment{
			BorrowerID:          p.ID(),
			Sector:              p.Sector(),
			Score:               score,
			Tier:                valueobject.TierForScore(score),
			Composite:           round2(composite),
			RiskScore:           round2(risk),
			Level:               valueobject.LevelForRisk(risk),
			ApprovalProbability: ApprovalProbability(score),
			SubScores:           signals,
			Adjustments:         adjustments,
			Confidence:          valueobject.ConfidenceLow,
			IsFallback:          true,
			AssessedAt:          e.now(),
			ModelVersion:        model.ModelVersion,
		},
	}
}

// PerformanceAdjustments returns the discrete loan-performance bonuses and
// penalties applied on the 300-850 scale.
func PerformanceAdjustments(lp model.LoanPerformance) []model.ScoreAdjustment {
	var out []model.ScoreAdjustment
	if lp.HasHistory() {
		rate := lp.RepaymentRate
		if rate == nil {
			rate = lp.OnTimeRate
		}
		if rate != nil && *rate > highRepaymentRate {
			out = append(out, model.ScoreAdjustment{Reason: "repayment_rate_above_95pct", Points: highRepaymentBonus})
		}
	}
	if lp.DefaultedLoans > 0 {
		out = append(out, model.ScoreAdjustment{Reason: "defaults_on_record", Points: defaultPenalty * lp.DefaultedLoans})
	}
	if lp.CompletedLoans > completedLoansFloor {
		out = append(out, model.ScoreAdjustment{Reason: "more_than_two_completed_loans", Points: completedLoansBonus})
	}
	return out
}

// ApprovalProbability maps a score linearly onto [0, 1], to two decimals.
func ApprovalProbability(score int) float64 {
	return round2(float64(score-valueobject.MinCreditScore) / float64(valueobject.MaxCreditScore-valueobject.MinCreditScore))
}

func confidenceFor(present int) valueobject.Confidence {
	switch {
	case present >= highConfidenceSignals:
		return valueobject.ConfidenceHigh
	case present >= mediumConfidenceSignals:
		return valueobject.ConfidenceMedium
	default:
		return valueobject.ConfidenceLow
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
