package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// Neutral defaults for missing inputs.
const (
	defaultTransactionConsistency = 50.0
	defaultSavingsPattern         = 50.0
	// lowestActivityTier is the lowest non-zero tier for frequency and balance.
	lowestActivityTier = 40.0
	unknownIncomeLevel = 50.0
	neutralOnTimeRate  = 0.5

	participating    = 100.0
	notParticipating = 30.0
)

var incomeConsistencyScore = map[valueobject.IncomeConsistency]float64{
	valueobject.IncomeStable:    85,
	valueobject.IncomeSeasonal:  60,
	valueobject.IncomeIrregular: 40,
	valueobject.IncomeUnknown:   50,
}

// Aggregation is the aggregator's output: the signal set plus the sector
// detail the pricing engine needs.
type Aggregation struct {
	Signals      model.SignalSet
	Agricultural *AgriculturalRisk
	// WeatherRisk is the 0-100 climate risk for agricultural borrowers.
	WeatherRisk *float64
}

// SignalAggregator normalises a borrower profile into bounded sub-scores.
// Missing fields degrade toward neutral defaults; nothing but a structurally
// invalid request is an error.
type SignalAggregator struct {
	strategies SectorStrategies
}

// NewSignalAggregator creates an aggregator over the given sector strategies.
// A nil map selects DefaultSectorStrategies.
func NewSignalAggregator(strategies SectorStrategies) *SignalAggregator {
	if strategies == nil {
		strategies = DefaultSectorStrategies()
	}
	return &SignalAggregator{strategies: strategies}
}

// EffectiveSector is the single sector a request is scored and priced under.
// Agriculture wins when either the borrower or the loan is agricultural;
// otherwise the loan's sector applies, then the borrower's.
func EffectiveSector(p model.BorrowerProfile, req model.LoanRequest) valueobject.Sector {
	switch {
	case p.Sector().IsAgriculture(), req.Sector.IsAgriculture():
		return valueobject.SectorAgriculture
	case req.Sector != "":
		return req.Sector
	default:
		return p.Sector()
	}
}

// Validate rejects input that cannot be scored. Agricultural borrowers need a
// farm profile and a crop type.
func (a *SignalAggregator) Validate(p model.BorrowerProfile, req model.LoanRequest) error {
	if !EffectiveSector(p, req).IsAgriculture() {
		return nil
	}
	farm := p.Farm()
	if farm == nil {
		return valueobject.NewValidationError("farm", "required for agricultural borrowers")
	}
	if farm.Crop == "" && req.CropType == "" {
		return valueobject.NewValidationError("crop_type", "required for agricultural borrowers")
	}
	return nil
}

// Aggregate computes the signal set. It is a pure function of its inputs.
func (a *SignalAggregator) Aggregate(p model.BorrowerProfile, req model.LoanRequest, in SectorInputs) (Aggregation, error) {
	if err := a.Validate(p, req); err != nil {
		return Aggregation{}, err
	}
	p = withRequestCrop(p, req)

	strategy := a.strategies.For(EffectiveSector(p, req))
	signals := model.SignalSet{
		model.SignalOccupation:      strategy.OccupationScore(p),
		model.SignalBehavioral:      BehavioralScore(p.TransactionConsistency(), p.MobileMoney()),
		model.SignalIncomeStability: IncomeStabilityScore(p.IncomeConsistency(), p.MonthlyIncome()),
	}
	if v, ok := LoanHistoryScore(p.LoanPerformance()); ok {
		signals[model.SignalLoanHistory] = v
	}
	if sc := p.SocialCapital(); sc != nil {
		signals[model.SignalSocialCapital] = SocialCapitalScore(*sc)
	}
	if v := p.InvestmentParticipation(); v != nil {
		signals[model.SignalInvestment] = participationScore(*v)
	}
	if v := p.InsuranceParticipation(); v != nil {
		signals[model.SignalInsurance] = participationScore(*v)
	}

	sr := strategy.SectorRisk(p, in)
	signals[model.SignalSectorRisk] = clamp(100-sr.Risk, 0, 100)

	out := Aggregation{Signals: signals, Agricultural: sr.Agricultural}
	if sr.Agricultural != nil {
		w := sr.Agricultural.Climate
		out.WeatherRisk = &w
	}
	return out, nil
}

// withRequestCrop lets the loan's crop override the profile's primary crop.
func withRequestCrop(p model.BorrowerProfile, req model.LoanRequest) model.BorrowerProfile {
	farm := p.Farm()
	if farm == nil || req.CropType == "" {
		return p
	}
	attrs := p.Attributes()
	f := *farm
	f.Crop = req.CropType
	attrs.Farm = &f
	return model.ReconstructBorrowerProfile(p.ID(), attrs, p.Active(), p.Version(), p.CreatedAt(), p.UpdatedAt())
}

// LoanHistoryScore scores repayment history; absent without prior loans.
//
//	onTime*60 + completedRatio*40 - defaults*20
func LoanHistoryScore(lp model.LoanPerformance) (float64, bool) {
	if !lp.HasHistory() {
		return 0, false
	}
	onTime := neutralOnTimeRate
	switch {
	case lp.OnTimeRate != nil:
		onTime = *lp.OnTimeRate
	case lp.RepaymentRate != nil:
		onTime = *lp.RepaymentRate
	}
	completedRatio := float64(lp.CompletedLoans) / float64(lp.TotalLoans)
	return clamp(onTime*60+completedRatio*40-float64(lp.DefaultedLoans)*20, 0, 100), true
}

// BehavioralScore blends transaction consistency with mobile-money activity.
//
//	0.40*consistency + 0.25*frequencyTier + 0.20*balanceTier + 0.15*savings
func BehavioralScore(txConsistency *float64, mm *model.MobileMoneyStats) float64 {
	consistency := defaultTransactionConsistency
	if txConsistency != nil {
		consistency = *txConsistency
	}
	frequency, balance, savings := lowestActivityTier, lowestActivityTier, defaultSavingsPattern
	if mm != nil {
		frequency = frequencyTier(mm.TransactionsPerMonth)
		balance = balanceTier(mm.AverageBalance)
		savings = clamp(mm.SavingsPattern, 0, 100)
	}
	return clamp(0.40*consistency+0.25*frequency+0.20*balance+0.15*savings, 0, 100)
}

func frequencyTier(perMonth int) float64 {
	switch {
	case perMonth >= 60:
		return 100
	case perMonth >= 30:
		return 80
	case perMonth >= 10:
		return 60
	default:
		return lowestActivityTier
	}
}

var (
	balanceHigh   = decimal.NewFromInt(1_000_000)
	balanceMedium = decimal.NewFromInt(500_000)
	balanceLow    = decimal.NewFromInt(100_000)
)

func balanceTier(avg decimal.Decimal) float64 {
	switch {
	case avg.GreaterThanOrEqual(balanceHigh):
		return 100
	case avg.GreaterThanOrEqual(balanceMedium):
		return 80
	case avg.GreaterThanOrEqual(balanceLow):
		return 60
	default:
		return lowestActivityTier
	}
}

var (
	incomeTier1 = decimal.NewFromInt(2_000_000)
	incomeTier2 = decimal.NewFromInt(1_000_000)
	incomeTier3 = decimal.NewFromInt(500_000)
	incomeTier4 = decimal.NewFromInt(200_000)
)

// IncomeStabilityScore is 0.6*consistency + 0.4*incomeLevel. Zero income
// counts as unknown.
func IncomeStabilityScore(c valueobject.IncomeConsistency, monthly decimal.Decimal) float64 {
	consistency, ok := incomeConsistencyScore[c]
	if !ok {
		consistency = incomeConsistencyScore[valueobject.IncomeUnknown]
	}
	var level float64
	switch {
	case monthly.GreaterThanOrEqual(incomeTier1):
		level = 100
	case monthly.GreaterThanOrEqual(incomeTier2):
		level = 80
	case monthly.GreaterThanOrEqual(incomeTier3):
		level = 65
	case monthly.GreaterThanOrEqual(incomeTier4):
		level = 50
	case monthly.IsPositive():
		level = 35
	default:
		level = unknownIncomeLevel
	}
	return 0.6*consistency + 0.4*level
}

// SocialCapitalScore sums capped contributions of community ties.
func SocialCapitalScore(sc model.SocialCapital) float64 {
	return clamp(
		math.Min(float64(sc.GroupMemberships)*20, 40)+
			math.Min(float64(sc.References)*10, 30)+
			math.Min(float64(sc.CommunityYears)*2, 20)+
			math.Min(float64(sc.Guarantors)*5, 10),
		0, 100)
}

func participationScore(participates bool) float64 {
	if participates {
		return participating
	}
	return notParticipating
}
