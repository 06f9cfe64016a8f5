package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// policyFile mirrors the TOML policy overrides. Absent keys keep the
// compiled default.
type policyFile struct {
	BaseRates          map[string]float64                          `toml:"base_rates"`
	Thresholds         map[string]service.RecommendationThresholds `toml:"thresholds"`
	DefaultThresholds  *service.RecommendationThresholds           `toml:"default_thresholds"`
	StabilityLimits    map[string]int64                            `toml:"stability_limits"`
	MinRate            *float64                                    `toml:"min_rate"`
	MaxRate            *float64                                    `toml:"max_rate"`
	FarmerLimitPerAcre *int64                                      `toml:"farmer_limit_per_acre"`
	GraceDays          *int                                        `toml:"grace_days"`
	LoanBounds         *struct {
		Min int64 `toml:"min"`
		Max int64 `toml:"max"`
	} `toml:"loan_bounds"`
	AutoApproval *struct {
		MinProbability float64 `toml:"min_probability"`
		Ceiling        int64   `toml:"ceiling"`
	} `toml:"auto_approval"`
}

// LoadPolicy applies the overrides in path on top of base.
func LoadPolicy(path string, base service.LendingPolicy) (service.LendingPolicy, error) {
	var f policyFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return base, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, fmt.Errorf("policy file %s: unknown key %s", path, undecoded[0])
	}
	return f.apply(base)
}

func (f policyFile) apply(p service.LendingPolicy) (service.LendingPolicy, error) {
	if len(f.BaseRates) > 0 {
		rates := make(map[valueobject.Sector]decimal.Decimal, len(p.BaseRates))
		for s, r := range p.BaseRates {
			rates[s] = r
		}
		for name, r := range f.BaseRates {
			s, err := valueobject.ParseSector(name)
			if err != nil {
				return p, fmt.Errorf("base_rates: %w", err)
			}
			rates[s] = decimal.NewFromFloat(r)
		}
		p.BaseRates = rates
	}
	if len(f.Thresholds) > 0 {
		th := make(map[valueobject.Sector]service.RecommendationThresholds, len(p.Thresholds))
		for s, t := range p.Thresholds {
			th[s] = t
		}
		for name, t := range f.Thresholds {
			s, err := valueobject.ParseSector(name)
			if err != nil {
				return p, fmt.Errorf("thresholds: %w", err)
			}
			th[s] = t
		}
		p.Thresholds = th
	}
	if f.DefaultThresholds != nil {
		p.DefaultThresholds = *f.DefaultThresholds
	}
	if len(f.StabilityLimits) > 0 {
		limits := make(map[valueobject.StabilityTier]decimal.Decimal, len(p.StabilityLimits))
		for t, l := range p.StabilityLimits {
			limits[t] = l
		}
		for name, l := range f.StabilityLimits {
			tier := valueobject.StabilityTier(name)
			if _, ok := limits[tier]; !ok {
				return p, fmt.Errorf("stability_limits: unknown tier %q", name)
			}
			limits[tier] = decimal.NewFromInt(l)
		}
		p.StabilityLimits = limits
	}
	if f.MinRate != nil {
		p.MinRate = decimal.NewFromFloat(*f.MinRate)
	}
	if f.MaxRate != nil {
		p.MaxRate = decimal.NewFromFloat(*f.MaxRate)
	}
	if f.FarmerLimitPerAcre != nil {
		p.FarmerLimitPerAcre = decimal.NewFromInt(*f.FarmerLimitPerAcre)
	}
	if f.GraceDays != nil {
		p.GraceDays = *f.GraceDays
	}
	if f.LoanBounds != nil {
		p.LoanBounds.Min = decimal.NewFromInt(f.LoanBounds.Min)
		p.LoanBounds.Max = decimal.NewFromInt(f.LoanBounds.Max)
	}
	if f.AutoApproval != nil {
		p.AutoApproval.MinProbability = f.AutoApproval.MinProbability
		p.AutoApproval.Ceiling = decimal.NewFromInt(f.AutoApproval.Ceiling)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("policy: %w", err)
	}
	return p, nil
}
