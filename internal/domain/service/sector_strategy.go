package service

import (
	"math"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// SectorInputs carries provider data a sector strategy may need.
type SectorInputs struct {
	Climate *valueobject.ClimateRisk
	Season  valueobject.Season
}

// SectorRisk is a strategy's verdict on a borrower.
type SectorRisk struct {
	// Agricultural is set only by the agriculture strategy.
	Agricultural *AgriculturalRisk
	// Risk is 0-100, higher is worse.
	Risk float64
}

// SectorRiskStrategy scores the sector-dependent parts of a profile.
type SectorRiskStrategy interface {
	// OccupationScore is the 0-100 occupation sub-score, higher is better.
	OccupationScore(p model.BorrowerProfile) float64
	// SectorRisk returns the sector risk, higher is worse.
	SectorRisk(p model.BorrowerProfile, in SectorInputs) SectorRisk
}

// businessYearsBonus rewards established businesses, capped at 10.
func businessYearsBonus(years int) float64 {
	return math.Min(float64(years)*2, 10)
}

// marketStrategy covers non-agricultural sectors, which carry
// market/competition risk.
type marketStrategy struct {
	base       float64
	marketRisk float64
}

func (s marketStrategy) OccupationScore(p model.BorrowerProfile) float64 {
	return clamp(s.base+businessYearsBonus(p.BusinessYears()), 0, 100)
}

func (s marketStrategy) SectorRisk(model.BorrowerProfile, SectorInputs) SectorRisk {
	return SectorRisk{Risk: s.marketRisk}
}

// transportStrategy adds a bonus for operators who own their vehicle.
type transportStrategy struct {
	marketStrategy
}

const vehicleOwnershipBonus = 5

func (s transportStrategy) OccupationScore(p model.BorrowerProfile) float64 {
	score := s.marketStrategy.OccupationScore(p)
	if t := p.Transport(); t != nil && t.OwnsVehicle {
		score += vehicleOwnershipBonus
	}
	return clamp(score, 0, 100)
}

// agricultureStrategy weighs crop and climate risk instead of market risk.
type agricultureStrategy struct {
	base float64
	risk AgriculturalRiskModel
}

func (s agricultureStrategy) OccupationScore(p model.BorrowerProfile) float64 {
	return clamp(s.base+businessYearsBonus(p.BusinessYears()), 0, 100)
}

func (s agricultureStrategy) SectorRisk(p model.BorrowerProfile, in SectorInputs) SectorRisk {
	farm := p.Farm()
	if farm == nil {
		return SectorRisk{Risk: 50}
	}
	ag := s.risk.Assess(*farm, in.Climate, in.Season)
	return SectorRisk{Risk: ag.Total, Agricultural: &ag}
}

// SectorStrategies selects a strategy by exact sector match.
type SectorStrategies map[valueobject.Sector]SectorRiskStrategy

// DefaultSectorStrategies returns the standard sector table.
func DefaultSectorStrategies() SectorStrategies {
	return SectorStrategies{
		valueobject.SectorAgriculture: agricultureStrategy{base: 55},
		valueobject.SectorRetail:      marketStrategy{base: 60, marketRisk: 45},
		valueobject.SectorTransport:   transportStrategy{marketStrategy{base: 55, marketRisk: 40}},
		valueobject.SectorServices:    marketStrategy{base: 62, marketRisk: 35},
		valueobject.SectorArtisan:     marketStrategy{base: 58, marketRisk: 40},
		valueobject.SectorGigWork:     marketStrategy{base: 50, marketRisk: 50},
		valueobject.SectorOther:       marketStrategy{base: 50, marketRisk: 50},
	}
}

// For returns the sector's strategy, falling back to the "other" entry.
func (s SectorStrategies) For(sector valueobject.Sector) SectorRiskStrategy {
	if st, ok := s[sector]; ok {
		return st
	}
	if st, ok := s[valueobject.SectorOther]; ok {
		return st
	}
	return marketStrategy{base: 50, marketRisk: 50}
}
