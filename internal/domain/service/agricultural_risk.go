package service

import (
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// AgriculturalRisk is the breakdown of a farmer's 0-100 risk, higher is worse.
type AgriculturalRisk struct {
	Crop       float64
	Climate    float64
	Market     float64
	Experience float64
	Land       float64
	Total      float64
}

// Agricultural risk weights:
//   - Crop:       30%
//   - Climate:    25%
//   - Market:     20%
//   - Experience: 15%
//   - Land size:  10%
const (
	weightCrop       = 0.30
	weightClimate    = 0.25
	weightMarket     = 0.20
	weightExperience = 0.15
	weightLand       = 0.10

	irrigationFactor = 0.7
	unknownClimate   = 50.0
)

var cropRisk = map[valueobject.CropType]float64{
	valueobject.CropCoffee:     30,
	valueobject.CropTea:        30,
	valueobject.CropCassava:    25,
	valueobject.CropMatooke:    35,
	valueobject.CropSorghum:    35,
	valueobject.CropBeans:      40,
	valueobject.CropMaize:      45,
	valueobject.CropRice:       50,
	valueobject.CropVegetables: 50,
	valueobject.CropCotton:     55,
	valueobject.CropOther:      50,
}

var marketAccessRisk = map[valueobject.MarketAccess]float64{
	valueobject.MarketAccessGood:     20,
	valueobject.MarketAccessModerate: 45,
	valueobject.MarketAccessPoor:     70,
	valueobject.MarketAccessUnknown:  50,
}

// seasonScale returns the drought and flood multipliers for a season.
func seasonScale(s valueobject.Season) (drought, flood float64) {
	switch s {
	case valueobject.SeasonDry:
		return 1.2, 0.8
	case valueobject.SeasonWet:
		return 0.8, 1.2
	default:
		return 1, 1
	}
}

// AgriculturalRiskModel scores crop-production risk.
type AgriculturalRiskModel struct{}

// Assess combines crop, climate, market, experience and land risk. A nil
// climate reading counts as unknown (50).
func (AgriculturalRiskModel) Assess(farm model.FarmProfile, climate *valueobject.ClimateRisk, season valueobject.Season) AgriculturalRisk {
	r := AgriculturalRisk{
		Crop:       CropRisk(farm.Crop),
		Climate:    ClimateRiskScore(climate, season, farm.Irrigated),
		Market:     marketRisk(farm.MarketAccess),
		Experience: experienceRisk(farm.ExperienceYears),
		Land:       landRisk(farm.LandAcres),
	}
	r.Total = clamp(weightCrop*r.Crop+
		weightClimate*r.Climate+
		weightMarket*r.Market+
		weightExperience*r.Experience+
		weightLand*r.Land, 0, 100)
	return r
}

// CropRisk looks up a crop's base risk, defaulting to the "other" row.
func CropRisk(c valueobject.CropType) float64 {
	if v, ok := cropRisk[c]; ok {
		return v
	}
	return cropRisk[valueobject.CropOther]
}

// ClimateRiskScore converts hazard probabilities into a 0-100 risk.
func ClimateRiskScore(c *valueobject.ClimateRisk, season valueobject.Season, irrigated bool) float64 {
	if c == nil {
		return unknownClimate
	}
	sD, sF := seasonScale(season)
	risk := (0.5*c.Drought*sD + 0.3*c.Flood*sF + 0.2*c.Temperature) * 100
	if irrigated {
		risk *= irrigationFactor
	}
	return clamp(risk, 0, 100)
}

func marketRisk(m valueobject.MarketAccess) float64 {
	if v, ok := marketAccessRisk[m]; ok {
		return v
	}
	return marketAccessRisk[valueobject.MarketAccessUnknown]
}

func experienceRisk(years int) float64 {
	switch {
	case years >= 10:
		return 10
	case years >= 5:
		return 25
	case years >= 2:
		return 45
	default:
		return 70
	}
}

func landRisk(acres float64) float64 {
	switch {
	case acres >= 5:
		return 20
	case acres >= 2:
		return 35
	case acres >= 1:
		return 50
	default:
		return 65
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
