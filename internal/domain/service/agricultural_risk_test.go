package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func TestAgriculturalRiskModel_CoffeeDrought(t *testing.T) {
	farm := model.FarmProfile{Crop: valueobject.CropCoffee, LandAcres: 3, ExperienceYears: 10}
	climate := &valueobject.ClimateRisk{Drought: 0.7}

	r := service.AgriculturalRiskModel{}.Assess(farm, climate, valueobject.SeasonUnknown)

	assert.InDelta(t, 30, r.Crop, 1e-9)
	assert.InDelta(t, 35, r.Climate, 1e-9)
	assert.InDelta(t, 50, r.Market, 1e-9)
	assert.InDelta(t, 10, r.Experience, 1e-9)
	assert.InDelta(t, 35, r.Land, 1e-9)
	// .30*30 + .25*35 + .20*50 + .15*10 + .10*35
	assert.InDelta(t, 32.75, r.Total, 1e-9)
}

func TestClimateRiskScore(t *testing.T) {
	c := &valueobject.ClimateRisk{Drought: 0.5, Flood: 0.5, Temperature: 0.5}

	assert.InDelta(t, 50, service.ClimateRiskScore(c, valueobject.SeasonUnknown, false), 1e-9)
	// dry: (0.5*0.5*1.2 + 0.3*0.5*0.8 + 0.2*0.5) * 100
	assert.InDelta(t, 52, service.ClimateRiskScore(c, valueobject.SeasonDry, false), 1e-9)
	// wet: (0.5*0.5*0.8 + 0.3*0.5*1.2 + 0.2*0.5) * 100
	assert.InDelta(t, 48, service.ClimateRiskScore(c, valueobject.SeasonWet, false), 1e-9)
	assert.InDelta(t, 35, service.ClimateRiskScore(c, valueobject.SeasonUnknown, true), 1e-9, "irrigation cuts climate risk by 30%")
	assert.InDelta(t, 50, service.ClimateRiskScore(nil, valueobject.SeasonDry, false), 1e-9, "missing data is neutral")

	extreme := &valueobject.ClimateRisk{Drought: 1, Flood: 1, Temperature: 1}
	assert.LessOrEqual(t, service.ClimateRiskScore(extreme, valueobject.SeasonDry, false), 100.0)
}

func TestCropRisk_ExactMatchWithDefault(t *testing.T) {
	assert.InDelta(t, 25, service.CropRisk(valueobject.CropCassava), 1e-9)
	assert.InDelta(t, 50, service.CropRisk("coffee beans"), 1e-9, "no substring matching")
}
