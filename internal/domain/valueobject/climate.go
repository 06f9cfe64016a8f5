package valueobject

import "fmt"

// ClimateRisk holds regional climate hazard probabilities on a 0-1 scale.
type ClimateRisk struct {
	Drought     float64 `json:"drought_risk"`
	Flood       float64 `json:"flood_risk"`
	Temperature float64 `json:"temp_risk"`
}

// Validate checks every probability lies within [0, 1].
func (c ClimateRisk) Validate() error {
	for name, v := range map[string]float64{"drought": c.Drought, "flood": c.Flood, "temperature": c.Temperature} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s risk %.2f outside [0, 1]", name, v)
		}
	}
	return nil
}
