package adapter

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// WeatherClient implements port.WeatherRiskProvider against a regional
// climate-risk API.
type WeatherClient struct {
	client *resty.Client
}

// NewWeatherClient creates a client for the weather risk API.
func NewWeatherClient(cfg ClientConfig) *WeatherClient {
	return &WeatherClient{client: newRestyClient(cfg)}
}

// ClimateRisk fetches drought, flood and temperature probabilities for a
// region and season.
func (c *WeatherClient) ClimateRisk(ctx context.Context, region string, season valueobject.Season) (valueobject.ClimateRisk, error) {
	var out valueobject.ClimateRisk
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"region": region,
			"season": string(season),
		}).
		SetResult(&out).
		Get("/v1/climate-risk")
	if err != nil {
		return valueobject.ClimateRisk{}, fmt.Errorf("weather request: %w: %w", valueobject.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		return valueobject.ClimateRisk{}, statusError("weather", resp)
	}
	return out, nil
}
