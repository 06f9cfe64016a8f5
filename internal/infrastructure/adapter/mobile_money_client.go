package adapter

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// MobileMoneyClient implements port.MobileMoneyProvider against an
// operator's subscriber-usage API.
type MobileMoneyClient struct {
	client *resty.Client
}

// NewMobileMoneyClient creates a client for the mobile-money usage API.
func NewMobileMoneyClient(cfg ClientConfig) *MobileMoneyClient {
	return &MobileMoneyClient{client: newRestyClient(cfg)}
}

// UsageStats fetches a borrower's average balance, transaction frequency and
// savings pattern.
func (c *MobileMoneyClient) UsageStats(ctx context.Context, borrowerID string) (model.MobileMoneyStats, error) {
	var out model.MobileMoneyStats
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", borrowerID).
		SetResult(&out).
		Get("/v1/subscribers/{id}/usage")
	if err != nil {
		return model.MobileMoneyStats{}, fmt.Errorf("mobile money request: %w: %w", valueobject.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		return model.MobileMoneyStats{}, statusError("mobile money", resp)
	}
	return out, nil
}
