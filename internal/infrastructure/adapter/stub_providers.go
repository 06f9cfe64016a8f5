package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// StubWeather returns deterministic climate risk derived from the region
// name. The wet season raises flood risk and the dry season drought risk.
type StubWeather struct{}

func (StubWeather) ClimateRisk(_ context.Context, region string, season valueobject.Season) (valueobject.ClimateRisk, error) {
	h := sha256.Sum256([]byte(region))
	base := func(i int) float64 {
		return float64(binary.BigEndian.Uint16(h[i:i+2])%40) / 100
	}
	r := valueobject.ClimateRisk{Drought: base(0), Flood: base(2), Temperature: base(4)}
	switch season {
	case valueobject.SeasonDry:
		r.Drought += 0.2
	case valueobject.SeasonWet:
		r.Flood += 0.2
	}
	return r, nil
}

// StubMobileMoney returns deterministic usage derived from the borrower ID.
type StubMobileMoney struct{}

func (StubMobileMoney) UsageStats(_ context.Context, borrowerID string) (model.MobileMoneyStats, error) {
	h := sha256.Sum256([]byte(borrowerID))
	return model.MobileMoneyStats{
		AverageBalance:       decimal.NewFromInt(int64(5_000 + binary.BigEndian.Uint32(h[:4])%495_000)),
		TransactionsPerMonth: 5 + int(binary.BigEndian.Uint16(h[4:6])%60),
		SavingsPattern:       float64(binary.BigEndian.Uint16(h[6:8]) % 101),
	}, nil
}
