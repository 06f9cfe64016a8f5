package service_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ---------------------------------------------------------------------------
// Provider stubs
// ---------------------------------------------------------------------------

type stubWeather struct {
	err   error
	delay time.Duration
	risk  valueobject.ClimateRisk
	calls int
}

func (s *stubWeather) ClimateRisk(ctx context.Context, _ string, _ valueobject.Season) (valueobject.ClimateRisk, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return valueobject.ClimateRisk{}, ctx.Err()
		}
	}
	return s.risk, s.err
}

type stubMobileMoney struct {
	err   error
	stats model.MobileMoneyStats
}

func (s *stubMobileMoney) UsageStats(context.Context, string) (model.MobileMoneyStats, error) {
	return s.stats, s.err
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// vendor is a retail borrower with 1,000,000 stable income, no loan history
// and no social data.
func vendor() model.BorrowerProfile {
	p, err := model.NewBorrowerProfile("vendor-1", model.BorrowerAttributes{
		Sector:            valueobject.SectorRetail,
		Occupation:        "market vendor",
		Region:            "kampala",
		MonthlyIncome:     decimal.NewFromInt(1_000_000),
		IncomeConsistency: valueobject.IncomeStable,
	}, testNow)
	if err != nil {
		panic(err)
	}
	return p
}

// coffeeFarmer grows coffee on 3 acres with 10 years of experience.
func coffeeFarmer() model.BorrowerProfile {
	p, err := model.NewBorrowerProfile("farmer-1", model.BorrowerAttributes{
		Sector:            valueobject.SectorAgriculture,
		Occupation:        "coffee farmer",
		Region:            "mbarara",
		MonthlyIncome:     decimal.NewFromInt(500_000),
		IncomeConsistency: valueobject.IncomeSeasonal,
		BusinessYears:     10,
		Farm: &model.FarmProfile{
			Crop:            valueobject.CropCoffee,
			LandAcres:       3,
			ExperienceYears: 10,
			MarketAccess:    valueobject.MarketAccessUnknown,
		},
	}, testNow)
	if err != nil {
		panic(err)
	}
	return p
}

func retailRequest() model.LoanRequest {
	return model.LoanRequest{
		Amount:     decimal.NewFromInt(1_000_000),
		TermMonths: 6,
		Sector:     valueobject.SectorRetail,
		Purpose:    "stock",
		Channel:    valueobject.ChannelMobileMoney,
	}
}

func farmRequest() model.LoanRequest {
	return model.LoanRequest{
		Amount:     decimal.NewFromInt(1_000_000),
		TermMonths: 6,
		Sector:     valueobject.SectorAgriculture,
		Purpose:    "inputs for coffee season",
		CropType:   valueobject.CropCoffee,
		Channel:    valueobject.ChannelMobileMoney,
	}
}
