package port

import (
	"context"

	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
//
// Save writes only when the stored version equals expectedVersion and bumps
// it by one; otherwise it returns valueobject.ErrVersionConflict. An
// expectedVersion of zero inserts a new row. Load returns
// valueobject.ErrNotFound for unknown IDs.
// ---------------------------------------------------------------------------

// BorrowerRepository persists borrower profiles.
type BorrowerRepository interface {
	Load(ctx context.Context, borrowerID string) (model.BorrowerProfile, error)
	Save(ctx context.Context, profile model.BorrowerProfile, expectedVersion int) error
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// LoanRepository persists loans together with their transition log.
type LoanRepository interface {
	Load(ctx context.Context, loanID string) (model.Loan, error)
	Save(ctx context.Context, loan model.Loan, expectedVersion int) error
	ListByBorrower(ctx context.Context, borrowerID string) ([]model.Loan, error)
	ListByStatus(ctx context.Context, statuses ...valueobject.LoanStatus) ([]model.Loan, error)
}

// CreditScoreRepository persists one score record per borrower.
type CreditScoreRepository interface {
	Load(ctx context.Context, borrowerID string) (model.CreditScoreRecord, error)
	Save(ctx context.Context, record model.CreditScoreRecord, expectedVersion int) error
}

// ---------------------------------------------------------------------------
// Event ports
// ---------------------------------------------------------------------------

// EventPublisher publishes domain events to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.DomainEvent) error
}

// EventDeduplicator claims inbound event IDs so that concurrent deliveries
// of the same event are processed once.
type EventDeduplicator interface {
	// Claim returns true when the caller is the first to see eventID.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets a claim so a failed event can be redelivered.
	Release(ctx context.Context, eventID string) error
}

// ---------------------------------------------------------------------------
// External signal providers
// ---------------------------------------------------------------------------

// WeatherRiskProvider returns regional climate hazards.
type WeatherRiskProvider interface {
	ClimateRisk(ctx context.Context, region string, season valueobject.Season) (valueobject.ClimateRisk, error)
}

// MobileMoneyProvider returns a borrower's mobile-money behaviour.
type MobileMoneyProvider interface {
	UsageStats(ctx context.Context, borrowerID string) (model.MobileMoneyStats, error)
}
