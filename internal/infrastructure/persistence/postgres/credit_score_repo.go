package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	pkgpostgres "github.com/bibbank/microcredit/pkg/postgres"
)

// CreditScoreRepo implements port.CreditScoreRepository.
type CreditScoreRepo struct {
	db pkgpostgres.DB
}

// NewCreditScoreRepo creates a new PostgreSQL-backed score repository.
func NewCreditScoreRepo(db pkgpostgres.DB) *CreditScoreRepo {
	return &CreditScoreRepo{db: db}
}

// Load retrieves a borrower's score record.
func (r *CreditScoreRepo) Load(ctx context.Context, borrowerID string) (model.CreditScoreRecord, error) {
	query := `
		SELECT borrower_id, score, tier, is_fallback, factors, history, applied_events, version, updated_at
		FROM credit_scores
		WHERE borrower_id = $1
	`
	var (
		s                               model.CreditScoreSnapshot
		tier                            string
		factors, history, appliedEvents []byte
	)
	err := r.db.QueryRow(ctx, query, borrowerID).Scan(
		&s.BorrowerID, &s.Score, &tier, &s.IsFallback,
		&factors, &history, &appliedEvents, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		return model.CreditScoreRecord{}, fmt.Errorf("load credit score %s: %w", borrowerID, notFound(err))
	}
	if s.Tier, err = valueobject.NewRiskTier(tier); err != nil {
		return model.CreditScoreRecord{}, fmt.Errorf("parse tier: %w", err)
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{factors, &s.Factors},
		{history, &s.History},
		{appliedEvents, &s.AppliedEvents},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return model.CreditScoreRecord{}, fmt.Errorf("decode credit score %s: %w", borrowerID, err)
		}
	}
	return model.ReconstructCreditScoreRecord(s), nil
}

// Save inserts (expectedVersion 0) or updates a record under optimistic locking.
func (r *CreditScoreRepo) Save(ctx context.Context, rec model.CreditScoreRecord, expectedVersion int) error {
	s := rec.Snapshot()
	factors, err := json.Marshal(nonNilMap(s.Factors))
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	history, err := json.Marshal(nonNilSlice(s.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	applied, err := json.Marshal(nonNilSlice(s.AppliedEvents))
	if err != nil {
		return fmt.Errorf("encode applied events: %w", err)
	}

	if expectedVersion == 0 {
		_, err := r.db.Exec(ctx, `
			INSERT INTO credit_scores (
				borrower_id, score, tier, is_fallback, factors, history, applied_events, version, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
		`, s.BorrowerID, s.Score, s.Tier.String(), s.IsFallback, factors, history, applied, s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert credit score %s: %w", s.BorrowerID, insertConflict(err))
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE credit_scores SET
			score          = $2,
			tier           = $3,
			is_fallback    = $4,
			factors        = $5,
			history        = $6,
			applied_events = $7,
			version        = version + 1,
			updated_at     = $8
		WHERE borrower_id = $1 AND version = $9
	`, s.BorrowerID, s.Score, s.Tier.String(), s.IsFallback, factors, history, applied, s.UpdatedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("update credit score %s: %w", s.BorrowerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit score %s at version %d: %w", s.BorrowerID, expectedVersion, valueobject.ErrVersionConflict)
	}
	return nil
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
