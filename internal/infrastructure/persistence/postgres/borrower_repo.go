package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	pkgpostgres "github.com/bibbank/microcredit/pkg/postgres"
)

// BorrowerRepo implements port.BorrowerRepository.
type BorrowerRepo struct {
	db pkgpostgres.DB
}

// NewBorrowerRepo creates a new PostgreSQL-backed borrower repository.
func NewBorrowerRepo(db pkgpostgres.DB) *BorrowerRepo {
	return &BorrowerRepo{db: db}
}

// Load retrieves a borrower profile by ID.
func (r *BorrowerRepo) Load(ctx context.Context, borrowerID string) (model.BorrowerProfile, error) {
	query := `
		SELECT id, attributes, active, version, created_at, updated_at
		FROM borrowers
		WHERE id = $1
	`
	var (
		id                   string
		raw                  []byte
		active               bool
		version              int
		createdAt, updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, query, borrowerID).Scan(&id, &raw, &active, &version, &createdAt, &updatedAt)
	if err != nil {
		return model.BorrowerProfile{}, fmt.Errorf("load borrower %s: %w", borrowerID, notFound(err))
	}
	var attrs model.BorrowerAttributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return model.BorrowerProfile{}, fmt.Errorf("decode borrower %s: %w", borrowerID, err)
	}
	return model.ReconstructBorrowerProfile(id, attrs, active, version, createdAt, updatedAt), nil
}

// Save inserts (expectedVersion 0) or updates a profile under optimistic locking.
func (r *BorrowerRepo) Save(ctx context.Context, p model.BorrowerProfile, expectedVersion int) error {
	attrs, err := json.Marshal(p.Attributes())
	if err != nil {
		return fmt.Errorf("encode borrower %s: %w", p.ID(), err)
	}

	if expectedVersion == 0 {
		_, err := r.db.Exec(ctx, `
			INSERT INTO borrowers (id, sector, region, attributes, active, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		`, p.ID(), string(p.Sector()), p.Region(), attrs, p.Active(), p.CreatedAt(), p.UpdatedAt())
		if err != nil {
			return fmt.Errorf("insert borrower %s: %w", p.ID(), insertConflict(err))
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE borrowers SET
			sector     = $2,
			region     = $3,
			attributes = $4,
			active     = $5,
			version    = version + 1,
			updated_at = $6
		WHERE id = $1 AND version = $7
	`, p.ID(), string(p.Sector()), p.Region(), attrs, p.Active(), p.UpdatedAt(), expectedVersion)
	if err != nil {
		return fmt.Errorf("update borrower %s: %w", p.ID(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("borrower %s at version %d: %w", p.ID(), expectedVersion, valueobject.ErrVersionConflict)
	}
	return nil
}

// ListActiveIDs returns the IDs of all active borrowers.
func (r *BorrowerRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM borrowers WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active borrowers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan borrower id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
