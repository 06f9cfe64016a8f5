package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

const uniqueViolation = "23505"

// scannable is satisfied by pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// notFound maps pgx.ErrNoRows to the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return valueobject.ErrNotFound
	}
	return err
}

// insertConflict maps a duplicate-key insert to a version conflict: another
// writer created the row first.
func insertConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return valueobject.ErrVersionConflict
	}
	return err
}
