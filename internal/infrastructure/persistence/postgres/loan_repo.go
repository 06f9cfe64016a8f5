package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	pkgpostgres "github.com/bibbank/microcredit/pkg/postgres"
)

// LoanRepo implements port.LoanRepository. The aggregate state lives in a
// JSONB column; status transitions are appended to loan_transitions in the
// same transaction.
type LoanRepo struct {
	db pkgpostgres.DB
}

// NewLoanRepo creates a new PostgreSQL-backed loan repository.
func NewLoanRepo(db pkgpostgres.DB) *LoanRepo {
	return &LoanRepo{db: db}
}

// loanState is the JSONB document of a loan.
type loanState struct {
	DisbursedAt      *time.Time               `json:"disbursed_at,omitempty"`
	Assessment       *model.RiskAssessment    `json:"assessment,omitempty"`
	Terms            *model.LoanTerms         `json:"terms,omitempty"`
	Schedule         *model.RepaymentSchedule `json:"schedule,omitempty"`
	Request          model.LoanRequest        `json:"request"`
	ApprovedAmount   decimal.Decimal          `json:"approved_amount"`
	PriorAssessments []model.RiskAssessment   `json:"prior_assessments,omitempty"`
	AppliedEvents    []string                 `json:"applied_events,omitempty"`
}

func encodeLoanState(s model.LoanSnapshot) ([]byte, error) {
	return json.Marshal(loanState{
		Request:          s.Request,
		Assessment:       s.Assessment,
		PriorAssessments: s.PriorAssessments,
		Terms:            s.Terms,
		Schedule:         s.Schedule,
		ApprovedAmount:   s.ApprovedAmount,
		DisbursedAt:      s.DisbursedAt,
		AppliedEvents:    s.AppliedEvents,
	})
}

func decodeLoanState(raw []byte, s *model.LoanSnapshot) error {
	var st loanState
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	s.Request = st.Request
	s.Assessment = st.Assessment
	s.PriorAssessments = st.PriorAssessments
	s.Terms = st.Terms
	s.Schedule = st.Schedule
	s.ApprovedAmount = st.ApprovedAmount
	s.DisbursedAt = st.DisbursedAt
	s.AppliedEvents = st.AppliedEvents
	return nil
}

// Save persists a loan and its new transitions under optimistic locking.
func (r *LoanRepo) Save(ctx context.Context, loan model.Loan, expectedVersion int) error {
	snap := loan.Snapshot()
	state, err := encodeLoanState(snap)
	if err != nil {
		return fmt.Errorf("encode loan %s: %w", snap.ID, err)
	}

	return pkgpostgres.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if expectedVersion == 0 {
			_, err := tx.Exec(ctx, `
				INSERT INTO loans (
					id, borrower_id, status, requested_amount, approved_amount,
					outstanding, state, version, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
			`, snap.ID, snap.BorrowerID, snap.Status.String(), snap.Request.Amount,
				snap.ApprovedAmount, loan.Outstanding(), state, snap.CreatedAt, snap.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert loan %s: %w", snap.ID, insertConflict(err))
			}
		} else {
			tag, err := tx.Exec(ctx, `
				UPDATE loans SET
					status          = $2,
					approved_amount = $3,
					outstanding     = $4,
					state           = $5,
					version         = version + 1,
					updated_at      = $6
				WHERE id = $1 AND version = $7
			`, snap.ID, snap.Status.String(), snap.ApprovedAmount, loan.Outstanding(),
				state, snap.UpdatedAt, expectedVersion)
			if err != nil {
				return fmt.Errorf("update loan %s: %w", snap.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("loan %s at version %d: %w", snap.ID, expectedVersion, valueobject.ErrVersionConflict)
			}
		}

		// Transitions are append-only; earlier ones are already stored.
		for i, t := range snap.Transitions {
			_, err := tx.Exec(ctx, `
				INSERT INTO loan_transitions (loan_id, seq, from_status, to_status, event, actor, at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (loan_id, seq) DO NOTHING
			`, snap.ID, i+1, t.From.String(), t.To.String(), string(t.Event), t.Actor, t.At)
			if err != nil {
				return fmt.Errorf("save transition %d of loan %s: %w", i+1, snap.ID, err)
			}
		}
		return nil
	})
}

// Load retrieves a loan and its transition log.
func (r *LoanRepo) Load(ctx context.Context, loanID string) (model.Loan, error) {
	query := `
		SELECT id, borrower_id, status, state, version, created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	snap, err := scanLoanRow(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		return model.Loan{}, fmt.Errorf("load loan %s: %w", loanID, notFound(err))
	}
	if snap.Transitions, err = r.loadTransitions(ctx, snap.ID); err != nil {
		return model.Loan{}, err
	}
	return model.ReconstructLoan(snap), nil
}

// ListByBorrower returns a borrower's loans, newest first.
func (r *LoanRepo) ListByBorrower(ctx context.Context, borrowerID string) ([]model.Loan, error) {
	return r.list(ctx, `
		SELECT id, borrower_id, status, state, version, created_at, updated_at
		FROM loans
		WHERE borrower_id = $1
		ORDER BY created_at DESC
	`, borrowerID)
}

// ListByStatus returns every loan in one of the given statuses.
func (r *LoanRepo) ListByStatus(ctx context.Context, statuses ...valueobject.LoanStatus) ([]model.Loan, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.String())
	}
	return r.list(ctx, `
		SELECT id, borrower_id, status, state, version, created_at, updated_at
		FROM loans
		WHERE status = ANY($1)
		ORDER BY created_at
	`, names)
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func (r *LoanRepo) list(ctx context.Context, query string, args ...any) ([]model.Loan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	var snaps []model.LoanSnapshot
	for rows.Next() {
		snap, err := scanLoanRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}

	loans := make([]model.Loan, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Transitions, err = r.loadTransitions(ctx, snap.ID); err != nil {
			return nil, err
		}
		loans = append(loans, model.ReconstructLoan(snap))
	}
	return loans, nil
}

func scanLoanRow(s scannable) (model.LoanSnapshot, error) {
	var (
		snap      model.LoanSnapshot
		statusStr string
		raw       []byte
	)
	if err := s.Scan(&snap.ID, &snap.BorrowerID, &statusStr, &raw, &snap.Version, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("scan loan: %w", err)
	}
	status, err := valueobject.NewLoanStatus(statusStr)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse loan status: %w", err)
	}
	snap.Status = status
	if err := decodeLoanState(raw, &snap); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("decode loan %s: %w", snap.ID, err)
	}
	return snap, nil
}

func (r *LoanRepo) loadTransitions(ctx context.Context, loanID string) ([]model.Transition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT from_status, to_status, event, actor, at
		FROM loan_transitions
		WHERE loan_id = $1
		ORDER BY seq
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []model.Transition
	for rows.Next() {
		var (
			from, to, evt string
			t             model.Transition
		)
		if err := rows.Scan(&from, &to, &evt, &t.Actor, &t.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if t.From, err = valueobject.NewLoanStatus(from); err != nil {
			return nil, err
		}
		if t.To, err = valueobject.NewLoanStatus(to); err != nil {
			return nil, err
		}
		t.Event = valueobject.LoanEventType(evt)
		out = append(out, t)
	}
	return out, rows.Err()
}
