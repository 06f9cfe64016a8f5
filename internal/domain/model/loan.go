package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// maxAppliedEvents bounds the remembered external event IDs per loan.
const maxAppliedEvents = 64

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Mutations return a new copy.
type Loan struct {
	createdAt        time.Time
	updatedAt        time.Time
	disbursedAt      *time.Time
	assessment       *RiskAssessment
	terms            *LoanTerms
	schedule         *RepaymentSchedule
	id               string
	borrowerID       string
	status           valueobject.LoanStatus
	request          LoanRequest
	approvedAmount   decimal.Decimal
	priorAssessments []RiskAssessment
	transitions      []Transition
	appliedEvents    []string
	domainEvents     []event.DomainEvent
	version          int
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewLoan creates a draft loan for a validated request.
func NewLoan(borrowerID string, req LoanRequest, bounds LoanBounds, now time.Time) (Loan, error) {
	if borrowerID == "" {
		return Loan{}, valueobject.NewValidationError("borrower_id", "is required")
	}
	if err := req.Validate(bounds); err != nil {
		return Loan{}, err
	}
	return Loan{
		id:         uuid.New().String(),
		borrowerID: borrowerID,
		request:    req,
		status:     valueobject.LoanStatusDraft,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// LoanSnapshot carries every persisted field of a Loan.
type LoanSnapshot struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DisbursedAt      *time.Time
	Assessment       *RiskAssessment
	Terms            *LoanTerms
	Schedule         *RepaymentSchedule
	ID               string
	BorrowerID       string
	Status           valueobject.LoanStatus
	Request          LoanRequest
	ApprovedAmount   decimal.Decimal
	PriorAssessments []RiskAssessment
	Transitions      []Transition
	AppliedEvents    []string
	Version          int
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(s LoanSnapshot) Loan {
	return Loan{
		id:               s.ID,
		borrowerID:       s.BorrowerID,
		request:          s.Request,
		status:           s.Status,
		assessment:       s.Assessment,
		priorAssessments: s.PriorAssessments,
		terms:            s.Terms,
		schedule:         s.Schedule,
		approvedAmount:   s.ApprovedAmount,
		disbursedAt:      s.DisbursedAt,
		transitions:      s.Transitions,
		appliedEvents:    s.AppliedEvents,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Snapshot exposes every persisted field.
func (l Loan) Snapshot() LoanSnapshot {
	c := l.copy()
	return LoanSnapshot{
		ID:               c.id,
		BorrowerID:       c.borrowerID,
		Request:          c.request,
		Status:           c.status,
		Assessment:       c.assessment,
		PriorAssessments: c.priorAssessments,
		Terms:            c.terms,
		Schedule:         c.schedule,
		ApprovedAmount:   c.approvedAmount,
		DisbursedAt:      c.disbursedAt,
		Transitions:      c.transitions,
		AppliedEvents:    c.appliedEvents,
		Version:          c.version,
		CreatedAt:        c.createdAt,
		UpdatedAt:        c.updatedAt,
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// Amend replaces the request while the loan is still draft or submitted.
func (l Loan) Amend(req LoanRequest, bounds LoanBounds, now time.Time) (Loan, error) {
	if !l.status.IsAmendable() {
		return l, fmt.Errorf("%w: cannot amend a %s loan", valueobject.ErrInvalidTransition, l.status)
	}
	if err := req.Validate(bounds); err != nil {
		return l, err
	}
	next := l.copy()
	next.request = req
	next.updatedAt = now
	return next, nil
}

// AttachAssessment records a new assessment and the terms derived from it.
// The previous assessment moves to history. Only allowed before disbursement.
func (l Loan) AttachAssessment(a RiskAssessment, terms LoanTerms, now time.Time) (Loan, error) {
	switch l.status {
	case valueobject.LoanStatusDraft, valueobject.LoanStatusSubmitted,
		valueobject.LoanStatusUnderReview, valueobject.LoanStatusApproved:
	default:
		return l, fmt.Errorf("%w: terms are fixed once %s", valueobject.ErrInvalidTransition, l.status)
	}
	next := l.copy()
	if next.assessment != nil {
		next.priorAssessments = append(next.priorAssessments, *next.assessment)
	}
	next.assessment = &a
	next.terms = &terms
	next.approvedAmount = terms.ApprovedAmount(l.request.Amount)
	next.updatedAt = now
	return next, nil
}

// Disburse attaches the generated schedule and moves approved -> disbursed.
func (l Loan) Disburse(schedule RepaymentSchedule, actor string, now time.Time) (Loan, error) {
	if len(schedule.Installments) == 0 {
		return l, errors.New("schedule has no installments")
	}
	next, err := l.transition(valueobject.EventDisburse, actor, now)
	if err != nil {
		return l, err
	}
	next.schedule = &schedule
	at := now
	next.disbursedAt = &at
	return next, nil
}

// HasApplied reports whether an external event was already applied.
func (l Loan) HasApplied(eventID string) bool {
	for _, id := range l.appliedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// MarkApplied remembers an external event ID, keeping the newest 64.
func (l Loan) MarkApplied(eventID string) Loan {
	if eventID == "" || l.HasApplied(eventID) {
		return l
	}
	next := l.copy()
	next.appliedEvents = appendBounded(next.appliedEvents, eventID, maxAppliedEvents)
	return next
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string                        { return l.id }
func (l Loan) BorrowerID() string                { return l.borrowerID }
func (l Loan) Request() LoanRequest              { return l.request }
func (l Loan) Status() valueobject.LoanStatus    { return l.status }
func (l Loan) ApprovedAmount() decimal.Decimal   { return l.approvedAmount }
func (l Loan) DisbursedAt() *time.Time           { return l.disbursedAt }
func (l Loan) Version() int                      { return l.version }
func (l Loan) CreatedAt() time.Time              { return l.createdAt }
func (l Loan) UpdatedAt() time.Time              { return l.updatedAt }
func (l Loan) DomainEvents() []event.DomainEvent { return l.domainEvents }

// Assessment returns the current assessment, if any.
func (l Loan) Assessment() *RiskAssessment {
	if l.assessment == nil {
		return nil
	}
	a := *l.assessment
	return &a
}

// Terms returns the current terms, if any.
func (l Loan) Terms() *LoanTerms {
	if l.terms == nil {
		return nil
	}
	t := *l.terms
	return &t
}

// Schedule returns a defensive copy of the repayment schedule.
func (l Loan) Schedule() *RepaymentSchedule {
	if l.schedule == nil {
		return nil
	}
	s := l.schedule.clone()
	return &s
}

// Transitions returns a copy of the status log.
func (l Loan) Transitions() []Transition {
	out := make([]Transition, len(l.transitions))
	copy(out, l.transitions)
	return out
}

// PriorAssessments returns earlier assessments, oldest first.
func (l Loan) PriorAssessments() []RiskAssessment {
	out := make([]RiskAssessment, len(l.priorAssessments))
	copy(out, l.priorAssessments)
	return out
}

// Outstanding returns the unpaid balance, zero before disbursement.
func (l Loan) Outstanding() decimal.Decimal {
	if l.schedule == nil {
		return decimal.Zero
	}
	return l.schedule.Outstanding()
}

// ClearEvents returns a copy with an empty event list.
func (l Loan) ClearEvents() Loan {
	next := l
	next.domainEvents = nil
	return next
}

// copy deep-copies the slices and schedule so mutations never alias l.
func (l Loan) copy() Loan {
	next := l
	next.transitions = append([]Transition(nil), l.transitions...)
	next.appliedEvents = append([]string(nil), l.appliedEvents...)
	next.priorAssessments = append([]RiskAssessment(nil), l.priorAssessments...)
	next.domainEvents = append([]event.DomainEvent(nil), l.domainEvents...)
	if l.schedule != nil {
		s := l.schedule.clone()
		next.schedule = &s
	}
	return next
}

func newStatusChanged(l Loan, to valueobject.LoanStatus, evt valueobject.LoanEventType, actor string, now time.Time) event.DomainEvent {
	return event.NewLoanStatusChanged(l.id, l.borrowerID, l.status.String(), to.String(), string(evt), actor, now)
}

func newRepaymentRecorded(l Loan, p Payment, outstanding decimal.Decimal) event.DomainEvent {
	return event.NewRepaymentRecorded(l.id, l.borrowerID, p.Amount, outstanding, p.Method, p.Reference, p.PaidAt)
}

// appendBounded appends v and drops the oldest entries beyond limit.
func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append([]T(nil), s[len(s)-limit:]...)
	}
	return s
}
