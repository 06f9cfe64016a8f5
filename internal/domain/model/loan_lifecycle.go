package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

type (
	status  = valueobject.LoanStatus
	trigger = valueobject.LoanEventType
)

// transitions is the complete lifecycle graph. Any (status, event) pair not
// listed is rejected.
var transitions = map[status]map[trigger]status{
	valueobject.LoanStatusDraft: {
		valueobject.EventSubmit: valueobject.LoanStatusSubmitted,
	},
	valueobject.LoanStatusSubmitted: {
		valueobject.EventStartReview: valueobject.LoanStatusUnderReview,
		valueobject.EventAutoApprove: valueobject.LoanStatusApproved,
	},
	valueobject.LoanStatusUnderReview: {
		valueobject.EventApprove: valueobject.LoanStatusApproved,
		valueobject.EventReject:  valueobject.LoanStatusRejected,
	},
	valueobject.LoanStatusApproved: {
		valueobject.EventDisburse: valueobject.LoanStatusDisbursed,
	},
	valueobject.LoanStatusDisbursed: {
		valueobject.EventActivate:       valueobject.LoanStatusActive,
		valueobject.EventStartRepayment: valueobject.LoanStatusRepaymentActive,
	},
	valueobject.LoanStatusActive: servicingEdges(map[trigger]status{
		valueobject.EventStartRepayment: valueobject.LoanStatusRepaymentActive,
	}),
	valueobject.LoanStatusRepaymentActive: servicingEdges(nil),
	valueobject.LoanStatusInArrears: {
		valueobject.EventCure:        valueobject.LoanStatusRepaymentActive,
		valueobject.EventDefault:     valueobject.LoanStatusDefaulted,
		valueobject.EventRestructure: valueobject.LoanStatusRestructured,
		valueobject.EventReschedule:  valueobject.LoanStatusRescheduled,
		valueobject.EventWriteOff:    valueobject.LoanStatusWrittenOff,
	},
	valueobject.LoanStatusRestructured: {
		valueobject.EventResume: valueobject.LoanStatusRepaymentActive,
	},
	valueobject.LoanStatusRescheduled: {
		valueobject.EventResume: valueobject.LoanStatusRepaymentActive,
	},
	valueobject.LoanStatusDefaulted: {
		valueobject.EventWriteOff: valueobject.LoanStatusWrittenOff,
	},
}

// servicingEdges are shared by active and repayment_active loans.
func servicingEdges(extra map[trigger]status) map[trigger]status {
	m := map[trigger]status{
		valueobject.EventComplete:    valueobject.LoanStatusCompleted,
		valueobject.EventMarkArrears: valueobject.LoanStatusInArrears,
		valueobject.EventDefault:     valueobject.LoanStatusDefaulted,
		valueobject.EventRestructure: valueobject.LoanStatusRestructured,
		valueobject.EventReschedule:  valueobject.LoanStatusRescheduled,
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// NextStatus looks up the lifecycle graph.
func NextStatus(from valueobject.LoanStatus, evt valueobject.LoanEventType) (valueobject.LoanStatus, bool) {
	to, ok := transitions[from][evt]
	return to, ok
}

// Transition is one entry of a loan's status log.
type Transition struct {
	At    time.Time                 `json:"at"`
	From  valueobject.LoanStatus    `json:"from"`
	To    valueobject.LoanStatus    `json:"to"`
	Event valueobject.LoanEventType `json:"event"`
	Actor string                    `json:"actor"`
}

// AutoApprovalGuard gates submitted -> approved without human review.
type AutoApprovalGuard struct {
	Ceiling        decimal.Decimal
	MinProbability float64
}

// Permits reports whether a loan qualifies for auto-approval.
func (g AutoApprovalGuard) Permits(probability float64, amount decimal.Decimal) bool {
	return probability >= g.MinProbability && amount.LessThan(g.Ceiling)
}

// Apply moves the loan along the lifecycle graph. Pairs outside the graph
// return ErrInvalidTransition and the loan unchanged. Auto-approval is only
// reachable through AutoApprove, which evaluates its guard.
func (l Loan) Apply(evt valueobject.LoanEventType, actor string, now time.Time) (Loan, error) {
	if evt == valueobject.EventAutoApprove {
		if _, ok := NextStatus(l.status, evt); !ok {
			return l, l.invalid(evt)
		}
		return l, fmt.Errorf("%w: auto-approval requires a guard", valueobject.ErrAutoApprovalNotPermitted)
	}
	return l.transition(evt, actor, now)
}

// AutoApprove approves a submitted loan when the guard permits it.
func (l Loan) AutoApprove(guard AutoApprovalGuard, actor string, now time.Time) (Loan, error) {
	if _, ok := NextStatus(l.status, valueobject.EventAutoApprove); !ok {
		return l, l.invalid(valueobject.EventAutoApprove)
	}
	if l.assessment == nil || !guard.Permits(l.assessment.ApprovalProbability, l.request.Amount) {
		return l, valueobject.ErrAutoApprovalNotPermitted
	}
	return l.transition(valueobject.EventAutoApprove, actor, now)
}

func (l Loan) transition(evt valueobject.LoanEventType, actor string, now time.Time) (Loan, error) {
	to, ok := NextStatus(l.status, evt)
	if !ok {
		return l, l.invalid(evt)
	}
	next := l.copy()
	next.status = to
	next.updatedAt = now
	next.transitions = append(next.transitions, Transition{
		From:  l.status,
		To:    to,
		Event: evt,
		Actor: actor,
		At:    now,
	})
	next.domainEvents = append(next.domainEvents, newStatusChanged(l, to, evt, actor, now))
	return next, nil
}

func (l Loan) invalid(evt valueobject.LoanEventType) error {
	return fmt.Errorf("%w: %s cannot %s", valueobject.ErrInvalidTransition, l.status, evt)
}

// ---------------------------------------------------------------------------
// Repayment allocation and arrears
// ---------------------------------------------------------------------------

// Payment is a repayment received from the borrower.
type Payment struct {
	PaidAt    time.Time
	Amount    decimal.Decimal
	Method    string
	Reference string
	Actor     string
}

// RepaymentOutcome summarises how a payment was applied.
type RepaymentOutcome struct {
	Allocated         decimal.Decimal
	Outstanding       decimal.Decimal
	Settled           int
	EarlyInstallments int
	LateInstallments  int
	Cured             bool
	Completed         bool
}

// RecordRepayment allocates a payment to installments in due-date order and
// drives the implied transitions: start_repayment on the first payment,
// cure once nothing is past due, and complete when the balance reaches zero.
func (l Loan) RecordRepayment(p Payment) (Loan, RepaymentOutcome, error) {
	if l.schedule == nil || !l.status.AcceptsPayments() {
		return l, RepaymentOutcome{}, fmt.Errorf("%w: %s does not accept payments", valueobject.ErrInvalidTransition, l.status)
	}
	if !p.Amount.IsPositive() {
		return l, RepaymentOutcome{}, valueobject.NewValidationError("amount", "must be positive")
	}
	outstanding := l.schedule.Outstanding()
	if p.Amount.GreaterThan(outstanding) {
		return l, RepaymentOutcome{}, fmt.Errorf("%w: paying %s against %s", valueobject.ErrOverpayment, p.Amount, outstanding)
	}

	next := l.copy()
	sched := next.schedule
	remaining := p.Amount
	var out RepaymentOutcome

	for i := range sched.Installments {
		if remaining.IsZero() {
			break
		}
		inst := &sched.Installments[i]
		owed := inst.Outstanding()
		if owed.IsZero() {
			continue
		}
		pay := decimal.Min(owed, remaining)
		remaining = remaining.Sub(pay)
		inst.AmountPaid = inst.AmountPaid.Add(pay)
		paidAt := p.PaidAt
		inst.PaidAt = &paidAt
		inst.Method = p.Method
		inst.Reference = p.Reference
		if inst.AmountPaid.GreaterThanOrEqual(inst.AmountDue) {
			inst.Status = valueobject.InstallmentPaid
			out.Settled++
			switch {
			case inst.PaidEarly():
				out.EarlyInstallments++
			case !inst.PaidOnTime():
				out.LateInstallments++
			}
		} else {
			inst.Status = valueobject.InstallmentPartial
		}
	}
	out.Allocated = p.Amount
	out.Outstanding = sched.Outstanding()
	next.updatedAt = p.PaidAt
	next.domainEvents = append(next.domainEvents, newRepaymentRecorded(next, p, out.Outstanding))

	var err error
	switch next.status {
	case valueobject.LoanStatusDisbursed, valueobject.LoanStatusActive:
		next, err = next.transition(valueobject.EventStartRepayment, p.Actor, p.PaidAt)
	case valueobject.LoanStatusRestructured, valueobject.LoanStatusRescheduled:
		next, err = next.transition(valueobject.EventResume, p.Actor, p.PaidAt)
	case valueobject.LoanStatusInArrears:
		if !next.hasPastDue(p.PaidAt) {
			next, err = next.transition(valueobject.EventCure, p.Actor, p.PaidAt)
			out.Cured = err == nil
		}
	}
	if err != nil {
		return l, RepaymentOutcome{}, err
	}

	if out.Outstanding.IsZero() && next.status.Equal(valueobject.LoanStatusRepaymentActive) {
		if next, err = next.transition(valueobject.EventComplete, p.Actor, p.PaidAt); err != nil {
			return l, RepaymentOutcome{}, err
		}
		out.Completed = true
	}
	return next, out, nil
}

// hasPastDue reports whether any installment due before now is unsettled.
func (l Loan) hasPastDue(now time.Time) bool {
	for _, inst := range l.schedule.Installments {
		if !inst.Status.IsSettled() && endOfDay(inst.DueDate).Before(now) {
			return true
		}
	}
	return false
}

// ArrearsOutcome summarises an arrears sweep over one loan.
type ArrearsOutcome struct {
	// NewlyOverdue lists sequences marked overdue by this sweep.
	NewlyOverdue   []int
	MovedToArrears bool
}

// SweepArrears marks installments unsettled past the grace window as overdue
// and moves servicing loans into arrears. A still-disbursed loan is
// activated first.
func (l Loan) SweepArrears(now time.Time, grace time.Duration, actor string) (Loan, ArrearsOutcome, error) {
	var out ArrearsOutcome
	if l.schedule == nil || l.status.IsTerminal() {
		return l, out, nil
	}
	next := l.copy()
	for i := range next.schedule.Installments {
		inst := &next.schedule.Installments[i]
		if inst.IsPastGrace(now, grace) && !inst.Status.Equal(valueobject.InstallmentOverdue) {
			inst.Status = valueobject.InstallmentOverdue
			out.NewlyOverdue = append(out.NewlyOverdue, inst.Sequence)
		}
	}
	if len(out.NewlyOverdue) == 0 {
		return l, out, nil
	}
	next.updatedAt = now

	// A disbursed loan that was never paid starts servicing before it can
	// fall into arrears.
	if next.status.Equal(valueobject.LoanStatusDisbursed) {
		activated, err := next.transition(valueobject.EventActivate, actor, now)
		if err != nil {
			return l, ArrearsOutcome{}, err
		}
		next = activated
	}
	if _, ok := NextStatus(next.status, valueobject.EventMarkArrears); ok {
		moved, err := next.transition(valueobject.EventMarkArrears, actor, now)
		if err != nil {
			return l, ArrearsOutcome{}, err
		}
		next = moved
		out.MovedToArrears = true
	}
	return next, out, nil
}

// WaiveInstallment forgives the remainder of an installment, as agreed in a
// restructuring.
func (l Loan) WaiveInstallment(sequence int, now time.Time) (Loan, error) {
	if l.schedule == nil {
		return l, fmt.Errorf("%w: loan has no schedule", valueobject.ErrInvalidTransition)
	}
	if !l.status.Equal(valueobject.LoanStatusRestructured) && !l.status.Equal(valueobject.LoanStatusRescheduled) {
		return l, fmt.Errorf("%w: waivers require a restructured loan", valueobject.ErrInvalidTransition)
	}
	next := l.copy()
	for i := range next.schedule.Installments {
		inst := &next.schedule.Installments[i]
		if inst.Sequence == sequence {
			if inst.Status.IsSettled() {
				return l, fmt.Errorf("installment %d already settled", sequence)
			}
			inst.Status = valueobject.InstallmentWaived
			next.updatedAt = now
			return next, nil
		}
	}
	return l, fmt.Errorf("%w: installment %d", valueobject.ErrNotFound, sequence)
}
