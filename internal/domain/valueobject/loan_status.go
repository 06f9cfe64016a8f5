package valueobject

import "fmt"

// ---------------------------------------------------------------------------
// LoanStatus – immutable value object
// ---------------------------------------------------------------------------

// LoanStatus represents the lifecycle stage of a loan, from draft to a
// terminal state.
type LoanStatus struct {
	value string
}

const (
	loanStatusDraft           = "draft"
	loanStatusSubmitted       = "submitted"
	loanStatusUnderReview     = "under_review"
	loanStatusApproved        = "approved"
	loanStatusRejected        = "rejected"
	loanStatusDisbursed       = "disbursed"
	loanStatusActive          = "active"
	loanStatusRepaymentActive = "repayment_active"
	loanStatusInArrears       = "in_arrears"
	loanStatusRestructured    = "restructured"
	loanStatusRescheduled     = "rescheduled"
	loanStatusCompleted       = "completed"
	loanStatusDefaulted       = "defaulted"
	loanStatusWrittenOff      = "written_off"
)

var (
	LoanStatusDraft           = LoanStatus{value: loanStatusDraft}
	LoanStatusSubmitted       = LoanStatus{value: loanStatusSubmitted}
	LoanStatusUnderReview     = LoanStatus{value: loanStatusUnderReview}
	LoanStatusApproved        = LoanStatus{value: loanStatusApproved}
	LoanStatusRejected        = LoanStatus{value: loanStatusRejected}
	LoanStatusDisbursed       = LoanStatus{value: loanStatusDisbursed}
	LoanStatusActive          = LoanStatus{value: loanStatusActive}
	LoanStatusRepaymentActive = LoanStatus{value: loanStatusRepaymentActive}
	LoanStatusInArrears       = LoanStatus{value: loanStatusInArrears}
	LoanStatusRestructured    = LoanStatus{value: loanStatusRestructured}
	LoanStatusRescheduled     = LoanStatus{value: loanStatusRescheduled}
	LoanStatusCompleted       = LoanStatus{value: loanStatusCompleted}
	LoanStatusDefaulted       = LoanStatus{value: loanStatusDefaulted}
	LoanStatusWrittenOff      = LoanStatus{value: loanStatusWrittenOff}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusDraft:           LoanStatusDraft,
	loanStatusSubmitted:       LoanStatusSubmitted,
	loanStatusUnderReview:     LoanStatusUnderReview,
	loanStatusApproved:        LoanStatusApproved,
	loanStatusRejected:        LoanStatusRejected,
	loanStatusDisbursed:       LoanStatusDisbursed,
	loanStatusActive:          LoanStatusActive,
	loanStatusRepaymentActive: LoanStatusRepaymentActive,
	loanStatusInArrears:       LoanStatusInArrears,
	loanStatusRestructured:    LoanStatusRestructured,
	loanStatusRescheduled:     LoanStatusRescheduled,
	loanStatusCompleted:       LoanStatusCompleted,
	loanStatusDefaulted:       LoanStatusDefaulted,
	loanStatusWrittenOff:      LoanStatusWrittenOff,
}

// AllLoanStatuses lists every status in lifecycle order.
func AllLoanStatuses() []LoanStatus {
	return []LoanStatus{
		LoanStatusDraft, LoanStatusSubmitted, LoanStatusUnderReview,
		LoanStatusApproved, LoanStatusRejected, LoanStatusDisbursed,
		LoanStatusActive, LoanStatusRepaymentActive, LoanStatusInArrears,
		LoanStatusRestructured, LoanStatusRescheduled, LoanStatusCompleted,
		LoanStatusDefaulted, LoanStatusWrittenOff,
	}
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }

// IsTerminal reports whether no further transition is possible.
func (s LoanStatus) IsTerminal() bool {
	switch s.value {
	case loanStatusCompleted, loanStatusRejected, loanStatusWrittenOff:
		return true
	}
	return false
}

// IsAmendable reports whether the loan request may still be amended.
func (s LoanStatus) IsAmendable() bool {
	return s.value == loanStatusDraft || s.value == loanStatusSubmitted
}

// AcceptsPayments reports whether repayments can be recorded.
func (s LoanStatus) AcceptsPayments() bool {
	switch s.value {
	case loanStatusDisbursed, loanStatusActive, loanStatusRepaymentActive,
		loanStatusInArrears, loanStatusRestructured, loanStatusRescheduled:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// LoanEventType – lifecycle trigger
// ---------------------------------------------------------------------------

// LoanEventType names an event that drives a lifecycle transition.
type LoanEventType string

const (
	EventSubmit         LoanEventType = "submit"
	EventStartReview    LoanEventType = "start_review"
	EventAutoApprove    LoanEventType = "auto_approve"
	EventApprove        LoanEventType = "approve"
	EventReject         LoanEventType = "reject"
	EventDisburse       LoanEventType = "disburse"
	EventActivate       LoanEventType = "activate"
	EventStartRepayment LoanEventType = "start_repayment"
	EventComplete       LoanEventType = "complete"
	EventMarkArrears    LoanEventType = "mark_arrears"
	EventCure           LoanEventType = "cure"
	EventDefault        LoanEventType = "default"
	EventRestructure    LoanEventType = "restructure"
	EventReschedule     LoanEventType = "reschedule"
	EventResume         LoanEventType = "resume"
	EventWriteOff       LoanEventType = "write_off"
)

// AllLoanEventTypes lists every lifecycle event.
func AllLoanEventTypes() []LoanEventType {
	return []LoanEventType{
		EventSubmit, EventStartReview, EventAutoApprove, EventApprove, EventReject,
		EventDisburse, EventActivate, EventStartRepayment, EventComplete,
		EventMarkArrears, EventCure, EventDefault, EventRestructure,
		EventReschedule, EventResume, EventWriteOff,
	}
}

// ParseLoanEventType converts a raw string into a LoanEventType.
func ParseLoanEventType(s string) (LoanEventType, error) {
	for _, e := range AllLoanEventTypes() {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("invalid loan event type: %q", s)
}

// ---------------------------------------------------------------------------
// InstallmentStatus – immutable value object
// ---------------------------------------------------------------------------

// InstallmentStatus tracks the payment state of one installment.
type InstallmentStatus struct {
	value string
}

const (
	installmentPending = "pending"
	installmentPaid    = "paid"
	installmentPartial = "partial"
	installmentOverdue = "overdue"
	installmentWaived  = "waived"
)

var (
	InstallmentPending = InstallmentStatus{value: installmentPending}
	InstallmentPaid    = InstallmentStatus{value: installmentPaid}
	InstallmentPartial = InstallmentStatus{value: installmentPartial}
	InstallmentOverdue = InstallmentStatus{value: installmentOverdue}
	InstallmentWaived  = InstallmentStatus{value: installmentWaived}
)

var validInstallmentStatuses = map[string]InstallmentStatus{
	installmentPending: InstallmentPending,
	installmentPaid:    InstallmentPaid,
	installmentPartial: InstallmentPartial,
	installmentOverdue: InstallmentOverdue,
	installmentWaived:  InstallmentWaived,
}

// NewInstallmentStatus creates an InstallmentStatus from a raw string.
func NewInstallmentStatus(s string) (InstallmentStatus, error) {
	v, ok := validInstallmentStatuses[s]
	if !ok {
		return InstallmentStatus{}, fmt.Errorf("invalid installment status: %q", s)
	}
	return v, nil
}

func (s InstallmentStatus) String() string { return s.value }

// Equal returns true when both statuses match.
func (s InstallmentStatus) Equal(other InstallmentStatus) bool { return s.value == other.value }

// IsSettled reports whether nothing more is owed on the installment.
func (s InstallmentStatus) IsSettled() bool {
	return s.value == installmentPaid || s.value == installmentWaived
}
