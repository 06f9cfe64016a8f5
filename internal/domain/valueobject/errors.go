package valueobject

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrValidation marks input rejected before any scoring work.
	ErrValidation = errors.New("validation failed")
	// ErrUpstreamUnavailable marks a weather or mobile-money provider failure.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
	// ErrVersionConflict is returned when an optimistic save loses a race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidTransition is returned for a (status, event) pair outside the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTerm       = errors.New("invalid term")
	// ErrInvalidHarvestDate is returned when the harvest precedes disbursement.
	ErrInvalidHarvestDate       = errors.New("harvest date before disbursement")
	ErrAutoApprovalNotPermitted = errors.New("auto-approval not permitted")
	ErrOverpayment              = errors.New("payment exceeds outstanding balance")
	ErrBorrowerInactive         = errors.New("borrower is deactivated")
)

// ValidationError describes which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
