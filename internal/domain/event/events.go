package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/microcredit/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	aggregateBorrower = "Borrower"
	aggregateLoan     = "Loan"
)

// Event type names as published on the wire.
const (
	TypeRiskAssessed       = "microcredit.borrower.risk_assessed"
	TypeLoanStatusChanged  = "microcredit.loan.status_changed"
	TypeRepaymentRecorded  = "microcredit.loan.repayment_recorded"
	TypeCreditScoreUpdated = "microcredit.borrower.credit_score_updated"
)

// ---------------------------------------------------------------------------
// Scoring Events
// ---------------------------------------------------------------------------

// RiskAssessed is raised when a borrower is scored for a loan request.
type RiskAssessed struct {
	events.BaseEvent
	BorrowerID     string  `json:"borrower_id"`
	LoanID         string  `json:"loan_id,omitempty"`
	Tier           string  `json:"tier"`
	Recommendation string  `json:"recommendation,omitempty"`
	RiskScore      float64 `json:"risk_score"`
	Score          int     `json:"score"`
	IsFallback     bool    `json:"is_fallback"`
}

func NewRiskAssessed(
	borrowerID, loanID string,
	score int, tier string, riskScore float64, isFallback bool,
	recommendation string, at time.Time,
) RiskAssessed {
	return RiskAssessed{
		BaseEvent:      events.NewBaseEvent(TypeRiskAssessed, borrowerID, aggregateBorrower, at),
		BorrowerID:     borrowerID,
		LoanID:         loanID,
		Score:          score,
		Tier:           tier,
		RiskScore:      riskScore,
		IsFallback:     isFallback,
		Recommendation: recommendation,
	}
}

// CreditScoreUpdated is raised when a borrower's score record gains a history entry.
type CreditScoreUpdated struct {
	events.BaseEvent
	BorrowerID    string `json:"borrower_id"`
	Reason        string `json:"reason"`
	Tier          string `json:"tier"`
	SourceEventID string `json:"source_event_id,omitempty"`
	PreviousScore int    `json:"previous_score"`
	Score         int    `json:"score"`
	Delta         int    `json:"delta"`
}

func NewCreditScoreUpdated(
	borrowerID string, previous, score, delta int,
	tier, reason, sourceEventID string, at time.Time,
) CreditScoreUpdated {
	return CreditScoreUpdated{
		BaseEvent:     events.NewBaseEvent(TypeCreditScoreUpdated, borrowerID, aggregateBorrower, at),
		BorrowerID:    borrowerID,
		PreviousScore: previous,
		Score:         score,
		Delta:         delta,
		Tier:          tier,
		Reason:        reason,
		SourceEventID: sourceEventID,
	}
}

// ---------------------------------------------------------------------------
// Loan Events
// ---------------------------------------------------------------------------

// LoanStatusChanged is raised on every lifecycle transition.
type LoanStatusChanged struct {
	events.BaseEvent
	LoanID     string `json:"loan_id"`
	BorrowerID string `json:"borrower_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Trigger    string `json:"trigger"`
	Actor      string `json:"actor"`
}

func NewLoanStatusChanged(
	loanID, borrowerID, from, to, trigger, actor string, at time.Time,
) LoanStatusChanged {
	return LoanStatusChanged{
		BaseEvent:  events.NewBaseEvent(TypeLoanStatusChanged, loanID, aggregateLoan, at),
		LoanID:     loanID,
		BorrowerID: borrowerID,
		From:       from,
		To:         to,
		Trigger:    trigger,
		Actor:      actor,
	}
}

// RepaymentRecorded is raised when a payment is allocated to a loan schedule.
type RepaymentRecorded struct {
	events.BaseEvent
	LoanID      string          `json:"loan_id"`
	BorrowerID  string          `json:"borrower_id"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func NewRepaymentRecorded(
	loanID, borrowerID string, amount, outstanding decimal.Decimal,
	method, reference string, at time.Time,
) RepaymentRecorded {
	return RepaymentRecorded{
		BaseEvent:   events.NewBaseEvent(TypeRepaymentRecorded, loanID, aggregateLoan, at),
		LoanID:      loanID,
		BorrowerID:  borrowerID,
		Amount:      amount,
		Outstanding: outstanding,
		Method:      method,
		Reference:   reference,
	}
}
