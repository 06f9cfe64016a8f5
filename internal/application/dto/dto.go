package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// LoanRequest carries the borrower's requested loan.
type LoanRequest struct {
	ExpectedHarvestDate *time.Time      `json:"expected_harvest_date,omitempty"`
	Amount              decimal.Decimal `json:"amount" validate:"gt=0"`
	Sector              string          `json:"sector" validate:"required,oneof=agriculture retail transport services artisan gig_work other"`
	Purpose             string          `json:"purpose" validate:"required,max=500"`
	CropType            string          `json:"crop_type,omitempty"`
	Season              string          `json:"season,omitempty" validate:"omitempty,oneof=dry wet unknown"`
	Channel             string          `json:"channel" validate:"required,oneof=mobile_money bank cash"`
	TermMonths          int             `json:"term_months" validate:"gt=0,lte=60"`
}

// AssessBorrowerRequest asks for a risk assessment and indicative terms.
type AssessBorrowerRequest struct {
	BorrowerID string      `json:"borrower_id" validate:"required"`
	Loan       LoanRequest `json:"loan"`
}

// SubmitLoanApplicationRequest creates a loan and runs it through intake.
type SubmitLoanApplicationRequest struct {
	BorrowerID string      `json:"borrower_id" validate:"required"`
	Actor      string      `json:"actor" validate:"required"`
	Loan       LoanRequest `json:"loan"`
}

// ReviewLoanApplicationRequest records an underwriter's decision.
type ReviewLoanApplicationRequest struct {
	LoanID   string `json:"loan_id" validate:"required"`
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reviewer string `json:"reviewer" validate:"required"`
}

// DisburseLoanRequest releases funds for an approved loan.
type DisburseLoanRequest struct {
	LoanID string `json:"loan_id" validate:"required"`
	Actor  string `json:"actor" validate:"required"`
}

// RecordRepaymentRequest carries a received repayment.
type RecordRepaymentRequest struct {
	PaidAt    time.Time       `json:"paid_at" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	LoanID    string          `json:"loan_id" validate:"required"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference,omitempty"`
	Actor     string          `json:"actor" validate:"required"`
	// EventID makes the repayment idempotent when set.
	EventID string `json:"event_id,omitempty"`
}

// LoanEventMessage is an inbound lifecycle webhook.
type LoanEventMessage struct {
	Payload   json.RawMessage `json:"payload,omitempty"`
	LoanID    string          `json:"loanId" validate:"required"`
	EventType string          `json:"eventType" validate:"required"`
	EventID   string          `json:"eventId" validate:"required"`
}

// RepaymentPayload is the payload of a "repayment" webhook.
type RepaymentPayload struct {
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
}

// TransitionPayload is the optional payload of a lifecycle webhook.
type TransitionPayload struct {
	At    *time.Time `json:"at,omitempty"`
	Actor string     `json:"actor,omitempty"`
}

// RecalculateScoresRequest bounds a bulk re-evaluation.
type RecalculateScoresRequest struct {
	// BorrowerIDs restricts the run; empty means every active borrower.
	BorrowerIDs []string `json:"borrower_ids,omitempty"`
	Workers     int      `json:"workers" validate:"gte=0,lte=64"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// FactorResponse is one signal's share of the composite.
type FactorResponse struct {
	Signal       string  `json:"signal"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// AssessmentResponse is the external view of a risk assessment.
type AssessmentResponse struct {
	AssessedAt          time.Time          `json:"assessed_at"`
	SubScores           map[string]float64 `json:"sub_scores"`
	WeatherRisk         *float64           `json:"weather_risk,omitempty"`
	BorrowerID          string             `json:"borrower_id"`
	Tier                string             `json:"tier"`
	Level               string             `json:"risk_level"`
	Confidence          string             `json:"confidence"`
	ModelVersion        string             `json:"model_version"`
	Factors             []FactorResponse   `json:"factors,omitempty"`
	Score               int                `json:"score"`
	RiskScore           float64            `json:"risk_score"`
	ApprovalProbability float64            `json:"approval_probability"`
	IsFallback          bool               `json:"is_fallback"`
}

// TermsResponse is the external view of priced loan terms.
type TermsResponse struct {
	AnnualRate        decimal.Decimal `json:"annual_rate"`
	MaxAmount         decimal.Decimal `json:"max_amount"`
	ProcessingFee     decimal.Decimal `json:"processing_fee"`
	InsurancePremium  decimal.Decimal `json:"insurance_premium"`
	Recommendation    string          `json:"recommendation"`
	StabilityTier     string          `json:"stability_tier"`
	InsuranceRequired bool            `json:"insurance_required"`
}

// AssessBorrowerResponse pairs an assessment with indicative terms.
type AssessBorrowerResponse struct {
	Assessment AssessmentResponse `json:"assessment"`
	Terms      TermsResponse      `json:"terms"`
}

// InstallmentResponse is one row of a repayment schedule.
type InstallmentResponse struct {
	DueDate    time.Time       `json:"due_date"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	Principal  decimal.Decimal `json:"principal"`
	Interest   decimal.Decimal `json:"interest"`
	AmountDue  decimal.Decimal `json:"amount_due"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     string          `json:"status"`
	Sequence   int             `json:"sequence"`
}

// ScheduleResponse is a full repayment schedule.
type ScheduleResponse struct {
	Principal     decimal.Decimal       `json:"principal"`
	AnnualRate    decimal.Decimal       `json:"annual_rate"`
	TotalInterest decimal.Decimal       `json:"total_interest"`
	TotalDue      decimal.Decimal       `json:"total_due"`
	Installments  []InstallmentResponse `json:"installments"`
	HarvestLinked bool                  `json:"harvest_linked"`
}

// LoanResponse is the external view of a loan.
type LoanResponse struct {
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Assessment     *AssessmentResponse `json:"assessment,omitempty"`
	Terms          *TermsResponse      `json:"terms,omitempty"`
	Schedule       *ScheduleResponse   `json:"schedule,omitempty"`
	ID             string              `json:"id"`
	BorrowerID     string              `json:"borrower_id"`
	Status         string              `json:"status"`
	Amount         decimal.Decimal     `json:"amount"`
	ApprovedAmount decimal.Decimal     `json:"approved_amount"`
	Outstanding    decimal.Decimal     `json:"outstanding"`
	TermMonths     int                 `json:"term_months"`
	Version        int                 `json:"version"`
}

// RepaymentResponse reports how a repayment was applied.
type RepaymentResponse struct {
	LoanID            string          `json:"loan_id"`
	LoanStatus        string          `json:"loan_status"`
	Allocated         decimal.Decimal `json:"allocated"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	Settled           int             `json:"installments_settled"`
	EarlyInstallments int             `json:"early_installments"`
	Duplicate         bool            `json:"duplicate,omitempty"`
}

// LoanEventResult reports the outcome of an inbound webhook.
type LoanEventResult struct {
	LoanID     string `json:"loan_id"`
	EventID    string `json:"event_id"`
	LoanStatus string `json:"loan_status"`
	Score      int    `json:"score,omitempty"`
	Duplicate  bool   `json:"duplicate"`
}

// ScoreHistoryEntry is one entry of a borrower's score history.
type ScoreHistoryEntry struct {
	At            time.Time `json:"at"`
	Reason        string    `json:"reason"`
	Tier          string    `json:"tier"`
	SourceEventID string    `json:"source_event_id,omitempty"`
	Score         int       `json:"score"`
	Delta         int       `json:"delta"`
	IsFallback    bool      `json:"is_fallback,omitempty"`
}

// CreditScoreResponse is the external view of a borrower's score record.
type CreditScoreResponse struct {
	UpdatedAt  time.Time           `json:"updated_at"`
	Factors    map[string]float64  `json:"factors"`
	BorrowerID string              `json:"borrower_id"`
	Tier       string              `json:"tier"`
	History    []ScoreHistoryEntry `json:"history"`
	Score      int                 `json:"score"`
	Version    int                 `json:"version"`
	IsFallback bool                `json:"is_fallback"`
}

// SweepArrearsResponse summarises an arrears sweep.
type SweepArrearsResponse struct {
	LoansChecked   int `json:"loans_checked"`
	NewlyOverdue   int `json:"installments_newly_overdue"`
	MovedToArrears int `json:"moved_to_arrears"`
	Failed         int `json:"failed"`
}

// RecalculateScoresResponse summarises a bulk re-evaluation.
type RecalculateScoresResponse struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Fallbacks int `json:"fallbacks"`
	Failed    int `json:"failed"`
}
