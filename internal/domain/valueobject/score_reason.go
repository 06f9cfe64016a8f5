package valueobject

import "fmt"

// ScoreReason tags why a credit score snapshot was taken.
type ScoreReason string

const (
	ReasonInitial              ScoreReason = "initial"
	ReasonDisbursed            ScoreReason = "disbursed"
	ReasonRepayment            ScoreReason = "repayment"
	ReasonRepaymentMissed      ScoreReason = "repayment_missed"
	ReasonCompleted            ScoreReason = "completed"
	ReasonDefaulted            ScoreReason = "defaulted"
	ReasonPeriodicReevaluation ScoreReason = "periodic_reevaluation"
	ReasonFallback             ScoreReason = "fallback"
)

var validScoreReasons = map[ScoreReason]struct{}{
	ReasonInitial: {}, ReasonDisbursed: {}, ReasonRepayment: {},
	ReasonRepaymentMissed: {}, ReasonCompleted: {}, ReasonDefaulted: {},
	ReasonPeriodicReevaluation: {}, ReasonFallback: {},
}

// ParseScoreReason converts a raw string into a ScoreReason.
func ParseScoreReason(s string) (ScoreReason, error) {
	r := ScoreReason(s)
	if _, ok := validScoreReasons[r]; !ok {
		return "", fmt.Errorf("invalid score reason: %q", s)
	}
	return r, nil
}

func (r ScoreReason) String() string { return string(r) }
