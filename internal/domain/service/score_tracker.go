package service

import (
	"log/slog"
	"time"

	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	"github.com/bibbank/microcredit/pkg/observability"
)

// Score deltas per event.
const (
	deltaCompleted      = 25
	deltaDefaulted      = -60
	deltaHighOnTime     = 35
	deltaLowOnTime      = -25
	deltaMissedLow      = -25
	deltaMissed         = -10
	deltaPerEarly       = 5
	highOnTimeThreshold = 0.9
	lowOnTimeThreshold  = 0.5
)

// DeltaContext is the event detail a delta depends on.
type DeltaContext struct {
	// OnTimeRate is the borrower's on-time rate after the event.
	OnTimeRate        *float64
	EarlyInstallments int
}

// ScoreDelta returns the fixed score delta for an event.
func ScoreDelta(reason valueobject.ScoreReason, c DeltaContext) int {
	switch reason {
	case valueobject.ReasonRepayment:
		delta := 0
		if c.OnTimeRate != nil {
			switch {
			case *c.OnTimeRate > highOnTimeThreshold:
				delta = deltaHighOnTime
			case *c.OnTimeRate < lowOnTimeThreshold:
				delta = deltaLowOnTime
			}
		}
		return delta + deltaPerEarly*c.EarlyInstallments
	case valueobject.ReasonRepaymentMissed:
		if c.OnTimeRate != nil && *c.OnTimeRate < lowOnTimeThreshold {
			return deltaMissedLow
		}
		return deltaMissed
	case valueobject.ReasonCompleted:
		return deltaCompleted
	case valueobject.ReasonDefaulted:
		return deltaDefaulted
	default:
		return 0
	}
}

// TrackRequest is one scoring event for the tracker.
type TrackRequest struct {
	At      time.Time
	Result  ScoringResult
	Context DeltaContext
	Reason  valueobject.ScoreReason
	EventID string
}

// TrackOutcome reports what the tracker did.
type TrackOutcome struct {
	Event    event.DomainEvent
	Record   model.CreditScoreRecord
	Previous int
	Applied  bool
}

// ScoreTracker folds fresh recomputations plus event deltas into a
// borrower's score record. It never calls the scoring engine itself.
type ScoreTracker struct {
	logger *slog.Logger
}

// NewScoreTracker creates a tracker.
func NewScoreTracker(logger *slog.Logger) *ScoreTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreTracker{logger: logger}
}

// Track applies one event. A replayed event ID leaves the record unchanged
// and reports Applied=false.
func (t *ScoreTracker) Track(rec model.CreditScoreRecord, req TrackRequest) TrackOutcome {
	assessment := req.Result.Assessment()
	reason := req.Reason
	delta := ScoreDelta(reason, req.Context)

	next, applied := rec.Apply(model.ScoreUpdate{
		Assessment: assessment,
		Delta:      delta,
		Reason:     reason,
		EventID:    req.EventID,
		At:         req.At,
	})
	out := TrackOutcome{Record: next, Previous: rec.Score(), Applied: applied}
	if !applied {
		observability.DuplicateEventsTotal.Inc()
		t.logger.Info("score event already applied", "borrower_id", rec.BorrowerID(), "event_id", req.EventID)
		return out
	}

	observability.ScoreUpdatesTotal.WithLabelValues(string(reason)).Inc()
	out.Event = event.NewCreditScoreUpdated(
		next.BorrowerID(), rec.Score(), next.Score(), delta,
		next.Tier().String(), string(reason), req.EventID, req.At,
	)
	return out
}
