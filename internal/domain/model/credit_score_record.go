package model

import (
	"errors"
	"time"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

const (
	// MaxScoreHistory is the number of snapshots a record retains.
	MaxScoreHistory = 20
	// maxRecordEvents bounds the remembered source event IDs.
	maxRecordEvents = 64
)

// ScoreSnapshot is one history entry of a credit score record.
type ScoreSnapshot struct {
	At            time.Time               `json:"at"`
	Factors       map[string]float64      `json:"factors,omitempty"`
	Reason        valueobject.ScoreReason `json:"reason"`
	Tier          valueobject.RiskTier    `json:"tier"`
	SourceEventID string                  `json:"source_event_id,omitempty"`
	Score         int                     `json:"score"`
	Delta         int                     `json:"delta"`
	IsFallback    bool                    `json:"is_fallback,omitempty"`
}

// ScoreUpdate is a scoring event to fold into a record.
type ScoreUpdate struct {
	At time.Time
	// Assessment is the fresh recomputation; Delta is applied on top of it.
	Assessment RiskAssessment
	Reason     valueobject.ScoreReason
	// EventID makes the update idempotent when set.
	EventID string
	Delta   int
}

// ---------------------------------------------------------------------------
// CreditScoreRecord aggregate
// ---------------------------------------------------------------------------

// CreditScoreRecord is the single score document per borrower. It is an
// immutable aggregate; Apply returns a new copy.
type CreditScoreRecord struct {
	updatedAt     time.Time
	factors       map[string]float64
	borrowerID    string
	tier          valueobject.RiskTier
	history       []ScoreSnapshot
	appliedEvents []string
	score         int
	version       int
	isFallback    bool
}

// NewCreditScoreRecord creates an empty record for a borrower.
func NewCreditScoreRecord(borrowerID string) (CreditScoreRecord, error) {
	if borrowerID == "" {
		return CreditScoreRecord{}, errors.New("borrower ID is required")
	}
	return CreditScoreRecord{borrowerID: borrowerID}, nil
}

// CreditScoreSnapshot carries every persisted field of a record.
type CreditScoreSnapshot struct {
	UpdatedAt     time.Time
	Factors       map[string]float64
	BorrowerID    string
	Tier          valueobject.RiskTier
	History       []ScoreSnapshot
	AppliedEvents []string
	Score         int
	Version       int
	IsFallback    bool
}

// ReconstructCreditScoreRecord rebuilds a record from persistence.
func ReconstructCreditScoreRecord(s CreditScoreSnapshot) CreditScoreRecord {
	return CreditScoreRecord{
		borrowerID:    s.BorrowerID,
		score:         s.Score,
		tier:          s.Tier,
		factors:       s.Factors,
		history:       s.History,
		appliedEvents: s.AppliedEvents,
		isFallback:    s.IsFallback,
		version:       s.Version,
		updatedAt:     s.UpdatedAt,
	}
}

// Snapshot exposes every persisted field.
func (r CreditScoreRecord) Snapshot() CreditScoreSnapshot {
	return CreditScoreSnapshot{
		BorrowerID:    r.borrowerID,
		Score:         r.score,
		Tier:          r.tier,
		Factors:       r.Factors(),
		History:       r.History(),
		AppliedEvents: append([]string(nil), r.appliedEvents...),
		IsFallback:    r.isFallback,
		Version:       r.version,
		UpdatedAt:     r.updatedAt,
	}
}

// Apply folds a scoring event into the record. The delta is added to the
// fresh recomputation rather than the stored score, so an event never counts
// twice. An update whose EventID was already applied is a no-op and returns
// applied=false.
func (r CreditScoreRecord) Apply(u ScoreUpdate) (next CreditScoreRecord, applied bool) {
	if u.EventID != "" && r.HasApplied(u.EventID) {
		return r, false
	}

	score := valueobject.ClampScore(u.Assessment.Score + u.Delta)
	tier := valueobject.TierForScore(score)
	factors := u.Assessment.FactorBreakdown()

	next = r
	next.score = score
	next.tier = tier
	next.factors = factors
	next.isFallback = u.Assessment.IsFallback
	next.updatedAt = u.At
	next.history = appendBounded(append([]ScoreSnapshot(nil), r.history...), ScoreSnapshot{
		Score:         score,
		Tier:          tier,
		Reason:        u.Reason,
		Delta:         u.Delta,
		SourceEventID: u.EventID,
		Factors:       factors,
		IsFallback:    u.Assessment.IsFallback,
		At:            u.At,
	}, MaxScoreHistory)
	next.appliedEvents = append([]string(nil), r.appliedEvents...)
	if u.EventID != "" {
		next.appliedEvents = appendBounded(next.appliedEvents, u.EventID, maxRecordEvents)
	}
	return next, true
}

// HasApplied reports whether the event ID is among the recently applied ones.
func (r CreditScoreRecord) HasApplied(eventID string) bool {
	for _, id := range r.appliedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

// IsNew reports whether the record has never been persisted.
func (r CreditScoreRecord) IsNew() bool { return r.version == 0 }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (r CreditScoreRecord) BorrowerID() string         { return r.borrowerID }
func (r CreditScoreRecord) Score() int                 { return r.score }
func (r CreditScoreRecord) Tier() valueobject.RiskTier { return r.tier }
func (r CreditScoreRecord) IsFallback() bool           { return r.isFallback }
func (r CreditScoreRecord) Version() int               { return r.version }
func (r CreditScoreRecord) UpdatedAt() time.Time       { return r.updatedAt }

// History returns the snapshots, oldest first.
func (r CreditScoreRecord) History() []ScoreSnapshot {
	out := make([]ScoreSnapshot, len(r.history))
	copy(out, r.history)
	return out
}

// Factors returns a copy of the current factor breakdown.
func (r CreditScoreRecord) Factors() map[string]float64 {
	out := make(map[string]float64, len(r.factors))
	for k, v := range r.factors {
		out[k] = v
	}
	return out
}
