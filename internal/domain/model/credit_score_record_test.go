package model_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

func recomputed(score int) model.RiskAssessment {
	return model.RiskAssessment{
		Score:     score,
		SubScores: model.SignalSet{model.SignalOccupation: 60},
	}
}

func TestCreditScoreRecord_ApplyUsesFreshRecomputation(t *testing.T) {
	rec, err := model.NewCreditScoreRecord("borrower-001")
	require.NoError(t, err)
	assert.True(t, rec.IsNew())

	rec, applied := rec.Apply(model.ScoreUpdate{
		Assessment: recomputed(640), Reason: valueobject.ReasonInitial, At: disbursed,
	})
	require.True(t, applied)
	assert.Equal(t, 640, rec.Score())
	assert.Equal(t, valueobject.RiskTierFair, rec.Tier())

	rec, applied = rec.Apply(model.ScoreUpdate{
		Assessment: recomputed(650), Delta: 35, Reason: valueobject.ReasonRepayment, EventID: "evt-1", At: disbursed,
	})
	require.True(t, applied)
	assert.Equal(t, 685, rec.Score(), "delta is added to the recomputation, not the stored score")
	assert.Equal(t, valueobject.RiskTierGood, rec.Tier())

	history := rec.History()
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.ReasonRepayment, history[1].Reason)
	assert.Equal(t, 35, history[1].Delta)
	assert.Equal(t, "evt-1", history[1].SourceEventID)
	assert.InDelta(t, 60, history[1].Factors["occupation"], 1e-9)
}

func TestCreditScoreRecord_DuplicateEventIsNoop(t *testing.T) {
	rec, _ := model.NewCreditScoreRecord("borrower-001")
	update := model.ScoreUpdate{Assessment: recomputed(700), Delta: -25, Reason: valueobject.ReasonRepayment, EventID: "evt-9", At: disbursed}

	first, applied := rec.Apply(update)
	require.True(t, applied)

	second, applied := first.Apply(update)
	assert.False(t, applied)
	assert.Equal(t, first.Score(), second.Score())
	assert.Len(t, second.History(), 1)
}

func TestCreditScoreRecord_HistoryIsFIFOBounded(t *testing.T) {
	rec, _ := model.NewCreditScoreRecord("borrower-001")
	for i := 0; i < 25; i++ {
		rec, _ = rec.Apply(model.ScoreUpdate{
			Assessment: recomputed(400 + i),
			Reason:     valueobject.ReasonPeriodicReevaluation,
			EventID:    fmt.Sprintf("evt-%d", i),
			At:         disbursed.Add(time.Duration(i) * time.Hour),
		})
	}

	history := rec.History()
	require.Len(t, history, model.MaxScoreHistory)
	assert.Equal(t, 405, history[0].Score, "the five oldest entries were evicted")
	assert.Equal(t, 424, history[19].Score)
	assert.True(t, rec.HasApplied("evt-0"), "event ids outlive history entries")
}

func TestCreditScoreRecord_Clamps(t *testing.T) {
	rec, _ := model.NewCreditScoreRecord("borrower-001")

	rec, _ = rec.Apply(model.ScoreUpdate{Assessment: recomputed(320), Delta: -60, Reason: valueobject.ReasonDefaulted})
	assert.Equal(t, 300, rec.Score())

	rec, _ = rec.Apply(model.ScoreUpdate{Assessment: recomputed(840), Delta: 35, Reason: valueobject.ReasonRepayment})
	assert.Equal(t, 850, rec.Score())
	assert.Equal(t, valueobject.RiskTierExcellent, rec.Tier())
}

func TestCreditScoreRecord_SnapshotRoundTrip(t *testing.T) {
	rec, _ := model.NewCreditScoreRecord("borrower-001")
	rec, _ = rec.Apply(model.ScoreUpdate{Assessment: recomputed(610), Reason: valueobject.ReasonInitial, EventID: "e1"})

	snap := rec.Snapshot()
	snap.Version = 4
	back := model.ReconstructCreditScoreRecord(snap)

	assert.Equal(t, 610, back.Score())
	assert.Equal(t, 4, back.Version())
	assert.True(t, back.HasApplied("e1"))
	assert.False(t, back.IsNew())
}
