package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/usecase"
	"github.com/bibbank/microcredit/internal/domain/event"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/service"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func clockAt(t time.Time) usecase.Option {
	return usecase.WithClock(func() time.Time { return t })
}

// --- In-memory repositories with optimistic concurrency ---

type memBorrowers struct {
	mu   sync.Mutex
	rows map[string]model.BorrowerProfile
}

func newMemBorrowers(profiles ...model.BorrowerProfile) *memBorrowers {
	m := &memBorrowers{rows: map[string]model.BorrowerProfile{}}
	for _, p := range profiles {
		m.rows[p.ID()] = p
	}
	return m
}

func (m *memBorrowers) Load(_ context.Context, id string) (model.BorrowerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return model.BorrowerProfile{}, valueobject.ErrNotFound
	}
	return p, nil
}

func (m *memBorrowers) Save(_ context.Context, p model.BorrowerProfile, expected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[p.ID()]; ok && cur.Version() != expected || !ok && expected != 0 {
		return valueobject.ErrVersionConflict
	}
	m.rows[p.ID()] = model.ReconstructBorrowerProfile(p.ID(), p.Attributes(), p.Active(), expected+1, p.CreatedAt(), p.UpdatedAt())
	return nil
}

func (m *memBorrowers) ListActiveIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.rows {
		if p.Active() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memLoans struct {
	mu        sync.Mutex
	rows      map[string]model.Loan
	conflicts int // forced conflicts before saves succeed
	saves     int
}

func newMemLoans(loans ...model.Loan) *memLoans {
	m := &memLoans{rows: map[string]model.Loan{}}
	for _, l := range loans {
		m.rows[l.ID()] = l
	}
	return m
}

func (m *memLoans) Load(_ context.Context, id string) (model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return model.Loan{}, valueobject.ErrNotFound
	}
	return l, nil
}

func (m *memLoans) Save(_ context.Context, l model.Loan, expected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.conflicts > 0 {
		m.conflicts--
		return valueobject.ErrVersionConflict
	}
	if cur, ok := m.rows[l.ID()]; ok && cur.Version() != expected || !ok && expected != 0 {
		return valueobject.ErrVersionConflict
	}
	s := l.ClearEvents().Snapshot()
	s.Version = expected + 1
	m.rows[l.ID()] = model.ReconstructLoan(s)
	return nil
}

func (m *memLoans) ListByBorrower(_ context.Context, borrowerID string) ([]model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Loan
	for _, l := range m.rows {
		if l.BorrowerID() == borrowerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLoans) ListByStatus(_ context.Context, statuses ...valueobject.LoanStatus) ([]model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Loan
	for _, l := range m.rows {
		for _, s := range statuses {
			if l.Status().Equal(s) {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (m *memLoans) get(t *testing.T, id string) model.Loan {
	t.Helper()
	l, err := m.Load(context.Background(), id)
	require.NoError(t, err)
	return l
}

type memScores struct {
	mu   sync.Mutex
	rows map[string]model.CreditScoreRecord
}

func newMemScores() *memScores { return &memScores{rows: map[string]model.CreditScoreRecord{}} }

func (m *memScores) Load(_ context.Context, id string) (model.CreditScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.CreditScoreRecord{}, valueobject.ErrNotFound
	}
	return r, nil
}

func (m *memScores) Save(_ context.Context, r model.CreditScoreRecord, expected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[r.BorrowerID()]; ok && cur.Version() != expected || !ok && expected != 0 {
		return valueobject.ErrVersionConflict
	}
	s := r.Snapshot()
	s.Version = expected + 1
	m.rows[r.BorrowerID()] = model.ReconstructCreditScoreRecord(s)
	return nil
}

// --- Publisher and deduplicator ---

type mockPublisher struct {
	mu          sync.Mutex
	publishFunc func(ctx context.Context, events ...event.DomainEvent) error
	published   []event.DomainEvent
}

func (m *mockPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, evts...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, evts...)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.published))
	for _, e := range m.published {
		out = append(out, e.EventType())
	}
	return out
}

type memDedupe struct {
	mu       sync.Mutex
	claimed  map[string]bool
	err      error
	released []string
}

func newMemDedupe() *memDedupe { return &memDedupe{claimed: map[string]bool{}} }

func (m *memDedupe) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *memDedupe) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	m.released = append(m.released, id)
	return nil
}

// --- Fixtures ---

func vendor(t *testing.T) model.BorrowerProfile {
	t.Helper()
	p, err := model.NewBorrowerProfile("vendor-1", model.BorrowerAttributes{
		Sector:            valueobject.SectorRetail,
		Occupation:        "market vendor",
		Region:            "kampala",
		MonthlyIncome:     decimal.NewFromInt(1_000_000),
		IncomeConsistency: valueobject.IncomeStable,
	}, testNow)
	require.NoError(t, err)
	return p
}

// establishedTrader scores at the top of the scale.
func establishedTrader(t *testing.T) model.BorrowerProfile {
	t.Helper()
	p, err := model.NewBorrowerProfile("trader-1", model.BorrowerAttributes{
		Sector:                  valueobject.SectorServices,
		Occupation:              "tailor",
		Region:                  "gulu",
		MonthlyIncome:           decimal.NewFromInt(2_500_000),
		IncomeConsistency:       valueobject.IncomeStable,
		BusinessYears:           5,
		TransactionConsistency:  ptr(90.0),
		InsuranceParticipation:  ptr(true),
		InvestmentParticipation: ptr(true),
		SocialCapital:           &model.SocialCapital{GroupMemberships: 2, References: 3, CommunityYears: 10, Guarantors: 2},
		PriorPerformance: model.LoanPerformance{
			TotalLoans: 5, CompletedLoans: 5, RepaymentRate: ptr(1.0), OnTimeRate: ptr(1.0),
		},
	}, testNow)
	require.NoError(t, err)
	return p
}

func policy() service.LendingPolicy { return service.DefaultLendingPolicy() }

type harness struct {
	borrowers *memBorrowers
	loans     *memLoans
	scores    *memScores
	publisher *mockPublisher
	engine    *service.ScoringEngine
	pricing   *service.PricingEngine
	reviser   *usecase.ScoreReviser
	opts      []usecase.Option
}

func newHarness(t *testing.T, now time.Time, profiles ...model.BorrowerProfile) *harness {
	t.Helper()
	h := &harness{
		borrowers: newMemBorrowers(profiles...),
		loans:     newMemLoans(),
		scores:    newMemScores(),
		publisher: &mockPublisher{},
		engine: service.NewScoringEngine(nil, quietLogger(),
			service.WithClock(func() time.Time { return now })),
		pricing: service.NewPricingEngine(policy()),
		opts:    []usecase.Option{clockAt(now), usecase.WithLogger(quietLogger())},
	}
	h.reviser = usecase.NewScoreReviser(h.borrowers, h.loans, h.scores, h.publisher,
		h.engine, service.NewScoreTracker(quietLogger()), h.opts...)
	return h
}

// approvedLoan walks a loan through intake and approval.
func approvedLoan(t *testing.T, borrowerID string, amount int64, term int, at time.Time) model.Loan {
	t.Helper()
	req := model.LoanRequest{
		Amount:     decimal.NewFromInt(amount),
		TermMonths: term,
		Sector:     valueobject.SectorRetail,
		Purpose:    "stock",
		Channel:    valueobject.ChannelMobileMoney,
	}
	loan, err := model.NewLoan(borrowerID, req, policy().LoanBounds, at)
	require.NoError(t, err)
	loan, err = loan.Apply(valueobject.EventSubmit, "borrower", at)
	require.NoError(t, err)
	loan, err = loan.AttachAssessment(
		model.RiskAssessment{BorrowerID: borrowerID, Score: 700, ApprovalProbability: 0.73},
		model.LoanTerms{AnnualRate: decimal.Zero, Recommendation: valueobject.RecommendReview},
		at,
	)
	require.NoError(t, err)
	for _, evt := range []valueobject.LoanEventType{valueobject.EventStartReview, valueobject.EventApprove} {
		loan, err = loan.Apply(evt, "officer", at)
		require.NoError(t, err)
	}
	return loan.ClearEvents()
}

// disbursedLoan disburses an approved 0% loan at the given time.
func disbursedLoan(t *testing.T, borrowerID string, amount int64, term int, at time.Time) model.Loan {
	t.Helper()
	loan := approvedLoan(t, borrowerID, amount, term, at)
	sched, err := model.GenerateSchedule(model.ScheduleParams{
		Principal:   loan.ApprovedAmount(),
		AnnualRate:  decimal.Zero,
		TermMonths:  term,
		DisbursedAt: at,
	})
	require.NoError(t, err)
	loan, err = loan.Disburse(sched, "officer", at)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func decimalOf(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// activeLoan is a disbursed loan the borrower has started using.
func activeLoan(t *testing.T, borrowerID string, amount int64, term int, at time.Time) model.Loan {
	t.Helper()
	loan, err := disbursedLoan(t, borrowerID, amount, term, at).Apply(valueobject.EventActivate, "system", at)
	require.NoError(t, err)
	return loan.ClearEvents()
}
