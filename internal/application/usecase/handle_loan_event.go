package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/model"
	"github.com/bibbank/microcredit/internal/domain/port"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	"github.com/bibbank/microcredit/pkg/observability"
)

// Webhook event types beyond the lifecycle event names.
const (
	EventTypeRepayment       = "repayment"
	EventTypeRepaymentMissed = "repayment_missed"

	webhookActor = "webhook"
)

// HandleLoanEventUseCase ingests lifecycle webhooks. Delivery is
// at-least-once: the event ID is claimed in the deduplicator first, and the
// loan and score record each remember applied IDs, so a redelivered or
// concurrently delivered event changes state once.
type HandleLoanEventUseCase struct {
	loans     port.LoanRepository
	dedupe    port.EventDeduplicator
	publisher port.EventPublisher
	reviser   *ScoreReviser
	opts      options
}

// NewHandleLoanEventUseCase wires dependencies. dedupe may be nil.
func NewHandleLoanEventUseCase(
	loans port.LoanRepository,
	dedupe port.EventDeduplicator,
	publisher port.EventPublisher,
	reviser *ScoreReviser,
	opts ...Option,
) *HandleLoanEventUseCase {
	return &HandleLoanEventUseCase{
		loans:     loans,
		dedupe:    dedupe,
		publisher: publisher,
		reviser:   reviser,
		opts:      buildOptions(opts),
	}
}

// Execute applies one webhook message.
func (uc *HandleLoanEventUseCase) Execute(ctx context.Context, msg dto.LoanEventMessage) (dto.LoanEventResult, error) {
	ctx, span := startSpan(ctx, "handle_loan_event")
	resp, err := uc.execute(ctx, msg)
	span.end(err)
	return resp, err
}

func (uc *HandleLoanEventUseCase) execute(
	ctx context.Context,
	msg dto.LoanEventMessage,
) (dto.LoanEventResult, error) {
	if err := dto.Validate(msg); err != nil {
		return dto.LoanEventResult{}, err
	}

	// 1. Claim the event. A dedupe outage is not fatal: the loan's applied
	// event log and the optimistic save still stop double application.
	if uc.dedupe != nil {
		claimed, err := uc.dedupe.Claim(ctx, msg.EventID)
		switch {
		case err != nil:
			uc.opts.logger.WarnContext(ctx, "event dedupe unavailable",
				"event_id", msg.EventID, "error", err)
		case !claimed:
			observability.DuplicateEventsTotal.Inc()
			uc.opts.logger.InfoContext(ctx, "duplicate loan event dropped",
				"loan_id", msg.LoanID, "event_id", msg.EventID)
			return dto.LoanEventResult{LoanID: msg.LoanID, EventID: msg.EventID, Duplicate: true}, nil
		}
	}

	// 2. Apply; on failure release the claim so redelivery can retry.
	result, err := uc.handle(ctx, msg)
	if err != nil {
		if uc.dedupe != nil {
			if rerr := uc.dedupe.Release(ctx, msg.EventID); rerr != nil {
				uc.opts.logger.WarnContext(ctx, "failed to release event claim",
					"event_id", msg.EventID, "error", rerr)
			}
		}
		return dto.LoanEventResult{}, err
	}
	return result, nil
}

func (uc *HandleLoanEventUseCase) handle(ctx context.Context, msg dto.LoanEventMessage) (dto.LoanEventResult, error) {
	var (
		loan      model.Loan
		rev       *Revision
		duplicate bool
	)
	err := withVersionRetry(ctx, "loan", uc.opts.attempts, func() error {
		current, err := uc.loans.Load(ctx, msg.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if current.HasApplied(msg.EventID) {
			loan, rev, duplicate = current, replayRevision(current, msg, uc.opts.now()), true
			return nil
		}
		next, r, err := uc.apply(current, msg)
		if err != nil {
			return err
		}
		next = next.MarkApplied(msg.EventID)
		if err := uc.loans.Save(ctx, next, current.Version()); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		countTransitions(current, next)
		loan, rev, duplicate = next, r, false
		return nil
	})
	if err != nil {
		return dto.LoanEventResult{}, err
	}

	if duplicate {
		observability.DuplicateEventsTotal.Inc()
	} else if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.LoanEventResult{}, fmt.Errorf("publish events: %w", err)
	}

	result := dto.LoanEventResult{
		LoanID:     loan.ID(),
		EventID:    msg.EventID,
		LoanStatus: loan.Status().String(),
		Duplicate:  duplicate,
	}
	// The score record remembers event IDs too, so replaying the revision
	// after a partial failure is safe.
	if rev != nil && uc.reviser != nil {
		out, err := uc.reviser.Revise(ctx, *rev)
		if err != nil {
			return dto.LoanEventResult{}, fmt.Errorf("revise score: %w", err)
		}
		result.Score = out.Record.Score()
	}

	uc.opts.logger.InfoContext(ctx, "loan event handled",
		"loan_id", loan.ID(),
		"event_id", msg.EventID,
		"event_type", msg.EventType,
		"status", loan.Status().String(),
		"duplicate", duplicate,
	)
	return result, nil
}

// apply maps a webhook onto the loan aggregate and returns the score event
// it implies, if any.
func (uc *HandleLoanEventUseCase) apply(current model.Loan, msg dto.LoanEventMessage) (model.Loan, *Revision, error) {
	at := uc.opts.now()

	switch msg.EventType {
	case EventTypeRepayment:
		var p dto.RepaymentPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return current, nil, err
		}
		if err := dto.Validate(p); err != nil {
			return current, nil, err
		}
		if p.PaidAt != nil {
			at = p.PaidAt.UTC()
		}
		next, out, err := current.RecordRepayment(model.Payment{
			PaidAt:    at,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			Actor:     webhookActor,
		})
		if err != nil {
			return current, nil, fmt.Errorf("record repayment: %w", err)
		}
		rev := repaymentRevision(next, out, msg.EventID, at)
		return next, &rev, nil

	case EventTypeRepaymentMissed:
		var p dto.TransitionPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return current, nil, err
		}
		if p.At != nil {
			at = p.At.UTC()
		}
		next, _, err := current.SweepArrears(at, uc.opts.grace, actorOr(p.Actor))
		if err != nil {
			return current, nil, fmt.Errorf("mark arrears: %w", err)
		}
		return next, &Revision{
			BorrowerID: current.BorrowerID(),
			Reason:     valueobject.ReasonRepaymentMissed,
			EventID:    msg.EventID,
			At:         at,
		}, nil
	}

	evt, err := valueobject.ParseLoanEventType(msg.EventType)
	if err != nil {
		return current, nil, valueobject.NewValidationError("eventType", err.Error())
	}
	if evt == valueobject.EventDisburse {
		return current, nil, valueobject.NewValidationError("eventType", "disbursement needs a generated schedule")
	}
	var p dto.TransitionPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return current, nil, err
	}
	if p.At != nil {
		at = p.At.UTC()
	}
	next, err := current.Apply(evt, actorOr(p.Actor), at)
	if err != nil {
		return current, nil, fmt.Errorf("apply %s: %w", evt, err)
	}
	reason, ok := lifecycleReason(evt)
	if !ok {
		return next, nil, nil
	}
	return next, &Revision{BorrowerID: current.BorrowerID(), Reason: reason, EventID: msg.EventID, At: at}, nil
}

// replayRevision rebuilds the score event of an already applied webhook.
func replayRevision(l model.Loan, msg dto.LoanEventMessage, at time.Time) *Revision {
	rev := Revision{BorrowerID: l.BorrowerID(), EventID: msg.EventID, At: at}
	switch msg.EventType {
	case EventTypeRepayment:
		rev.Reason = valueobject.ReasonRepayment
		if l.Status().Equal(valueobject.LoanStatusCompleted) {
			rev.Reason = valueobject.ReasonCompleted
		}
	case EventTypeRepaymentMissed:
		rev.Reason = valueobject.ReasonRepaymentMissed
	default:
		evt, err := valueobject.ParseLoanEventType(msg.EventType)
		if err != nil {
			return nil
		}
		reason, ok := lifecycleReason(evt)
		if !ok {
			return nil
		}
		rev.Reason = reason
	}
	return &rev
}

// lifecycleReason maps lifecycle events that move the score.
func lifecycleReason(evt valueobject.LoanEventType) (valueobject.ScoreReason, bool) {
	switch evt {
	case valueobject.EventComplete:
		return valueobject.ReasonCompleted, true
	case valueobject.EventDefault:
		return valueobject.ReasonDefaulted, true
	default:
		return "", false
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return valueobject.NewValidationError("payload", err.Error())
	}
	return nil
}

func actorOr(actor string) string {
	if actor == "" {
		return webhookActor
	}
	return actor
}
