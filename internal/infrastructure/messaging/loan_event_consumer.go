package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/domain/valueobject"
	pkgkafka "github.com/bibbank/microcredit/pkg/kafka"
)

// LoanEventHandler is satisfied by *usecase.HandleLoanEventUseCase.
type LoanEventHandler interface {
	Execute(ctx context.Context, msg dto.LoanEventMessage) (dto.LoanEventResult, error)
}

// LoanEventConsumer adapts inbound lifecycle webhooks delivered over Kafka
// to the loan event use case.
type LoanEventConsumer struct {
	handler LoanEventHandler
	logger  *slog.Logger
}

// NewLoanEventConsumer creates a consumer handler.
func NewLoanEventConsumer(handler LoanEventHandler, logger *slog.Logger) *LoanEventConsumer {
	return &LoanEventConsumer{handler: handler, logger: logger}
}

// Handle is a pkgkafka.Handler. Messages that can never succeed are logged
// and acknowledged; anything else is returned so the consumer retries it.
func (c *LoanEventConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var in dto.LoanEventMessage
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable loan event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if in.EventID == "" {
		in.EventID = msg.Headers["event_id"]
	}

	res, err := c.handler.Execute(ctx, in)
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "loan event applied",
			"loan_id", res.LoanID,
			"event_id", res.EventID,
			"event_type", in.EventType,
			"loan_status", res.LoanStatus,
			"duplicate", res.Duplicate,
		)
		return nil
	case permanent(err):
		c.logger.WarnContext(ctx, "rejecting loan event",
			"loan_id", in.LoanID,
			"event_id", in.EventID,
			"event_type", in.EventType,
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("handle loan event %s: %w", in.EventID, err)
	}
}

func permanent(err error) bool {
	return errors.Is(err, valueobject.ErrValidation) ||
		errors.Is(err, valueobject.ErrInvalidTransition) ||
		errors.Is(err, valueobject.ErrNotFound) ||
		errors.Is(err, valueobject.ErrOverpayment)
}
