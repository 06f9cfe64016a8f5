package messaging_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/application/dto"
	"github.com/bibbank/microcredit/internal/infrastructure/messaging"
	pkgkafka "github.com/bibbank/microcredit/pkg/kafka"
	"github.com/bibbank/microcredit/pkg/testutil"
)

type recordingHandler struct {
	mu  sync.Mutex
	got []dto.LoanEventMessage
}

func (h *recordingHandler) Execute(_ context.Context, msg dto.LoanEventMessage) (dto.LoanEventResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, msg)
	return dto.LoanEventResult{LoanID: msg.LoanID, EventID: msg.EventID}, nil
}

func (h *recordingHandler) received() []dto.LoanEventMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dto.LoanEventMessage(nil), h.got...)
}

func TestLoanEvents_KafkaRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	kc := testutil.NewKafkaContainer(ctx, t)

	const topic = "microcredit.loan-events"
	producer := pkgkafka.NewProducer(pkgkafka.Config{Brokers: kc.Brokers})
	t.Cleanup(func() { _ = producer.Close() })

	msg := pkgkafka.Message{
		Key:   []byte("loan-1"),
		Value: []byte(`{"loanId":"loan-1","eventType":"repayment","eventId":"evt-1","payload":{"amount":"100000"}}`),
	}
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, topic, msg) == nil
	}, 30*time.Second, 500*time.Millisecond, "topic never became writable")

	handler := &recordingHandler{}
	consumer := pkgkafka.NewConsumer(pkgkafka.Config{
		Brokers:       kc.Brokers,
		ConsumerGroup: "microcredit-test",
	}, topic, messaging.NewLoanEventConsumer(handler, quietLogger()).Handle, quietLogger())
	t.Cleanup(func() { _ = consumer.Close() })

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Start(consumeCtx) }()

	require.Eventually(t, func() bool { return len(handler.received()) > 0 }, 60*time.Second, 200*time.Millisecond)

	got := handler.received()[0]
	assert.Equal(t, "loan-1", got.LoanID)
	assert.Equal(t, "repayment", got.EventType)
	assert.Equal(t, "evt-1", got.EventID)
}
