package processing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/broker"
	"orderflow/internal/events"
	"orderflow/internal/logger"
)

type fakeIdempotency struct {
	seen     map[string]bool
	checkErr error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: make(map[string]bool)}
}

func (f *fakeIdempotency) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	if f.seen[messageID] {
		return false, nil
	}
	f.seen[messageID] = true
	return true, nil
}

type fakeAudit struct {
	records   []ProcessedEvent
	recordErr error
}

func (f *fakeAudit) Record(ctx context.Context, event ProcessedEvent) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, event)
	return nil
}

func (f *fakeAudit) ListRecent(ctx context.Context, limit int) ([]ProcessedEvent, error) {
	return f.records, nil
}

type settlement struct {
	completed   int
	deadLetters []string
	reasons     []string
}

func delivery(t *testing.T, body []byte) (*broker.Delivery, *settlement) {
	t.Helper()
	s := &settlement{}
	d := broker.NewDelivery(
		broker.Message{Body: body, ContentType: "application/json"},
		func(ctx context.Context) error {
			s.completed++
			return nil
		},
		func(ctx context.Context, reason, description string) error {
			s.reasons = append(s.reasons, reason)
			s.deadLetters = append(s.deadLetters, description)
			return nil
		},
	)
	return d, s
}

func envelopeBody(t *testing.T) []byte {
	t.Helper()
	event := events.OrderCreatedEvent{
		OrderID:     "11111111-1111-1111-1111-111111111111",
		UserID:      "user-42",
		UserEmail:   "buyer@example.com",
		OrderDate:   time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		TotalAmount: 199.99,
		LineItems: []events.OrderLineItem{
			{ProductID: "p1", ProductName: "Widget", Quantity: 2, Price: 50.00},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 1, Price: 99.99},
		},
	}
	env := events.NewEnvelope(events.MessageTypeOrderCreated, event, event.OrderID)
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return body
}

func newHandler(idem IdempotencyStore, audit AuditStore) *OrderEventHandler {
	return NewOrderEventHandler(idem, audit, logger.NopLogger())
}

func TestHandleCompletesProcessedMessage(t *testing.T) {
	idem := newFakeIdempotency()
	audit := &fakeAudit{}
	h := newHandler(idem, audit)

	d, s := delivery(t, envelopeBody(t))
	h.Handle(context.Background(), d)

	assert.Equal(t, 1, s.completed, "delivery must be settled exactly once")
	assert.Empty(t, s.reasons)

	require.Len(t, audit.records, 1)
	record := audit.records[0]
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", record.OrderID)
	assert.Equal(t, events.MessageTypeOrderCreated, record.MessageType)
	assert.NotEmpty(t, record.MessageID)
}

func TestHandleSkipsDuplicate(t *testing.T) {
	idem := newFakeIdempotency()
	audit := &fakeAudit{}
	h := newHandler(idem, audit)

	body := envelopeBody(t)

	first, firstSettle := delivery(t, body)
	h.Handle(context.Background(), first)

	second, secondSettle := delivery(t, body)
	h.Handle(context.Background(), second)

	assert.Equal(t, 1, firstSettle.completed)
	assert.Equal(t, 1, secondSettle.completed, "duplicate is completed, not dead-lettered")
	assert.Empty(t, secondSettle.reasons)
	assert.Len(t, audit.records, 1, "duplicate must not be processed again")
}

func TestHandleDeadLettersMalformedBody(t *testing.T) {
	h := newHandler(newFakeIdempotency(), &fakeAudit{})

	d, s := delivery(t, []byte(`{not json`))
	h.Handle(context.Background(), d)

	assert.Equal(t, 0, s.completed)
	require.Len(t, s.reasons, 1)
	assert.Equal(t, broker.ReasonDeserializationError, s.reasons[0])
}

func TestHandleDeadLettersInvalidEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{
			name:       "null payload",
			body:       `{"messageId":"m1","timestamp":"2025-03-14T09:26:53Z","messageType":"OrderCreatedEvent","payload":null,"correlationId":"c1"}`,
			wantReason: broker.ReasonInvalidMessage,
		},
		{
			name:       "missing message id",
			body:       `{"timestamp":"2025-03-14T09:26:53Z","messageType":"OrderCreatedEvent","payload":{"orderId":"o1"},"correlationId":"c1"}`,
			wantReason: broker.ReasonInvalidMessage,
		},
		{
			name:       "unexpected message type",
			body:       `{"messageId":"m1","timestamp":"2025-03-14T09:26:53Z","messageType":"OrderShippedEvent","payload":{"orderId":"o1"},"correlationId":"c1"}`,
			wantReason: broker.ReasonInvalidMessage,
		},
		{
			name:       "payload is not an order event",
			body:       `{"messageId":"m1","timestamp":"2025-03-14T09:26:53Z","messageType":"OrderCreatedEvent","payload":{"orderId":42},"correlationId":"c1"}`,
			wantReason: broker.ReasonDeserializationError,
		},
		{
			name:       "payload missing order id",
			body:       `{"messageId":"m1","timestamp":"2025-03-14T09:26:53Z","messageType":"OrderCreatedEvent","payload":{"userId":"u1"},"correlationId":"c1"}`,
			wantReason: broker.ReasonInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &fakeAudit{}
			h := newHandler(newFakeIdempotency(), audit)

			d, s := delivery(t, []byte(tt.body))
			h.Handle(context.Background(), d)

			assert.Equal(t, 0, s.completed)
			require.Len(t, s.reasons, 1)
			assert.Equal(t, tt.wantReason, s.reasons[0])
			assert.Empty(t, audit.records)
		})
	}
}

func TestHandleDeadLettersProcessingFailure(t *testing.T) {
	audit := &fakeAudit{recordErr: errors.New("insert failed")}
	h := newHandler(newFakeIdempotency(), audit)

	d, s := delivery(t, envelopeBody(t))
	h.Handle(context.Background(), d)

	assert.Equal(t, 0, s.completed)
	require.Len(t, s.reasons, 1)
	assert.Equal(t, broker.ReasonProcessingError, s.reasons[0])
	assert.Contains(t, s.deadLetters[0], "insert failed")
}

func TestHandleDefersWhenIdempotencyStoreDown(t *testing.T) {
	idem := newFakeIdempotency()
	idem.checkErr = errors.New("idempotency store unavailable")
	audit := &fakeAudit{}
	h := newHandler(idem, audit)

	d, s := delivery(t, envelopeBody(t))
	h.Handle(context.Background(), d)

	assert.Equal(t, 0, s.completed, "message stays unsettled for redelivery")
	assert.Empty(t, s.reasons)
	assert.Empty(t, audit.records)
}
