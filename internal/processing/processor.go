package processing

import (
	"context"
	"encoding/json"
	"time"

	"orderflow/internal/broker"
	"orderflow/internal/events"
	"orderflow/internal/logger"
	"orderflow/pkg/logging"
	"orderflow/pkg/metrics"
)

// OrderEventHandler consumes OrderCreated messages. Every delivery is
// settled exactly once: completed on success or duplicate, dead-lettered
// on malformed content or processing failure. Settlement errors leave the
// message to the broker for redelivery.
type OrderEventHandler struct {
	idempotency IdempotencyStore
	audit       AuditStore
	logger      logger.Logger
}

func NewOrderEventHandler(idempotency IdempotencyStore, audit AuditStore, log logger.Logger) *OrderEventHandler {
	return &OrderEventHandler{
		idempotency: idempotency,
		audit:       audit,
		logger:      log,
	}
}

// Handle is the broker.MessageHandler for the orders topic.
func (h *OrderEventHandler) Handle(ctx context.Context, d *broker.Delivery) {
	start := time.Now()

	event, messageID, ok := h.decode(ctx, d)
	if !ok {
		metrics.MessagesProcessedTotal.WithLabelValues("dead_lettered").Inc()
		return
	}

	ctx = logging.WithMessageID(ctx, messageID)
	ctx = logging.WithOrderID(ctx, event.OrderID)

	fresh, err := h.idempotency.MarkProcessed(ctx, messageID)
	if err != nil {
		// The store is down and the fallback is deny. Leave the message
		// unsettled; the transport holds offset commits below it until it
		// is redelivered, so later completions cannot skip past it.
		h.logger.WarnwCtx(ctx, "Deferring message until idempotency store recovers", "error", err)
		metrics.MessagesProcessedTotal.WithLabelValues("deferred").Inc()
		return
	}
	if !fresh {
		h.logger.InfowCtx(ctx, "Skipping duplicate message")
		metrics.MessagesProcessedTotal.WithLabelValues("duplicate").Inc()
		h.complete(ctx, d)
		return
	}

	if err := h.process(ctx, event, messageID, d.CorrelationID); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to process OrderCreated event", "error", err)
		metrics.MessagesProcessedTotal.WithLabelValues("dead_lettered").Inc()
		h.deadLetter(ctx, d, broker.ReasonProcessingError, err.Error())
		return
	}

	metrics.MessagesProcessedTotal.WithLabelValues("success").Inc()
	metrics.ObserveProcessingDuration(time.Since(start), "success")
	h.complete(ctx, d)
}

// decode unwraps the envelope in two stages. Bytes that are not valid
// JSON, or a payload that does not parse as an order event, are a
// deserialization failure. A well-formed envelope with a missing message
// id, wrong message type, or null payload is an invalid message. Both are
// dead-lettered immediately; redelivery cannot fix a malformed body.
func (h *OrderEventHandler) decode(ctx context.Context, d *broker.Delivery) (events.OrderCreatedEvent, string, bool) {
	var none events.OrderCreatedEvent

	var envelope events.Envelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		h.logger.WarnwCtx(ctx, "Message body is not a valid envelope", "error", err)
		h.deadLetter(ctx, d, broker.ReasonDeserializationError, err.Error())
		return none, "", false
	}

	if envelope.MessageID == "" {
		h.deadLetter(ctx, d, broker.ReasonInvalidMessage, "envelope has no messageId")
		return none, "", false
	}
	if envelope.MessageType != events.MessageTypeOrderCreated {
		h.deadLetter(ctx, d, broker.ReasonInvalidMessage, "unexpected messageType: "+envelope.MessageType)
		return none, "", false
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		h.deadLetter(ctx, d, broker.ReasonInvalidMessage, "envelope has no payload")
		return none, "", false
	}

	var event events.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		h.logger.WarnwCtx(ctx, "Envelope payload is not an order event", "error", err)
		h.deadLetter(ctx, d, broker.ReasonDeserializationError, err.Error())
		return none, "", false
	}
	if event.OrderID == "" {
		h.deadLetter(ctx, d, broker.ReasonInvalidMessage, "order event has no orderId")
		return none, "", false
	}

	return event, envelope.MessageID, true
}

func (h *OrderEventHandler) process(ctx context.Context, event events.OrderCreatedEvent, messageID, correlationID string) error {
	h.logger.InfowCtx(ctx, "Processing OrderCreated event",
		"user_email", event.UserEmail,
		"total_amount", event.TotalAmount,
		"item_count", len(event.LineItems),
		"order_date", event.OrderDate.Format(time.RFC3339),
	)

	return h.audit.Record(ctx, ProcessedEvent{
		MessageID:     messageID,
		MessageType:   events.MessageTypeOrderCreated,
		CorrelationID: correlationID,
		OrderID:       event.OrderID,
	})
}

func (h *OrderEventHandler) complete(ctx context.Context, d *broker.Delivery) {
	if err := d.Complete(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to complete message", "error", err)
	}
}

func (h *OrderEventHandler) deadLetter(ctx context.Context, d *broker.Delivery, reason, description string) {
	if err := d.DeadLetter(ctx, reason, description); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to dead-letter message",
			"reason", reason,
			"error", err,
		)
	}
}
