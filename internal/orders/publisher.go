package orders

import (
	"context"
	"encoding/json"

	"orderflow/internal/broker"
	"orderflow/internal/constants"
	"orderflow/internal/events"
	"orderflow/internal/logger"
	pkgerrors "orderflow/pkg/errors"
	"orderflow/pkg/logging"
	"orderflow/pkg/metrics"
)

// EventPublisher publishes order integration events. Every failure mode,
// including a panicking transport, surfaces as a coded error so callers
// can treat publishing as a best-effort side channel.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
}

type Publisher struct {
	sender broker.Sender
	logger logger.Logger
}

func NewPublisher(sender broker.Sender, log logger.Logger) *Publisher {
	return &Publisher{sender: sender, logger: log}
}

// PublishOrderCreated wraps the event in a fresh envelope and performs a
// single send attempt. The envelope identity is minted here, once per
// call; a broker-level redelivery of the resulting message keeps it.
func (p *Publisher) PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.ErrMessagePublishingFailed.
				WithCause(pkgerrors.RecoverPanic(r)).
				WithMessage("failed to publish OrderCreated event for order %s", event.OrderID)
			p.recordFailure(ctx, event, err)
		}
	}()

	envelope := events.NewEnvelope(events.MessageTypeOrderCreated, event, event.OrderID)
	ctx = logging.WithMessageID(ctx, envelope.MessageID)
	ctx = logging.WithCorrelationID(ctx, envelope.Correlation())

	body, err := json.Marshal(envelope)
	if err != nil {
		err = pkgerrors.ErrMessagePublishingFailed.
			WithCause(err).
			WithMessage("failed to publish OrderCreated event for order %s", event.OrderID)
		p.recordFailure(ctx, event, err)
		return err
	}

	msg := broker.Message{
		Body:          body,
		MessageID:     envelope.MessageID,
		CorrelationID: envelope.Correlation(),
		ContentType:   constants.ContentTypeJSON,
	}

	if sendErr := p.sender.Send(ctx, msg); sendErr != nil {
		err = pkgerrors.ErrMessagePublishingFailed.
			WithCause(sendErr).
			WithMessage("failed to publish OrderCreated event for order %s", event.OrderID)
		p.recordFailure(ctx, event, err)
		return err
	}

	metrics.OrderEventsPublishedTotal.WithLabelValues("success").Inc()
	p.logger.InfowCtx(ctx, "Published OrderCreated event",
		"order_id", event.OrderID,
		"message_type", events.MessageTypeOrderCreated,
	)
	return nil
}

func (p *Publisher) recordFailure(ctx context.Context, event events.OrderCreatedEvent, err error) {
	metrics.OrderEventsPublishedTotal.WithLabelValues("failure").Inc()
	p.logger.ErrorwCtx(ctx, "Failed to publish OrderCreated event",
		"order_id", event.OrderID,
		"error", err,
	)
}
