package broker

import (
	"context"
	"time"
)

// Dead-letter reason codes. Malformed messages are never retried; they go
// straight to the dead-letter topic for operator triage.
const (
	ReasonInvalidMessage       = "InvalidMessage"
	ReasonDeserializationError = "DeserializationError"
	ReasonProcessingError      = "ProcessingError"
)

// Message is the transport unit handed to a Sender. Body carries the
// serialized envelope; the metadata fields travel as broker headers so
// tooling can inspect them without parsing the body.
type Message struct {
	Body          []byte
	MessageID     string
	CorrelationID string
	ContentType   string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Delivery is one received message together with its settlement
// operations. A handler must settle the delivery exactly once: Complete
// removes it from the queue, DeadLetter moves it to the dead-letter topic
// and then removes it. An unsettled delivery is redelivered by the broker
// after the consumer session expires.
type Delivery struct {
	Message
	Topic      string
	Partition  int
	Offset     int64
	Enqueued   time.Time
	complete   func(ctx context.Context) error
	deadLetter func(ctx context.Context, reason, description string) error
}

// NewDelivery builds a delivery with explicit settlement operations. It
// is the constructor transports and test doubles share.
func NewDelivery(msg Message, complete func(ctx context.Context) error, deadLetter func(ctx context.Context, reason, description string) error) *Delivery {
	return &Delivery{Message: msg, complete: complete, deadLetter: deadLetter}
}

func (d *Delivery) Complete(ctx context.Context) error {
	return d.complete(ctx)
}

func (d *Delivery) DeadLetter(ctx context.Context, reason, description string) error {
	return d.deadLetter(ctx, reason, description)
}

// MessageHandler settles each delivery itself. It does not return an
// error; the handler decides between dead-lettering and leaving the
// message for redelivery.
type MessageHandler func(ctx context.Context, d *Delivery)

// ErrorHandler receives transport-level errors that are not tied to a
// specific message (connection drops, group rebalance failures). They are
// informational; the receive loop stays alive.
type ErrorHandler func(ctx context.Context, err error)

type Processor interface {
	OnMessage(handler MessageHandler)
	OnError(handler ErrorHandler)
	// Run blocks, dispatching deliveries to the message handler until ctx
	// is cancelled. In-flight handlers are allowed to finish.
	Run(ctx context.Context) error
	Close() error
}

// ProcessorOptions bound the receive loop. MaxConcurrentCalls of 1 (the
// default) keeps processing strictly sequential, which also preserves
// per-partition ordering; larger values trade that away for throughput.
// With concurrent handlers deliveries settle out of order, and because
// offset commits are cumulative the transport only commits the
// contiguous settled prefix of each partition. An unsettled delivery
// therefore stalls commit progress behind it until it is redelivered.
type ProcessorOptions struct {
	MaxConcurrentCalls int
	// SessionTimeout is how long the broker keeps the consumer's
	// partition assignment alive without a heartbeat, the window a slow
	// handler has before its message is redelivered elsewhere.
	SessionTimeout time.Duration
}
