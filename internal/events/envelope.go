package events

import (
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a domain event with delivery metadata. The envelope is
// serialized exactly once per publish call; a broker redelivery carries the
// same messageId, so consumers can key idempotency checks on it.
//
// Field names are camelCase on the wire and must stay in lockstep between
// publisher and consumer.
type Envelope[P any] struct {
	MessageID     string    `json:"messageId"`
	Timestamp     time.Time `json:"timestamp"`
	MessageType   string    `json:"messageType"`
	Payload       P         `json:"payload"`
	CorrelationID *string   `json:"correlationId"`
}

// NewEnvelope stamps a fresh message id and the current UTC instant around
// payload. correlationID links the message to a business entity; pass the
// empty string to leave it null on the wire.
func NewEnvelope[P any](messageType string, payload P, correlationID string) Envelope[P] {
	env := Envelope[P]{
		MessageID:   uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		MessageType: messageType,
		Payload:     payload,
	}
	if correlationID != "" {
		env.CorrelationID = &correlationID
	}
	return env
}

// Correlation returns the correlation id or empty when unset.
func (e Envelope[P]) Correlation() string {
	if e.CorrelationID == nil {
		return ""
	}
	return *e.CorrelationID
}
