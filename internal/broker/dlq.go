package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
	"orderflow/pkg/metrics"
)

// DLQRecord wraps an unprocessable message together with enough context
// to diagnose and replay it by hand.
type DLQRecord struct {
	MessageID     string          `json:"messageId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Topic         string          `json:"topic"`
	Partition     int             `json:"partition"`
	Offset        int64           `json:"offset"`
	Key           string          `json:"key,omitempty"`
	Value         json.RawMessage `json:"value"`
	Reason        string          `json:"reason"`
	Description   string          `json:"description,omitempty"`
	FailedAt      time.Time       `json:"failedAt"`
}

type DLQPublisher struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewDLQPublisher(cfg config.KafkaConfig, topic string, log logger.Logger) *DLQPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
	}
	return &DLQPublisher{writer: w, topic: topic, logger: log}
}

func (p *DLQPublisher) Publish(ctx context.Context, original kafka.Message, msg Message, reason, description string) error {
	record := DLQRecord{
		MessageID:     msg.MessageID,
		CorrelationID: msg.CorrelationID,
		Topic:         original.Topic,
		Partition:     original.Partition,
		Offset:        original.Offset,
		Key:           string(original.Key),
		Value:         jsonValue(original.Value),
		Reason:        reason,
		Description:   description,
		FailedAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter record: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     original.Key,
		Value:   body,
		Headers: messageHeaders(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to write to dead-letter topic %s: %w", p.topic, err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(original.Topic, reason).Inc()
	p.logger.WarnwCtx(ctx, "Message dead-lettered",
		"topic", original.Topic,
		"dlq_topic", p.topic,
		"partition", original.Partition,
		"offset", original.Offset,
		"reason", reason,
		"description", description,
	)
	return nil
}

func (p *DLQPublisher) Close() error {
	return p.writer.Close()
}

// jsonValue preserves the payload verbatim when it is valid JSON and
// re-encodes it as a JSON string otherwise, so the record always marshals.
func jsonValue(value []byte) json.RawMessage {
	if json.Valid(value) {
		return json.RawMessage(value)
	}
	quoted, err := json.Marshal(string(value))
	if err != nil {
		return json.RawMessage(`null`)
	}
	return json.RawMessage(quoted)
}
