package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
	pkgerrors "orderflow/pkg/errors"
	"orderflow/pkg/logging"
	"orderflow/pkg/metrics"
	"orderflow/pkg/retry"
)

const (
	headerMessageID     = "message-id"
	headerCorrelationID = "correlation-id"
	headerContentType   = "content-type"
)

type KafkaSender struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewKafkaSender(cfg config.KafkaConfig, topic string, log logger.Logger) *KafkaSender {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaSender{writer: w, topic: topic, logger: log}
}

// Send writes one message to the sender's topic. The message key is the
// correlation id, so every message for one business entity lands in one
// partition and arrives in publish order.
func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	key := msg.CorrelationID
	if key == "" {
		key = msg.MessageID
	}

	start := time.Now()
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   msg.Body,
		Headers: messageHeaders(msg),
		Time:    start,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to %s: %w", s.topic, err)
	}

	metrics.ObserveBrokerWrite(s.topic, time.Since(start))
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

func messageHeaders(msg Message) []kafka.Header {
	headers := make([]kafka.Header, 0, 3)
	if msg.MessageID != "" {
		headers = append(headers, kafka.Header{Key: headerMessageID, Value: []byte(msg.MessageID)})
	}
	if msg.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: headerCorrelationID, Value: []byte(msg.CorrelationID)})
	}
	if msg.ContentType != "" {
		headers = append(headers, kafka.Header{Key: headerContentType, Value: []byte(msg.ContentType)})
	}
	return headers
}

type KafkaProcessor struct {
	cfg        config.KafkaConfig
	topic      string
	opts       ProcessorOptions
	logger     logger.Logger
	dlq        *DLQPublisher
	handler    MessageHandler
	errHandler ErrorHandler
	reader     *kafka.Reader
	offsets    *offsetTracker
	wg         sync.WaitGroup
}

func NewKafkaProcessor(cfg config.KafkaConfig, topic string, opts ProcessorOptions, log logger.Logger) *KafkaProcessor {
	if opts.MaxConcurrentCalls <= 0 {
		opts.MaxConcurrentCalls = 1
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = constants.DefaultSessionTimeout
	}

	dlqTopic := cfg.DLQTopic
	if dlqTopic == "" {
		dlqTopic = topic + constants.DLQSuffix
	}

	return &KafkaProcessor{
		cfg:     cfg,
		topic:   topic,
		opts:    opts,
		logger:  log,
		dlq:     NewDLQPublisher(cfg, dlqTopic, log),
		offsets: newOffsetTracker(),
	}
}

func (p *KafkaProcessor) OnMessage(handler MessageHandler) {
	p.handler = handler
}

func (p *KafkaProcessor) OnError(handler ErrorHandler) {
	p.errHandler = handler
}

func (p *KafkaProcessor) Run(ctx context.Context) error {
	if p.handler == nil {
		return fmt.Errorf("no message handler registered for topic %s", p.topic)
	}

	p.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        p.cfg.Brokers,
		GroupID:        p.cfg.GroupID,
		Topic:          p.topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		SessionTimeout: p.opts.SessionTimeout,
	})

	p.logger.InfowCtx(ctx, "Started consuming",
		"topic", p.topic,
		"group_id", p.cfg.GroupID,
		"max_concurrent_calls", p.opts.MaxConcurrentCalls,
	)

	slots := make(chan struct{}, p.opts.MaxConcurrentCalls)
	fetchFailures := 0

	for {
		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.InfowCtx(ctx, "Stopped consuming",
					"topic", p.topic,
					"reason", "context canceled",
				)
				p.wg.Wait()
				return nil
			}

			p.reportError(ctx, fmt.Errorf("failed to fetch message from %s: %w", p.topic, err))
			fetchFailures++
			delay := retry.NextDelay(fetchFailures, time.Second, 2.0, 30*time.Second)
			select {
			case <-ctx.Done():
				p.wg.Wait()
				return nil
			case <-time.After(delay):
			}
			continue
		}
		fetchFailures = 0
		metrics.BrokerMessagesReadTotal.WithLabelValues(p.topic).Inc()
		p.offsets.Track(m.Partition, m.Offset)

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			p.wg.Wait()
			return nil
		}

		d := p.newDelivery(m)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-slots }()
			p.dispatch(ctx, d)
		}()
	}
}

func (p *KafkaProcessor) dispatch(ctx context.Context, d *Delivery) {
	msgCtx := logging.WithMessageID(ctx, d.MessageID)
	if d.CorrelationID != "" {
		msgCtx = logging.WithCorrelationID(msgCtx, d.CorrelationID)
	}

	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.RecoverPanic(r)
			p.logger.ErrorwCtx(msgCtx, "Panic recovered during message dispatch",
				"error", err,
				"topic", d.Topic,
			)
			if dlqErr := d.DeadLetter(msgCtx, ReasonProcessingError, err.Error()); dlqErr != nil {
				p.reportError(msgCtx, dlqErr)
			}
		}
	}()

	p.handler(msgCtx, d)
}

func (p *KafkaProcessor) newDelivery(m kafka.Message) *Delivery {
	d := &Delivery{
		Message: Message{
			Body:          m.Value,
			MessageID:     headerValue(m.Headers, headerMessageID),
			CorrelationID: headerValue(m.Headers, headerCorrelationID),
			ContentType:   headerValue(m.Headers, headerContentType),
		},
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Enqueued:  m.Time,
	}

	d.complete = func(ctx context.Context) error {
		commit, ok := p.offsets.Settle(m.Partition, m.Offset)
		if !ok {
			// An earlier delivery on this partition is still unsettled.
			// Committing now would acknowledge it too, so the commit for
			// this offset rides along once that delivery settles.
			return nil
		}
		marker := kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: commit}
		if err := p.reader.CommitMessages(ctx, marker); err != nil {
			return fmt.Errorf("failed to commit offset %d on %s/%d: %w", commit, m.Topic, m.Partition, err)
		}
		return nil
	}

	d.deadLetter = func(ctx context.Context, reason, description string) error {
		policy := retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
		}
		err := retry.Do(ctx, policy, func() error {
			return p.dlq.Publish(ctx, m, d.Message, reason, description)
		})
		if err != nil {
			// Leave the message unsettled. Commits on this partition are
			// held below this offset until the message is redelivered and
			// dead-lettering is attempted again.
			return fmt.Errorf("failed to dead-letter message at %s/%d/%d: %w", m.Topic, m.Partition, m.Offset, err)
		}
		return d.complete(ctx)
	}

	return d
}

func (p *KafkaProcessor) reportError(ctx context.Context, err error) {
	if p.errHandler != nil {
		p.errHandler(ctx, err)
		return
	}
	p.logger.ErrorwCtx(ctx, "Processor error", "error", err, "topic", p.topic)
}

func (p *KafkaProcessor) Close() error {
	var err error
	if p.reader != nil {
		err = p.reader.Close()
	}
	if closeErr := p.dlq.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	p.wg.Wait()
	return err
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
