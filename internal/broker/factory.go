package broker

import (
	"fmt"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
)

func ordersTopic(cfg config.BrokerConfig) string {
	if cfg.Kafka.OrdersTopic != "" {
		return cfg.Kafka.OrdersTopic
	}
	return constants.DefaultOrdersTopic
}

// NewSender builds the producer for the configured broker type.
func NewSender(cfg config.BrokerConfig, log logger.Logger) (Sender, error) {
	switch cfg.Type {
	case "kafka", "":
		return NewKafkaSender(cfg.Kafka, ordersTopic(cfg), log), nil
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}

// NewProcessor builds the consumer for the configured broker type.
func NewProcessor(cfg config.BrokerConfig, opts ProcessorOptions, log logger.Logger) (Processor, error) {
	switch cfg.Type {
	case "kafka", "":
		return NewKafkaProcessor(cfg.Kafka, ordersTopic(cfg), opts, log), nil
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
