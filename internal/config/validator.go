package config

import (
	"fmt"
	"strings"

	"orderflow/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateWorker(cfg.Worker); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	if cfg.Type != "kafka" {
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unsupported broker type %q", cfg.Type),
		}
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one broker address is required",
		}
	}

	for _, b := range cfg.Kafka.Brokers {
		if strings.TrimSpace(b) == "" {
			return &ValidationError{
				Field:   "broker.kafka.brokers",
				Message: "broker addresses must be non-empty",
			}
		}
	}

	return nil
}

func validateWorker(cfg WorkerConfig) error {
	if cfg.MaxConcurrentCalls < 0 {
		return &ValidationError{
			Field:   "worker.max_concurrent_calls",
			Message: "max concurrent calls cannot be negative",
		}
	}

	if cfg.Idempotency.Enabled {
		switch cfg.Idempotency.OnRedisError {
		case "", constants.FallbackAllow, constants.FallbackDeny:
		default:
			return &ValidationError{
				Field:   "worker.idempotency.on_redis_error",
				Message: fmt.Sprintf("must be %q or %q, got %q", constants.FallbackAllow, constants.FallbackDeny, cfg.Idempotency.OnRedisError),
			}
		}
	}

	return nil
}
