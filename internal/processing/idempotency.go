package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
	"orderflow/pkg/circuitbreaker"
	"orderflow/pkg/metrics"
)

// IdempotencyStore answers "have we processed this message before".
// MarkProcessed returns true when the message id is new, false when it was
// already recorded. The check and the recording are one atomic operation,
// so two concurrent deliveries of the same message cannot both win.
type IdempotencyStore interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

type RedisIdempotencyStore struct {
	client   *redis.Client
	ttl      time.Duration
	breaker  *circuitbreaker.Wrapper
	fallback string
	logger   logger.Logger
}

func NewRedisIdempotencyStore(client *redis.Client, cfg config.IdempotencyConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *RedisIdempotencyStore {
	ttlSeconds := cfg.TTLSeconds
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultIdempotencyTTLSeconds
	}
	fallback := cfg.OnRedisError
	if fallback == "" {
		fallback = constants.FallbackAllow
	}

	var breaker *circuitbreaker.Wrapper
	if cbCfg.Enabled {
		breaker = circuitbreaker.NewWrapper(breakerConfig(cbCfg))
	}

	return &RedisIdempotencyStore{
		client:   client,
		ttl:      time.Duration(ttlSeconds) * time.Second,
		breaker:  breaker,
		fallback: fallback,
		logger:   log,
	}
}

// breakerConfig maps operator settings onto the breaker defaults,
// keeping the default for any knob left unset.
func breakerConfig(cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	bc := circuitbreaker.DefaultConfig("redis-idempotency")
	if cfg.MaxRequests > 0 {
		bc.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		bc.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		bc.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		bc.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}
	return bc
}

// MarkProcessed records messageID with SET NX. When the store is
// unreachable the configured fallback decides: "allow" lets the message
// through (a duplicate side effect is possible), "deny" leaves it for
// redelivery once the store recovers.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	key := constants.CacheKeyPrefixProcessed + messageID

	setNX := func() (interface{}, error) {
		return s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	}

	var result interface{}
	var err error
	if s.breaker != nil {
		result, err = s.breaker.ExecuteWithContext(ctx, setNX)
	} else {
		result, err = setNX()
	}
	if err != nil {
		metrics.IdempotencyChecksTotal.WithLabelValues("error").Inc()
		metrics.FallbackUsageTotal.WithLabelValues("idempotency", s.fallback).Inc()
		s.logger.WarnwCtx(ctx, "Idempotency check unavailable, applying fallback",
			"fallback", s.fallback,
			"error", err,
		)
		if s.fallback == constants.FallbackAllow {
			return true, nil
		}
		return false, fmt.Errorf("idempotency store unavailable: %w", err)
	}

	fresh, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected idempotency result type %T", result)
	}

	if fresh {
		metrics.IdempotencyChecksTotal.WithLabelValues("fresh").Inc()
	} else {
		metrics.IdempotencyChecksTotal.WithLabelValues("duplicate").Inc()
	}
	return fresh, nil
}

// NopIdempotencyStore treats every message as fresh. Used when the
// idempotency check is disabled in configuration.
type NopIdempotencyStore struct{}

func (NopIdempotencyStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	return true, nil
}
