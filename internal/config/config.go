package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Worker         WorkerConfig
	API            APIConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	GroupID     string   `mapstructure:"group_id"`
	OrdersTopic string   `mapstructure:"orders_topic"`
	DLQTopic    string   `mapstructure:"dlq_topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WorkerConfig struct {
	MaxConcurrentCalls int               `mapstructure:"max_concurrent_calls"`
	SessionTimeout     time.Duration     `mapstructure:"session_timeout"`
	Idempotency        IdempotencyConfig `mapstructure:"idempotency"`
}

type IdempotencyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	OnRedisError string `mapstructure:"on_redis_error"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
