// Package config loads service configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Scoring  ScoringConfig
	Alerts   AlertsConfig
	Pipeline PipelineConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"PAYGUARD_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	Timezone        string        `env:"FEATURE_TIMEZONE" envDefault:"UTC"`
}

// RedisConfig configures the velocity counter store. An empty URL selects
// the in-memory store.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"100ms"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"100ms"`
}

// PostgresConfig configures rule and transaction storage. An empty URL
// selects the in-memory stores.
type PostgresConfig struct {
	URL          string        `env:"DATABASE_URL"`
	MaxOpenConns int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate      bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
}

// KafkaConfig configures event publication. No brokers disables publishing.
type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic      string   `env:"KAFKA_TOPIC" envDefault:"fraud.transactions"`
	Partitions int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	Replicas   int16    `env:"KAFKA_TOPIC_REPLICAS" envDefault:"1"`
}

// ScoringConfig configures the external risk model. An empty URL runs on the
// fallback heuristic only.
type ScoringConfig struct {
	URL     string        `env:"SCORING_URL"`
	Timeout time.Duration `env:"SCORING_TIMEOUT" envDefault:"100ms"`
}

// AlertsConfig configures alert delivery. Empty endpoints disable a channel.
type AlertsConfig struct {
	ChatWebhookURL  string        `env:"ALERT_CHAT_WEBHOOK_URL"`
	EmailWebhookURL string        `env:"ALERT_EMAIL_WEBHOOK_URL"`
	EmailRecipients []string      `env:"ALERT_EMAIL_RECIPIENTS" envSeparator:","`
	Timeout         time.Duration `env:"ALERT_TIMEOUT" envDefault:"2s"`
}

// PipelineConfig holds evaluation budgets and tuning knobs.
type PipelineConfig struct {
	Timeout           time.Duration `env:"PIPELINE_TIMEOUT" envDefault:"500ms"`
	RulesTimeout      time.Duration `env:"RULES_TIMEOUT" envDefault:"50ms"`
	BreakerThreshold  int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerCooldown   time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
	VelocityWindow    time.Duration `env:"VELOCITY_WINDOW" envDefault:"1h"`
	VelocityThreshold int64         `env:"VELOCITY_THRESHOLD" envDefault:"30"`
	DailyThreshold    int64         `env:"VELOCITY_DAILY_THRESHOLD" envDefault:"100"`
	RuleCacheTTL      time.Duration `env:"RULE_CACHE_TTL" envDefault:"30s"`
	Workers           int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	QueueSize         int           `env:"DISPATCH_QUEUE_SIZE" envDefault:"1024"`
	SideEffectTimeout time.Duration `env:"SIDE_EFFECT_TIMEOUT" envDefault:"5s"`
	PersistRetries    uint64        `env:"PERSIST_RETRIES" envDefault:"3"`
	AlertThreshold    float64       `env:"ALERT_THRESHOLD" envDefault:"0.6"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the current environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, errors.New("PIPELINE_TIMEOUT must be positive"))
	}
	if c.Pipeline.RulesTimeout <= 0 || c.Scoring.Timeout <= 0 {
		errs = append(errs, errors.New("RULES_TIMEOUT and SCORING_TIMEOUT must be positive"))
	}
	if c.Pipeline.BreakerThreshold < 1 {
		errs = append(errs, errors.New("BREAKER_FAILURE_THRESHOLD must be at least 1"))
	}
	if c.Pipeline.AlertThreshold < 0 || c.Pipeline.AlertThreshold > 1 {
		errs = append(errs, errors.New("ALERT_THRESHOLD must be within [0,1]"))
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("FEATURE_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the zone used for time-of-day features.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
