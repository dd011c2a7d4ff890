// Package config is centralized process configuration, loaded from the
// environment with validation and production-ready defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the API and worker processes need.
type Config struct {
	ServiceName string
	HTTPAddr    string

	Postgres PostgresConfig

	// Ticker cadences, §4.2/§4.4/§5.
	OutboxDispatchInterval time.Duration
	PolicySweepInterval    time.Duration
	PhysicsTickInterval    time.Duration

	// ActionTxnBudget is loaded from ACTION_TXN_BUDGET (default 2s). No
	// component reads it; attempt() transactions are not bounded by it.
	ActionTxnBudget time.Duration

	// IdempotencyTTL is loaded from IDEMPOTENCY_TTL (default 168h). No
	// component reads it; idempotency records do not expire.
	IdempotencyTTL time.Duration

	// CognitionTimeout is loaded from COGNITION_TIMEOUT (default 1500ms). No
	// component reads it; cognition provider calls are not bounded by it.
	CognitionTimeout time.Duration

	// PolicyRulePackPath is loaded from POLICY_RULE_PACK_PATH. No component
	// reads it, and no rule-pack file is loaded at bootstrap.
	PolicyRulePackPath string
}

// PostgresConfig mirrors the pool-tuning knobs a production Postgres client
// needs.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the libpq connection string pgx expects.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load reads Config from the environment, applying defaults tuned for a
// small production deployment.
func Load() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxOpen, err := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	maxLifetime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
	}
	outboxInterval, err := time.ParseDuration(getEnvOrDefault("OUTBOX_DISPATCH_INTERVAL", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid OUTBOX_DISPATCH_INTERVAL: %w", err)
	}
	policyInterval, err := time.ParseDuration(getEnvOrDefault("POLICY_SWEEP_INTERVAL", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid POLICY_SWEEP_INTERVAL: %w", err)
	}
	physicsInterval, err := time.ParseDuration(getEnvOrDefault("PHYSICS_TICK_INTERVAL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PHYSICS_TICK_INTERVAL: %w", err)
	}
	actionBudget, err := time.ParseDuration(getEnvOrDefault("ACTION_TXN_BUDGET", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ACTION_TXN_BUDGET: %w", err)
	}
	idempotencyTTL, err := time.ParseDuration(getEnvOrDefault("IDEMPOTENCY_TTL", "168h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}
	cognitionTimeout, err := time.ParseDuration(getEnvOrDefault("COGNITION_TIMEOUT", "1500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid COGNITION_TIMEOUT: %w", err)
	}

	cfg := Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "ox-substrate"),
		HTTPAddr:    getEnvOrDefault("HTTP_ADDR", ":8080"),
		Postgres: PostgresConfig{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            port,
			User:            getEnvOrDefault("DB_USER", "oxsubstrate"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getEnvOrDefault("DB_NAME", "oxsubstrate"),
			SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: maxLifetime,
			ConnMaxIdleTime: maxIdleTime,
		},
		OutboxDispatchInterval: outboxInterval,
		PolicySweepInterval:    policyInterval,
		PhysicsTickInterval:    physicsInterval,
		ActionTxnBudget:        actionBudget,
		IdempotencyTTL:         idempotencyTTL,
		CognitionTimeout:       cognitionTimeout,
		PolicyRulePackPath:     os.Getenv("POLICY_RULE_PACK_PATH"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants Load cannot express per-field.
func (c Config) Validate() error {
	if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			c.Postgres.MaxIdleConns, c.Postgres.MaxOpenConns)
	}
	if c.Postgres.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.PolicySweepInterval < time.Minute {
		return fmt.Errorf("POLICY_SWEEP_INTERVAL must be at least 60s, per sponsor policy cadence floor")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
