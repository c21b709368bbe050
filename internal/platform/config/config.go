package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SequenceBackendDatabase = "database"
	SequenceBackendRedis    = "redis"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `validate:"required"`
	HTTPPort    string `validate:"required,numeric"`

	DatabaseDriver string `validate:"oneof=postgres sqlite"`
	PostgresDSN    string `validate:"required_if=DatabaseDriver postgres"`
	SQLitePath     string `validate:"required_if=DatabaseDriver sqlite"`
	FamiliesPath   string

	SequenceBackend string `validate:"oneof=database redis"`
	RedisAddr       string `validate:"required_if=SequenceBackend redis"`
	RedisPassword   string
	RedisDB         int `validate:"gte=0"`

	KafkaBrokers []string `validate:"dive,hostname_port"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	OTLPEndpoint string

	OutboxPollInterval time.Duration `validate:"gt=0"`
	OutboxBatchSize    int           `validate:"gt=0,lte=1000"`
	IdempotencyTTL     time.Duration `validate:"gt=0"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads the environment without validating, so callers can apply
// overrides first.
func Parse() (Config, error) {
	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "vihadmin-lifecycle"),
		HTTPPort:    envString("HTTP_PORT", "8080"),

		DatabaseDriver: strings.ToLower(envString("DATABASE_DRIVER", "postgres")),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		SQLitePath:     envString("SQLITE_PATH", "vihadmin.db"),
		FamiliesPath:   os.Getenv("FAMILIES_PATH"),

		SequenceBackend: strings.ToLower(envString("SEQUENCE_BACKEND", SequenceBackendDatabase)),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: envList("KAFKA_BROKERS"),

		LogLevel:  strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envString("LOG_FORMAT", "text")),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = envInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envList(name string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
