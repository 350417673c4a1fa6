// Package config loads service settings from the environment, after an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port             string
	StoreDriver      string
	PostgresURL      string
	PostgresSchema   string
	MigrationsPath   string
	KafkaBrokers     []string
	OrderEventsTopic string
	RedisAddr        string
	RedisTTL         time.Duration
	JWTSecret        string
	JWTIssuer        string
	JWTTTL           time.Duration
	AdminSignup      bool
	BcryptCost       int
	OTLPEndpoint     string
	TelemetryEnabled bool
	APIURL           string
	EmailServiceURL  string
	AllowedOrigins   []string
	OutboxSize       int
}

// Load reads .env (if present) and the environment. defaultPort applies when PORT is unset.
func Load(defaultPort string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", defaultPort),
		StoreDriver:      getEnv("STORE_DRIVER", DriverPostgres),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		PostgresSchema:   os.Getenv("POSTGRES_SCHEMA"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "file://migrations"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnv("JWT_ISSUER", "roastdirect"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		APIURL:           os.Getenv("API_URL"),
		EmailServiceURL:  os.Getenv("EMAIL_SERVICE_URL"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.RedisTTL, err = time.ParseDuration(getEnv("REDIS_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_TTL: %w", err)
	}
	if cfg.JWTTTL, err = time.ParseDuration(getEnv("JWT_TTL", "168h")); err != nil || cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_TTL %q", os.Getenv("JWT_TTL"))
	}
	if cfg.AdminSignup, err = strconv.ParseBool(getEnv("ADMIN_SIGNUP_ENABLED", "false")); err != nil {
		return nil, fmt.Errorf("invalid ADMIN_SIGNUP_ENABLED: %w", err)
	}
	if cfg.BcryptCost, err = strconv.Atoi(getEnv("BCRYPT_COST", "0")); err != nil || cfg.BcryptCost < 0 {
		return nil, fmt.Errorf("invalid BCRYPT_COST %q", os.Getenv("BCRYPT_COST"))
	}
	if cfg.TelemetryEnabled, err = strconv.ParseBool(getEnv("TELEMETRY_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid TELEMETRY_ENABLED: %w", err)
	}
	if cfg.OutboxSize, err = strconv.Atoi(getEnv("OUTBOX_SIZE", "100")); err != nil || cfg.OutboxSize <= 0 {
		return nil, fmt.Errorf("invalid OUTBOX_SIZE %q", os.Getenv("OUTBOX_SIZE"))
	}

	return cfg, nil
}

// ValidateAPI checks the settings the API service cannot start without.
func (c *Config) ValidateAPI() error {
	var problems []string
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresURL == "" {
			problems = append(problems, "POSTGRES_URL is required when STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
