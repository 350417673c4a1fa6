package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "STORE_DRIVER", "KAFKA_BROKERS", "REDIS_TTL", "TELEMETRY_ENABLED", "OUTBOX_SIZE", "JWT_ISSUER", "JWT_TTL", "ADMIN_SIGNUP_ENABLED", "BCRYPT_COST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("8081")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "order.events", cfg.OrderEventsTopic)
	assert.Equal(t, 5*time.Minute, cfg.RedisTTL)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "roastdirect", cfg.JWTIssuer)
	assert.Equal(t, 100, cfg.OutboxSize)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.AdminSignup)
	assert.Equal(t, 0, cfg.BcryptCost)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_TTL", "30s")
	t.Setenv("TELEMETRY_ENABLED", "false")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("ADMIN_SIGNUP_ENABLED", "true")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load("8081")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.RedisTTL)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.True(t, cfg.AdminSignup)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("JWT_SECRET=from-file\nSTORE_DRIVER=memory\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load("8081")
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("REDIS_TTL", "soon")
	_, err := Load("8081")
	require.ErrorContains(t, err, "REDIS_TTL")

	t.Setenv("REDIS_TTL", "")
	t.Setenv("OUTBOX_SIZE", "-3")
	_, err = Load("8081")
	require.ErrorContains(t, err, "OUTBOX_SIZE")

	t.Setenv("OUTBOX_SIZE", "")
	t.Setenv("JWT_TTL", "-1h")
	_, err = Load("8081")
	require.ErrorContains(t, err, "JWT_TTL")

	t.Setenv("JWT_TTL", "")
	t.Setenv("ADMIN_SIGNUP_ENABLED", "maybe")
	_, err = Load("8081")
	require.ErrorContains(t, err, "ADMIN_SIGNUP_ENABLED")
}

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory store", Config{StoreDriver: DriverMemory, JWTSecret: "s"}, ""},
		{"postgres with url", Config{StoreDriver: DriverPostgres, PostgresURL: "postgres://x", JWTSecret: "s"}, ""},
		{"missing secret", Config{StoreDriver: DriverMemory}, "JWT_SECRET"},
		{"postgres without url", Config{StoreDriver: DriverPostgres, JWTSecret: "s"}, "POSTGRES_URL"},
		{"unknown driver", Config{StoreDriver: "mongo", JWTSecret: "s"}, "STORE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateAPI()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
