package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
broker:
  type: none
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Filtering.Strict)
	assert.False(t, cfg.Filtering.IgnoreMissingFields)
	assert.Equal(t, "error", cfg.Filtering.Fallback.OnError)
	assert.Equal(t, 30, cfg.Filtering.Reload.IntervalSeconds)
	assert.Equal(t, 3, cfg.Broker.Kafka.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Broker.Kafka.Retry.Multiplier)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.True(t, cfg.Database.RunMigrations)
	assert.False(t, cfg.Database.Postgres.Enabled())
	assert.False(t, cfg.Database.Redis.Enabled())
	assert.True(t, cfg.Tracing.OTLP.Insecure)
}

func TestLoadConfigFileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  read_timeout: 2s
logging:
  level: debug
  format: console
database:
  run_migrations: false
  postgres:
    host: db
    user: sieve
    password: secret
    dbname: sieve
  redis:
    host: cache
broker:
  type: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
    dlq_topic: sieve_dlq
filtering:
  strict: false
  ignore_missing_fields: true
  fallback:
    on_error: deny
tracing:
  otlp:
    insecure: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Database.RunMigrations)
	assert.Equal(t, "postgres://sieve:secret@db:5432/sieve?sslmode=disable", cfg.Database.Postgres.DSN())
	assert.Equal(t, "cache:6379", cfg.Database.Redis.Addr())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "raw_events", cfg.Broker.Kafka.InputTopic)
	assert.Equal(t, "sieve_dlq", cfg.Broker.Kafka.DLQTopic)
	assert.False(t, cfg.Filtering.Strict)
	assert.True(t, cfg.Filtering.IgnoreMissingFields)
	assert.Equal(t, "deny", cfg.Filtering.Fallback.OnError)
	assert.False(t, cfg.Tracing.OTLP.Insecure)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
broker:
  type: kafka
  kafka:
    brokers: ["file:9092"]
`)
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("BROKER_KAFKA_BROKERS", "env1:9092, env2:9092")
	t.Setenv("FILTERING_FALLBACK_ON_ERROR", "allow")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"env1:9092", "env2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "allow", cfg.Filtering.Fallback.OnError)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second, MaxBodyBytes: 1024},
			Logging: LoggingConfig{Level: "info", Format: "json"},
			Broker: BrokerConfig{Type: "kafka", Kafka: KafkaConfig{
				Brokers:     []string{"localhost:9092"},
				GroupID:     "sieve",
				InputTopic:  "in",
				OutputTopic: "out",
				Retry:       RetryConfig{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2},
			}},
			Filtering: FilteringConfig{
				Reload:   ReloadConfig{IntervalSeconds: 30},
				Fallback: FallbackConfig{OnError: "error"},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.type"},
		{"no brokers", func(c *Config) { c.Broker.Kafka.Brokers = nil }, "broker.kafka.brokers"},
		{"same topics", func(c *Config) { c.Broker.Kafka.OutputTopic = "in" }, "broker.kafka.output_topic"},
		{"broker none skips kafka", func(c *Config) { c.Broker.Type = "none"; c.Broker.Kafka = KafkaConfig{} }, ""},
		{"bad fallback", func(c *Config) { c.Filtering.Fallback.OnError = "skip" }, "filtering.fallback.on_error"},
		{"postgres without user", func(c *Config) {
			c.Database.Postgres = PostgresConfig{Host: "db", Port: 5432, DBName: "sieve"}
		}, "database.postgres.user"},
		{"bad sslmode", func(c *Config) {
			c.Database.Postgres = PostgresConfig{Host: "db", Port: 5432, User: "u", DBName: "d", SSLMode: "sometimes"}
		}, "database.postgres.sslmode"},
		{"bad breaker ratio", func(c *Config) {
			c.CircuitBreaker = CircuitBreakerConfig{Enabled: true, FailureRatio: 2, Timeout: time.Second}
		}, "circuit_breaker.failure_ratio"},
		{"rate limit without rps", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true, Burst: 1} }, "rate_limit"},
		{"tracing sampler", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, OTLP: OTLPConfig{Endpoint: "x:4317"}, Sampler: SamplerConfig{Type: "sometimes"}}
		}, "tracing.sampler.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "'"+tt.field+"'")
		})
	}
}
