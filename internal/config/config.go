package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Filtering      FilteringConfig      `mapstructure:"filtering"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" default:"8080"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"15s"`
	// MaxBodyBytes caps request bodies on the evaluation endpoints.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" default:"10485760"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"json"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	RunMigrations bool           `mapstructure:"run_migrations" default:"true"`
}

// PostgresConfig is optional: without a host the saved filter API and stream
// filtering are unavailable, ad-hoc evaluation still works.
type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" default:"5432"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode" default:"disable"`
	MaxOpenConns int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" default:"5"`
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port" default:"6379"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds" default:"300"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type BrokerConfig struct {
	// Type is "kafka" or "none"; "none" disables stream filtering.
	Type  string      `mapstructure:"type" default:"kafka"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string    `mapstructure:"brokers"`
	GroupID           string      `mapstructure:"group_id" default:"sieve"`
	InputTopic        string      `mapstructure:"input_topic" default:"raw_events"`
	OutputTopic       string      `mapstructure:"output_topic" default:"filtered_events"`
	ConfigUpdateTopic string      `mapstructure:"config_update_topic" default:"config_updates"`
	DLQTopic          string      `mapstructure:"dlq_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" default:"3"`
	InitialInterval time.Duration `mapstructure:"initial_interval" default:"1s"`
	MaxInterval     time.Duration `mapstructure:"max_interval" default:"30s"`
	Multiplier      float64       `mapstructure:"multiplier" default:"2"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type FilteringConfig struct {
	// Strict is the error policy used when a request does not choose one.
	Strict              bool           `mapstructure:"strict" default:"true"`
	IgnoreMissingFields bool           `mapstructure:"ignore_missing_fields"`
	MaxMessages         int            `mapstructure:"max_messages" default:"10000"`
	Reload              ReloadConfig   `mapstructure:"reload"`
	Fallback            FallbackConfig `mapstructure:"fallback"`
}

type FallbackConfig struct {
	OnError string `mapstructure:"on_error" default:"error"` // "allow", "deny", "error"
}

type ReloadConfig struct {
	IntervalSeconds       int `mapstructure:"interval_seconds" default:"30"`
	JitterMaxMilliseconds int `mapstructure:"jitter_max_milliseconds" default:"1000"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps" default:"100"`
	Burst           int     `mapstructure:"burst" default:"200"`
	CleanupInterval int     `mapstructure:"cleanup_interval" default:"60"`
	MaxAge          int     `mapstructure:"max_age" default:"300"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests" default:"3"`
	Interval     time.Duration `mapstructure:"interval" default:"60s"`
	Timeout      time.Duration `mapstructure:"timeout" default:"30s"`
	FailureRatio float64       `mapstructure:"failure_ratio" default:"0.5"`
	MinRequests  uint32        `mapstructure:"min_requests" default:"5"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name" default:"sieve"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint" default:"localhost:4317"`
	Insecure bool   `mapstructure:"insecure" default:"true"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type" default:"parentbased_always_on"`
	Param float64 `mapstructure:"param" default:"1"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
