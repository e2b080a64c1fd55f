// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health service listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the slog level: debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreBackend selects the credential store: postgres, redis or memory.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// DatabaseURL is the Postgres DSN; required when StoreBackend is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AutoMigrate runs the embedded migrations up at server start (postgres only).
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`
	// RedisURL is the redis:// URL used when StoreBackend is redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// RedisKeyPrefix prefixes every account hash key in Redis.
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// JWTSecret is the HS256 signing secret shared by every token this process issues.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim set on issued tokens and required on verification.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the default access token lifetime (e.g. "10m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the default refresh token lifetime (e.g. "24h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTLongTTL is the lifetime of both tokens when a login asks for long expiry (e.g. "8760h").
	JWTLongTTL string `mapstructure:"JWT_LONG_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, request telemetry is written to Kafka
	// instead of the OTel log pipeline.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars already set win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", StoreBackendPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_KEY_PREFIX", "user:")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "movie-auth")
	v.SetDefault("JWT_ACCESS_TTL", "10m")
	v.SetDefault("JWT_REFRESH_TTL", "24h")
	v.SetDefault("JWT_LONG_TTL", "8760h") // 365d
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "movie-auth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "movie-auth-telemetry")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "movie-auth-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreBackendPostgres, StoreBackendRedis, StoreBackendMemory:
	default:
		return nil, errors.New("config: STORE_BACKEND must be one of postgres, redis, memory")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// TokenSecret returns the signing secret, or an error when JWT_SECRET is unset.
// Only binaries that issue or verify tokens call it.
func (c *Config) TokenSecret() ([]byte, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	return []byte(c.JWTSecret), nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseTTL(c.JWTAccessTTL, 10*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseTTL(c.JWTRefreshTTL, 24*time.Hour)
}

// LongTTL parses JWTLongTTL as a time.Duration. Returns 8760h if unset or invalid.
func (c *Config) LongTTL() time.Duration {
	return parseTTL(c.JWTLongTTL, 365*24*time.Hour)
}

func parseTTL(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
