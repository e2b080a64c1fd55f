package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func resetEnv(t *testing.T, kv ...string) {
	t.Helper()
	os.Clearenv()
	for i := 0; i+1 < len(kv); i += 2 {
		os.Setenv(kv[i], kv[i+1])
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want :9090", cfg.GRPCAddr)
	}
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Errorf("StoreBackend = %q, want postgres", cfg.StoreBackend)
	}
	if cfg.JWTIssuer != "movie-auth" {
		t.Errorf("JWTIssuer = %q, want movie-auth", cfg.JWTIssuer)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.RedisKeyPrefix != "user:" {
		t.Errorf("RedisKeyPrefix = %q, want user:", cfg.RedisKeyPrefix)
	}
	if cfg.AutoMigrate {
		t.Error("AutoMigrate should default to false")
	}
	if cfg.AccessTTL() != 600*time.Second {
		t.Errorf("AccessTTL = %v, want 600s", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 86400*time.Second {
		t.Errorf("RefreshTTL = %v, want 86400s", cfg.RefreshTTL())
	}
	if cfg.LongTTL() != 31536000*time.Second {
		t.Errorf("LongTTL = %v, want 31536000s", cfg.LongTTL())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	resetEnv(t,
		"HTTP_ADDR", ":7070",
		"STORE_BACKEND", " Redis ",
		"JWT_ISSUER", "custom-issuer",
		"BCRYPT_COST", "12",
		"AUTO_MIGRATE", "true",
	)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %q, want :7070", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != StoreBackendRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want custom-issuer", cfg.JWTIssuer)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if !cfg.AutoMigrate {
		t.Error("AutoMigrate should be true")
	}
}

func TestLoad_InvalidStoreBackend(t *testing.T) {
	resetEnv(t, "STORE_BACKEND", "mongo")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should reject unknown STORE_BACKEND")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero defaults", "0", 10, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resetEnv(t, "BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestTokenSecret(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.TokenSecret(); err == nil {
		t.Error("TokenSecret with empty JWT_SECRET should fail")
	}
	cfg.JWTSecret = "   "
	if _, err := cfg.TokenSecret(); err == nil {
		t.Error("TokenSecret with blank JWT_SECRET should fail")
	}
	cfg.JWTSecret = "s3cret"
	got, err := cfg.TokenSecret()
	if err != nil {
		t.Fatalf("TokenSecret: %v", err)
	}
	if string(got) != "s3cret" {
		t.Errorf("TokenSecret = %q, want s3cret", got)
	}
}

func TestTTLHelpers_Fallbacks(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		get   func(*Config) time.Duration
		set   func(*Config, string)
		want  time.Duration
	}{
		{"access valid", "30m", (*Config).AccessTTL, func(c *Config, s string) { c.JWTAccessTTL = s }, 30 * time.Minute},
		{"access invalid", "invalid", (*Config).AccessTTL, func(c *Config, s string) { c.JWTAccessTTL = s }, 10 * time.Minute},
		{"access zero", "0", (*Config).AccessTTL, func(c *Config, s string) { c.JWTAccessTTL = s }, 10 * time.Minute},
		{"refresh valid", "336h", (*Config).RefreshTTL, func(c *Config, s string) { c.JWTRefreshTTL = s }, 336 * time.Hour},
		{"refresh negative", "-1h", (*Config).RefreshTTL, func(c *Config, s string) { c.JWTRefreshTTL = s }, 24 * time.Hour},
		{"long empty", "", (*Config).LongTTL, func(c *Config, s string) { c.JWTLongTTL = s }, 8760 * time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			tc.set(cfg, tc.value)
			if got := tc.get(cfg); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.TelemetryKafkaBrokersList(); got != nil {
		t.Errorf("nil config: got %v, want nil", got)
	}
	cfg := &Config{TelemetryKafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := cfg.TelemetryKafkaBrokersList(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
