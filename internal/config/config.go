// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backend selectors for ANNAI_STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Data-access backend: "memory", "sqlite", or "postgres".
	StoreBackend string
	SQLitePath   string
	DatabaseURL  string // Postgres URL; required when StoreBackend is "postgres".

	// JWT settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// Owner bootstrap: API key accepted by POST /auth/token for the
	// initial owner. Empty disables the bootstrap exchange.
	OwnerAPIKey string
	OwnerID     string

	// Orchestration settings.
	CacheMaxSize      int
	CacheTTL          time.Duration
	DraftTTL          time.Duration
	DraftSweepEvery   time.Duration
	EventHistoryLimit int
	AgentTimeout      time.Duration

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("ANNAI_PORT", 8080),
		ReadTimeout:         envDuration("ANNAI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("ANNAI_WRITE_TIMEOUT", 30*time.Second),
		StoreBackend:        envStr("ANNAI_STORE_BACKEND", StoreSQLite),
		SQLitePath:          envStr("ANNAI_SQLITE_PATH", "annai.db"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		JWTPrivateKeyPath:   envStr("ANNAI_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    envStr("ANNAI_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       envDuration("ANNAI_JWT_EXPIRATION", 24*time.Hour),
		OwnerAPIKey:         envStr("ANNAI_OWNER_API_KEY", ""),
		OwnerID:             envStr("ANNAI_OWNER_ID", "owner"),
		CacheMaxSize:        envInt("ANNAI_CACHE_MAX_SIZE", 500),
		CacheTTL:            envDuration("ANNAI_CACHE_TTL", 5*time.Minute),
		DraftTTL:            envDuration("ANNAI_DRAFT_TTL", 10*time.Minute),
		DraftSweepEvery:     envDuration("ANNAI_DRAFT_SWEEP_INTERVAL", time.Minute),
		EventHistoryLimit:   envInt("ANNAI_EVENT_HISTORY_LIMIT", 1000),
		AgentTimeout:        envDuration("ANNAI_AGENT_TIMEOUT", 10*time.Second),
		RateLimitEnabled:    envBool("ANNAI_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        envFloat("ANNAI_RATE_LIMIT_RPS", 5),
		RateLimitBurst:      envInt("ANNAI_RATE_LIMIT_BURST", 20),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "annai"),
		LogLevel:            envStr("ANNAI_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("ANNAI_MAX_REQUEST_BODY_BYTES", 1*1024*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when ANNAI_STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unknown ANNAI_STORE_BACKEND %q", c.StoreBackend)
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("config: ANNAI_CACHE_MAX_SIZE must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: ANNAI_CACHE_TTL must be positive")
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("config: ANNAI_DRAFT_TTL must be positive")
	}
	if c.EventHistoryLimit <= 0 {
		return fmt.Errorf("config: ANNAI_EVENT_HISTORY_LIMIT must be positive")
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("config: ANNAI_AGENT_TIMEOUT must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: ANNAI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unrecognized values read as info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
