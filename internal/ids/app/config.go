package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer         string // Required: issuer URL stamped into tokens
	BootstrapToken string // Optional: token gating the one-shot bootstrap endpoint

	Algorithm     string        // Signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	RSABits       int           // RSA key size for RS256 (default: 4096)
	KeyMode       string        // Key storage mode (ephemeral, persistent) (default: ephemeral)
	KeyLifetime   time.Duration // Validity window of generated signing keys (default: 90 days)
	MasterKeyFile string        // Path to the master encryption key file (persistent keys, sealed TOTP secrets)
	DatabaseFile  string        // Path to the SQLite database file (default: ./ids.db)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 7d)
	CodeTTL         time.Duration // Authorization code lifetime (default: 1m)
	FlowTTL         time.Duration // Pending authorization flow lifetime (default: 10m)

	SessionIdleTTL     time.Duration // Browser session idle window (default: 30m)
	SessionAbsoluteTTL time.Duration // Browser session hard cap (default: 12h)
	ConsentTTL         time.Duration // Recorded consent lifetime, 0 means no expiry

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-grant sweep interval (default: 5m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         os.Getenv("IDS_ISSUER"),
		BootstrapToken: os.Getenv("IDS_BOOTSTRAP_TOKEN"),

		Algorithm:     getEnvOrDefault("IDS_ALGORITHM", "EdDSA"),
		RSABits:       getEnvIntOrDefault("IDS_RSA_BITS", 0),
		KeyMode:       getEnvOrDefault("IDS_KEY_MODE", "ephemeral"),
		KeyLifetime:   getEnvDurationOrDefault("IDS_KEY_LIFETIME", 0),
		MasterKeyFile: os.Getenv("IDS_MASTER_KEY_FILE"),
		DatabaseFile:  getEnvOrDefault("IDS_DATABASE_FILE", "ids.db"),

		AccessTokenTTL:  getEnvDurationOrDefault("IDS_ACCESS_TOKEN_TTL", 0),
		RefreshTokenTTL: getEnvDurationOrDefault("IDS_REFRESH_TOKEN_TTL", 0),
		CodeTTL:         getEnvDurationOrDefault("IDS_CODE_TTL", time.Minute),
		FlowTTL:         getEnvDurationOrDefault("IDS_FLOW_TTL", 10*time.Minute),

		SessionIdleTTL:     getEnvDurationOrDefault("IDS_SESSION_IDLE_TTL", 30*time.Minute),
		SessionAbsoluteTTL: getEnvDurationOrDefault("IDS_SESSION_ABSOLUTE_TTL", 12*time.Hour),
		ConsentTTL:         getEnvDurationOrDefault("IDS_CONSENT_TTL", 0),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "http://localhost:8080"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
