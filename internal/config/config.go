// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all foldergate server configuration.
type Config struct {
	// Server
	ListenAddr  string `validate:"required"`
	MetricsAddr string

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	// Credentials
	CredentialsFile string `validate:"required"`

	// Sessions
	SessionIdleTimeout      time.Duration `validate:"gt=0"`
	SessionSweepInterval    time.Duration `validate:"gt=0"`
	SecretAttemptsPerMinute int           `validate:"gte=0"`

	// Directory provider ("local", "s3" or "postgres", default: "local")
	Provider  string `validate:"oneof=local s3 postgres"`
	LocalRoot string `validate:"required_if=Provider local"`

	// S3 storage
	S3Endpoint  string
	S3Bucket    string `validate:"required_if=Provider s3"`
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Prefix    string

	// Database
	DatabaseURL   string `validate:"required_if=Provider postgres"`
	MigrationsDir string

	// Gateway auth
	GatewayJWTSecret string `validate:"required,min=16"`

	// Uploads
	MaxUploadSize int64 `validate:"gt=0"`
}

// Load reads configuration from environment variables with defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:              envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:             envOr("METRICS_ADDR", ":9090"),
		LogLevel:                envOr("LOG_LEVEL", "info"),
		LogFormat:               envOr("LOG_FORMAT", "json"),
		CredentialsFile:         envOr("CREDENTIALS_FILE", "security.json"),
		SessionIdleTimeout:      envDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		SessionSweepInterval:    envDuration("SESSION_SWEEP_INTERVAL", 2*time.Minute),
		SecretAttemptsPerMinute: envInt("SECRET_ATTEMPTS_PER_MINUTE", 0), // 0 = unlimited
		Provider:                envOr("PROVIDER", "local"),
		LocalRoot:               envOr("LOCAL_ROOT", "./data"),
		S3Endpoint:              envOr("S3_ENDPOINT", ""),
		S3Bucket:                envOr("S3_BUCKET", ""),
		S3AccessKey:             envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:             envOr("S3_SECRET_KEY", ""),
		S3Region:                envOr("S3_REGION", "us-east-1"),
		S3UseSSL:                envBool("S3_USE_SSL", true),
		S3Prefix:                envOr("S3_PREFIX", ""),
		DatabaseURL:             envOr("DATABASE_URL", ""),
		MigrationsDir:           envOr("MIGRATIONS_DIR", "migrations"),
		GatewayJWTSecret:        envOr("GATEWAY_JWT_SECRET", ""),
		MaxUploadSize:           envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

// envDuration accepts Go durations ("90s", "10m") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// String renders the config for startup logs with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s metrics=%s provider=%s credentials=%s idle=%s sweep=%s",
		c.ListenAddr, c.MetricsAddr, c.Provider, c.CredentialsFile,
		c.SessionIdleTimeout, c.SessionSweepInterval)
}
