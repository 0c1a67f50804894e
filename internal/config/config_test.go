package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT", "CREDENTIALS_FILE",
		"SESSION_IDLE_TIMEOUT", "SESSION_SWEEP_INTERVAL", "SECRET_ATTEMPTS_PER_MINUTE",
		"PROVIDER", "LOCAL_ROOT", "S3_ENDPOINT", "S3_BUCKET", "S3_ACCESS_KEY",
		"S3_SECRET_KEY", "S3_REGION", "S3_USE_SSL", "S3_PREFIX", "DATABASE_URL", "MIGRATIONS_DIR",
		"GATEWAY_JWT_SECRET", "MAX_UPLOAD_SIZE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GATEWAY_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.CredentialsFile != "security.json" {
		t.Errorf("CredentialsFile = %q", cfg.CredentialsFile)
	}
	if cfg.SessionIdleTimeout != 10*time.Minute {
		t.Errorf("SessionIdleTimeout = %s", cfg.SessionIdleTimeout)
	}
	if cfg.SessionSweepInterval != 2*time.Minute {
		t.Errorf("SessionSweepInterval = %s", cfg.SessionSweepInterval)
	}
	if cfg.Provider != "local" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.SecretAttemptsPerMinute != 0 {
		t.Errorf("SecretAttemptsPerMinute = %d", cfg.SecretAttemptsPerMinute)
	}
	if cfg.MaxUploadSize != 100*1024*1024 {
		t.Errorf("MaxUploadSize = %d", cfg.MaxUploadSize)
	}
	if cfg.MigrationsDir != "migrations" {
		t.Errorf("MigrationsDir = %q", cfg.MigrationsDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GATEWAY_JWT_SECRET", "0123456789abcdef")
	t.Setenv("SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("SESSION_SWEEP_INTERVAL", "60")
	t.Setenv("PROVIDER", "s3")
	t.Setenv("S3_BUCKET", "folders")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("MIGRATIONS_DIR", "/app/migrations")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("SessionIdleTimeout = %s", cfg.SessionIdleTimeout)
	}
	if cfg.SessionSweepInterval != time.Minute {
		t.Errorf("SessionSweepInterval = %s, want bare seconds parsed", cfg.SessionSweepInterval)
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL should be false")
	}
	if cfg.MigrationsDir != "/app/migrations" {
		t.Errorf("MigrationsDir = %q", cfg.MigrationsDir)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing jwt secret", map[string]string{}, "GatewayJWTSecret"},
		{"unknown provider", map[string]string{"PROVIDER": "ftp"}, "Provider"},
		{"postgres without url", map[string]string{"PROVIDER": "postgres"}, "DatabaseURL"},
		{"s3 without bucket", map[string]string{"PROVIDER": "s3"}, "S3Bucket"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LogLevel"},
		{"sweep longer than timeout", map[string]string{
			"SESSION_IDLE_TIMEOUT":   "1m",
			"SESSION_SWEEP_INTERVAL": "5m",
		}, "SessionSweepInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.field != "GatewayJWTSecret" {
				t.Setenv("GATEWAY_JWT_SECRET", "0123456789abcdef")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := &Config{GatewayJWTSecret: "supersecretvalue", S3SecretKey: "hidden"}
	s := cfg.String()
	if strings.Contains(s, "supersecretvalue") || strings.Contains(s, "hidden") {
		t.Errorf("String() leaked a secret: %s", s)
	}
}
