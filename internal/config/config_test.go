package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, EnvProduction, cfg.Server.Environment)
	assert.Equal(t, 24*time.Hour, cfg.GetTokenTTLDuration())
	assert.Equal(t, time.Hour, cfg.GetCleanupIntervalDuration())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeoutDuration())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.Auth.MaxRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Auth.WindowDuration())
	assert.Equal(t, 100, cfg.RateLimit.API.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.API.WindowDuration())
	assert.False(t, cfg.Admin.Seed.Enabled())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: "127.0.0.1:9000"
  environment: development
database:
  path: /tmp/parish.db
auth:
  token_ttl: 2d
  bcrypt_cost: 10
security:
  frontend_url: https://parish.example.org/
  allowed_origins:
    - https://admin.example.org
rate_limit:
  auth:
    window: 1m
    max_requests: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "/tmp/parish.db", cfg.Database.Path)
	assert.Equal(t, 48*time.Hour, cfg.GetTokenTTLDuration())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 3, cfg.RateLimit.Auth.MaxRequests)
	// untouched nested values keep their defaults
	assert.Equal(t, 100, cfg.RateLimit.API.MaxRequests)
	assert.Equal(t, []string{"https://parish.example.org", "https://admin.example.org"}, cfg.AllowedOrigins())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad environment", "server:\n  environment: staging\n"},
		{"zero body limit", "server:\n  max_body_bytes: 0\n"},
		{"bad ttl", "auth:\n  token_ttl: forever\n"},
		{"bad bcrypt cost", "auth:\n  bcrypt_cost: 2\n"},
		{"partial seed", "admin:\n  seed:\n    email: a@b.c\n"},
		{"bad origin", "security:\n  allowed_origins: [parish.org]\n"},
		{"zero limit", "rate_limit:\n  api:\n    max_requests: 0\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("PARISH_LISTEN_ADDR", ":7070")
	t.Setenv("PARISH_ENV", "development")
	t.Setenv("PARISH_DB_PATH", "/var/lib/parish/parish.db")
	t.Setenv("PARISH_FRONTEND_URL", "https://stbhakita.org")
	t.Setenv("PARISH_ADMIN_USERNAME", "admin")
	t.Setenv("PARISH_ADMIN_EMAIL", "admin@stbhakita.org")
	t.Setenv("PARISH_ADMIN_PASSWORD", "change-me")
	t.Setenv("PING_MESSAGE", "pong")

	cfg, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "pong", cfg.Server.PingMessage)
	assert.Equal(t, "/var/lib/parish/parish.db", cfg.Database.Path)
	assert.True(t, cfg.Admin.Seed.Enabled())
	assert.Equal(t, "https://stbhakita.org", cfg.AllowedOrigins()[0])
}

func TestLoadWithEnv_InvalidOverride(t *testing.T) {
	t.Setenv("PARISH_LOG_LEVEL", "verbose")

	_, err := LoadWithEnv("")
	assert.Error(t, err)
}
