package config

import (
	"fmt"
	"strings"
	"time"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Admin     AdminConfig     `yaml:"admin"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	Environment     string   `yaml:"environment"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	PingMessage     string   `yaml:"ping_message"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains session token and password hashing configuration
type AuthConfig struct {
	TokenTTL        string `yaml:"token_ttl"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// AdminConfig contains the optional administrator seeded at startup
type AdminConfig struct {
	Seed SeedUserConfig `yaml:"seed"`
}

// SeedUserConfig describes a user created on first start
type SeedUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Enabled reports whether a seed user is configured
func (s SeedUserConfig) Enabled() bool {
	return s.Email != "" && s.Password != ""
}

// SecurityConfig contains origin validation configuration
type SecurityConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	FrontendURL    string   `yaml:"frontend_url"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool        `yaml:"enabled"`
	Auth    LimitConfig `yaml:"auth"`
	API     LimitConfig `yaml:"api"`
}

// LimitConfig is a single (window, max requests) pair
type LimitConfig struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

// WindowDuration returns the window as time.Duration
func (l LimitConfig) WindowDuration() time.Duration {
	d, _ := parseDuration(l.Window)
	return d
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Environment:     EnvProduction,
			ShutdownTimeout: "10s",
			PingMessage:     "ping",
			MaxBodyBytes:    10 << 20,
		},
		Database: DatabaseConfig{
			Path: "data/parish.db",
		},
		Auth: AuthConfig{
			TokenTTL:        "24h",
			BcryptCost:      12,
			CleanupInterval: "1h",
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000", "https://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Auth:    LimitConfig{Window: "15m", MaxRequests: 5},
			API:     LimitConfig{Window: "1m", MaxRequests: 100},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("server.environment must be '%s' or '%s'", EnvDevelopment, EnvProduction)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdown_timeout is invalid: %w", err)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Auth validation
	ttl, err := parseDuration(c.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("auth.token_ttl is invalid: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if _, err := parseDuration(c.Auth.CleanupInterval); err != nil {
		return fmt.Errorf("auth.cleanup_interval is invalid: %w", err)
	}

	// Seed admin validation
	seed := c.Admin.Seed
	if seed.Email != "" || seed.Password != "" || seed.Username != "" {
		if seed.Email == "" || seed.Password == "" || seed.Username == "" {
			return fmt.Errorf("admin.seed requires username, email and password together")
		}
	}

	// Security validation
	for _, origin := range c.Security.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("security.allowed_origins entry %q must start with http:// or https://", origin)
		}
	}

	if f := c.Security.FrontendURL; f != "" && !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
		return fmt.Errorf("security.frontend_url must start with http:// or https://")
	}

	// Rate limit validation
	if c.RateLimit.Enabled {
		for name, l := range map[string]LimitConfig{"auth": c.RateLimit.Auth, "api": c.RateLimit.API} {
			d, err := parseDuration(l.Window)
			if err != nil || d <= 0 {
				return fmt.Errorf("rate_limit.%s.window is invalid", name)
			}
			if l.MaxRequests <= 0 {
				return fmt.Errorf("rate_limit.%s.max_requests must be positive", name)
			}
		}
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// AllowedOrigins returns the origin allow-list including the frontend URL
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.Security.AllowedOrigins)+1)
	if c.Security.FrontendURL != "" {
		origins = append(origins, strings.TrimRight(c.Security.FrontendURL, "/"))
	}
	for _, o := range c.Security.AllowedOrigins {
		o = strings.TrimRight(o, "/")
		if o != "" && !contains(origins, o) {
			origins = append(origins, o)
		}
	}
	return origins
}

// GetTokenTTLDuration returns the session token validity as time.Duration
func (c *Config) GetTokenTTLDuration() time.Duration {
	d, _ := parseDuration(c.Auth.TokenTTL)
	return d
}

// GetCleanupIntervalDuration returns the expired token sweep interval
func (c *Config) GetCleanupIntervalDuration() time.Duration {
	d, _ := parseDuration(c.Auth.CleanupInterval)
	return d
}

// GetShutdownTimeoutDuration returns the graceful shutdown timeout
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseDuration parses duration with support for days (e.g., "1d")
func parseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
