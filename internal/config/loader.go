package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if listenAddr := os.Getenv("PARISH_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if env := os.Getenv("PARISH_ENV"); env != "" {
		cfg.Server.Environment = env
	}

	if ping := os.Getenv("PING_MESSAGE"); ping != "" {
		cfg.Server.PingMessage = ping
	}

	if dbPath := os.Getenv("PARISH_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if frontend := os.Getenv("PARISH_FRONTEND_URL"); frontend != "" {
		cfg.Security.FrontendURL = frontend
	}

	if username := os.Getenv("PARISH_ADMIN_USERNAME"); username != "" {
		cfg.Admin.Seed.Username = username
	}

	if email := os.Getenv("PARISH_ADMIN_EMAIL"); email != "" {
		cfg.Admin.Seed.Email = email
	}

	if password := os.Getenv("PARISH_ADMIN_PASSWORD"); password != "" {
		cfg.Admin.Seed.Password = password
	}

	if level := os.Getenv("PARISH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
