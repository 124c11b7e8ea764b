package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Credential backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	Port        string   `env:"PORT" envDefault:"3000"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CredentialBackend string `env:"CREDENTIAL_BACKEND" envDefault:"file"`
	CredentialPath    string `env:"CREDENTIAL_PATH"`
	CredentialKey     string `env:"CREDENTIAL_KEY"`
	CredentialProfile string `env:"CREDENTIAL_PROFILE" envDefault:"default"`
	DatabaseURL       string `env:"DATABASE_URL"`

	ValidateOnRestore bool `env:"VALIDATE_SESSION_ON_RESTORE" envDefault:"false"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(c.APIBaseURL), "/")
	c.Port = fallback(c.Port, "3000")
	c.CredentialBackend = strings.ToLower(fallback(c.CredentialBackend, BackendFile))
	c.CredentialProfile = fallback(c.CredentialProfile, "default")
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.CORSOrigins = cleanList(c.CORSOrigins)
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	switch c.CredentialBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when CREDENTIAL_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}
	return nil
}

// HTTPAddress returns the host:port pair for the portal server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func cleanList(in []string) []string {
	var out []string
	for _, part := range in {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
