// Package config loads portfolio-pulse settings from an optional YAML file,
// a .env file, and PORTFOLIO_ environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore, e.g. PORTFOLIO_LOGS__MAX_RECONNECTS.
const EnvPrefix = "PORTFOLIO_"

// DefaultFile is read when Load is given no explicit path.
const DefaultFile = "portfolio.yaml"

type Config struct {
	API   APIConfig   `koanf:"api"`
	Site  SiteConfig  `koanf:"site"`
	Chat  ChatConfig  `koanf:"chat"`
	Logs  LogsConfig  `koanf:"logs"`
	State StateConfig `koanf:"state"`
	Mock  MockConfig  `koanf:"mock"`
	Log   LogConfig   `koanf:"log"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SiteConfig describes the public site the events are recorded for.
type SiteConfig struct {
	URL       string `koanf:"url"`
	UserAgent string `koanf:"user_agent"`
}

type ChatConfig struct {
	// Endpoint is the chat send path relative to the API base URL.
	Endpoint string `koanf:"endpoint"`
}

type LogsConfig struct {
	PreflightTimeout time.Duration `koanf:"preflight_timeout"`
	ReconnectDelay   time.Duration `koanf:"reconnect_delay"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReadyTimeout     time.Duration `koanf:"ready_timeout"`
	CloseDelay       time.Duration `koanf:"close_delay"`
}

type StateConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite
	Path   string `koanf:"path"`
}

// MockConfig configures the local development backend.
type MockConfig struct {
	Port          int           `koanf:"port"`
	AdminUsername string        `koanf:"admin_username"`
	AdminPassword string        `koanf:"admin_password"`
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

var defaults = map[string]any{
	"api.base_url":           "http://localhost:5000/api",
	"api.timeout":            "30s",
	"chat.endpoint":          "/chat/send",
	"logs.preflight_timeout": "3s",
	"logs.reconnect_delay":   "3s",
	"logs.max_reconnects":    5,
	"logs.ready_timeout":     "2s",
	"logs.close_delay":       "5s",
	"state.driver":           "sqlite",
	"state.path":             "portfolio-state.db",
	"mock.port":              5000,
	"mock.admin_username":    "admin",
	"mock.admin_password":    "portfolio-admin",
	"mock.jwt_secret":        "dev-only-secret",
	"mock.token_ttl":         "24h",
	"log.level":              "info",
	"log.format":             "json",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration. path may be empty to use DefaultFile; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = DefaultFile
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Mock.AdminPassword = substituteEnvVars(cfg.Mock.AdminPassword)
	cfg.Mock.JWTSecret = substituteEnvVars(cfg.Mock.JWTSecret)
	cfg.API.BaseURL = substituteEnvVars(cfg.API.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	if c.Logs.MaxReconnects < 0 {
		return fmt.Errorf("logs.max_reconnects must be >= 0, got %d", c.Logs.MaxReconnects)
	}
	switch c.State.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("state.driver must be memory or sqlite, got %q", c.State.Driver)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
