// Package config provides process configuration for the FAQ learning service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "FAQLEARN"

	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38080

	// DefaultModel is the generative model used when none is configured.
	DefaultModel = "claude-3-5-haiku-latest"
)

// Settings backends.
const (
	SettingsBackendDB     = "db"
	SettingsBackendFile   = "file"
	SettingsBackendMemory = "memory"
)

// Config holds the process configuration.
// Learning settings (thresholds, weights, switches) live in the settings store, not here.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Worker settings
	WorkerHost      string        `envconfig:"WORKER_HOST" default:"127.0.0.1"`
	WorkerPort      int           `envconfig:"WORKER_PORT" default:"38080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	AuthToken       string        `envconfig:"AUTH_TOKEN"`
	RateLimitRPS    float64       `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"40"`

	// Database settings. An empty DSN runs on in-memory repositories.
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"8"`

	// Settings store
	SettingsBackend string `envconfig:"SETTINGS_BACKEND" default:"db"`
	SettingsPath    string `envconfig:"SETTINGS_PATH" default:"learning-settings.json"`

	// Generative provider. An empty key runs without a provider.
	AnthropicAPIKey    string        `envconfig:"ANTHROPIC_API_KEY"`
	Model              string        `envconfig:"MODEL" default:"claude-3-5-haiku-latest"`
	ProviderRPS        float64       `envconfig:"PROVIDER_RPS" default:"2"`
	ProviderConcurrent int64         `envconfig:"PROVIDER_CONCURRENCY" default:"4"`
	ProviderMaxTokens  int           `envconfig:"PROVIDER_MAX_TOKENS" default:"1024"`
	ProviderContextMax int           `envconfig:"PROVIDER_CONTEXT_TOKENS" default:"3000"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"45s"`

	// Scheduler
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`
}

// Load reads the optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := loadEnvFile(os.Getenv(EnvPrefix + "_ENV_FILE")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads path (default ".env") without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.WorkerPort < 1 || c.WorkerPort > 65535 {
		return fmt.Errorf("%s_WORKER_PORT must be in 1..65535", EnvPrefix)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("%s_DB_MAX_CONNS must be >= 1", EnvPrefix)
	}
	switch c.SettingsBackend {
	case SettingsBackendDB:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("%s_SETTINGS_BACKEND=db requires %s_DATABASE_DSN", EnvPrefix, EnvPrefix)
		}
	case SettingsBackendFile:
		if strings.TrimSpace(c.SettingsPath) == "" {
			return fmt.Errorf("%s_SETTINGS_PATH is required for the file backend", EnvPrefix)
		}
	case SettingsBackendMemory:
	default:
		return fmt.Errorf("unknown %s_SETTINGS_BACKEND %q", EnvPrefix, c.SettingsBackend)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("%s_RATE_LIMIT_RPS must be > 0 and %s_RATE_LIMIT_BURST >= 1", EnvPrefix, EnvPrefix)
	}
	if c.ProviderRPS <= 0 {
		return fmt.Errorf("%s_PROVIDER_RPS must be > 0", EnvPrefix)
	}
	if c.ProviderConcurrent < 1 {
		return fmt.Errorf("%s_PROVIDER_CONCURRENCY must be >= 1", EnvPrefix)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%s_TIMEZONE: %w", EnvPrefix, err)
	}
	return nil
}

// Location returns the scheduler time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkerAddr returns host:port for the HTTP listener.
func (c *Config) WorkerAddr() string {
	return fmt.Sprintf("%s:%d", c.WorkerHost, c.WorkerPort)
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with default values and the in-memory settings backend.
func Default() *Config {
	return &Config{
		Environment:        "local",
		LogLevel:           "info",
		WorkerHost:         "127.0.0.1",
		WorkerPort:         DefaultWorkerPort,
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		MaxConns:           8,
		SettingsBackend:    SettingsBackendMemory,
		SettingsPath:       "learning-settings.json",
		Model:              DefaultModel,
		ProviderRPS:        2,
		ProviderConcurrent: 4,
		ProviderMaxTokens:  1024,
		ProviderContextMax: 3000,
		ProviderTimeout:    45 * time.Second,
		Timezone:           "UTC",
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
