// Package server provides configuration helpers that define runtime defaults,
// validation, and file/environment loading for the relay service.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/gorelay/internal/registry"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string   `yaml:"port" env:"RELAY_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	StaticDir      string   `yaml:"static_dir" env:"RELAY_STATIC_DIR"`

	GracePeriod    time.Duration `yaml:"grace_period" env:"RELAY_GRACE_PERIOD"`
	OutboundBuffer int           `yaml:"outbound_buffer" env:"RELAY_OUTBOUND_BUFFER"`
	MaxRequestSize int64         `yaml:"max_request_size" env:"RELAY_MAX_REQUEST_SIZE"`

	RateLimitBurst          int           `yaml:"rate_limit_burst" env:"RELAY_RATE_LIMIT_BURST"`
	RateLimitRefillInterval time.Duration `yaml:"rate_limit_refill_interval" env:"RELAY_RATE_LIMIT_REFILL_INTERVAL"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"RELAY_SHUTDOWN_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"RELAY_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"RELAY_LOG_FORMAT"`
}

const allowedOriginsEnv = "RELAY_ALLOWED_ORIGINS"

func defaultConfig() Config {
	return Config{
		Port:                    ":8080",
		AllowedOrigins:          []string{"*"},
		StaticDir:               "static",
		GracePeriod:             registry.DefaultGracePeriod,
		OutboundBuffer:          registry.DefaultOutboundBuffer,
		MaxRequestSize:          1 << 20,
		RateLimitBurst:          20,
		RateLimitRefillInterval: time.Second,
		ShutdownTimeout:         10 * time.Second,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}

	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaults.GracePeriod
	}

	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = defaults.OutboundBuffer
	}

	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = defaults.MaxRequestSize
	}

	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaults.RateLimitBurst
	}

	if cfg.RateLimitRefillInterval <= 0 {
		cfg.RateLimitRefillInterval = defaults.RateLimitRefillInterval
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}

	cfg.AllowedOrigins = lo.Uniq(lo.Compact(lo.Map(cfg.AllowedOrigins, func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	})))

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds a Config from defaults, then the optional YAML file at
// path, then RELAY_* environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if origins, ok := os.LookupEnv(allowedOriginsEnv); ok {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
