package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration, read from the environment
type Config struct {
	Env               string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8080"`
	BackendURL        string        `env:"BACKEND_URL" envDefault:"http://127.0.0.1:5000"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"0s"`
	PageTokenSecret   string        `env:"PAGE_TOKEN_SECRET"`
	FormIdleTTL       time.Duration `env:"FORM_IDLE_TTL" envDefault:"1h"`
	FormSweepInterval time.Duration `env:"FORM_SWEEP_INTERVAL" envDefault:"1m"`
	MaxForms          int           `env:"FORM_MAX" envDefault:"10000"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses the process environment
func LoadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.BackendURL = strings.TrimSpace(cfg.BackendURL)
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	if cfg.BackendTimeout < 0 {
		return Config{}, fmt.Errorf("BACKEND_TIMEOUT must not be negative, got %s", cfg.BackendTimeout)
	}
	if cfg.MaxForms <= 0 {
		return Config{}, fmt.Errorf("FORM_MAX must be positive, got %d", cfg.MaxForms)
	}
	return cfg, nil
}
