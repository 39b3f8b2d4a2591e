// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the fishflow-api process configuration. Blob and catalog driver
// selection keeps its own FISHFLOW_BLOB_* / FISHFLOW_CATALOG_* variables in
// the respective factories.
type Config struct {
	Addr             string        `env:"FISHFLOW_ADDR" envDefault:":8000"`
	Mode             string        `env:"FISHFLOW_MODE" envDefault:"development"`
	CORSOrigins      []string      `env:"FISHFLOW_CORS_ORIGINS" envDefault:"http://localhost:3000"`
	FetchConcurrency int           `env:"FISHFLOW_FETCH_CONCURRENCY" envDefault:"3"`
	ShutdownTimeout  time.Duration `env:"FISHFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsDriver    string        `env:"FISHFLOW_METRICS" envDefault:"prometheus"` // prometheus|expvar|none
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.FetchConcurrency < 1 {
		return Config{}, fmt.Errorf("FISHFLOW_FETCH_CONCURRENCY must be at least 1, got %d", cfg.FetchConcurrency)
	}
	switch cfg.MetricsDriver {
	case "prometheus", "expvar", "none":
	default:
		return Config{}, fmt.Errorf("unknown FISHFLOW_METRICS driver %q", cfg.MetricsDriver)
	}
	return cfg, nil
}

// Production reports whether the process runs in production mode.
func (c Config) Production() bool {
	return c.Mode == "prod" || c.Mode == "production"
}
