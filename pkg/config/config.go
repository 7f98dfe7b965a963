// Package config loads picomon's process-wide settings from the environment.
// Values are read once at startup; changing them requires a restart.
package config

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
)

// StoreDriver selects the MonitorStore backend.
type StoreDriver string

const (
	StoreSQLite StoreDriver = "sqlite"
	StoreJSON   StoreDriver = "json"
)

// Config is the full process configuration.
type Config struct {
	Discord   DiscordConfig
	Monitor   MonitorConfig
	Store     StoreConfig
	Gateway   GatewayConfig
	Log       LogConfig
	GamesFile string `env:"GAMES_FILE"`
}

// DiscordConfig holds the chat front-end settings.
type DiscordConfig struct {
	Token          string `env:"DISCORD_TOKEN"`
	Prefix         string `env:"PREFIX" envDefault:"!"`
	SuppressWakeup bool   `env:"SUPPRESS_WAKEUP" envDefault:"false"`
}

// MonitorConfig tunes admission and the reconciliation loop.
type MonitorConfig struct {
	Limit           int    `env:"MONITOR_LIMIT" envDefault:"3"`
	PollingInterval int    `env:"MONITOR_POLLING_INTERVAL" envDefault:"60000"` // milliseconds
	Schedule        string `env:"MONITOR_SCHEDULE"`                           // cron expression, overrides PollingInterval
	Concurrency     int    `env:"MONITOR_CONCURRENCY" envDefault:"8"`
	ProbeTimeoutMs  int    `env:"PROBE_TIMEOUT_MS" envDefault:"5000"`
	TaskTimeoutMs   int    `env:"TASK_TIMEOUT_MS" envDefault:"20000"`
}

// StoreConfig selects and locates the monitor store.
type StoreConfig struct {
	Driver       StoreDriver `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabasePath string      `env:"DATABASE_PATH" envDefault:"picomon.db"`
	DataDir      string      `env:"DATA_DIR" envDefault:"./data"`
}

// GatewayConfig controls the optional ops HTTP API.
type GatewayConfig struct {
	Addr   string `env:"HTTP_ADDR"`
	APIKey string `env:"API_KEY"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses an explicit environment map instead of the process
// environment. Unset keys fall back to their defaults.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the cron expression.
func (c *Config) Validate() error {
	if c.Monitor.Limit < 1 {
		return fmt.Errorf("MONITOR_LIMIT must be at least 1, got %d", c.Monitor.Limit)
	}
	if c.Monitor.PollingInterval < 1 {
		return fmt.Errorf("MONITOR_POLLING_INTERVAL must be positive, got %d", c.Monitor.PollingInterval)
	}
	if c.Monitor.Concurrency < 1 {
		return fmt.Errorf("MONITOR_CONCURRENCY must be at least 1, got %d", c.Monitor.Concurrency)
	}
	if c.Monitor.ProbeTimeoutMs < 1 || c.Monitor.TaskTimeoutMs < 1 {
		return fmt.Errorf("PROBE_TIMEOUT_MS and TASK_TIMEOUT_MS must be positive")
	}
	if c.Monitor.Schedule != "" && !gronx.New().IsValid(c.Monitor.Schedule) {
		return fmt.Errorf("MONITOR_SCHEDULE is not a valid cron expression: %q", c.Monitor.Schedule)
	}
	switch c.Store.Driver {
	case StoreSQLite, StoreJSON:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or json)", c.Store.Driver)
	}
	return nil
}

// Interval returns the reconciliation interval as a duration.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.PollingInterval) * time.Millisecond
}

// ProbeTimeout bounds a single game-server query.
func (m MonitorConfig) ProbeTimeout() time.Duration {
	return time.Duration(m.ProbeTimeoutMs) * time.Millisecond
}

// TaskTimeout bounds one task's probe and, separately, its push, so a
// single task can take up to twice this long within a cycle.
func (m MonitorConfig) TaskTimeout() time.Duration {
	return time.Duration(m.TaskTimeoutMs) * time.Millisecond
}
