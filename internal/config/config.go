// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the backtest platform.
type Config struct {
	Server     Server     `yaml:"server"`
	Storage    Storage    `yaml:"storage"`
	MarketData MarketData `yaml:"marketdata"`
	Oracle     Oracle     `yaml:"oracle"`
	Backtest   Backtest   `yaml:"backtest"`
	Logging    Logging    `yaml:"logging"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage selects and configures the persistence backends.
type Storage struct {
	// Backend is "postgres" or "memory".
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// ClickhouseDSN, when set, mirrors daily bars into ClickHouse.
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// MarketData configures the upstream price provider.
type MarketData struct {
	BaseURL       string   `yaml:"base_url"`
	StreamURL     string   `yaml:"stream_url"`
	Symbols       []string `yaml:"symbols"`
	RatePerSecond float64  `yaml:"rate_per_second"`
	Burst         int      `yaml:"burst"`
}

// Oracle configures the probability oracle client.
type Oracle struct {
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Threshold      float64 `yaml:"threshold"`
}

// Backtest holds default strategy parameters.
type Backtest struct {
	Lookback       int     `yaml:"lookback"`
	InitialCapital float64 `yaml:"initial_capital"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  Server{Host: "0.0.0.0", Port: 8080},
		Storage: Storage{Backend: "memory"},
		MarketData: MarketData{
			RatePerSecond: 5,
			Burst:         10,
		},
		Oracle: Oracle{
			BaseURL:        "http://localhost:8001",
			TimeoutSeconds: 10,
			Threshold:      0.55,
		},
		Backtest: Backtest{Lookback: 20, InitialCapital: 10000},
		Logging:  Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path over the defaults
// and then applies environment variable overrides. An empty path loads
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres backend requires postgres_dsn")
	}
	if c.Oracle.Threshold < 0 || c.Oracle.Threshold > 1 {
		return fmt.Errorf("oracle threshold %v out of [0,1]", c.Oracle.Threshold)
	}
	if c.Backtest.Lookback < 1 {
		return fmt.Errorf("lookback must be positive, got %d", c.Backtest.Lookback)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}

	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
	if v := os.Getenv("MARKETDATA_STREAM_URL"); v != "" {
		cfg.MarketData.StreamURL = v
	}

	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("ORACLE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Oracle.Threshold = threshold
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
