// Package config loads server configuration from file, environment and
// defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds server configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	SLO        SLOConfig        `mapstructure:"slo"`
	Adapter    AdapterConfig    `mapstructure:"adapter"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Guard      GuardConfig      `mapstructure:"guard"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig describes the HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SLOConfig points at the SLO definitions and their schema.
type SLOConfig struct {
	Directory  string `mapstructure:"directory"`
	SchemaPath string `mapstructure:"schema_path"`
}

// AdapterConfig selects and configures the SLI data source.
type AdapterConfig struct {
	Type string `mapstructure:"type"` // "prometheus" or "synthetic"

	PrometheusURL     string        `mapstructure:"prometheus_url"`
	PrometheusTimeout time.Duration `mapstructure:"prometheus_timeout"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	RetryAttempts     uint          `mapstructure:"retry_attempts"`

	SyntheticFixtureDir string `mapstructure:"synthetic_fixture_dir"`
}

// StorageConfig configures the audit database.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// GuardConfig configures the rate limiter and circuit breaker in front of
// the data source.
type GuardConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	MaxRequestsPerSecond float64       `mapstructure:"max_requests_per_second"`
	Burst                int           `mapstructure:"burst"`
	ConsecutiveFailures  uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout          time.Duration `mapstructure:"open_timeout"`
}

// EvaluationConfig bounds evaluation ticks.
type EvaluationConfig struct {
	TickTimeout time.Duration `mapstructure:"tick_timeout"`
}

// LoggerConfig tunes the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables override file values: SERVER_PORT=9000 overrides
// server.port.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file, run on env and defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("slo.directory", "slo")
	v.SetDefault("slo.schema_path", "schemas/slo_v1.json")
	v.SetDefault("adapter.type", "synthetic")
	v.SetDefault("adapter.prometheus_timeout", 10*time.Second)
	v.SetDefault("adapter.max_concurrency", 10)
	v.SetDefault("adapter.retry_attempts", 2)
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "aegis-gate.db")
	v.SetDefault("guard.enabled", true)
	v.SetDefault("guard.max_requests_per_second", 50)
	v.SetDefault("guard.burst", 20)
	v.SetDefault("guard.consecutive_failures", 5)
	v.SetDefault("guard.open_timeout", 30*time.Second)
	v.SetDefault("evaluation.tick_timeout", 30*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.SLO.Directory == "" {
		return fmt.Errorf("SLO directory is required")
	}

	if c.SLO.SchemaPath == "" {
		return fmt.Errorf("schema path is required")
	}

	if c.Adapter.Type != "prometheus" && c.Adapter.Type != "synthetic" {
		return fmt.Errorf("adapter type must be 'prometheus' or 'synthetic'")
	}

	if c.Adapter.Type == "prometheus" && c.Adapter.PrometheusURL == "" {
		return fmt.Errorf("Prometheus URL required when adapter type is 'prometheus'")
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage path required when storage is enabled")
	}

	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
