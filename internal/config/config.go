// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads and validates server configuration: a YAML file,
// overridable defaults, and the .env loading spec.md's environment-variable
// scheme relies on.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the full configuration for resp-server.
type ServerConfig struct {
	Server      ListenConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Compression CompressionConfig `yaml:"compression"`
	Stats       StatsConfig       `yaml:"stats"`
}

// ListenConfig controls the TCP listener.
type ListenConfig struct {
	Port           int `yaml:"listen_port"`     // default 6379
	MaxConnections int `yaml:"max_connections"` // default 250
}

// LoggingConfig controls where and how logs are written.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default "info"
	Format string `yaml:"format"` // "text" (default) or "json"
	File   string `yaml:"file"`   // optional; logs are always also written to stdout
}

// RateLimitConfig bounds how many commands a connection may issue per
// second. Zero disables the limiter entirely.
type RateLimitConfig struct {
	CommandsPerSecond float64 `yaml:"commands_per_second"` // 0 disables
	Burst             int     `yaml:"burst"`                // default 1x commands_per_second
}

// CompressionConfig controls Store's transparent value compression.
type CompressionConfig struct {
	Mode           string `yaml:"mode"` // "none" (default), "gzip", "zstd"
	MinSizeBytes   int    `yaml:"min_size_bytes"`
}

// StatsConfig controls the periodic host/store stats reporter.
type StatsConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"` // default 15; used when CronExpr is empty
	CronExpr        string `yaml:"cron_expr"`        // optional robfig/cron expression
}

const (
	defaultPort              = 6379
	defaultMaxConnections    = 250
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	defaultStatsIntervalSecs = 15
)

// LoadServerConfig reads and validates path. A missing file is not an
// error: LoadServerConfig returns an all-default config. A malformed file
// is. .env is loaded first (if present in the working directory), so env
// vars referenced by flags are already set by the time callers read them.
func LoadServerConfig(path string) (*ServerConfig, error) {
	_ = godotenv.Load()

	var cfg ServerConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return defaultedConfig(), nil
			}
			return nil, fmt.Errorf("reading server config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing server config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}
	return &cfg, nil
}

func defaultedConfig() *ServerConfig {
	cfg := &ServerConfig{}
	_ = cfg.validate()
	return cfg
}

func (c *ServerConfig) validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.listen_port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.RateLimit.CommandsPerSecond < 0 {
		return fmt.Errorf("rate_limit.commands_per_second must be >= 0, got %f", c.RateLimit.CommandsPerSecond)
	}
	if c.RateLimit.CommandsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.CommandsPerSecond)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}

	switch c.Compression.Mode {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("compression.mode must be none, gzip, or zstd, got %q", c.Compression.Mode)
	}
	if c.Compression.MinSizeBytes <= 0 {
		c.Compression.MinSizeBytes = 0
	}

	if c.Stats.IntervalSeconds <= 0 {
		c.Stats.IntervalSeconds = defaultStatsIntervalSecs
	}

	return nil
}
