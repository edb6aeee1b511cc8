// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package config loads the server configuration by layering struct
// defaults, an optional YAML file, and ADAPTIX_-prefixed environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/adaptix-learn/adaptix/internal/engine"
	"github.com/adaptix-learn/adaptix/internal/logging"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

// DefaultConfigPaths are searched in order; the first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/adaptix/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "ADAPTIX_CONFIG"

// EnvPrefix prefixes every environment override, e.g.
// ADAPTIX_SERVER__PORT=8080 sets server.port.
const EnvPrefix = "ADAPTIX_"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RequestsPerMinute rate-limits each client IP; 0 disables.
	RequestsPerMinute int `koanf:"requests_per_minute"`

	// CORSAllowedOrigins lists origins allowed by the CORS middleware.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// DatabaseConfig holds BadgerDB settings.
type DatabaseConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig               `koanf:"server"`
	Database   DatabaseConfig             `koanf:"database"`
	Logging    logging.Config             `koanf:"logging"`
	Engine     engine.Config              `koanf:"engine"`
	Resilience repository.ResilientConfig `koanf:"resilience"`
}

// Default returns the configuration defaults before file and env layering.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			RequestsPerMinute:  120,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "/data/adaptix",
		},
		Logging:    logging.DefaultConfig(),
		Engine:     engine.DefaultConfig(),
		Resilience: repository.DefaultResilientConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file (explicit
// path, ADAPTIX_CONFIG, or the first default path found), then env vars.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path == "" {
		for _, candidate := range DefaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// ADAPTIX_SERVER__PORT -> server.port. Double underscore separates
	// nesting levels so keys like read_timeout survive.
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the composed configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return nil
}
