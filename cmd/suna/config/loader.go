// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the CLI configuration.
//
// Configuration is loaded once at startup and passed by value to the
// components that need it. Load returns the config rather than
// populating a package-level singleton so tests and callers control
// exactly which config each component sees.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath returns the standard config location, ~/.suna/suna.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".suna", "suna.yaml"), nil
}

// Load reads and validates the configuration at path.
//
// # Description
//
// When the file does not exist it is created with defaults first, so a
// fresh install works without manual configuration. The parsed config
// is validated; an invalid config is an error, never a silent
// fallback.
//
// # Inputs
//
//   - path: Config file location. Empty means DefaultPath().
//
// # Outputs
//
//   - SunaConfig: The loaded configuration, by value
//   - error: If the file cannot be read, parsed, or validated
func Load(path string) (SunaConfig, error) {
	var cfg SunaConfig

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}

	// Start from defaults so fields absent from the file keep sane
	// values instead of zeroing out.
	cfg = DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural constraints on a config value.
func Validate(cfg SunaConfig) error {
	return validator.New().Struct(cfg)
}

// OperationTimeout returns the stack operation timeout as a Duration.
func (c StackConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

// Interval returns the polling interval as a Duration.
func (c HealthConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RequestTimeout returns the per-probe timeout as a Duration.
func (c HealthConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func writeDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
