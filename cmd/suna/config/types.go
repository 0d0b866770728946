// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

// SunaConfig is the root configuration for the CLI.
//
// Loaded from ~/.suna/suna.yaml (created with defaults on first run)
// and passed explicitly to the components that need it. There is no
// global config state.
type SunaConfig struct {
	// RepoDir is the root of the Suna checkout containing the
	// compose descriptors and the backend/frontend directories.
	RepoDir string `yaml:"repo_dir" validate:"required"`

	// Stack configures compose operations.
	Stack StackConfig `yaml:"stack"`

	// Health configures service readiness polling.
	Health HealthConfig `yaml:"health"`

	// Setup configures the interactive setup flow.
	Setup SetupConfig `yaml:"setup"`
}

// StackConfig configures compose operations.
type StackConfig struct {
	ProjectName string `yaml:"project_name" validate:"required"`

	// PrimaryComposeFile is the platform descriptor tried first.
	PrimaryComposeFile string `yaml:"primary_compose_file" validate:"required"`

	// FallbackComposeFile is used when the primary is absent.
	FallbackComposeFile string `yaml:"fallback_compose_file" validate:"required"`

	// OperationTimeoutSeconds bounds each compose operation.
	OperationTimeoutSeconds int `yaml:"operation_timeout_seconds" validate:"gt=0"`
}

// HealthConfig configures service readiness polling.
type HealthConfig struct {
	// Policy decides when the stack counts as ready: "all" requires
	// every non-optional service healthy, "any" requires at least one.
	Policy string `yaml:"policy" validate:"oneof=all any"`

	// MaxAttempts bounds the polling loop.
	MaxAttempts int `yaml:"max_attempts" validate:"gt=0"`

	// IntervalSeconds is the pause between polling rounds.
	IntervalSeconds int `yaml:"interval_seconds" validate:"gt=0"`

	// RequestTimeoutSeconds bounds each individual probe.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"gt=0"`

	// Services lists the endpoints to probe.
	Services []ServiceDescriptor `yaml:"services" validate:"required,dive"`
}

// ServiceDescriptor names one health check endpoint.
type ServiceDescriptor struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`

	// Optional services do not count against the "all" policy.
	Optional bool `yaml:"optional"`
}

// SetupConfig configures the interactive setup flow.
type SetupConfig struct {
	// ProgressFile is the resumable progress record, relative to
	// RepoDir.
	ProgressFile string `yaml:"progress_file" validate:"required"`

	// BackendEnvFile and FrontendEnvFile are the generated
	// environment files, relative to RepoDir.
	BackendEnvFile  string `yaml:"backend_env_file" validate:"required"`
	FrontendEnvFile string `yaml:"frontend_env_file" validate:"required"`

	// MinDiskGB is the free space requirement checked before setup.
	MinDiskGB int `yaml:"min_disk_gb" validate:"gte=0"`
}

// OperationTimeout is StackConfig.OperationTimeoutSeconds as a Duration
// helper; defined in loader.go alongside the other derived accessors.

// DefaultConfig returns the configuration written on first run.
//
// RepoDir defaults to the current working directory so running the CLI
// from a Suna checkout works without editing the config.
func DefaultConfig() SunaConfig {
	repoDir, err := os.Getwd()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr == nil {
			repoDir = filepath.Join(home, "suna")
		} else {
			repoDir = "."
		}
	}

	return SunaConfig{
		RepoDir: repoDir,
		Stack: StackConfig{
			ProjectName:             "suna",
			PrimaryComposeFile:      "docker-compose.mac.yaml",
			FallbackComposeFile:     "docker-compose.yaml",
			OperationTimeoutSeconds: 300,
		},
		Health: HealthConfig{
			Policy:                "all",
			MaxAttempts:           30,
			IntervalSeconds:       2,
			RequestTimeoutSeconds: 5,
			Services: []ServiceDescriptor{
				{Name: "frontend", URL: "http://localhost:3000"},
				{Name: "backend", URL: "http://localhost:8000/api/health"},
			},
		},
		Setup: SetupConfig{
			ProgressFile:    ".setup_progress.json",
			BackendEnvFile:  "backend/.env",
			FrontendEnvFile: "frontend/.env.local",
			MinDiskGB:       10,
		},
	}
}
