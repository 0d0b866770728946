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
	"strings"
	"testing"
	"time"
)

// TestLoadCreatesDefault verifies first-run config creation.
func TestLoadCreatesDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".suna", "suna.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	// Verify some defaults
	if cfg.Stack.ProjectName != "suna" {
		t.Errorf("Stack.ProjectName = %q, want %q", cfg.Stack.ProjectName, "suna")
	}
	if cfg.Stack.PrimaryComposeFile != "docker-compose.mac.yaml" {
		t.Errorf("PrimaryComposeFile = %q", cfg.Stack.PrimaryComposeFile)
	}
	if cfg.Health.Policy != "all" {
		t.Errorf("Health.Policy = %q, want %q", cfg.Health.Policy, "all")
	}
	if len(cfg.Health.Services) != 2 {
		t.Errorf("expected 2 default services, got %d", len(cfg.Health.Services))
	}
}

// TestLoadExistingFile verifies values from an existing file win over defaults.
func TestLoadExistingFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "suna.yaml")

	content := `
repo_dir: /opt/suna
health:
  policy: any
  max_attempts: 5
  interval_seconds: 1
  request_timeout_seconds: 3
  services:
    - name: backend
      url: http://localhost:8000/api/health
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.RepoDir != "/opt/suna" {
		t.Errorf("RepoDir = %q, want /opt/suna", cfg.RepoDir)
	}
	if cfg.Health.Policy != "any" {
		t.Errorf("Health.Policy = %q, want any", cfg.Health.Policy)
	}
	if cfg.Health.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Health.MaxAttempts)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Stack.ProjectName != "suna" {
		t.Errorf("Stack.ProjectName = %q, want default", cfg.Stack.ProjectName)
	}
}

// TestLoadRejectsInvalidPolicy verifies validation of the health policy.
func TestLoadRejectsInvalidPolicy(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "suna.yaml")

	content := `
health:
  policy: most
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for policy=most")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestLoadRejectsMalformedYAML verifies parse errors are surfaced.
func TestLoadRejectsMalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "suna.yaml")

	if err := os.WriteFile(configPath, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestDurationAccessors verifies second fields convert to Durations.
func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.Stack.OperationTimeout(); got != 300*time.Second {
		t.Errorf("OperationTimeout = %s, want 5m", got)
	}
	if got := cfg.Health.Interval(); got != 2*time.Second {
		t.Errorf("Interval = %s, want 2s", got)
	}
	if got := cfg.Health.RequestTimeout(); got != 5*time.Second {
		t.Errorf("RequestTimeout = %s, want 5s", got)
	}
}

// TestValidateServiceURL verifies descriptors need absolute URLs.
func TestValidateServiceURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Health.Services = []ServiceDescriptor{{Name: "bad", URL: "localhost:3000"}}

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for scheme-less URL")
	}
}
