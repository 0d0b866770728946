// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides StackManager for orchestrating the Suna stack
lifecycle.

StackManager coordinates the service commands: prerequisite gating,
compose operations, and health checking.

# Architecture

	┌─────────────────────────────────────────────────────────┐
	│                     StackManager                        │
	│  (start, stop, restart, status, logs, cleanup, info)    │
	├─────────────────────────────────────────────────────────┤
	│                                                         │
	│  Start() sequence:                                      │
	│    1. SystemChecker.CheckDockerRunning()                │
	│    2. verify generated env files exist                  │
	│    3. ComposeExecutor.Pull()                            │
	│    4. ComposeExecutor.Up()                              │
	│    5. HealthChecker.Poll()   // bounded readiness gate  │
	│                                                         │
	└─────────────────────────────────────────────────────────┘

# Design Principles

  - Dependency Injection: all operations go through injected interfaces
  - Testability: full mock support for every dependency
  - Error Context: errors are wrapped with diagnostic information

# Thread Safety

StackManager is safe for concurrent use, but only one lifecycle
operation runs at a time; operations are serialized via mutex.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kortix-ai/suna-cli/cmd/suna/config"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/compose"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/setup"
	"github.com/kortix-ai/suna-cli/pkg/ux"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrDockerNotFound is returned when the docker binary is missing.
	ErrDockerNotFound = errors.New("Docker not found")

	// ErrEnvFilesMissing is returned when the generated env files do
	// not exist yet.
	ErrEnvFilesMissing = errors.New("environment files not found, run `suna setup` first")

	// ErrComposeUpFailed is returned when container startup fails.
	ErrComposeUpFailed = errors.New("compose up failed")

	// ErrStopFailed is returned when stopping containers fails.
	ErrStopFailed = errors.New("stop failed")
)

// =============================================================================
// Options
// =============================================================================

// StartOptions configures the start operation.
type StartOptions struct {
	// ForceBuild rebuilds images even if they exist.
	ForceBuild bool

	// SkipHealthGate starts containers without waiting for readiness.
	SkipHealthGate bool
}

// LogsStreamOptions configures log streaming.
type LogsStreamOptions struct {
	// Follow streams continuously until interrupted.
	Follow bool

	// Services limits output to the named services.
	Services []string

	// Tail limits output to the last N lines per container.
	Tail int
}

// =============================================================================
// StackManager
// =============================================================================

// StackManager orchestrates the Suna stack lifecycle.
type StackManager interface {
	// Start brings the stack up: prerequisite gate, pull, up, health
	// gate. A health gate timeout is a warning, not a failure: the
	// services may still be finishing their boot.
	Start(ctx context.Context, opts StartOptions) error

	// Stop stops containers without removing them.
	Stop(ctx context.Context) error

	// Restart stops and, only when the stop succeeded, starts again.
	Restart(ctx context.Context, opts StartOptions) error

	// Status prints the compose state and per-service health.
	Status(ctx context.Context) error

	// Logs streams container logs to w.
	Logs(ctx context.Context, opts LogsStreamOptions, w io.Writer) error

	// Cleanup tears containers down and prunes dangling resources.
	Cleanup(ctx context.Context) error

	// Open opens the frontend URL in the default browser.
	Open(ctx context.Context) error

	// Info prints service URLs, the compose file in use, and host
	// diagnostics.
	Info(ctx context.Context) error
}

// DefaultStackManager implements StackManager.
type DefaultStackManager struct {
	cfg     config.SunaConfig
	checker infra.SystemChecker
	comp    compose.Executor
	health  HealthChecker
	proc    process.Manager
	out     io.Writer

	// statFunc is overridable so tests fake env file presence.
	statFunc func(string) (os.FileInfo, error)

	mu sync.Mutex
}

// NewDefaultStackManager wires a StackManager from its dependencies.
func NewDefaultStackManager(
	cfg config.SunaConfig,
	checker infra.SystemChecker,
	comp compose.Executor,
	health HealthChecker,
	proc process.Manager,
	out io.Writer,
) *DefaultStackManager {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultStackManager{
		cfg:      cfg,
		checker:  checker,
		comp:     comp,
		health:   health,
		proc:     proc,
		out:      out,
		statFunc: os.Stat,
	}
}

// Start brings the stack up.
func (m *DefaultStackManager) Start(ctx context.Context, opts StartOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, opts)
}

func (m *DefaultStackManager) startLocked(ctx context.Context, opts StartOptions) error {
	// Prerequisite gate. A missing docker binary is the clearest
	// possible failure, surfaced before any compose attempt.
	if err := m.checker.CheckDockerRunning(ctx); err != nil {
		var checkErr *infra.CheckError
		if errors.As(err, &checkErr) && checkErr.Type == infra.CheckErrorToolMissing {
			return fmt.Errorf("%w: %s", ErrDockerNotFound, checkErr.Remediation)
		}
		return err
	}

	if err := m.verifyEnvFiles(); err != nil {
		return err
	}

	if err := ux.WithSpinner("Pulling service images", func() error {
		_, err := m.comp.Pull(ctx)
		return err
	}); err != nil {
		// Pull failures are non-fatal: up can still use local images.
		ux.Warning("image pull incomplete, continuing with local images")
	}

	if err := ux.WithSpinner("Starting services", func() error {
		_, err := m.comp.Up(ctx, compose.UpOptions{
			ForceBuild:    opts.ForceBuild,
			RemoveOrphans: true,
		})
		return err
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrComposeUpFailed, err)
	}

	if opts.SkipHealthGate {
		ux.Success("Services started (health gate skipped)")
		return nil
	}

	return m.healthGate(ctx)
}

// healthGate waits for services with bounded polling. Not becoming
// healthy inside the attempt budget is reported as a warning: the
// containers keep starting after the CLI stops watching.
func (m *DefaultStackManager) healthGate(ctx context.Context) error {
	defs := DefinitionsFromConfig(m.cfg.Health)
	pollOpts := PollOptionsFromConfig(m.cfg.Health)

	ux.Info("Waiting for services to become healthy...")
	results := m.health.Poll(ctx, defs, pollOpts)

	healthyCount := 0
	for _, def := range defs {
		ok := results[def.Name]
		if ok {
			healthyCount++
		}
		detail := def.URL
		ux.ServiceStatus(def.Name, ok, detail)
	}

	if !Healthy(results, defs, pollOpts.Policy) {
		gateErr := &setup.TimeoutError{
			Operation: "health gate",
			Limit:     time.Duration(pollOpts.MaxAttempts) * pollOpts.Interval,
		}
		ux.Warning(fmt.Sprintf(
			"%v; services may still be starting, check with `suna status`", gateErr))
		return nil
	}

	ux.Success(fmt.Sprintf("Stack is up (%d/%d services healthy)", healthyCount, len(defs)))
	ux.Info("Frontend: http://localhost:3000")
	return nil
}

// verifyEnvFiles ensures setup has generated the env files.
func (m *DefaultStackManager) verifyEnvFiles() error {
	for _, rel := range []string{m.cfg.Setup.BackendEnvFile, m.cfg.Setup.FrontendEnvFile} {
		path := filepath.Join(m.cfg.RepoDir, rel)
		if _, err := m.statFunc(path); err != nil {
			return fmt.Errorf("%w (missing %s)", ErrEnvFilesMissing, rel)
		}
	}
	return nil
}

// Stop stops containers without removing them.
func (m *DefaultStackManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *DefaultStackManager) stopLocked(ctx context.Context) error {
	ux.Info("Stopping services...")
	if _, err := m.comp.Stop(ctx, compose.StopOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrStopFailed, err)
	}
	ux.Success("Services stopped")
	return nil
}

// Restart stops and then starts the stack.
//
// The start phase runs only when the stop succeeded: restarting over a
// half-stopped stack would mask the stop failure.
func (m *DefaultStackManager) Restart(ctx context.Context, opts StartOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.stopLocked(ctx); err != nil {
		return err
	}
	return m.startLocked(ctx, opts)
}

// Status prints the compose state and per-service health.
func (m *DefaultStackManager) Status(ctx context.Context) error {
	res, err := m.comp.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(m.out, res.Stdout)

	defs := DefinitionsFromConfig(m.cfg.Health)
	if len(defs) == 0 {
		return nil
	}

	statuses := m.health.CheckAll(ctx, defs)
	healthy := 0
	for _, st := range statuses {
		ok := st.State == HealthStateHealthy
		if ok {
			healthy++
		}
		detail := st.Message
		if ok {
			detail = fmt.Sprintf("%d in %s", st.HTTPStatus, st.Latency.Round(time.Millisecond))
		}
		ux.ServiceStatus(st.Name, ok, detail)
	}
	ux.Summary(healthy, len(statuses)-healthy, len(statuses))
	return nil
}

// Logs streams container logs to w.
func (m *DefaultStackManager) Logs(ctx context.Context, opts LogsStreamOptions, w io.Writer) error {
	return m.comp.Logs(ctx, compose.LogsOptions{
		Follow:   opts.Follow,
		Services: opts.Services,
		Tail:     opts.Tail,
	}, w)
}

// Cleanup tears down and prunes.
func (m *DefaultStackManager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ux.Info("Removing containers...")
	if _, err := m.comp.Down(ctx, compose.DownOptions{RemoveOrphans: true}); err != nil {
		ux.Warning(fmt.Sprintf("compose down incomplete: %v", err))
	}

	ux.Info("Pruning unused resources...")
	if _, err := m.comp.ForceCleanup(ctx); err != nil {
		return err
	}
	ux.Success("Cleanup complete")
	return nil
}

// Open opens the frontend URL in the default browser.
//
// The browser is launched detached: the CLI must not block on, or tie
// its exit status to, a GUI process it only triggered.
func (m *DefaultStackManager) Open(ctx context.Context) error {
	url := "http://localhost:3000"
	if _, err := m.proc.Start(ctx, "open", url); err != nil {
		// Not every host has `open`; the URL itself is the fallback.
		fmt.Fprintf(m.out, "Open %s in your browser\n", url)
	}
	return nil
}

// Info prints service URLs, the compose file in use, and diagnostics.
func (m *DefaultStackManager) Info(ctx context.Context) error {
	file, fallback, err := m.comp.ComposeFile()
	if err != nil {
		fmt.Fprintf(m.out, "Compose file: none found\n")
	} else {
		note := ""
		if fallback {
			note = " (fallback)"
		}
		fmt.Fprintf(m.out, "Compose file: %s%s\n", file, note)
	}

	fmt.Fprintln(m.out, "Frontend:     http://localhost:3000")
	fmt.Fprintln(m.out, "Backend API:  http://localhost:8000/api")

	report := m.checker.Diagnose(ctx)
	fmt.Fprintln(m.out)
	fmt.Fprint(m.out, report.String())
	return nil
}

// Compile-time interface compliance check.
var _ StackManager = (*DefaultStackManager)(nil)
