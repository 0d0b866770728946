// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compose manages docker compose operations for the Suna stack.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrDockerNotFound is returned when the docker binary is not available.
	ErrDockerNotFound = errors.New("docker not found")

	// ErrComposeFileMissing is returned when neither the platform
	// descriptor nor the fallback descriptor exists.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrCleanupPartial is returned when cleanup completes with some errors.
	ErrCleanupPartial = errors.New("cleanup completed with errors")

	// ErrInvalidConfig is returned when ComposeConfig is invalid.
	ErrInvalidConfig = errors.New("invalid compose configuration")

	// ErrInvalidEnvVar is returned when an environment variable key is invalid.
	// This prevents config injection attacks through malformed env var names.
	ErrInvalidEnvVar = errors.New("invalid environment variable")
)

// envVarKeyRegex validates environment variable key names.
// Keys must:
//   - Start with a letter or underscore
//   - Contain only alphanumeric characters and underscores
//   - Not be empty
//
// This prevents shell metacharacter injection and other config attacks.
var envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// =============================================================================
// Interface Definition
// =============================================================================

// Executor manages docker compose operations for the Suna stack.
//
// # Description
//
// This interface abstracts all interactions with docker compose,
// enabling testable orchestration of the local services. It handles
// descriptor resolution (the Apple-silicon descriptor with a fallback
// to the generic one), environment injection, and both graceful and
// forceful container management.
//
// # Security
//
//   - Sanitizes environment variable keys before injection
//   - Does not log sensitive environment values (tokens, secrets)
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Operations that
// modify container state (Up, Down, Stop, ForceCleanup) are
// serialized.
type Executor interface {
	// Up starts services: `docker compose up -d`, with optional
	// build flag and service subset. Injected env entries are passed
	// through to compose.
	Up(ctx context.Context, opts UpOptions) (*Result, error)

	// Pull fetches the images referenced by the descriptor so Up does
	// not stall on first-run downloads.
	Pull(ctx context.Context) (*Result, error)

	// Down stops and removes containers: `docker compose down`.
	// Containers already stopped are not an error.
	Down(ctx context.Context, opts DownOptions) (*Result, error)

	// Stop stops containers without removing them:
	// `docker compose stop`.
	Stop(ctx context.Context, opts StopOptions) (*Result, error)

	// Logs streams container logs to the provided writer, optionally
	// following until the context is cancelled. Read-only.
	Logs(ctx context.Context, opts LogsOptions, w io.Writer) error

	// Status returns `docker compose ps` output. Read-only.
	Status(ctx context.Context) (*Result, error)

	// ForceCleanup prunes stopped containers and dangling resources
	// when a normal Down is not enough (`docker system prune -f`).
	ForceCleanup(ctx context.Context) (*Result, error)

	// ComposeFile resolves the descriptor in use: the configured
	// primary file when present, otherwise the fallback with a logged
	// warning. Returns ErrComposeFileMissing when neither exists.
	ComposeFile() (path string, usedFallback bool, err error)
}

// =============================================================================
// Supporting Types
// =============================================================================

// Config provides configuration for compose operations.
type Config struct {
	// StackDir is the directory containing the compose descriptors.
	StackDir string

	// ProjectName is the compose project name.
	// Default: "suna"
	ProjectName string

	// PrimaryFile is the platform descriptor tried first.
	// Default: "docker-compose.mac.yaml"
	PrimaryFile string

	// FallbackFile is used when PrimaryFile is absent.
	// Default: "docker-compose.yaml"
	FallbackFile string

	// ContainerNamePrefix is the prefix for container names.
	// Default: "suna-"
	ContainerNamePrefix string

	// DefaultTimeout bounds each compose operation.
	// Default: 5 minutes
	DefaultTimeout time.Duration
}

// UpOptions configures the Up operation.
type UpOptions struct {
	// ForceBuild rebuilds images even if they exist (--build).
	ForceBuild bool

	// Services limits which services to start. Empty means all.
	Services []string

	// Env contains environment variables to inject into compose.
	Env map[string]string

	// RemoveOrphans removes containers for services no longer defined.
	RemoveOrphans bool

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// DownOptions configures the Down operation.
type DownOptions struct {
	// RemoveOrphans removes containers for undefined services.
	RemoveOrphans bool

	// RemoveVolumes removes named volumes (-v). Irreversible.
	RemoveVolumes bool

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// StopOptions configures the Stop operation.
type StopOptions struct {
	// Services limits which services to stop. Empty means all.
	Services []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// LogsOptions configures the Logs operation.
type LogsOptions struct {
	// Follow streams logs continuously (-f).
	Follow bool

	// Services limits which services to show. Empty means all.
	Services []string

	// Tail limits output to last N lines per container. Zero = all.
	Tail int
}

// Result contains the result of a compose operation.
type Result struct {
	// Success indicates if the operation exited zero.
	Success bool

	// ExitCode is the exit code of the compose command.
	ExitCode int

	// Stdout contains standard output.
	Stdout string

	// Stderr contains standard error.
	Stderr string

	// Duration is how long the operation took.
	Duration time.Duration

	// Command is the full command that was executed (for debugging).
	Command string
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultExecutor implements Executor using docker compose.
type DefaultExecutor struct {
	config     Config
	proc       process.Manager
	osStatFunc func(string) (os.FileInfo, error)
	mu         sync.Mutex

	warnedFallback bool
}

// NewDefaultExecutor creates an Executor for docker compose operations.
//
// # Description
//
// Validates the configuration and applies defaults. Does not verify
// that docker is installed or that StackDir exists; both are checked
// at operation time and surfaced through classified results.
//
// # Inputs
//
//   - cfg: Compose configuration (StackDir required)
//   - proc: Manager for command execution
//
// # Outputs
//
//   - *DefaultExecutor: Configured executor
//   - error: If configuration is invalid
//
// # Example
//
//	executor, err := compose.NewDefaultExecutor(compose.Config{
//	    StackDir: repoRoot,
//	}, processManager)
func NewDefaultExecutor(cfg Config, proc process.Manager) (*DefaultExecutor, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyConfigDefaults(&cfg)

	return &DefaultExecutor{
		config:     cfg,
		proc:       proc,
		osStatFunc: os.Stat,
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.StackDir == "" {
		return fmt.Errorf("%w: StackDir is required", ErrInvalidConfig)
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = "suna"
	}
	if cfg.PrimaryFile == "" {
		cfg.PrimaryFile = "docker-compose.mac.yaml"
	}
	if cfg.FallbackFile == "" {
		cfg.FallbackFile = "docker-compose.yaml"
	}
	if cfg.ContainerNamePrefix == "" {
		cfg.ContainerNamePrefix = "suna-"
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Up starts services defined in the resolved descriptor.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	// Validate env vars before proceeding to prevent config injection.
	if err := e.validateEnvVars(opts.Env); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildComposeFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "up", "-d")

	if opts.ForceBuild {
		args = append(args, "--build")
	}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if len(opts.Services) > 0 {
		args = append(args, opts.Services...)
	}

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Pull fetches the images referenced by the descriptor.
func (e *DefaultExecutor) Pull(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildComposeFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "pull")

	return e.runCompose(ctx, args, nil, e.resolveTimeout(0))
}

// Down stops and removes containers defined in the descriptor.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildComposeFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "down")

	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}

	return e.runCompose(ctx, args, nil, e.resolveTimeout(opts.Timeout))
}

// Stop stops containers without removing them.
func (e *DefaultExecutor) Stop(ctx context.Context, opts StopOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildComposeFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "stop")
	if len(opts.Services) > 0 {
		args = append(args, opts.Services...)
	}

	return e.runCompose(ctx, args, nil, e.resolveTimeout(opts.Timeout))
}

// Logs streams container logs to the provided writer.
func (e *DefaultExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	args, err := e.buildComposeFileArgs()
	if err != nil {
		return err
	}
	args = append(args, "logs")

	if opts.Follow {
		args = append(args, "-f")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", fmt.Sprintf("%d", opts.Tail))
	}
	if len(opts.Services) > 0 {
		args = append(args, opts.Services...)
	}

	return e.proc.RunStreaming(ctx, e.config.StackDir, w, "docker", append([]string{"compose"}, args...)...)
}

// Status returns `docker compose ps` output.
func (e *DefaultExecutor) Status(ctx context.Context) (*Result, error) {
	args, err := e.buildComposeFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "ps")

	return e.runCompose(ctx, args, nil, e.resolveTimeout(0))
}

// ForceCleanup prunes stopped containers and dangling resources.
func (e *DefaultExecutor) ForceCleanup(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.proc.Execute(ctx, "docker", []string{"system", "prune", "-f"}, process.Options{
		Timeout: e.resolveTimeout(0),
	})

	result := resultFromProcess(res, "docker system prune -f")
	if res.Outcome == process.OutcomeNotFound {
		return result, ErrDockerNotFound
	}
	if !res.Success() {
		return result, fmt.Errorf("%w: %s", ErrCleanupPartial, res.Summary())
	}
	return result, nil
}

// ComposeFile resolves the descriptor in use.
//
// # Description
//
// Prefers the platform descriptor (PrimaryFile). When it is absent the
// generic descriptor (FallbackFile) is used and a warning is logged
// once. When neither exists, ErrComposeFileMissing is returned naming
// both candidates.
func (e *DefaultExecutor) ComposeFile() (string, bool, error) {
	primary := filepath.Join(e.config.StackDir, e.config.PrimaryFile)
	if e.fileExists(primary) {
		return primary, false, nil
	}

	fallback := filepath.Join(e.config.StackDir, e.config.FallbackFile)
	if e.fileExists(fallback) {
		e.mu.Lock()
		if !e.warnedFallback {
			slog.Warn("platform compose file not found, falling back",
				"missing", e.config.PrimaryFile,
				"using", e.config.FallbackFile)
			e.warnedFallback = true
		}
		e.mu.Unlock()
		return fallback, true, nil
	}

	return "", false, fmt.Errorf("%w: neither %s nor %s exists in %s",
		ErrComposeFileMissing, e.config.PrimaryFile, e.config.FallbackFile, e.config.StackDir)
}

// =============================================================================
// Internal Helpers
// =============================================================================

// buildComposeFileArgs builds the leading compose arguments with the
// resolved descriptor and project name.
func (e *DefaultExecutor) buildComposeFileArgs() ([]string, error) {
	file, _, err := e.ComposeFile()
	if err != nil {
		return nil, err
	}
	return []string{"-f", file, "-p", e.config.ProjectName}, nil
}

// runCompose executes a docker compose command through the process
// manager and folds the classified result into a compose Result.
func (e *DefaultExecutor) runCompose(ctx context.Context, args []string, env map[string]string, timeout time.Duration) (*Result, error) {
	full := append([]string{"compose"}, args...)

	var envList []string
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	res := e.proc.Execute(ctx, "docker", full, process.Options{
		Dir:     e.config.StackDir,
		Env:     envList,
		Timeout: timeout,
	})

	cmdLine := "docker " + strings.Join(full, " ")
	result := resultFromProcess(res, cmdLine)

	switch res.Outcome {
	case process.OutcomeNotFound:
		return result, ErrDockerNotFound
	case process.OutcomeTimedOut:
		return result, fmt.Errorf("compose command timed out after %s: %s", timeout, cmdLine)
	case process.OutcomeFailure:
		return result, fmt.Errorf("compose command failed (%s): %s", res.Summary(), cmdLine)
	}
	return result, nil
}

func resultFromProcess(res *process.Result, cmdLine string) *Result {
	return &Result{
		Success:  res.Success(),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
		Command:  cmdLine,
	}
}

// validateEnvVars rejects malformed environment variable keys.
func (e *DefaultExecutor) validateEnvVars(env map[string]string) error {
	for key := range env {
		if !envVarKeyRegex.MatchString(key) {
			return fmt.Errorf("%w: %q", ErrInvalidEnvVar, key)
		}
	}
	return nil
}

func (e *DefaultExecutor) resolveTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return e.config.DefaultTimeout
}

// fileExists wraps osStatFunc so tests can fake descriptor presence.
func (e *DefaultExecutor) fileExists(path string) bool {
	_, err := e.osStatFunc(path)
	return err == nil
}

// Compile-time interface compliance check.
var _ Executor = (*DefaultExecutor)(nil)
