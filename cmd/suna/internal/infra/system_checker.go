// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package infra contains system_checker.go which provides pre-flight system
checks for the Suna CLI setup and start commands.

# Problem Statement

When users run `suna setup` or `suna start`, several system requirements
must be met:

 1. Required tools must be installed (git, docker, node, npm, uv, supabase)
 2. The Docker daemon must be running before any compose operation
 3. Sufficient disk space must be available for container images

Previously, users would encounter cryptic errors deep in the setup flow:
  - "command not found" halfway through dependency installation
  - Hanging compose commands when the Docker daemon was stopped
  - Failed image pulls when disk was full

# Solution

SystemChecker provides explicit, early validation of system requirements
with structured errors that carry remediation steps, so every failure
tells the user exactly what to install or start.

# Error Types

	CheckErrorToolMissing       - A required binary is not on PATH
	CheckErrorDaemonNotRunning  - Docker installed but daemon not responding
	CheckErrorDiskSpaceLow      - Insufficient available space
	CheckErrorUnsupportedArch   - Running under Rosetta or non-arm64 on macOS

# Health Caching

Successful checks are cached for 30 seconds so repeated invocations
during a single setup run do not re-probe the system. Thread-safe.

# Diagnostic Mode

`suna info` runs all checks verbosely and prints a DiagnosticReport
suitable for attaching to support tickets.
*/
package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
)

// =============================================================================
// Error Types
// =============================================================================

// CheckErrorType categorizes pre-flight check failures for programmatic
// handling.
type CheckErrorType int

const (
	// CheckErrorUnknown is an unclassified check failure.
	CheckErrorUnknown CheckErrorType = iota

	// CheckErrorToolMissing indicates a required binary is not on PATH.
	CheckErrorToolMissing

	// CheckErrorDaemonNotRunning indicates docker is installed but the
	// daemon is not responding.
	CheckErrorDaemonNotRunning

	// CheckErrorDiskSpaceLow indicates insufficient available space.
	CheckErrorDiskSpaceLow

	// CheckErrorUnsupportedArch indicates the host architecture is not
	// supported by the platform compose descriptor.
	CheckErrorUnsupportedArch
)

// String returns a stable identifier for the error type.
func (t CheckErrorType) String() string {
	switch t {
	case CheckErrorToolMissing:
		return "TOOL_MISSING"
	case CheckErrorDaemonNotRunning:
		return "DAEMON_NOT_RUNNING"
	case CheckErrorDiskSpaceLow:
		return "DISK_SPACE_LOW"
	case CheckErrorUnsupportedArch:
		return "UNSUPPORTED_ARCH"
	default:
		return "UNKNOWN"
	}
}

// CheckError is a structured pre-flight check failure.
//
// Message is the short human-readable description, Detail carries
// technical context, and Remediation tells the user what to do about it.
type CheckError struct {
	Type        CheckErrorType
	Message     string
	Detail      string
	Remediation string
}

// Error implements the error interface with the short message.
func (e *CheckError) Error() string {
	return e.Message
}

// FullError returns the message with detail and remediation attached.
func (e *CheckError) FullError() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString("\n  Detail: ")
		b.WriteString(e.Detail)
	}
	if e.Remediation != "" {
		b.WriteString("\n  Fix: ")
		b.WriteString(e.Remediation)
	}
	return b.String()
}

// =============================================================================
// Types
// =============================================================================

// RequiredTools lists the binaries setup depends on, in check order.
var RequiredTools = []string{"git", "docker", "node", "npm", "uv", "supabase"}

// installInstructions maps tool names to Homebrew install commands.
// Setup targets macOS, where Homebrew is the expected package manager.
var installInstructions = map[string]string{
	"git":      "brew install git",
	"docker":   "brew install --cask docker",
	"node":     "brew install node",
	"npm":      "brew install node",
	"uv":       "brew install uv",
	"supabase": "brew install supabase/tap/supabase",
}

// ToolStatus describes one required tool.
type ToolStatus struct {
	Name      string
	Installed bool
	Version   string
}

// DiagnosticReport holds the results of a full system check for
// `suna info` output.
type DiagnosticReport struct {
	Tools         []ToolStatus
	DockerRunning bool
	Architecture  string
	ArchSupported bool
	DiskFreeBytes uint64
	GeneratedAt   time.Time
}

// String renders the report for terminal display.
func (r *DiagnosticReport) String() string {
	var b strings.Builder
	b.WriteString("=== Suna System Diagnostics ===\n\n")

	b.WriteString("[Tools]\n")
	for _, t := range r.Tools {
		mark := boolToCheck(t.Installed)
		if t.Version != "" {
			fmt.Fprintf(&b, "  %-10s %s %s\n", t.Name+":", mark, t.Version)
		} else {
			fmt.Fprintf(&b, "  %-10s %s\n", t.Name+":", mark)
		}
	}

	b.WriteString("\n[Docker]\n")
	fmt.Fprintf(&b, "  Daemon:    %s\n", boolToCheck(r.DockerRunning))

	b.WriteString("\n[Host]\n")
	fmt.Fprintf(&b, "  Arch:      %s %s\n", r.Architecture, boolToCheck(r.ArchSupported))
	fmt.Fprintf(&b, "  Disk free: %s\n", formatBytes(r.DiskFreeBytes))

	fmt.Fprintf(&b, "\nGenerated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	return b.String()
}

// =============================================================================
// Interface Definition
// =============================================================================

// SystemChecker validates host requirements before setup or start.
type SystemChecker interface {
	// CheckTools verifies every required binary is on PATH. Returns the
	// per-tool status list and a CheckError for the first missing tool.
	CheckTools(ctx context.Context) ([]ToolStatus, error)

	// CheckDockerRunning probes the Docker daemon with `docker info`.
	CheckDockerRunning(ctx context.Context) error

	// CheckDiskSpace verifies at least minBytes are free under path.
	CheckDiskSpace(path string, minBytes uint64) error

	// CheckArchitecture verifies the host CPU architecture is supported
	// by the platform compose descriptor.
	CheckArchitecture() error

	// Diagnose runs all checks and returns a report. Individual check
	// failures are recorded in the report rather than returned.
	Diagnose(ctx context.Context) *DiagnosticReport
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultSystemChecker implements SystemChecker against the real host.
type DefaultSystemChecker struct {
	proc process.Manager

	// goarch and statfsFunc are overridable for tests.
	goarch     string
	statfsFunc func(path string, buf *unix.Statfs_t) error

	cacheMu       sync.Mutex
	cacheTTL      time.Duration
	toolsOKUntil  time.Time
	cachedTools   []ToolStatus
	daemonOKUntil time.Time
}

// NewDefaultSystemChecker creates a checker that probes via the given
// process manager.
func NewDefaultSystemChecker(proc process.Manager) *DefaultSystemChecker {
	return &DefaultSystemChecker{
		proc:       proc,
		goarch:     runtime.GOARCH,
		statfsFunc: unix.Statfs,
		cacheTTL:   30 * time.Second,
	}
}

// CheckTools verifies every required binary is on PATH.
//
// # Description
//
// Checks each tool in RequiredTools with a PATH lookup and, for
// installed tools, probes `<tool> --version` to record the version
// string. The first missing tool produces a CheckError carrying the
// Homebrew install instruction.
//
// A fully-installed result is cached for the TTL: the version probes
// spawn one process per tool, and setup re-checks tools several times
// in a single run.
//
// # Outputs
//
//   - []ToolStatus: Status for every required tool, in order
//   - error: *CheckError with Type CheckErrorToolMissing, or nil
func (c *DefaultSystemChecker) CheckTools(ctx context.Context) ([]ToolStatus, error) {
	c.cacheMu.Lock()
	if time.Now().Before(c.toolsOKUntil) {
		statuses := make([]ToolStatus, len(c.cachedTools))
		copy(statuses, c.cachedTools)
		c.cacheMu.Unlock()
		return statuses, nil
	}
	c.cacheMu.Unlock()

	statuses := make([]ToolStatus, 0, len(RequiredTools))
	var firstMissing *CheckError

	for _, tool := range RequiredTools {
		st := ToolStatus{Name: tool, Installed: c.proc.LookPath(tool)}
		if st.Installed {
			st.Version = c.probeVersion(ctx, tool)
		} else if firstMissing == nil {
			firstMissing = &CheckError{
				Type:        CheckErrorToolMissing,
				Message:     fmt.Sprintf("%s is not installed", tool),
				Detail:      fmt.Sprintf("%s was not found on PATH", tool),
				Remediation: installInstructions[tool],
			}
		}
		statuses = append(statuses, st)
	}

	if firstMissing != nil {
		return statuses, firstMissing
	}

	c.cacheMu.Lock()
	c.toolsOKUntil = time.Now().Add(c.cacheTTL)
	c.cachedTools = append([]ToolStatus(nil), statuses...)
	c.cacheMu.Unlock()
	return statuses, nil
}

// CheckDockerRunning probes the Docker daemon with `docker info`.
//
// A successful probe is cached for the TTL so repeated checks during a
// single setup run do not re-spawn docker.
func (c *DefaultSystemChecker) CheckDockerRunning(ctx context.Context) error {
	c.cacheMu.Lock()
	if time.Now().Before(c.daemonOKUntil) {
		c.cacheMu.Unlock()
		return nil
	}
	c.cacheMu.Unlock()

	res := c.proc.Execute(ctx, "docker", []string{"info"}, process.Options{
		Timeout: 15 * time.Second,
	})

	switch res.Outcome {
	case process.OutcomeSuccess:
		c.cacheMu.Lock()
		c.daemonOKUntil = time.Now().Add(c.cacheTTL)
		c.cacheMu.Unlock()
		return nil
	case process.OutcomeNotFound:
		return &CheckError{
			Type:        CheckErrorToolMissing,
			Message:     "docker is not installed",
			Remediation: installInstructions["docker"],
		}
	default:
		return &CheckError{
			Type:        CheckErrorDaemonNotRunning,
			Message:     "Docker daemon is not running",
			Detail:      firstLine(res.Stderr),
			Remediation: "Start Docker Desktop and wait for it to finish booting, then retry",
		}
	}
}

// CheckDiskSpace verifies at least minBytes are free under path.
func (c *DefaultSystemChecker) CheckDiskSpace(path string, minBytes uint64) error {
	var stat unix.Statfs_t
	if err := c.statfsFunc(path, &stat); err != nil {
		return &CheckError{
			Type:    CheckErrorUnknown,
			Message: fmt.Sprintf("cannot check disk space at %s", path),
			Detail:  err.Error(),
		}
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < minBytes {
		return &CheckError{
			Type:    CheckErrorDiskSpaceLow,
			Message: fmt.Sprintf("insufficient disk space: %s free, %s required", formatBytes(free), formatBytes(minBytes)),
			Remediation: "Free up disk space or run `docker system prune` to " +
				"remove unused images",
		}
	}
	return nil
}

// CheckArchitecture verifies the host CPU architecture.
//
// The platform descriptor targets Apple silicon. Intel Macs and
// sessions running under Rosetta fall back to the generic descriptor,
// so amd64 is a warning condition rather than fatal. Only genuinely
// unknown architectures fail.
func (c *DefaultSystemChecker) CheckArchitecture() error {
	switch c.goarch {
	case "arm64", "amd64":
		return nil
	default:
		return &CheckError{
			Type:    CheckErrorUnsupportedArch,
			Message: fmt.Sprintf("unsupported architecture %q", c.goarch),
			Detail:  "container images are published for arm64 and amd64 only",
		}
	}
}

// Diagnose runs all checks and returns a report.
func (c *DefaultSystemChecker) Diagnose(ctx context.Context) *DiagnosticReport {
	report := &DiagnosticReport{
		Architecture: c.goarch,
		GeneratedAt:  time.Now(),
	}

	report.Tools, _ = c.CheckTools(ctx)
	report.DockerRunning = c.CheckDockerRunning(ctx) == nil
	report.ArchSupported = c.CheckArchitecture() == nil

	var stat unix.Statfs_t
	if err := c.statfsFunc(".", &stat); err == nil {
		report.DiskFreeBytes = stat.Bavail * uint64(stat.Bsize)
	}

	return report
}

// =============================================================================
// Internal Helpers
// =============================================================================

// probeVersion runs `<tool> --version` and returns the first output line.
func (c *DefaultSystemChecker) probeVersion(ctx context.Context, tool string) string {
	res := c.proc.Execute(ctx, tool, []string{"--version"}, process.Options{
		Timeout: 10 * time.Second,
	})
	if !res.Success() {
		return ""
	}
	return firstLine(res.Stdout)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func boolToCheck(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// formatBytes renders a byte count in human units.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Compile-time interface compliance check.
var _ SystemChecker = (*DefaultSystemChecker)(nil)
