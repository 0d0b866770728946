// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Outcome Classification
// -----------------------------------------------------------------------------

// Outcome classifies how an external command finished. It is the only
// channel through which failure information crosses this package's
// boundary; callers never interpret raw OS-level errors.
type Outcome int

const (
	// OutcomeSuccess means the command ran and exited zero.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means the command ran and exited non-zero.
	// Result.ExitCode carries the code and Result.Stderr the output.
	OutcomeFailure

	// OutcomeNotFound means the binary could not be located.
	OutcomeNotFound

	// OutcomeTimedOut means the command was terminated because its
	// deadline elapsed or its context was cancelled.
	OutcomeTimedOut
)

// String returns the outcome as a string for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeNotFound:
		return "NOT_FOUND"
	case OutcomeTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Result carries the classified outcome of one command execution.
type Result struct {
	// Outcome is the exit classification.
	Outcome Outcome

	// ExitCode is the process exit code. Meaningful for
	// OutcomeFailure; -1 when the process never produced one.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// Duration is the wall-clock time the command took.
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// Summary returns a short description suitable for user-facing error
// messages: the outcome plus the first stderr line, if any.
func (r *Result) Summary() string {
	firstLine := strings.TrimSpace(r.Stderr)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	switch r.Outcome {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "binary not found"
	case OutcomeTimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	default:
		if firstLine != "" {
			return fmt.Sprintf("exit code %d: %s", r.ExitCode, firstLine)
		}
		return fmt.Sprintf("exit code %d", r.ExitCode)
	}
}

// Options control a single command execution.
type Options struct {
	// Dir is the working directory. Empty means the caller's cwd.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment. Nil inherits unchanged.
	Env []string

	// Timeout bounds the command's wall-clock time. Zero applies no
	// bound beyond the caller's context.
	Timeout time.Duration
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Manager handles external process operations.
//
// This interface abstracts all interaction with the operating system's
// process management. All exec.Command calls in setup and stack
// management code go through it, enabling mocking in unit tests.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
type Manager interface {
	// Execute runs a command synchronously and classifies the outcome.
	//
	// # Description
	//
	// Spawns the command and waits for completion. A missing binary
	// yields OutcomeNotFound, an elapsed deadline OutcomeTimedOut, a
	// non-zero exit OutcomeFailure with the code and captured stderr,
	// and a zero exit OutcomeSuccess. Execute never returns an error;
	// the Result is the complete report.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - name: The executable name or path
	//   - args: Command arguments
	//   - opts: Working directory, environment, timeout
	//
	// # Outputs
	//
	//   - *Result: Classified outcome with captured output and duration
	//
	// # Examples
	//
	//	res := pm.Execute(ctx, "docker", []string{"info"}, process.Options{Timeout: 10 * time.Second})
	//	if res.Outcome == process.OutcomeNotFound {
	//	    return fmt.Errorf("docker is not installed")
	//	}
	Execute(ctx context.Context, name string, args []string, opts Options) *Result

	// RunStreaming runs a command with stdout/stderr attached to w.
	// Used for long-lived output such as `docker compose logs -f`.
	// Returns nil when the command exits zero or the context ends.
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	// Start launches a background process and returns its PID without
	// waiting for completion. Output is discarded.
	Start(ctx context.Context, name string, args ...string) (int, error)

	// LookPath reports whether the named binary is resolvable.
	LookPath(name string) bool
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
//
// This is the production implementation that executes real processes.
// Use MockManager in tests instead.
type DefaultManager struct{}

// NewDefaultManager creates a Manager that executes real processes.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Execute runs a command synchronously and classifies the outcome.
func (pm *DefaultManager) Execute(ctx context.Context, name string, args []string, opts Options) *Result {
	execCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeSuccess
	case errors.Is(err, exec.ErrNotFound):
		result.Outcome = OutcomeNotFound
		result.ExitCode = -1
	case execCtx.Err() != nil:
		// Deadline elapsed or caller cancelled; either way the
		// command did not run to completion.
		result.Outcome = OutcomeTimedOut
		result.ExitCode = -1
	default:
		result.Outcome = OutcomeFailure
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if result.Stderr == "" {
			// Spawn-level fault (permissions, bad path). Surface the
			// text through Stderr so the classification stays closed.
			result.Stderr = err.Error()
		}
	}

	return result
}

// RunStreaming runs a command with output attached to w.
func (pm *DefaultManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		// Interrupted streaming (Ctrl-C on `logs -f`) is not a failure.
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Start launches a background process and returns immediately.
func (pm *DefaultManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", name, err)
	}

	return cmd.Process.Pid, nil
}

// LookPath reports whether the named binary is resolvable.
func (pm *DefaultManager) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockManager is a test double for Manager.
//
// Configure the mock by setting function fields before use. If a
// function field is nil and the corresponding method is called, it
// panics.
//
// # Examples
//
//	mock := &process.MockManager{
//	    ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
//	        if name == "docker" {
//	            return &process.Result{Outcome: process.OutcomeSuccess}
//	        }
//	        return &process.Result{Outcome: process.OutcomeNotFound}
//	    },
//	}
type MockManager struct {
	// ExecuteFunc is called when Execute is invoked
	ExecuteFunc func(ctx context.Context, name string, args []string, opts Options) *Result

	// RunStreamingFunc is called when RunStreaming is invoked
	RunStreamingFunc func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	// StartFunc is called when Start is invoked
	StartFunc func(ctx context.Context, name string, args ...string) (int, error)

	// LookPathFunc is called when LookPath is invoked.
	// When nil, LookPath returns true.
	LookPathFunc func(name string) bool

	// Calls records all method invocations for verification
	Calls []ManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ManagerCall records a single method invocation.
type ManagerCall struct {
	Method string
	Name   string
	Args   []string
	Dir    string
}

// Execute delegates to ExecuteFunc and records the call.
func (m *MockManager) Execute(ctx context.Context, name string, args []string, opts Options) *Result {
	m.record(ManagerCall{Method: "Execute", Name: name, Args: args, Dir: opts.Dir})
	if m.ExecuteFunc == nil {
		panic("MockManager.ExecuteFunc not set")
	}
	return m.ExecuteFunc(ctx, name, args, opts)
}

// RunStreaming delegates to RunStreamingFunc and records the call.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	m.record(ManagerCall{Method: "RunStreaming", Name: name, Args: args, Dir: dir})
	if m.RunStreamingFunc == nil {
		panic("MockManager.RunStreamingFunc not set")
	}
	return m.RunStreamingFunc(ctx, dir, w, name, args...)
}

// Start delegates to StartFunc and records the call.
func (m *MockManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.record(ManagerCall{Method: "Start", Name: name, Args: args})
	if m.StartFunc == nil {
		panic("MockManager.StartFunc not set")
	}
	return m.StartFunc(ctx, name, args...)
}

// LookPath delegates to LookPathFunc and records the call.
func (m *MockManager) LookPath(name string) bool {
	m.record(ManagerCall{Method: "LookPath", Name: name})
	if m.LookPathFunc == nil {
		return true
	}
	return m.LookPathFunc(name)
}

func (m *MockManager) record(call ManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []ManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
