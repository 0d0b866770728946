// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestExecuteSuccess verifies that a zero-exit command is classified
// as OutcomeSuccess with captured stdout.
func TestExecuteSuccess(t *testing.T) {
	pm := NewDefaultManager()

	res := pm.Execute(context.Background(), "sh", []string{"-c", "echo hello"}, Options{})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %v, want OutcomeSuccess (stderr: %q)", res.Outcome, res.Stderr)
	}
	if !res.Success() {
		t.Error("Success() = false, want true")
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want \"hello\"", res.Stdout)
	}
	if res.Duration <= 0 {
		t.Error("Duration not recorded")
	}
}

// TestExecuteFailureExitCode verifies that a non-zero exit is
// classified as OutcomeFailure carrying the exit code and stderr.
func TestExecuteFailureExitCode(t *testing.T) {
	pm := NewDefaultManager()

	res := pm.Execute(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, Options{})

	if res.Outcome != OutcomeFailure {
		t.Fatalf("Outcome = %v, want OutcomeFailure", res.Outcome)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("Stderr = %q, want to contain \"boom\"", res.Stderr)
	}
}

// TestExecuteNotFound verifies that a missing binary is classified as
// OutcomeNotFound rather than surfacing a raw exec error.
func TestExecuteNotFound(t *testing.T) {
	pm := NewDefaultManager()

	res := pm.Execute(context.Background(), "definitely-not-a-real-binary-a8f3", nil, Options{})

	if res.Outcome != OutcomeNotFound {
		t.Fatalf("Outcome = %v, want OutcomeNotFound", res.Outcome)
	}
	if res.Success() {
		t.Error("Success() = true for a missing binary")
	}
}

// TestExecuteTimedOut verifies that a command exceeding its timeout is
// terminated and classified as OutcomeTimedOut.
func TestExecuteTimedOut(t *testing.T) {
	pm := NewDefaultManager()

	start := time.Now()
	res := pm.Execute(context.Background(), "sh", []string{"-c", "sleep 5"}, Options{
		Timeout: 100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("Outcome = %v, want OutcomeTimedOut", res.Outcome)
	}
	if elapsed >= 5*time.Second {
		t.Errorf("command was not terminated at the timeout (took %v)", elapsed)
	}
}

// TestExecuteCancelledContext verifies that caller cancellation also
// maps to OutcomeTimedOut (the command did not run to completion).
func TestExecuteCancelledContext(t *testing.T) {
	pm := NewDefaultManager()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res := pm.Execute(ctx, "sh", []string{"-c", "sleep 5"}, Options{})

	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("Outcome = %v, want OutcomeTimedOut", res.Outcome)
	}
}

// TestExecuteWorkingDirectory verifies that Options.Dir is honored.
func TestExecuteWorkingDirectory(t *testing.T) {
	pm := NewDefaultManager()
	dir := t.TempDir()

	res := pm.Execute(context.Background(), "pwd", nil, Options{Dir: dir})

	if res.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %v, want OutcomeSuccess", res.Outcome)
	}
	if !strings.Contains(strings.TrimSpace(res.Stdout), dir) {
		t.Errorf("pwd output %q does not contain %q", res.Stdout, dir)
	}
}

// TestResultSummary verifies the user-facing summary strings.
func TestResultSummary(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "success",
			result: Result{Outcome: OutcomeSuccess},
			want:   "success",
		},
		{
			name:   "not found",
			result: Result{Outcome: OutcomeNotFound},
			want:   "binary not found",
		},
		{
			name:   "failure with stderr",
			result: Result{Outcome: OutcomeFailure, ExitCode: 2, Stderr: "bad flag\nmore detail"},
			want:   "exit code 2: bad flag",
		},
		{
			name:   "failure without stderr",
			result: Result{Outcome: OutcomeFailure, ExitCode: 7},
			want:   "exit code 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.result.Summary()
			if got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestOutcomeString verifies outcome names used in logs.
func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSuccess, "SUCCESS"},
		{OutcomeFailure, "FAILURE"},
		{OutcomeNotFound, "NOT_FOUND"},
		{OutcomeTimedOut, "TIMED_OUT"},
		{Outcome(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}

// TestLookPath verifies binary resolution for present and absent names.
func TestLookPath(t *testing.T) {
	pm := NewDefaultManager()

	if !pm.LookPath("sh") {
		t.Error("LookPath(sh) = false, want true")
	}
	if pm.LookPath("definitely-not-a-real-binary-a8f3") {
		t.Error("LookPath for a missing binary = true, want false")
	}
}

// TestMockManagerRecordsCalls verifies that the mock records
// invocations for later verification.
func TestMockManagerRecordsCalls(t *testing.T) {
	mock := &MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts Options) *Result {
			return &Result{Outcome: OutcomeSuccess}
		},
	}

	mock.Execute(context.Background(), "docker", []string{"info"}, Options{Dir: "/tmp"})
	mock.LookPath("git")

	calls := mock.GetCalls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if calls[0].Method != "Execute" || calls[0].Name != "docker" {
		t.Errorf("first call = %+v, want Execute docker", calls[0])
	}
	if calls[0].Dir != "/tmp" {
		t.Errorf("first call Dir = %q, want /tmp", calls[0].Dir)
	}
	if calls[1].Method != "LookPath" || calls[1].Name != "git" {
		t.Errorf("second call = %+v, want LookPath git", calls[1])
	}

	mock.Reset()
	if len(mock.GetCalls()) != 0 {
		t.Error("Reset did not clear recorded calls")
	}
}

// TestLockAcquireRelease verifies the single-instance lock round trip.
func TestLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewLock(LockConfig{LockDir: dir, LockName: "suna-test"})

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("IsHeld() = false after Acquire")
	}

	// Acquire while held is a no-op.
	if err := lock.Acquire(); err != nil {
		t.Errorf("re-Acquire() error: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Errorf("Release() error: %v", err)
	}
	if lock.IsHeld() {
		t.Error("IsHeld() = true after Release")
	}

	// Release twice is safe.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error: %v", err)
	}
}
