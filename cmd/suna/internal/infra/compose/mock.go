// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compose

import (
	"context"
	"io"
	"sync"
)

// MockExecutor implements Executor for testing.
//
// Each method delegates to a corresponding function field when set and
// otherwise returns a successful zero result. Calls are recorded and
// can be inspected with GetCalls.
type MockExecutor struct {
	UpFunc           func(ctx context.Context, opts UpOptions) (*Result, error)
	PullFunc         func(ctx context.Context) (*Result, error)
	DownFunc         func(ctx context.Context, opts DownOptions) (*Result, error)
	StopFunc         func(ctx context.Context, opts StopOptions) (*Result, error)
	LogsFunc         func(ctx context.Context, opts LogsOptions, w io.Writer) error
	StatusFunc       func(ctx context.Context) (*Result, error)
	ForceCleanupFunc func(ctx context.Context) (*Result, error)
	ComposeFileFunc  func() (string, bool, error)

	Calls []string
	mu    sync.Mutex
}

func (m *MockExecutor) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method)
}

// Reset clears recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of recorded calls.
func (m *MockExecutor) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

func (m *MockExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	m.record("Up")
	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) Pull(ctx context.Context) (*Result, error) {
	m.record("Pull")
	if m.PullFunc != nil {
		return m.PullFunc(ctx)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	m.record("Down")
	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) Stop(ctx context.Context, opts StopOptions) (*Result, error) {
	m.record("Stop")
	if m.StopFunc != nil {
		return m.StopFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	m.record("Logs")
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, opts, w)
	}
	return nil
}

func (m *MockExecutor) Status(ctx context.Context) (*Result, error) {
	m.record("Status")
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) ForceCleanup(ctx context.Context) (*Result, error) {
	m.record("ForceCleanup")
	if m.ForceCleanupFunc != nil {
		return m.ForceCleanupFunc(ctx)
	}
	return &Result{Success: true}, nil
}

func (m *MockExecutor) ComposeFile() (string, bool, error) {
	m.record("ComposeFile")
	if m.ComposeFileFunc != nil {
		return m.ComposeFileFunc()
	}
	return "docker-compose.mac.yaml", false, nil
}

// Compile-time interface compliance check.
var _ Executor = (*MockExecutor)(nil)
