// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package infra

import (
	"context"
	"sync"
	"time"
)

// MockSystemChecker implements SystemChecker for testing.
//
// Unset function fields report a healthy host.
type MockSystemChecker struct {
	CheckToolsFunc         func(ctx context.Context) ([]ToolStatus, error)
	CheckDockerRunningFunc func(ctx context.Context) error
	CheckDiskSpaceFunc     func(path string, minBytes uint64) error
	CheckArchitectureFunc  func() error
	DiagnoseFunc           func(ctx context.Context) *DiagnosticReport

	Calls []string
	mu    sync.Mutex
}

func (m *MockSystemChecker) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method)
}

// GetCalls returns a copy of recorded calls.
func (m *MockSystemChecker) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

func (m *MockSystemChecker) CheckTools(ctx context.Context) ([]ToolStatus, error) {
	m.record("CheckTools")
	if m.CheckToolsFunc != nil {
		return m.CheckToolsFunc(ctx)
	}
	statuses := make([]ToolStatus, 0, len(RequiredTools))
	for _, t := range RequiredTools {
		statuses = append(statuses, ToolStatus{Name: t, Installed: true})
	}
	return statuses, nil
}

func (m *MockSystemChecker) CheckDockerRunning(ctx context.Context) error {
	m.record("CheckDockerRunning")
	if m.CheckDockerRunningFunc != nil {
		return m.CheckDockerRunningFunc(ctx)
	}
	return nil
}

func (m *MockSystemChecker) CheckDiskSpace(path string, minBytes uint64) error {
	m.record("CheckDiskSpace")
	if m.CheckDiskSpaceFunc != nil {
		return m.CheckDiskSpaceFunc(path, minBytes)
	}
	return nil
}

func (m *MockSystemChecker) CheckArchitecture() error {
	m.record("CheckArchitecture")
	if m.CheckArchitectureFunc != nil {
		return m.CheckArchitectureFunc()
	}
	return nil
}

func (m *MockSystemChecker) Diagnose(ctx context.Context) *DiagnosticReport {
	m.record("Diagnose")
	if m.DiagnoseFunc != nil {
		return m.DiagnoseFunc(ctx)
	}
	return &DiagnosticReport{GeneratedAt: time.Now(), DockerRunning: true, ArchSupported: true}
}

// Compile-time interface compliance check.
var _ SystemChecker = (*MockSystemChecker)(nil)
