// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package infra

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
)

func TestCheckToolsAllPresent(t *testing.T) {
	mock := &process.MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess, Stdout: name + " version 1.0\n"}
		},
	}
	c := NewDefaultSystemChecker(mock)

	statuses, err := c.CheckTools(context.Background())
	if err != nil {
		t.Fatalf("CheckTools: %v", err)
	}
	if len(statuses) != len(RequiredTools) {
		t.Fatalf("expected %d statuses, got %d", len(RequiredTools), len(statuses))
	}
	for _, st := range statuses {
		if !st.Installed {
			t.Errorf("%s reported missing", st.Name)
		}
		if st.Version == "" {
			t.Errorf("%s has no version", st.Name)
		}
	}
}

func TestCheckToolsFirstMissingReported(t *testing.T) {
	mock := &process.MockManager{
		LookPathFunc: func(name string) bool { return name != "uv" && name != "supabase" },
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess}
		},
	}
	c := NewDefaultSystemChecker(mock)

	statuses, err := c.CheckTools(context.Background())
	if err == nil {
		t.Fatal("expected error for missing tools")
	}

	var checkErr *CheckError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected *CheckError, got %T", err)
	}
	if checkErr.Type != CheckErrorToolMissing {
		t.Errorf("expected TOOL_MISSING, got %s", checkErr.Type)
	}
	if !strings.Contains(checkErr.Message, "uv") {
		t.Errorf("expected first missing tool (uv) in message, got %q", checkErr.Message)
	}
	if checkErr.Remediation == "" {
		t.Error("expected remediation instructions")
	}

	// The full status list still includes every tool.
	if len(statuses) != len(RequiredTools) {
		t.Errorf("expected %d statuses, got %d", len(RequiredTools), len(statuses))
	}
}

func TestCheckToolsCachesSuccess(t *testing.T) {
	mock := &process.MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess, Stdout: name + " version 1.0\n"}
		},
	}
	c := NewDefaultSystemChecker(mock)

	first, err := c.CheckTools(context.Background())
	if err != nil {
		t.Fatalf("CheckTools: %v", err)
	}
	probes := len(mock.GetCalls())

	// Repeated checks inside the TTL serve the cached statuses without
	// spawning more version probes.
	for i := 0; i < 3; i++ {
		statuses, err := c.CheckTools(context.Background())
		if err != nil {
			t.Fatalf("cached check %d: %v", i, err)
		}
		if len(statuses) != len(first) {
			t.Fatalf("cached check %d returned %d statuses, want %d", i, len(statuses), len(first))
		}
	}
	if calls := len(mock.GetCalls()); calls != probes {
		t.Errorf("cached checks spawned %d extra probes", calls-probes)
	}
}

func TestCheckToolsMissingNotCached(t *testing.T) {
	mock := &process.MockManager{
		LookPathFunc: func(name string) bool { return name != "supabase" },
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess}
		},
	}
	c := NewDefaultSystemChecker(mock)

	if _, err := c.CheckTools(context.Background()); err == nil {
		t.Fatal("expected error for missing tool")
	}

	// The user installs the tool; the next check must see it.
	mock.LookPathFunc = nil
	if _, err := c.CheckTools(context.Background()); err != nil {
		t.Errorf("check after install: %v", err)
	}
}

func TestCheckDockerRunningDaemonDown(t *testing.T) {
	mock := &process.MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{
				Outcome:  process.OutcomeFailure,
				ExitCode: 1,
				Stderr:   "Cannot connect to the Docker daemon\n",
			}
		},
	}
	c := NewDefaultSystemChecker(mock)

	err := c.CheckDockerRunning(context.Background())
	var checkErr *CheckError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected *CheckError, got %v", err)
	}
	if checkErr.Type != CheckErrorDaemonNotRunning {
		t.Errorf("expected DAEMON_NOT_RUNNING, got %s", checkErr.Type)
	}
}

func TestCheckDockerRunningCachesSuccess(t *testing.T) {
	mock := &process.MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess}
		},
	}
	c := NewDefaultSystemChecker(mock)

	for i := 0; i < 3; i++ {
		if err := c.CheckDockerRunning(context.Background()); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}

	if calls := len(mock.GetCalls()); calls != 1 {
		t.Errorf("expected 1 docker info call (cached), got %d", calls)
	}
}

func TestCheckDiskSpaceLow(t *testing.T) {
	c := NewDefaultSystemChecker(&process.MockManager{})
	c.statfsFunc = func(path string, buf *unix.Statfs_t) error {
		buf.Bavail = 10
		buf.Bsize = 4096
		return nil
	}

	err := c.CheckDiskSpace("/", 1<<30)
	var checkErr *CheckError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected *CheckError, got %v", err)
	}
	if checkErr.Type != CheckErrorDiskSpaceLow {
		t.Errorf("expected DISK_SPACE_LOW, got %s", checkErr.Type)
	}
}

func TestCheckArchitecture(t *testing.T) {
	c := NewDefaultSystemChecker(&process.MockManager{})

	c.goarch = "arm64"
	if err := c.CheckArchitecture(); err != nil {
		t.Errorf("arm64 should be supported: %v", err)
	}

	c.goarch = "riscv64"
	if err := c.CheckArchitecture(); err == nil {
		t.Error("expected error for riscv64")
	}
}

func TestDiagnoseReport(t *testing.T) {
	mock := &process.MockManager{
		ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
			return &process.Result{Outcome: process.OutcomeSuccess, Stdout: "v1\n"}
		},
	}
	c := NewDefaultSystemChecker(mock)
	c.goarch = "arm64"

	report := c.Diagnose(context.Background())
	if !report.DockerRunning {
		t.Error("expected docker running")
	}
	if !report.ArchSupported {
		t.Error("expected arch supported")
	}

	out := report.String()
	for _, want := range []string{"Suna System Diagnostics", "git", "Daemon", "arm64"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{1 << 20, "1.0 MB"},
		{5 << 30, "5.0 GB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
