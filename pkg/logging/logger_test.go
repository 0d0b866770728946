// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// waitForEntries polls the exporter until n entries arrive or the
// deadline passes. Export runs on its own goroutine per record.
func waitForEntries(t *testing.T, exp *BufferedExporter, n int) []LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := exp.Entries(); len(entries) >= n {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d exported entries, got %d", n, len(exp.Entries()))
	return nil
}

func TestLoggerExportsEntries(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "setup",
		Quiet:    true,
		Exporter: exp,
	})
	defer logger.Close()

	logger.Info("step started", "ordinal", 3, "name", "Verify Docker daemon")

	entries := waitForEntries(t, exp, 1)
	e := entries[0]
	if e.Level != LevelInfo {
		t.Errorf("Level = %s, want INFO", e.Level)
	}
	if e.Message != "step started" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Service != "setup" {
		t.Errorf("Service = %q, want setup", e.Service)
	}
	if e.Attrs["ordinal"] != 3 {
		t.Errorf("ordinal attr = %v, want 3", e.Attrs["ordinal"])
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestLoggerExportRespectsLevel(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exp,
	})

	logger.Debug("noise")
	logger.Info("more noise")
	logger.Warn("descriptor fallback")

	entries := waitForEntries(t, exp, 1)
	if len(entries) != 1 {
		t.Fatalf("expected only the warn entry, got %d", len(entries))
	}
	if entries[0].Message != "descriptor fallback" {
		t.Errorf("Message = %q", entries[0].Message)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLoggerNopExporter(t *testing.T) {
	logger := New(Config{
		Level:    LevelInfo,
		Quiet:    true,
		Exporter: &NopExporter{},
	})

	logger.Info("discarded")
	logger.Error("also discarded")

	if err := logger.Close(); err != nil {
		t.Errorf("Close with NopExporter: %v", err)
	}
}

func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "manager",
		Quiet:   true,
	})

	logger.Info("compose up", "force_build", true)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "manager_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"msg":"compose up"`, `"service":"manager"`, `"force_build":true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %s", want)
		}
	}
}

func TestLoggerWithSharesExporter(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Exporter: exp})
	defer logger.Close()

	child := logger.With("step", "prerequisites")
	child.Info("running")

	entries := waitForEntries(t, exp, 1)
	if entries[0].Message != "running" {
		t.Errorf("Message = %q", entries[0].Message)
	}
}
