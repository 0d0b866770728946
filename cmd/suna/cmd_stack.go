// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kortix-ai/suna-cli/pkg/ux"
)

// commandContext returns a context cancelled by Ctrl-C or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := acquireLock()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Start(ctx, StartOptions{
		ForceBuild:     forceBuild,
		SkipHealthGate: skipHealthGate,
	})
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := acquireLock()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Stop(ctx)
}

func runRestart(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := acquireLock()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Restart(ctx, StartOptions{ForceBuild: forceBuild})
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	if jsonOutput {
		return statusJSON(ctx, a)
	}
	return a.mgr.Status(ctx)
}

// statusJSON emits per-service health as a machine-readable envelope
// for scripting (`suna status --json | jq ...`).
func statusJSON(ctx context.Context, a *app) error {
	start := time.Now()
	defs := DefinitionsFromConfig(a.cfg.Health)
	results := a.health.CheckAll(ctx, defs)

	data := StackStatusResult{Policy: a.cfg.Health.Policy}
	byName := make(map[string]bool, len(results))
	for _, r := range results {
		byName[r.Name] = r.State == HealthStateHealthy
		data.Services = append(data.Services, ServiceStatusResult{
			Name:      r.Name,
			URL:       serviceURL(defs, r.Name),
			State:     string(r.State),
			Message:   r.Message,
			LatencyMs: r.Latency.Milliseconds(),
		})
		if r.State == HealthStateHealthy {
			data.HealthyCount++
		}
	}
	data.TotalCount = len(results)
	data.Ready = Healthy(byName, defs, HealthPolicy(a.cfg.Health.Policy))

	code := OutputResult(OutputConfig{JSON: true, Compact: compactJSON},
		"status", start, data, !data.Ready, nil)
	if code != CLIExitSuccess {
		return fmt.Errorf("stack is not ready")
	}
	return nil
}

func serviceURL(defs []ServiceDefinition, name string) string {
	for _, d := range defs {
		if d.Name == name {
			return d.URL
		}
	}
	return ""
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Logs(ctx, LogsStreamOptions{Services: args, Tail: tailLines}, os.Stdout)
}

func runFollow(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) > 0 {
		ux.Info(fmt.Sprintf("Streaming logs for %s (Ctrl-C to stop)", strings.Join(args, ", ")))
	} else {
		ux.Info("Streaming logs for all services (Ctrl-C to stop)")
	}

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Logs(ctx, LogsStreamOptions{Follow: true, Services: args}, os.Stdout)
}

func runOpen(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Open(ctx)
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Info(ctx)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if !forceCleanup {
		ux.WarningBox("Cleanup",
			"This stops and removes all Suna containers and prunes\n"+
				"dangling Docker resources. Container data not stored in\n"+
				"named volumes will be lost.")
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		if input != "yes" && input != "y" {
			ux.Muted("Aborted. No changes were made.")
			return nil
		}
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := acquireLock()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := commandContext()
	defer cancel()

	return a.mgr.Cleanup(ctx)
}
