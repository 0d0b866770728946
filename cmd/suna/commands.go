// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kortix-ai/suna-cli/cmd/suna/config"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/compose"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
	"github.com/kortix-ai/suna-cli/pkg/logging"
	"github.com/kortix-ai/suna-cli/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	forceBuild       bool
	skipHealthGate   bool
	jsonOutput       bool
	compactJSON      bool
	tailLines        int
	forceCleanup     bool

	rootCmd = &cobra.Command{
		Use:   "suna",
		Short: "A cli to install and manage the Suna agent platform on your machine",
		Long: `Suna is a tool for setting up and operating a complete local
				Suna deployment: interactive configuration, generated env
				files, and docker compose lifecycle management.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
		// A bare invocation behaves as `suna start`.
		RunE: runStart,
	}

	// --- Setup ---
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Run the interactive setup wizard (resumable after interruption)",
		RunE:  runSetup, // Defined in cmd_setup.go
	}

	// --- Stack Lifecycle ---
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start all Suna services",
		RunE:  runStart, // Defined in cmd_stack.go
	}
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop all Suna services",
		RunE:  runStop, // Defined in cmd_stack.go
	}
	restartCmd = &cobra.Command{
		Use:   "restart",
		Short: "Stop and start all Suna services",
		RunE:  runRestart, // Defined in cmd_stack.go
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show container state and per-service health",
		RunE:  runStatus, // Defined in cmd_stack.go
	}
	logsCmd = &cobra.Command{
		Use:   "logs [service...]",
		Short: "Print recent logs from service containers",
		RunE:  runLogs, // Defined in cmd_stack.go
	}
	followCmd = &cobra.Command{
		Use:   "follow [service...]",
		Short: "Stream logs from service containers until interrupted",
		RunE:  runFollow, // Defined in cmd_stack.go
	}
	openCmd = &cobra.Command{
		Use:   "open",
		Short: "Open the Suna frontend in the default browser",
		RunE:  runOpen, // Defined in cmd_stack.go
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show service URLs, the compose file in use, and host diagnostics",
		RunE:  runInfo, // Defined in cmd_stack.go
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "DANGER: Tear down containers and prune dangling Docker resources",
		RunE:  runCleanup, // Defined in cmd_stack.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the suna config file (default ~/.suna/suna.yaml)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(setupCmd)

	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&forceBuild, "build", false, "Force rebuild of container images")
	startCmd.Flags().BoolVar(&skipHealthGate, "no-wait", false, "Skip the post-start health gate")

	rootCmd.AddCommand(stopCmd)

	rootCmd.AddCommand(restartCmd)
	restartCmd.Flags().BoolVar(&forceBuild, "build", false, "Force rebuild of container images")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
	statusCmd.Flags().BoolVar(&compactJSON, "compact", false, "JSON without indentation")

	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&tailLines, "tail", 100, "Number of log lines per container")

	rootCmd.AddCommand(followCmd)

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(infoCmd)

	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&forceCleanup, "force", false, "Skip the confirmation prompt")
}

// =============================================================================
// Dependency Wiring
// =============================================================================

// app holds the wired dependencies for one command invocation. Built
// fresh per command so every component receives the loaded config
// explicitly; there is no global configuration state.
type app struct {
	cfg     config.SunaConfig
	log     *logging.Logger
	proc    process.Manager
	checker infra.SystemChecker
	comp    compose.Executor
	health  HealthChecker
	mgr     StackManager
}

// buildApp loads configuration and wires the full dependency graph.
// Callers must Close the returned app.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Service: "suna",
		LogDir:  "~/.suna/logs",
	})

	proc := process.NewDefaultManager()
	checker := infra.NewDefaultSystemChecker(proc)

	comp, err := compose.NewDefaultExecutor(compose.Config{
		StackDir:       cfg.RepoDir,
		ProjectName:    cfg.Stack.ProjectName,
		PrimaryFile:    cfg.Stack.PrimaryComposeFile,
		FallbackFile:   cfg.Stack.FallbackComposeFile,
		DefaultTimeout: cfg.Stack.OperationTimeout(),
	}, proc)
	if err != nil {
		logger.Close()
		return nil, err
	}

	health := NewDefaultHealthChecker(nil, logger.Slog())
	mgr := NewDefaultStackManager(cfg, checker, comp, health, proc, os.Stdout)

	return &app{
		cfg:     cfg,
		log:     logger,
		proc:    proc,
		checker: checker,
		comp:    comp,
		health:  health,
		mgr:     mgr,
	}, nil
}

// Close flushes and releases logging resources.
func (a *app) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

// acquireLock takes the cross-process lock for mutating commands.
// The caller must Release the returned lock.
func acquireLock() (*process.Lock, error) {
	lock := process.NewLock(process.DefaultLockConfig())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	return lock, nil
}
