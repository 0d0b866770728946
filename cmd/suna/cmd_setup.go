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
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/compose"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/setup"
	"github.com/kortix-ai/suna-cli/pkg/ux"
)

// runSetup drives the interactive setup wizard.
//
// Progress is persisted after every completed step, so an interrupted
// or failed run resumes where it left off on the next invocation.
func runSetup(cmd *cobra.Command, args []string) error {
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

	ux.Title("Suna Setup")
	ux.Muted(fmt.Sprintf("Repository: %s", a.cfg.RepoDir))

	store := setup.NewFileProgressStore(
		filepath.Join(a.cfg.RepoDir, a.cfg.Setup.ProgressFile))

	orch := setup.NewOrchestrator(buildSetupSteps(a), store, a.log.Slog())
	orch.OnStepStart = func(ordinal, total int, name string) {
		ux.StepHeader(ordinal, total, name)
	}
	orch.Teardown = func(tctx context.Context) {
		// Best effort: release whatever the completed steps started.
		_, _ = a.comp.Stop(tctx, compose.StopOptions{})
	}

	outcome, runErr := orch.Run(ctx)
	switch outcome.Kind {
	case setup.OutcomeCompleted:
		if runErr != nil {
			// All steps ran but the progress record could not be
			// removed; the next invocation cleans it up.
			ux.Warning(runErr.Error())
		}
		ux.Success("Setup complete")
		ux.Box("Suna is ready",
			"Frontend:  http://localhost:3000\n"+
				"Backend:   http://localhost:8000/api\n\n"+
				"Manage the stack with `suna start`, `suna stop`, `suna status`.")
		return nil

	case setup.OutcomeInterrupted:
		return &setup.InterruptedError{StepName: outcome.StepName}

	default:
		ux.Info("Progress is saved. Run `suna setup` again to resume from this step.")
		if outcome.Err != nil {
			return outcome.Err
		}
		return runErr
	}
}

// =============================================================================
// Step List
// =============================================================================

// buildSetupSteps assembles the ordered wizard steps.
func buildSetupSteps(a *app) []setup.Step {
	return []setup.Step{
		prerequisitesStep(a),
		dockerDaemonStep(a),
		collectStep(a, "Collect Supabase credentials", setup.CategorySupabase, nil),
		collectStep(a, "Collect Daytona credentials", setup.CategoryDaytona, nil),
		collectStep(a, "Collect LLM provider keys", setup.CategoryLLM, nil),
		collectStep(a, "Collect search and scraping keys", setup.CategorySearch, nil),
		collectStep(a, "Collect RapidAPI key", setup.CategoryRapidAPI, nil),
		collectStep(a, "Collect Smithery key", setup.CategorySmithery, nil),
		collectStep(a, "Collect QStash credentials", setup.CategoryQStash, nil),
		collectStep(a, "Configure webhooks", setup.CategoryWebhook, addEncryptionKey),
		collectStep(a, "Collect Pipedream credentials", setup.CategoryPipedream, nil),
		writeEnvFilesStep(a),
		supabaseDatabaseStep(a),
		installDependenciesStep(a),
		startStackStep(a),
	}
}

// prerequisitesStep verifies required tools, free disk, and CPU
// architecture before anything else touches the system.
func prerequisitesStep(a *app) setup.Step {
	return setup.Step{
		Name: "Check prerequisites",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			statuses, err := a.checker.CheckTools(ctx)
			for _, ts := range statuses {
				ux.ServiceStatus(ts.Name, ts.Installed, ts.Version)
			}
			if err != nil {
				var checkErr *infra.CheckError
				if errors.As(err, &checkErr) {
					for _, ts := range statuses {
						if !ts.Installed {
							return nil, &setup.DependencyMissingError{
								Tool:        ts.Name,
								Remediation: checkErr.Remediation,
							}
						}
					}
				}
				return nil, err
			}

			minBytes := uint64(a.cfg.Setup.MinDiskGB) * (1 << 30)
			if err := a.checker.CheckDiskSpace(a.cfg.RepoDir, minBytes); err != nil {
				return nil, err
			}
			if err := a.checker.CheckArchitecture(); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

// dockerDaemonStep verifies the Docker daemon responds.
func dockerDaemonStep(a *app) setup.Step {
	return setup.Step{
		Name: "Verify Docker daemon",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			if err := a.checker.CheckDockerRunning(ctx); err != nil {
				return nil, err
			}
			ux.Success("Docker daemon is running")
			if runtime.GOARCH == "arm64" {
				ux.Muted("Tip: on Apple silicon, give Docker Desktop at least 8GB of memory " +
					"(Settings > Resources) for a smooth first build.")
			}
			return nil, nil
		},
	}
}

// collectStep prompts for one configuration category. Skipping an
// optional category records an empty bag so the step is not re-asked
// on resume. The extra hook can augment the collected values.
func collectStep(a *app, name, category string, extra func(values map[string]string) error) setup.Step {
	return setup.Step{
		Name: name,
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			cat, ok := findCategory(category)
			if !ok {
				return nil, fmt.Errorf("unknown configuration category %q", category)
			}

			collector := setup.NewCollector(os.Stdin, os.Stdout)
			values, err := collector.Collect(cat)
			if errors.Is(err, setup.ErrCategorySkipped) {
				ux.Muted(fmt.Sprintf("Skipped %s", cat.Title))
				return setup.State{category: {}}, nil
			}
			if err != nil {
				return nil, err
			}

			if extra != nil {
				if err := extra(values); err != nil {
					return nil, err
				}
			}
			return setup.State{category: values}, nil
		},
	}
}

func findCategory(name string) (setup.CategorySpec, bool) {
	for _, cat := range setup.DefaultCategories() {
		if cat.Name == name {
			return cat, true
		}
	}
	return setup.CategorySpec{}, false
}

// addEncryptionKey generates the MCP credential encryption key during
// the webhook step. The key is never prompted for.
func addEncryptionKey(values map[string]string) error {
	key, err := setup.GenerateEncryptionKey()
	if err != nil {
		return err
	}
	values["MCP_CREDENTIAL_ENCRYPTION_KEY"] = key
	ux.Muted("Generated MCP credential encryption key")
	return nil
}

// writeEnvFilesStep renders and writes backend/.env and
// frontend/.env.local, and generates the platform compose descriptor
// from the repository's base descriptor.
func writeEnvFilesStep(a *app) setup.Step {
	return setup.Step{
		Name: "Write configuration files",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			if err := setup.WriteEnvFiles(
				a.cfg.RepoDir,
				a.cfg.Setup.BackendEnvFile,
				a.cfg.Setup.FrontendEnvFile,
				st,
			); err != nil {
				return nil, err
			}
			ux.Success(fmt.Sprintf("Wrote %s", a.cfg.Setup.BackendEnvFile))
			ux.Success(fmt.Sprintf("Wrote %s", a.cfg.Setup.FrontendEnvFile))

			platform := "linux/amd64"
			if runtime.GOARCH == "arm64" {
				platform = "linux/arm64"
			}
			if err := setup.GeneratePlatformCompose(setup.PlatformComposeSpec{
				BaseFile:     filepath.Join(a.cfg.RepoDir, a.cfg.Stack.FallbackComposeFile),
				OutFile:      filepath.Join(a.cfg.RepoDir, a.cfg.Stack.PrimaryComposeFile),
				Platform:     platform,
				AppleSilicon: runtime.GOARCH == "arm64",
			}); err != nil {
				return nil, err
			}
			ux.Success(fmt.Sprintf("Wrote %s", a.cfg.Stack.PrimaryComposeFile))

			path, usedFallback, err := a.comp.ComposeFile()
			if err != nil {
				return nil, err
			}
			if usedFallback {
				ux.Warning(fmt.Sprintf("Platform compose file missing, will use %s", filepath.Base(path)))
			} else {
				ux.Muted(fmt.Sprintf("Compose file: %s", filepath.Base(path)))
			}
			return nil, nil
		},
	}
}

// supabaseDatabaseStep links the local checkout to the Supabase project
// and pushes the database migrations.
func supabaseDatabaseStep(a *app) setup.Step {
	return setup.Step{
		Name: "Set up Supabase database",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			ref := supabaseProjectRef(st[setup.CategorySupabase]["SUPABASE_URL"])
			if ref == "" {
				ux.Warning("Could not derive a project ref from the Supabase URL (self-hosted?). " +
					"Run `supabase link` and `supabase db push` manually.")
				return nil, nil
			}

			// `supabase projects list` succeeds only with a valid login.
			res := a.proc.Execute(ctx, "supabase", []string{"projects", "list"},
				process.Options{Timeout: 30 * time.Second})
			if res.Outcome == process.OutcomeNotFound {
				return nil, &setup.DependencyMissingError{
					Tool:        "supabase",
					Remediation: "brew install supabase/tap/supabase",
				}
			}
			if !res.Success() {
				return nil, &setup.ProcessExecutionError{
					Command:  "supabase projects list",
					ExitCode: res.ExitCode,
					Stderr:   "not logged in; run `supabase login` first, then re-run setup",
				}
			}

			backendDir := filepath.Join(a.cfg.RepoDir, "backend")
			ux.Info(fmt.Sprintf("Linking project %s...", ref))
			if err := a.proc.RunStreaming(ctx, backendDir, os.Stdout,
				"supabase", "link", "--project-ref", ref); err != nil {
				return nil, fmt.Errorf("supabase link failed: %w", err)
			}

			ux.Info("Pushing database migrations...")
			if err := a.proc.RunStreaming(ctx, backendDir, os.Stdout,
				"supabase", "db", "push"); err != nil {
				return nil, fmt.Errorf("supabase db push failed: %w", err)
			}

			ux.WarningBox("Manual step required",
				"In the Supabase dashboard, open Project Settings > API and\n"+
					"add 'basejump' to the exposed schemas, then save.")
			return nil, nil
		},
	}
}

// supabaseProjectRef extracts the project ref from a hosted Supabase
// URL ("https://<ref>.supabase.co"). Returns "" for self-hosted URLs.
func supabaseProjectRef(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	ref, ok := strings.CutSuffix(u.Hostname(), ".supabase.co")
	if !ok || ref == "" || strings.Contains(ref, ".") {
		return ""
	}
	return ref
}

// installDependenciesStep installs backend (uv) and frontend (npm)
// dependencies so images build quickly and local tooling works.
func installDependenciesStep(a *app) setup.Step {
	return setup.Step{
		Name: "Install dependencies",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			// The stack itself runs in containers; local installs are
			// only needed for development outside docker.
			fmt.Print("Install dependencies locally for development? (Y/n): ")
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			if strings.EqualFold(strings.TrimSpace(line), "n") {
				ux.Muted("Skipped local dependency install")
				return nil, nil
			}

			backendDir := filepath.Join(a.cfg.RepoDir, "backend")
			frontendDir := filepath.Join(a.cfg.RepoDir, "frontend")

			ux.Info("Installing backend dependencies (uv sync)...")
			if err := a.proc.RunStreaming(ctx, backendDir, os.Stdout, "uv", "sync"); err != nil {
				return nil, fmt.Errorf("uv sync failed: %w", err)
			}

			ux.Info("Installing frontend dependencies (npm install)...")
			if err := a.proc.RunStreaming(ctx, frontendDir, os.Stdout, "npm", "install"); err != nil {
				return nil, fmt.Errorf("npm install failed: %w", err)
			}
			return nil, nil
		},
	}
}

// startStackStep brings the stack up. The StackManager treats a health
// gate timeout as a warning, so setup still completes when services
// are slow to boot.
func startStackStep(a *app) setup.Step {
	return setup.Step{
		Name: "Start the Suna stack",
		Run: func(ctx context.Context, st setup.State) (setup.State, error) {
			if err := a.mgr.Start(ctx, StartOptions{}); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}
