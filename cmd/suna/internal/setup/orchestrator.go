// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"context"
	"errors"
	"log/slog"
)

// =============================================================================
// Outcome
// =============================================================================

// OutcomeKind classifies how a setup run ended.
type OutcomeKind int

const (
	// OutcomeCompleted means every step succeeded and the progress
	// record was removed.
	OutcomeCompleted OutcomeKind = iota

	// OutcomeFailed means a step failed; progress points at it for
	// the next run.
	OutcomeFailed

	// OutcomeInterrupted means the context was cancelled; progress is
	// preserved for resume.
	OutcomeInterrupted
)

// String returns a stable identifier for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "COMPLETED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of one orchestrator run.
type Outcome struct {
	Kind OutcomeKind

	// StepName is the step that failed or was interrupted, when any.
	StepName string

	// Err is the underlying cause for Failed outcomes.
	Err error

	// Resumed is true when the run picked up an earlier record rather
	// than starting fresh.
	Resumed bool
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator drives the ordered setup steps with resumable progress.
//
// # Description
//
// On each run the orchestrator loads the stored Progress (or starts
// fresh when missing or unreadable), skips the steps already recorded
// as complete, and executes the rest in order. Progress advances only
// after a step fully succeeds, and each advance is persisted
// atomically before the next step begins, so a crash at any point
// re-runs at most the step that was executing. Completing the final
// step deletes the record; a record pointing past the last step is an
// idempotent no-op.
//
// Cancellation is context-based: the context is checked before each
// step, and a cancelled run ends with OutcomeInterrupted after the
// best-effort teardown hook, with the progress record untouched.
//
// # Thread Safety
//
// Not safe for concurrent use. The CLI's process lock ensures a single
// orchestrator runs against a progress file at a time.
type Orchestrator struct {
	steps []Step
	store ProgressStore
	log   *slog.Logger

	// OnStepStart, when set, is called before each executed step with
	// the one-based ordinal, the total count, and the step name.
	OnStepStart func(ordinal, total int, name string)

	// Teardown, when set, runs after an interruption to release
	// whatever the completed steps started. Failures are logged, not
	// surfaced.
	Teardown func(ctx context.Context)
}

// NewOrchestrator creates an orchestrator over the given step list.
func NewOrchestrator(steps []Step, store ProgressStore, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		steps: steps,
		store: store,
		log:   log,
	}
}

// Run executes the remaining steps.
//
// # Outputs
//
//   - Outcome: How the run ended. Never describes a partial advance:
//     a failed step leaves progress exactly where it was.
//   - error: Persistence failures only; step failures are reported
//     through the Outcome.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	progress, _ := o.store.Load()
	resumed := progress != nil
	if progress == nil {
		progress = NewProgress()
	}

	total := len(o.steps)
	if progress.CurrentStep > total {
		// A stale record pointing past the end means a prior run
		// finished but could not delete the file. Finish the job.
		o.log.Info("setup already complete", "run_id", progress.RunID)
		if err := o.store.Clear(); err != nil {
			return Outcome{Kind: OutcomeCompleted, Resumed: resumed}, err
		}
		return Outcome{Kind: OutcomeCompleted, Resumed: resumed}, nil
	}

	if resumed {
		o.log.Info("resuming setup",
			"run_id", progress.RunID,
			"step", progress.CurrentStep,
			"total", total)
	}

	state := State(progress.Collected)

	for i := progress.CurrentStep - 1; i < total; i++ {
		step := o.steps[i]

		if err := ctx.Err(); err != nil {
			return o.interrupted(ctx, step.Name), nil
		}

		if o.OnStepStart != nil {
			o.OnStepStart(i+1, total, step.Name)
		}
		o.log.Info("running step", "ordinal", i+1, "total", total, "name", step.Name)

		delta, err := step.Run(ctx, state.Clone())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return o.interrupted(ctx, step.Name), nil
			}
			o.log.Error("step failed", "name", step.Name, "error", err)
			return Outcome{Kind: OutcomeFailed, StepName: step.Name, Err: err, Resumed: resumed}, nil
		}

		state = state.Merge(delta)
		progress.Collected = state
		progress.CurrentStep = i + 2
		if err := o.store.Save(progress); err != nil {
			return Outcome{Kind: OutcomeFailed, StepName: step.Name, Err: err, Resumed: resumed}, err
		}
	}

	if err := o.store.Clear(); err != nil {
		return Outcome{Kind: OutcomeCompleted, Resumed: resumed}, err
	}

	o.log.Info("setup complete", "run_id", progress.RunID, "steps", total)
	return Outcome{Kind: OutcomeCompleted, Resumed: resumed}, nil
}

// interrupted runs the teardown hook and builds the outcome.
func (o *Orchestrator) interrupted(ctx context.Context, stepName string) Outcome {
	o.log.Warn("setup interrupted", "step", stepName)
	if o.Teardown != nil {
		// The run context is cancelled; teardown gets a fresh one.
		o.Teardown(context.WithoutCancel(ctx))
	}
	return Outcome{Kind: OutcomeInterrupted, StepName: stepName}
}
