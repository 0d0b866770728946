// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// ErrCategorySkipped signals that the user declined an optional
// configuration category. Callers treat it as a normal control-flow
// outcome, not a failure.
var ErrCategorySkipped = errors.New("category skipped")

// ValidationError reports user input that failed validation.
//
// The collector re-prompts on ValidationError rather than aborting, so
// the message must tell the user what to fix.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

// DependencyMissingError reports a required external tool that is not
// installed.
type DependencyMissingError struct {
	Tool        string
	Remediation string
}

func (e *DependencyMissingError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s is not installed (install with: %s)", e.Tool, e.Remediation)
	}
	return fmt.Sprintf("%s is not installed", e.Tool)
}

// ProcessExecutionError reports an external command that ran and exited
// non-zero. Stderr carries the first useful diagnostic line.
type ProcessExecutionError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed with exit code %d", e.Command, e.ExitCode)
}

// TimeoutError reports an operation that exceeded its deadline.
//
// Timeouts during health waiting are warning-grade: the stack may
// still become ready after the CLI stops watching, so messages must
// not claim the stack is broken.
type TimeoutError struct {
	Operation string
	Limit     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Operation, e.Limit)
}

// InterruptedError reports a run stopped by the user (Ctrl-C or a
// cancelled context). Progress is preserved for resume.
type InterruptedError struct {
	StepName string
}

func (e *InterruptedError) Error() string {
	if e.StepName != "" {
		return fmt.Sprintf("setup interrupted during %q, run setup again to resume", e.StepName)
	}
	return "setup interrupted, run setup again to resume"
}

// ConfigWriteError reports a failure persisting generated
// configuration or progress to disk.
type ConfigWriteError struct {
	Path string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error {
	return e.Err
}
