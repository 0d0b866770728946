// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package process provides abstractions for external process execution and
inter-process synchronization.

# Overview

This package contains two main components:

  - Manager: abstracts external process execution with outcome
    classification, for testability
  - Locker: file-based locking to prevent concurrent CLI instances

# Manager

Manager enables testable interaction with the operating system's process
management. All exec.Command calls go through this interface so tests
can mock process execution. Every execution produces a classified
Result (Success, Failure with exit code, NotFound, TimedOut) with
captured stdout/stderr and wall-clock duration; callers never interpret
raw platform errors.

	pm := process.NewDefaultManager()
	res := pm.Execute(ctx, "docker", []string{"info"}, process.Options{Timeout: 10 * time.Second})
	if !res.Success() {
	    return fmt.Errorf("docker check failed: %s", res.Summary())
	}

For testing, use MockManager:

	mock := &process.MockManager{
	    ExecuteFunc: func(ctx context.Context, name string, args []string, opts process.Options) *process.Result {
	        return &process.Result{Outcome: process.OutcomeSuccess, Stdout: "mock output"}
	    },
	}

# Locker

Locker prevents multiple CLI instances from mutating the same setup
progress file simultaneously. Uses flock(2) advisory file locking.

	lock := process.NewLock(process.DefaultLockConfig())
	if err := lock.Acquire(); err != nil {
	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	    os.Exit(1)
	}
	defer lock.Release()

# Thread Safety

  - Manager implementations are safe for concurrent use
  - Locker is NOT safe for concurrent use from multiple goroutines

# Limitations

  - Locker uses advisory locks - other processes can ignore if not checking
  - Locker requires OS support for flock(2)
*/
package process
