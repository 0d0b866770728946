// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Locker defines the interface for CLI instance locking.
//
// # Description
//
// Locker prevents multiple setup runs from mutating the same progress
// file and generated configuration simultaneously. Concurrent runs
// against one progress file are undefined behavior; the lock turns
// that constraint into an explicit, early error.
//
// # Thread Safety
//
// Implementations must be safe for use from a single goroutine. The
// lock provides inter-process synchronization, not intra-process.
type Locker interface {
	// Acquire attempts to get an exclusive lock.
	// Returns nil if lock acquired, error otherwise.
	Acquire() error

	// Release releases the lock if held.
	// Safe to call multiple times or if lock was never acquired.
	Release() error

	// IsHeld returns true if this instance currently holds the lock.
	IsHeld() bool

	// HolderPID returns the PID of the process holding the lock.
	// Returns 0 if no process holds the lock or if unable to determine.
	HolderPID() int
}

// LockConfig configures lock behavior.
type LockConfig struct {
	// LockDir is the directory for lock files.
	// Default: system temp directory
	LockDir string

	// LockName is the base name for lock files.
	// Default: "suna"
	LockName string
}

// DefaultLockConfig returns the system temp directory and "suna" as
// the lock name, a writable location on all supported platforms.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		LockDir:  os.TempDir(),
		LockName: "suna",
	}
}

// Lock implements Locker using file-based locking.
//
// # Description
//
// Uses flock(2) advisory locking. This prevents races like:
//
//   - Terminal A: `suna setup` (writing backend/.env)
//   - Terminal B: `suna setup` (resuming the same progress file)
//
// # How It Works
//
//  1. Creates a lock file at {LockDir}/{LockName}.lock
//  2. Attempts exclusive flock on the file
//  3. Writes PID to {LockDir}/{LockName}.pid for debugging
//  4. On release, removes PID file and releases flock
//
// # Thread Safety
//
// Lock is NOT safe for concurrent use from multiple goroutines.
// Use from a single goroutine (typically main).
//
// # Limitations
//
//   - Advisory lock only - other processes can ignore it if they don't check
//   - NFS and some network filesystems don't support flock properly
//   - The OS releases the flock if the process crashes without Release
//
// # Example
//
//	lock := process.NewLock(process.DefaultLockConfig())
//	if err := lock.Acquire(); err != nil {
//	    fmt.Fprintf(os.Stderr, "Error: %v\n", err)
//	    os.Exit(1)
//	}
//	defer lock.Release()
type Lock struct {
	config   LockConfig
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewLock creates a new process lock. Does not acquire it.
func NewLock(config LockConfig) *Lock {
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	if config.LockName == "" {
		config.LockName = "suna"
	}

	return &Lock{
		config:   config,
		lockPath: filepath.Join(config.LockDir, config.LockName+".lock"),
		pidPath:  filepath.Join(config.LockDir, config.LockName+".pid"),
	}
}

// Acquire attempts to get an exclusive lock.
//
// Uses a non-blocking flock. If another process holds the lock,
// returns immediately with an error containing the holder PID when
// available.
func (p *Lock) Acquire() error {
	if p.held {
		return nil // Already held
	}

	f, err := os.OpenFile(p.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", p.lockPath, err)
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		f.Close()

		if err == unix.EWOULDBLOCK {
			holderPID := p.readHolderPID()
			if holderPID > 0 {
				return &ErrLockHeld{HolderPID: holderPID, LockPath: p.lockPath}
			}
			return &ErrLockHeld{LockPath: p.lockPath}
		}

		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	p.lockFile = f
	p.held = true

	// PID file is debugging aid only; failure to write it is non-fatal.
	_ = p.writePID()

	return nil
}

// Release removes the PID file and releases the flock. Safe to call
// multiple times or if the lock was never acquired.
func (p *Lock) Release() error {
	if !p.held || p.lockFile == nil {
		return nil
	}

	os.Remove(p.pidPath)

	err := unix.Flock(int(p.lockFile.Fd()), unix.LOCK_UN)

	// Close also releases the lock if the explicit unlock failed.
	p.lockFile.Close()
	p.lockFile = nil
	p.held = false

	// The lock file itself is left behind for faster subsequent acquires.

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}

// IsHeld returns true if this instance currently holds the lock.
// Checks local state only; does not re-verify the flock.
func (p *Lock) IsHeld() bool {
	return p.held
}

// HolderPID reads the PID file to determine which process holds the
// lock. Returns 0 if no PID file exists or it cannot be parsed. May
// return a stale PID if the holder crashed without cleanup.
func (p *Lock) HolderPID() int {
	return p.readHolderPID()
}

func (p *Lock) writePID() error {
	content := fmt.Sprintf("%d\n", os.Getpid())
	return os.WriteFile(p.pidPath, []byte(content), 0644)
}

func (p *Lock) readHolderPID() int {
	data, err := os.ReadFile(p.pidPath)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}

	return pid
}

// LockPath returns the path to the lock file.
func (p *Lock) LockPath() string {
	return p.lockPath
}

// PIDPath returns the path to the PID file.
func (p *Lock) PIDPath() string {
	return p.pidPath
}

// ErrLockHeld is returned when the lock is held by another process.
type ErrLockHeld struct {
	HolderPID int
	LockPath  string
}

// Error implements the error interface.
func (e *ErrLockHeld) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("another suna instance is running (PID %d)", e.HolderPID)
	}
	return fmt.Sprintf("another suna instance is running (check: lsof %s)", e.LockPath)
}

// Compile-time interface satisfaction check
var _ Locker = (*Lock)(nil)
