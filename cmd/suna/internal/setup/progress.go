// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Progress is the resumable setup record.
//
// # Description
//
// Persisted after every completed step so an interrupted run resumes
// where it stopped. CurrentStep always names the NEXT step to run as a
// one-based ordinal: finishing step N records N+1, so a crash mid-step
// re-runs that step from its beginning. A record with current_step = 5
// resumes at step 5, with steps 1 through 4 skipped.
//
// Collected holds the configuration values gathered so far, keyed by
// category name, so resume never re-prompts for answers already given.
type Progress struct {
	// RunID identifies the setup run that created this record.
	RunID string `json:"run_id"`

	// CurrentStep is the one-based ordinal of the next step to execute.
	CurrentStep int `json:"current_step"`

	// Collected maps category name to the key/value pairs gathered
	// for it.
	Collected map[string]map[string]string `json:"collected"`

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProgress creates an empty record for a fresh run.
func NewProgress() *Progress {
	return &Progress{
		RunID:       uuid.NewString(),
		CurrentStep: 1,
		Collected:   make(map[string]map[string]string),
	}
}

// SetCategory stores the collected values for one category.
func (p *Progress) SetCategory(name string, values map[string]string) {
	if p.Collected == nil {
		p.Collected = make(map[string]map[string]string)
	}
	p.Collected[name] = values
}

// Category returns the collected values for one category, or nil.
func (p *Progress) Category(name string) map[string]string {
	return p.Collected[name]
}

// =============================================================================
// Persistence
// =============================================================================

// ProgressStore persists setup progress between runs.
//
// # Thread Safety
//
// Implementations need not be safe for concurrent use; the setup flow
// is single-threaded and guarded by the process lock.
type ProgressStore interface {
	// Load reads the stored record. A missing or unreadable file
	// returns (nil, nil): setup starts fresh rather than failing on a
	// corrupt record.
	Load() (*Progress, error)

	// Save atomically writes the record.
	Save(p *Progress) error

	// Clear removes the record. Missing file is not an error.
	Clear() error
}

// FileProgressStore stores progress as a JSON file.
//
// Writes use the write-to-temp-then-rename pattern so a crash mid-write
// never leaves a truncated record behind.
type FileProgressStore struct {
	path string
}

// NewFileProgressStore creates a store at the given path.
func NewFileProgressStore(path string) *FileProgressStore {
	return &FileProgressStore{path: path}
}

// Path returns the record location.
func (s *FileProgressStore) Path() string {
	return s.path
}

// Load reads the stored record.
//
// A corrupt or unreadable record is discarded: losing a resume point
// costs the user some re-typing, while failing hard would wedge setup
// until they find and delete the file themselves.
func (s *FileProgressStore) Load() (*Progress, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil
	}
	if p.CurrentStep < 1 {
		return nil, nil
	}
	if p.Collected == nil {
		p.Collected = make(map[string]map[string]string)
	}
	return &p, nil
}

// Save atomically writes the record.
func (s *FileProgressStore) Save(p *Progress) error {
	p.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return &ConfigWriteError{Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ConfigWriteError{Path: s.path, Err: err}
	}

	tmp := s.path + fmt.Sprintf(".tmp.%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return &ConfigWriteError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &ConfigWriteError{Path: s.path, Err: err}
	}
	return nil
}

// Clear removes the record.
func (s *FileProgressStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return &ConfigWriteError{Path: s.path, Err: err}
	}
	return nil
}

// Compile-time interface compliance check.
var _ ProgressStore = (*FileProgressStore)(nil)
