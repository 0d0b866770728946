// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProgressSaveLoadRoundtrip(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), ".setup_progress.json"))

	p := NewProgress()
	p.CurrentStep = 4
	p.SetCategory(CategorySupabase, map[string]string{
		"SUPABASE_URL": "https://example.supabase.co",
	})

	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected record, got nil")
	}
	if loaded.CurrentStep != 4 {
		t.Errorf("CurrentStep = %d, want 4", loaded.CurrentStep)
	}
	if loaded.RunID != p.RunID {
		t.Errorf("RunID = %q, want %q", loaded.RunID, p.RunID)
	}
	if got := loaded.Category(CategorySupabase)["SUPABASE_URL"]; got != "https://example.supabase.co" {
		t.Errorf("collected value = %q", got)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestProgressLoadMissingFile(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), "absent.json"))

	p, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p != nil {
		t.Error("expected nil for missing file")
	}
}

func TestProgressLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".setup_progress.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0600); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProgressStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p != nil {
		t.Error("corrupt record should read as fresh start, got a record")
	}
}

func TestProgressLoadOutOfRangeStep(t *testing.T) {
	// current_step is a one-based ordinal; zero or negative values can
	// only come from a damaged record and read as a fresh start.
	for _, raw := range []string{
		`{"run_id":"x","current_step":0}`,
		`{"run_id":"x","current_step":-2}`,
	} {
		path := filepath.Join(t.TempDir(), ".setup_progress.json")
		if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
			t.Fatal(err)
		}

		p, _ := NewFileProgressStore(path).Load()
		if p != nil {
			t.Errorf("record %s should read as fresh start", raw)
		}
	}
}

func TestProgressLoadIgnoresAbandonedTempFile(t *testing.T) {
	// A crash after writing the temp file but before the rename leaves
	// a stray .tmp. entry next to the record. The prior record must
	// still load intact.
	dir := t.TempDir()
	store := NewFileProgressStore(filepath.Join(dir, ".setup_progress.json"))

	p := NewProgress()
	p.CurrentStep = 6
	p.SetCategory(CategoryDaytona, map[string]string{"DAYTONA_API_KEY": "dtn-key"})
	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate the interrupted write: a half-serialized newer record.
	stray := store.Path() + ".tmp.1724600000000000000"
	if err := os.WriteFile(stray, []byte(`{"run_id":"y","current_`), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected the prior record, got nil")
	}
	if loaded.CurrentStep != 6 {
		t.Errorf("CurrentStep = %d, want 6", loaded.CurrentStep)
	}
	if got := loaded.Category(CategoryDaytona)["DAYTONA_API_KEY"]; got != "dtn-key" {
		t.Errorf("collected value = %q, want dtn-key", got)
	}
}

func TestProgressSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileProgressStore(filepath.Join(dir, ".setup_progress.json"))

	if err := store.Save(NewProgress()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the record file, got %d entries", len(entries))
	}
}

func TestProgressSaveOverwritesPriorRecord(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), ".setup_progress.json"))

	p := NewProgress()
	p.CurrentStep = 1
	if err := store.Save(p); err != nil {
		t.Fatal(err)
	}
	p.CurrentStep = 2
	if err := store.Save(p); err != nil {
		t.Fatal(err)
	}

	loaded, _ := store.Load()
	if loaded == nil || loaded.CurrentStep != 2 {
		t.Errorf("expected current_step 2, got %+v", loaded)
	}
}

func TestProgressClear(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), ".setup_progress.json"))

	if err := store.Save(NewProgress()); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("record still exists after Clear")
	}

	// Clearing again is not an error.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}
