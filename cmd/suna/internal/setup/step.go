// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import "context"

// State is the collected configuration bag, category name to KV pairs.
//
// State is passed into each step and a delta is returned, never
// mutated in place, so a step's effect on the bag is exactly its
// return value.
type State map[string]map[string]string

// Clone returns a deep copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for cat, kv := range s {
		inner := make(map[string]string, len(kv))
		for k, v := range kv {
			inner[k] = v
		}
		out[cat] = inner
	}
	return out
}

// Merge returns a new State with delta's categories layered over s.
// Categories present in delta replace the same category in s wholesale.
func (s State) Merge(delta State) State {
	out := s.Clone()
	for cat, kv := range delta {
		inner := make(map[string]string, len(kv))
		for k, v := range kv {
			inner[k] = v
		}
		out[cat] = inner
	}
	return out
}

// Step is one unit of setup work.
//
// Steps are plain data: a name for display and progress records, and a
// run function. The platform's step list is assembled at wiring time
// and injected into the orchestrator, so alternative platforms swap
// the list rather than subclassing anything.
type Step struct {
	// Name identifies the step in output and error messages.
	Name string

	// Run performs the work. It receives the accumulated state and
	// returns the categories it collected or changed (possibly nil).
	// Returning an error halts the run without advancing progress.
	Run func(ctx context.Context, st State) (State, error)
}
