// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutputResultExitCodes(t *testing.T) {
	start := time.Now()

	tests := []struct {
		name     string
		cfg      OutputConfig
		notReady bool
		err      error
		want     int
	}{
		{"quiet success", OutputConfig{Quiet: true}, false, nil, CLIExitSuccess},
		{"quiet not ready", OutputConfig{Quiet: true}, true, nil, CLIExitError},
		{"quiet error", OutputConfig{Quiet: true}, false, errors.New("boom"), CLIExitError},
		{"error wins over ready", OutputConfig{}, false, errors.New("boom"), CLIExitError},
		{"not ready", OutputConfig{}, true, nil, CLIExitError},
		{"success", OutputConfig{}, false, nil, CLIExitSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputResult(tt.cfg, "status", start, nil, tt.notReady, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
