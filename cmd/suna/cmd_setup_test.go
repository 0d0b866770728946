// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kortix-ai/suna-cli/cmd/suna/config"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/compose"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/infra/process"
	"github.com/kortix-ai/suna-cli/cmd/suna/internal/setup"
)

func TestSupabaseProjectRef(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"hosted project", "https://abcdefghij.supabase.co", "abcdefghij"},
		{"hosted with path", "https://abcdefghij.supabase.co/rest/v1", "abcdefghij"},
		{"self hosted", "https://supabase.example.com", ""},
		{"bare domain", "https://supabase.co", ""},
		{"nested subdomain", "https://a.b.supabase.co", ""},
		{"garbage", "not a url", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, supabaseProjectRef(tt.url))
		})
	}
}

func TestBuildSetupStepsOrder(t *testing.T) {
	a := &app{
		cfg:     config.DefaultConfig(),
		proc:    &process.MockManager{},
		checker: &infra.MockSystemChecker{},
		comp:    &compose.MockExecutor{},
	}

	steps := buildSetupSteps(a)

	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}

	assert.Equal(t, []string{
		"Check prerequisites",
		"Verify Docker daemon",
		"Collect Supabase credentials",
		"Collect Daytona credentials",
		"Collect LLM provider keys",
		"Collect search and scraping keys",
		"Collect RapidAPI key",
		"Collect Smithery key",
		"Collect QStash credentials",
		"Configure webhooks",
		"Collect Pipedream credentials",
		"Write configuration files",
		"Set up Supabase database",
		"Install dependencies",
		"Start the Suna stack",
	}, names)
}

func TestFindCategoryCoversEverySetupCategory(t *testing.T) {
	for _, name := range []string{
		setup.CategorySupabase,
		setup.CategoryDaytona,
		setup.CategoryLLM,
		setup.CategorySearch,
		setup.CategoryRapidAPI,
		setup.CategorySmithery,
		setup.CategoryQStash,
		setup.CategoryWebhook,
		setup.CategoryPipedream,
	} {
		cat, ok := findCategory(name)
		assert.True(t, ok, "category %s should exist", name)
		assert.Equal(t, name, cat.Name)
	}
}

func TestAddEncryptionKey(t *testing.T) {
	values := map[string]string{"WEBHOOK_BASE_URL": "http://localhost:8000"}

	err := addEncryptionKey(values)

	assert.NoError(t, err)
	assert.NotEmpty(t, values["MCP_CREDENTIAL_ENCRYPTION_KEY"])
	// Existing entries are untouched.
	assert.Equal(t, "http://localhost:8000", values["WEBHOOK_BASE_URL"])
}
