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

func sampleBag() map[string]map[string]string {
	return map[string]map[string]string{
		CategorySupabase: {
			"SUPABASE_URL":              "https://example.supabase.co",
			"SUPABASE_ANON_KEY":         "anon-key-value-12345678",
			"SUPABASE_SERVICE_ROLE_KEY": "service-role-12345678",
		},
		CategoryLLM: {
			"ANTHROPIC_API_KEY": "sk-ant-abcdefghijklmnop",
			"MODEL_TO_USE":      "anthropic/claude-sonnet-4",
		},
		CategoryQStash: {
			"QSTASH_URL":   "https://qstash.upstash.io",
			"QSTASH_TOKEN": "qstash-token-12345678",
		},
		CategoryWebhook: {
			"WEBHOOK_BASE_URL":              "http://localhost:8000",
			"MCP_CREDENTIAL_ENCRYPTION_KEY": "generated-key",
		},
	}
}

// TestRenderDeterministic verifies rendering the same document twice
// produces byte-identical output.
func TestRenderDeterministic(t *testing.T) {
	bag := sampleBag()

	first := BackendEnv(bag).Render()
	second := BackendEnv(bag).Render()
	if first != second {
		t.Error("two renders of the same bag differ")
	}

	if FrontendEnv(bag).Render() != FrontendEnv(bag).Render() {
		t.Error("frontend renders differ")
	}
}

func TestRenderEmptyValues(t *testing.T) {
	out := BackendEnv(sampleBag()).Render()

	// Categories the user skipped still render their keys with empty
	// values so the backend sees them defined.
	if !strings.Contains(out, "RAPID_API_KEY=\n") {
		t.Error("expected RAPID_API_KEY= for skipped category")
	}
	if !strings.Contains(out, "OPENAI_API_KEY=\n") {
		t.Error("expected OPENAI_API_KEY= for absent value")
	}
	if !strings.Contains(out, "SMITHERY_API_KEY=\n") {
		t.Error("expected SMITHERY_API_KEY= for skipped category")
	}
}

func TestRenderBackendContent(t *testing.T) {
	out := BackendEnv(sampleBag()).Render()

	wants := []string{
		"# Generated by suna setup",
		"ENV_MODE=local",
		"REDIS_HOST=redis",
		"REDIS_PORT=6379",
		"RABBITMQ_HOST=rabbitmq",
		"RABBITMQ_PORT=5672",
		"SUPABASE_URL=https://example.supabase.co",
		"ANTHROPIC_API_KEY=sk-ant-abcdefghijklmnop",
		"MODEL_TO_USE=anthropic/claude-sonnet-4",
		"QSTASH_URL=https://qstash.upstash.io",
		"QSTASH_TOKEN=qstash-token-12345678",
		"WEBHOOK_BASE_URL=http://localhost:8000",
		"MCP_CREDENTIAL_ENCRYPTION_KEY=generated-key",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("backend env missing %q", want)
		}
	}

	if !strings.HasSuffix(out, "\n") {
		t.Error("missing trailing newline")
	}
}

func TestRenderSectionOrderFixed(t *testing.T) {
	out := BackendEnv(sampleBag()).Render()

	// Infrastructure before Supabase before Daytona.
	iRedis := strings.Index(out, "REDIS_HOST=")
	iSupabase := strings.Index(out, "SUPABASE_URL=")
	iDaytona := strings.Index(out, "DAYTONA_API_KEY=")
	if !(iRedis < iSupabase && iSupabase < iDaytona) {
		t.Errorf("section order wrong: redis@%d supabase@%d daytona@%d", iRedis, iSupabase, iDaytona)
	}
}

func TestRenderFrontendContent(t *testing.T) {
	out := FrontendEnv(sampleBag()).Render()

	wants := []string{
		"NEXT_PUBLIC_SUPABASE_URL=https://example.supabase.co",
		"NEXT_PUBLIC_SUPABASE_ANON_KEY=anon-key-value-12345678",
		"NEXT_PUBLIC_BACKEND_URL=http://localhost:8000/api",
		"NEXT_PUBLIC_URL=http://localhost:3000",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("frontend env missing %q", want)
		}
	}
}

func TestWriteEnvFiles(t *testing.T) {
	repoDir := t.TempDir()

	err := WriteEnvFiles(repoDir, "backend/.env", "frontend/.env.local", sampleBag())
	if err != nil {
		t.Fatalf("WriteEnvFiles: %v", err)
	}

	backend, err := os.ReadFile(filepath.Join(repoDir, "backend", ".env"))
	if err != nil {
		t.Fatalf("reading backend env: %v", err)
	}
	if !strings.Contains(string(backend), "ENV_MODE=local") {
		t.Error("backend env content wrong")
	}

	info, err := os.Stat(filepath.Join(repoDir, "backend", ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("backend env mode = %o, want 0600", info.Mode().Perm())
	}

	if _, err := os.Stat(filepath.Join(repoDir, "frontend", ".env.local")); err != nil {
		t.Errorf("frontend env not written: %v", err)
	}
}

func TestWriteFileAtomicNoTempResidue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.env")

	if err := WriteFileAtomic(path, "A=1\n", 0600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
