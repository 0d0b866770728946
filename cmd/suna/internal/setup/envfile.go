// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// Document Model
// =============================================================================

// EnvSection is a named group of entries in a rendered env file.
type EnvSection struct {
	Comment string
	Entries []EnvEntry
}

// EnvDocument is a complete env file: a header plus ordered sections.
//
// Rendering is byte-deterministic: the same document always produces
// the same output, so re-running setup never churns files that did not
// change.
type EnvDocument struct {
	Header   string
	Sections []EnvSection
}

// Render produces the file content.
//
// Format: header comment lines, then per section an optional comment
// line followed by KEY=VALUE lines. Empty values render as "KEY=" so
// the backend sees the variable defined. Ends with a trailing newline.
func (d EnvDocument) Render() string {
	var b strings.Builder

	for _, line := range strings.Split(strings.TrimRight(d.Header, "\n"), "\n") {
		b.WriteString("# ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	for _, section := range d.Sections {
		b.WriteString("\n")
		if section.Comment != "" {
			b.WriteString("# ")
			b.WriteString(section.Comment)
			b.WriteString("\n")
		}
		for _, e := range section.Entries {
			b.WriteString(e.Key)
			b.WriteString("=")
			b.WriteString(e.Value)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// =============================================================================
// Document Builders
// =============================================================================

const generatedHeader = "Generated by suna setup. Re-run `suna setup` to regenerate."

// BackendEnv builds the backend/.env document from the collected bag.
//
// Infrastructure entries (Redis, RabbitMQ) are fixed: the compose
// descriptor defines those services, so their addresses are not
// prompted.
func BackendEnv(collected map[string]map[string]string) EnvDocument {
	supabase := SupabaseFromBag(collected[CategorySupabase])
	daytona := DaytonaFromBag(collected[CategoryDaytona])
	llm := LLMFromBag(collected[CategoryLLM])
	search := SearchFromBag(collected[CategorySearch])
	rapid := RapidAPIFromBag(collected[CategoryRapidAPI])
	smithery := SmitheryFromBag(collected[CategorySmithery])
	qstash := QStashFromBag(collected[CategoryQStash])
	webhook := WebhookFromBag(collected[CategoryWebhook])
	pipedream := PipedreamFromBag(collected[CategoryPipedream])

	return EnvDocument{
		Header: generatedHeader,
		Sections: []EnvSection{
			{
				Comment: "Environment",
				Entries: []EnvEntry{
					{"ENV_MODE", "local"},
				},
			},
			{
				Comment: "Infrastructure",
				Entries: []EnvEntry{
					{"REDIS_HOST", "redis"},
					{"REDIS_PORT", "6379"},
					{"RABBITMQ_HOST", "rabbitmq"},
					{"RABBITMQ_PORT", "5672"},
				},
			},
			{Comment: "Supabase", Entries: supabase.Entries()},
			{Comment: "LLM providers", Entries: llm.Entries()},
			{Comment: "Search and scraping", Entries: search.Entries()},
			{Comment: "RapidAPI", Entries: rapid.Entries()},
			{Comment: "Smithery", Entries: smithery.Entries()},
			{Comment: "QStash", Entries: qstash.Entries()},
			{Comment: "Webhooks and MCP", Entries: webhook.Entries()},
			{Comment: "Daytona", Entries: daytona.Entries()},
			{Comment: "Pipedream", Entries: pipedream.Entries()},
			{
				Comment: "Frontend origin",
				Entries: []EnvEntry{
					{"NEXT_PUBLIC_URL", "http://localhost:3000"},
				},
			},
		},
	}
}

// FrontendEnv builds the frontend/.env.local document.
func FrontendEnv(collected map[string]map[string]string) EnvDocument {
	supabase := SupabaseFromBag(collected[CategorySupabase])
	llm := LLMFromBag(collected[CategoryLLM])

	return EnvDocument{
		Header: generatedHeader,
		Sections: []EnvSection{
			{
				Entries: []EnvEntry{
					{"NEXT_PUBLIC_SUPABASE_URL", supabase.ProjectURL},
					{"NEXT_PUBLIC_SUPABASE_ANON_KEY", supabase.AnonKey},
					{"NEXT_PUBLIC_BACKEND_URL", "http://localhost:8000/api"},
					{"NEXT_PUBLIC_URL", "http://localhost:3000"},
					{"OPENAI_API_KEY", llm.OpenAIKey},
				},
			},
		},
	}
}

// =============================================================================
// Atomic Writes
// =============================================================================

// WriteFileAtomic writes content with the temp-then-rename pattern so
// a crash mid-write never leaves a truncated file. Creates parent
// directories as needed.
func WriteFileAtomic(path, content string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &ConfigWriteError{Path: path, Err: err}
	}

	tmp := path + fmt.Sprintf(".tmp.%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, []byte(content), perm); err != nil {
		return &ConfigWriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &ConfigWriteError{Path: path, Err: err}
	}
	return nil
}

// WriteEnvFiles renders and writes both env files.
//
// Env files carry credentials, so they are written 0600.
func WriteEnvFiles(repoDir, backendRel, frontendRel string, collected map[string]map[string]string) error {
	backendPath := filepath.Join(repoDir, backendRel)
	if err := WriteFileAtomic(backendPath, BackendEnv(collected).Render(), 0600); err != nil {
		return err
	}

	frontendPath := filepath.Join(repoDir, frontendRel)
	return WriteFileAtomic(frontendPath, FrontendEnv(collected).Render(), 0600)
}
