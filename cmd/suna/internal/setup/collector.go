// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// =============================================================================
// Field Specifications
// =============================================================================

// FieldKind selects the validation rule for a prompted field.
type FieldKind int

const (
	// FieldPlain accepts any non-empty trimmed value.
	FieldPlain FieldKind = iota

	// FieldURL requires an absolute http or https URL with a host.
	FieldURL

	// FieldSecret requires a trimmed non-empty value, optionally with
	// a known prefix and minimum length. Display is masked.
	FieldSecret
)

// FieldSpec describes one prompted value.
type FieldSpec struct {
	// Key is the environment variable name the value maps to.
	Key string

	// Prompt is the human-readable question.
	Prompt string

	// Kind selects the validation rule.
	Kind FieldKind

	// Optional fields accept empty input and store "".
	Optional bool

	// Default is used when the user submits empty input.
	Default string

	// SecretPrefix, when set, must prefix the value (e.g. "sk-ant-").
	SecretPrefix string

	// SecretMinLen, when positive, is the minimum value length.
	SecretMinLen int
}

// CategorySpec groups the fields prompted together for one provider.
type CategorySpec struct {
	Name        string
	Title       string
	Description string

	// Optional categories offer a skip path before any field prompt.
	Optional bool

	Fields []FieldSpec
}

// DefaultCategories returns the prompted categories in setup order.
//
// Secret format rules follow the providers' published key shapes:
// Anthropic keys start with "sk-ant-", OpenAI keys with "sk-".
func DefaultCategories() []CategorySpec {
	return []CategorySpec{
		{
			Name:        CategorySupabase,
			Title:       "Supabase",
			Description: "Project credentials from the Supabase dashboard (Settings > API)",
			Fields: []FieldSpec{
				{Key: "SUPABASE_URL", Prompt: "Supabase project URL", Kind: FieldURL},
				{Key: "SUPABASE_ANON_KEY", Prompt: "Supabase anon key", Kind: FieldSecret, SecretMinLen: 20},
				{Key: "SUPABASE_SERVICE_ROLE_KEY", Prompt: "Supabase service role key", Kind: FieldSecret, SecretMinLen: 20},
			},
		},
		{
			Name:        CategoryDaytona,
			Title:       "Daytona",
			Description: "Sandbox provider for agent execution (app.daytona.io)",
			Fields: []FieldSpec{
				{Key: "DAYTONA_API_KEY", Prompt: "Daytona API key", Kind: FieldSecret, SecretMinLen: 20},
				{Key: "DAYTONA_SERVER_URL", Prompt: "Daytona server URL", Kind: FieldURL, Default: "https://app.daytona.io/api"},
				{Key: "DAYTONA_TARGET", Prompt: "Daytona target region", Kind: FieldPlain, Default: "us"},
			},
		},
		{
			Name:        CategoryLLM,
			Title:       "LLM providers",
			Description: "At least one model provider key is required",
			Fields: []FieldSpec{
				{Key: "ANTHROPIC_API_KEY", Prompt: "Anthropic API key", Kind: FieldSecret, SecretPrefix: "sk-ant-", SecretMinLen: 20},
				{Key: "OPENAI_API_KEY", Prompt: "OpenAI API key (optional)", Kind: FieldSecret, SecretPrefix: "sk-", SecretMinLen: 20, Optional: true},
				{Key: "OPENROUTER_API_KEY", Prompt: "OpenRouter API key (optional)", Kind: FieldSecret, SecretMinLen: 20, Optional: true},
				{Key: "MODEL_TO_USE", Prompt: "Default model", Kind: FieldPlain, Default: "anthropic/claude-sonnet-4"},
			},
		},
		{
			Name:        CategorySearch,
			Title:       "Search and scraping",
			Description: "Tavily for web search, Firecrawl for page scraping",
			Fields: []FieldSpec{
				{Key: "TAVILY_API_KEY", Prompt: "Tavily API key", Kind: FieldSecret, SecretMinLen: 20},
				{Key: "FIRECRAWL_API_KEY", Prompt: "Firecrawl API key", Kind: FieldSecret, SecretMinLen: 20},
				{Key: "FIRECRAWL_URL", Prompt: "Firecrawl URL", Kind: FieldURL, Default: "https://api.firecrawl.dev"},
			},
		},
		{
			Name:        CategoryRapidAPI,
			Title:       "RapidAPI",
			Description: "Enables extra data tools (LinkedIn scraping and similar)",
			Optional:    true,
			Fields: []FieldSpec{
				{Key: "RAPID_API_KEY", Prompt: "RapidAPI key", Kind: FieldSecret, SecretMinLen: 20},
			},
		},
		{
			Name:        CategorySmithery,
			Title:       "Smithery",
			Description: "Optional registry for custom agent integrations (smithery.ai)",
			Optional:    true,
			Fields: []FieldSpec{
				{Key: "SMITHERY_API_KEY", Prompt: "Smithery API key", Kind: FieldSecret, SecretMinLen: 10},
			},
		},
		{
			Name:        CategoryQStash,
			Title:       "QStash",
			Description: "Optional message queue for background jobs and webhooks (upstash.com)",
			Optional:    true,
			Fields: []FieldSpec{
				{Key: "QSTASH_URL", Prompt: "QStash URL", Kind: FieldURL, Default: "https://qstash.upstash.io"},
				{Key: "QSTASH_TOKEN", Prompt: "QStash token", Kind: FieldSecret, SecretMinLen: 10},
				{Key: "QSTASH_CURRENT_SIGNING_KEY", Prompt: "QStash current signing key", Kind: FieldSecret, SecretMinLen: 10},
				{Key: "QSTASH_NEXT_SIGNING_KEY", Prompt: "QStash next signing key", Kind: FieldSecret, SecretMinLen: 10},
			},
		},
		{
			Name:        CategoryWebhook,
			Title:       "Webhooks",
			Description: "Base URL where external services can reach your backend",
			Fields: []FieldSpec{
				{Key: "WEBHOOK_BASE_URL", Prompt: "Webhook base URL", Kind: FieldURL, Default: "http://localhost:8000"},
			},
		},
		{
			Name:        CategoryPipedream,
			Title:       "Pipedream",
			Description: "Optional workflow automation integration",
			Optional:    true,
			Fields: []FieldSpec{
				{Key: "PIPEDREAM_PROJECT_ID", Prompt: "Pipedream project ID", Kind: FieldPlain},
				{Key: "PIPEDREAM_CLIENT_ID", Prompt: "Pipedream client ID", Kind: FieldPlain},
				{Key: "PIPEDREAM_CLIENT_SECRET", Prompt: "Pipedream client secret", Kind: FieldSecret, SecretMinLen: 10},
			},
		},
	}
}

// =============================================================================
// Collector
// =============================================================================

// Collector prompts the user through the fields of a category.
//
// # Description
//
// Line-oriented prompting over an injected reader and writer, so tests
// drive it with a strings.Reader and callers wire os.Stdin/os.Stderr.
// Invalid input re-prompts the same field with the validation message;
// the failure never aborts the category. Secret values are echoed back
// masked, never in full.
type Collector struct {
	in  *bufio.Reader
	out io.Writer
}

// NewCollector creates a collector over the given streams.
func NewCollector(in io.Reader, out io.Writer) *Collector {
	return &Collector{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Collect prompts for every field in the category.
//
// # Outputs
//
//   - map[string]string: Key to value for every field, in spec order.
//     Optional fields the user left empty map to "".
//   - error: ErrCategorySkipped when the user declines an optional
//     category, or an I/O error on a closed input stream.
func (c *Collector) Collect(cat CategorySpec) (map[string]string, error) {
	fmt.Fprintf(c.out, "\n%s\n", cat.Title)
	if cat.Description != "" {
		fmt.Fprintf(c.out, "  %s\n", cat.Description)
	}

	if cat.Optional {
		skip, err := c.askSkip(cat.Title)
		if err != nil {
			return nil, err
		}
		if skip {
			return nil, ErrCategorySkipped
		}
	}

	values := make(map[string]string, len(cat.Fields))
	for _, field := range cat.Fields {
		v, err := c.collectField(field)
		if err != nil {
			return nil, err
		}
		values[field.Key] = v
	}
	return values, nil
}

// askSkip offers the skip path for an optional category.
func (c *Collector) askSkip(title string) (bool, error) {
	fmt.Fprintf(c.out, "Configure %s? [y/N]: ", title)
	line, err := c.readLine()
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer != "y" && answer != "yes", nil
}

// collectField prompts until the value validates.
func (c *Collector) collectField(field FieldSpec) (string, error) {
	for {
		c.printPrompt(field)

		line, err := c.readLine()
		if err != nil {
			return "", err
		}
		value := strings.TrimSpace(line)

		if value == "" {
			if field.Default != "" {
				value = field.Default
			} else if field.Optional {
				return "", nil
			}
		}

		if verr := validateField(field, value); verr != nil {
			fmt.Fprintf(c.out, "  %s\n", verr.Error())
			continue
		}

		if field.Kind == FieldSecret && value != "" {
			fmt.Fprintf(c.out, "  using %s\n", MaskSecret(value))
		}
		return value, nil
	}
}

func (c *Collector) printPrompt(field FieldSpec) {
	if field.Default != "" {
		fmt.Fprintf(c.out, "%s [%s]: ", field.Prompt, field.Default)
		return
	}
	fmt.Fprintf(c.out, "%s: ", field.Prompt)
}

func (c *Collector) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("input closed: %w", err)
	}
	return line, nil
}

// =============================================================================
// Validation
// =============================================================================

// validateField applies the kind-specific rule. Returns nil for valid
// values, including empty optional ones.
func validateField(field FieldSpec, value string) *ValidationError {
	if value == "" {
		if field.Optional {
			return nil
		}
		return &ValidationError{Field: field.Key, Reason: "a value is required"}
	}

	switch field.Kind {
	case FieldURL:
		return validateURL(field.Key, value)
	case FieldSecret:
		return validateSecret(field, value)
	default:
		return nil
	}
}

// validateURL requires an absolute http/https URL with a host.
func validateURL(key, value string) *ValidationError {
	u, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: key, Reason: "not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: key, Reason: "URL must start with http:// or https://"}
	}
	if u.Host == "" {
		return &ValidationError{Field: key, Reason: "URL must include a host"}
	}
	return nil
}

func validateSecret(field FieldSpec, value string) *ValidationError {
	if field.SecretPrefix != "" && !strings.HasPrefix(value, field.SecretPrefix) {
		return &ValidationError{
			Field:  field.Key,
			Reason: fmt.Sprintf("expected a key starting with %q", field.SecretPrefix),
		}
	}
	if field.SecretMinLen > 0 && len(value) < field.SecretMinLen {
		return &ValidationError{
			Field:  field.Key,
			Reason: fmt.Sprintf("too short, expected at least %d characters", field.SecretMinLen),
		}
	}
	return nil
}

// MaskSecret renders a secret for display, keeping only a short prefix
// and suffix. Display-only: the stored value is never modified.
func MaskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
