// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// =============================================================================
// Category Records
// =============================================================================

// EnvEntry is one rendered environment variable.
type EnvEntry struct {
	Key   string
	Value string
}

// CategoryRecord is a typed bundle of configuration for one provider.
//
// Each record projects to an ordered Entries list; the order is fixed
// so rendered env files are byte-deterministic across runs.
type CategoryRecord interface {
	CategoryName() string
	Entries() []EnvEntry
}

// Category name constants double as keys into the collected bag.
const (
	CategorySupabase  = "supabase"
	CategoryDaytona   = "daytona"
	CategoryLLM       = "llm"
	CategorySearch    = "search"
	CategoryRapidAPI  = "rapidapi"
	CategorySmithery  = "smithery"
	CategoryQStash    = "qstash"
	CategoryWebhook   = "webhook"
	CategoryPipedream = "pipedream"
)

// SupabaseCategory holds the Supabase project credentials.
type SupabaseCategory struct {
	ProjectURL     string
	AnonKey        string
	ServiceRoleKey string
}

func (SupabaseCategory) CategoryName() string { return CategorySupabase }

func (c SupabaseCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"SUPABASE_URL", c.ProjectURL},
		{"SUPABASE_ANON_KEY", c.AnonKey},
		{"SUPABASE_SERVICE_ROLE_KEY", c.ServiceRoleKey},
	}
}

// DaytonaCategory holds the Daytona sandbox provider credentials.
type DaytonaCategory struct {
	APIKey    string
	ServerURL string
	Target    string
}

func (DaytonaCategory) CategoryName() string { return CategoryDaytona }

func (c DaytonaCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"DAYTONA_API_KEY", c.APIKey},
		{"DAYTONA_SERVER_URL", c.ServerURL},
		{"DAYTONA_TARGET", c.Target},
	}
}

// LLMCategory holds model provider keys and the default model choice.
type LLMCategory struct {
	AnthropicKey  string
	OpenAIKey     string
	OpenRouterKey string
	DefaultModel  string
}

func (LLMCategory) CategoryName() string { return CategoryLLM }

func (c LLMCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"ANTHROPIC_API_KEY", c.AnthropicKey},
		{"OPENAI_API_KEY", c.OpenAIKey},
		{"OPENROUTER_API_KEY", c.OpenRouterKey},
		{"MODEL_TO_USE", c.DefaultModel},
	}
}

// SearchCategory holds web search and scraping provider credentials.
type SearchCategory struct {
	TavilyKey    string
	FirecrawlKey string
	FirecrawlURL string
}

func (SearchCategory) CategoryName() string { return CategorySearch }

func (c SearchCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"TAVILY_API_KEY", c.TavilyKey},
		{"FIRECRAWL_API_KEY", c.FirecrawlKey},
		{"FIRECRAWL_URL", c.FirecrawlURL},
	}
}

// RapidAPICategory holds the optional RapidAPI key.
type RapidAPICategory struct {
	Key string
}

func (RapidAPICategory) CategoryName() string { return CategoryRapidAPI }

func (c RapidAPICategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"RAPID_API_KEY", c.Key},
	}
}

// SmitheryCategory holds the optional Smithery key for custom agent
// integrations.
type SmitheryCategory struct {
	APIKey string
}

func (SmitheryCategory) CategoryName() string { return CategorySmithery }

func (c SmitheryCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"SMITHERY_API_KEY", c.APIKey},
	}
}

// QStashCategory holds the QStash message queue credentials used for
// background job scheduling and webhooks.
type QStashCategory struct {
	URL               string
	Token             string
	CurrentSigningKey string
	NextSigningKey    string
}

func (QStashCategory) CategoryName() string { return CategoryQStash }

func (c QStashCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"QSTASH_URL", c.URL},
		{"QSTASH_TOKEN", c.Token},
		{"QSTASH_CURRENT_SIGNING_KEY", c.CurrentSigningKey},
		{"QSTASH_NEXT_SIGNING_KEY", c.NextSigningKey},
	}
}

// WebhookCategory holds the webhook base URL and the generated MCP
// credential encryption key.
type WebhookCategory struct {
	BaseURL          string
	MCPEncryptionKey string
}

func (WebhookCategory) CategoryName() string { return CategoryWebhook }

func (c WebhookCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"WEBHOOK_BASE_URL", c.BaseURL},
		{"MCP_CREDENTIAL_ENCRYPTION_KEY", c.MCPEncryptionKey},
	}
}

// PipedreamCategory holds the optional Pipedream integration settings.
type PipedreamCategory struct {
	ProjectID    string
	ClientID     string
	ClientSecret string
}

func (PipedreamCategory) CategoryName() string { return CategoryPipedream }

func (c PipedreamCategory) Entries() []EnvEntry {
	return []EnvEntry{
		{"PIPEDREAM_PROJECT_ID", c.ProjectID},
		{"PIPEDREAM_CLIENT_ID", c.ClientID},
		{"PIPEDREAM_CLIENT_SECRET", c.ClientSecret},
	}
}

// =============================================================================
// Bag Conversion
// =============================================================================

// get reads one key from a category bag, tolerating nil.
func get(values map[string]string, key string) string {
	if values == nil {
		return ""
	}
	return values[key]
}

// SupabaseFromBag builds the typed record from collected values.
func SupabaseFromBag(values map[string]string) SupabaseCategory {
	return SupabaseCategory{
		ProjectURL:     get(values, "SUPABASE_URL"),
		AnonKey:        get(values, "SUPABASE_ANON_KEY"),
		ServiceRoleKey: get(values, "SUPABASE_SERVICE_ROLE_KEY"),
	}
}

// DaytonaFromBag builds the typed record from collected values.
func DaytonaFromBag(values map[string]string) DaytonaCategory {
	return DaytonaCategory{
		APIKey:    get(values, "DAYTONA_API_KEY"),
		ServerURL: get(values, "DAYTONA_SERVER_URL"),
		Target:    get(values, "DAYTONA_TARGET"),
	}
}

// LLMFromBag builds the typed record from collected values.
func LLMFromBag(values map[string]string) LLMCategory {
	return LLMCategory{
		AnthropicKey:  get(values, "ANTHROPIC_API_KEY"),
		OpenAIKey:     get(values, "OPENAI_API_KEY"),
		OpenRouterKey: get(values, "OPENROUTER_API_KEY"),
		DefaultModel:  get(values, "MODEL_TO_USE"),
	}
}

// SearchFromBag builds the typed record from collected values.
func SearchFromBag(values map[string]string) SearchCategory {
	return SearchCategory{
		TavilyKey:    get(values, "TAVILY_API_KEY"),
		FirecrawlKey: get(values, "FIRECRAWL_API_KEY"),
		FirecrawlURL: get(values, "FIRECRAWL_URL"),
	}
}

// RapidAPIFromBag builds the typed record from collected values.
func RapidAPIFromBag(values map[string]string) RapidAPICategory {
	return RapidAPICategory{Key: get(values, "RAPID_API_KEY")}
}

// SmitheryFromBag builds the typed record from collected values.
func SmitheryFromBag(values map[string]string) SmitheryCategory {
	return SmitheryCategory{APIKey: get(values, "SMITHERY_API_KEY")}
}

// QStashFromBag builds the typed record from collected values.
func QStashFromBag(values map[string]string) QStashCategory {
	return QStashCategory{
		URL:               get(values, "QSTASH_URL"),
		Token:             get(values, "QSTASH_TOKEN"),
		CurrentSigningKey: get(values, "QSTASH_CURRENT_SIGNING_KEY"),
		NextSigningKey:    get(values, "QSTASH_NEXT_SIGNING_KEY"),
	}
}

// WebhookFromBag builds the typed record from collected values.
func WebhookFromBag(values map[string]string) WebhookCategory {
	return WebhookCategory{
		BaseURL:          get(values, "WEBHOOK_BASE_URL"),
		MCPEncryptionKey: get(values, "MCP_CREDENTIAL_ENCRYPTION_KEY"),
	}
}

// PipedreamFromBag builds the typed record from collected values.
func PipedreamFromBag(values map[string]string) PipedreamCategory {
	return PipedreamCategory{
		ProjectID:    get(values, "PIPEDREAM_PROJECT_ID"),
		ClientID:     get(values, "PIPEDREAM_CLIENT_ID"),
		ClientSecret: get(values, "PIPEDREAM_CLIENT_SECRET"),
	}
}

// ToBag projects any record back to its KV form for the Progress file.
func ToBag(rec CategoryRecord) map[string]string {
	out := make(map[string]string)
	for _, e := range rec.Entries() {
		out[e.Key] = e.Value
	}
	return out
}

// GenerateEncryptionKey produces the MCP credential encryption key:
// 32 random bytes, base64-encoded, matching what the backend expects
// for AES-256.
func GenerateEncryptionKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Compile-time interface compliance checks.
var (
	_ CategoryRecord = SupabaseCategory{}
	_ CategoryRecord = DaytonaCategory{}
	_ CategoryRecord = LLMCategory{}
	_ CategoryRecord = SearchCategory{}
	_ CategoryRecord = RapidAPICategory{}
	_ CategoryRecord = SmitheryCategory{}
	_ CategoryRecord = QStashCategory{}
	_ CategoryRecord = WebhookCategory{}
	_ CategoryRecord = PipedreamCategory{}
)
