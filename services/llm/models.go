// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Provider names a family of backends.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// ModelSpec maps a user-facing model selector to a backend and model id.
type ModelSpec struct {
	Selector    string
	Provider    Provider
	ModelID     string
	Description string
}

// DefaultModel is the selector used when none is configured.
const DefaultModel = "gpt4"

var registry = map[string]ModelSpec{
	"gpt4":   {Selector: "gpt4", Provider: ProviderOpenAI, ModelID: "gpt-4", Description: "OpenAI GPT-4"},
	"gpt4o":  {Selector: "gpt4o", Provider: ProviderOpenAI, ModelID: "gpt-4o", Description: "OpenAI GPT-4o"},
	"gpt3":   {Selector: "gpt3", Provider: ProviderOpenAI, ModelID: "gpt-3.5-turbo-0613", Description: "OpenAI GPT-3.5 Turbo"},
	"claude": {Selector: "claude", Provider: ProviderAnthropic, ModelID: defaultAnthropicModel, Description: "Anthropic Claude 3.5 Sonnet"},
	"ollama": {Selector: "ollama", Provider: ProviderOllama, ModelID: defaultOllamaModel, Description: "Local model served by Ollama"},
}

// LookupModel resolves a selector such as "gpt4" or "claude".
//
// Matching is case-insensitive. Unknown selectors wrap ErrUnknownModel.
func LookupModel(selector string) (ModelSpec, error) {
	key := strings.ToLower(strings.TrimSpace(selector))
	if key == "" {
		key = DefaultModel
	}
	spec, ok := registry[key]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownModel, selector, strings.Join(Selectors(), ", "))
	}
	return spec, nil
}

// Selectors returns every registered selector, sorted.
func Selectors() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Models returns every registered spec ordered by selector.
func Models() []ModelSpec {
	out := make([]ModelSpec, 0, len(registry))
	for _, s := range Selectors() {
		out = append(out, registry[s])
	}
	return out
}

// BackendOptions carries everything NewBackend needs besides the spec.
type BackendOptions struct {
	// ModelID overrides spec.ModelID when set.
	ModelID string

	// BaseURL overrides the provider endpoint (OpenAI base URL, Anthropic
	// messages URL, Ollama server URL).
	BaseURL string

	SystemPrompt string
	Params       GenerationParams
	HTTPClient   *http.Client
	Secrets      SecretSource

	// Logger is handed to the client and, when Secrets has none, to the
	// secret lookup.
	Logger *slog.Logger
}

// NewBackend builds the client for spec.
//
// # Description
//
// Credentials come from opts.Secrets: OPENAI_API_KEY and ANTHROPIC_API_KEY
// (or their /run/secrets files). Ollama needs no key; its server URL comes
// from OLLAMA_BASE_URL when opts.BaseURL is empty. Model overrides are read
// from OPENAI_MODEL, CLAUDE_MODEL and OLLAMA_MODEL the same way.
//
// # Outputs
//
//   - Backend: ready to Send
//   - error: ErrMissingCredential or ErrUnknownModel wrapped with context
func NewBackend(spec ModelSpec, opts BackendOptions) (Backend, error) {
	if opts.Secrets.Logger == nil {
		opts.Secrets.Logger = opts.Logger
	}
	switch spec.Provider {
	case ProviderOpenAI:
		key, err := opts.Secrets.Lookup("OPENAI_API_KEY", "openai_api_key")
		if err != nil {
			return nil, err
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       key,
			Model:        firstNonEmpty(opts.ModelID, opts.Secrets.Env("OPENAI_MODEL", ""), spec.ModelID),
			BaseURL:      opts.BaseURL,
			SystemPrompt: opts.SystemPrompt,
			Params:       opts.Params,
			HTTPClient:   opts.HTTPClient,
			Logger:       opts.Logger,
		})
	case ProviderAnthropic:
		key, err := opts.Secrets.Lookup("ANTHROPIC_API_KEY", "anthropic_api_key")
		if err != nil {
			return nil, err
		}
		return NewAnthropicClient(AnthropicConfig{
			APIKey:       key,
			Model:        firstNonEmpty(opts.ModelID, opts.Secrets.Env("CLAUDE_MODEL", ""), spec.ModelID),
			BaseURL:      opts.BaseURL,
			SystemPrompt: opts.SystemPrompt,
			Params:       opts.Params,
			HTTPClient:   opts.HTTPClient,
			Logger:       opts.Logger,
		})
	case ProviderOllama:
		return NewOllamaClient(OllamaConfig{
			BaseURL:      firstNonEmpty(opts.BaseURL, opts.Secrets.Env("OLLAMA_BASE_URL", "")),
			Model:        firstNonEmpty(opts.ModelID, opts.Secrets.Env("OLLAMA_MODEL", ""), spec.ModelID),
			SystemPrompt: opts.SystemPrompt,
			Params:       opts.Params,
			HTTPClient:   opts.HTTPClient,
			Logger:       opts.Logger,
		})
	default:
		return nil, fmt.Errorf("%w: provider %q", ErrUnknownModel, spec.Provider)
	}
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
