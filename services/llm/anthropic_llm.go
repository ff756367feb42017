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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIVersion    = "2023-06-01"
	defaultAnthropicURL    = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel  = "claude-3-5-sonnet-20240620"
	defaultAnthropicTokens = 4096
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       Secret
	Model        string
	BaseURL      string // full messages endpoint; empty means the public API
	SystemPrompt string
	Params       GenerationParams
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// --- Client Implementation ---

type AnthropicClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	apiKey      Secret
	model       string
	url         string
	system      string
	params      GenerationParams
	transcripts *Transcripts
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	logger := loggerOrDefault(cfg.Logger)
	if cfg.APIKey.IsZero() {
		logger.Warn("Anthropic API Key is missing.")
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingCredential)
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
		logger.Info("Claude model not set, defaulting to", "model", cfg.Model)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &AnthropicClient{
		httpClient:  cfg.HTTPClient,
		logger:      logger,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		url:         cfg.BaseURL,
		system:      cfg.SystemPrompt,
		params:      cfg.Params,
		transcripts: NewTranscripts(),
	}, nil
}

func (a *AnthropicClient) Name() string { return "anthropic/" + a.model }

// Send implements the Backend interface
func (a *AnthropicClient) Send(ctx context.Context, message string, continuation string) (Reply, error) {
	token := a.transcripts.Resolve(continuation)
	history := withTurn(a.transcripts.History(token), message)

	apiMessages := make([]anthropicMessage, 0, len(history))
	for _, msg := range history {
		apiMessages = append(apiMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	// Handle System Prompt with Caching
	var systemBlocks []systemBlock
	if a.system != "" {
		block := systemBlock{Type: "text", Text: a.system}
		if len(a.system) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	reqPayload := anthropicRequest{
		Model:       a.model,
		Messages:    apiMessages,
		System:      systemBlocks,
		MaxTokens:   defaultAnthropicTokens,
		Temperature: a.params.Temperature,
		TopP:        a.params.TopP,
		TopK:        a.params.TopK,
		StopSeqs:    a.params.Stop,
	}
	if a.params.MaxTokens != nil && *a.params.MaxTokens > 0 {
		reqPayload.MaxTokens = *a.params.MaxTokens
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey.Reveal())
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	a.logger.Debug("Sending REST request to Anthropic", "model", a.model, "turns", len(apiMessages))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to read response body: %w", err)
	}
	a.logger.Debug("Raw Anthropic Response", "status", resp.StatusCode, "body_length", len(bodyBytes))

	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return Reply{}, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return Reply{}, fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var finalText strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			finalText.WriteString(block.Text)
		}
	}
	text := finalText.String()
	if text == "" {
		// Empty assistant turns are rejected by the API, so the exchange is
		// left out of the transcript.
		a.logger.Warn("Anthropic response contained no text block", "blocks", len(apiResp.Content))
		return Reply{ID: token}, nil
	}
	a.transcripts.Commit(token, message, text)
	return Reply{ID: token, Text: text}, nil
}

var _ Backend = (*AnthropicClient)(nil)
