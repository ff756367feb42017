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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.testgen.llm")

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "gpt-oss"
)

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message   Message `json:"message"`
	CreatedAt string  `json:"created_at"`
	Done      bool    `json:"done"`
}

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	Params       GenerationParams
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

type OllamaClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	model       string
	system      string
	params      GenerationParams
	transcripts *Transcripts
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	logger := loggerOrDefault(cfg.Logger)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		logger.Warn("Ollama model not set, defaulting", "model", defaultOllamaModel)
		cfg.Model = defaultOllamaModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	logger.Info("Initializing Ollama client", "base_url", baseURL, "model", cfg.Model)
	return &OllamaClient{
		httpClient:  cfg.HTTPClient,
		logger:      logger,
		baseURL:     baseURL,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		params:      cfg.Params,
		transcripts: NewTranscripts(),
	}, nil
}

func (o *OllamaClient) Name() string { return "ollama/" + o.model }

// Send implements the Backend interface
func (o *OllamaClient) Send(ctx context.Context, message string, continuation string) (Reply, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Send")
	defer span.End()

	token := o.transcripts.Resolve(continuation)
	history := withTurn(o.transcripts.History(token), message)
	if o.system != "" {
		history = append([]Message{{Role: RoleSystem, Content: o.system}}, history...)
	}
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.num_messages", len(history)),
	)

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: history,
		Stream:   false,
		Options:  o.buildOptions(),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal chat request to Ollama: %w", err)
	}

	chatURL := o.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("failed to create chat request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("failed to send the request to %s: %w", chatURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("failed to read response body from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama chat failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		o.logger.Error("Ollama chat returned an error", "status_code", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if resp.StatusCode == http.StatusNotFound && strings.Contains(string(respBody), "not found") {
			return Reply{}, fmt.Errorf("model '%s' not found, run 'ollama pull %s': %w", o.model, o.model, err)
		}
		return Reply{}, err
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reply{}, fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	text := chatResp.Message.Content
	o.transcripts.Commit(token, message, text)
	o.logger.Debug("Received response from Ollama", "chars", len(text))
	return Reply{ID: token, Text: text}, nil
}

func (o *OllamaClient) buildOptions() map[string]interface{} {
	options := map[string]interface{}{
		"temperature": float32(0.2),
		"top_k":       20,
		"top_p":       float32(0.9),
		"num_predict": 8192,
	}
	if o.params.Temperature != nil {
		options["temperature"] = *o.params.Temperature
	}
	if o.params.TopK != nil {
		options["top_k"] = *o.params.TopK
	}
	if o.params.TopP != nil {
		options["top_p"] = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		options["num_predict"] = *o.params.MaxTokens
	}
	if len(o.params.Stop) > 0 {
		options["stop"] = o.params.Stop
	}
	return options
}

var _ Backend = (*OllamaClient)(nil)
