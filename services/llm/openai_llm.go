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
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       Secret
	Model        string // e.g. "gpt-4"
	BaseURL      string // empty means the public API
	SystemPrompt string // optional persona sent ahead of every transcript
	Params       GenerationParams
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

type OpenAIClient struct {
	client      *openai.Client
	logger      *slog.Logger
	model       string
	system      string
	params      GenerationParams
	transcripts *Transcripts
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey.IsZero() {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
	}
	logger := loggerOrDefault(cfg.Logger)
	if cfg.Model == "" {
		cfg.Model = openai.GPT4
		logger.Warn("OpenAI model not set, defaulting", "model", cfg.Model)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey.Reveal())
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	logger.Info("Initializing OpenAI client", "model", cfg.Model, "custom_base_url", cfg.BaseURL != "")
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		logger:      logger,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		params:      cfg.Params,
		transcripts: NewTranscripts(),
	}, nil
}

func (o *OpenAIClient) Name() string { return "openai/" + o.model }

// Send implements the Backend interface
func (o *OpenAIClient) Send(ctx context.Context, message string, continuation string) (Reply, error) {
	token := o.transcripts.Resolve(continuation)
	history := withTurn(o.transcripts.History(token), message)

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if o.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.system})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.MaxTokens != nil {
		req.MaxCompletionTokens = *o.params.MaxTokens
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if len(o.params.Stop) > 0 {
		req.Stop = o.params.Stop
	}

	o.logger.Debug("Sending chat completion to OpenAI", "model", o.model, "turns", len(history))
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error("OpenAI API call failed", "error", err)
		return Reply{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	var text string
	if len(resp.Choices) == 0 {
		o.logger.Warn("OpenAI returned no choices", "id", resp.ID)
	} else {
		o.logger.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
		text = resp.Choices[0].Message.Content
	}
	if text == "" {
		// Replaying an empty assistant turn is rejected by the API.
		o.logger.Warn("OpenAI response was empty, exchange not kept in history", "id", resp.ID)
		return Reply{ID: token}, nil
	}
	o.transcripts.Commit(token, message, text)
	return Reply{ID: token, Text: text}, nil
}

var _ Backend = (*OpenAIClient)(nil)
