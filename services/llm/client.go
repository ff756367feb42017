// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm contains the conversational AI backends used by testgen.
//
// Every backend satisfies Backend: it takes one user message plus an opaque
// continuation token and returns the model's text and the token to use on the
// next exchange. The hosted APIs are stateless, so each client keeps its own
// transcript keyed by that token (see Transcripts).
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnknownModel is returned when a model selector is not registered.
	ErrUnknownModel = errors.New("unknown model selector")

	// ErrMissingCredential is returned when a backend cannot find its API key.
	ErrMissingCredential = errors.New("missing credential")
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature" yaml:"temperature,omitempty"`
	TopK        *int     `json:"top_k" yaml:"top_k,omitempty"`
	TopP        *float32 `json:"top_p" yaml:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens" yaml:"max_tokens,omitempty"`
	Stop        []string `json:"stop" yaml:"stop,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Reply is the result of a single exchange.
//
// ID is the continuation token. Passing it back on the next Send keeps the
// model's view of the conversation intact.
type Reply struct {
	ID   string
	Text string
}

// Backend defines the conversational capability every model client provides.
//
// An empty continuation starts a new conversation. A continuation the client
// has never seen also starts a new conversation, recorded under that token.
// Errors are returned as-is; retries are the caller's decision.
type Backend interface {
	Send(ctx context.Context, message string, continuation string) (Reply, error)

	// Name identifies the backend and model for logs, e.g. "openai/gpt-4".
	Name() string
}
