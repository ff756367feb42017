// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"sync"

	"github.com/google/uuid"
)

// Transcripts holds the message history of every conversation a client has
// started, keyed by continuation token.
//
// Thread Safety: safe for concurrent use. Histories returned by History are
// copies.
type Transcripts struct {
	mu    sync.Mutex
	convs map[string][]Message
}

// NewTranscripts creates an empty transcript store.
func NewTranscripts() *Transcripts {
	return &Transcripts{convs: make(map[string][]Message)}
}

// Resolve returns the token to use for an exchange.
//
// An empty continuation gets a fresh token. Nothing is recorded until Commit.
func (t *Transcripts) Resolve(continuation string) string {
	if continuation != "" {
		return continuation
	}
	return uuid.NewString()
}

// History returns a copy of the messages recorded under token.
func (t *Transcripts) History(token string) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.convs[token]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Commit appends a completed user/assistant exchange to the transcript.
//
// Failed exchanges are never committed, so a retry after an error sends the
// same history again.
func (t *Transcripts) Commit(token, userText, assistantText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.convs[token] = append(t.convs[token],
		Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText},
	)
}

// Len returns the number of messages recorded under token.
func (t *Transcripts) Len(token string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.convs[token])
}

// withTurn returns history followed by a new user message.
func withTurn(history []Message, text string) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, Message{Role: RoleUser, Content: text})
}
