// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package testgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

// =============================================================================
// Test Doubles
// =============================================================================

type scriptedReply struct {
	text string
	err  error
}

type backendCall struct {
	message      string
	continuation string
}

// scriptedBackend returns replies in order and records every call. Once the
// script is exhausted it returns empty text.
type scriptedBackend struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   []backendCall
}

func newScriptedBackend(replies ...scriptedReply) *scriptedBackend {
	return &scriptedBackend{replies: replies}
}

func (b *scriptedBackend) Send(_ context.Context, message, continuation string) (llm.Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := len(b.calls)
	b.calls = append(b.calls, backendCall{message: message, continuation: continuation})
	if idx >= len(b.replies) {
		return llm.Reply{ID: "conv-1"}, nil
	}
	r := b.replies[idx]
	if r.err != nil {
		return llm.Reply{}, r.err
	}
	return llm.Reply{ID: "conv-1", Text: r.text}, nil
}

func (b *scriptedBackend) Name() string { return "scripted/test" }

func (b *scriptedBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]backendCall, len(b.calls))
	copy(out, b.calls)
	return out
}

// memoryStore is an in-memory ArtifactStore.
type memoryStore struct {
	mu      sync.Mutex
	files   map[string]string
	writes  []string
	failAll bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string]string)}
}

func (s *memoryStore) Write(_ context.Context, name, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", fmt.Errorf("disk full")
	}
	s.files[name] = content
	s.writes = append(s.writes, name)
	return s.Path(name), nil
}

func (s *memoryStore) Path(name string) string { return DefaultTestPath(name) }

// scriptedExecutor returns exit codes per component in order; the last code
// repeats once the script is exhausted. Unscripted components exit 1.
type scriptedExecutor struct {
	mu    sync.Mutex
	codes map[string][]int
	runs  []string
}

func newScriptedExecutor(codes map[string][]int) *scriptedExecutor {
	return &scriptedExecutor{codes: codes}
}

func (e *scriptedExecutor) Run(_ context.Context, name string) ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.runs {
		if r == name {
			n++
		}
	}
	e.runs = append(e.runs, name)

	seq := e.codes[name]
	code := 1
	switch {
	case n < len(seq):
		code = seq[n]
	case len(seq) > 0:
		code = seq[len(seq)-1]
	}
	if code == 0 {
		return ExecutionResult{ExitCode: 0, Stdout: "  1 passed (1.2s)\n"}
	}
	return ExecutionResult{ExitCode: code, Stdout: fmt.Sprintf("  1 failed\n  %s: Expected: \"Home\" Received: \"Start\"\n", name)}
}

func (e *scriptedExecutor) Runs(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.runs {
		if r == name {
			n++
		}
	}
	return n
}

func fenced(label, title string) string {
	return fmt.Sprintf("$$%s$$\n```javascript\nimport { test, expect } from '@playwright/test';\ntest('%s', async ({ page }) => {});\n```", label, title)
}
