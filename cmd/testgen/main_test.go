// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aleutian-testgen/pkg/process"
	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeBackend answers from a script; past its end it repeats the last reply.
type fakeBackend struct {
	mu       sync.Mutex
	replies  []string
	failAt   int
	messages []string
}

func (f *fakeBackend) Name() string { return "fake/model" }

func (f *fakeBackend) Send(_ context.Context, message, _ string) (llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	n := len(f.messages)
	if f.failAt > 0 && n == f.failAt {
		return llm.Reply{}, errors.New("upstream 500")
	}
	text := ""
	if len(f.replies) > 0 {
		idx := n - 1
		if idx >= len(f.replies) {
			idx = len(f.replies) - 1
		}
		text = f.replies[idx]
	}
	return llm.Reply{ID: "conv-1", Text: text}, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

const navBarReply = "$$Nav Bar$$\n```javascript\nimport { test, expect } from '@playwright/test';\ntest('nav', async ({ page }) => {});\n```"

type harness struct {
	// newBackend replaces the scripted backend when set.
	newBackend func(llm.ModelSpec, llm.BackendOptions) (llm.Backend, error)

	dir     string
	config  string
	page    *httptest.Server
	backend *fakeBackend
	pm      *process.MockManager
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func newHarness(t *testing.T, exitCode int) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}

	h.page = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><nav>Home</nav></body></html>")
	}))
	t.Cleanup(h.page.Close)

	h.config = filepath.Join(h.dir, "testgen.yaml")
	require.NoError(t, os.WriteFile(h.config, []byte(`
repair:
  settle_delay: 0s
loop:
  start_delay: 0s
fetch:
  delay: 0s
`), 0o600))

	h.backend = &fakeBackend{replies: []string{"ready", navBarReply}}
	h.pm = &process.MockManager{
		RunFunc: func(_ context.Context, _, name string, args ...string) (process.Output, error) {
			if exitCode == 0 {
				return process.Output{Stdout: []byte("1 passed")}, nil
			}
			out := process.Output{ExitCode: exitCode, Stdout: []byte("Expected: \"Home\" Received: \"Start\"")}
			return out, process.NewCommandError(name, exitCode, "", nil)
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	deps := appDeps{
		newBackend: func(llm.ModelSpec, llm.BackendOptions) (llm.Backend, error) {
			return h.backend, nil
		},
		processManager: h.pm,
	}
	if h.newBackend != nil {
		deps.newBackend = h.newBackend
	}
	base := []string{"--config", h.config, "-C", h.dir}
	return run(context.Background(), append(base, args...), &h.stdout, &h.stderr, deps)
}

// =============================================================================
// generate
// =============================================================================

func TestGenerate_PassingComponent(t *testing.T) {
	h := newHarness(t, 0)
	metricsFile := filepath.Join(h.dir, "testgen.prom")

	code := h.run("-e", h.page.URL, "-t", "1", "--metrics-file", metricsFile)

	require.Equal(t, 0, code, "stderr: %s", h.stderr.String())
	assert.Contains(t, h.stdout.String(), "✔ tests/nav_bar.spec.js")
	assert.Contains(t, h.stdout.String(), "SUMMARY: passing=1 failing=0 total=1")

	written, err := os.ReadFile(filepath.Join(h.dir, "tests", "nav_bar.spec.js"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "test('nav'")

	calls := h.pm.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, h.dir, calls[0].Dir)
	assert.Equal(t, "npx", calls[0].Name)
	assert.Equal(t, []string{"playwright", "test", "tests/nav_bar.spec.js", "--reporter=dot"}, calls[0].Args)

	assert.Equal(t, 2, h.backend.calls(), "start prompt plus one component")
	assert.Contains(t, h.backend.messages[1], "<nav>Home</nav>")

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `testgen_components_total{outcome="passing"} 1`)
}

func TestGenerate_FailingComponentIsNotFatal(t *testing.T) {
	h := newHarness(t, 1)

	code := h.run("-e", h.page.URL)

	require.Equal(t, 0, code, "stderr: %s", h.stderr.String())
	assert.Contains(t, h.stdout.String(), "⚠ tests/nav_bar.spec.js")
	assert.Len(t, h.pm.GetCalls(), 3, "initial run plus two repairs")
	assert.Equal(t, 4, h.backend.calls(), "start, component, two fixes")
	assert.Contains(t, h.backend.messages[2], `Received: "Start"`)
}

func TestGenerate_RepairDisabled(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, os.WriteFile(h.config, []byte("repair: {max_attempts: 0, settle_delay: 0s}\nloop: {start_delay: 0s}\nfetch: {delay: 0s}\n"), 0o600))

	code := h.run("-e", h.page.URL)

	require.Equal(t, 0, code)
	assert.Len(t, h.pm.GetCalls(), 1)
	assert.Equal(t, 2, h.backend.calls())
}

func TestGenerate_BackendErrorIsFatal(t *testing.T) {
	h := newHarness(t, 0)
	h.backend.failAt = 3

	code := h.run("-e", h.page.URL, "-t", "2")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "component 2")
	assert.Contains(t, h.stderr.String(), "upstream 500")
	assert.Contains(t, h.stdout.String(), "✔ tests/nav_bar.spec.js", "completed components are still reported")
}

func TestGenerate_DryRun(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("-e", h.page.URL, "--dry-run")

	require.Equal(t, 0, code, "stderr: %s", h.stderr.String())
	assert.Equal(t, 0, h.backend.calls())
	assert.Contains(t, h.stdout.String(), "✔ tests/unknown.spec.js")
	_, err := os.Stat(filepath.Join(h.dir, "tests", "unknown.spec.js"))
	assert.True(t, os.IsNotExist(err), "nothing is persisted without code")
}

func TestGenerate_ZeroComponents(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("generate", "-e", h.page.URL, "-t", "0")

	require.Equal(t, 0, code)
	assert.Equal(t, 1, h.backend.calls(), "only the start prompt")
	assert.Empty(t, h.pm.GetCalls())
	assert.Contains(t, h.stdout.String(), "SUMMARY: passing=0 failing=0 total=0")
}

func TestGenerate_MissingEndpoint(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run()

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "endpoint is required")
	assert.Equal(t, 0, h.backend.calls())
}

func TestGenerate_UnknownModel(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("-e", h.page.URL, "-m", "gpt5")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), `model "gpt5" is not one of`)
}

func TestGenerate_FetchFailure(t *testing.T) {
	h := newHarness(t, 0)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	code := h.run("-e", broken.URL)

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "503")
	assert.Equal(t, 0, h.backend.calls())
}

func TestGenerate_BackendLogsUseConfiguredLogger(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-secret")
	t.Setenv("OPENAI_MODEL", "")

	tests := []struct {
		name    string
		logging string
		want    bool
	}{
		{name: "info level", logging: "", want: true},
		{name: "error level", logging: "logging:\n  level: error\n", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.newBackend = llm.NewBackend
			if tc.logging != "" {
				f, err := os.OpenFile(h.config, os.O_APPEND|os.O_WRONLY, 0o600)
				require.NoError(t, err)
				_, err = f.WriteString(tc.logging)
				require.NoError(t, err)
				require.NoError(t, f.Close())
			}

			code := h.run("-e", h.page.URL, "-t", "0", "--dry-run")

			require.Equal(t, 0, code, "stderr: %s", h.stderr.String())
			assert.Equal(t, tc.want, strings.Contains(h.stderr.String(), "Initializing OpenAI client"))
			assert.NotContains(t, h.stderr.String(), "sk-test-secret")
		})
	}
}

// =============================================================================
// models / config
// =============================================================================

func TestModelsCommand(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("models")

	require.Equal(t, 0, code)
	out := h.stdout.String()
	assert.Contains(t, out, "gpt4 (default)")
	assert.Contains(t, out, "claude")
	assert.Contains(t, out, "ollama")
}

func TestConfigCommand_ShowsMergedValues(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("config", "-e", "https://example.com", "-t", "5", "-m", "claude")

	require.Equal(t, 0, code, "stderr: %s", h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "endpoint: https://example.com")
	assert.Contains(t, out, "components: 5")
	assert.Contains(t, out, "model: claude")
	assert.Contains(t, out, "settle_delay: 0s")
}

func TestConfigCommand_InvalidStillPrints(t *testing.T) {
	h := newHarness(t, 0)

	code := h.run("config")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.stdout.String(), "model: gpt4")
	assert.Contains(t, h.stderr.String(), "endpoint is required")
}

func TestUnknownArgument(t *testing.T) {
	h := newHarness(t, 0)
	assert.Equal(t, 1, h.run("bogus"))
}

func TestDisableZero(t *testing.T) {
	assert.Equal(t, time.Duration(-1), disableZero(0))
	assert.Equal(t, 5*time.Second, disableZero(5*time.Second))
}
