// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package testgen

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aleutian-testgen/pkg/process"
)

func TestPlaywrightExecutor_InvocationShape(t *testing.T) {
	t.Parallel()

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, dir, name string, args ...string) (process.Output, error) {
			return process.Output{Stdout: []byte("·\n  1 passed (900ms)\n"), Duration: 900 * time.Millisecond}, nil
		},
	}
	metrics := NewNoOpMetrics()
	e := NewPlaywrightExecutor(mock, PlaywrightConfig{Dir: "/work", Metrics: metrics})

	res := e.Run(context.Background(), "nav_bar")
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Failed())
	assert.Contains(t, res.Stdout, "1 passed")

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/work", calls[0].Dir)
	assert.Equal(t, "npx", calls[0].Name)
	assert.Equal(t, []string{"playwright", "test", "tests/nav_bar.spec.js", "--reporter=dot"}, calls[0].Args)
	assert.EqualValues(t, 1, metrics.Executions())
}

func TestPlaywrightExecutor_CustomLocateAndRunner(t *testing.T) {
	t.Parallel()

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, dir, name string, args ...string) (process.Output, error) {
			return process.Output{}, nil
		},
	}
	e := NewPlaywrightExecutor(mock, PlaywrightConfig{
		Command:  "pnpm",
		Args:     []string{"exec", "playwright", "test"},
		Reporter: "line",
		Locate:   func(n string) string { return "e2e/" + n + ".spec.ts" },
	})
	e.Run(context.Background(), "footer")

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pnpm", calls[0].Name)
	assert.Equal(t, []string{"exec", "playwright", "test", "e2e/footer.spec.ts", "--reporter=line"}, calls[0].Args)
}

func TestPlaywrightExecutor_FailuresBecomeResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		out        process.Output
		err        error
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "test failure keeps output",
			out:        process.Output{Stdout: []byte("F\n  1 failed\n"), ExitCode: 1},
			err:        process.NewCommandError("npx playwright test", 1, "", nil),
			wantCode:   1,
			wantStdout: "F\n  1 failed\n",
			wantStderr: "npx playwright test (exit 1)",
		},
		{
			name:       "stderr carried only by the command error",
			out:        process.Output{},
			err:        fmt.Errorf("run: %w", process.NewCommandError("npx playwright test", 2, "browserType.launch failed\n", nil)),
			wantCode:   2,
			wantStderr: "browserType.launch failed",
		},
		{
			name:       "missing runner",
			out:        process.Output{},
			err:        &exec.Error{Name: "npx", Err: exec.ErrNotFound},
			wantCode:   process.ExitNotFound,
			wantStderr: `exec: "npx": executable file not found in $PATH`,
		},
		{
			name:       "opaque error",
			out:        process.Output{Stderr: []byte("crashed")},
			err:        errors.New("boom"),
			wantCode:   process.ExitUnknown,
			wantStderr: "crashed",
		},
		{
			name:     "negative exit code is normalized",
			out:      process.Output{ExitCode: -1},
			wantCode: process.ExitUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &process.MockManager{
				RunFunc: func(ctx context.Context, dir, name string, args ...string) (process.Output, error) {
					return tt.out, tt.err
				},
			}
			res := NewPlaywrightExecutor(mock, PlaywrightConfig{}).Run(context.Background(), "x")
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.True(t, res.Failed())
			assert.Equal(t, tt.wantStdout, res.Stdout)
			assert.Equal(t, tt.wantStderr, res.Stderr)
		})
	}
}

func TestExecutionResult_FailureOutput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "out", ExecutionResult{Stdout: "out", Stderr: "err"}.FailureOutput())
	assert.Equal(t, "err", ExecutionResult{Stderr: "err"}.FailureOutput())
}
