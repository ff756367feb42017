// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"context"
	"log/slog"
	"path"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/aleutian-testgen/pkg/process"
)

// ExecutionResult is the outcome of one test run.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Failed reports whether the run counts as a failure. The exit code is the
// only signal; stderr is never inspected.
func (r ExecutionResult) Failed() bool { return r.ExitCode != 0 }

// FailureOutput is the text sent back to the model for repair: stdout, or
// stderr when the runner printed nothing to stdout.
func (r ExecutionResult) FailureOutput() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	return r.Stderr
}

// Executor runs the generated test for one component.
//
// Run never returns an error. Launch failures are folded into the
// ExecutionResult exit code so the caller always classifies by exit code.
type Executor interface {
	Run(ctx context.Context, componentName string) ExecutionResult
}

// PlaywrightConfig configures a PlaywrightExecutor.
type PlaywrightConfig struct {
	// Command is the launcher, "npx" by default.
	Command string

	// Args precede the test path, ["playwright", "test"] by default.
	Args []string

	// Reporter is passed as --reporter, "dot" by default.
	Reporter string

	// Dir is the working directory of the runner.
	Dir string

	// Locate maps a component name to the test path handed to the runner.
	// Defaults to tests/<name>.spec.js.
	Locate func(componentName string) string

	Logger  *slog.Logger
	Metrics Metrics
}

// PlaywrightExecutor runs `npx playwright test <path> --reporter=dot`.
type PlaywrightExecutor struct {
	pm  process.Manager
	cfg PlaywrightConfig
}

// NewPlaywrightExecutor creates an Executor backed by pm.
func NewPlaywrightExecutor(pm process.Manager, cfg PlaywrightConfig) *PlaywrightExecutor {
	if cfg.Command == "" {
		cfg.Command = "npx"
	}
	if cfg.Args == nil {
		cfg.Args = []string{"playwright", "test"}
	}
	if cfg.Reporter == "" {
		cfg.Reporter = "dot"
	}
	if cfg.Locate == nil {
		cfg.Locate = DefaultTestPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	return &PlaywrightExecutor{pm: pm, cfg: cfg}
}

// DefaultTestPath returns tests/<name>.spec.js.
func DefaultTestPath(componentName string) string {
	return path.Join("tests", componentName+".spec.js")
}

// Run executes the test for componentName.
func (e *PlaywrightExecutor) Run(ctx context.Context, componentName string) ExecutionResult {
	ctx, span := tracer.Start(ctx, "PlaywrightExecutor.Run")
	defer span.End()

	testPath := e.cfg.Locate(componentName)
	args := make([]string, 0, len(e.cfg.Args)+2)
	args = append(args, e.cfg.Args...)
	args = append(args, testPath, "--reporter="+e.cfg.Reporter)

	out, err := e.pm.Run(ctx, e.cfg.Dir, e.cfg.Command, args...)
	result := ExecutionResult{
		ExitCode: out.ExitCode,
		Stdout:   string(out.Stdout),
		Stderr:   string(out.Stderr),
		Duration: out.Duration,
	}
	if err != nil {
		if code := process.ExitCodeOf(err); code != 0 {
			result.ExitCode = code
		} else if result.ExitCode == 0 {
			result.ExitCode = process.ExitUnknown
		}
		if result.Stderr == "" {
			result.Stderr = process.ExtractStderr(err)
		}
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
		e.cfg.Logger.Debug("Test runner reported failure", "component", componentName, "exit_code", result.ExitCode, "error", err)
	}
	if result.ExitCode < 0 {
		result.ExitCode = process.ExitUnknown
	}

	span.SetAttributes(
		attribute.String("testgen.component", componentName),
		attribute.String("testgen.test_path", testPath),
		attribute.Int("testgen.exit_code", result.ExitCode),
	)
	e.cfg.Metrics.RecordExecution(result.ExitCode, result.Duration)
	return result
}

var _ Executor = (*PlaywrightExecutor)(nil)
