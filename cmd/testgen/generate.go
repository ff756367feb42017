// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aleutian-testgen/cmd/testgen/config"
	"github.com/AleutianAI/aleutian-testgen/pkg/logging"
	"github.com/AleutianAI/aleutian-testgen/pkg/telemetry"
	"github.com/AleutianAI/aleutian-testgen/pkg/ux"
	"github.com/AleutianAI/aleutian-testgen/services/artifacts"
	"github.com/AleutianAI/aleutian-testgen/services/llm"
	"github.com/AleutianAI/aleutian-testgen/services/pagefetch"
	"github.com/AleutianAI/aleutian-testgen/services/testgen"
)

// runGenerate wires every component and drives one generation run.
//
// # Description
//
// Order of work:
//
//  1. Fetch the endpoint markup.
//  2. Open the AI conversation with the start prompt.
//  3. Run the generation loop, repairing failing tests.
//  4. Print ✔/⚠ per component.
//
// Results gathered before a fatal error are still printed.
func runGenerate(cmd *cobra.Command, cfg config.Config, workDir string, deps appDeps) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "testgen",
		JSON:    cfg.Logging.JSON,
		Output:  stderr,
	})
	defer logger.Close()
	log := logger.Slog()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "testgen",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.Traces,
		Writer:         stderr,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("Telemetry shutdown failed", "error", serr)
		}
	}()

	metrics, flushMetrics, err := newMetrics(cfg.Telemetry.MetricsFile)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := flushMetrics(); ferr != nil {
			log.Warn("Failed to write metrics file", "path", cfg.Telemetry.MetricsFile, "error", ferr)
		}
	}()

	root, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("resolve workdir: %w", err)
	}

	printer := ux.NewPrinter(stdout, modeFor(stdout))
	status := ux.NewPrinter(stderr, modeFor(stderr))
	spinner := ux.NewSpinner(stderr, modeFor(stderr), "Fetching endpoint...")

	log.Info("Starting test generation",
		"endpoint", cfg.Endpoint,
		"components", cfg.Components,
		"model", cfg.Model,
		"dry_run", cfg.DryRun,
		"workdir", root,
	)

	// --- Fetch ---
	fetcher := pagefetch.New(pagefetch.Config{
		Delay:    disableZero(cfg.Fetch.Delay),
		Timeout:  cfg.Fetch.Timeout,
		MaxBytes: cfg.Fetch.MaxBytes,
		Logger:   log,
	})
	var markup string
	if err := ux.WithSpinner(spinner, status, func() error {
		var ferr error
		markup, ferr = fetcher.Fetch(ctx, cfg.Endpoint)
		return ferr
	}); err != nil {
		return err
	}

	// --- Backend and session ---
	spec, err := llm.LookupModel(cfg.Model)
	if err != nil {
		return err
	}
	backend, err := deps.newBackend(spec, llm.BackendOptions{
		ModelID:      cfg.AI.ModelID,
		BaseURL:      cfg.AI.BaseURL,
		SystemPrompt: cfg.AI.SystemPrompt,
		Params:       cfg.AI.Params(),
		Logger:       log,
	})
	if err != nil {
		return err
	}
	session := testgen.NewSession(backend, testgen.SessionConfig{
		DryRun:      cfg.DryRun,
		MinInterval: cfg.AI.MinInterval,
		Logger:      log,
		Metrics:     metrics,
	})
	prompts, err := testgen.NewPromptTemplates()
	if err != nil {
		return err
	}
	connecting := ux.NewSpinner(stderr, modeFor(stderr), fmt.Sprintf("Connecting to AI (%s) ...", spec.Selector))
	if err := ux.WithSpinner(connecting, status, func() error {
		_, serr := session.Start(ctx, prompts.Start())
		return serr
	}); err != nil {
		return err
	}

	// --- Persistence and execution ---
	store, err := artifacts.NewFileStore(root, artifacts.Options{Dir: cfg.TestsDir, Logger: log})
	if err != nil {
		return err
	}
	executor := testgen.NewPlaywrightExecutor(deps.processManager, testgen.PlaywrightConfig{
		Command:  cfg.Runner.Command,
		Args:     cfg.Runner.Args,
		Reporter: cfg.Runner.Reporter,
		Dir:      root,
		Locate:   store.Path,
		Logger:   log,
		Metrics:  metrics,
	})
	maxAttempts := cfg.Repair.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = -1
	}
	repairer := testgen.NewRepairer(session, prompts, store, executor, testgen.RepairConfig{
		MaxAttempts: maxAttempts,
		SettleDelay: disableZero(cfg.Repair.SettleDelay),
		Logger:      log,
		Metrics:     metrics,
	})

	// --- Loop ---
	progress := ux.NewSpinner(stderr, modeFor(stderr), "Starting...")
	loop, err := testgen.NewLoop(testgen.LoopDeps{
		Session:  session,
		Prompts:  prompts,
		Store:    store,
		Executor: executor,
		Repairer: repairer,
	}, testgen.LoopConfig{
		StartDelay: disableZero(cfg.Loop.StartDelay),
		Observer:   progress,
		Logger:     log,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	state, runErr := loop.Run(ctx, markup, cfg.Endpoint, cfg.Components)
	progress.Stop()

	if state != nil {
		printer.Results(state.Passing.Paths(), state.Failed.Paths())
		printer.Summary(state.Passing.Len(), state.Failed.Len())
		log.Info("Test generation finished",
			"passing", state.Passing.Len(),
			"failing", state.Failed.Len(),
		)
	}
	return runErr
}

// newMetrics returns Prometheus metrics flushed to path at the end of the
// run, or no-op metrics when path is empty.
func newMetrics(path string) (testgen.Metrics, func() error, error) {
	if path == "" {
		return testgen.NewNoOpMetrics(), func() error { return nil }, nil
	}
	m, err := testgen.NewPrometheusMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	return m, func() error { return m.WriteTextfile(path) }, nil
}

// modeFor styles output only when w is a terminal.
func modeFor(w io.Writer) ux.Mode {
	if f, ok := w.(*os.File); ok {
		return ux.DetectMode(f)
	}
	return ux.ModePlain
}

// disableZero maps a configured zero delay to the negative value the
// services read as "disabled"; their own zero means "use the default".
func disableZero(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
