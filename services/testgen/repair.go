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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultMaxRepairAttempts bounds fix requests per component.
	DefaultMaxRepairAttempts = 2

	// DefaultSettleDelay is waited after every repair execution.
	DefaultSettleDelay = 2 * time.Second
)

// RepairConfig configures a Repairer.
type RepairConfig struct {
	// MaxAttempts is the number of fix requests per component. Zero means
	// DefaultMaxRepairAttempts; negative disables repair.
	MaxAttempts int

	// SettleDelay is waited after each repair execution. Negative disables it.
	SettleDelay time.Duration

	Logger  *slog.Logger
	Metrics Metrics
}

// RepairOutcome is the result of Repair.
type RepairOutcome struct {
	// Result is the last execution, the prior one if no attempt was made.
	Result ExecutionResult

	// Attempts is the number of fix requests sent.
	Attempts int
}

// Repairer asks the model to fix a failing test until it passes or the
// attempt budget runs out.
type Repairer struct {
	session *Session
	prompts *PromptTemplates
	store   ArtifactStore
	exec    Executor

	maxAttempts int
	settle      time.Duration
	logger      *slog.Logger
	metrics     Metrics
	sleep       func(context.Context, time.Duration) error
}

// NewRepairer creates a Repairer sharing the generation session.
func NewRepairer(session *Session, prompts *PromptTemplates, store ArtifactStore, exec Executor, cfg RepairConfig) *Repairer {
	r := &Repairer{
		session:     session,
		prompts:     prompts,
		store:       store,
		exec:        exec,
		maxAttempts: cfg.MaxAttempts,
		settle:      cfg.SettleDelay,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		sleep:       sleepContext,
	}
	if r.maxAttempts == 0 {
		r.maxAttempts = DefaultMaxRepairAttempts
	}
	if r.maxAttempts < 0 {
		r.maxAttempts = 0
	}
	if r.settle == 0 {
		r.settle = DefaultSettleDelay
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = NewNoOpMetrics()
	}
	return r
}

// MaxAttempts returns the configured attempt budget.
func (r *Repairer) MaxAttempts() int { return r.maxAttempts }

// Repair runs the fix cycle for componentName. See RepairWithProgress.
func (r *Repairer) Repair(ctx context.Context, componentName string, prior ExecutionResult) (RepairOutcome, error) {
	return r.RepairWithProgress(ctx, componentName, prior, nil)
}

// RepairWithProgress runs the fix cycle for componentName.
//
// # Description
//
// While the last result failed and attempts remain: classify the failure,
// send the fix prompt with the runner output on the shared conversation,
// parse the reply with the name pinned, overwrite the test file, re-run it
// and wait the settle delay.
//
// Running out of attempts is not an error; the caller sees a failed Result.
//
// # Inputs
//
//   - componentName: Normalized name, kept for every attempt
//   - prior: The failing execution that triggered repair
//   - onAttempt: Called with the 1-based attempt number, may be nil
//
// # Outputs
//
//   - RepairOutcome: Last result and attempts made
//   - error: ErrBackend or context errors only
func (r *Repairer) RepairWithProgress(ctx context.Context, componentName string, prior ExecutionResult, onAttempt func(attempt int)) (RepairOutcome, error) {
	ctx, span := tracer.Start(ctx, "Repairer.Repair")
	defer span.End()
	span.SetAttributes(attribute.String("testgen.component", componentName))

	outcome := RepairOutcome{Result: prior}
	for outcome.Result.Failed() && outcome.Attempts < r.maxAttempts {
		outcome.Attempts++
		if onAttempt != nil {
			onAttempt(outcome.Attempts)
		}

		failure := outcome.Result.FailureOutput()
		class := ClassifyFailure(failure)
		r.metrics.RecordRepairAttempt(class.Category)
		r.logger.Info("Fix attempt",
			"component", componentName,
			"attempt", outcome.Attempts,
			"exit_code", outcome.Result.ExitCode,
			"category", class.Category,
		)

		prompt, err := r.prompts.Fix(failure, class.Hint())
		if err != nil {
			return outcome, err
		}
		text, err := r.session.exchange(ctx, ExchangeFix, prompt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return outcome, fmt.Errorf("repair %s attempt %d: %w", componentName, outcome.Attempts, err)
		}

		art := ParseArtifact(text, componentName)
		persist(ctx, r.store, art, r.logger)
		outcome.Result = r.exec.Run(ctx, componentName)

		if err := r.sleep(ctx, r.settle); err != nil {
			return outcome, fmt.Errorf("repair %s: %w", componentName, err)
		}
	}

	span.SetAttributes(
		attribute.Int("testgen.repair_attempts", outcome.Attempts),
		attribute.Bool("testgen.repaired", !outcome.Result.Failed()),
	)
	if outcome.Result.Failed() {
		r.logger.Debug("Could not fix test", "component", componentName, "stdout", outcome.Result.Stdout)
	}
	return outcome, nil
}
