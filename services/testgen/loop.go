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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidComponentCount is returned for a negative component count.
var ErrInvalidComponentCount = errors.New("component count must be >= 0")

// DefaultStartDelay is waited before the first component.
const DefaultStartDelay = time.Second

// Observer receives human-readable progress messages.
type Observer interface {
	OnProgress(message string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(message string)

func (f ObserverFunc) OnProgress(message string) { f(message) }

// LoopDeps are the collaborators of a Loop.
type LoopDeps struct {
	Session  *Session
	Prompts  *PromptTemplates
	Store    ArtifactStore
	Executor Executor
	Repairer *Repairer
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	// StartDelay is waited once before the first component. Zero means
	// DefaultStartDelay; negative disables it.
	StartDelay time.Duration

	Observer Observer
	Logger   *slog.Logger
	Metrics  Metrics
}

// Loop generates, runs and repairs one test per requested component.
type Loop struct {
	deps       LoopDeps
	startDelay time.Duration
	observer   Observer
	logger     *slog.Logger
	metrics    Metrics
	sleep      func(context.Context, time.Duration) error
}

// NewLoop validates deps and creates a Loop.
func NewLoop(deps LoopDeps, cfg LoopConfig) (*Loop, error) {
	switch {
	case deps.Session == nil:
		return nil, errors.New("testgen: loop requires a session")
	case deps.Prompts == nil:
		return nil, errors.New("testgen: loop requires prompt templates")
	case deps.Store == nil:
		return nil, errors.New("testgen: loop requires an artifact store")
	case deps.Executor == nil:
		return nil, errors.New("testgen: loop requires an executor")
	case deps.Repairer == nil:
		return nil, errors.New("testgen: loop requires a repairer")
	}

	l := &Loop{
		deps:       deps,
		startDelay: cfg.StartDelay,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		sleep:      sleepContext,
	}
	if l.startDelay == 0 {
		l.startDelay = DefaultStartDelay
	}
	if l.observer == nil {
		l.observer = ObserverFunc(func(string) {})
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.metrics == nil {
		l.metrics = NewNoOpMetrics()
	}
	return l, nil
}

// Run processes componentCount components in order.
//
// # Description
//
// Component 0 is requested with the full-markup prompt; later components
// use the follow-up prompt listing names already passing. Each candidate is
// written, executed, repaired at most once on failure (the Repairer bounds
// its own attempts) and filed under Passing or Failed by exit code.
//
// # Inputs
//
//   - pageMarkup: Page HTML forwarded to the model as-is
//   - endpoint: URL the tests must navigate to
//   - componentCount: Number of components, >= 0
//
// # Outputs
//
//   - *LoopState: Final state. Also returned, partially filled, with an error
//   - error: ErrInvalidComponentCount, ErrBackend or a context error
func (l *Loop) Run(ctx context.Context, pageMarkup, endpoint string, componentCount int) (*LoopState, error) {
	if componentCount < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidComponentCount, componentCount)
	}

	ctx, span := tracer.Start(ctx, "Loop.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("testgen.endpoint", endpoint),
		attribute.Int("testgen.components_requested", componentCount),
		attribute.Int("testgen.markup_bytes", len(pageMarkup)),
	)

	state := NewLoopState()
	l.observer.OnProgress("Starting...")
	if err := l.sleep(ctx, l.startDelay); err != nil {
		return state, err
	}

	for c := 0; c < componentCount; c++ {
		if err := l.component(ctx, state, c, pageMarkup, endpoint); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}
	}

	span.SetAttributes(
		attribute.Int("testgen.passing", state.Passing.Len()),
		attribute.Int("testgen.failed", state.Failed.Len()),
	)
	return state, nil
}

func (l *Loop) component(ctx context.Context, state *LoopState, index int, markup, endpoint string) error {
	ctx, span := tracer.Start(ctx, "Loop.component")
	defer span.End()

	num := index + 1
	l.observer.OnProgress(fmt.Sprintf("Working on component %d", num))

	prompt, err := l.deps.Prompts.Component(index, PromptData{
		Endpoint: endpoint,
		Markup:   markup,
		Known:    state.Passing.Names(),
	})
	if err != nil {
		return err
	}
	text, err := l.deps.Session.exchange(ctx, ExchangeComponent, prompt)
	if err != nil {
		return fmt.Errorf("component %d: %w", num, err)
	}

	art := ParseArtifact(text, "")
	name := art.ComponentName
	span.SetAttributes(
		attribute.String("testgen.component", name),
		attribute.Bool("testgen.has_code", art.HasCode),
	)
	persist(ctx, l.deps.Store, art, l.logger)
	result := l.deps.Executor.Run(ctx, name)

	attempts := 0
	if result.Failed() {
		outcome, err := l.deps.Repairer.RepairWithProgress(ctx, name, result, func(attempt int) {
			l.observer.OnProgress(fmt.Sprintf("Fixing tests for component %d, attempt %d: %s", num, attempt, name))
		})
		if err != nil {
			return fmt.Errorf("component %d: %w", num, err)
		}
		result = outcome.Result
		attempts = outcome.Attempts
	}

	outcome := Outcome{
		Name:     name,
		Path:     l.deps.Store.Path(name),
		Attempts: attempts,
		ExitCode: result.ExitCode,
	}
	passed := !result.Failed()
	if !state.Record(outcome) {
		l.logger.Info("Component already recorded, keeping first result", "component", name, "passed", passed)
	}
	l.metrics.RecordOutcome(passed)
	l.logger.Info("Component classified", "index", num, "component", name, "passed", passed, "attempts", attempts)
	return nil
}
