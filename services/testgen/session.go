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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

var tracer = otel.Tracer("aleutian.testgen")

// ErrBackend marks failures of the AI backend. They are fatal to a run.
var ErrBackend = errors.New("ai backend failure")

// SessionConfig configures a Session.
type SessionConfig struct {
	// DryRun turns every exchange into a no-op returning "".
	DryRun bool

	// MinInterval spaces consecutive exchanges. Zero disables pacing.
	MinInterval time.Duration

	Logger  *slog.Logger
	Metrics Metrics
}

// Session is the single conversation a run holds with the model.
//
// # Description
//
// The continuation token returned by the first exchange is passed on every
// later exchange, so generation and repair requests share one context.
// Backend errors are not retried.
//
// # Thread Safety
//
// Not safe for concurrent use. Exchanges are strictly sequential.
type Session struct {
	backend llm.Backend
	token   string
	dryRun  bool
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics Metrics
}

// NewSession wraps backend in a Session.
func NewSession(backend llm.Backend, cfg SessionConfig) *Session {
	s := &Session{
		backend: backend,
		dryRun:  cfg.DryRun,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewNoOpMetrics()
	}
	if cfg.MinInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return s
}

// Token returns the current continuation token ("" before the first exchange).
func (s *Session) Token() string { return s.token }

// DryRun reports whether exchanges are skipped.
func (s *Session) DryRun() bool { return s.dryRun }

// Start opens the conversation with prompt and returns the new token.
//
// Any token held from an earlier conversation is discarded first.
func (s *Session) Start(ctx context.Context, prompt string) (string, error) {
	s.token = ""
	if _, err := s.exchange(ctx, ExchangeStart, prompt); err != nil {
		return "", err
	}
	return s.token, nil
}

// Send sends message on the current conversation and returns the reply text.
//
// In dry-run mode it returns "" and a nil error without contacting the
// backend.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	return s.exchange(ctx, ExchangeComponent, message)
}

func (s *Session) exchange(ctx context.Context, kind, message string) (string, error) {
	if s.dryRun {
		s.logger.Debug("Dry run, skipping AI exchange", "kind", kind, "chars", len(message))
		return "", nil
	}

	ctx, span := tracer.Start(ctx, "Session.exchange")
	defer span.End()
	span.SetAttributes(
		attribute.String("testgen.exchange_kind", kind),
		attribute.String("testgen.backend", s.backend.Name()),
		attribute.Bool("testgen.continued", s.token != ""),
	)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("waiting to send %s message: %w", kind, err)
		}
	}

	s.logger.Debug(">>>> Asking", "kind", kind, "continuation", s.token, "chars", len(message))
	start := time.Now()
	reply, err := s.backend.Send(ctx, message+ConstraintSuffix, s.token)
	s.metrics.RecordExchange(kind, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %s: %w", ErrBackend, s.backend.Name(), err)
	}

	if s.token == "" {
		s.token = reply.ID
	}
	s.logger.Debug("<<<< AI response", "kind", kind, "chars", len(reply.Text))
	return reply.Text, nil
}
