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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StartCapturesToken(t *testing.T) {
	t.Parallel()

	backend := newScriptedBackend(scriptedReply{text: "ready"}, scriptedReply{text: "code"})
	s := NewSession(backend, SessionConfig{})

	token, err := s.Start(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", token)
	assert.Equal(t, "conv-1", s.Token())

	text, err := s.Send(context.Background(), "next")
	require.NoError(t, err)
	assert.Equal(t, "code", text)

	calls := backend.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[0].continuation)
	assert.Equal(t, "conv-1", calls[1].continuation)
	for _, c := range calls {
		assert.True(t, strings.HasSuffix(c.message, ConstraintSuffix))
	}
}

func TestSession_DryRunSkipsBackend(t *testing.T) {
	t.Parallel()

	backend := newScriptedBackend(scriptedReply{text: "should not be seen"})
	s := NewSession(backend, SessionConfig{DryRun: true})

	token, err := s.Start(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, token)

	text, err := s.Send(context.Background(), "next")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, backend.Calls())
	assert.True(t, s.DryRun())
}

func TestSession_BackendErrorIsWrapped(t *testing.T) {
	t.Parallel()

	connErr := errors.New("dial tcp: connection refused")
	backend := newScriptedBackend(scriptedReply{err: connErr})
	metrics := NewNoOpMetrics()
	s := NewSession(backend, SessionConfig{Metrics: metrics})

	_, err := s.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, connErr)
	assert.Len(t, backend.Calls(), 1, "no retry inside the session")
	assert.EqualValues(t, 1, metrics.Exchanges())
}

func TestSession_LimiterHonoursContext(t *testing.T) {
	t.Parallel()

	backend := newScriptedBackend()
	s := NewSession(backend, SessionConfig{MinInterval: time.Hour})

	_, err := s.Send(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Send(ctx, "second")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackend)
	assert.Len(t, backend.Calls(), 1)
}
