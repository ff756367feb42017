// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Plain Mode Tests
// =============================================================================

func TestSpinner_PlainPrintsEachMessageOnce(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(&buf, ModePlain, "Starting...")

	spin.Start()
	spin.Start()
	spin.UpdateMessage("Working on component 1")
	spin.UpdateMessage("Working on component 1")
	spin.UpdateMessage("Fixing tests for component 1, attempt 1: nav_bar")
	spin.Stop()

	want := "PROGRESS: Starting...\n" +
		"PROGRESS: Working on component 1\n" +
		"PROGRESS: Fixing tests for component 1, attempt 1: nav_bar\n"
	if buf.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestSpinner_UpdateBeforeStartIsSilent(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(&buf, ModePlain, "a")
	spin.UpdateMessage("b")
	if buf.Len() != 0 {
		t.Errorf("expected no output before Start, got %q", buf.String())
	}
	if spin.Message() != "b" {
		t.Errorf("Message() = %q", spin.Message())
	}
}

func TestSpinner_OnProgressStartsSpinner(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(&buf, ModePlain, "")

	spin.OnProgress("Starting...")
	spin.OnProgress("Working on component 1")
	spin.Stop()

	want := "PROGRESS: Starting...\nPROGRESS: Working on component 1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestSpinner_StopWhenNotRunning(t *testing.T) {
	spin := NewSpinner(&bytes.Buffer{}, ModeRich, "idle")
	spin.Stop()
	spin.Stop()
}

// =============================================================================
// Rich Mode Tests
// =============================================================================

func TestSpinner_RichAnimatesAndClears(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(&buf, ModeRich, "Fetching endpoint...")

	spin.Start()
	time.Sleep(5 * spinnerInterval)
	spin.Stop()

	out := buf.String()
	if !strings.Contains(out, "Fetching endpoint...") {
		t.Errorf("expected the message to be drawn, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("expected the line to be cleared on Stop, got %q", out)
	}
}

func TestSpinner_RichRestart(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(&buf, ModeRich, "first")

	spin.Start()
	spin.Stop()
	spin.Start()
	spin.Stop()
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_Success(t *testing.T) {
	var progress, out bytes.Buffer
	spin := NewSpinner(&progress, ModePlain, "Connecting to AI (gpt4) ...")

	err := WithSpinner(spin, NewPrinter(&out, ModePlain), func() error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "✔ Connecting to AI (gpt4) ...\n" {
		t.Errorf("printer output = %q", out.String())
	}
}

func TestWithSpinner_Error(t *testing.T) {
	var progress, out bytes.Buffer
	spin := NewSpinner(&progress, ModePlain, "Fetching endpoint...")
	want := errors.New("status 503")

	err := WithSpinner(spin, NewPrinter(&out, ModePlain), func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if out.String() != "✗ Fetching endpoint...: status 503\n" {
		t.Errorf("printer output = %q", out.String())
	}
}
