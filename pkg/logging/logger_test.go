// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("records below Warn leaked: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected Warn and Error records, got: %s", out)
	}
}

func TestLogger_ServiceAttributeAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "testgen", JSON: true, Output: &buf})

	logger.Info("component classified", "component", "nav_bar")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("console output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["service"] != "testgen" {
		t.Errorf("service = %v, want testgen", rec["service"])
	}
	if rec["component"] != "nav_bar" {
		t.Errorf("component = %v, want nav_bar", rec["component"])
	}
}

func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("backend configured",
		"openai_api_key", "sk-live-123",
		"session_token", "abc",
		"api_key_present", true,
	)

	out := buf.String()
	if strings.Contains(out, "sk-live-123") || strings.Contains(out, "abc") {
		t.Errorf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "api_key_present=true") {
		t.Errorf("presence flag should be kept: %s", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Output: &buf})
	child := parent.With("component", "search_bar")

	child.Info("fix attempt")
	if !strings.Contains(buf.String(), "component=search_bar") {
		t.Errorf("child attributes missing: %s", buf.String())
	}
	if child.Slog() == parent.Slog() {
		t.Error("With should return a distinct slog.Logger")
	}
}

func TestLogger_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	logger := New(Config{LogDir: dir, Service: "testgen", Output: &console})

	logger.Info("to both destinations", "n", 1)
	path := logger.FilePath()
	if path == "" {
		t.Fatal("expected a log file")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to both destinations"`) {
		t.Errorf("file record missing: %s", data)
	}
	if !strings.Contains(console.String(), "to both destinations") {
		t.Errorf("console record missing: %s", console.String())
	}
	if !strings.HasPrefix(filepath.Base(path), "testgen_") {
		t.Errorf("unexpected file name %s", path)
	}
}

func TestLogger_FileLoggingFailureFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	var console bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &console})

	if logger.FilePath() != "" {
		t.Error("file logging should be disabled")
	}
	if !strings.Contains(console.String(), "File logging disabled") {
		t.Errorf("expected a warning on the console, got: %s", console.String())
	}
}

func TestLogger_QuietWithoutFileStillLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	logger.Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("quiet logger with no file should fall back to console")
	}
}

func TestLogger_SetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	New(Config{Output: &buf}).SetDefault()
	slog.Info("via package-level slog")
	if !strings.Contains(buf.String(), "via package-level slog") {
		t.Errorf("default logger not installed: %s", buf.String())
	}
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestMultiHandler_HandleReachesAllHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		failingHandler{},
		slog.NewTextHandler(&buf, nil),
	}}

	err := slog.New(h).Handler().Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "hello", 0))
	if err == nil {
		t.Error("expected the first handler error")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Error("second handler should still receive the record")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %s", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %s", got)
	}
}
