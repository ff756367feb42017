// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

// Config is the full testgen configuration, usually read from testgen.yaml.
//
// API keys have no field here. They come from the environment or
// /run/secrets only.
type Config struct {
	Endpoint   string `yaml:"endpoint" validate:"required,http_url"`
	Components int    `yaml:"components" validate:"gte=0"`
	Model      string `yaml:"model" validate:"required,model"`
	DryRun     bool   `yaml:"dry_run"`

	// TestsDir is relative to the working directory.
	TestsDir string `yaml:"tests_dir" validate:"required"`

	Runner    RunnerConfig    `yaml:"runner"`
	Repair    RepairConfig    `yaml:"repair"`
	Loop      LoopConfig      `yaml:"loop"`
	Fetch     FetchConfig     `yaml:"fetch"`
	AI        AIConfig        `yaml:"ai"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type RunnerConfig struct {
	Command  string   `yaml:"command" validate:"required"`
	Args     []string `yaml:"args"`
	Reporter string   `yaml:"reporter" validate:"required"`
}

type RepairConfig struct {
	// MaxAttempts of 0 disables repair.
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=0,lte=10"`
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"`
}

type LoopConfig struct {
	StartDelay time.Duration `yaml:"start_delay" validate:"gte=0"`
}

type FetchConfig struct {
	Delay    time.Duration `yaml:"delay" validate:"gte=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxBytes int64         `yaml:"max_bytes" validate:"gte=0"`
}

// AIConfig tunes the model backend.
type AIConfig struct {
	// ModelID overrides the model behind the selector, e.g. "gpt-4-turbo".
	ModelID string `yaml:"model_id,omitempty"`

	// BaseURL points the backend at a compatible server or proxy.
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,http_url"`

	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// MinInterval spaces consecutive exchanges. Zero disables pacing.
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`

	MaxTokens   int      `yaml:"max_tokens" validate:"gte=0"`
	Temperature *float32 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// Params converts the tuning knobs into backend generation parameters.
func (a AIConfig) Params() llm.GenerationParams {
	var params llm.GenerationParams
	if a.MaxTokens > 0 {
		maxTokens := a.MaxTokens
		params.MaxTokens = &maxTokens
	}
	if a.Temperature != nil {
		temp := *a.Temperature
		params.Temperature = &temp
	}
	return params
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	// Traces selects the span exporter: none, stdout or otlp.
	Traces       string `yaml:"traces" validate:"omitempty,oneof=none stdout otlp"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// MetricsFile, when set, receives Prometheus text-format metrics at
	// the end of the run.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns the settings the tool runs with when no file or flag
// says otherwise. Endpoint has no default.
func DefaultConfig() Config {
	return Config{
		Components: 1,
		Model:      llm.DefaultModel,
		TestsDir:   "tests",
		Runner: RunnerConfig{
			Command:  "npx",
			Args:     []string{"playwright", "test"},
			Reporter: "dot",
		},
		Repair: RepairConfig{
			MaxAttempts: 2,
			SettleDelay: 2 * time.Second,
		},
		Loop: LoopConfig{
			StartDelay: time.Second,
		},
		Fetch: FetchConfig{
			Delay:    time.Second,
			Timeout:  30 * time.Second,
			MaxBytes: 8 << 20,
		},
		AI: AIConfig{
			MaxTokens: 4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Traces:       "none",
			OTLPEndpoint: "localhost:4317",
		},
	}
}
