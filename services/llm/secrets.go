// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSecretsDir is where Podman and Docker mount secrets.
const DefaultSecretsDir = "/run/secrets"

// Secret holds a credential and keeps it out of formatted output.
//
// # Description
//
// String and GoString both return a mask so a Secret passed to a logger or
// fmt verb never prints the value. Use Reveal at the point of use only.
//
// # Example
//
//	key, err := SecretSource{}.Lookup("OPENAI_API_KEY", "openai_api_key")
//	slog.Info("credential loaded", "key", key) // key=****
type Secret struct {
	value string
}

// NewSecret wraps a raw credential value.
func NewSecret(value string) Secret {
	return Secret{value: strings.TrimSpace(value)}
}

// Reveal returns the raw value.
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return s.value == "" }

func (s Secret) String() string { return "****" }

func (s Secret) GoString() string { return "llm.Secret(****)" }

// SecretSource resolves credentials from the environment and mounted secret
// files.
type SecretSource struct {
	// Getenv reads environment variables. Nil means os.Getenv.
	Getenv func(string) string

	// Dir holds one file per secret. Empty means DefaultSecretsDir.
	Dir string

	// Logger receives lookup diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Lookup returns the credential named envKey.
//
// # Description
//
// Reads the environment first, then <Dir>/<fileName>. Returns
// ErrMissingCredential when neither yields a non-blank value. The value is
// never logged, only where it came from.
//
// # Inputs
//
//   - envKey: environment variable, e.g. "OPENAI_API_KEY"
//   - fileName: secret file name, e.g. "openai_api_key"
//
// # Outputs
//
//   - Secret: the credential
//   - error: wraps ErrMissingCredential when absent
func (s SecretSource) Lookup(envKey, fileName string) (Secret, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(envKey)); v != "" {
		return NewSecret(v), nil
	}

	dir := s.Dir
	if dir == "" {
		dir = DefaultSecretsDir
	}
	path := filepath.Join(dir, fileName)
	if content, err := os.ReadFile(path); err == nil {
		if v := strings.TrimSpace(string(content)); v != "" {
			loggerOrDefault(s.Logger).Info("Read credential from mounted secret", "env", envKey, "path", path)
			return NewSecret(v), nil
		}
	}
	return Secret{}, fmt.Errorf("%w: %s not set and %s not found", ErrMissingCredential, envKey, path)
}

// Env reads a plain, non-secret setting with a fallback.
func (s SecretSource) Env(key, fallback string) string {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}
