// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifacts persists generated test files on the local filesystem.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyContent is returned when there is nothing to write.
	ErrEmptyContent = errors.New("artifact content is empty")

	// ErrInvalidName is returned for names that would escape the tests directory.
	ErrInvalidName = errors.New("invalid artifact name")
)

const (
	DefaultTestsDir  = "tests"
	DefaultExtension = ".spec.js"
)

// FileStore writes <root>/<dir>/<name><ext>.
//
// Writes go to a temp file in the same directory and are renamed into place,
// so the test runner never reads a half-written file.
type FileStore struct {
	root   string
	dir    string
	ext    string
	logger *slog.Logger
}

// Options configures a FileStore. Zero values select the defaults.
type Options struct {
	// Dir is the tests directory relative to root, "tests" by default.
	Dir string

	// Extension is appended to every name, ".spec.js" by default.
	Extension string

	Logger *slog.Logger
}

// NewFileStore creates a store rooted at root, usually the working directory
// the test runner is started in.
func NewFileStore(root string, opts Options) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("artifact root dir is required")
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = DefaultTestsDir
	}
	if filepath.IsAbs(dir) || strings.Contains(filepath.ToSlash(filepath.Clean(dir)), "..") {
		return nil, fmt.Errorf("%w: tests dir %q must be relative to the root", ErrInvalidName, opts.Dir)
	}
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{root: root, dir: filepath.ToSlash(filepath.Clean(dir)), ext: ext, logger: logger}, nil
}

// Path returns the root-relative, slash-separated path for name,
// e.g. "tests/nav_bar.spec.js".
func (s *FileStore) Path(name string) string {
	return path.Join(s.dir, name+s.ext)
}

// AbsPath returns the filesystem path for name.
func (s *FileStore) AbsPath(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.Path(name)))
}

// Write stores content for name, replacing any previous file.
//
// # Outputs
//
//   - string: The root-relative path written
//   - error: ErrEmptyContent, ErrInvalidName, or a filesystem error
func (s *FileStore) Write(ctx context.Context, name, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	target := s.AbsPath(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tests directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create artifact tmp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write artifact tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close artifact tmp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("chmod artifact tmp: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	rel := s.Path(name)
	s.logger.Info("Successfully wrote test file", "path", rel, "bytes", len(content))
	return rel, nil
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidName)
	}
	return nil
}
