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
	"log/slog"
	"time"
)

// ArtifactStore persists generated test source by component name.
type ArtifactStore interface {
	// Write stores content for name and returns the path written.
	Write(ctx context.Context, name, content string) (string, error)

	// Path returns where name is (or would be) stored.
	Path(name string) string
}

// persist writes art best-effort. Missing code is skipped and write errors
// are logged; the following run then fails on its own.
func persist(ctx context.Context, store ArtifactStore, art Artifact, logger *slog.Logger) {
	if !art.HasCode || art.Code == "" {
		logger.Warn("No code in AI response, nothing written", "component", art.ComponentName, "chars", len(art.RawText))
		return
	}
	path, err := store.Write(ctx, art.ComponentName, art.Code)
	if err != nil {
		logger.Warn("Failed to write test file", "component", art.ComponentName, "error", err)
		return
	}
	logger.Debug("Wrote test file", "component", art.ComponentName, "path", path)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
