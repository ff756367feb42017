// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pagefetch downloads the markup of the page tests are generated for.
package pagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrFetch marks any failure to obtain the page markup.
var ErrFetch = errors.New("fetch page")

const (
	DefaultDelay   = time.Second
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes caps the markup read from the endpoint.
	DefaultMaxBytes = 8 << 20
)

// Config configures a Fetcher.
type Config struct {
	// Delay is waited before the request. Negative disables it.
	Delay time.Duration

	// Timeout bounds the whole request.
	Timeout time.Duration

	MaxBytes int64

	// Transport is wrapped with otelhttp. Nil means http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Fetcher GETs a page and returns its body.
type Fetcher struct {
	client   *http.Client
	delay    time.Duration
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport),
		},
		delay:    cfg.Delay,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger,
	}
}

// Fetch waits the configured delay and returns the markup at endpoint.
//
// # Description
//
// Only http and https URLs are accepted. Non-2xx responses are errors.
// Bodies larger than MaxBytes are truncated with a warning.
//
// # Outputs
//
//   - string: Page markup
//   - error: Wraps ErrFetch
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) URL", ErrFetch, endpoint)
	}

	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
		case <-timer.C:
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("User-Agent", "aleutian-testgen/1.0")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned status %d", ErrFetch, u.Redacted(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		f.logger.Warn("Page markup truncated", "endpoint", u.Redacted(), "max_bytes", f.maxBytes)
		body = body[:f.maxBytes]
	}

	f.logger.Debug("Fetched page", "endpoint", u.Redacted(), "bytes", len(body), "duration", time.Since(start))
	return string(body), nil
}
