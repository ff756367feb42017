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
	"fmt"
	"regexp"
	"strings"
)

// FailureCategory is a coarse label for why a generated test failed.
//
// It only shapes the repair prompt. Pass/fail is decided by exit code alone.
type FailureCategory string

const (
	CategorySelectorBroken    FailureCategory = "selector_broken"
	CategoryTimingFlaky       FailureCategory = "timing_flaky"
	CategoryNetworkFlaky      FailureCategory = "network_flaky"
	CategoryAssertionMismatch FailureCategory = "assertion_mismatch"
	CategoryViewport          FailureCategory = "viewport"
	CategoryUnknown           FailureCategory = "unknown"
)

// Classification is the result of ClassifyFailure.
type Classification struct {
	Category   FailureCategory
	Confidence float64
	Evidence   []string
}

// Hint renders the classification for inclusion in a repair prompt.
//
// Returns "" for unknown failures.
func (c Classification) Hint() string {
	if c.Category == CategoryUnknown {
		return ""
	}
	hint := strings.ReplaceAll(string(c.Category), "_", " ")
	if len(c.Evidence) > 0 {
		hint += " (" + c.Evidence[0] + ")"
	}
	return hint
}

type classificationRule struct {
	match      func(string) bool
	category   FailureCategory
	confidence float64
	evidence   func(string) []string
}

var (
	locatorPattern    = regexp.MustCompile(`(?:locator|getBy\w+)\(([^)\n]{1,120})\)`)
	receivedPattern   = regexp.MustCompile(`Received(?: string)?:\s*(.{1,120})`)
	netErrorPattern   = regexp.MustCompile(`net::ERR_[A-Z_]+`)
	outsideViewRegexp = regexp.MustCompile(`(?i)outside of the viewport|element is not visible`)
)

// classificationRules is evaluated in order; the first match wins.
var classificationRules = []classificationRule{
	{
		match: func(out string) bool {
			return netErrorPattern.MatchString(out) || strings.Contains(out, "ECONNREFUSED")
		},
		category:   CategoryNetworkFlaky,
		confidence: 0.85,
		evidence: func(out string) []string {
			if m := netErrorPattern.FindString(out); m != "" {
				return []string{"network error " + m}
			}
			return []string{"connection refused"}
		},
	},
	{
		match: func(out string) bool {
			return strings.Contains(out, "strict mode violation") ||
				(strings.Contains(out, "waiting for") && locatorPattern.MatchString(out) && strings.Contains(out, "Timeout"))
		},
		category:   CategorySelectorBroken,
		confidence: 0.8,
		evidence: func(out string) []string {
			if m := locatorPattern.FindStringSubmatch(out); m != nil {
				return []string{fmt.Sprintf("locator %s did not resolve to one element", strings.TrimSpace(m[1]))}
			}
			return []string{"locator matched more than one element"}
		},
	},
	{
		match: func(out string) bool {
			return outsideViewRegexp.MatchString(out)
		},
		category:   CategoryViewport,
		confidence: 0.7,
		evidence: func(string) []string {
			return []string{"element exists but is not visible in the viewport"}
		},
	},
	{
		match: func(out string) bool {
			return strings.Contains(out, "Expected") && strings.Contains(out, "Received")
		},
		category:   CategoryAssertionMismatch,
		confidence: 0.75,
		evidence: func(out string) []string {
			if m := receivedPattern.FindStringSubmatch(out); m != nil {
				return []string{"actual value was " + strings.TrimSpace(m[1])}
			}
			return []string{"assertion expected a different value"}
		},
	},
	{
		match: func(out string) bool {
			lower := strings.ToLower(out)
			return strings.Contains(lower, "timeout") && strings.Contains(lower, "exceeded")
		},
		category:   CategoryTimingFlaky,
		confidence: 0.6,
		evidence: func(string) []string {
			return []string{"timeout exceeded"}
		},
	},
}

// ClassifyFailure labels runner output with a FailureCategory.
func ClassifyFailure(output string) Classification {
	for _, rule := range classificationRules {
		if rule.match(output) {
			return Classification{
				Category:   rule.category,
				Confidence: rule.confidence,
				Evidence:   rule.evidence(output),
			}
		}
	}
	return Classification{Category: CategoryUnknown, Confidence: 0.3}
}
