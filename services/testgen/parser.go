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
	"regexp"
	"strings"
	"unicode"
)

// UnknownComponent is the name used when no label can be recovered.
const UnknownComponent = "unknown"

// PlaywrightImport marks raw text that is code even without a fence.
const PlaywrightImport = "@playwright/test"

var (
	// fencePattern matches the first ``` block with an optional language tag.
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*(.*?)```")

	// labelPattern matches $$component name$$ on a single line.
	labelPattern = regexp.MustCompile(`\$\$(.*?)\$\$`)

	// testNamePattern matches the title argument of test('...', ...).
	testNamePattern = regexp.MustCompile("\\btest\\(\\s*(?:'([^'\\n]*)'|\"([^\"\\n]*)\"|`([^`]*)`)\\s*,")

	nonWordPattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

// Artifact is one model response turned into a test candidate.
//
// HasCode distinguishes "no code could be extracted" from an empty block.
// ComponentName is always a normalized, non-empty name.
type Artifact struct {
	RawText       string
	Code          string
	HasCode       bool
	ComponentName string
}

// ParseArtifact extracts test code and a component name from model text.
//
// # Description
//
// Code is the trimmed content of the first fenced block. Without a fence,
// text that mentions the Playwright import is taken whole as code.
//
// The name is chosen in order from: explicitName, the first $$label$$ in
// the text, the title of the first test('...') call in the code, and
// finally UnknownComponent. Each candidate is normalized with SnakeCase and
// skipped if nothing survives normalization.
//
// # Inputs
//
//   - text: Raw model reply, may be empty
//   - explicitName: Pinned name (used during repair), may be empty
//
// # Outputs
//
//   - Artifact: Always valid
//
// # Limitations
//
//   - Only the first fenced block is considered
//
// # Assumptions
//
//   - None; any input is accepted
func ParseArtifact(text string, explicitName string) Artifact {
	art := Artifact{RawText: text}
	art.Code, art.HasCode = extractCode(text)

	candidates := []func() string{
		func() string { return explicitName },
		func() string { return extractLabel(text) },
		func() string {
			if !art.HasCode {
				return ""
			}
			return fallbackName(art.Code)
		},
	}
	for _, candidate := range candidates {
		if name, ok := SnakeCase(candidate()); ok {
			art.ComponentName = name
			return art
		}
	}
	art.ComponentName = UnknownComponent
	return art
}

func extractCode(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if strings.Contains(text, PlaywrightImport) {
		return strings.TrimSpace(text), true
	}
	return "", false
}

func extractLabel(text string) string {
	m := labelPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func fallbackName(code string) string {
	m := testNamePattern.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if s := strings.TrimSpace(group); s != "" {
			return s
		}
	}
	return ""
}

// SnakeCase normalizes a component label.
//
// # Description
//
// Runs of non-word characters become separators, camel-case boundaries
// split words ("NavBar" -> "nav_bar", "HTMLParser" -> "html_parser"), and
// the lowercased words are joined with underscores.
//
// # Outputs
//
//   - string: Normalized name
//   - bool: False when nothing usable remains (blank or punctuation only)
//
// # Examples
//
//	SnakeCase("Login Form")  // "login_form", true
//	SnakeCase("searchBar")   // "search_bar", true
//	SnakeCase("  !! ")       // "", false
func SnakeCase(s string) (string, bool) {
	spaced := nonWordPattern.ReplaceAllString(s, " ")

	var words []string
	for _, field := range strings.Fields(spaced) {
		words = append(words, splitCamel(field)...)
	}
	if len(words) == 0 {
		return "", false
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	name := strings.Join(words, "_")
	if strings.Trim(name, "_") == "" {
		return "", false
	}
	return name, true
}

// splitCamel splits before an upper-case letter that follows a lower-case
// letter or digit, and before the last capital of an acronym that precedes
// a lower-case letter.
func splitCamel(word string) []string {
	runes := []rune(word)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prev := runes[i-1]
		boundary := unicode.IsLower(prev) || unicode.IsDigit(prev)
		if !boundary && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}
