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

// Outcome is the final classification of one component.
type Outcome struct {
	// Name is the normalized component name.
	Name string

	// Path is where the artifact was written, e.g. "tests/nav_bar.spec.js".
	Path string

	// Attempts is the number of repair attempts made (0 if it passed first time).
	Attempts int

	// ExitCode is the runner exit code of the last execution.
	ExitCode int
}

// OutcomeSet is an insertion-ordered set of outcomes keyed by Name.
//
// Not safe for concurrent use; a set belongs to one Loop.Run call.
type OutcomeSet struct {
	items []Outcome
	index map[string]int
}

func newOutcomeSet() *OutcomeSet {
	return &OutcomeSet{index: make(map[string]int)}
}

// Add inserts o unless an outcome with the same name exists.
//
// The first insert wins. Returns true if o was added.
func (s *OutcomeSet) Add(o Outcome) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[o.Name]; ok {
		return false
	}
	s.index[o.Name] = len(s.items)
	s.items = append(s.items, o)
	return true
}

// Contains reports whether name has been recorded.
func (s *OutcomeSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Len returns the number of distinct outcomes.
func (s *OutcomeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Outcomes returns a copy of the outcomes in insertion order.
func (s *OutcomeSet) Outcomes() []Outcome {
	if s == nil {
		return nil
	}
	out := make([]Outcome, len(s.items))
	copy(out, s.items)
	return out
}

// Names returns the component names in insertion order.
func (s *OutcomeSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.items))
	for i, o := range s.items {
		names[i] = o.Name
	}
	return names
}

// Paths returns the artifact paths in insertion order.
func (s *OutcomeSet) Paths() []string {
	if s == nil {
		return nil
	}
	paths := make([]string, len(s.items))
	for i, o := range s.items {
		paths[i] = o.Path
	}
	return paths
}

// LoopState is the result of a generation run.
//
// Passing and Failed are deduplicated independently, so a name may appear
// once in each.
type LoopState struct {
	Passing *OutcomeSet
	Failed  *OutcomeSet
}

// NewLoopState returns an empty state.
func NewLoopState() *LoopState {
	return &LoopState{Passing: newOutcomeSet(), Failed: newOutcomeSet()}
}

// Record files o under Passing when exitCode is 0, otherwise under Failed.
func (st *LoopState) Record(o Outcome) bool {
	if o.ExitCode == 0 {
		return st.Passing.Add(o)
	}
	return st.Failed.Add(o)
}
