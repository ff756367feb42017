// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner provides an animated loading indicator.
//
// In ModePlain it never animates: Start and every message change print one
// "PROGRESS: <message>" line, which keeps CI logs readable.
//
// Spinner satisfies testgen.Observer through OnProgress, so the generation
// loop can drive it directly.
type Spinner struct {
	w          io.Writer
	mode       Mode
	message    string
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	isRunning  bool
	frameIndex int
}

// NewSpinner creates a new spinner with the given message. A nil writer
// means os.Stderr.
func NewSpinner(w io.Writer, mode Mode, message string) *Spinner {
	if w == nil {
		w = os.Stderr
	}
	return &Spinner{
		w:       w,
		mode:    mode,
		message: message,
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	if s.mode == ModePlain {
		fmt.Fprintf(s.w, "PROGRESS: %s\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate(s.stop, s.done)
}

func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-stop:
			s.mu.Lock()
			fmt.Fprint(s.w, "\r\033[K")
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := Styles.Highlight.Render(spinnerFrames[s.frameIndex])
			fmt.Fprintf(s.w, "\r\033[K%s %s", frame, s.message)
			s.frameIndex = (s.frameIndex + 1) % len(spinnerFrames)
			s.mu.Unlock()
		}
	}
}

// Stop halts the spinner animation. Safe to call when not running.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// UpdateMessage changes the spinner message while running
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message == message {
		return
	}
	s.message = message
	if s.mode == ModePlain && s.isRunning {
		fmt.Fprintf(s.w, "PROGRESS: %s\n", message)
	}
}

// Message returns the current message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// OnProgress updates the message, starting the spinner if needed.
func (s *Spinner) OnProgress(message string) {
	s.UpdateMessage(message)
	s.Start()
}

// WithSpinner runs fn behind a spinner and reports the outcome on p.
func WithSpinner(s *Spinner, p *Printer, fn func() error) error {
	message := s.Message()
	s.Start()
	err := fn()
	s.Stop()

	if err != nil {
		p.Error(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	p.Passed(message)
	return nil
}
