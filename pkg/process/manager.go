// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package process abstracts external process execution.

Every command testgen runs (the Playwright runner in particular) goes through
Manager so tests can substitute MockManager and never spawn a real process.

Unlike a plain exec.Cmd.Run, Manager.Run always hands back whatever output
was captured, even when the process failed to start or exited non-zero. The
failure itself is reported as a *CommandError carrying the exit code.
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// -----------------------------------------------------------------------------
// Exit codes
// -----------------------------------------------------------------------------

const (
	// ExitNotFound is reported when the executable cannot be located.
	ExitNotFound = 127

	// ExitUnknown is reported when a failure carries no usable exit status.
	ExitUnknown = 1

	// exitSignalBase is added to the signal number for killed processes.
	exitSignalBase = 128
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Output is the captured result of one process execution.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// Run respects context cancellation; a cancelled process is killed and
// reported with its signal exit code.
type Manager interface {
	// Run executes a command synchronously in dir.
	//
	// # Description
	//
	// Output is always populated with whatever was captured. A non-nil
	// error is a *CommandError whose ExitCode matches Output.ExitCode.
	//
	// # Inputs
	//
	//   - ctx: Cancellation
	//   - dir: Working directory, empty means the current one
	//   - name: Executable
	//   - args: Arguments
	Run(ctx context.Context, dir string, name string, args ...string) (Output, error)
}

// -----------------------------------------------------------------------------
// Production Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
type DefaultManager struct {
	// Env is appended to the inherited environment when non-empty.
	Env []string
}

// NewDefaultManager creates a Manager that executes real processes.
//
// # Examples
//
//	pm := process.NewDefaultManager()
//	out, err := pm.Run(ctx, "", "npx", "playwright", "--version")
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command and captures stdout, stderr and the exit code.
func (pm *DefaultManager) Run(ctx context.Context, dir string, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(pm.Env) > 0 {
		cmd.Env = append(cmd.Environ(), pm.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return out, nil
	}

	out.ExitCode = ExitCodeOf(err)
	return out, NewCommandError(commandLine(name, args), out.ExitCode, stderr.String(), err)
}

// ExitCodeOf derives a shell-style exit code from an exec error.
//
// # Description
//
// Returns 0 for nil, the process exit status for a normal non-zero exit,
// 128+signal for a killed process, 127 when the executable was not found,
// and 1 for anything else. A *CommandError reports its own ExitCode.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return exitSignalBase + int(status.Signal())
		}
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		return ExitUnknown
	}

	if errors.Is(err, exec.ErrNotFound) {
		return ExitNotFound
	}
	var pathErr *exec.Error
	if errors.As(err, &pathErr) {
		return ExitNotFound
	}
	return ExitUnknown
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// -----------------------------------------------------------------------------
// Mock Implementation
// -----------------------------------------------------------------------------

// MockManager implements Manager for tests.
//
// # Examples
//
//	mock := &process.MockManager{
//	    RunFunc: func(ctx context.Context, dir, name string, args ...string) (process.Output, error) {
//	        return process.Output{Stdout: []byte("1 passed")}, nil
//	    },
//	}
type MockManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, dir string, name string, args ...string) (Output, error)

	// Calls records all method invocations for verification
	Calls []Call

	mu sync.Mutex
}

// Call records a single method invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Run delegates to RunFunc and records the call.
func (m *MockManager) Run(ctx context.Context, dir string, name string, args ...string) (Output, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	fn := m.RunFunc
	m.mu.Unlock()

	if fn == nil {
		panic("MockManager.RunFunc not set")
	}
	return fn(ctx, dir, name, args...)
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Call, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance check.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
