// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the testgen CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
}

// Icon provides themed status icons
type Icon string

const (
	IconPassed Icon = "✔"
	IconFailed Icon = "⚠"
	IconError  Icon = "✗"
	IconBullet Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconPassed:
		return Styles.Success.Render(string(i))
	case IconFailed:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Mode selects between styled terminal output and plain text.
type Mode int

const (
	// ModeRich renders colors and animates the spinner.
	ModeRich Mode = iota

	// ModePlain writes unstyled lines suitable for pipes and CI logs.
	ModePlain
)

// DetectMode returns ModeRich when f is a terminal (including Cygwin
// terminals) and ModePlain otherwise.
func DetectMode(f *os.File) Mode {
	if f == nil {
		return ModePlain
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeRich
	}
	return ModePlain
}

// Printer writes status lines to a single destination.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer. A nil writer means os.Stdout.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, mode: mode}
}

// Mode reports the printer's output mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

func (p *Printer) line(icon Icon, style lipgloss.Style, text string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
}

// Title prints a styled heading. Plain mode prints the text as-is.
func (p *Printer) Title(text string) {
	if p.mode == ModePlain {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Passed prints "✔ text".
func (p *Printer) Passed(text string) {
	p.line(IconPassed, Styles.Success, text)
}

// Failed prints "⚠ text".
func (p *Printer) Failed(text string) {
	p.line(IconFailed, Styles.Warning, text)
}

// Error prints "✗ text".
func (p *Printer) Error(text string) {
	p.line(IconError, Styles.Error, text)
}

// Results prints every passing path followed by every failing path, in the
// order given.
func (p *Printer) Results(passing, failing []string) {
	for _, path := range passing {
		p.Passed(path)
	}
	for _, path := range failing {
		p.Failed(path)
	}
}

// Summary prints a one-line count of passing and failing components.
func (p *Printer) Summary(passing, failing int) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "SUMMARY: passing=%d failing=%d total=%d\n", passing, failing, passing+failing)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		Styles.Success.Render(fmt.Sprintf("%d", passing)), Styles.Muted.Render("passing"),
		Styles.Warning.Render(fmt.Sprintf("%d", failing)), Styles.Muted.Render("failing"),
		Styles.Bold.Render(fmt.Sprintf("%d", passing+failing)), Styles.Muted.Render("total"),
	)
}
