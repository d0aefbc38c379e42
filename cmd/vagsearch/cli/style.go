// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles renders CLI output. All styles share one renderer bound to the
// output they are written to.
type Styles struct {
	Renderer *lipgloss.Renderer

	// Good marks a found glitch.
	Good lipgloss.Style
	// Bad marks a failed or dangerous outcome.
	Bad lipgloss.Style
	// Warn marks an exhausted search.
	Warn lipgloss.Style
	// Faint is for secondary detail such as probe coordinates.
	Faint lipgloss.Style
	// Title heads a section.
	Title lipgloss.Style
}

// NewStyles returns styles for w. When color is false, or w is not a
// terminal, every style renders plain text.
func NewStyles(w io.Writer, color bool) *Styles {
	var renderer *lipgloss.Renderer
	if color && IsTerminal(w) {
		renderer = lipgloss.NewRenderer(w)
	} else {
		renderer = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
		// ColorProfile re-detects from the environment unless set.
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Renderer: renderer,
		Good:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Bad:      renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warn:     renderer.NewStyle().Foreground(lipgloss.Color("214")),
		Faint:    renderer.NewStyle().Faint(true),
		Title:    renderer.NewStyle().Bold(true).Underline(true),
	}
}
