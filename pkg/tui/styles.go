// Package tui implements a terminal user interface for stepping a
// traced run: source on the left, captured state on the right, one
// event per continue.
package tui

import "github.com/charmbracelet/lipgloss"

// Event glyphs convey meaning without relying on color alone.
const (
	GlyphPaused    = "▸"
	GlyphRunning   = "⟳"
	GlyphCompleted = "✓"
	GlyphFailed    = "✗"
	GlyphTimeout   = "⧖"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var runBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Source panel styles ---

var (
	lineNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	lineCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	lineNumber = lipgloss.NewStyle().
			Faint(true)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	localName = lipgloss.NewStyle().
			Foreground(colorCyan)

	localValue = lipgloss.NewStyle().
			Foreground(colorWhite)

	statusGood = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	statusBad = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)

// --- Footer styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Faint(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorCyan)
)
