package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
// - Default (white/black): primary text and values
// - Accent (soft cyan): view names, type names, identifiers
// - Muted (gray): column headers, hints, counts
// - No colored success/error - unicode symbols only

var (
	// Accent style for view names, type names, identifiers
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2"))

	// Muted style for headers, hints, secondary info
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2")).Bold(true)
)
