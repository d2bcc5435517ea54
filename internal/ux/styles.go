// Package ux renders session results for the terminal.
package ux

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary     = lipgloss.Color("#8BC34A")
	Muted       = lipgloss.Color("#6b7685")
	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#FFC107")

	// Group colours as the game shows them, easiest first.
	Yellow = lipgloss.Color("#f9df6d")
	Green  = lipgloss.Color("#a0c35a")
	Blue   = lipgloss.Color("#b0c4ef")
	Purple = lipgloss.Color("#ba81c5")
)

// Styles holds the styles used by the report.
type Styles struct {
	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// DefaultStyles returns the report styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(Primary).Bold(true),
		Body:    lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Bold:    lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(Primary).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
	}
}
