// Package tui provides the interactive transcript and trace explorer.
package tui

import (
	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#06B6D4") // Cyan
	successColor   = lipgloss.Color("#10B981") // Green
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#6B7280") // Gray
)

// Box styles
var (
	// BoxStyle is the main container style
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	// TitleStyle for main titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 2)

	// SectionHeaderStyle for detail view sections
	SectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(secondaryColor).
				Padding(0, 1).
				Margin(1, 0, 0, 0)
)

// Text styles
var (
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(secondaryColor)

	CursorStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	AttributeKeyStyle = lipgloss.NewStyle().
				Foreground(secondaryColor)
)

// Call kind styles
var (
	AgentCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")) // Blue

	ToolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")) // Amber

	UnknownCallStyle = lipgloss.NewStyle().
				Foreground(mutedColor)
)

// Help bar style
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)
)

// KindStyle returns the style for a call kind.
func KindStyle(kind trace.Kind) lipgloss.Style {
	switch kind {
	case trace.KindAgent:
		return AgentCallStyle
	case trace.KindMCP:
		return ToolCallStyle
	default:
		return UnknownCallStyle
	}
}
