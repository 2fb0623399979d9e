// Package tui is the console's bubbletea driver: it owns the application
// state, renders the three buffers and turns keys and gateway traffic into
// state transitions.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/markdown"
)

// Layout constants.
const (
	nickWidth     = 5
	gutterWidth   = nickWidth + 3 // nick + " │ "
	gutterMinText = 10
	pageSize      = 8
	chromeRows    = 3 // header, status bar, input line
)

// spinnerFrames are shown in the status bar while a run is in flight.
var spinnerFrames = []string{"⠋", "⠙", "⠸", "⠴", "⠦", "⠇", "⠏", "⠶"}

// Colors, brand palette.
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // violet
	ColorSecondary = lipgloss.Color("#6366F1") // indigo
	ColorAccent    = lipgloss.Color("#F59E0B") // amber
	ColorInfo      = lipgloss.Color("#22D3EE") // cyan

	ColorSuccess = lipgloss.Color("#10B981") // emerald
	ColorError   = lipgloss.Color("#EF4444") // red
	ColorMuted   = lipgloss.Color("#6B7280") // gray-500
	ColorText    = lipgloss.Color("#E5E7EB") // gray-200
	ColorSubtle  = lipgloss.Color("#9CA3AF") // gray-400
)

// Role and chrome styles.
var (
	UserStyle      = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	SystemStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle     = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	ToolStyle      = lipgloss.NewStyle().Foreground(ColorAccent)
	Dimmed         = lipgloss.NewStyle().Foreground(ColorMuted)
	Separator      = lipgloss.NewStyle().Foreground(ColorMuted)

	// Bar is the header and status bar background.
	Bar = lipgloss.NewStyle().
		Foreground(ColorText).
		Background(ColorPrimary)

	// BarAccent highlights the brand and the active tab.
	BarAccent = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Background(ColorPrimary).
			Bold(true)

	plain = lipgloss.NewStyle()
)

// Markdown styles.
var (
	CodeStyle  = lipgloss.NewStyle().Foreground(ColorAccent)
	QuoteStyle = lipgloss.NewStyle().Foreground(ColorSubtle).Italic(true)
	H1Style    = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Underline(true)
	H2Style    = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	H3Style    = lipgloss.NewStyle().Bold(true)
)

// nickStyle is the gutter style for a role.
func nickStyle(r buffer.Role) lipgloss.Style {
	switch r {
	case buffer.User:
		return UserStyle
	case buffer.Assistant:
		return AssistantStyle
	case buffer.Error:
		return ErrorStyle
	case buffer.Tool:
		return ToolStyle
	default:
		return SystemStyle
	}
}

// bodyStyle is the text style for plain-wrapped roles.
func bodyStyle(r buffer.Role) lipgloss.Style {
	switch r {
	case buffer.Error:
		return ErrorStyle
	case buffer.SystemRole:
		return SystemStyle
	case buffer.Tool:
		return Dimmed
	default:
		return plain
	}
}

// spanStyle maps a markdown span style onto lipgloss.
func spanStyle(s markdown.Style) lipgloss.Style {
	switch {
	case s.Code:
		return CodeStyle
	case s.Dim:
		return Dimmed
	}
	var st lipgloss.Style
	switch s.Block {
	case markdown.BlockHeading:
		switch s.Level {
		case 1:
			st = H1Style
		case 2:
			st = H2Style
		default:
			st = H3Style
		}
	case markdown.BlockQuote:
		st = QuoteStyle
	default:
		st = plain
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Italic {
		st = st.Italic(true)
	}
	return st
}

// renderRow styles one laid-out markdown row.
func renderRow(row markdown.Row) string {
	var out string
	for _, sp := range row {
		out += spanStyle(sp.Style).Render(sp.Text)
	}
	return out
}
