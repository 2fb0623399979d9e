package state

import "strings"

// ToolVerbosity controls how tool calls and results appear in chat.
type ToolVerbosity int

const (
	// ToolsNormal shows tool names and truncated results.
	ToolsNormal ToolVerbosity = iota
	// ToolsQuiet hides tool lines.
	ToolsQuiet
	// ToolsVerbose shows arguments and full results.
	ToolsVerbose
)

func (v ToolVerbosity) String() string {
	switch v {
	case ToolsQuiet:
		return "quiet"
	case ToolsVerbose:
		return "verbose"
	default:
		return "normal"
	}
}

// Describe is the confirmation shown when the level changes.
func (v ToolVerbosity) Describe() string {
	switch v {
	case ToolsQuiet:
		return "Tool display: quiet (hidden)"
	case ToolsVerbose:
		return "Tool display: verbose (names + args + full results)"
	default:
		return "Tool display: normal (names shown, results truncated)"
	}
}

// ParseToolVerbosity accepts the level names and their short aliases.
func ParseToolVerbosity(s string) (ToolVerbosity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "q", "off", "hide":
		return ToolsQuiet, true
	case "normal", "n", "default":
		return ToolsNormal, true
	case "verbose", "v", "full", "show":
		return ToolsVerbose, true
	default:
		return ToolsNormal, false
	}
}
