package events

import (
	"fmt"
	"strings"

	"github.com/gsv-labs/gsv/console/internal/buffer"
)

// ToolResultLines is how many body lines of a tool result survive
// truncation at normal verbosity.
const ToolResultLines = 3

// HistoryItem is one transcript line recovered from a stored message.
type HistoryItem struct {
	Role buffer.Role
	Text string
}

// HistoryItems decomposes a session.preview message into transcript lines.
// Tool results become a "▸ name result" header plus body, assistant turns
// become their trimmed text followed by one line per tool call. Messages
// without displayable text yield nothing.
func HistoryItems(msg Doc) []HistoryItem {
	role, _ := msg.Str("role")
	isError, _ := msg.Bool("isError")

	switch role {
	case "toolResult":
		name, ok := msg.Str("toolName")
		if !ok {
			name = "tool"
		}
		var body string
		if content, ok := msg.Get("content"); ok {
			if s, ok := content.(string); ok {
				body = s
			} else {
				body = FormatContent(content)
			}
		}
		header := "▸ " + name + " result"
		r := buffer.Tool
		if isError {
			header = "▸ " + name + " error"
			r = buffer.Error
		}
		text := header
		if body != "" {
			text += "\n" + body
		}
		return []HistoryItem{{Role: r, Text: text}}

	case "assistant":
		var c Content
		if content, ok := msg.Get("content"); ok {
			c = extractBlocks(content)
		}
		var items []HistoryItem
		if text := strings.TrimSpace(c.Text); text != "" {
			items = append(items, HistoryItem{Role: buffer.Assistant, Text: text})
		}
		for _, tc := range c.ToolCalls {
			items = append(items, HistoryItem{Role: buffer.Tool, Text: tc.Line()})
		}
		return items

	default:
		var text string
		if content, ok := msg.Get("content"); ok {
			text = FormatContent(content)
		} else {
			text, _ = msg.Str("text")
		}
		if role == "system" {
			text = strings.TrimSpace(text)
		}
		if text == "" {
			return nil
		}
		r := buffer.SystemRole
		switch role {
		case "user":
			r = buffer.User
		case "error":
			r = buffer.Error
		}
		return []HistoryItem{{Role: r, Text: text}}
	}
}

// TruncateLines keeps the first max lines of text and notes how many were
// hidden.
func TruncateLines(text string, max int) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) <= max {
		return text
	}
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n  (%d more lines)", len(lines)-max)
}

// TruncateToolResult shortens the body of a "header\nbody" tool line while
// keeping the header.
func TruncateToolResult(text string) string {
	header, body, ok := strings.Cut(text, "\n")
	if !ok {
		return text
	}
	if body == "" {
		return header
	}
	return header + "\n" + TruncateLines(body, ToolResultLines)
}
