package events

import (
	"sort"
	"strings"
)

const (
	argMaxRunes  = 60
	argKeepRunes = 57
)

// ToolCall is a tool invocation found in message content. Arguments is the
// flattened key=value rendering of the call's arguments.
type ToolCall struct {
	Name      string
	Arguments string
}

// Line renders the call as a transcript line.
func (tc ToolCall) Line() string {
	if tc.Arguments == "" {
		return "▸ " + tc.Name
	}
	return "▸ " + tc.Name + "  " + tc.Arguments
}

// Content is the displayable part of a chat payload.
type Content struct {
	Text      string
	ToolCalls []ToolCall
}

// Empty reports whether there is neither text nor a tool call.
func (c Content) Empty() bool {
	return c.Text == "" && len(c.ToolCalls) == 0
}

// Extract pulls text and tool calls out of a chat payload. It looks at
// message.content, then message.text, then text.
func Extract(d Doc) Content {
	if msg, ok := d.Obj("message"); ok {
		if content, ok := msg.Get("content"); ok {
			return extractBlocks(content)
		}
		if text, ok := msg.Str("text"); ok {
			return Content{Text: text}
		}
	}
	if text, ok := d.Str("text"); ok {
		return Content{Text: text}
	}
	return Content{}
}

func extractBlocks(content any) Content {
	switch c := content.(type) {
	case string:
		return Content{Text: c}
	case []any:
		var out Content
		var parts []string
		for _, v := range c {
			block, ok := asDoc(v)
			if !ok {
				continue
			}
			kind, _ := block.Str("type")
			switch kind {
			case "text":
				if text, _ := block.Str("text"); text != "" {
					parts = append(parts, text)
				}
			case "toolCall":
				name, ok := block.Str("name")
				if !ok {
					continue
				}
				tc := ToolCall{Name: name}
				if args, ok := block.Get("arguments"); ok {
					tc.Arguments = formatToolArgs(args)
				}
				out.ToolCalls = append(out.ToolCalls, tc)
			}
		}
		out.Text = strings.Join(parts, "\n")
		return out
	default:
		return Content{Text: compactJSON(c)}
	}
}

// formatToolArgs flattens an arguments object into key=value pairs in key
// order, separated by two spaces.
func formatToolArgs(args any) string {
	switch a := args.(type) {
	case string:
		return a
	case map[string]any:
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+formatArgValue(a[k]))
		}
		return strings.Join(pairs, "  ")
	default:
		return compactJSON(a)
	}
}

func formatArgValue(v any) string {
	switch val := v.(type) {
	case string:
		if r := []rune(val); len(r) > argMaxRunes {
			return `"` + string(r[:argKeepRunes]) + `..."`
		}
		return `"` + val + `"`
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		raw := compactJSON(val)
		if r := []rune(raw); len(r) > argMaxRunes {
			return string(r[:argKeepRunes]) + "..."
		}
		return raw
	}
}

// FormatContent flattens a content value to text, listing tool calls as
// "[Tool: name]" lines.
func FormatContent(content any) string {
	c := extractBlocks(content)
	var parts []string
	if c.Text != "" {
		parts = append(parts, c.Text)
	}
	for _, tc := range c.ToolCalls {
		parts = append(parts, "[Tool: "+tc.Name+"]")
	}
	return strings.Join(parts, "\n")
}
