// Package markdown lays out the subset of markdown agents produce into
// styled terminal rows. Every returned Row occupies exactly one terminal
// row at the requested width, so row counts can drive scroll arithmetic
// directly.
package markdown

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

const ruleMaxWidth = 40

// Block identifies the block construct a span belongs to.
type Block int

const (
	BlockNone Block = iota
	BlockHeading
	BlockQuote
)

// Style describes how a span is drawn. Level is the heading level for
// BlockHeading spans.
type Style struct {
	Bold   bool
	Italic bool
	Code   bool
	Dim    bool
	Block  Block
	Level  int
}

// Span is a run of text in one style.
type Span struct {
	Text  string
	Style Style
}

// Row is one terminal row.
type Row []Span

// String returns the row's text without styling.
func (r Row) String() string {
	var b strings.Builder
	for _, s := range r {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Width is the row's display width in cells.
func (r Row) Width() int {
	w := 0
	for _, s := range r {
		w += runewidth.StringWidth(s.Text)
	}
	return w
}

// Layout renders text into rows no wider than maxWidth cells. Fenced code
// lines are kept verbatim and may exceed the width. A maxWidth below one
// disables wrapping. The result always has at least one row.
func Layout(text string, maxWidth int) []Row {
	var rows []Row
	inCode := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inCode = !inCode
			continue
		}
		if inCode {
			rows = append(rows, Row{{Text: expandTabs(line), Style: Style{Code: true}}})
			continue
		}

		switch {
		case trimmed == "":
			rows = append(rows, Row{})

		case isRule(trimmed):
			w := ruleMaxWidth
			if maxWidth > 0 && maxWidth < w {
				w = maxWidth
			}
			rows = append(rows, Row{{Text: strings.Repeat("─", w), Style: Style{Dim: true}}})

		default:
			if level, body, ok := parseHeading(trimmed); ok {
				base := Style{Block: BlockHeading, Level: level}
				rows = append(rows, wrap(withBase(parseInline(body), base), maxWidth, base)...)
				continue
			}
			if body, ok := parseQuote(trimmed); ok {
				base := Style{Block: BlockQuote}
				inner := maxWidth - 2
				if maxWidth > 0 && inner < 1 {
					inner = 1
				}
				for _, r := range wrap(withBase(parseInline(body), base), inner, base) {
					rows = append(rows, append(Row{{Text: "│ ", Style: Style{Dim: true}}}, r...))
				}
				continue
			}
			if prefix, body, ok := parseListItem(line); ok {
				indent := runewidth.StringWidth(prefix)
				inner := maxWidth - indent
				if maxWidth > 0 && inner < 1 {
					inner = 1
				}
				for i, r := range wrap(parseInline(body), inner, Style{}) {
					lead := Span{Text: strings.Repeat(" ", indent)}
					if i == 0 {
						lead = Span{Text: prefix, Style: Style{Dim: true}}
					}
					rows = append(rows, append(Row{lead}, r...))
				}
				continue
			}
			rows = append(rows, wrap(parseInline(line), maxWidth, Style{})...)
		}
	}

	if len(rows) == 0 {
		rows = append(rows, Row{})
	}
	return rows
}

func isRule(line string) bool {
	var marker rune
	n := 0
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		if r != '-' && r != '*' && r != '_' {
			return false
		}
		if marker == 0 {
			marker = r
		} else if r != marker {
			return false
		}
		n++
	}
	return n >= 3
}

func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimRightFunc(line[level+1:], unicode.IsSpace), true
}

func parseQuote(line string) (string, bool) {
	if line == ">" {
		return "", true
	}
	if rest, ok := strings.CutPrefix(line, "> "); ok {
		return rest, true
	}
	return "", false
}

// parseListItem recognizes "- ", "* " and "N. " items, keeping leading
// indentation in the returned prefix.
func parseListItem(line string) (string, string, bool) {
	body := strings.TrimLeftFunc(line, unicode.IsSpace)
	pad := expandTabs(line[:len(line)-len(body)])

	if rest, ok := strings.CutPrefix(body, "- "); ok {
		return pad + "• ", rest, true
	}
	if rest, ok := strings.CutPrefix(body, "* "); ok {
		return pad + "• ", rest, true
	}

	digits := 0
	for digits < len(body) && body[digits] >= '0' && body[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		if rest, ok := strings.CutPrefix(body[digits:], ". "); ok {
			return pad + body[:digits] + ". ", rest, true
		}
	}
	return "", "", false
}

// withBase applies a block style to inline spans. Code and dim spans keep
// their own look.
func withBase(spans []Span, base Style) []Span {
	for i := range spans {
		spans[i].Style.Block = base.Block
		spans[i].Style.Level = base.Level
	}
	return spans
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
