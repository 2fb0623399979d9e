package markdown

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// word is a whitespace-delimited token. Adjacent spans with no whitespace
// between them stay in one word.
type word struct {
	parts []Span
	width int
}

func splitWords(spans []Span) []word {
	var words []word
	var cur word
	var b strings.Builder

	for _, sp := range spans {
		for _, r := range sp.Text {
			if unicode.IsSpace(r) {
				if b.Len() > 0 {
					cur.parts = append(cur.parts, Span{Text: b.String(), Style: sp.Style})
					b.Reset()
				}
				if len(cur.parts) > 0 {
					words = append(words, cur)
					cur = word{}
				}
				continue
			}
			b.WriteRune(r)
			cur.width += runewidth.RuneWidth(r)
		}
		if b.Len() > 0 {
			cur.parts = append(cur.parts, Span{Text: b.String(), Style: sp.Style})
			b.Reset()
		}
	}
	if len(cur.parts) > 0 {
		words = append(words, cur)
	}
	return words
}

// pushSpan appends text to the row, merging into the last span when the
// style matches.
func pushSpan(row Row, text string, style Style) Row {
	if n := len(row); n > 0 && row[n-1].Style == style {
		row[n-1].Text += text
		return row
	}
	return append(row, Span{Text: text, Style: style})
}

// wrap greedily fills rows of at most width cells. The space between two
// words takes the words' style when they match and base otherwise, so styled
// regions stay bounded. Words wider than a row are split by display width.
func wrap(spans []Span, width int, base Style) []Row {
	words := splitWords(spans)
	if len(words) == 0 {
		return []Row{{}}
	}
	if width < 1 {
		var row Row
		for i, w := range words {
			if i > 0 {
				row = pushSpan(row, " ", separatorStyle(row, w, base))
			}
			for _, p := range w.parts {
				row = pushSpan(row, p.Text, p.Style)
			}
		}
		return []Row{row}
	}

	var rows []Row
	var cur Row
	curW := 0

	for _, w := range words {
		if curW > 0 && curW+1+w.width > width {
			rows = append(rows, cur)
			cur, curW = nil, 0
		}

		if curW > 0 {
			cur = pushSpan(cur, " ", separatorStyle(cur, w, base))
			curW++
		}

		if w.width <= width {
			for _, p := range w.parts {
				cur = pushSpan(cur, p.Text, p.Style)
			}
			curW += w.width
			continue
		}

		for _, p := range w.parts {
			for _, r := range p.Text {
				rw := runewidth.RuneWidth(r)
				if curW > 0 && curW+rw > width {
					rows = append(rows, cur)
					cur, curW = nil, 0
				}
				cur = pushSpan(cur, string(r), p.Style)
				curW += rw
			}
		}
	}
	if len(cur) > 0 {
		rows = append(rows, cur)
	}
	return rows
}

func separatorStyle(row Row, next word, base Style) Style {
	if len(row) > 0 && row[len(row)-1].Style == next.parts[0].Style {
		return next.parts[0].Style
	}
	return base
}

// Wrap word-wraps plain text to width cells. Source newlines start new rows,
// whitespace runs collapse, and words wider than a row are broken. A width
// below one disables wrapping.
func Wrap(text string, width int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, r := range wrap([]Span{{Text: line}}, width, Style{}) {
			out = append(out, r.String())
		}
	}
	return out
}

// HardWrap breaks each source line every width cells without touching
// whitespace, keeping indentation and columns intact.
func HardWrap(text string, width int) []string {
	var out []string
	for _, line := range strings.Split(expandTabs(text), "\n") {
		if width < 1 {
			out = append(out, line)
			continue
		}
		var b strings.Builder
		w := 0
		for _, r := range line {
			rw := runewidth.RuneWidth(r)
			if w > 0 && w+rw > width {
				out = append(out, b.String())
				b.Reset()
				w = 0
			}
			b.WriteRune(r)
			w += rw
		}
		out = append(out, b.String())
	}
	return out
}
