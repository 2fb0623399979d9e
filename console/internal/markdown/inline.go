package markdown

import "strings"

// parseInline splits a line into styled spans. Precedence: `code`, ***,
// **, *, then [text](url). Unterminated backticks are literal; unbalanced
// emphasis markers simply toggle to the end of the line.
func parseInline(text string) []Span {
	chars := []rune(text)
	var spans []Span
	var buf strings.Builder
	var style Style

	flush := func() {
		if buf.Len() > 0 {
			spans = append(spans, Span{Text: buf.String(), Style: style})
			buf.Reset()
		}
	}

	for i := 0; i < len(chars); {
		switch ch := chars[i]; ch {
		case '`':
			end := indexRune(chars, '`', i+1)
			if end < 0 {
				buf.WriteRune(ch)
				i++
				continue
			}
			flush()
			spans = append(spans, Span{Text: string(chars[i+1 : end]), Style: Style{Code: true}})
			i = end + 1

		case '*':
			flush()
			n := 0
			for i+n < len(chars) && chars[i+n] == '*' {
				n++
			}
			switch {
			case n >= 3:
				style.Bold = !style.Bold
				style.Italic = !style.Italic
				i += 3
			case n == 2:
				style.Bold = !style.Bold
				i += 2
			default:
				style.Italic = !style.Italic
				i++
			}

		case '[':
			label, url, next, ok := parseLink(chars, i)
			if !ok {
				buf.WriteRune(ch)
				i++
				continue
			}
			flush()
			spans = append(spans,
				Span{Text: label, Style: style},
				Span{Text: " (" + url + ")", Style: Style{Dim: true}},
			)
			i = next

		default:
			buf.WriteRune(ch)
			i++
		}
	}
	flush()
	return spans
}

// parseLink parses [label](url) starting at the '[' at start. The url may
// contain balanced parentheses. next is the index after the closing ')'.
func parseLink(chars []rune, start int) (label, url string, next int, ok bool) {
	closeBracket := indexRune(chars, ']', start+1)
	if closeBracket < 0 || closeBracket+1 >= len(chars) || chars[closeBracket+1] != '(' {
		return "", "", 0, false
	}
	urlStart := closeBracket + 2
	depth := 1
	end := urlStart
	for ; end < len(chars); end++ {
		switch chars[end] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 {
		return "", "", 0, false
	}
	return string(chars[start+1 : closeBracket]), string(chars[urlStart:end]), end + 1, true
}

func indexRune(chars []rune, target rune, from int) int {
	for j := from; j < len(chars); j++ {
		if chars[j] == target {
			return j
		}
	}
	return -1
}
