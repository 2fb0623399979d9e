package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/markdown"
	"github.com/gsv-labs/gsv/console/internal/sessionkey"
	"github.com/gsv-labs/gsv/console/internal/state"
)

// Every builder below returns one string per terminal row so the row count
// is the true visual height.

func chatRows(lines []buffer.Line, width int) []string {
	if len(lines) == 0 {
		return []string{Dimmed.Render(" No messages yet. Type /help to get started.")}
	}
	if width < gutterWidth+gutterMinText {
		return narrowRows(lines, width)
	}

	textWidth := width - gutterWidth
	first := Separator.Render(" │ ")
	cont := strings.Repeat(" ", nickWidth) + first
	rows := make([]string, 0, len(lines)*2)

	for _, l := range lines {
		nick := nickStyle(l.Role).Render(fmt.Sprintf("%*s", nickWidth, l.Role.Label()))
		for i, body := range bodyRows(l, textWidth) {
			if i == 0 {
				rows = append(rows, nick+first+body)
			} else {
				rows = append(rows, cont+body)
			}
		}
	}
	return rows
}

// bodyRows lays out a message body: markdown for the assistant, plain word
// wrap for everyone else.
func bodyRows(l buffer.Line, width int) []string {
	if l.Role == buffer.Assistant {
		laid := markdown.Layout(l.Text, width)
		out := make([]string, len(laid))
		for i, r := range laid {
			out[i] = renderRow(r)
		}
		return out
	}
	st := bodyStyle(l.Role)
	wrapped := markdown.Wrap(l.Text, width)
	for i, w := range wrapped {
		wrapped[i] = st.Render(w)
	}
	return wrapped
}

// narrowRows drops the gutter for terminals too small to afford it.
func narrowRows(lines []buffer.Line, width int) []string {
	textWidth := max(width-gutterWidth, 4)
	var rows []string
	for _, l := range lines {
		label := "[" + l.Role.Label() + "] "
		st := nickStyle(l.Role)
		for i, w := range markdown.Wrap(l.Text, textWidth) {
			if i == 0 {
				rows = append(rows, st.Render(label+w))
			} else {
				rows = append(rows, st.Render(strings.Repeat(" ", len(label))+w))
			}
		}
	}
	return rows
}

func logRows(lines []buffer.Line, width int) []string {
	if len(lines) == 0 {
		return []string{Dimmed.Render(" No log records yet.")}
	}
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		st := plain
		switch l.Role {
		case buffer.Error:
			st = ErrorStyle
		case buffer.SystemRole:
			st = Dimmed
		}
		for _, w := range markdown.HardWrap(l.Text, width) {
			rows = append(rows, st.Render(w))
		}
	}
	return rows
}

// systemRows renders the topology overview followed by the system event
// feed.
func systemRows(app *state.AppState, width int, now time.Time) []string {
	sys := SystemStyle.Render(fmt.Sprintf("%*s", nickWidth, "sys")) + Separator.Render(" │ ")
	body := strings.Repeat(" ", nickWidth) + Separator.Render(" │ ")
	var rows []string
	header := func(text string) { rows = append(rows, sys+text) }
	line := func(text string, dim bool) {
		if dim {
			text = Dimmed.Render(text)
		}
		rows = append(rows, body+text)
	}

	var up, down []state.Node
	for _, n := range app.Topology.Nodes() {
		if n.Connected {
			up = append(up, n)
		} else {
			down = append(down, n)
		}
	}
	header(fmt.Sprintf("Nodes (%d):", len(up)))
	if len(up) == 0 {
		line("  (none connected)", true)
	}
	for _, n := range up {
		tools := fmt.Sprintf("%d tools", n.ToolCount)
		if n.ToolCount == 1 {
			tools = "1 tool"
		}
		line(fmt.Sprintf("  %-16s %-8s %s  %s", n.ID, n.HostOS, tools, n.HostRole), false)
	}
	for _, n := range down {
		line(fmt.Sprintf("  %-16s (disconnected)", n.ID), true)
	}
	rows = append(rows, "")

	var channels []state.Channel
	for _, c := range app.Topology.Channels() {
		if c.Connected {
			channels = append(channels, c)
		}
	}
	header(fmt.Sprintf("Channels (%d):", len(channels)))
	if len(channels) == 0 {
		line("  (none connected)", true)
	}
	for _, c := range channels {
		since := "?"
		if !c.ConnectedAt.IsZero() {
			since = c.ConnectedAt.Local().Format("15:04:05")
		}
		line(fmt.Sprintf("  %s:%-12s connected %s", c.Channel, c.AccountID, since), false)
	}
	rows = append(rows, "")

	header("Session:")
	line("  "+sessionkey.DisplayName(app.SessionKey), false)
	if app.Status != "" {
		line("  status: "+app.Status, true)
	}
	if last := app.Topology.LastRefresh; !last.IsZero() {
		rows = append(rows, "")
		line("  last refresh: "+ago(now.Sub(last)), true)
	}

	if app.System.Len() > 0 {
		rows = append(rows, "")
		header("Events:")
		rows = append(rows, chatRows(app.System.Lines, width)...)
	}
	return rows
}

func ago(d time.Duration) string {
	s := int(d.Seconds())
	switch {
	case s < 2:
		return "just now"
	case s < 60:
		return fmt.Sprintf("%ds ago", s)
	default:
		return fmt.Sprintf("%dm ago", s/60)
	}
}

// headerBar is the title row: brand, buffer tabs and the topology summary.
func headerBar(app *state.AppState, width int) string {
	var b strings.Builder
	b.WriteString(BarAccent.Render(" GSV"))
	b.WriteString(Bar.Render(" │ "))
	for i, id := range buffer.All {
		label := fmt.Sprintf("%d:%s", i+1, id)
		switch {
		case id == app.Active:
			b.WriteString(BarAccent.Render("[" + label + "]"))
		case app.Buffer(id).Unread > 0:
			b.WriteString(BarAccent.Render(label))
		default:
			b.WriteString(Bar.Render(label))
		}
		b.WriteString(Bar.Render(" "))
	}
	b.WriteString(Bar.Render("│ " + app.Topology.Summary()))
	return fill(b.String(), width)
}

// statusBar shows the run status on the left and key hints on the right.
func statusBar(app *state.AppState, frame string, width int) string {
	left := " " + app.StatusLine(frame)
	right := fmt.Sprintf(" tools:%s │ /help /quit  PgUp/Dn ", app.Verbosity)
	gap := width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 0 {
		left = ansi.Truncate(left, max(width-ansi.StringWidth(right), 0), "…")
		gap = max(width-ansi.StringWidth(left)-ansi.StringWidth(right), 0)
	}
	return fill(Bar.Render(left+strings.Repeat(" ", gap)+right), width)
}

// fill pads or clips a styled row to exactly width cells.
func fill(row string, width int) string {
	if width <= 0 {
		return row
	}
	w := ansi.StringWidth(row)
	switch {
	case w > width:
		return ansi.Truncate(row, width, "")
	case w < width:
		return row + Bar.Render(strings.Repeat(" ", width-w))
	}
	return row
}
