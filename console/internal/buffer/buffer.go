// Package buffer holds the console's transcripts: ordered lines per logical
// buffer with independent scroll, auto-follow and unread state.
package buffer

import "slices"

// ID names one of the console's buffers.
type ID int

const (
	Chat ID = iota
	System
	Logs
)

// All lists buffers in tab order.
var All = []ID{Chat, System, Logs}

func (id ID) String() string {
	switch id {
	case Chat:
		return "chat"
	case System:
		return "system"
	case Logs:
		return "logs"
	default:
		return "unknown"
	}
}

// FromIndex maps a zero-based tab index to a buffer.
func FromIndex(i int) (ID, bool) {
	if i < 0 || i >= len(All) {
		return 0, false
	}
	return All[i], true
}

// Role is who produced a line.
type Role int

const (
	User Role = iota
	Assistant
	SystemRole
	Error
	Tool
)

// Label is the short nick shown in the chat gutter.
func (r Role) Label() string {
	switch r {
	case User:
		return "you"
	case Assistant:
		return "agent"
	case SystemRole:
		return "info"
	case Error:
		return "err"
	case Tool:
		return "tool"
	default:
		return "?"
	}
}

// Line is one transcript entry.
type Line struct {
	Role Role
	Text string
}

// Buffer is an ordered transcript. Scroll counts visual rows from the top.
type Buffer struct {
	ID         ID
	Lines      []Line
	Scroll     int
	AutoFollow bool
	Unread     int

	limit int
}

// New returns an empty buffer that follows new output.
func New(id ID) *Buffer {
	return &Buffer{ID: id, AutoFollow: true}
}

// NewLimited returns a buffer that keeps only the newest limit lines.
func NewLimited(id ID, limit int) *Buffer {
	b := New(id)
	b.limit = limit
	return b
}

// Push appends a line and returns its index. Pushes to a buffer that is not
// active count as unread.
func (b *Buffer) Push(line Line, isActive bool) int {
	b.Lines = append(b.Lines, line)
	b.trim()
	if !isActive {
		b.Unread++
	}
	return len(b.Lines) - 1
}

// Insert places lines before index at, which is clamped to the buffer.
// Lines at or after at move down by len(lines).
func (b *Buffer) Insert(at int, lines []Line, isActive bool) {
	at = min(max(at, 0), len(b.Lines))
	b.Lines = slices.Insert(b.Lines, at, lines...)
	b.trim()
	if !isActive {
		b.Unread += len(lines)
	}
}

func (b *Buffer) trim() {
	if b.limit > 0 && len(b.Lines) > b.limit {
		drop := len(b.Lines) - b.limit
		b.Lines = append(b.Lines[:0:0], b.Lines[drop:]...)
	}
}

// Len is the number of lines.
func (b *Buffer) Len() int { return len(b.Lines) }

// Line returns the line at i.
func (b *Buffer) Line(i int) (Line, bool) {
	if i < 0 || i >= len(b.Lines) {
		return Line{}, false
	}
	return b.Lines[i], true
}

// AppendText extends the text of the line at i.
func (b *Buffer) AppendText(i int, text string) bool {
	if i < 0 || i >= len(b.Lines) {
		return false
	}
	b.Lines[i].Text += text
	return true
}

// SetText replaces the text of the line at i.
func (b *Buffer) SetText(i int, text string) bool {
	if i < 0 || i >= len(b.Lines) {
		return false
	}
	b.Lines[i].Text = text
	return true
}

// Clear drops every line and resets scroll and unread state.
func (b *Buffer) Clear() {
	b.Lines = nil
	b.Scroll = 0
	b.AutoFollow = true
	b.Unread = 0
}

// MarkRead resets the unread counter.
func (b *Buffer) MarkRead() { b.Unread = 0 }

// ScrollUp moves the view n rows toward older output.
func (b *Buffer) ScrollUp(n int) {
	b.AutoFollow = false
	b.Scroll -= n
	if b.Scroll < 0 {
		b.Scroll = 0
	}
}

// ScrollDown moves the view n rows toward newer output. Ensure clamps it and
// resumes following once the bottom is reached.
func (b *Buffer) ScrollDown(n int) {
	b.AutoFollow = false
	b.Scroll += n
}

// ScrollToTop jumps to the oldest output.
func (b *Buffer) ScrollToTop() {
	b.AutoFollow = false
	b.Scroll = 0
}

// ScrollToBottom jumps to the newest output and follows it.
func (b *Buffer) ScrollToBottom() {
	b.AutoFollow = true
}

// MaxScroll is the largest useful offset for total rows in a viewport.
func MaxScroll(totalRows, viewportRows int) int {
	if viewportRows < 1 {
		viewportRows = 1
	}
	if totalRows <= viewportRows {
		return 0
	}
	return totalRows - viewportRows
}

// Ensure reconciles the offset with the current layout. A following buffer
// pins to the bottom; a scrolled buffer that has reached the bottom follows
// again.
func (b *Buffer) Ensure(totalRows, viewportRows int) {
	bottom := MaxScroll(totalRows, viewportRows)
	if b.AutoFollow {
		b.Scroll = bottom
		return
	}
	if b.Scroll < 0 {
		b.Scroll = 0
	}
	if b.Scroll >= bottom {
		b.Scroll = bottom
		b.AutoFollow = true
	}
}
