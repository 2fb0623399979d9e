// Package run names agent runs and the phases they move through.
package run

// Phase is the lifecycle position of a run.
type Phase int

const (
	Unknown Phase = iota
	Queued
	Running
	Streaming
	Finalizing
	Failed
)

// IsActive reports whether the run is still expected to produce output.
func (p Phase) IsActive() bool {
	return p == Queued || p == Running || p == Streaming
}

// Label is the short status-line word for the phase.
func (p Phase) Label() string {
	switch p {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Failed:
		return "failed"
	default:
		return "processing"
	}
}

func (p Phase) String() string { return p.Label() }

// Key identifies a run. The zero Key is the unattributed stream: output that
// arrived without a run id.
type Key struct {
	ID string
}

// NewKey returns the key for id. An empty id yields the unattributed key.
func NewKey(id string) Key { return Key{ID: id} }

// Unattributed reports whether k is the unattributed stream.
func (k Key) Unattributed() bool { return k.ID == "" }

// Short is the abbreviated id shown in the status line.
func (k Key) Short() string {
	if k.Unattributed() {
		return "local"
	}
	r := []rune(k.ID)
	if len(r) <= 8 {
		return k.ID
	}
	return string(r[:8])
}

func (k Key) String() string {
	if k.Unattributed() {
		return "<unattributed>"
	}
	return k.ID
}
