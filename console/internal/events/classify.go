package events

import (
	"strings"

	"github.com/gsv-labs/gsv/console/internal/run"
)

// State is the normalized lifecycle state of a chat event.
type State int

const (
	StateUnknown State = iota
	StateQueued
	StateStarted
	StateStreaming
	StateFinal
	StateError
)

var stateNames = map[string]State{
	"queued":           StateQueued,
	"pending":          StateQueued,
	"started":          StateStarted,
	"running":          StateStarted,
	"in_progress":      StateStarted,
	"delta":            StateStreaming,
	"partial":          StateStreaming,
	"streaming":        StateStreaming,
	"final":            StateFinal,
	"done":             StateFinal,
	"complete":         StateFinal,
	"completed":        StateFinal,
	"finished":         StateFinal,
	"finalized":        StateFinal,
	"complete_success": StateFinal,
	"error":            StateError,
	"failed":           StateError,
	"aborted":          StateError,
	"cancelled":        StateError,
	"timeout":          StateError,
}

// Classify maps a raw status string onto a State. Matching ignores case and
// surrounding whitespace; unrecognized values are StateUnknown.
func Classify(raw string) State {
	return stateNames[strings.ToLower(strings.TrimSpace(raw))]
}

// RunPhase is the phase a run enters on this state. StateUnknown has none.
func (s State) RunPhase() (run.Phase, bool) {
	switch s {
	case StateQueued:
		return run.Queued, true
	case StateStarted:
		return run.Running, true
	case StateStreaming:
		return run.Streaming, true
	case StateFinal:
		return run.Finalizing, true
	case StateError:
		return run.Failed, true
	default:
		return run.Unknown, false
	}
}

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStarted:
		return "started"
	case StateStreaming:
		return "streaming"
	case StateFinal:
		return "final"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RunID returns the trimmed runId of a payload, or "" when absent.
func RunID(d Doc) string {
	s, _ := d.Str("runId")
	return strings.TrimSpace(s)
}
