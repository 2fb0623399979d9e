// Package correlator decides which gateway events belong to the session on
// screen and turns them into typed UI events.
package correlator

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/console/internal/run"
	"github.com/gsv-labs/gsv/console/internal/sessionkey"
	"github.com/gsv-labs/gsv/pkg/protocol"
)

// Event is a UI event produced from a gateway event.
type Event interface {
	isEvent()
}

// RunState moves a run to a new phase.
type RunState struct {
	Run   run.Key
	Phase run.Phase
}

// AssistantChunk is streamed assistant text for a run.
type AssistantChunk struct {
	Run  run.Key
	Text string
}

// AssistantFinal completes a run. An empty Text keeps whatever was streamed.
type AssistantFinal struct {
	Run       run.Key
	Text      string
	ToolCalls []events.ToolCall
}

// ChatError reports a failed run.
type ChatError struct {
	Run  run.Key
	Text string
}

// SystemEvent carries a node or channel state change.
type SystemEvent struct {
	Payload events.Doc
}

// EvalResult carries the outcome of a surface script evaluation.
type EvalResult struct {
	Result protocol.SurfaceEvalResult
}

func (RunState) isEvent()       {}
func (AssistantChunk) isEvent() {}
func (AssistantFinal) isEvent() {}
func (ChatError) isEvent()      {}
func (SystemEvent) isEvent()    {}
func (EvalResult) isEvent()     {}

// Router filters inbound events down to the active session. Route runs on
// the connection's read goroutine while the UI loop changes the active
// session and registers runs, so the routing table is guarded.
type Router struct {
	mu     sync.Mutex
	active string
	runs   map[string]string // run id -> normalized session key

	logger *slog.Logger
}

// NewRouter returns a Router for session.
func NewRouter(session string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		active: sessionkey.Normalize(session),
		runs:   make(map[string]string),
		logger: logger.With("component", "correlator"),
	}
}

// ActiveSession returns the normalized active session key.
func (r *Router) ActiveSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActiveSession switches sessions. Registrations for the previous session
// are dropped: its events are discarded from now on.
func (r *Router) SetActiveSession(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = sessionkey.Normalize(key)
	clear(r.runs)
}

// Register records that runID belongs to session, so events that carry
// only the run id are still accepted.
func (r *Router) Register(runID, session string) {
	if runID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = sessionkey.Normalize(session)
}

// Retire forgets a run.
func (r *Router) Retire(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Reset forgets every registered run.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.runs)
}

// Route converts one gateway event into UI events, in order. Events for
// other sessions, unknown event names and undecodable payloads yield nil.
func (r *Router) Route(evt protocol.Event) []Event {
	switch evt.Event {
	case protocol.EventSystem:
		doc, err := events.ParseDoc(evt.Payload)
		if err != nil || len(doc) == 0 {
			r.logger.Debug("dropping system event", "error", err)
			return nil
		}
		return []Event{SystemEvent{Payload: doc}}

	case protocol.EventSurfaceEvalResult:
		var res protocol.SurfaceEvalResult
		if err := json.Unmarshal(evt.Payload, &res); err != nil {
			r.logger.Warn("bad surface eval result", "error", err)
			return nil
		}
		return []Event{EvalResult{Result: res}}

	case protocol.EventChat:
		doc, err := events.ParseDoc(evt.Payload)
		if err != nil {
			r.logger.Warn("bad chat payload", "error", err)
			return nil
		}
		if len(doc) == 0 {
			return nil
		}
		return r.routeChat(doc)

	default:
		ctl, ok, err := protocol.DecodeTransferControl(evt.Event, evt.Payload)
		switch {
		case err != nil:
			r.logger.Warn("bad transfer control message", "event", evt.Event, "error", err)
		case ok:
			r.logger.Debug("transfer control message", "event", evt.Event, "transfer_id", ctl.ID())
		default:
			r.logger.Debug("ignoring event", "event", evt.Event)
		}
		return nil
	}
}

func (r *Router) routeChat(doc events.Doc) []Event {
	runID := events.RunID(doc)
	if !r.accept(doc, runID) {
		r.logger.Debug("dropping chat event for another session", "run_id", runID)
		return nil
	}

	key := run.NewKey(runID)
	rawState, _ := doc.Str("state")
	state := events.Classify(rawState)
	content := events.Extract(doc)

	var out []Event
	if phase, ok := state.RunPhase(); ok {
		out = append(out, RunState{Run: key, Phase: phase})
	}

	switch state {
	case events.StateStreaming:
		if content.Text != "" {
			out = append(out, AssistantChunk{Run: key, Text: content.Text})
		}

	case events.StateFinal:
		r.Retire(runID)
		out = append(out, AssistantFinal{Run: key, Text: content.Text, ToolCalls: content.ToolCalls})

	case events.StateError:
		r.Retire(runID)
		text := content.Text
		if text == "" {
			text, _ = doc.Str("error")
		}
		if text == "" {
			text = "run failed"
		}
		out = append(out, ChatError{Run: key, Text: text})

	case events.StateUnknown:
		if !content.Empty() {
			r.Retire(runID)
			out = append(out, AssistantFinal{Run: key, Text: content.Text, ToolCalls: content.ToolCalls})
		} else if msg, ok := doc.Str("error"); ok {
			r.Retire(runID)
			out = append(out, ChatError{Run: key, Text: msg})
		}
	}
	return out
}

// accept applies the session filter: the payload's own session key must
// match the active session, or its run must be registered to it.
func (r *Router) accept(doc events.Doc, runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := doc.Str("sessionKey"); ok && sessionkey.Normalize(key) == r.active {
		return true
	}
	if runID == "" {
		return false
	}
	session, ok := r.runs[runID]
	return ok && session == r.active
}
