// Package state is the console's model: buffers, run lifecycle tracking,
// input history and the gateway topology. The UI loop is its only writer.
package state

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/correlator"
	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/console/internal/run"
	"github.com/gsv-labs/gsv/pkg/protocol"
)

const (
	// MaxInputHistory bounds the input history.
	MaxInputHistory = 200
	// MaxLogLines bounds the Logs buffer.
	MaxLogLines = 1000
	// DefaultResponseTimeout is how long a run may stay silent.
	DefaultResponseTimeout = 120 * time.Second

	retiredMemory = 64
)

// AppState is everything the console renders.
type AppState struct {
	Chat   *buffer.Buffer
	System *buffer.Buffer
	Logs   *buffer.Buffer
	Active buffer.ID

	Topology SystemState

	SessionKey      string
	Status          string
	Verbosity       ToolVerbosity
	ResponseTimeout time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time

	waiting      bool
	waitingSince time.Time
	lastActivity time.Time

	activeRun run.Key
	hasActive bool
	runs      map[run.Key]run.Phase
	streams   map[run.Key]int
	retired   []run.Key

	history    []string
	historyIdx int

	// historyPending is set until the preview for the current session has
	// been applied.
	historyPending bool
}

// New returns the state for a fresh connection to session.
func New(session string) *AppState {
	return &AppState{
		Chat:            buffer.New(buffer.Chat),
		System:          buffer.New(buffer.System),
		Logs:            buffer.NewLimited(buffer.Logs, MaxLogLines),
		Active:          buffer.Chat,
		Topology:        newSystemState(),
		SessionKey:      session,
		ResponseTimeout: DefaultResponseTimeout,
		Now:             time.Now,
		runs:            make(map[run.Key]run.Phase),
		streams:         make(map[run.Key]int),
		historyIdx:      -1,
		historyPending:  true,
	}
}

// Buffer returns the buffer for id.
func (a *AppState) Buffer(id buffer.ID) *buffer.Buffer {
	switch id {
	case buffer.System:
		return a.System
	case buffer.Logs:
		return a.Logs
	default:
		return a.Chat
	}
}

// ActiveBuffer returns the visible buffer.
func (a *AppState) ActiveBuffer() *buffer.Buffer { return a.Buffer(a.Active) }

// SwitchBuffer makes id visible and marks it read.
func (a *AppState) SwitchBuffer(id buffer.ID) {
	a.Active = id
	a.Buffer(id).MarkRead()
}

func (a *AppState) push(id buffer.ID, role buffer.Role, text string) int {
	return a.Buffer(id).Push(buffer.Line{Role: role, Text: text}, a.Active == id)
}

// Push appends a chat line.
func (a *AppState) Push(role buffer.Role, text string) { a.push(buffer.Chat, role, text) }

// PushSystem appends a line to the System buffer.
func (a *AppState) PushSystem(role buffer.Role, text string) { a.push(buffer.System, role, text) }

// PushLog appends a line to the Logs buffer.
func (a *AppState) PushLog(role buffer.Role, text string) { a.push(buffer.Logs, role, text) }

// Apply folds one correlated gateway event into the state.
func (a *AppState) Apply(ev correlator.Event) {
	a.Touch()
	switch e := ev.(type) {
	case correlator.RunState:
		a.SetRunPhase(e.Run, e.Phase)
	case correlator.AssistantChunk:
		a.AppendChunk(e.Run, e.Text)
	case correlator.AssistantFinal:
		if a.FinalizeRun(e.Run, e.Text) {
			for _, tc := range e.ToolCalls {
				a.PushToolCall(tc)
			}
		}
	case correlator.ChatError:
		a.FailRun(e.Run, e.Text)
	case correlator.SystemEvent:
		a.applySystemEvent(e.Payload)
	case correlator.EvalResult:
		a.applyEvalResult(e.Result)
	}
}

// Touch records inbound activity; the response timeout measures silence.
func (a *AppState) Touch() { a.lastActivity = a.Now() }

// Waiting reports whether a response is outstanding.
func (a *AppState) Waiting() bool { return a.waiting }

// Phase returns the tracked phase of a run.
func (a *AppState) Phase(k run.Key) (run.Phase, bool) {
	p, ok := a.runs[k]
	return p, ok
}

// RunCount is the number of tracked runs.
func (a *AppState) RunCount() int { return len(a.runs) }

// ActiveRun returns the run the status line follows.
func (a *AppState) ActiveRun() (run.Key, bool) { return a.activeRun, a.hasActive }

// StreamLine returns the chat line a run is streaming into.
func (a *AppState) StreamLine(k run.Key) (int, bool) {
	i, ok := a.streams[k]
	return i, ok
}

// resolve maps the unattributed stream onto the active run when there is
// one.
func (a *AppState) resolve(k run.Key) run.Key {
	if k.Unattributed() && a.hasActive {
		return a.activeRun
	}
	return k
}

func (a *AppState) isRetired(k run.Key) bool {
	if k.Unattributed() {
		return false
	}
	for _, r := range a.retired {
		if r == k {
			return true
		}
	}
	return false
}

// SetRunPhase records a run's phase and makes it the active run. Phases
// for runs that already finished are ignored.
func (a *AppState) SetRunPhase(key run.Key, phase run.Phase) {
	k := a.resolve(key)
	if a.isRetired(k) {
		return
	}
	a.runs[k] = phase
	a.activeRun, a.hasActive = k, true
	if phase.IsActive() && !a.waiting {
		now := a.Now()
		a.waiting = true
		a.waitingSince = now
		a.lastActivity = now
	}
	a.settle()
}

// AppendChunk streams text into the run's open chat line, opening one if
// needed. An unattributed line is adopted by the first run to stream
// without a line of its own.
func (a *AppState) AppendChunk(key run.Key, text string) {
	if text == "" {
		return
	}
	k := a.resolve(key)
	if a.isRetired(k) {
		return
	}
	if idx, ok := a.streams[k]; ok && a.Chat.AppendText(idx, text) {
		return
	}
	if !k.Unattributed() {
		if idx, ok := a.streams[run.Key{}]; ok && a.Chat.AppendText(idx, text) {
			delete(a.streams, run.Key{})
			a.streams[k] = idx
			return
		}
	}
	a.streams[k] = a.push(buffer.Chat, buffer.Assistant, text)
}

// FinalizeRun completes a run. Non-empty text replaces the streamed line;
// empty text leaves it as streamed. It reports false for a duplicate final
// of a run that already finished.
func (a *AppState) FinalizeRun(key run.Key, text string) bool {
	k := a.resolve(key)
	if a.isRetired(k) {
		return false
	}
	idx, ok := a.takeStream(k)
	if !ok {
		idx, ok = a.takeStream(run.Key{})
	}
	a.retire(k)

	if ok {
		if text == "" || a.Chat.SetText(idx, text) {
			return true
		}
	}
	if text != "" {
		a.push(buffer.Chat, buffer.Assistant, text)
	}
	return true
}

// FailRun retires a run with an error line. Only that run's stream is
// dropped; other runs keep streaming.
func (a *AppState) FailRun(key run.Key, text string) {
	k := a.resolve(key)
	if a.isRetired(k) {
		return
	}
	delete(a.streams, k)
	a.retire(k)
	a.push(buffer.Chat, buffer.Error, text)
}

func (a *AppState) takeStream(k run.Key) (int, bool) {
	idx, ok := a.streams[k]
	if ok {
		delete(a.streams, k)
	}
	return idx, ok
}

func (a *AppState) retire(k run.Key) {
	delete(a.runs, k)
	if !k.Unattributed() {
		a.retired = append(a.retired, k)
		if len(a.retired) > retiredMemory {
			a.retired = a.retired[len(a.retired)-retiredMemory:]
		}
	}
	if a.hasActive && a.activeRun == k {
		a.activeRun, a.hasActive = a.nextRun()
	}
	a.settle()
}

// nextRun picks the run the status line should follow next: the first
// active run by id, else the first tracked run.
func (a *AppState) nextRun() (run.Key, bool) {
	keys := a.sortedRuns()
	for _, k := range keys {
		if a.runs[k].IsActive() {
			return k, true
		}
	}
	if len(keys) > 0 {
		return keys[0], true
	}
	return run.Key{}, false
}

func (a *AppState) sortedRuns() []run.Key {
	keys := make([]run.Key, 0, len(a.runs))
	for k := range a.runs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

func (a *AppState) anyActive() bool {
	for _, p := range a.runs {
		if p.IsActive() {
			return true
		}
	}
	return false
}

// settle stops waiting once no run is active.
func (a *AppState) settle() {
	if !a.anyActive() {
		a.waiting = false
		a.waitingSince = time.Time{}
	}
}

// ClearRuns forgets every run and stream.
func (a *AppState) ClearRuns() {
	clear(a.runs)
	clear(a.streams)
	a.activeRun, a.hasActive = run.Key{}, false
	a.waiting = false
	a.waitingSince = time.Time{}
}

// CheckTimeout ends the wait when nothing arrived for ResponseTimeout. It
// reports whether the timeout fired.
func (a *AppState) CheckTimeout(now time.Time) bool {
	if !a.waiting || now.Sub(a.lastActivity) <= a.ResponseTimeout {
		return false
	}
	a.push(buffer.Chat, buffer.Error,
		fmt.Sprintf("Timeout after %d seconds waiting for response", int(a.ResponseTimeout/time.Second)))
	a.ClearRuns()
	return true
}

// BeginSend shows an outgoing message and starts waiting for its reply.
func (a *AppState) BeginSend(text string) {
	a.push(buffer.Chat, buffer.User, text)
	now := a.Now()
	a.Status = ""
	a.waiting = true
	a.waitingSince = now
	a.lastActivity = now
}

// ApplySendResult folds a chat.send acknowledgement into the state. It
// returns the run id the correlator should register, if any.
func (a *AppState) ApplySendResult(res events.SendResult) string {
	if res.Response != "" {
		a.push(buffer.Chat, buffer.SystemRole, res.Response)
	}
	if res.Error != "" {
		a.push(buffer.Chat, buffer.Error, "send failed: "+res.Error)
	}

	switch {
	case res.Directive:
		if res.RunID != "" {
			k := run.NewKey(res.RunID)
			delete(a.streams, k)
			a.retire(k)
		}
		a.settle()
		return ""

	case res.RunID != "":
		k := run.NewKey(res.RunID)
		if a.isRetired(k) {
			return ""
		}
		if _, seen := a.runs[k]; !seen {
			phase := run.Queued
			if res.HasPhase {
				phase = res.Phase
			}
			a.SetRunPhase(k, phase)
		}
		return res.RunID

	case res.Error != "":
		a.settle()
		return ""

	default:
		a.push(buffer.Chat, buffer.SystemRole, "assistant state unknown; still waiting for response")
		return ""
	}
}

// SendFailed reports a chat.send that never reached the gateway.
func (a *AppState) SendFailed(err error) {
	a.ClearRuns()
	a.push(buffer.Chat, buffer.Error, "send failed: "+err.Error())
}

// Clear wipes the conversation and all run state. Input history survives.
func (a *AppState) Clear() {
	a.Chat.Clear()
	a.ClearRuns()
	a.historyPending = false
	a.Status = "ready"
	a.push(buffer.Chat, buffer.SystemRole, "cleared conversation")
}

// SwitchSession makes key the active session, drops the chat and run state
// and waits for the new session's history.
func (a *AppState) SwitchSession(key string) {
	a.SessionKey = key
	a.ClearRuns()
	a.Chat.Clear()
	a.Status = "loading history"
	a.historyPending = true
}

// HistoryPending reports whether the current session's history has not
// been applied yet.
func (a *AppState) HistoryPending() bool { return a.historyPending }

// LoadHistory places a session.preview payload at the top of the chat,
// ahead of anything pushed while it was loading, and returns how many lines
// were loaded. note, when set, follows the summary. Runs and streams started
// in the meantime are kept. Only the first load per session applies.
func (a *AppState) LoadHistory(payload events.Doc, note string) int {
	if !a.historyPending {
		return 0
	}

	var lines []buffer.Line
	add := func(role buffer.Role, text string) {
		lines = append(lines, buffer.Line{Role: role, Text: text})
	}

	total, _ := payload.Int("messageCount")
	loaded := 0
	for _, msg := range payload.Docs("messages") {
		for _, item := range events.HistoryItems(msg) {
			text := item.Text
			if item.Role == buffer.Tool {
				if a.Verbosity == ToolsQuiet {
					continue
				}
				if a.Verbosity == ToolsNormal {
					text = events.TruncateToolResult(text)
				}
			}
			add(item.Role, text)
			loaded++
		}
	}

	switch {
	case loaded > 0:
		add(buffer.SystemRole, fmt.Sprintf("Loaded %d of %d prior messages", loaded, total))
	case total == 0:
		add(buffer.SystemRole, "No prior messages")
	default:
		add(buffer.SystemRole, fmt.Sprintf("No displayable prior messages (%d total)", total))
	}
	if note != "" {
		add(buffer.SystemRole, note)
	}
	a.insertHistory(lines)
	return loaded
}

// HistoryFailed reports a failed preview in place of the history.
func (a *AppState) HistoryFailed(err error, note string) {
	if !a.historyPending {
		return
	}
	lines := []buffer.Line{{Role: buffer.Error, Text: "Failed to load session history: " + err.Error()}}
	if note != "" {
		lines = append(lines, buffer.Line{Role: buffer.SystemRole, Text: note})
	}
	a.insertHistory(lines)
}

func (a *AppState) insertHistory(lines []buffer.Line) {
	a.Chat.Insert(0, lines, a.Active == buffer.Chat)
	for k, i := range a.streams {
		a.streams[k] = i + len(lines)
	}
	a.historyPending = false
	if a.Status == "loading history" || a.Status == "connecting" {
		a.Status = "connected"
	}
}

// PushToolCall shows a tool call at the current verbosity.
func (a *AppState) PushToolCall(tc events.ToolCall) {
	switch a.Verbosity {
	case ToolsQuiet:
		return
	case ToolsVerbose:
		a.push(buffer.Chat, buffer.Tool, tc.Line())
	default:
		a.push(buffer.Chat, buffer.Tool, "▸ "+tc.Name)
	}
}

// RunLabel describes the active run as "<phase> <short id>".
func (a *AppState) RunLabel() (string, bool) {
	k, ok := a.activeRun, a.hasActive
	if !ok {
		keys := a.sortedRuns()
		if len(keys) == 0 {
			return "", false
		}
		k = keys[0]
	}
	return a.runs[k].Label() + " " + k.Short(), true
}

// RunSummary lists tracked runs for /status.
func (a *AppState) RunSummary() string {
	keys := a.sortedRuns()
	if len(keys) == 0 {
		return "none"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = a.runs[k].Label() + " " + k.Short()
	}
	return strings.Join(parts, ", ")
}

// StatusLine renders the status bar text. frame is the current spinner
// frame.
func (a *AppState) StatusLine(frame string) string {
	if !a.waiting {
		if a.Status != "" {
			return a.Status
		}
		return "ready"
	}
	label, ok := a.RunLabel()
	if !ok {
		label = run.Unknown.Label()
	}
	elapsed := 0
	if !a.waitingSince.IsZero() {
		elapsed = int(a.Now().Sub(a.waitingSince) / time.Second)
	}
	line := fmt.Sprintf("%s %s (%ds)", frame, label, elapsed)
	if n := len(a.runs); n > 1 {
		line += fmt.Sprintf(" (%d queued)", n-1)
	}
	return line
}

func (a *AppState) applySystemEvent(d events.Doc) {
	event, _ := d.Str("event")
	action, _ := d.Str("action")

	switch event {
	case "system.node":
		id := strOr(d, "nodeId", "?")
		switch action {
		case "connected":
			tools, _ := d.Int("toolCount")
			hostOS, _ := d.Str("hostOs")
			hostRole, _ := d.Str("hostRole")
			a.Topology.NodeConnected(id, int(tools), hostOS, hostRole)
			if hostOS == "" {
				hostOS = "?"
			}
			a.PushSystem(buffer.SystemRole, fmt.Sprintf("node connected: %s (%s, %d tools)", id, hostOS, tools))
		case "disconnected":
			a.Topology.NodeDisconnected(id)
			a.PushSystem(buffer.Error, "node disconnected: "+id)
		}

	case "system.channel":
		channel := strOr(d, "channel", "?")
		account := strOr(d, "accountId", "default")
		connected, _ := d.Bool("connected")
		var at time.Time
		if connected {
			at = a.Now()
		}
		a.Topology.ChannelStatus(channel, account, connected, at)
		if connected {
			a.PushSystem(buffer.SystemRole, "channel connected: "+channel+":"+account)
		} else {
			a.PushSystem(buffer.Error, "channel disconnected: "+channel+":"+account)
		}
	}
}

func (a *AppState) applyEvalResult(r protocol.SurfaceEvalResult) {
	if !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "unknown error"
		}
		a.PushSystem(buffer.Error, fmt.Sprintf("eval %s on %s failed: %s", r.EvalID, r.SurfaceID, msg))
		return
	}
	result := string(r.Result)
	if result == "" {
		result = "null"
	}
	a.PushSystem(buffer.SystemRole, fmt.Sprintf("eval %s on %s: %s", r.EvalID, r.SurfaceID, result))
}

// AddHistory records a submitted line. Blank lines and repeats of the
// previous entry are skipped; it reports whether the line was added.
func (a *AppState) AddHistory(line string) bool {
	a.historyIdx = -1
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if n := len(a.history); n > 0 && a.history[n-1] == line {
		return false
	}
	a.history = append(a.history, line)
	if len(a.history) > MaxInputHistory {
		a.history = a.history[len(a.history)-MaxInputHistory:]
	}
	return true
}

// SetHistory seeds the input history, oldest first.
func (a *AppState) SetHistory(lines []string) {
	a.history = nil
	for _, l := range lines {
		a.AddHistory(l)
	}
}

// History returns the input history, oldest first.
func (a *AppState) History() []string { return a.history }

// HistoryUp steps to an older entry.
func (a *AppState) HistoryUp() (string, bool) {
	if len(a.history) == 0 {
		return "", false
	}
	switch {
	case a.historyIdx < 0:
		a.historyIdx = len(a.history) - 1
	case a.historyIdx > 0:
		a.historyIdx--
	}
	return a.history[a.historyIdx], true
}

// HistoryDown steps to a newer entry. Stepping past the newest entry
// returns an empty line and leaves history browsing.
func (a *AppState) HistoryDown() (string, bool) {
	if a.historyIdx < 0 {
		return "", false
	}
	if a.historyIdx+1 >= len(a.history) {
		a.historyIdx = -1
		return "", true
	}
	a.historyIdx++
	return a.history[a.historyIdx], true
}
