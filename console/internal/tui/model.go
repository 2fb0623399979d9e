package tui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/commands"
	"github.com/gsv-labs/gsv/console/internal/correlator"
	"github.com/gsv-labs/gsv/console/internal/eventbus"
	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/console/internal/sessionkey"
	"github.com/gsv-labs/gsv/console/internal/state"
)

// Welcome is the first chat line of a fresh console.
const Welcome = "GSV TUI client. Type /help for controls. Alt+1/2/3 to switch buffers."

// DefaultHistoryLimit is how many prior messages a session switch loads.
const DefaultHistoryLimit = 200

// Gateway is the RPC surface the console drives.
type Gateway interface {
	commands.Gateway
	SendChat(ctx context.Context, session, message string) (events.SendResult, error)
	SessionPreview(ctx context.Context, session string, limit int) (events.Doc, error)
	NodesList(ctx context.Context) (events.Doc, error)
}

// HistoryStore persists submitted input lines.
type HistoryStore interface {
	Append(ctx context.Context, session, line string) error
}

// Options wires a Model to its collaborators.
type Options struct {
	Context   context.Context
	Gateway   Gateway
	Router    *correlator.Router
	Feed      *Feed
	Bus       <-chan eventbus.Event // LogEntry events
	Conn      <-chan eventbus.Event // GatewayConnected and GatewayDisconnected events
	History   HistoryStore          // nil disables persistence
	Connected func() bool
	Logger    *slog.Logger

	URL             string
	SessionKey      string
	Verbosity       state.ToolVerbosity
	ResponseTimeout time.Duration
	PollInterval    time.Duration
	HistoryLimit    int
	InputHistory    []string
}

// Model is the root console model.
type Model struct {
	app       *state.AppState
	router    *correlator.Router
	gw        Gateway
	feed      *Feed
	bus       <-chan eventbus.Event
	conn      <-chan eventbus.Event
	store     HistoryStore
	connected func() bool
	logger    *slog.Logger
	ctx       context.Context
	url       string

	input textinput.Model
	spin  spinner.Model
	keys  keyMap
	rows  []string

	width        int
	height       int
	pollInterval time.Duration
	historyLimit int
	polling      bool
	quitting     bool
}

// New builds the console model. The initial history load starts with the
// program and the first topology poll with its first tick.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Connected == nil {
		opts.Connected = func() bool { return true }
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	session := opts.SessionKey
	if session == "" {
		session = sessionkey.Default
	}
	if opts.Router == nil {
		opts.Router = correlator.NewRouter(session, opts.Logger)
	}

	app := state.New(session)
	app.Verbosity = opts.Verbosity
	if opts.ResponseTimeout > 0 {
		app.ResponseTimeout = opts.ResponseTimeout
	}
	app.SetHistory(opts.InputHistory)
	app.Status = "connecting"

	in := textinput.New()
	in.Prompt = " > "
	in.PromptStyle = UserStyle
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{Frames: spinnerFrames, FPS: 80 * time.Millisecond}

	m := Model{
		app:          app,
		router:       opts.Router,
		gw:           opts.Gateway,
		feed:         opts.Feed,
		bus:          opts.Bus,
		conn:         opts.Conn,
		store:        opts.History,
		connected:    opts.Connected,
		logger:       opts.Logger.With("component", "tui"),
		ctx:          opts.Context,
		url:          opts.URL,
		input:        in,
		spin:         sp,
		keys:         defaultKeys(),
		width:        80,
		height:       24,
		pollInterval: opts.PollInterval,
		historyLimit: opts.HistoryLimit,
	}
	m.layout()
	return m
}

type (
	sendResultMsg struct {
		session string
		result  events.SendResult
		err     error
	}
	historyMsg struct {
		session string
		payload events.Doc
		err     error
		note    string
		status  string
	}
	replyMsg    []buffer.Line
	topologyMsg struct {
		nodes       events.Doc
		nodesErr    error
		channels    events.Doc
		channelsErr error
	}
)

func (m Model) Init() tea.Cmd {
	status := "connected to " + m.url + " (session " + sessionkey.DisplayName(m.app.SessionKey) + ")"
	cmds := []tea.Cmd{m.spin.Tick, textinput.Blink, m.loadHistory(m.app.SessionKey, Welcome, status)}
	if m.feed != nil {
		cmds = append(cmds, m.feed.wait())
	}
	if m.bus != nil {
		cmds = append(cmds, waitBus(m.bus))
	}
	if m.conn != nil {
		cmds = append(cmds, waitConn(m.conn))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)

	case spinner.TickMsg:
		var spinCmd tea.Cmd
		m.spin, spinCmd = m.spin.Update(msg)
		return m, tea.Batch(spinCmd, m.tick())

	case tea.KeyMsg:
		cmd = m.handleKey(msg)

	case EventsMsg:
		for _, ev := range msg {
			m.app.Apply(ev)
		}
		if m.feed != nil {
			cmd = m.feed.wait()
		}

	case BusMsg:
		m.handleBus(eventbus.Event(msg))
		if m.bus != nil {
			cmd = waitBus(m.bus)
		}

	case ConnMsg:
		m.handleBus(eventbus.Event(msg))
		if m.conn != nil {
			cmd = waitConn(m.conn)
		}

	case sendResultMsg:
		m.handleSendResult(msg)

	case historyMsg:
		m.handleHistory(msg)

	case replyMsg:
		for _, l := range msg {
			m.app.Push(l.Role, l.Text)
		}

	case topologyMsg:
		m.handleTopology(msg)

	default:
		m.input, cmd = m.input.Update(msg)
	}

	m.layout()
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	vp := m.viewport()
	scroll := m.app.ActiveBuffer().Scroll
	end := min(scroll+vp, len(m.rows))
	start := min(scroll, end)

	var b strings.Builder
	b.WriteString(headerBar(m.app, m.width))
	b.WriteByte('\n')
	for _, r := range m.rows[start:end] {
		b.WriteString(ansi.Truncate(r, m.width, ""))
		b.WriteByte('\n')
	}
	for i := end - start; i < vp; i++ {
		b.WriteByte('\n')
	}
	b.WriteString(statusBar(m.app, m.spin.View(), m.width))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool { return m.quitting }

func (m *Model) viewport() int { return max(m.height-chromeRows, 1) }

// layout rebuilds the visible buffer's rows and clamps its scroll.
func (m *Model) layout() {
	switch m.app.Active {
	case buffer.System:
		m.rows = systemRows(m.app, m.width, m.app.Now())
	case buffer.Logs:
		m.rows = logRows(m.app.Logs.Lines, m.width)
	default:
		m.rows = chatRows(m.app.Chat.Lines, m.width)
	}
	m.app.ActiveBuffer().Ensure(len(m.rows), m.viewport())
}

// tick checks the response timeout and schedules topology polls.
func (m *Model) tick() tea.Cmd {
	now := m.app.Now()
	if m.app.CheckTimeout(now) {
		m.router.Reset()
		m.layout()
	} else if m.app.Active == buffer.System {
		m.layout()
	}
	if m.pollInterval <= 0 || m.polling || !m.connected() {
		return nil
	}
	if now.Sub(m.app.Topology.LastRefresh) < m.pollInterval {
		return nil
	}
	return m.poll()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	for i, b := range m.keys.Buffers {
		if key.Matches(msg, b) {
			if id, ok := buffer.FromIndex(i); ok {
				m.app.SwitchBuffer(id)
			}
			return nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.ClearInput):
		m.input.Reset()
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.HistoryUp):
		if line, ok := m.app.HistoryUp(); ok {
			m.input.SetValue(line)
			m.input.CursorEnd()
		}
	case key.Matches(msg, m.keys.HistoryDown):
		if line, ok := m.app.HistoryDown(); ok {
			m.input.SetValue(line)
			m.input.CursorEnd()
		}
	case key.Matches(msg, m.keys.PageUp):
		m.app.ActiveBuffer().ScrollUp(pageSize)
	case key.Matches(msg, m.keys.PageDown):
		m.app.ActiveBuffer().ScrollDown(pageSize)
	case key.Matches(msg, m.keys.Top):
		m.app.ActiveBuffer().ScrollToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.app.ActiveBuffer().ScrollToBottom()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return nil
	}
	c := commands.Parse(line)
	if c.Kind == commands.Quit {
		m.quitting = true
		return tea.Quit
	}

	var persist tea.Cmd
	if m.app.AddHistory(line) && m.store != nil {
		persist = m.persist(line)
	}
	return tea.Batch(persist, m.dispatch(c, line))
}

func (m *Model) persist(line string) tea.Cmd {
	store, ctx, session, logger := m.store, m.ctx, m.app.SessionKey, m.logger
	return func() tea.Msg {
		if err := store.Append(ctx, session, line); err != nil {
			logger.Warn("persist input history", "err", err)
		}
		return nil
	}
}

func (m *Model) handleBus(e eventbus.Event) {
	switch e.Type {
	case eventbus.LogEntry:
		role := buffer.Tool
		switch {
		case e.Level >= slog.LevelError:
			role = buffer.Error
		case e.Level < slog.LevelInfo:
			role = buffer.SystemRole
		}
		m.app.PushLog(role, e.Time.Format("15:04:05")+" "+e.Text)
	case eventbus.GatewayDisconnected:
		text := "disconnected from gateway"
		if e.Text != "" {
			text += ": " + e.Text
		}
		m.app.ClearRuns()
		m.router.Reset()
		m.app.Push(buffer.Error, text)
		m.app.Status = "disconnected"
	case eventbus.GatewayConnected:
		m.app.Status = "connected"
	}
}

func (m *Model) handleSendResult(msg sendResultMsg) {
	if !sessionkey.Equal(msg.session, m.app.SessionKey) {
		return
	}
	if msg.err != nil {
		m.logger.Warn("chat.send failed", "err", msg.err)
		m.app.SendFailed(msg.err)
		m.router.Reset()
		return
	}
	if id := m.app.ApplySendResult(msg.result); id != "" {
		m.router.Register(id, msg.session)
	}
}

func (m *Model) handleHistory(msg historyMsg) {
	if !sessionkey.Equal(msg.session, m.app.SessionKey) {
		return
	}
	if msg.err != nil {
		m.logger.Warn("session.preview failed", "session", msg.session, "err", msg.err)
		m.app.HistoryFailed(msg.err, msg.note)
	} else {
		n := m.app.LoadHistory(msg.payload, msg.note)
		m.logger.Debug("history loaded", "session", msg.session, "lines", n)
	}
	if msg.status != "" {
		m.app.Status = msg.status
	}
}

func (m *Model) handleTopology(msg topologyMsg) {
	m.polling = false
	now := m.app.Now()
	if msg.nodesErr != nil {
		m.logger.Debug("nodes.list failed", "err", msg.nodesErr)
	} else {
		m.app.Topology.LoadNodes(msg.nodes, now)
	}
	if msg.channelsErr != nil {
		m.logger.Debug("channels.list failed", "err", msg.channelsErr)
	} else {
		m.app.Topology.LoadChannels(msg.channels, now)
	}
	m.app.Topology.LastRefresh = now
}
