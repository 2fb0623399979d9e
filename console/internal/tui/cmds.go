package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/commands"
)

// dispatch runs a parsed input line. Local commands act on the state
// directly; anything needing the gateway runs as a tea.Cmd.
func (m *Model) dispatch(c commands.Command, line string) tea.Cmd {
	session := m.app.SessionKey

	switch c.Kind {
	case commands.Help:
		m.app.Push(buffer.SystemRole, commands.HelpText)

	case commands.Clear:
		m.app.Clear()
		m.router.Reset()

	case commands.Status:
		m.app.Push(buffer.SystemRole, commands.StatusLine(session, m.connected(), m.app.RunSummary()))

	case commands.Sessions:
		limit := c.IntArg(0, commands.DefaultSessionLimit)
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.ListSessions(ctx, gw, session, limit)
		})

	case commands.Session:
		return m.sessionCommand(c)

	case commands.Info:
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.SessionInfo(ctx, gw, session)
		})

	case commands.Tools:
		if sub := c.Arg(0); sub == "list" || sub == "ls" {
			return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
				return commands.ListTools(ctx, gw)
			})
		}
		v, changed, reply := commands.ToolsLevel(m.app.Verbosity, c.Arg(0))
		if changed {
			m.app.Verbosity = v
		}
		m.app.Push(reply.Role, reply.Text)

	case commands.Channels:
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.ListChannels(ctx, gw)
		})

	case commands.Config:
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.RunConfig(ctx, gw, c)
		})

	case commands.Agent:
		return m.agentCommand(c)

	default:
		return m.send(line)
	}
	return nil
}

func (m *Model) sessionCommand(c commands.Command) tea.Cmd {
	session := m.app.SessionKey
	switch c.Arg(0) {
	case "":
		reply := commands.CurrentSession(session)
		m.app.Push(reply.Role, reply.Text)
		return nil
	case "list", "ls":
		limit := c.IntArg(1, commands.DefaultSessionLimit)
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.ListSessionKeys(ctx, gw, session, limit)
		})
	}
	target, reply := commands.SessionTarget(c, session)
	if reply != nil {
		m.app.Push(reply.Role, reply.Text)
		return nil
	}
	return m.switchSession(target, commands.SwitchedSession(target))
}

func (m *Model) agentCommand(c commands.Command) tea.Cmd {
	switch id := c.Arg(0); id {
	case "":
		reply := commands.CurrentAgent(m.app.SessionKey)
		m.app.Push(reply.Role, reply.Text)
		return nil
	case "list", "ls":
		return m.reply(func(ctx context.Context, gw Gateway) []buffer.Line {
			return commands.ListAgents(ctx, gw)
		})
	default:
		target := commands.AgentTarget(id)
		return m.switchSession(target, commands.SwitchedAgent(id, target))
	}
}

// switchSession retargets the state and the correlator, then reloads the
// transcript.
func (m *Model) switchSession(key, note string) tea.Cmd {
	m.app.SwitchSession(key)
	m.router.SetActiveSession(key)
	m.logger.Info("session switched", "session", key)
	return m.loadHistory(key, note, "")
}

func (m *Model) reply(f func(ctx context.Context, gw Gateway) []buffer.Line) tea.Cmd {
	ctx, gw := m.ctx, m.gw
	return func() tea.Msg { return replyMsg(f(ctx, gw)) }
}

func (m *Model) send(text string) tea.Cmd {
	m.app.BeginSend(text)
	ctx, gw, session := m.ctx, m.gw, m.app.SessionKey
	return func() tea.Msg {
		res, err := gw.SendChat(ctx, session, text)
		return sendResultMsg{session: session, result: res, err: err}
	}
}

func (m *Model) loadHistory(session, note, status string) tea.Cmd {
	ctx, gw, limit := m.ctx, m.gw, m.historyLimit
	return func() tea.Msg {
		payload, err := gw.SessionPreview(ctx, session, limit)
		return historyMsg{session: session, payload: payload, err: err, note: note, status: status}
	}
}

func (m *Model) poll() tea.Cmd {
	m.polling = true
	ctx, gw := m.ctx, m.gw
	return func() tea.Msg {
		var msg topologyMsg
		msg.nodes, msg.nodesErr = gw.NodesList(ctx)
		msg.channels, msg.channelsErr = gw.ChannelsList(ctx)
		return msg
	}
}
