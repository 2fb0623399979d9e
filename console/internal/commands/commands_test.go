package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/console/internal/state"
)

type fakeGateway struct {
	payloads map[string]string
	err      error

	limit    int
	setPath  string
	setValue json.RawMessage
	getPath  string
}

func (f *fakeGateway) reply(method string) (events.Doc, error) {
	if f.err != nil {
		return nil, f.err
	}
	return events.ParseDoc([]byte(f.payloads[method]))
}

func (f *fakeGateway) SessionGet(_ context.Context, _ string) (events.Doc, error) {
	return f.reply("session.get")
}

func (f *fakeGateway) SessionsList(_ context.Context, limit int) (events.Doc, error) {
	f.limit = limit
	return f.reply("sessions.list")
}

func (f *fakeGateway) ChannelsList(context.Context) (events.Doc, error) {
	return f.reply("channels.list")
}

func (f *fakeGateway) ToolsList(context.Context) (events.Doc, error) {
	return f.reply("tools.list")
}

func (f *fakeGateway) ConfigGet(_ context.Context, path string) (events.Doc, error) {
	f.getPath = path
	return f.reply("config.get")
}

func (f *fakeGateway) ConfigSet(_ context.Context, path string, value json.RawMessage) (events.Doc, error) {
	f.setPath, f.setValue = path, value
	return f.reply("config.set")
}

func only(t *testing.T, lines []Line) Line {
	t.Helper()
	require.Len(t, lines, 1)
	return lines[0]
}

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
		args []string
	}{
		{"hello there", Chat, nil},
		{"quit", Quit, nil},
		{"exit", Quit, nil},
		{"/q", Quit, nil},
		{"/exit", Quit, nil},
		{"/help", Help, []string{}},
		{"/i", Info, []string{}},
		{"/ch", Channels, []string{}},
		{"/sessions 10", Sessions, []string{"10"}},
		{"/session set agent:ops:main", Session, []string{"set", "agent:ops:main"}},
		{"/tools   verbose", Tools, []string{"verbose"}},
		{"/model opus", Forward, []string{"opus"}},
		{"/stop", Forward, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c := Parse(tt.line)
			assert.Equal(t, tt.kind, c.Kind)
			if tt.args != nil {
				assert.Equal(t, tt.args, c.Args)
			}
		})
	}
}

func TestIntArg(t *testing.T) {
	c := Parse("/sessions x")
	assert.Equal(t, DefaultSessionLimit, c.IntArg(0, DefaultSessionLimit))
	c = Parse("/sessions 5")
	assert.Equal(t, 5, c.IntArg(0, DefaultSessionLimit))
	assert.Equal(t, 7, c.IntArg(3, 7))
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "session=main (ops) agent=ops connected=true runs=none",
		StatusLine("agent:ops:main", true, "none"))
	assert.Equal(t, "session=x (unknown) agent=unknown connected=false runs=queued r1",
		StatusLine("x", false, "queued r1"))
}

func TestToolsLevel(t *testing.T) {
	v, changed, line := ToolsLevel(state.ToolsNormal, "")
	assert.False(t, changed)
	assert.Equal(t, state.ToolsNormal, v)
	assert.Equal(t, "Tool display: normal (/tools [quiet|normal|verbose])", line.Text)

	v, changed, line = ToolsLevel(state.ToolsNormal, "Q")
	assert.True(t, changed)
	assert.Equal(t, state.ToolsQuiet, v)
	assert.Equal(t, "Tool display: quiet (hidden)", line.Text)

	v, changed, line = ToolsLevel(state.ToolsVerbose, "loud")
	assert.False(t, changed)
	assert.Equal(t, state.ToolsVerbose, v)
	assert.Equal(t, "Usage: /tools [quiet|normal|verbose]", line.Text)
}

func TestSessionTarget(t *testing.T) {
	key, reply := SessionTarget(Parse("/session agent:ops:cli:dm:main"), "agent:main:main")
	assert.Nil(t, reply)
	assert.Equal(t, "agent:ops:main", key)

	key, reply = SessionTarget(Parse("/session switch ops-chat"), "agent:main:main")
	assert.Nil(t, reply)
	assert.Equal(t, "ops-chat", key)

	_, reply = SessionTarget(Parse("/session set"), "agent:main:main")
	require.NotNil(t, reply)
	assert.Equal(t, buffer.Error, reply.Role)
	assert.Equal(t, "Usage: /session set <session_key>", reply.Text)

	_, reply = SessionTarget(Parse("/session MAIN"), "agent:main:main")
	require.NotNil(t, reply)
	assert.Equal(t, "Already on main (main)", reply.Text)
}

func TestAgentTarget(t *testing.T) {
	assert.Equal(t, "agent:ops:main", AgentTarget("ops"))
	assert.Equal(t, "Switched to agent ops (main (ops))", SwitchedAgent("ops", AgentTarget("ops")))
	assert.Equal(t, "Current agent: ops", CurrentAgent("agent:ops:main").Text)
	assert.Equal(t, "Current agent: unknown", CurrentAgent("whatever").Text)
}

func TestListSessions(t *testing.T) {
	Location = time.UTC
	gw := &fakeGateway{payloads: map[string]string{"sessions.list": `{
		"count": 2,
		"sessions": [
			{"sessionKey": "agent:main:main", "label": "Main", "lastActiveAt": 1767225600000},
			{"sessionKey": "agent:ops:main"}
		]
	}`}}

	line := only(t, ListSessions(context.Background(), gw, "agent:main:cli:dm:main", 40))
	assert.Equal(t, 40, gw.limit)
	assert.Equal(t, "Sessions (2):\n"+
		"  agent:main:main [active] - Main - last active: 2026-01-01 00:00\n"+
		"  agent:ops:main - last active: ?", line.Text)

	line = only(t, ListSessionKeys(context.Background(), gw, "agent:ops:main", 10))
	assert.Equal(t, "Sessions:\n  agent:main:main\n  agent:ops:main [active]", line.Text)
}

func TestListSessionsEmptyAndError(t *testing.T) {
	gw := &fakeGateway{payloads: map[string]string{"sessions.list": `{"sessions": []}`}}
	assert.Equal(t, "No sessions found", only(t, ListSessions(context.Background(), gw, "", 40)).Text)

	gw.err = errors.New("not connected")
	line := only(t, ListSessions(context.Background(), gw, "", 40))
	assert.Equal(t, buffer.Error, line.Role)
	assert.Equal(t, "Failed to list sessions: not connected", line.Text)
}

func TestListAgents(t *testing.T) {
	gw := &fakeGateway{payloads: map[string]string{"sessions.list": `{"sessions": [
		{"sessionKey": "agent:ops:main"},
		{"sessionKey": "agent:main:main"},
		{"sessionKey": "agent:ops:dm:alice"},
		{"sessionKey": "legacy"}
	]}`}}
	line := only(t, ListAgents(context.Background(), gw))
	assert.Equal(t, AgentScanLimit, gw.limit)
	assert.Equal(t, "Agents:\n  main\n  ops", line.Text)

	gw.payloads["sessions.list"] = `{"sessions": [{"sessionKey": "legacy"}]}`
	assert.Equal(t, "No agents found", only(t, ListAgents(context.Background(), gw)).Text)
}

func TestSessionInfo(t *testing.T) {
	gw := &fakeGateway{payloads: map[string]string{"session.get": `{
		"sessionKey": "agent:main:main",
		"messageCount": 12,
		"settings": {"model": "opus", "resetPolicy": "daily"},
		"tokens": {"input": 1234, "output": 2500000}
	}`}}
	line := only(t, SessionInfo(context.Background(), gw, "agent:main:main"))
	assert.Equal(t, "Session: main (main)\n  label: -\n  model: opus\n  thinking: default\n"+
		"  messages: 12\n  tokens: 1.2K in / 2.5M out\n  reset: daily", line.Text)

	gw.err = errors.New("boom")
	assert.Equal(t, "Failed to get session info: boom", only(t, SessionInfo(context.Background(), gw, "x")).Text)
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.0K", FormatTokens(1000))
	assert.Equal(t, "1.0M", FormatTokens(1_000_000))
}

func TestListTools(t *testing.T) {
	long := "Reads a file from the workspace and returns its contents with line numbers"
	gw := &fakeGateway{payloads: map[string]string{"tools.list": `{"tools": [
		{"name": "ls"},
		{"name": "read", "description": "` + long + `"}
	]}`}}
	line := only(t, ListTools(context.Background(), gw))
	assert.Equal(t, "Available tools (2):\n  ls\n  read - "+long[:57]+"...", line.Text)

	gw.payloads["tools.list"] = `{"tools": []}`
	assert.Equal(t, "No tools available (no nodes connected?)", only(t, ListTools(context.Background(), gw)).Text)
}

func TestListChannels(t *testing.T) {
	Location = time.UTC
	gw := &fakeGateway{payloads: map[string]string{"channels.list": `{"count": 1, "channels": [
		{"channel": "whatsapp", "connectedAt": 1767225600000}
	]}`}}
	line := only(t, ListChannels(context.Background(), gw))
	assert.Equal(t, "Channels (1):\n  whatsapp:default - connected 2026-01-01 00:00", line.Text)

	gw.payloads["channels.list"] = `{"channels": []}`
	assert.Equal(t, "No channels connected", only(t, ListChannels(context.Background(), gw)).Text)
}

func TestRunConfigSet(t *testing.T) {
	gw := &fakeGateway{payloads: map[string]string{"config.set": `{}`}}

	line := only(t, RunConfig(context.Background(), gw, Parse("/config agent.model opus")))
	assert.Equal(t, "Config set: agent.model = opus", line.Text)
	assert.Equal(t, "agent.model", gw.setPath)
	assert.JSONEq(t, `"opus"`, string(gw.setValue))

	only(t, RunConfig(context.Background(), gw, Parse("/config agent.limits {\"max\": 3}")))
	assert.JSONEq(t, `{"max": 3}`, string(gw.setValue))

	gw.err = errors.New("denied")
	assert.Equal(t, "Failed to set config: denied",
		only(t, RunConfig(context.Background(), gw, Parse("/config a 1"))).Text)
}

func TestRunConfigGet(t *testing.T) {
	gw := &fakeGateway{payloads: map[string]string{"config.get": `{"value": {"model": "opus"}}`}}
	line := only(t, RunConfig(context.Background(), gw, Parse("/config agent")))
	assert.Equal(t, "agent", gw.getPath)
	assert.Equal(t, "agent = {\n  \"model\": \"opus\"\n}", line.Text)

	gw.payloads["config.get"] = `{"config": {"port": 8080}}`
	line = only(t, RunConfig(context.Background(), gw, Parse("/config")))
	assert.Empty(t, gw.getPath)
	assert.Equal(t, "Config:\n{\n  \"port\": 8080\n}", line.Text)

	gw.err = errors.New("offline")
	assert.Equal(t, "Failed to get config: offline",
		only(t, RunConfig(context.Background(), gw, Parse("/config"))).Text)
}
