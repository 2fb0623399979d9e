package commands

import (
	"fmt"

	"github.com/gsv-labs/gsv/console/internal/sessionkey"
	"github.com/gsv-labs/gsv/console/internal/state"
)

// StatusLine is the /status reply.
func StatusLine(session string, connected bool, runs string) string {
	agent, ok := sessionkey.Agent(session)
	if !ok {
		agent = "unknown"
	}
	return fmt.Sprintf("session=%s agent=%s connected=%v runs=%s",
		sessionkey.DisplayName(session), agent, connected, runs)
}

// ToolsLevel interprets "/tools <level>". It returns the new verbosity when
// the argument names one, and the reply to show either way.
func ToolsLevel(current state.ToolVerbosity, arg string) (state.ToolVerbosity, bool, Line) {
	if arg == "" {
		return current, false, info(fmt.Sprintf("Tool display: %s (/tools [quiet|normal|verbose])", current))
	}
	v, ok := state.ParseToolVerbosity(arg)
	if !ok {
		return current, false, info("Usage: /tools [quiet|normal|verbose]")
	}
	return v, true, info(v.Describe())
}

// SessionTarget resolves the key named by "/session <key>", "/session set
// <key>" or "/session switch <key>" to a normalized session key. When no
// switch should happen, it returns the reply to show instead.
func SessionTarget(c Command, current string) (string, *Line) {
	target := c.Arg(0)
	if target == "set" || target == "switch" {
		target = c.Arg(1)
		if target == "" {
			l := fail(fmt.Sprintf("Usage: /session %s <session_key>", c.Arg(0)))
			return "", &l
		}
	}
	key := sessionkey.Normalize(target)
	if sessionkey.Equal(key, current) {
		l := info("Already on " + sessionkey.DisplayName(current))
		return "", &l
	}
	return key, nil
}

// AgentTarget returns the session key for "/agent <id>".
func AgentTarget(id string) string {
	return sessionkey.Normalize(sessionkey.ForAgent(id))
}

// CurrentSession is the "/session" reply.
func CurrentSession(session string) Line {
	return info("Current session: " + sessionkey.DisplayName(session))
}

// CurrentAgent is the "/agent" reply.
func CurrentAgent(session string) Line {
	agent, ok := sessionkey.Agent(session)
	if !ok {
		agent = "unknown"
	}
	return info("Current agent: " + agent)
}

// SwitchedSession is shown after a session switch.
func SwitchedSession(session string) string {
	return "Session switched to " + sessionkey.DisplayName(session)
}

// SwitchedAgent is shown after an agent switch.
func SwitchedAgent(agent, session string) string {
	return fmt.Sprintf("Switched to agent %s (%s)", agent, sessionkey.DisplayName(session))
}
