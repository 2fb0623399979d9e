// Package commands parses the console's slash commands and renders their
// replies.
package commands

import (
	"strconv"
	"strings"

	"github.com/gsv-labs/gsv/console/internal/buffer"
)

// Kind is what a submitted line asks for.
type Kind int

const (
	// Chat is a plain message for the agent.
	Chat Kind = iota
	// Forward is an unrecognised slash command; the gateway gets it as chat.
	Forward
	Quit
	Help
	Clear
	Status
	Sessions
	Session
	Info
	Tools
	Channels
	Config
	Agent
)

// DefaultSessionLimit is the /sessions page size.
const DefaultSessionLimit = 40

// AgentScanLimit is how many sessions /agent list inspects.
const AgentScanLimit = 200

// HelpText is the /help reply.
const HelpText = "Local: /help /clear /status /info /tools [quiet|normal|verbose|list] /channels /config [path] [value]\n" +
	"Session: /sessions /session [key|list] /agent [id|list]\n" +
	"Server: /reset /compact /model <name> /think <level> /stop\n" +
	"Nav: PageUp/PageDown Home/End  Exit: /quit (/q)"

// Command is a parsed input line.
type Command struct {
	Kind Kind
	Name string
	Args []string
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// IntArg parses the i-th argument, falling back to def.
func (c Command) IntArg(i, def int) int {
	n, err := strconv.Atoi(c.Arg(i))
	if err != nil {
		return def
	}
	return n
}

var names = map[string]Kind{
	"/help":     Help,
	"/clear":    Clear,
	"/status":   Status,
	"/sessions": Sessions,
	"/session":  Session,
	"/info":     Info,
	"/i":        Info,
	"/tools":    Tools,
	"/channels": Channels,
	"/ch":       Channels,
	"/config":   Config,
	"/agent":    Agent,
}

// Parse classifies a submitted line. The line is expected to be trimmed.
func Parse(line string) Command {
	switch line {
	case "quit", "exit", "/quit", "/exit", "/q":
		return Command{Kind: Quit, Name: line}
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: Chat}
	}
	fields := strings.Fields(line)
	kind, ok := names[fields[0]]
	if !ok {
		kind = Forward
	}
	return Command{Kind: kind, Name: fields[0], Args: fields[1:]}
}

// Line is one reply line and the role it is shown with.
type Line = buffer.Line

func info(text string) Line { return Line{Role: buffer.SystemRole, Text: text} }
func fail(text string) Line { return Line{Role: buffer.Error, Text: text} }
