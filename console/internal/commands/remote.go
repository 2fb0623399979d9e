package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/console/internal/sessionkey"
)

// Location is the zone timestamps in replies are shown in.
var Location = time.Local

// Gateway is the slice of the gateway RPC surface the commands use.
type Gateway interface {
	SessionGet(ctx context.Context, session string) (events.Doc, error)
	SessionsList(ctx context.Context, limit int) (events.Doc, error)
	ChannelsList(ctx context.Context) (events.Doc, error)
	ToolsList(ctx context.Context) (events.Doc, error)
	ConfigGet(ctx context.Context, path string) (events.Doc, error)
	ConfigSet(ctx context.Context, path string, value json.RawMessage) (events.Doc, error)
}

// ListSessions is the /sessions reply.
func ListSessions(ctx context.Context, gw Gateway, current string, limit int) []Line {
	payload, err := gw.SessionsList(ctx, limit)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to list sessions: %v", err))}
	}
	sessions := payload.Docs("sessions")
	if len(sessions) == 0 {
		return []Line{info("No sessions found")}
	}
	count, _ := payload.Int("count")
	lines := []string{fmt.Sprintf("Sessions (%d):", count)}
	for _, s := range sessions {
		key := strOr(s, "sessionKey", "?")
		entry := "  " + key + activeMark(key, current)
		if label, ok := s.Str("label"); ok {
			entry += " - " + label
		}
		entry += " - last active: " + stamp(s, "lastActiveAt")
		lines = append(lines, entry)
	}
	return []Line{info(strings.Join(lines, "\n"))}
}

// ListSessionKeys is the "/session list" reply.
func ListSessionKeys(ctx context.Context, gw Gateway, current string, limit int) []Line {
	payload, err := gw.SessionsList(ctx, limit)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to list sessions: %v", err))}
	}
	sessions := payload.Docs("sessions")
	if len(sessions) == 0 {
		return []Line{info("No sessions found")}
	}
	lines := []string{"Sessions:"}
	for _, s := range sessions {
		key := strOr(s, "sessionKey", "?")
		lines = append(lines, "  "+key+activeMark(key, current))
	}
	return []Line{info(strings.Join(lines, "\n"))}
}

// ListAgents is the "/agent list" reply: the distinct agents found in the
// session list.
func ListAgents(ctx context.Context, gw Gateway) []Line {
	payload, err := gw.SessionsList(ctx, AgentScanLimit)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to list agents: %v", err))}
	}
	seen := make(map[string]bool)
	var agents []string
	for _, s := range payload.Docs("sessions") {
		key, _ := s.Str("sessionKey")
		if agent, ok := sessionkey.Agent(key); ok && !seen[agent] {
			seen[agent] = true
			agents = append(agents, agent)
		}
	}
	if len(agents) == 0 {
		return []Line{info("No agents found")}
	}
	sort.Strings(agents)
	lines := []string{"Agents:"}
	for _, a := range agents {
		lines = append(lines, "  "+a)
	}
	return []Line{info(strings.Join(lines, "\n"))}
}

// SessionInfo is the /info reply.
func SessionInfo(ctx context.Context, gw Gateway, current string) []Line {
	payload, err := gw.SessionGet(ctx, current)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to get session info: %v", err))}
	}
	key := strOr(payload, "sessionKey", current)
	settings, _ := payload.Obj("settings")
	tokens, _ := payload.Obj("tokens")
	messages, _ := payload.Int("messageCount")
	in, _ := tokens.Int("input")
	out, _ := tokens.Int("output")

	return []Line{info(fmt.Sprintf(
		"Session: %s\n  label: %s\n  model: %s\n  thinking: %s\n  messages: %d\n  tokens: %s in / %s out\n  reset: %s",
		sessionkey.DisplayName(key),
		strOr(payload, "label", "-"),
		strOr(settings, "model", "default"),
		strOr(settings, "thinkingLevel", "default"),
		messages,
		FormatTokens(in),
		FormatTokens(out),
		strOr(settings, "resetPolicy", "none"),
	))}
}

// FormatTokens abbreviates a token count: 1234 -> 1.2K, 2500000 -> 2.5M.
func FormatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprint(n)
	}
}

const (
	descMaxRunes  = 60
	descKeepRunes = 57
)

// ListTools is the "/tools list" reply.
func ListTools(ctx context.Context, gw Gateway) []Line {
	payload, err := gw.ToolsList(ctx)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to list tools: %v", err))}
	}
	tools := payload.Docs("tools")
	if len(tools) == 0 {
		return []Line{info("No tools available (no nodes connected?)")}
	}
	lines := []string{fmt.Sprintf("Available tools (%d):", len(tools))}
	for _, t := range tools {
		name := strOr(t, "name", "?")
		desc, _ := t.Str("description")
		if desc == "" {
			lines = append(lines, "  "+name)
			continue
		}
		if r := []rune(desc); len(r) > descMaxRunes {
			desc = string(r[:descKeepRunes]) + "..."
		}
		lines = append(lines, "  "+name+" - "+desc)
	}
	return []Line{info(strings.Join(lines, "\n"))}
}

// ListChannels is the /channels reply.
func ListChannels(ctx context.Context, gw Gateway) []Line {
	payload, err := gw.ChannelsList(ctx)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to list channels: %v", err))}
	}
	channels := payload.Docs("channels")
	if len(channels) == 0 {
		return []Line{info("No channels connected")}
	}
	count, _ := payload.Int("count")
	lines := []string{fmt.Sprintf("Channels (%d):", count)}
	for _, c := range channels {
		lines = append(lines, fmt.Sprintf("  %s:%s - connected %s",
			strOr(c, "channel", "?"), strOr(c, "accountId", "default"), stamp(c, "connectedAt")))
	}
	return []Line{info(strings.Join(lines, "\n"))}
}

// RunConfig is the /config reply. With a path and a value it sets the
// value (JSON if it parses, a string otherwise); with a path it shows that
// value; with neither it shows the whole config.
func RunConfig(ctx context.Context, gw Gateway, c Command) []Line {
	path := c.Arg(0)
	var value string
	if len(c.Args) > 1 {
		value = strings.Join(c.Args[1:], " ")
	}
	if path != "" && value != "" {
		raw := json.RawMessage(value)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(value)
		}
		if _, err := gw.ConfigSet(ctx, path, raw); err != nil {
			return []Line{fail(fmt.Sprintf("Failed to set config: %v", err))}
		}
		return []Line{info(fmt.Sprintf("Config set: %s = %s", path, value))}
	}

	payload, err := gw.ConfigGet(ctx, path)
	if err != nil {
		return []Line{fail(fmt.Sprintf("Failed to get config: %v", err))}
	}
	if path != "" {
		v, ok := payload.Get("value")
		if !ok {
			v = payload
		}
		return []Line{info(path + " = " + pretty(v))}
	}
	v, ok := payload.Get("config")
	if !ok {
		v = payload
	}
	return []Line{info("Config:\n" + pretty(v))}
}

func pretty(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func activeMark(key, current string) string {
	if sessionkey.Equal(key, current) {
		return " [active]"
	}
	return ""
}

// stamp formats a millisecond epoch field, or "?" when it is missing.
func stamp(d events.Doc, key string) string {
	ms, ok := d.Int(key)
	if !ok {
		return "?"
	}
	return time.UnixMilli(ms).In(Location).Format("2006-01-02 15:04")
}

func strOr(d events.Doc, key, fallback string) string {
	if s, ok := d.Str(key); ok {
		return s
	}
	return fallback
}
