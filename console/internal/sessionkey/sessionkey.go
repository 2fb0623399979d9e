// Package sessionkey parses and canonicalizes gateway session keys of the
// form agent:<agent>[:cli[:dm]][:<suffix>].
package sessionkey

import "strings"

// Default is the session used when none is configured.
const Default = "agent:main:cli:dm:main"

// Normalize returns the canonical spelling of key used for matching:
// agent:<id>:main or agent:<id>:dm:<suffix>. It is case-insensitive and
// idempotent. Keys outside the agent namespace are only trimmed and
// lower-cased.
func Normalize(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return ""
	}
	if k == "main" {
		return "agent:main:main"
	}
	if !strings.HasPrefix(k, "agent:") {
		return k
	}

	parts := strings.Split(k, ":")
	agent := parts[1]
	if agent == "" {
		return k
	}
	rest := parts[2:]
	for len(rest) > 0 && rest[0] == "cli" {
		rest = rest[1:]
	}
	dm := false
	if len(rest) > 0 && rest[0] == "dm" {
		dm = true
		rest = rest[1:]
	}

	suffix := strings.Join(rest, ":")
	switch {
	case suffix == "" || suffix == "main":
		return "agent:" + agent + ":main"
	case dm:
		return "agent:" + agent + ":dm:" + suffix
	default:
		return "agent:" + agent + ":" + suffix
	}
}

// Equal reports whether a and b name the same session.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Agent extracts the agent id from key.
func Agent(key string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(key), ":", 3)
	if len(parts) < 2 || parts[0] != "agent" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ForAgent builds the console's direct-message session key for agent.
func ForAgent(agent string) string {
	return "agent:" + strings.ToLower(strings.TrimSpace(agent)) + ":cli:dm:main"
}

// DisplayName renders key as "<suffix> (<agent>)".
func DisplayName(key string) string {
	agent, ok := Agent(key)
	if !ok {
		agent = "unknown"
	}
	session := "main"
	if i := strings.LastIndex(key, ":"); i >= 0 && i < len(key)-1 {
		session = key[i+1:]
	} else if i < 0 && key != "" {
		session = key
	}
	return session + " (" + agent + ")"
}
