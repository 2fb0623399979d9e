package state

import (
	"fmt"
	"sort"
	"time"

	"github.com/gsv-labs/gsv/console/internal/events"
)

// Node is a tool-execution node attached to the gateway.
type Node struct {
	ID        string
	HostRole  string
	HostOS    string
	ToolCount int
	Tools     []string
	Connected bool
}

// Channel is a messaging channel account attached to the gateway.
type Channel struct {
	Channel     string
	AccountID   string
	Connected   bool
	ConnectedAt time.Time
}

// Key identifies the channel account.
func (c Channel) Key() string { return c.Channel + ":" + c.AccountID }

// SystemState is the live picture of gateway nodes and channels, refreshed
// by polling and patched by system events.
type SystemState struct {
	nodes       map[string]*Node
	channels    map[string]*Channel
	LastRefresh time.Time
}

func newSystemState() SystemState {
	return SystemState{
		nodes:    make(map[string]*Node),
		channels: make(map[string]*Channel),
	}
}

// Nodes returns nodes sorted by id.
func (s *SystemState) Nodes() []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Channels returns channels sorted by key.
func (s *SystemState) Channels() []Channel {
	out := make([]Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// NodeConnected records a node announcement.
func (s *SystemState) NodeConnected(id string, toolCount int, hostOS, hostRole string) {
	if hostOS == "" {
		hostOS = "?"
	}
	if hostRole == "" {
		hostRole = "execution"
	}
	s.nodes[id] = &Node{ID: id, HostOS: hostOS, HostRole: hostRole, ToolCount: toolCount, Connected: true}
}

// NodeDisconnected marks a known node as gone.
func (s *SystemState) NodeDisconnected(id string) {
	if n, ok := s.nodes[id]; ok {
		n.Connected = false
	}
}

// ChannelStatus records a channel connecting or disconnecting.
func (s *SystemState) ChannelStatus(channel, accountID string, connected bool, at time.Time) {
	c := Channel{Channel: channel, AccountID: accountID, Connected: connected, ConnectedAt: at}
	if connected {
		s.channels[c.Key()] = &c
		return
	}
	if existing, ok := s.channels[c.Key()]; ok {
		existing.Connected = false
	}
}

// LoadNodes replaces the node table from a nodes.list payload.
func (s *SystemState) LoadNodes(payload events.Doc, now time.Time) {
	clear(s.nodes)
	for _, n := range payload.Docs("nodes") {
		id := strOr(n, "nodeId", "?")
		var tools []string
		arr, _ := n.Arr("tools")
		for _, v := range arr {
			if name, ok := v.(string); ok {
				tools = append(tools, name)
			}
		}
		s.nodes[id] = &Node{
			ID:        id,
			HostRole:  strOr(n, "hostRole", "execution"),
			HostOS:    strOr(n, "hostOs", "?"),
			ToolCount: len(tools),
			Tools:     tools,
			Connected: true,
		}
	}
	s.LastRefresh = now
}

// LoadChannels replaces the channel table from a channels.list payload.
func (s *SystemState) LoadChannels(payload events.Doc, now time.Time) {
	clear(s.channels)
	for _, c := range payload.Docs("channels") {
		ch := &Channel{
			Channel:   strOr(c, "channel", "?"),
			AccountID: strOr(c, "accountId", "default"),
			Connected: true,
		}
		if ms, ok := c.Int("connectedAt"); ok {
			ch.ConnectedAt = time.UnixMilli(ms)
		}
		s.channels[ch.Key()] = ch
	}
	s.LastRefresh = now
}

// Summary is the header's "N nodes  M ch" counter of connected entries.
func (s *SystemState) Summary() string {
	nodes, channels := 0, 0
	for _, n := range s.nodes {
		if n.Connected {
			nodes++
		}
	}
	for _, c := range s.channels {
		if c.Connected {
			channels++
		}
	}
	return fmt.Sprintf("%d nodes  %d ch", nodes, channels)
}

func strOr(d events.Doc, key, fallback string) string {
	if s, ok := d.Str(key); ok && s != "" {
		return s
	}
	return fallback
}
