// Package eventbus fans console-internal events (log records, connection
// changes) out to the UI.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published on the bus.
const (
	LogEntry            = "log.entry"
	GatewayConnected    = "gateway.connected"
	GatewayDisconnected = "gateway.disconnected"
)

// Event is a single message on the bus.
type Event struct {
	Type  string
	Time  time.Time
	Level slog.Level
	Text  string
}

// Bus is a fan-out pub/sub event bus. Subscribers receive events on a
// buffered channel; publishing never blocks, a full subscriber misses the
// event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[chan Event]map[string]bool // nil filter = all types
	dropped atomic.Uint64
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Event]map[string]bool)}
}

// Subscribe returns a channel that receives events of the given types, or
// of every type when none are given. The channel is buffered (256).
func (b *Bus) Subscribe(types ...string) chan Event {
	ch := make(chan Event, 256)
	var filter map[string]bool
	if len(types) > 0 {
		filter = make(map[string]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}
	b.mu.Lock()
	b.subs[ch] = filter
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish sends e to all matching subscribers.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if filter != nil && !filter[e.Type] {
			continue
		}
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close unsubscribes all subscribers and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
