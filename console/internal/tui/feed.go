package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gsv-labs/gsv/console/internal/correlator"
	"github.com/gsv-labs/gsv/console/internal/eventbus"
	"github.com/gsv-labs/gsv/pkg/protocol"
)

// Feed is the one-way channel from the connection's read goroutine to the
// UI loop. The read goroutine routes each event through the correlator and
// queues what survives; the loop drains it one batch at a time so events
// for a run are applied in delivery order.
type Feed struct {
	ch   chan []correlator.Event
	done chan struct{}
	once sync.Once
}

// NewFeed returns a feed buffering up to size batches.
func NewFeed(size int) *Feed {
	return &Feed{
		ch:   make(chan []correlator.Event, size),
		done: make(chan struct{}),
	}
}

// Handler returns the gateway event callback. It blocks while the feed is
// full and gives up once the feed is closed.
func (f *Feed) Handler(r *correlator.Router) func(protocol.Event) {
	return func(evt protocol.Event) {
		evs := r.Route(evt)
		if len(evs) == 0 {
			return
		}
		select {
		case f.ch <- evs:
		case <-f.done:
		}
	}
}

// Close releases any producer blocked on the feed.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// EventsMsg carries routed gateway events into Update.
type EventsMsg []correlator.Event

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case evs := <-f.ch:
			return EventsMsg(evs)
		case <-f.done:
			return nil
		}
	}
}

// BusMsg carries an eventbus event into Update.
type BusMsg eventbus.Event

func waitBus(ch <-chan eventbus.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return BusMsg(e)
	}
}

// ConnMsg carries a gateway connection event into Update.
type ConnMsg eventbus.Event

func waitConn(ch <-chan eventbus.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return ConnMsg(e)
	}
}
