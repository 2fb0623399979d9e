package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsv-labs/gsv/pkg/protocol"
)

// fakeGateway is a minimal gateway: it answers connect, echoes requests
// through handle, and can push frames to the client.
type fakeGateway struct {
	t      *testing.T
	srv    *httptest.Server
	handle func(req protocol.Request) (protocol.Response, []protocol.Event)

	mu      sync.Mutex
	ws      *websocket.Conn
	auth    string
	methods []string
	binary  chan []byte
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{t: t, binary: make(chan []byte, 4)}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.ws = ws
		g.auth = r.Header.Get("Authorization")
		g.mu.Unlock()
		g.serve(ws)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) send(f protocol.Frame) {
	data, err := protocol.Encode(f)
	require.NoError(g.t, err)
	g.sendRaw(websocket.TextMessage, data)
}

func (g *fakeGateway) sendRaw(mt int, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.ws.WriteMessage(mt, data)
}

func (g *fakeGateway) serve(ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.BinaryMessage {
			g.binary <- data
			continue
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		req, ok := frame.(protocol.Request)
		if !ok {
			continue
		}
		g.mu.Lock()
		g.methods = append(g.methods, req.Method)
		g.mu.Unlock()

		if req.Method == protocol.MethodConnect {
			g.send(protocol.Response{ID: req.ID, OK: true, Payload: json.RawMessage(`{"protocol":1}`)})
			continue
		}
		if g.handle == nil {
			g.send(protocol.Response{ID: req.ID, OK: true})
			continue
		}
		resp, evts := g.handle(req)
		resp.ID = req.ID
		g.send(resp)
		for _, e := range evts {
			g.send(e)
		}
	}
}

func dial(t *testing.T, g *fakeGateway, opts Options, onEvent EventHandler) *Conn {
	t.Helper()
	opts.URL = g.url()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, opts, onEvent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialHandshake(t *testing.T) {
	g := newFakeGateway(t)
	c := dial(t, g, Options{Token: "secret", Client: protocol.ClientInfo{ID: "gsv-console"}}, nil)

	assert.JSONEq(t, `{"protocol":1}`, string(c.Hello()))
	assert.True(t, c.Connected())

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, "Bearer secret", g.auth)
	assert.Equal(t, []string{protocol.MethodConnect}, g.methods)
}

func TestCallAndEvents(t *testing.T) {
	g := newFakeGateway(t)
	g.handle = func(req protocol.Request) (protocol.Response, []protocol.Event) {
		var p protocol.ChatSendParams
		require.NoError(t, json.Unmarshal(req.Params, &p))
		return protocol.Response{OK: true, Payload: json.RawMessage(`{"status":"started","runId":"run-1"}`)},
			[]protocol.Event{{Event: protocol.EventChat, Payload: json.RawMessage(`{"runId":"run-1","state":"delta","text":"` + p.Message + `"}`)}}
	}

	got := make(chan protocol.Event, 1)
	c := dial(t, g, Options{}, func(e protocol.Event) { got <- e })

	res, err := NewClient(c, time.Second).SendChat(context.Background(), "agent:main:main", "hi")
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)

	select {
	case e := <-got:
		assert.Equal(t, protocol.EventChat, e.Event)
		assert.Contains(t, string(e.Payload), `"text":"hi"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestCallErrorShape(t *testing.T) {
	g := newFakeGateway(t)
	g.handle = func(protocol.Request) (protocol.Response, []protocol.Event) {
		return protocol.Response{OK: false, Error: &protocol.ErrorShape{Code: 404, Message: "session not found"}}, nil
	}
	c := dial(t, g, Options{}, nil)

	_, err := c.Call(context.Background(), protocol.MethodSessionGet, nil)
	var shape *protocol.ErrorShape
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, 404, shape.Code)
	assert.Equal(t, "session not found (code 404)", err.Error())
}

func TestCallContextCancel(t *testing.T) {
	g := newFakeGateway(t)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	g.handle = func(protocol.Request) (protocol.Response, []protocol.Event) {
		<-block
		return protocol.Response{OK: true}, nil
	}
	c := dial(t, g, Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, protocol.MethodToolsList, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	g := newFakeGateway(t)
	got := make(chan protocol.Event, 1)
	c := dial(t, g, Options{}, func(e protocol.Event) { got <- e })

	g.sendRaw(websocket.TextMessage, []byte(`{"type":"evt"}`))
	g.sendRaw(websocket.TextMessage, []byte(`not json`))
	g.sendRaw(websocket.BinaryMessage, []byte{1, 2})
	g.send(protocol.Event{Event: protocol.EventSystem})

	select {
	case e := <-got:
		assert.Equal(t, protocol.EventSystem, e.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after malformed frames was not delivered")
	}
	assert.True(t, c.Connected())
}

func TestBinaryTransferFrames(t *testing.T) {
	g := newFakeGateway(t)
	type frame struct {
		id   uint32
		data []byte
	}
	got := make(chan frame, 1)
	c := dial(t, g, Options{OnBinary: func(id uint32, data []byte) { got <- frame{id, data} }}, nil)

	require.NoError(t, c.SendBinary(7, []byte("abc")))
	select {
	case raw := <-g.binary:
		id, data, ok := protocol.ParseTransferFrame(raw)
		require.True(t, ok)
		assert.Equal(t, uint32(7), id)
		assert.Equal(t, []byte("abc"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive binary frame")
	}

	g.sendRaw(websocket.BinaryMessage, protocol.BuildTransferFrame(9, []byte("xyz")))
	select {
	case f := <-got:
		assert.Equal(t, uint32(9), f.id)
		assert.Equal(t, []byte("xyz"), f.data)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive binary frame")
	}
}

func TestServerCloseEndsConnection(t *testing.T) {
	g := newFakeGateway(t)
	closed := make(chan error, 1)
	c := dial(t, g, Options{OnClose: func(err error) { closed <- err }}, nil)

	g.mu.Lock()
	_ = g.ws.Close()
	g.mu.Unlock()

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	assert.False(t, c.Connected())
	assert.Error(t, c.Err())

	_, err := c.Call(context.Background(), protocol.MethodNodesList, nil)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestDialFailsWithoutServer(t *testing.T) {
	_, err := Dial(context.Background(), Options{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: time.Second}, nil)
	assert.Error(t, err)
}
