// Package gateway manages the console's WebSocket connection to the gateway
// and the typed RPCs made over it.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gsv-labs/gsv/pkg/protocol"
)

// ErrClosed is returned by calls on a connection that has shut down.
var ErrClosed = errors.New("gateway connection closed")

// Options configure Dial.
type Options struct {
	URL              string
	Token            string
	TLSSkipVerify    bool // dev only
	HandshakeTimeout time.Duration
	Client           protocol.ClientInfo
	SessionKey       string
	Logger           *slog.Logger

	// OnBinary receives binary transfer frames. Without it they are
	// dropped.
	OnBinary func(transferID uint32, data []byte)
	// OnClose is called once when the connection ends, with the read
	// error that ended it (nil after Close).
	OnClose func(error)
}

// EventHandler receives every decoded event frame, on the read goroutine.
type EventHandler func(protocol.Event)

// Conn is a connected gateway session. Call is safe for concurrent use.
type Conn struct {
	ws      *websocket.Conn
	opts    Options
	onEvent EventHandler
	logger  *slog.Logger

	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[string]chan protocol.Response

	done      chan struct{}
	closeOnce sync.Once
	closing   bool
	err       error

	hello json.RawMessage
}

// Dial connects to the gateway, starts the read loop and performs the
// connect handshake.
func Dial(ctx context.Context, opts Options, onEvent EventHandler) (*Conn, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	if opts.TLSSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	ws, _, err := dialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	c := &Conn{
		ws:      ws,
		opts:    opts,
		onEvent: onEvent,
		logger:  opts.Logger.With("component", "gateway"),
		pending: make(map[string]chan protocol.Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	params := protocol.ConnectParams{
		MinProtocol: protocol.ProtocolVersion,
		MaxProtocol: protocol.ProtocolVersion,
		Client:      opts.Client,
		SessionKey:  opts.SessionKey,
	}
	if opts.Token != "" {
		params.Auth = &protocol.AuthParams{Token: opts.Token}
	}
	hctx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()
	hello, err := c.Call(hctx, protocol.MethodConnect, params)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect handshake: %w", err)
	}
	c.hello = hello

	c.logger.Info("connected to gateway", "url", opts.URL)
	return c, nil
}

// Hello is the payload of the connect handshake response.
func (c *Conn) Hello() json.RawMessage { return c.hello }

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err is the error that ended the connection, once Done is closed.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Connected reports whether the connection is still up.
func (c *Conn) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Call sends a request and waits for its response. A response with ok=false
// is returned as its *protocol.ErrorShape.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req, err := protocol.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	data, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan protocol.Response, 1)
	c.pendMu.Lock()
	c.pending[req.ID] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, req.ID)
		c.pendMu.Unlock()
	}()

	if err := c.write(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			if resp.Error != nil {
				return nil, resp.Error
			}
			return nil, fmt.Errorf("%s: request failed", method)
		}
		return resp.Payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case <-c.done:
		return nil, fmt.Errorf("%s: %w", method, ErrClosed)
	}
}

// SendBinary writes a transfer frame.
func (c *Conn) SendBinary(transferID uint32, data []byte) error {
	return c.write(websocket.BinaryMessage, protocol.BuildTransferFrame(transferID, data))
}

func (c *Conn) write(messageType int, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

// Close sends a close frame and tears the connection down.
func (c *Conn) Close() error {
	if !c.Connected() {
		return nil
	}
	c.writeMu.Lock()
	c.closing = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Conn) readLoop() {
	var err error
	defer func() { c.shutdown(err) }()

	for {
		var (
			mt   int
			data []byte
		)
		mt, data, err = c.ws.ReadMessage()
		if err != nil {
			return
		}

		if mt == websocket.BinaryMessage {
			c.handleBinary(data)
			continue
		}

		frame, derr := protocol.Decode(data)
		if derr != nil {
			c.logger.Warn("dropping undecodable frame", "error", derr)
			continue
		}
		switch f := frame.(type) {
		case protocol.Response:
			c.pendMu.Lock()
			ch, ok := c.pending[f.ID]
			c.pendMu.Unlock()
			if !ok {
				c.logger.Debug("response for unknown request", "id", f.ID)
				continue
			}
			select {
			case ch <- f:
			default:
				c.logger.Debug("duplicate response", "id", f.ID)
			}
		case protocol.Event:
			if c.onEvent != nil {
				c.onEvent(f)
			}
		case protocol.Request:
			c.logger.Debug("ignoring gateway request", "method", f.Method)
		}
	}
}

func (c *Conn) handleBinary(data []byte) {
	id, payload, ok := protocol.ParseTransferFrame(data)
	if !ok {
		c.logger.Warn("dropping short binary frame", "bytes", len(data))
		return
	}
	if c.opts.OnBinary == nil {
		c.logger.Debug("dropping transfer frame", "transfer_id", id, "bytes", len(payload))
		return
	}
	c.opts.OnBinary(id, payload)
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		closing := c.closing
		c.writeMu.Unlock()
		if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			err = nil
		}
		c.err = err
		close(c.done)
		_ = c.ws.Close()
		if err != nil {
			c.logger.Warn("gateway connection lost", "error", err)
		} else {
			c.logger.Info("gateway connection closed")
		}
		if c.opts.OnClose != nil {
			c.opts.OnClose(err)
		}
	})
}
