package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gsv-labs/gsv/console/internal/events"
	"github.com/gsv-labs/gsv/pkg/protocol"
)

// Caller performs one request/response exchange. *Conn implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Client is the typed RPC surface of the gateway.
type Client struct {
	caller  Caller
	timeout time.Duration
}

// NewClient wraps caller. A positive timeout bounds every call.
func NewClient(caller Caller, timeout time.Duration) *Client {
	return &Client{caller: caller, timeout: timeout}
}

func (c *Client) call(ctx context.Context, method string, params any) (events.Doc, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	raw, err := c.caller.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	doc, err := events.ParseDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", method, err)
	}
	return doc, nil
}

// SendChat submits a message to session.
func (c *Client) SendChat(ctx context.Context, session, message string) (events.SendResult, error) {
	doc, err := c.call(ctx, protocol.MethodChatSend, protocol.ChatSendParams{SessionKey: session, Message: message})
	if err != nil {
		return events.SendResult{}, err
	}
	return events.ParseSendResult(doc), nil
}

// SessionGet returns a session's settings and counters.
func (c *Client) SessionGet(ctx context.Context, session string) (events.Doc, error) {
	return c.call(ctx, protocol.MethodSessionGet, protocol.SessionParams{SessionKey: session})
}

// SessionPreview returns up to limit of a session's most recent messages.
func (c *Client) SessionPreview(ctx context.Context, session string, limit int) (events.Doc, error) {
	return c.call(ctx, protocol.MethodSessionPreview, protocol.SessionParams{SessionKey: session, Limit: limit})
}

// SessionsList lists known sessions.
func (c *Client) SessionsList(ctx context.Context, limit int) (events.Doc, error) {
	return c.call(ctx, protocol.MethodSessionsList, protocol.ListParams{Limit: limit})
}

// ChannelsList lists connected channel accounts.
func (c *Client) ChannelsList(ctx context.Context) (events.Doc, error) {
	return c.call(ctx, protocol.MethodChannelsList, nil)
}

// NodesList lists connected tool nodes.
func (c *Client) NodesList(ctx context.Context) (events.Doc, error) {
	return c.call(ctx, protocol.MethodNodesList, nil)
}

// ToolsList lists the tools the connected nodes offer.
func (c *Client) ToolsList(ctx context.Context) (events.Doc, error) {
	return c.call(ctx, protocol.MethodToolsList, nil)
}

// ConfigGet reads the gateway config, or one path of it.
func (c *Client) ConfigGet(ctx context.Context, path string) (events.Doc, error) {
	return c.call(ctx, protocol.MethodConfigGet, protocol.ConfigGetParams{Path: path})
}

// ConfigSet writes one config path.
func (c *Client) ConfigSet(ctx context.Context, path string, value json.RawMessage) (events.Doc, error) {
	return c.call(ctx, protocol.MethodConfigSet, protocol.ConfigSetParams{Path: path, Value: value})
}
