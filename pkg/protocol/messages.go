package protocol

import "encoding/json"

// ProtocolVersion is the only gateway protocol revision this client speaks.
const ProtocolVersion = 1

// RPC methods called by the console.
const (
	MethodConnect        = "connect"
	MethodChatSend       = "chat.send"
	MethodSessionGet     = "session.get"
	MethodSessionPreview = "session.preview"
	MethodSessionsList   = "sessions.list"
	MethodChannelsList   = "channels.list"
	MethodNodesList      = "nodes.list"
	MethodToolsList      = "tools.list"
	MethodConfigGet      = "config.get"
	MethodConfigSet      = "config.set"
)

// Server-pushed event names.
const (
	EventChat              = "chat"
	EventSystem            = "system"
	EventSurfaceEvalResult = "surface.eval.result"
)

// Transfer control messages. Each carries a transferId matching the binary
// frames of the same transfer.
const (
	MethodTransferSend     = "transfer.send"
	MethodTransferMeta     = "transfer.meta"
	MethodTransferReceive  = "transfer.receive"
	MethodTransferAccept   = "transfer.accept"
	MethodTransferStart    = "transfer.start"
	MethodTransferComplete = "transfer.complete"
	MethodTransferEnd      = "transfer.end"
	MethodTransferDone     = "transfer.done"
)

// ConnectParams is the handshake sent as the first request on a connection.
type ConnectParams struct {
	MinProtocol int         `json:"minProtocol"`
	MaxProtocol int         `json:"maxProtocol"`
	Client      ClientInfo  `json:"client"`
	SessionKey  string      `json:"sessionKey,omitempty"`
	Auth        *AuthParams `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting program. Mode is the connection role.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

// AuthParams carries an opaque bearer token.
type AuthParams struct {
	Token string `json:"token,omitempty"`
}

// ChatSendParams is the chat.send request body.
type ChatSendParams struct {
	SessionKey string `json:"sessionKey"`
	Message    string `json:"message"`
}

// SessionParams addresses a single session.
type SessionParams struct {
	SessionKey string `json:"sessionKey"`
	Limit      int    `json:"limit,omitempty"`
}

// ListParams bounds a list call.
type ListParams struct {
	Limit int `json:"limit,omitempty"`
}

// ConfigGetParams reads the whole gateway config or a single path.
type ConfigGetParams struct {
	Path string `json:"path,omitempty"`
}

// ConfigSetParams writes one config path.
type ConfigSetParams struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// SurfaceEvalResult reports the outcome of a script evaluated on a surface.
type SurfaceEvalResult struct {
	EvalID    string          `json:"evalId"`
	SurfaceID string          `json:"surfaceId"`
	OK        bool            `json:"ok"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}
