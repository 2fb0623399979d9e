// Package protocol defines the wire format spoken between the console and the
// GSV gateway: JSON text frames tagged by "type" and binary transfer frames.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// FrameType is the value of the "type" discriminator on every text frame.
type FrameType string

const (
	TypeRequest  FrameType = "req"
	TypeResponse FrameType = "res"
	TypeEvent    FrameType = "evt"
)

// Frame is one of Request, Response or Event.
type Frame interface {
	FrameType() FrameType
}

// Request is a client or server initiated RPC call.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// Event is an unsolicited server push.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     *uint64         `json:"seq,omitempty"`
}

func (Request) FrameType() FrameType  { return TypeRequest }
func (Response) FrameType() FrameType { return TypeResponse }
func (Event) FrameType() FrameType    { return TypeEvent }

// ErrorShape is the only error carrier on the wire. Retryable is advisory.
type ErrorShape struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	Retryable *bool           `json:"retryable,omitempty"`
}

func (e *ErrorShape) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// DecodeError reports a text frame that could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode frame: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode frame: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewRequest builds a Request with a fresh id. A nil params value omits the
// params field.
func NewRequest(method string, params any) (Request, error) {
	req := Request{ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("marshal %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// Encode serializes a frame with its type tag.
func Encode(f Frame) ([]byte, error) {
	switch v := f.(type) {
	case Request:
		return json.Marshal(struct {
			Type FrameType `json:"type"`
			Request
		}{TypeRequest, v})
	case Response:
		return json.Marshal(struct {
			Type FrameType `json:"type"`
			Response
		}{TypeResponse, v})
	case Event:
		return json.Marshal(struct {
			Type FrameType `json:"type"`
			Event
		}{TypeEvent, v})
	default:
		return nil, fmt.Errorf("encode frame: unsupported frame %T", f)
	}
}

// Decode parses a text frame. It never returns a partially populated frame:
// any malformed input yields a *DecodeError.
func Decode(data []byte) (Frame, error) {
	var head struct {
		Type *FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &DecodeError{Reason: "malformed json", Err: err}
	}
	if head.Type == nil {
		return nil, &DecodeError{Reason: "missing type"}
	}

	switch *head.Type {
	case TypeRequest:
		var raw struct {
			ID     *string         `json:"id"`
			Method *string         `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &DecodeError{Reason: "invalid request", Err: err}
		}
		if raw.ID == nil || raw.Method == nil {
			return nil, &DecodeError{Reason: "request requires id and method"}
		}
		return Request{ID: *raw.ID, Method: *raw.Method, Params: nullToNil(raw.Params)}, nil

	case TypeResponse:
		var raw struct {
			ID      *string         `json:"id"`
			OK      *bool           `json:"ok"`
			Payload json.RawMessage `json:"payload"`
			Error   *ErrorShape     `json:"error"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &DecodeError{Reason: "invalid response", Err: err}
		}
		if raw.ID == nil || raw.OK == nil {
			return nil, &DecodeError{Reason: "response requires id and ok"}
		}
		return Response{ID: *raw.ID, OK: *raw.OK, Payload: nullToNil(raw.Payload), Error: raw.Error}, nil

	case TypeEvent:
		var raw struct {
			Event   *string         `json:"event"`
			Payload json.RawMessage `json:"payload"`
			Seq     *uint64         `json:"seq"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &DecodeError{Reason: "invalid event", Err: err}
		}
		if raw.Event == nil {
			return nil, &DecodeError{Reason: "event requires event name"}
		}
		return Event{Event: *raw.Event, Payload: nullToNil(raw.Payload), Seq: raw.Seq}, nil

	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown type %q", *head.Type)}
	}
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
