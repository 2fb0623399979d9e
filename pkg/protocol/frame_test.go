package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequest(t *testing.T) {
	req, err := NewRequest(MethodChatSend, ChatSendParams{SessionKey: "agent:main:main", Message: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)

	data, err := Encode(req)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "req", wire["type"])
	assert.Equal(t, "chat.send", wire["method"])
	params := wire["params"].(map[string]any)
	assert.Equal(t, "agent:main:main", params["sessionKey"])

	f, err := Decode(data)
	require.NoError(t, err)
	got, ok := f.(Request)
	require.True(t, ok)
	assert.Equal(t, req.ID, got.ID)
	assert.JSONEq(t, string(req.Params), string(got.Params))
}

func TestNewRequestIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		req, err := NewRequest(MethodNodesList, nil)
		require.NoError(t, err)
		assert.Nil(t, req.Params)
		assert.False(t, seen[req.ID])
		seen[req.ID] = true
	}
}

func TestDecodeResponseWithError(t *testing.T) {
	f, err := Decode([]byte(`{"type":"res","id":"1","ok":false,"error":{"code":404,"message":"not found","retryable":false}}`))
	require.NoError(t, err)
	res := f.(Response)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, 404, res.Error.Code)
	assert.Equal(t, "not found (code 404)", res.Error.Error())
	require.NotNil(t, res.Error.Retryable)
	assert.False(t, *res.Error.Retryable)
}

func TestDecodeEvent(t *testing.T) {
	f, err := Decode([]byte(`{"type":"evt","event":"chat","payload":{"state":"delta"},"seq":7}`))
	require.NoError(t, err)
	evt := f.(Event)
	assert.Equal(t, "chat", evt.Event)
	require.NotNil(t, evt.Seq)
	assert.Equal(t, uint64(7), *evt.Seq)
	assert.JSONEq(t, `{"state":"delta"}`, string(evt.Payload))

	f, err = Decode([]byte(`{"type":"evt","event":"system","payload":null}`))
	require.NoError(t, err)
	assert.Nil(t, f.(Event).Payload)
}

func TestEncodeOmitsEmptyOptionals(t *testing.T) {
	data, err := Encode(Event{Event: "tick"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"evt","event":"tick"}`, string(data))

	data, err = Encode(Response{ID: "x", OK: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"x","ok":true}`, string(data))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{"type":`},
		{"missing type", `{"id":"1","method":"x"}`},
		{"unknown type", `{"type":"ping"}`},
		{"numeric type", `{"type":1}`},
		{"request without id", `{"type":"req","method":"x"}`},
		{"request without method", `{"type":"req","id":"1"}`},
		{"response without ok", `{"type":"res","id":"1"}`},
		{"response without id", `{"type":"res","ok":true}`},
		{"event without name", `{"type":"evt","payload":{}}`},
		{"ok wrong type", `{"type":"res","id":"1","ok":"yes"}`},
		{"id wrong type", `{"type":"req","id":5,"method":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.input))
			assert.Nil(t, f)
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "got %v", err)
		})
	}
}

func TestTransferFrameRoundTrip(t *testing.T) {
	for _, id := range []uint32{0, 1, 0xdeadbeef, ^uint32(0)} {
		payload := []byte("chunk of file data")
		frame := BuildTransferFrame(id, payload)
		assert.Len(t, frame, TransferTagBytes+len(payload))

		gotID, gotPayload, ok := ParseTransferFrame(frame)
		require.True(t, ok)
		assert.Equal(t, id, gotID)
		assert.Equal(t, payload, gotPayload)
	}
}

func TestTransferFrameLittleEndian(t *testing.T) {
	frame := BuildTransferFrame(0x01020304, nil)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, frame)

	id, payload, ok := ParseTransferFrame(frame)
	require.True(t, ok)
	assert.Equal(t, uint32(0x01020304), id)
	assert.Empty(t, payload)
}

func TestTransferFrameTooShort(t *testing.T) {
	for _, b := range [][]byte{nil, {1}, {1, 2, 3}} {
		_, _, ok := ParseTransferFrame(b)
		assert.False(t, ok)
	}
}

func TestDecodeTransferControl(t *testing.T) {
	ctl, ok, err := DecodeTransferControl(MethodTransferDone, json.RawMessage(`{"transferId":3,"bytesWritten":10,"error":"disk full"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &TransferDone{TransferID: 3, BytesWritten: 10, Error: "disk full"}, ctl)
	assert.Equal(t, uint32(3), ctl.ID())

	ctl, ok, err = DecodeTransferControl(MethodTransferMeta, json.RawMessage(`{"transferId":7,"size":2048,"mime":"image/png"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &TransferMeta{TransferID: 7, Size: 2048, Mime: "image/png"}, ctl)

	_, ok, err = DecodeTransferControl(MethodTransferStart, json.RawMessage(`{"transferId":"x"}`))
	assert.True(t, ok)
	var de *DecodeError
	assert.True(t, errors.As(err, &de), "got %v", err)

	ctl, ok, err = DecodeTransferControl(EventChat, json.RawMessage(`{}`))
	assert.Nil(t, ctl)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestTransferPayloadWireNames(t *testing.T) {
	data, err := json.Marshal(TransferDone{TransferID: 3, BytesWritten: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"transferId":3,"bytesWritten":10}`, string(data))

	data, err = json.Marshal(SurfaceEvalResult{EvalID: "e", SurfaceID: "s", OK: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"evalId":"e","surfaceId":"s","ok":true}`, string(data))
}
