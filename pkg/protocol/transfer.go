package protocol

import (
	"encoding/binary"
	"encoding/json"
)

// TransferTagBytes is the size of the little-endian transfer id that
// prefixes every binary frame.
const TransferTagBytes = 4

// BuildTransferFrame prefixes data with the transfer id.
func BuildTransferFrame(transferID uint32, data []byte) []byte {
	frame := make([]byte, TransferTagBytes+len(data))
	binary.LittleEndian.PutUint32(frame, transferID)
	copy(frame[TransferTagBytes:], data)
	return frame
}

// ParseTransferFrame splits a binary frame into its transfer id and payload.
// Frames shorter than the tag are rejected. The payload aliases b.
func ParseTransferFrame(b []byte) (uint32, []byte, bool) {
	if len(b) < TransferTagBytes {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint32(b), b[TransferTagBytes:], true
}

// TransferControl is a decoded transfer control message.
type TransferControl interface {
	ID() uint32
}

// DecodeTransferControl decodes the payload of the transfer control message
// called name. ok is false when name is not a transfer control message.
func DecodeTransferControl(name string, payload json.RawMessage) (ctl TransferControl, ok bool, err error) {
	switch name {
	case MethodTransferSend:
		ctl = &TransferSend{}
	case MethodTransferMeta:
		ctl = &TransferMeta{}
	case MethodTransferReceive:
		ctl = &TransferReceive{}
	case MethodTransferAccept:
		ctl = &TransferAccept{}
	case MethodTransferStart:
		ctl = &TransferStart{}
	case MethodTransferComplete:
		ctl = &TransferComplete{}
	case MethodTransferEnd:
		ctl = &TransferEnd{}
	case MethodTransferDone:
		ctl = &TransferDone{}
	default:
		return nil, false, nil
	}
	if err := json.Unmarshal(payload, ctl); err != nil {
		return nil, true, &DecodeError{Reason: name + " payload", Err: err}
	}
	return ctl, true, nil
}

func (m *TransferSend) ID() uint32     { return m.TransferID }
func (m *TransferMeta) ID() uint32     { return m.TransferID }
func (m *TransferReceive) ID() uint32  { return m.TransferID }
func (m *TransferAccept) ID() uint32   { return m.TransferID }
func (m *TransferStart) ID() uint32    { return m.TransferID }
func (m *TransferComplete) ID() uint32 { return m.TransferID }
func (m *TransferEnd) ID() uint32      { return m.TransferID }
func (m *TransferDone) ID() uint32     { return m.TransferID }

// TransferSend asks the holder of Path to stream it under TransferID.
type TransferSend struct {
	TransferID uint32 `json:"transferId"`
	Path       string `json:"path"`
}

// TransferMeta announces the size of an outgoing transfer, or why it failed.
type TransferMeta struct {
	TransferID uint32 `json:"transferId"`
	Size       uint64 `json:"size"`
	Mime       string `json:"mime,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TransferReceive asks the receiver to prepare Path for Size bytes.
type TransferReceive struct {
	TransferID uint32 `json:"transferId"`
	Path       string `json:"path"`
	Size       uint64 `json:"size"`
	Mime       string `json:"mime,omitempty"`
}

// TransferAccept acknowledges a TransferReceive.
type TransferAccept struct {
	TransferID uint32 `json:"transferId"`
	Error      string `json:"error,omitempty"`
}

// TransferStart tells the sender to begin streaming binary frames.
type TransferStart struct {
	TransferID uint32 `json:"transferId"`
}

// TransferComplete marks the sender's last binary frame.
type TransferComplete struct {
	TransferID uint32 `json:"transferId"`
}

// TransferEnd tells the receiver no more binary frames follow.
type TransferEnd struct {
	TransferID uint32 `json:"transferId"`
}

// TransferDone reports how many bytes the receiver wrote.
type TransferDone struct {
	TransferID   uint32 `json:"transferId"`
	BytesWritten uint64 `json:"bytesWritten"`
	Error        string `json:"error,omitempty"`
}
