// Package ipc provides communication between the gamepadd daemon and
// its control clients over a user-owned Unix socket.
//
// The protocol is a simple request/response exchange: a fixed header
// (magic, version, message type, request ID, payload length) followed
// by a JSON payload.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gamepadd/internal/health"
	"gamepadd/internal/inhibit"
)

// Protocol constants.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x47504443 // "GPDC" - gamepadd control

	// MaxPayloadSize bounds a frame so a broken client cannot make
	// the daemon allocate unbounded memory.
	MaxPayloadSize = 1 << 20
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing     MessageType = 0x0001
	MsgPong     MessageType = 0x0002
	MsgError    MessageType = 0x0003
	MsgShutdown MessageType = 0x0004

	// Status messages (0x01xx)
	MsgStatusRequest   MessageType = 0x0100
	MsgStatusResponse  MessageType = 0x0101
	MsgDevicesRequest  MessageType = 0x0102
	MsgDevicesResponse MessageType = 0x0103

	// Configuration (0x02xx)
	MsgReloadConfig MessageType = 0x0200
	MsgReloadAck    MessageType = 0x0201
)

// Message is one IPC frame.
type Message struct {
	Type    MessageType
	ID      uint32
	Payload json.RawMessage
}

// DeviceInfo describes one monitored gamepad in status output.
type DeviceInfo struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Vendor  uint16 `json:"vendor,omitempty"`
	Product uint16 `json:"product,omitempty"`
}

// StatusResponse is the payload of MsgStatusResponse.
type StatusResponse struct {
	Version   string         `json:"version"`
	PID       int            `json:"pid"`
	StartedAt time.Time      `json:"started_at"`
	Inhibit   inhibit.Status `json:"inhibit"`
	Devices   []DeviceInfo   `json:"devices"`
	Health    health.Report  `json:"health"`
}

// ErrorResponse is the payload of MsgError.
type ErrorResponse struct {
	Message string `json:"message"`
}

// headerSize is magic(4) + version(2) + type(2) + id(4) + length(4).
const headerSize = 16

// WriteMessage writes one frame.
func WriteMessage(w io.Writer, msg *Message) error {
	if len(msg.Payload) > MaxPayloadSize {
		return fmt.Errorf("payload too large: %d bytes", len(msg.Payload))
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], ProtocolMagic)
	binary.BigEndian.PutUint16(header[4:6], ProtocolVersion)
	binary.BigEndian.PutUint16(header[6:8], uint16(msg.Type))
	binary.BigEndian.PutUint32(header[8:12], msg.ID)
	binary.BigEndian.PutUint32(header[12:16], uint32(len(msg.Payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(msg.Payload) > 0 {
		if _, err := w.Write(msg.Payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

// ReadMessage reads one frame.
func ReadMessage(r io.Reader) (*Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if magic := binary.BigEndian.Uint32(header[0:4]); magic != ProtocolMagic {
		return nil, fmt.Errorf("bad magic 0x%08x", magic)
	}
	if version := binary.BigEndian.Uint16(header[4:6]); version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", version)
	}

	msg := &Message{
		Type: MessageType(binary.BigEndian.Uint16(header[6:8])),
		ID:   binary.BigEndian.Uint32(header[8:12]),
	}

	length := binary.BigEndian.Uint32(header[12:16])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes", length)
	}
	if length > 0 {
		msg.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}

	return msg, nil
}

// NewMessage marshals payload into a frame of the given type.
func NewMessage(t MessageType, id uint32, payload any) (*Message, error) {
	msg := &Message{Type: t, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// ErrorMessage builds a MsgError response for a request.
func ErrorMessage(id uint32, format string, args ...any) *Message {
	payload, _ := json.Marshal(ErrorResponse{Message: fmt.Sprintf(format, args...)})
	return &Message{Type: MsgError, ID: id, Payload: payload}
}
