// Package hub implements the session against the home-automation hub:
// handshake, keepalive, entity registration/writes, and voice-assistant
// audio streaming, over a length-prefixed JSON frame transport on TCP
// port 6053. The hub's real wire framing is out of scope (spec.md §1);
// this package only needs to satisfy "a bidirectional typed-message
// channel" contract, generalized from the teacher's
// pkg/protocol/protocol.go + pkg/protocol/ws.go transmit/receive and
// reconnect-with-backoff machinery from a WebSocket transport to TCP.
package hub

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MessageType tags every frame on the hub connection.
type MessageType string

const (
	MsgHello            MessageType = "hello"
	MsgHelloAck         MessageType = "hello_ack"
	MsgPing             MessageType = "ping"
	MsgPong             MessageType = "pong"
	MsgListEntities      MessageType = "list_entities"
	MsgEntityState       MessageType = "entity_state"
	MsgEntityWrite       MessageType = "entity_write"
	MsgVAStart           MessageType = "voice_assistant_start"
	MsgVAAudio           MessageType = "voice_assistant_audio"
	MsgVAEvent           MessageType = "voice_assistant_event" // processing|speaking|tts_audio|finished
	MsgVACancel          MessageType = "voice_assistant_cancel"
)

// Frame is one message on the hub connection.
type Frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MaxFrameBytes bounds a single hub frame; the transport is trusted LAN
// but still shouldn't allocate unbounded memory from a length prefix.
const MaxFrameBytes = 4 * 1024 * 1024

// NewFrame marshals payload into a Frame of the given type.
func NewFrame(t MessageType, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("hub: marshal %s payload: %w", t, err)
	}
	return Frame{Type: t, Payload: b}, nil
}

// WriteFrame writes a 4-byte big-endian length prefix followed by the
// JSON-encoded frame.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadFrame reads one length-prefixed JSON frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameBytes {
		return Frame{}, fmt.Errorf("hub: frame of %d bytes exceeds max %d", n, MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(buf, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// UnmarshalPayload decodes f.Payload into v.
func UnmarshalPayload(f Frame, v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("hub: empty payload for %s", f.Type)
	}
	return json.Unmarshal(f.Payload, v)
}

// HelloPayload identifies this satellite to the hub on connect.
type HelloPayload struct {
	ClientInfo string `json:"client_info"`
	APIVersion int     `json:"api_version"`
}

// EntityStatePayload reports one entity's id and current value.
type EntityStatePayload struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`

	BoolValue   *bool    `json:"bool_value,omitempty"`
	NumberValue *float64 `json:"number_value,omitempty"`
	StringValue *string  `json:"string_value,omitempty"`
	SensorValue any      `json:"sensor_value,omitempty"`
}

// EntityWritePayload is a hub-originated command against one entity.
type EntityWritePayload struct {
	EntityID    string   `json:"entity_id"`
	BoolValue   *bool    `json:"bool_value,omitempty"`
	NumberValue *float64 `json:"number_value,omitempty"`
	StringValue *string  `json:"string_value,omitempty"`
}

// VAEventPayload reports a transition in the voice-assistant streaming
// session ("processing" and "speaking" drive the activation machine's
// EvSessionProcessing/EvSessionSpeaking events; "tts_audio" carries
// base64 PCM/Opus for playback; "finished" ends the stream).
type VAEventPayload struct {
	Event     string `json:"event"`
	AudioB64  string `json:"audio_b64,omitempty"`
	Error     string `json:"error,omitempty"`
}
