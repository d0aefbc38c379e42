// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// frameTerminator ends every frame in both directions.
const frameTerminator byte = 0

// Message type strings used on the wire.
const (
	TypeCommand = "cmd"
	TypeAck     = "ack"
	TypeEcho    = "echo"
)

// Kind classifies an incoming message.
type Kind int

const (
	// KindOther is any payload-carrying message the caller asked for.
	KindOther Kind = iota

	// KindAck is the peer's per-command acknowledgement.
	KindAck

	// KindEcho is the output of a y_spt_ipc_echo command.
	KindEcho
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindEcho:
		return "echo"
	default:
		return "other"
	}
}

// commandMessage is the only outgoing frame shape.
type commandMessage struct {
	Type    string `json:"type"`
	Command string `json:"cmd"`
}

// envelope extracts the fields the channel itself inspects.
type envelope struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is one frame received from the peer.
type Message struct {
	// Type is the frame's "type" field.
	Type string

	// Text is the "text" field of echo frames. Empty for other types.
	Text string

	// Raw is the complete JSON object as received. Payload fields
	// (e.g. "entity" or "path") are read from here with Decode.
	Raw json.RawMessage
}

// Kind classifies m by its type field.
func (m Message) Kind() Kind {
	switch m.Type {
	case TypeAck:
		return KindAck
	case TypeEcho:
		return KindEcho
	default:
		return KindOther
	}
}

// Decode unmarshals the complete frame into target.
func (m Message) Decode(target any) error {
	if err := json.Unmarshal(m.Raw, target); err != nil {
		return fmt.Errorf("ipc: decoding %q message: %w", m.Type, err)
	}
	return nil
}

// EncodeCommand returns the wire frame for a console command, including
// the terminating NUL byte.
func EncodeCommand(command string) ([]byte, error) {
	data, err := json.Marshal(commandMessage{Type: TypeCommand, Command: command})
	if err != nil {
		return nil, fmt.Errorf("ipc: encoding command: %w", err)
	}
	return append(data, frameTerminator), nil
}

// EncodeMessage returns the wire frame for an arbitrary JSON-encodable
// value. The ipctest fake peer uses it to write responses.
func EncodeMessage(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("ipc: encoding message: %w", err)
	}
	return append(data, frameTerminator), nil
}

// DecodeMessage parses one frame without its terminator.
func DecodeMessage(frame []byte) (Message, error) {
	var header envelope
	if err := json.Unmarshal(frame, &header); err != nil {
		return Message{}, fmt.Errorf("ipc: decoding frame: %w", err)
	}
	raw := make(json.RawMessage, len(frame))
	copy(raw, frame)
	return Message{Type: header.Type, Text: header.Text, Raw: raw}, nil
}

// Splitter accumulates bytes from a stream and yields complete frames.
// A frame split across reads is held until its terminator arrives.
type Splitter struct {
	pending []byte
}

// Feed appends data and returns every complete, non-empty frame it
// closes. Returned slices are copies and stay valid after later calls.
func (s *Splitter) Feed(data []byte) [][]byte {
	s.pending = append(s.pending, data...)
	var frames [][]byte
	for {
		end := bytes.IndexByte(s.pending, frameTerminator)
		if end < 0 {
			break
		}
		if end > 0 {
			frame := make([]byte, end)
			copy(frame, s.pending[:end])
			frames = append(frames, frame)
		}
		s.pending = s.pending[end+1:]
	}
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return frames
}

// Buffered returns the number of bytes held for an incomplete frame.
func (s *Splitter) Buffered() int { return len(s.pending) }

// Reset discards any incomplete frame.
func (s *Splitter) Reset() { s.pending = nil }
