package discordrpc

import "encoding/json"

// Message is the logical RPC message carried inside a FRAME payload or a
// WebSocket text frame. Requests carry Cmd, Args, an optional Evt and a
// Nonce. Responses carry the Nonce of their request; dispatches carry none.
type Message struct {
	Cmd   string          `json:"cmd,omitempty"`
	Args  any             `json:"args,omitempty"`
	Evt   string          `json:"evt,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Nonce string          `json:"nonce,omitempty"`
}

// IsError reports whether m is an error response.
func (m *Message) IsError() bool {
	return m.Evt == EventRPCError || m.Evt == EventError
}

// Codec serializes logical messages for a transport.
// Applications can substitute their own to change the payload format; the
// default is JSON.
type Codec interface {
	// Marshal encodes a message for transmission.
	Marshal(m *Message) ([]byte, error)
	// Unmarshal decodes a received payload into m.
	Unmarshal(data []byte, m *Message) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Unmarshal(data []byte, m *Message) error {
	return json.Unmarshal(data, m)
}

// JSONCodec returns the default codec.
func JSONCodec() Codec {
	return jsonCodec{}
}
