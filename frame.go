package discordrpc

import (
	"encoding/binary"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Opcode identifies the kind of a frame on the IPC transport.
type Opcode int32

// Opcodes of the IPC protocol.
const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

func (o Opcode) String() string {
	switch o {
	case OpHandshake:
		return "HANDSHAKE"
	case OpFrame:
		return "FRAME"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	default:
		return "OPCODE(" + strconv.Itoa(int(o)) + ")"
	}
}

// headerSize is the size of the opcode and length prefix of every frame.
const headerSize = 8

// Frame is a single length-prefixed unit of the IPC wire protocol.
type Frame struct {
	Opcode  Opcode
	Payload json.RawMessage
}

// Encode serializes data to JSON and prefixes it with the frame header:
// opcode and payload length, both little-endian int32.
func Encode(op Opcode, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	return EncodeRaw(op, payload), nil
}

// EncodeRaw frames an already serialized payload.
func EncodeRaw(op Opcode, payload []byte) []byte {
	packet := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(packet[0:4], uint32(op))
	binary.LittleEndian.PutUint32(packet[4:8], uint32(len(payload)))
	copy(packet[headerSize:], payload)
	return packet
}

// Decoder reassembles frames from arbitrarily chunked reads.
//
// It keeps the carry bytes of an incomplete frame between calls to Feed and
// only parses a payload once exactly the announced number of bytes arrived.
// A zero Decoder has no size limit.
type Decoder struct {
	// MaxPayload bounds the payload length a header may announce. Zero means no limit.
	MaxPayload int

	buf []byte
}

// NewDecoder returns a Decoder rejecting payloads larger than maxPayload.
func NewDecoder(maxPayload int) *Decoder {
	return &Decoder{MaxPayload: maxPayload}
}

// Feed appends p to the carry buffer and calls onFrame for every complete
// frame it now holds, in order. Frames split across calls are held until
// they complete. If onFrame returns an error, decoding stops and the error
// is returned; the remaining bytes stay buffered.
func (d *Decoder) Feed(p []byte, onFrame func(Frame) error) error {
	d.buf = append(d.buf, p...)

	for len(d.buf) >= headerSize {
		op := Opcode(int32(binary.LittleEndian.Uint32(d.buf[0:4])))
		length := int32(binary.LittleEndian.Uint32(d.buf[4:8]))
		if length < 0 {
			return errors.Wrapf(ErrMalformedFrame, "negative payload length %d", length)
		}
		if d.MaxPayload > 0 && int(length) > d.MaxPayload {
			return errors.Wrapf(ErrMessageTooLarge, "payload length %d", length)
		}

		end := headerSize + int(length)
		if len(d.buf) < end {
			return nil
		}

		payload := make([]byte, length)
		copy(payload, d.buf[headerSize:end])
		d.buf = d.buf[end:]

		if !json.Valid(payload) {
			return errors.Wrapf(ErrMalformedFrame, "%s payload is not valid json", op)
		}
		if err := onFrame(Frame{Opcode: op, Payload: payload}); err != nil {
			return err
		}
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.buf = nil
}
