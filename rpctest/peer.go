package rpctest

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/Zereker/discordrpc"
)

// Peer is the server side of an IPC connection.
type Peer struct {
	conn    net.Conn
	decoder *discordrpc.Decoder
	queue   []discordrpc.Frame
	buf     []byte

	writeMu sync.Mutex
	once    sync.Once
}

// NewPeer wraps conn.
func NewPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:    conn,
		decoder: discordrpc.NewDecoder(0),
		buf:     make([]byte, 4096),
	}
}

// ReadFrame blocks until the next complete frame arrives.
func (p *Peer) ReadFrame() (discordrpc.Frame, error) {
	for len(p.queue) == 0 {
		n, err := p.conn.Read(p.buf)
		if n > 0 {
			ferr := p.decoder.Feed(p.buf[:n], func(f discordrpc.Frame) error {
				p.queue = append(p.queue, f)
				return nil
			})
			if ferr != nil {
				return discordrpc.Frame{}, ferr
			}
		}
		if err != nil && len(p.queue) == 0 {
			return discordrpc.Frame{}, err
		}
	}

	f := p.queue[0]
	p.queue = p.queue[1:]
	return f, nil
}

// ReadMessage reads the next frame and decodes it as a message. Any other
// opcode is an error.
func (p *Peer) ReadMessage() (*discordrpc.Message, error) {
	f, err := p.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Opcode != discordrpc.OpFrame {
		return nil, errors.Errorf("unexpected %s frame", f.Opcode)
	}

	var m discordrpc.Message
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	return &m, nil
}

// WriteFrame encodes data as the payload of a frame with opcode op.
func (p *Peer) WriteFrame(op discordrpc.Opcode, data any) error {
	packet, err := discordrpc.Encode(op, data)
	if err != nil {
		return err
	}
	return p.WriteRaw(packet)
}

// WriteMessage sends m in a FRAME.
func (p *Peer) WriteMessage(m *discordrpc.Message) error {
	return p.WriteFrame(discordrpc.OpFrame, m)
}

// WriteRaw writes b to the connection unchanged, for sending frames in
// arbitrary chunks.
func (p *Peer) WriteRaw(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	_, err := p.conn.Write(b)
	return err
}

// Close closes the connection.
func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		err = p.conn.Close()
	})
	return err
}
