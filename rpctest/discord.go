package rpctest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Zereker/discordrpc"
)

// Responder answers a request. A nil reply sends nothing.
type Responder func(req *discordrpc.Message) *discordrpc.Message

// Handshake is the first frame a client sends.
type Handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

// DefaultUser is the user announced in READY when none is configured.
var DefaultUser = discordrpc.User{ID: "1", Username: "rpctest"}

// Reply builds a successful response to req carrying data.
func Reply(req *discordrpc.Message, data any) *discordrpc.Message {
	raw, _ := json.Marshal(data)
	return &discordrpc.Message{Cmd: req.Cmd, Evt: req.Evt, Nonce: req.Nonce, Data: raw}
}

// ReplyError builds an error response to req.
func ReplyError(req *discordrpc.Message, code int, message string) *discordrpc.Message {
	raw, _ := json.Marshal(map[string]any{"code": code, "message": message})
	return &discordrpc.Message{Cmd: req.Cmd, Evt: discordrpc.EventError, Nonce: req.Nonce, Data: raw}
}

// ReadyMessage returns the READY dispatch announcing user.
func ReadyMessage(user discordrpc.User) *discordrpc.Message {
	raw, _ := json.Marshal(map[string]any{
		"v":    1,
		"user": user,
		"config": map[string]string{
			"api_endpoint": "//discord.com/api",
			"environment":  "production",
		},
	})
	return &discordrpc.Message{Cmd: discordrpc.CmdDispatch, Evt: discordrpc.EventReady, Data: raw}
}

// Echo acknowledges every request with empty data. SUBSCRIBE and
// UNSUBSCRIBE are answered with the event name as Discord does.
func Echo(req *discordrpc.Message) *discordrpc.Message {
	switch req.Cmd {
	case discordrpc.CmdSubscribe, discordrpc.CmdUnsubscribe:
		return Reply(req, map[string]string{"evt": req.Evt})
	default:
		return Reply(req, map[string]any{})
	}
}

func respond(responder Responder, req *discordrpc.Message) *discordrpc.Message {
	if responder == nil {
		responder = Echo
	}
	resp := responder(req)
	if resp == nil {
		return nil
	}
	if resp.Nonce == "" {
		resp.Nonce = req.Nonce
	}
	if resp.Cmd == "" {
		resp.Cmd = req.Cmd
	}
	return resp
}

// Discord is a scripted Handler behaving like the Discord client: it reads
// the handshake, announces READY, answers PING with PONG, echoes CLOSE and
// answers requests through Responder.
type Discord struct {
	// User is announced in READY. DefaultUser is used when ID is empty.
	User discordrpc.User
	// Responder answers requests. Nil acknowledges everything.
	Responder Responder
	// SkipReady withholds READY after the handshake.
	SkipReady bool

	mu         sync.Mutex
	handshakes []Handshake
	requests   []*discordrpc.Message
	peers      map[*Peer]struct{}
}

// Handle serves one connection until the client closes it.
func (d *Discord) Handle(ctx context.Context, p *Peer) {
	f, err := p.ReadFrame()
	if err != nil {
		return
	}
	if f.Opcode != discordrpc.OpHandshake {
		_ = p.WriteFrame(discordrpc.OpClose, discordrpc.CloseError{Code: 4000, Reason: "expected handshake"})
		return
	}

	var hs Handshake
	_ = json.Unmarshal(f.Payload, &hs)

	d.mu.Lock()
	d.handshakes = append(d.handshakes, hs)
	if d.peers == nil {
		d.peers = make(map[*Peer]struct{})
	}
	d.peers[p] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.peers, p)
		d.mu.Unlock()
	}()

	if !d.SkipReady {
		user := d.User
		if user.ID == "" {
			user = DefaultUser
		}
		if err := p.WriteMessage(ReadyMessage(user)); err != nil {
			return
		}
	}

	for {
		f, err := p.ReadFrame()
		if err != nil {
			return
		}

		switch f.Opcode {
		case discordrpc.OpPing:
			_ = p.WriteRaw(discordrpc.EncodeRaw(discordrpc.OpPong, f.Payload))
		case discordrpc.OpClose:
			_ = p.WriteRaw(discordrpc.EncodeRaw(discordrpc.OpClose, f.Payload))
			return
		case discordrpc.OpFrame:
			var req discordrpc.Message
			if err := json.Unmarshal(f.Payload, &req); err != nil {
				return
			}

			d.mu.Lock()
			d.requests = append(d.requests, &req)
			d.mu.Unlock()

			if resp := respond(d.Responder, &req); resp != nil {
				if err := p.WriteMessage(resp); err != nil {
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// Dispatch sends an event to every connected client.
func (d *Discord) Dispatch(evt string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m := &discordrpc.Message{Cmd: discordrpc.CmdDispatch, Evt: evt, Data: raw}

	d.mu.Lock()
	peers := make([]*Peer, 0, len(d.peers))
	for p := range d.peers {
		peers = append(peers, p)
	}
	d.mu.Unlock()

	for _, p := range peers {
		if err := p.WriteMessage(m); err != nil {
			return err
		}
	}
	return nil
}

// Handshakes returns the handshakes received so far.
func (d *Discord) Handshakes() []Handshake {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Handshake(nil), d.handshakes...)
}

// Requests returns the requests received so far.
func (d *Discord) Requests() []*discordrpc.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*discordrpc.Message(nil), d.requests...)
}
