package rpctest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Zereker/discordrpc"
)

// WebSocketServer is the WebSocket counterpart of Discord: it announces
// READY on every accepted connection and answers requests through its
// Responder.
type WebSocketServer struct {
	srv       *httptest.Server
	responder Responder
	user      discordrpc.User

	mu        sync.Mutex
	clientIDs []string
	origins   []string
	requests  []*discordrpc.Message
	conns     map[*websocket.Conn]struct{}
}

// NewWebSocketServer starts a WebSocket server on a loopback port.
// A nil responder acknowledges everything.
func NewWebSocketServer(responder Responder) *WebSocketServer {
	s := &WebSocketServer{
		responder: responder,
		user:      DefaultUser,
		conns:     make(map[*websocket.Conn]struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// URL returns the address of the server in the shape of the Discord RPC
// WebSocket URL. try is ignored, so every attempt reaches this server.
func (s *WebSocketServer) URL(_ int, clientID string) string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/?v=1&client_id=" + clientID + "&encoding=json"
}

// Port returns the port the server listens on.
func (s *WebSocketServer) Port() int {
	i := strings.LastIndex(s.srv.URL, ":")
	port, _ := strconv.Atoi(s.srv.URL[i+1:])
	return port
}

func (s *WebSocketServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	s.mu.Lock()
	s.clientIDs = append(s.clientIDs, r.URL.Query().Get("client_id"))
	s.origins = append(s.origins, r.Header.Get("Origin"))
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	if err := wsjson.Write(ctx, c, ReadyMessage(s.user)); err != nil {
		return
	}

	for {
		var req discordrpc.Message
		if err := wsjson.Read(ctx, c, &req); err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, &req)
		s.mu.Unlock()

		if resp := respond(s.responder, &req); resp != nil {
			if err := wsjson.Write(ctx, c, resp); err != nil {
				return
			}
		}
	}
}

// Dispatch sends an event to every connected client.
func (s *WebSocketServer) Dispatch(ctx context.Context, evt string, data any) error {
	m := Reply(&discordrpc.Message{Cmd: discordrpc.CmdDispatch, Evt: evt}, data)

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := wsjson.Write(ctx, c, m); err != nil {
			return err
		}
	}
	return nil
}

// ClientIDs returns the client ids of the accepted connections, in order.
func (s *WebSocketServer) ClientIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clientIDs...)
}

// Origins returns the Origin headers of the accepted connections, in order.
func (s *WebSocketServer) Origins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.origins...)
}

// Requests returns the requests received so far.
func (s *WebSocketServer) Requests() []*discordrpc.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordrpc.Message(nil), s.requests...)
}

// Close shuts the server down.
func (s *WebSocketServer) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	s.srv.Close()
}
