package discordrpc

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// defaultWebSocketTries bounds the connection attempts of Connect.
	defaultWebSocketTries = 20
	// websocketRetryInterval is the first delay between connection attempts.
	websocketRetryInterval = 250 * time.Millisecond
	// websocketMaxRetryInterval caps the delay between connection attempts.
	websocketMaxRetryInterval = 2 * time.Second
	// handshakeTimeout bounds the WebSocket opening handshake.
	handshakeTimeout = 10 * time.Second
)

// defaultWebSocketURL returns the local RPC server URL for connection attempt try.
func defaultWebSocketURL(try int, clientID string) string {
	q := url.Values{}
	q.Set("v", strconv.Itoa(handshakeVersion))
	q.Set("client_id", clientID)
	q.Set("encoding", "json")
	return "ws://127.0.0.1:" + strconv.Itoa(localPortBase+try%localPortRange) + "/?" + q.Encode()
}

// WebSocketTransport carries logical messages as JSON text frames over the
// local Discord WebSocket server. Connect walks the port range with a
// bounded number of attempts and an exponential backoff between them.
type WebSocketTransport struct {
	cfg    TransportConfig
	logger Logger
	state  stateBox
	dialer *websocket.Dialer
	tries  atomic.Int32

	cur atomic.Pointer[wsConn]
}

type wsConn struct {
	ws      *websocket.Conn
	done    chan struct{}
	closing atomic.Bool
	writeMu sync.Mutex
}

// NewWebSocketTransport creates a WebSocket transport. The connection is not
// opened until Connect is called.
func NewWebSocketTransport(cfg TransportConfig) *WebSocketTransport {
	cfg = withTransportDefaults(cfg)
	if cfg.ConnectTries <= 0 {
		cfg.ConnectTries = defaultWebSocketTries
	}
	return &WebSocketTransport{
		cfg:    cfg,
		logger: cfg.Logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   readChunkSize,
			WriteBufferSize:  readChunkSize,
		},
	}
}

// State returns the current connection state.
func (t *WebSocketTransport) State() State {
	return t.state.load()
}

// Tries returns the number of connection attempts made by the current Connect.
func (t *WebSocketTransport) Tries() int {
	return int(t.tries.Load())
}

// Connect dials the local WebSocket server, retrying across the port range.
func (t *WebSocketTransport) Connect(ctx context.Context, clientID string) error {
	switch t.state.load() {
	case StateConnecting, StateHandshaking, StateReady:
		return nil
	}
	t.state.store(StateConnecting)

	ws, err := t.dial(ctx, clientID)
	if err != nil {
		t.state.store(StateDisconnected)
		return err
	}
	ws.SetReadLimit(int64(t.cfg.MaxPayload))

	c := &wsConn{ws: ws, done: make(chan struct{})}
	t.cur.Store(c)

	t.logger.Info("transport connected", "transport", "websocket", "addr", ws.RemoteAddr(), "tries", t.Tries())
	t.state.store(StateHandshaking)
	t.cfg.Handler.OnOpen()

	go t.readLoop(c)
	return nil
}

func (t *WebSocketTransport) dial(ctx context.Context, clientID string) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = websocketRetryInterval
	b.MaxInterval = websocketMaxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	header := http.Header{}
	if t.cfg.Origin != "" {
		header.Set("Origin", t.cfg.Origin)
	}

	t.tries.Store(0)
	for try := 0; ; {
		target := t.cfg.WebSocketURL(try, clientID)
		try++
		t.tries.Store(int32(try))

		ws, resp, err := t.dialer.DialContext(ctx, target, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err == nil {
			return ws, nil
		}
		t.logger.Debug("websocket endpoint unavailable", "url", target, "try", try, "error", err)

		if try >= t.cfg.ConnectTries {
			return nil, errors.Wrapf(ErrConnectionFailed, "after %d attempts: %v", try, err)
		}

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ErrConnectionFailed, ctx.Err().Error())
		}
	}
}

// readLoop decodes text frames until the connection ends.
func (t *WebSocketTransport) readLoop(c *wsConn) {
	var err error
	for {
		var data []byte
		if _, data, err = c.ws.ReadMessage(); err != nil {
			break
		}
		t.cfg.Metrics.frameRead(OpFrame)

		var m Message
		if err = t.cfg.Codec.Unmarshal(data, &m); err != nil {
			err = errors.Wrap(ErrMalformedFrame, err.Error())
			break
		}
		if m.Cmd == CmdDispatch && m.Evt == EventReady {
			t.state.swap(StateHandshaking, StateReady)
		}
		t.cfg.Handler.OnMessage(&m)
	}

	_ = c.ws.Close()

	closeErr := t.closeError(c, err)
	if c.closing.Load() {
		t.state.store(StateClosed)
	} else {
		t.state.store(StateDisconnected)
	}
	t.logger.Info("transport closed", "transport", "websocket", "code", closeErr.Code, "reason", closeErr.Reason)

	var ce *websocket.CloseError
	if err != nil && !errors.As(err, &ce) && !c.closing.Load() {
		t.cfg.Handler.OnError(errors.Wrap(ErrSocket, err.Error()))
	}

	close(c.done)
	t.cfg.Handler.OnClose(closeErr)
}

func (t *WebSocketTransport) closeError(c *wsConn, err error) *CloseError {
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		return &CloseError{Code: ce.Code, Reason: ce.Text}
	case c.closing.Load():
		return &CloseError{Code: CloseNormal, Reason: "connection closed by client"}
	case err == nil:
		return &CloseError{Code: CloseAbnormal, Reason: "connection closed by peer"}
	default:
		return &CloseError{Code: CloseAbnormal, Reason: err.Error()}
	}
}

// Send writes m as a single text frame.
func (t *WebSocketTransport) Send(m *Message) error {
	c, err := t.open()
	if err != nil {
		return err
	}

	data, err := t.cfg.Codec.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write message")
	}
	t.cfg.Metrics.frameWritten(OpFrame)
	return nil
}

// Ping sends a WebSocket ping control frame.
func (t *WebSocketTransport) Ping() error {
	c, err := t.open()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteControl(websocket.PingMessage, []byte(uuid.NewString()), time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(err, "write ping")
	}
	t.cfg.Metrics.frameWritten(OpPing)
	return nil
}

// Close sends a normal-closure close frame and waits for the peer to echo it.
// If ctx is done first the connection is dropped.
func (t *WebSocketTransport) Close(ctx context.Context) error {
	c := t.cur.Load()
	if c == nil {
		t.state.store(StateClosed)
		return nil
	}
	if c.closing.Swap(true) {
		<-c.done
		return nil
	}

	c.writeMu.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	if err == nil {
		t.cfg.Metrics.frameWritten(OpClose)
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		_ = c.ws.Close()
		<-c.done
	}

	t.state.store(StateClosed)
	return nil
}

func (t *WebSocketTransport) open() (*wsConn, error) {
	c := t.cur.Load()
	if c == nil || c.closing.Load() {
		return nil, ErrNotConnected
	}
	switch t.state.load() {
	case StateHandshaking, StateReady:
		return c, nil
	default:
		return nil, ErrNotConnected
	}
}
