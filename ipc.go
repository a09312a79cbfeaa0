package discordrpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Default configuration values.
const (
	// defaultBufferSize is the default capacity of the outbound frame queue.
	defaultBufferSize = 16
	// defaultMaxPayload is the default maximum size of a single frame payload (1MB).
	defaultMaxPayload = 1024 * 1024
	// ipcSearchLimit is the number of IPC endpoint indexes tried during discovery.
	ipcSearchLimit = 10
	// readChunkSize is the size of a single read from the socket.
	readChunkSize = 4096
	// writeTimeout bounds a single socket write.
	writeTimeout = 10 * time.Second
	// handshakeVersion is the IPC protocol version sent in the handshake.
	handshakeVersion = 1
)

// Close codes reported through CloseError when the peer did not supply one.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// errPeerClosed stops the read loop after a CLOSE frame.
var errPeerClosed = errors.New("peer sent close frame")

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type outbound struct {
	op   Opcode
	data []byte
}

// IPCTransport speaks the framed IPC protocol over the local Discord socket
// (a Unix socket, or a named pipe on Windows).
type IPCTransport struct {
	cfg    TransportConfig
	logger Logger
	state  stateBox
	cur    atomic.Pointer[ipcConn]
}

// ipcConn is one physical connection of an IPCTransport.
type ipcConn struct {
	rawConn net.Conn
	decoder *Decoder
	sendMsg chan outbound
	done    chan struct{}
	stop    <-chan struct{}
	cancel  context.CancelFunc
	closing atomic.Bool

	mu       sync.Mutex
	closeErr *CloseError
}

// NewIPCTransport creates an IPC transport. The connection is not opened
// until Connect is called.
func NewIPCTransport(cfg TransportConfig) *IPCTransport {
	cfg = withTransportDefaults(cfg)
	return &IPCTransport{cfg: cfg, logger: cfg.Logger}
}

func withTransportDefaults(cfg TransportConfig) TransportConfig {
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec()
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = defaultMaxPayload
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.IPCPath == nil {
		cfg.IPCPath = ipcPath
	}
	if cfg.WebSocketURL == nil {
		cfg.WebSocketURL = defaultWebSocketURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Handler == nil {
		cfg.Handler = nopHandler{}
	}
	return cfg
}

// IPCPath returns the path the IPC transport dials for endpoint index.
func IPCPath(index int) string {
	return ipcPath(index)
}

// State returns the current connection state.
func (t *IPCTransport) State() State {
	return t.state.load()
}

// Connect searches the IPC endpoints discord-ipc-0 through discord-ipc-9,
// opens the first that accepts a connection and writes the handshake.
// It is a no-op while a connection is already open.
func (t *IPCTransport) Connect(ctx context.Context, clientID string) error {
	switch t.state.load() {
	case StateConnecting, StateHandshaking, StateReady:
		return nil
	}
	t.state.store(StateConnecting)

	rawConn, path, err := t.discover(ctx)
	if err != nil {
		t.state.store(StateDisconnected)
		return err
	}

	c := &ipcConn{
		rawConn: rawConn,
		decoder: NewDecoder(t.cfg.MaxPayload),
		sendMsg: make(chan outbound, t.cfg.BufferSize),
		done:    make(chan struct{}),
	}
	t.cur.Store(c)

	t.logger.Info("transport connected", "transport", "ipc", "path", path)
	t.state.store(StateHandshaking)
	t.cfg.Handler.OnOpen()

	if err := t.writeHandshake(ctx, c, clientID); err != nil {
		_ = rawConn.Close()
		t.cur.Store(nil)
		t.state.store(StateDisconnected)
		return errors.Wrap(err, "write handshake")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, child := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.stop = child.Done()
	go t.run(child, group, c)

	return nil
}

// discover dials the IPC endpoints in index order.
func (t *IPCTransport) discover(ctx context.Context) (net.Conn, string, error) {
	var lastErr error
	for i := 0; i < ipcSearchLimit; i++ {
		path := t.cfg.IPCPath(i)
		conn, err := dialIPC(ctx, path)
		if err == nil {
			return conn, path, nil
		}
		t.logger.Debug("ipc endpoint unavailable", "path", path, "error", err)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Wrapf(ErrConnectionFailed, "no ipc endpoint accepted a connection: %v", lastErr)
}

func (t *IPCTransport) writeHandshake(ctx context.Context, c *ipcConn, clientID string) error {
	packet, err := Encode(OpHandshake, handshake{V: handshakeVersion, ClientID: clientID})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = c.rawConn.SetWriteDeadline(deadline)
	defer func() { _ = c.rawConn.SetWriteDeadline(time.Time{}) }()

	if _, err = c.rawConn.Write(packet); err != nil {
		return err
	}
	t.cfg.Metrics.frameWritten(OpHandshake)
	return nil
}

// run drives the read and write loops of c until either fails, then
// reports the closure to the handler.
func (t *IPCTransport) run(ctx context.Context, group *errgroup.Group, c *ipcConn) {
	group.Go(func() error {
		return t.readLoop(ctx, c)
	})

	group.Go(func() error {
		return t.writeLoop(ctx, c)
	})

	group.Go(func() error {
		<-ctx.Done()
		return c.rawConn.Close()
	})

	err := group.Wait()
	c.cancel()

	closeErr := c.closeError(err)
	if c.closing.Load() {
		t.state.store(StateClosed)
	} else {
		t.state.store(StateDisconnected)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, errPeerClosed) || errors.Is(err, io.EOF) {
		t.logger.Info("transport closed", "transport", "ipc", "code", closeErr.Code, "reason", closeErr.Reason)
	} else {
		t.logger.Info("transport closed with error", "transport", "ipc", "error", err)
		if !c.closing.Load() {
			t.cfg.Handler.OnError(errors.Wrap(ErrSocket, err.Error()))
		}
	}

	close(c.done)
	t.cfg.Handler.OnClose(closeErr)
}

// readLoop reads raw chunks from the socket and feeds them to the frame decoder.
func (t *IPCTransport) readLoop(ctx context.Context, c *ipcConn) error {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := c.rawConn.Read(buf)
		if n > 0 {
			if ferr := c.decoder.Feed(buf[:n], func(f Frame) error {
				return t.handleFrame(c, f)
			}); ferr != nil {
				t.logger.Debug("decode error", "error", ferr)
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// handleFrame acts on a single decoded frame.
func (t *IPCTransport) handleFrame(c *ipcConn, f Frame) error {
	t.cfg.Metrics.frameRead(f.Opcode)

	switch f.Opcode {
	case OpPing:
		return c.enqueue(outbound{op: OpPong, data: EncodeRaw(OpPong, f.Payload)})
	case OpFrame:
		var m Message
		if err := t.cfg.Codec.Unmarshal(f.Payload, &m); err != nil {
			return errors.Wrap(ErrMalformedFrame, err.Error())
		}
		if m.Cmd == CmdAuthorize && !m.IsError() && t.cfg.OnEndpoint != nil {
			go t.findEndpoint()
		}
		if m.Cmd == CmdDispatch && m.Evt == EventReady {
			t.state.swap(StateHandshaking, StateReady)
		}
		t.cfg.Handler.OnMessage(&m)
	case OpClose:
		ce := &CloseError{}
		_ = json.Unmarshal(f.Payload, ce)
		if ce.Code != 0 || ce.Reason != "" {
			c.mu.Lock()
			c.closeErr = ce
			c.mu.Unlock()
		}
		return errPeerClosed
	default:
		t.logger.Debug("ignoring frame", "opcode", f.Opcode)
	}
	return nil
}

// findEndpoint runs REST endpoint discovery and hands the result to OnEndpoint.
func (t *IPCTransport) findEndpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	endpoint, err := discoverEndpoint(ctx, t.cfg.HTTPClient, t.cfg.EndpointURL, endpointSearchLimit)
	if err != nil {
		t.logger.Warn("rest endpoint discovery failed", "error", err)
		t.cfg.Handler.OnError(err)
		return
	}
	t.logger.Debug("rest endpoint discovered", "endpoint", endpoint)
	t.cfg.OnEndpoint(endpoint)
}

// writeLoop sends queued frames until the context is canceled or a write fails.
func (t *IPCTransport) writeLoop(ctx context.Context, c *ipcConn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-c.sendMsg:
			if err := t.write(c, out); err != nil {
				return err
			}
		}
	}
}

// write sends a frame with a deadline. After a CLOSE frame the write side is
// shut down so the peer sees the end of the stream.
func (t *IPCTransport) write(c *ipcConn, out outbound) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeTimeout))

	if _, err := c.rawConn.Write(out.data); err != nil {
		t.logger.Debug("write error", "opcode", out.op, "error", err)
		return err
	}
	t.cfg.Metrics.frameWritten(out.op)

	if out.op == OpClose {
		if cw, ok := c.rawConn.(interface{ CloseWrite() error }); ok {
			return cw.CloseWrite()
		}
	}
	return nil
}

// Send queues a FRAME carrying m.
func (t *IPCTransport) Send(m *Message) error {
	c, err := t.open()
	if err != nil {
		return err
	}

	payload, err := t.cfg.Codec.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	return c.enqueue(outbound{op: OpFrame, data: EncodeRaw(OpFrame, payload)})
}

// Ping queues a PING frame carrying a random token.
func (t *IPCTransport) Ping() error {
	c, err := t.open()
	if err != nil {
		return err
	}

	packet, err := Encode(OpPing, uuid.NewString())
	if err != nil {
		return err
	}
	return c.enqueue(outbound{op: OpPing, data: packet})
}

// Close sends a CLOSE frame, ends the write side and waits for the peer to
// close the connection. If ctx is done first the connection is torn down.
func (t *IPCTransport) Close(ctx context.Context) error {
	c := t.cur.Load()
	if c == nil {
		t.state.store(StateClosed)
		return nil
	}
	if c.closing.Swap(true) {
		<-c.done
		return nil
	}

	packet := EncodeRaw(OpClose, []byte(`{}`))
	select {
	case c.sendMsg <- outbound{op: OpClose, data: packet}:
	case <-c.stop:
	case <-ctx.Done():
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		c.cancel()
		<-c.done
	}

	t.state.store(StateClosed)
	return nil
}

// open returns the current connection if it can accept frames.
func (t *IPCTransport) open() (*ipcConn, error) {
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

// enqueue hands a frame to the write loop, blocking while the queue is full.
func (c *ipcConn) enqueue(out outbound) error {
	select {
	case c.sendMsg <- out:
		return nil
	case <-c.stop:
		return ErrNotConnected
	}
}

// closeError describes why the connection ended.
func (c *ipcConn) closeError(err error) *CloseError {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closeErr != nil:
		return c.closeErr
	case c.closing.Load():
		return &CloseError{Code: CloseNormal, Reason: "connection closed by client"}
	case err == nil || errors.Is(err, io.EOF):
		return &CloseError{Code: CloseAbnormal, Reason: "connection closed by peer"}
	default:
		return &CloseError{Code: CloseAbnormal, Reason: err.Error()}
	}
}

type nopHandler struct{}

func (nopHandler) OnOpen()             {}
func (nopHandler) OnMessage(*Message)  {}
func (nopHandler) OnClose(*CloseError) {}
func (nopHandler) OnError(error)       {}
