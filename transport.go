package discordrpc

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// State is the connection state of a transport or client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport carries logical messages between the client and the local
// Discord application.
type Transport interface {
	// Connect establishes the connection and sends the handshake for clientID.
	// It returns once the handshake is written; readiness is signalled by a
	// READY dispatch delivered to the Handler.
	Connect(ctx context.Context, clientID string) error
	// Send writes a logical message.
	Send(m *Message) error
	// Ping sends a liveness probe.
	Ping() error
	// Close shuts the connection down, waiting for the peer to acknowledge
	// until ctx is done.
	Close(ctx context.Context) error
	// State returns the current connection state.
	State() State
}

// Handler receives the events of a Transport. Calls are made from the
// transport's read goroutine in the order the bytes arrived.
type Handler interface {
	// OnOpen is called once the underlying connection is established.
	OnOpen()
	// OnMessage is called for every decoded logical message.
	OnMessage(m *Message)
	// OnClose is called exactly once per connection when it ends.
	OnClose(err *CloseError)
	// OnError is called for failures outside the request path, such as a
	// failed endpoint discovery or the I/O error that precedes OnClose.
	OnError(err error)
}

// TransportConfig is handed to a TransportFactory.
type TransportConfig struct {
	Handler Handler
	Logger  Logger
	Codec   Codec
	Metrics *Metrics

	// Origin is sent as the Origin header by the WebSocket transport.
	Origin string
	// MaxPayload bounds the size of a single frame.
	MaxPayload int
	// BufferSize is the capacity of the outbound queue.
	BufferSize int
	// ConnectTries bounds the connection attempts of transports that retry.
	ConnectTries int

	// IPCPath builds the IPC socket path for a discovery index.
	IPCPath func(index int) string
	// WebSocketURL builds the WebSocket URL for a connection attempt.
	WebSocketURL func(try int, clientID string) string

	// HTTPClient is used for REST endpoint discovery.
	HTTPClient *http.Client
	// EndpointURL builds the candidate REST endpoint for a discovery attempt.
	EndpointURL func(try int) string
	// OnEndpoint receives the REST endpoint discovered after AUTHORIZE.
	OnEndpoint func(endpoint string)
}

// TransportFactory constructs a Transport.
type TransportFactory func(cfg TransportConfig) Transport

var (
	transportsMu sync.RWMutex
	transports   = map[string]TransportFactory{
		"ipc":       func(cfg TransportConfig) Transport { return NewIPCTransport(cfg) },
		"websocket": func(cfg TransportConfig) Transport { return NewWebSocketTransport(cfg) },
	}
)

// RegisterTransport makes a transport available under name.
func RegisterTransport(name string, factory TransportFactory) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = factory
}

// Transports returns the registered transport names.
func Transports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()

	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupTransport(name string) (TransportFactory, error) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()

	factory, ok := transports[name]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTransport, "%q, valid transports are %q", name, []string{"ipc", "websocket"})
	}
	return factory, nil
}

// stateBox is an atomically updated State.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State {
	return State(b.v.Load())
}

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
}

func (b *stateBox) swap(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}
