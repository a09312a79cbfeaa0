package discordrpc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultConnectTimeout is how long Connect waits for the READY dispatch.
const defaultConnectTimeout = 10 * time.Second

// defaultAPIEndpoint is the REST base used until a local endpoint is discovered.
const defaultAPIEndpoint = "https://discord.com/api"

// EventHandler receives every unsolicited event dispatch.
type EventHandler func(evt string, data json.RawMessage)

// Registrar registers the application as the default handler of a URI scheme.
type Registrar func(scheme string) error

// options holds the configuration for a client.
type options struct {
	transport string
	codec     Codec
	logger    Logger
	registrar Registrar
	onEvent   EventHandler
	onError   func(error)

	registerer prometheus.Registerer
	httpClient *http.Client

	apiEndpoint    string
	origin         string
	connectTimeout time.Duration
	maxPayload     int // maximum size of a single frame payload
	bufferSize     int // size of the outbound frame queue
	connectTries   int

	ipcPath      func(index int) string
	webSocketURL func(try int, clientID string) string
	endpointURL  func(try int) string
}

// Option is a function that configures client options.
type Option func(*options)

// TransportOption selects the transport by name, "ipc" or "websocket".
// It is required.
func TransportOption(name string) Option {
	return func(o *options) {
		o.transport = name
	}
}

// CodecOption substitutes the serialization of logical messages.
func CodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// LoggerOption sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// RegistrarOption sets the function used by Register to claim a URI scheme.
func RegistrarOption(r Registrar) Option {
	return func(o *options) {
		o.registrar = r
	}
}

// EventHandlerOption sets a callback invoked for every event dispatch,
// in addition to matching subscriptions.
func EventHandlerOption(h EventHandler) Option {
	return func(o *options) {
		o.onEvent = h
	}
}

// ErrorHandlerOption sets a callback for transport failures that do not end
// the connection, such as a failed REST endpoint discovery.
func ErrorHandlerOption(cb func(error)) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// MetricsOption registers the client's collectors with reg.
func MetricsOption(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// HTTPClientOption sets the client used for REST calls and endpoint discovery.
func HTTPClientOption(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// APIEndpointOption sets the REST base URL.
func APIEndpointOption(endpoint string) Option {
	return func(o *options) {
		o.apiEndpoint = endpoint
	}
}

// OriginOption sets the Origin header of the WebSocket transport.
func OriginOption(origin string) Option {
	return func(o *options) {
		o.origin = origin
	}
}

// ConnectTimeoutOption sets how long Connect waits for the READY dispatch.
func ConnectTimeoutOption(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// MaxPayloadOption sets the maximum size of a single frame payload.
func MaxPayloadOption(size int) Option {
	return func(o *options) {
		o.maxPayload = size
	}
}

// BufferSizeOption sets the size of the outbound frame queue.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// ConnectTriesOption bounds the connection attempts of the WebSocket transport.
func ConnectTriesOption(n int) Option {
	return func(o *options) {
		o.connectTries = n
	}
}

// IPCPathOption overrides where the IPC transport looks for the socket.
func IPCPathOption(fn func(index int) string) Option {
	return func(o *options) {
		o.ipcPath = fn
	}
}

// WebSocketURLOption overrides the URL the WebSocket transport dials.
func WebSocketURLOption(fn func(try int, clientID string) string) Option {
	return func(o *options) {
		o.webSocketURL = fn
	}
}

// EndpointProbeOption overrides the candidate URLs of REST endpoint discovery.
func EndpointProbeOption(fn func(try int) string) Option {
	return func(o *options) {
		o.endpointURL = fn
	}
}

// checkOptions validates and sets default values for client options.
func checkOptions(opts *options) error {
	if _, err := lookupTransport(opts.transport); err != nil {
		return err
	}

	if opts.codec == nil {
		opts.codec = JSONCodec()
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.connectTimeout <= 0 {
		opts.connectTimeout = defaultConnectTimeout
	}

	if opts.maxPayload <= 0 {
		opts.maxPayload = defaultMaxPayload
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.apiEndpoint == "" {
		opts.apiEndpoint = defaultAPIEndpoint
	}

	if opts.httpClient == nil {
		opts.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	if opts.endpointURL == nil {
		opts.endpointURL = defaultEndpointURL
	}

	return nil
}
